// Package broker runs the realtime session protocol over WebSocket.
//
// A single hub goroutine owns every connection's role, the master set and
// the per-office channels, and is the only caller of the registry's
// mutating operations. Each connection has a read pump and a write pump
// that only move frames between the socket and the hub.
package broker

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chinbo/chinbo-server/internal/logging"
	"github.com/chinbo/chinbo-server/internal/server/models"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Registry is the part of registry.Registry the hub drives.
type Registry interface {
	EnsureOffice(ctx context.Context, name string) (*models.Office, error)
	Office(name string) (*models.Office, bool)
	UpdateConfig(ctx context.Context, office string, cfg models.Configuration) (models.Configuration, error)
	UpdatePcMeta(ctx context.Context, office, pcID string, patch models.PcPatch) (*models.PcRecord, error)
	SetPcStatus(ctx context.Context, office, pcID string, online bool) (*models.PcRecord, error)
	RegisterPc(ctx context.Context, office, pcID string, meta models.PcPatch) (*models.PcRecord, error)
	BuildSnapshot() models.Snapshot
}

// Gate checks hello credentials. *auth.Gate satisfies it.
type Gate interface {
	CheckMaster(token string) error
	CheckOperator(office, token string) error
	IssueMasterSession() (string, error)
	CheckMasterSession(session string) error
}

type Options struct {
	PingInterval   time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64
	SendBuffer     int
}

func DefaultOptions() Options {
	return Options{
		PingInterval:   25 * time.Second,
		PongWait:       60 * time.Second,
		WriteWait:      10 * time.Second,
		MaxMessageSize: 1 << 20,
		SendBuffer:     64,
	}
}

type inbound struct {
	client *Client
	env    Envelope
}

type pcKey struct {
	office string
	pcID   string
}

// Stats are connection counts, safe to read from any goroutine.
type Stats struct {
	Masters   int64 `json:"masters"`
	Operators int64 `json:"operators"`
}

type Hub struct {
	registry Registry
	gate     Gate
	opts     Options
	logger   logging.Logger
	upgrader websocket.Upgrader

	register   chan *Client
	unregister chan *Client
	inbound    chan inbound
	started    chan struct{}
	done       chan struct{}
	startOnce  sync.Once
	stopOnce   sync.Once

	// owned by Run
	clients  map[*Client]struct{}
	masters  map[*Client]struct{}
	offices  map[string]map[*Client]struct{}
	presence map[pcKey]int
	// PCs whose offline write failed; retried until it lands or they return
	pendingOffline map[pcKey]struct{}

	masterCount   atomic.Int64
	operatorCount atomic.Int64
}

func NewHub(reg Registry, gate Gate, opts Options, l logging.Logger) *Hub {
	def := DefaultOptions()
	if opts.PingInterval <= 0 {
		opts.PingInterval = def.PingInterval
	}
	if opts.PongWait <= 0 {
		opts.PongWait = def.PongWait
	}
	if opts.WriteWait <= 0 {
		opts.WriteWait = def.WriteWait
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = def.MaxMessageSize
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = def.SendBuffer
	}

	return &Hub{
		registry: reg,
		gate:     gate,
		opts:     opts,
		logger:   l.With("module", "broker"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inbound),
		started:    make(chan struct{}),
		done:       make(chan struct{}),
		clients:    map[*Client]struct{}{},
		masters:    map[*Client]struct{}{},
		offices:    map[string]map[*Client]struct{}{},
		presence:   map[pcKey]int{},

		pendingOffline: map[pcKey]struct{}{},
	}
}

// Started is closed once Run begins processing events.
func (h *Hub) Started() <-chan struct{} { return h.started }

// Done is closed when Run returns.
func (h *Hub) Done() <-chan struct{} { return h.done }

func (h *Hub) Stats() Stats {
	return Stats{Masters: h.masterCount.Load(), Operators: h.operatorCount.Load()}
}

// ServeWS upgrades the request and hands the connection to the hub.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(r.Context(), "websocket upgrade failed", "error", err)
		return
	}

	c := &Client{
		id:   uuid.NewString(),
		hub:  h,
		conn: conn,
		send: make(chan []byte, h.opts.SendBuffer),
	}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// Run processes events until ctx is cancelled. On the way out every PC
// still present is marked offline and every connection is closed.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info(ctx, "Starting broker...")
	defer h.stopOnce.Do(func() { close(h.done) })
	h.startOnce.Do(func() { close(h.started) })

	retry := time.NewTicker(h.opts.PingInterval)
	defer retry.Stop()

	for {
		select {
		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.logger.Debug(ctx, "client connected", "conn_id", c.id)
		case c := <-h.unregister:
			h.disconnect(ctx, c)
		case in := <-h.inbound:
			h.retryOffline(ctx)
			if _, ok := h.clients[in.client]; !ok {
				continue
			}
			h.dispatch(ctx, in.client, in.env)
		case <-retry.C:
			h.retryOffline(ctx)
		case <-ctx.Done():
			h.shutdown(ctx)
			return
		}
	}
}

func (h *Hub) shutdown(ctx context.Context) {
	h.logger.Info(ctx, "Stopping broker...")

	persistCtx := context.WithoutCancel(ctx)
	for key := range h.presence {
		h.pendingOffline[key] = struct{}{}
	}
	for key := range h.pendingOffline {
		if _, err := h.registry.SetPcStatus(persistCtx, key.office, key.pcID, false); err != nil {
			h.logger.Error(ctx, "marking pc offline failed", "office", key.office, "pc_id", key.pcID, "error", err)
		}
	}
	h.presence = map[pcKey]int{}
	h.pendingOffline = map[pcKey]struct{}{}

	for c := range h.clients {
		h.closeClient(c)
	}
	h.masterCount.Store(0)
	h.operatorCount.Store(0)
}

// disconnect is idempotent: a client that was already removed is ignored.
func (h *Hub) disconnect(ctx context.Context, c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	h.closeClient(c)

	switch c.role {
	case roleMaster:
		delete(h.masters, c)
		h.masterCount.Add(-1)
		h.logger.Info(ctx, "master disconnected", "conn_id", c.id)
	case roleOperator:
		h.leaveOffice(c)
		h.operatorCount.Add(-1)
		h.logger.Info(ctx, "operator disconnected", "conn_id", c.id, "office", c.office, "pc_id", c.pcID)

		key := pcKey{office: c.office, pcID: c.pcID}
		h.presence[key]--
		if h.presence[key] > 0 {
			return
		}
		delete(h.presence, key)

		if h.markOffline(ctx, key) {
			h.broadcastSnapshot(ctx)
		}
	}
}

// markOffline persists key as offline and tells the masters. On failure the
// key is queued for retryOffline.
func (h *Hub) markOffline(ctx context.Context, key pcKey) bool {
	pc, err := h.registry.SetPcStatus(ctx, key.office, key.pcID, false)
	if err != nil {
		h.pendingOffline[key] = struct{}{}
		h.logger.Error(ctx, "marking pc offline failed", "office", key.office, "pc_id", key.pcID, "error", err)
		return false
	}
	delete(h.pendingOffline, key)
	h.broadcastPcStatus(ctx, key.office, key.pcID, pc)
	return true
}

func (h *Hub) retryOffline(ctx context.Context) {
	if len(h.pendingOffline) == 0 {
		return
	}
	changed := false
	for key := range h.pendingOffline {
		if h.presence[key] > 0 {
			// the PC came back before the write went through
			delete(h.pendingOffline, key)
			continue
		}
		if h.markOffline(ctx, key) {
			changed = true
		}
	}
	if changed {
		h.broadcastSnapshot(ctx)
	}
}

// closeClient removes c from the client set and ends its write pump. Queued
// frames are still written before the close frame.
func (h *Hub) closeClient(c *Client) {
	delete(h.clients, c)
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (h *Hub) joinOffice(c *Client) {
	room, ok := h.offices[c.office]
	if !ok {
		room = map[*Client]struct{}{}
		h.offices[c.office] = room
	}
	room[c] = struct{}{}
}

func (h *Hub) leaveOffice(c *Client) {
	room, ok := h.offices[c.office]
	if !ok {
		return
	}
	delete(room, c)
	if len(room) == 0 {
		delete(h.offices, c.office)
	}
}

func (h *Hub) sendTo(ctx context.Context, c *Client, event string, data any) {
	msg, err := encode(event, data)
	if err != nil {
		h.logger.Error(ctx, "encode failed", "event", event, "error", err)
		return
	}
	h.enqueue(ctx, c, msg)
}

// enqueue never blocks the hub: a client whose buffer is full is dropped.
func (h *Hub) enqueue(ctx context.Context, c *Client, msg []byte) {
	if c.closed {
		return
	}
	select {
	case c.send <- msg:
	default:
		h.logger.Warn(ctx, "send buffer full, dropping client", "conn_id", c.id)
		h.disconnect(ctx, c)
	}
}

func (h *Hub) broadcastMasters(ctx context.Context, event string, data any) {
	msg, err := encode(event, data)
	if err != nil {
		h.logger.Error(ctx, "encode failed", "event", event, "error", err)
		return
	}
	for c := range h.masters {
		h.enqueue(ctx, c, msg)
	}
}

func (h *Hub) broadcastOffice(ctx context.Context, office, event string, data any) {
	msg, err := encode(event, data)
	if err != nil {
		h.logger.Error(ctx, "encode failed", "event", event, "error", err)
		return
	}
	for c := range h.offices[office] {
		h.enqueue(ctx, c, msg)
	}
}

func (h *Hub) broadcastSnapshot(ctx context.Context) {
	if len(h.masters) == 0 {
		return
	}
	h.broadcastMasters(ctx, EventMasterSnapshot, h.registry.BuildSnapshot())
}

func (h *Hub) broadcastPcStatus(ctx context.Context, office, pcID string, pc *models.PcRecord) {
	h.broadcastMasters(ctx, EventMasterPcStatus, PcStatus{
		Office:   office,
		PcID:     pcID,
		Online:   pc.Online,
		LastSeen: pc.LastSeen,
	})
}
