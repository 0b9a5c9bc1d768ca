// Package console is a terminal client for the master role: it connects,
// authenticates, prints the cross-office snapshot and presence changes as
// they arrive, and accepts a few commands.
package console

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/chinbo/chinbo-server/internal/common"
	"github.com/chinbo/chinbo-server/internal/server/broker"
	"github.com/chinbo/chinbo-server/internal/server/models"
	"github.com/gorilla/websocket"
)

// Reconnect tuning for Watch.
var (
	reconnectAttempts = 5
	reconnectDelay    = 2 * time.Second
	reconnectTimeout  = 10 * time.Second
)

// Session is an authenticated master connection. When the server drops it,
// Watch dials again and presents the session token from the last ack.
type Session struct {
	url string
	out io.Writer

	mu    sync.Mutex
	conn  *websocket.Conn
	token string
}

// Dial connects to url and performs the master hello. The ack must arrive
// within ctx's deadline; a rejected token wraps common.ErrAuthRejected.
func Dial(ctx context.Context, url, token string, out io.Writer) (*Session, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	s := &Session{url: url, conn: conn, out: out}
	if err := s.hello(ctx, broker.MasterHello{Token: token}); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *Session) current() *websocket.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

func (s *Session) hello(ctx context.Context, hello broker.MasterHello) error {
	if err := s.send(broker.EventMasterHello, hello); err != nil {
		return err
	}

	conn := s.current()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
		defer conn.SetReadDeadline(time.Time{})
	}

	for {
		env, err := s.read()
		if err != nil {
			return fmt.Errorf("waiting for ack: %w", err)
		}
		if env.Event != broker.EventMasterAck {
			continue
		}

		var ack broker.MasterAck
		if err := json.Unmarshal(env.Data, &ack); err != nil {
			return fmt.Errorf("%w: ack: %v", common.ErrInvalidPayload, err)
		}
		if !ack.OK {
			return fmt.Errorf("%w: %s", common.ErrAuthRejected, ack.Error)
		}

		if ack.Session != "" {
			s.mu.Lock()
			s.token = ack.Session
			s.mu.Unlock()
		}
		return nil
	}
}

// reconnect replaces the connection and authenticates with the session
// token.
func (s *Session) reconnect(ctx context.Context) error {
	session := s.SessionToken()
	if session == "" {
		return fmt.Errorf("%w: no session token", common.ErrAuthRejected)
	}

	ctx, cancel := context.WithTimeout(ctx, reconnectTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.url, err)
	}

	s.mu.Lock()
	old := s.conn
	s.conn = conn
	s.mu.Unlock()
	old.Close()

	return s.hello(ctx, broker.MasterHello{Session: session})
}

// SessionToken is the signed token from the last successful hello.
func (s *Session) SessionToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// List asks for a fresh snapshot.
func (s *Session) List() error {
	return s.send(broker.EventMasterList, struct{}{})
}

// CreateOffice ensures office exists on the server.
func (s *Session) CreateOffice(office string) error {
	return s.send(broker.EventMasterCreateOffice, broker.CreateOfficeRequest{Office: office})
}

// RenamePc sets the display name of a PC.
func (s *Session) RenamePc(office, pcID, name string) error {
	patch, err := json.Marshal(map[string]string{"name": name})
	if err != nil {
		return err
	}
	return s.send(broker.EventMasterUpdatePcMeta, broker.UpdatePcMetaRequest{Office: office, PcID: pcID, Patch: patch})
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return s.conn.Close()
}

// Watch prints incoming events until ctx is done. A dropped connection is
// re-established with the session token; Watch gives up after
// reconnectAttempts failures or when the session is rejected.
func (s *Session) Watch(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.current().Close()
	}()

	for {
		env, err := s.read()
		if err == nil {
			s.print(env)
			continue
		}
		if ctx.Err() != nil {
			return nil
		}

		fmt.Fprintf(s.out, "connection lost: %v\n", err)
		if err := s.redial(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		fmt.Fprintln(s.out, "reconnected")
	}
}

func (s *Session) redial(ctx context.Context) error {
	var err error
	for range reconnectAttempts {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectDelay):
		}

		err = s.reconnect(ctx)
		if err == nil || errors.Is(err, common.ErrAuthRejected) {
			return err
		}
	}
	return err
}

func (s *Session) print(env broker.Envelope) {
	switch env.Event {
	case broker.EventMasterSnapshot:
		var snap models.Snapshot
		if err := json.Unmarshal(env.Data, &snap); err == nil {
			printSnapshot(s.out, snap)
		}
	case broker.EventMasterPcStatus:
		var st broker.PcStatus
		if err := json.Unmarshal(env.Data, &st); err == nil {
			printPcStatus(s.out, st)
		}
	case broker.EventMasterAck:
		var ack broker.MasterAck
		if err := json.Unmarshal(env.Data, &ack); err == nil && !ack.OK {
			fmt.Fprintf(s.out, "error: %s\n", ack.Error)
		}
	}
}

func (s *Session) send(event string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(broker.Envelope{Event: event, Data: raw})
}

// read is only called from one goroutine at a time.
func (s *Session) read() (broker.Envelope, error) {
	var env broker.Envelope
	err := s.current().ReadJSON(&env)
	return env, err
}

func printSnapshot(w io.Writer, snap models.Snapshot) {
	fmt.Fprintf(w, "%d office(s), %d pc(s) online\n", len(snap.Offices), snap.PcsOnline)
	for _, o := range snap.Offices {
		online := 0
		for _, pc := range o.Pcs {
			if pc.Online {
				online++
			}
		}
		fmt.Fprintf(w, "  %s  %d/%d online\n", o.Office, online, len(o.Pcs))

		pcs := append([]models.SnapshotPc(nil), o.Pcs...)
		sort.Slice(pcs, func(i, j int) bool { return pcs[i].PcID < pcs[j].PcID })
		for _, pc := range pcs {
			fmt.Fprintf(w, "    %-12s %-20s %s\n", pc.PcID, pc.Name, presence(pc.Online, pc.LastSeen))
		}
	}
}

func printPcStatus(w io.Writer, st broker.PcStatus) {
	fmt.Fprintf(w, "%s/%s %s\n", st.Office, st.PcID, presence(st.Online, st.LastSeen))
}

func presence(online bool, lastSeen int64) string {
	state := "offline"
	if online {
		state = "online"
	}
	if lastSeen == 0 {
		return state
	}
	return fmt.Sprintf("%s (last seen %s)", state, time.UnixMilli(lastSeen).Format("2006-01-02 15:04:05"))
}
