// Package registry owns the in-memory office document. Every mutation is
// persisted before it returns; when persisting fails the change is undone,
// so the in-memory state always matches the last stored document.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/chinbo/chinbo-server/internal/common"
	"github.com/chinbo/chinbo-server/internal/logging"
	"github.com/chinbo/chinbo-server/internal/server/models"
	"github.com/chinbo/chinbo-server/internal/timex"
)

// Persister writes the whole document. *store.Store satisfies it.
type Persister interface {
	Persist(ctx context.Context, doc *models.Document) error
}

type Registry struct {
	mu     sync.RWMutex
	doc    *models.Document
	store  Persister
	now    func() time.Time
	logger logging.Logger
}

// New takes ownership of doc, which is normally the result of store.Load.
func New(doc *models.Document, p Persister, l logging.Logger) *Registry {
	doc.Normalize()
	return &Registry{
		doc:    doc,
		store:  p,
		now:    time.Now,
		logger: l.With("module", "registry"),
	}
}

// mutate applies fn to a copy of the named office (a fresh default office
// when it does not exist), swaps the copy in and persists. On any error the
// previous office is restored.
func (r *Registry) mutate(ctx context.Context, name string, fn func(o *models.Office) error) (*models.Office, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty office name", common.ErrInvalidPayload)
	}
	prev, existed := r.doc.Offices[name]

	var work *models.Office
	if existed {
		work = prev.Clone()
	} else {
		work = models.NewOffice(r.doc.GlobalTokens)
	}

	if fn != nil {
		if err := fn(work); err != nil {
			return nil, err
		}
	}

	r.doc.Offices[name] = work
	if err := r.store.Persist(ctx, r.doc); err != nil {
		if existed {
			r.doc.Offices[name] = prev
		} else {
			delete(r.doc.Offices, name)
		}
		r.logger.Error(ctx, "persist failed, change rolled back", "office", name, "error", err)
		return nil, err
	}
	return work, nil
}

// EnsureOffice returns the named office, creating and persisting it with the
// default configuration and the global tokens if it does not exist yet.
func (r *Registry) EnsureOffice(ctx context.Context, name string) (*models.Office, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if o, ok := r.doc.Offices[name]; ok {
		return o.Clone(), nil
	}

	o, err := r.mutate(ctx, name, nil)
	if err != nil {
		return nil, err
	}
	r.logger.Info(ctx, "office created", "office", name)
	return o.Clone(), nil
}

// Office returns a copy of the named office without creating it.
func (r *Registry) Office(name string) (*models.Office, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.doc.Offices[name]
	if !ok {
		return nil, false
	}
	return o.Clone(), true
}

func (r *Registry) GlobalTokens() models.TokenPair {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.doc.GlobalTokens
}

// OpToken is the operator token of office, or the global one when the office
// is unknown or has none of its own.
func (r *Registry) OpToken(office string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolved(office).OpToken
}

// MasterToken is the master token of office with the same fallback as OpToken.
func (r *Registry) MasterToken(office string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolved(office).MasterToken
}

// MasterTokens lists the global master token followed by the resolved
// master token of every office. Any of them opens a master session.
func (r *Registry) MasterTokens() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []string{r.doc.GlobalTokens.MasterToken}
	for _, name := range r.officeNames() {
		out = append(out, r.resolved(name).MasterToken)
	}
	return out
}

func (r *Registry) resolved(office string) models.TokenPair {
	out := r.doc.GlobalTokens
	o, ok := r.doc.Offices[office]
	if !ok {
		return out
	}
	if o.Tokens.MasterToken != "" {
		out.MasterToken = o.Tokens.MasterToken
	}
	if o.Tokens.OpToken != "" {
		out.OpToken = o.Tokens.OpToken
	}
	return out
}

// UpdateConfig replaces the configuration of office wholesale.
func (r *Registry) UpdateConfig(ctx context.Context, office string, cfg models.Configuration) (models.Configuration, error) {
	if err := cfg.Validate(); err != nil {
		return models.Configuration{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	o, err := r.mutate(ctx, office, func(o *models.Office) error {
		o.Config = cfg.Clone()
		return nil
	})
	if err != nil {
		return models.Configuration{}, err
	}
	return o.Config.Clone(), nil
}

// UpdatePcMeta merges patch into the record of pcID, creating it first if
// needed. online and lastSeen are never taken from the patch.
func (r *Registry) UpdatePcMeta(ctx context.Context, office, pcID string, patch models.PcPatch) (*models.PcRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.updatePc(ctx, office, pcID, func(pc *models.PcRecord) {
		patch.Apply(pc)
	})
}

// SetPcStatus records a presence change. lastSeen always moves forward, even
// when the clock does not.
func (r *Registry) SetPcStatus(ctx context.Context, office, pcID string, online bool) (*models.PcRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.updatePc(ctx, office, pcID, func(pc *models.PcRecord) {
		pc.Online = online
		pc.LastSeen = r.stamp(pc.LastSeen)
	})
}

// RegisterPc is the operator hello: merge meta, mark online, refresh
// lastSeen, one persist.
func (r *Registry) RegisterPc(ctx context.Context, office, pcID string, meta models.PcPatch) (*models.PcRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.updatePc(ctx, office, pcID, func(pc *models.PcRecord) {
		meta.Apply(pc)
		pc.Online = true
		pc.LastSeen = r.stamp(pc.LastSeen)
	})
}

func (r *Registry) updatePc(ctx context.Context, office, pcID string, fn func(pc *models.PcRecord)) (*models.PcRecord, error) {
	if pcID == "" {
		return nil, fmt.Errorf("%w: empty pc id", common.ErrInvalidPayload)
	}

	o, err := r.mutate(ctx, office, func(o *models.Office) error {
		pc, ok := o.Pcs[pcID]
		if !ok {
			pc = models.NewPcRecord(pcID)
			o.Pcs[pcID] = pc
		}
		fn(pc)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return o.Pcs[pcID].Clone(), nil
}

func (r *Registry) stamp(prev int64) int64 {
	now := timex.NowMillis(r.now())
	if now <= prev {
		return prev + 1
	}
	return now
}

// BuildSnapshot derives the master view. Offices are ordered by name and
// PCs by id so repeated snapshots of the same state are identical.
func (r *Registry) BuildSnapshot() models.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := models.Snapshot{Offices: []models.SnapshotOffice{}}
	for _, name := range r.officeNames() {
		o := r.doc.Offices[name]

		ids := make([]string, 0, len(o.Pcs))
		for id := range o.Pcs {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		so := models.SnapshotOffice{
			Office: name,
			Config: o.Config.Clone(),
			Tokens: o.Tokens,
			Pcs:    make([]models.SnapshotPc, 0, len(ids)),
		}
		for _, id := range ids {
			pc := o.Pcs[id].Clone()
			so.Pcs = append(so.Pcs, models.SnapshotPc{PcID: id, PcRecord: *pc})
			if pc.Online {
				snap.PcsOnline++
			}
		}
		snap.Offices = append(snap.Offices, so)
	}
	return snap
}

// Document returns a deep copy of the current state.
func (r *Registry) Document() *models.Document {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.doc.Clone()
}

func (r *Registry) officeNames() []string {
	names := make([]string, 0, len(r.doc.Offices))
	for name := range r.doc.Offices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
