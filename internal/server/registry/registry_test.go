package registry

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/chinbo/chinbo-server/internal/common"
	"github.com/chinbo/chinbo-server/internal/logging"
	"github.com/chinbo/chinbo-server/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu     sync.Mutex
	writes int
	last   []byte
	fail   error
}

func (m *memStore) Persist(_ context.Context, doc *models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	m.writes++
	m.last = b
	return nil
}

var global = models.TokenPair{MasterToken: "gm", OpToken: "go"}

func newRegistry(t *testing.T) (*Registry, *memStore) {
	t.Helper()
	st := &memStore{}
	return New(models.DefaultDocument(global), st, logging.Nop{}), st
}

func fixedClock(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

func TestEnsureOffice_Idempotent(t *testing.T) {
	r, st := newRegistry(t)
	ctx := context.Background()

	a, err := r.EnsureOffice(ctx, "Norte")
	require.NoError(t, err)
	assert.Equal(t, 1, st.writes)
	assert.Equal(t, global, a.Tokens)
	assert.Equal(t, models.DefaultConfiguration(), a.Config)

	b, err := r.EnsureOffice(ctx, "Norte")
	require.NoError(t, err)
	assert.Equal(t, 1, st.writes)
	assert.Equal(t, a, b)

	_, err = r.EnsureOffice(ctx, common.DefaultOfficeName)
	require.NoError(t, err)
	assert.Equal(t, 1, st.writes)
}

func TestEnsureOffice_EmptyName(t *testing.T) {
	r, st := newRegistry(t)

	_, err := r.EnsureOffice(context.Background(), "")
	require.ErrorIs(t, err, common.ErrInvalidPayload)
	assert.Zero(t, st.writes)
}

func TestTokens_Fallback(t *testing.T) {
	doc := models.DefaultDocument(global)
	doc.Offices["A"] = &models.Office{Config: models.DefaultConfiguration(), Pcs: map[string]*models.PcRecord{}, Tokens: models.TokenPair{OpToken: "A_OP"}}
	doc.Offices["B"] = &models.Office{Config: models.DefaultConfiguration(), Pcs: map[string]*models.PcRecord{}, Tokens: models.TokenPair{MasterToken: "B_M", OpToken: "B_OP"}}
	r := New(doc, &memStore{}, logging.Nop{})

	assert.Equal(t, "A_OP", r.OpToken("A"))
	assert.Equal(t, "gm", r.MasterToken("A"))
	assert.Equal(t, "B_OP", r.OpToken("B"))
	assert.Equal(t, "B_M", r.MasterToken("B"))
	assert.Equal(t, "go", r.OpToken("unknown"))
	assert.Equal(t, global, r.GlobalTokens())

	assert.Equal(t, []string{"gm", "gm", "B_M", "gm"}, r.MasterTokens())
}

func TestUpdateConfig_ReplacesWholesale(t *testing.T) {
	r, st := newRegistry(t)
	ctx := context.Background()

	cfg, err := models.ParseConfiguration(json.RawMessage(`{"groups":[{"id":"g","name":"G","buttons":[{"id":"x","type":"simple","label":"L","text":"T"}]}],"theme":"dark"}`))
	require.NoError(t, err)

	got, err := r.UpdateConfig(ctx, common.DefaultOfficeName, cfg)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
	assert.Equal(t, 1, st.writes)

	o, ok := r.Office(common.DefaultOfficeName)
	require.True(t, ok)
	require.Len(t, o.Config.Groups, 1)
	assert.Equal(t, "g", o.Config.Groups[0].ID)
	assert.JSONEq(t, `"dark"`, string(o.Config.Extra["theme"]))
}

func TestUpdateConfig_InvalidButtonNoMutation(t *testing.T) {
	r, st := newRegistry(t)
	before := r.Document()

	bad := models.Configuration{Groups: []models.Group{{ID: "g", Buttons: []models.Button{{ID: "x", Kind: "bogus"}}}}}
	_, err := r.UpdateConfig(context.Background(), common.DefaultOfficeName, bad)
	require.ErrorIs(t, err, common.ErrInvalidPayload)

	assert.Zero(t, st.writes)
	assert.Equal(t, before, r.Document())
}

func TestUpdatePcMeta_CreatesAndMerges(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()

	patch, err := models.ParsePcPatch(json.RawMessage(`{"name":"Caja","ip":"10.0.0.7","online":true,"lastSeen":99}`))
	require.NoError(t, err)

	pc, err := r.UpdatePcMeta(ctx, "Sur", "pc_7", patch)
	require.NoError(t, err)
	assert.Equal(t, "Caja", pc.Name)
	assert.False(t, pc.Online)
	assert.Zero(t, pc.LastSeen)
	assert.JSONEq(t, `"10.0.0.7"`, string(pc.Meta["ip"]))

	patch, err = models.ParsePcPatch(json.RawMessage(`{"ip":"10.0.0.8"}`))
	require.NoError(t, err)
	pc, err = r.UpdatePcMeta(ctx, "Sur", "pc_7", patch)
	require.NoError(t, err)
	assert.Equal(t, "Caja", pc.Name)
	assert.JSONEq(t, `"10.0.0.8"`, string(pc.Meta["ip"]))
}

func TestUpdatePcMeta_EmptyPcID(t *testing.T) {
	r, _ := newRegistry(t)

	_, err := r.UpdatePcMeta(context.Background(), "Sur", "", models.PcPatch{})
	require.ErrorIs(t, err, common.ErrInvalidPayload)
	_, ok := r.Office("Sur")
	assert.False(t, ok)
}

func TestSetPcStatus_LastSeenStrictlyIncreases(t *testing.T) {
	r, _ := newRegistry(t)
	r.now = fixedClock(1_000)
	ctx := context.Background()

	on, err := r.SetPcStatus(ctx, common.DefaultOfficeName, "pc_001", true)
	require.NoError(t, err)
	assert.True(t, on.Online)
	assert.Equal(t, int64(1_000), on.LastSeen)

	// same clock reading
	off, err := r.SetPcStatus(ctx, common.DefaultOfficeName, "pc_001", false)
	require.NoError(t, err)
	assert.False(t, off.Online)
	assert.Equal(t, int64(1_001), off.LastSeen)

	// clock moved backwards
	r.now = fixedClock(500)
	again, err := r.SetPcStatus(ctx, common.DefaultOfficeName, "pc_001", true)
	require.NoError(t, err)
	assert.Equal(t, int64(1_002), again.LastSeen)

	r.now = fixedClock(5_000)
	later, err := r.SetPcStatus(ctx, common.DefaultOfficeName, "pc_001", false)
	require.NoError(t, err)
	assert.Equal(t, int64(5_000), later.LastSeen)
}

func TestRegisterPc_SinglePersist(t *testing.T) {
	r, st := newRegistry(t)
	r.now = fixedClock(42)

	meta, err := models.ParsePcPatch(json.RawMessage(`{"name":"Recepción","os":"win"}`))
	require.NoError(t, err)

	pc, err := r.RegisterPc(context.Background(), "Este", "pc_1", meta)
	require.NoError(t, err)
	assert.Equal(t, 1, st.writes)
	assert.True(t, pc.Online)
	assert.Equal(t, int64(42), pc.LastSeen)
	assert.Equal(t, "Recepción", pc.Name)
	assert.JSONEq(t, `"win"`, string(pc.Meta["os"]))

	var persisted models.Document
	require.NoError(t, json.Unmarshal(st.last, &persisted))
	require.Contains(t, persisted.Offices, "Este")
	assert.True(t, persisted.Offices["Este"].Pcs["pc_1"].Online)
}

func TestPersistFailure_RollsBack(t *testing.T) {
	r, st := newRegistry(t)
	ctx := context.Background()
	before := r.Document()

	st.fail = errors.New("disk full")

	_, err := r.EnsureOffice(ctx, "Nueva")
	require.Error(t, err)
	_, ok := r.Office("Nueva")
	assert.False(t, ok)

	_, err = r.SetPcStatus(ctx, common.DefaultOfficeName, "pc_001", true)
	require.Error(t, err)

	_, err = r.UpdateConfig(ctx, common.DefaultOfficeName, models.Configuration{Groups: []models.Group{}})
	require.Error(t, err)

	assert.Equal(t, before, r.Document())

	st.fail = nil
	pc, err := r.SetPcStatus(ctx, common.DefaultOfficeName, "pc_001", true)
	require.NoError(t, err)
	assert.True(t, pc.Online)
}

func TestBuildSnapshot_CompleteAndOrdered(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()

	_, err := r.SetPcStatus(ctx, "Zeta", "pc_b", true)
	require.NoError(t, err)
	_, err = r.SetPcStatus(ctx, "Zeta", "pc_a", false)
	require.NoError(t, err)
	_, err = r.SetPcStatus(ctx, "Alfa", "pc_1", true)
	require.NoError(t, err)

	snap := r.BuildSnapshot()

	names := []string{}
	for _, o := range snap.Offices {
		names = append(names, o.Office)
	}
	assert.Equal(t, []string{"Alfa", common.DefaultOfficeName, "Zeta"}, names)

	zeta := snap.Offices[2]
	require.Len(t, zeta.Pcs, 2)
	assert.Equal(t, "pc_a", zeta.Pcs[0].PcID)
	assert.Equal(t, "pc_b", zeta.Pcs[1].PcID)

	doc := r.Document()
	online := 0
	for name, o := range doc.Offices {
		for id, pc := range o.Pcs {
			if pc.Online {
				online++
			}
			found := false
			for _, so := range snap.Offices {
				if so.Office != name {
					continue
				}
				for _, sp := range so.Pcs {
					if sp.PcID == id {
						found = true
						assert.Equal(t, pc.Online, sp.Online)
					}
				}
			}
			assert.True(t, found, "pc %s/%s missing from snapshot", name, id)
		}
	}
	assert.Equal(t, online, snap.PcsOnline)
	assert.Equal(t, 2, snap.PcsOnline)
}

func TestBuildSnapshot_NotAliased(t *testing.T) {
	r, _ := newRegistry(t)

	snap := r.BuildSnapshot()
	snap.Offices[0].Config.Groups[0].Name = "changed"
	snap.Offices[0].Pcs[0].Name = "changed"

	again := r.BuildSnapshot()
	assert.Equal(t, "Grupo 1", again.Offices[0].Config.Groups[0].Name)
	assert.Equal(t, "PC 1", again.Offices[0].Pcs[0].Name)
}

func TestConcurrentEdits_LastWriterWins(t *testing.T) {
	r, st := newRegistry(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cfg := models.Configuration{Groups: []models.Group{{ID: "g", Name: string(rune('a' + i))}}}
			_, err := r.UpdateConfig(ctx, common.DefaultOfficeName, cfg)
			assert.NoError(t, err)
			_ = r.BuildSnapshot()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, st.writes)

	var persisted models.Document
	require.NoError(t, json.Unmarshal(st.last, &persisted))
	o, ok := r.Office(common.DefaultOfficeName)
	require.True(t, ok)
	assert.Equal(t, o.Config.Groups[0].Name, persisted.Offices[common.DefaultOfficeName].Config.Groups[0].Name)
}
