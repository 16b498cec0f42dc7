package capacity

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quietloop/semcache/pkg/semcache"
	"github.com/quietloop/semcache/pkg/semcache/annindex"
	"github.com/quietloop/semcache/pkg/semcache/store"
)

// fakeStore is a minimal in-memory store.Store double scoped to what the
// capacity manager calls: TTL/size-cap deletion, header lookup, and
// last-accessed iteration.
type fakeStore struct {
	rows map[uuid.UUID]semcache.AnswerRecord
	// l2Rows/l3Rows track presence only, enough to assert that EnforceCap's
	// L1 eviction cascades into L2/L3 by shared id.
	l2Rows map[uuid.UUID]bool
	l3Rows map[uuid.UUID]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rows:   map[uuid.UUID]semcache.AnswerRecord{},
		l2Rows: map[uuid.UUID]bool{},
		l3Rows: map[uuid.UUID]bool{},
	}
}

func (f *fakeStore) InsertOrReplaceAnswer(_ context.Context, rec semcache.AnswerRecord) error {
	f.rows[rec.ID] = rec
	return nil
}
func (f *fakeStore) InsertOrReplaceCompressed(context.Context, semcache.CompressedRecord) error {
	return nil
}
func (f *fakeStore) InsertOrReplaceChunks(context.Context, semcache.ChunkRecord) error { return nil }

func (f *fakeStore) FetchAnswersByIDs(_ context.Context, ids []uuid.UUID) ([]semcache.AnswerRecord, error) {
	var out []semcache.AnswerRecord
	for _, id := range ids {
		if r, ok := f.rows[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}
func (f *fakeStore) FetchCompressedByIDs(context.Context, []uuid.UUID) ([]semcache.CompressedRecord, error) {
	return nil, nil
}
func (f *fakeStore) FetchChunksByIDs(context.Context, []uuid.UUID) ([]semcache.ChunkRecord, error) {
	return nil, nil
}

func (f *fakeStore) FindLiveAnswer(context.Context, string, string, time.Time) (*semcache.AnswerRecord, error) {
	return nil, nil
}
func (f *fakeStore) FindLiveCompressed(context.Context, string, string, time.Time) (*semcache.CompressedRecord, error) {
	return nil, nil
}
func (f *fakeStore) FindLiveChunks(context.Context, string, string, time.Time) (*semcache.ChunkRecord, error) {
	return nil, nil
}

func (f *fakeStore) UpdateAccess(_ context.Context, _ semcache.Layer, id uuid.UUID, now time.Time) error {
	if r, ok := f.rows[id]; ok {
		r.LastAccessedAt = now
		f.rows[id] = r
	}
	return nil
}

func (f *fakeStore) DeleteByIDs(_ context.Context, layer semcache.Layer, ids []uuid.UUID) (int64, error) {
	var n int64
	switch layer {
	case semcache.LayerL2:
		for _, id := range ids {
			if f.l2Rows[id] {
				delete(f.l2Rows, id)
				n++
			}
		}
	case semcache.LayerL3:
		for _, id := range ids {
			if f.l3Rows[id] {
				delete(f.l3Rows, id)
				n++
			}
		}
	default:
		for _, id := range ids {
			if _, ok := f.rows[id]; ok {
				delete(f.rows, id)
				n++
			}
		}
	}
	return n, nil
}

// headerExpired duplicates the liveness check semcache.Header.expired
// performs internally (unexported, so not reachable from this package);
// TTLSeconds == 0 means "never expires".
func headerExpired(h semcache.Header, now time.Time) bool {
	if h.TTLSeconds == 0 {
		return false
	}
	return !h.CreatedAt.Add(time.Duration(h.TTLSeconds) * time.Second).After(now)
}

func (f *fakeStore) DeleteWhere(_ context.Context, _ semcache.Layer, pred store.Predicate) ([]uuid.UUID, error) {
	var matched []uuid.UUID
	now := time.Now()
	for id, r := range f.rows {
		if pred.Kind == store.PredicateTTLExpired && headerExpired(r.Header, now) {
			matched = append(matched, id)
			delete(f.rows, id)
		}
	}
	return matched, nil
}

func (f *fakeStore) Count(_ context.Context, _ semcache.Layer) (int64, error) {
	return int64(len(f.rows)), nil
}

func (f *fakeStore) IterIDsByLastAccessed(_ context.Context, _ semcache.Layer, ascending bool, limit int) ([]uuid.UUID, error) {
	type kv struct {
		id uuid.UUID
		t  time.Time
	}
	var all []kv
	for id, r := range f.rows {
		all = append(all, kv{id, r.LastAccessedAt})
	}
	sort.Slice(all, func(i, j int) bool {
		if ascending {
			return all[i].t.Before(all[j].t)
		}
		return all[i].t.After(all[j].t)
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	out := make([]uuid.UUID, len(all))
	for i, e := range all {
		out[i] = e.id
	}
	return out, nil
}

func (f *fakeStore) SnapshotEmbeddings(_ context.Context, _ semcache.Layer, now time.Time) (map[uuid.UUID]semcache.Embedding, error) {
	out := map[uuid.UUID]semcache.Embedding{}
	for id, r := range f.rows {
		if !headerExpired(r.Header, now) {
			out[id] = r.Embedding
		}
	}
	return out, nil
}

func (f *fakeStore) RecordQuery(context.Context, string, semcache.ResultKind, int64, float64) error {
	return nil
}
func (f *fakeStore) StatsForDate(context.Context, string) (semcache.StatsSnapshot, error) {
	return semcache.StatsSnapshot{}, nil
}
func (f *fakeStore) EnsureDimension(context.Context, int) error { return nil }
func (f *fakeStore) HealthCheck(context.Context) error          { return nil }
func (f *fakeStore) Close() error                                { return nil }

func newTestManager(st *fakeStore, cfg semcache.Config) *Manager {
	indexes := Indexes{L1: annindex.NewLinearIndex(), L2: annindex.NewLinearIndex(), L3: annindex.NewLinearIndex()}
	return NewManager(st, indexes, cfg, nil, nil)
}

func TestSweepTTL_RemovesExpiredRows(t *testing.T) {
	st := newFakeStore()
	now := time.Now()
	expired := uuid.New()
	st.rows[expired] = semcache.AnswerRecord{Header: semcache.Header{
		ID: expired, CreatedAt: now.Add(-2 * time.Hour), TTLSeconds: 60, LastAccessedAt: now,
	}}
	live := uuid.New()
	st.rows[live] = semcache.AnswerRecord{Header: semcache.Header{
		ID: live, CreatedAt: now, TTLSeconds: 3600, LastAccessedAt: now,
	}}

	cfg := semcache.DefaultConfig()
	mgr := newTestManager(st, cfg)

	require.NoError(t, mgr.SweepTTL(context.Background(), semcache.LayerL1))
	assert.Len(t, st.rows, 1)
	_, stillThere := st.rows[live]
	assert.True(t, stillThere)
}

func TestEnforceCap_EvictsDownToLowWatermark(t *testing.T) {
	st := newFakeStore()
	now := time.Now()
	cfg := semcache.DefaultConfig()
	cfg.MaxEntries = 10
	cfg.LowWatermark = 0.8
	cfg.EvictionBatchRate = 0.5 // batch size 5

	// 12 live rows, oldest access times first.
	for i := 0; i < 12; i++ {
		id := uuid.New()
		st.rows[id] = semcache.AnswerRecord{Header: semcache.Header{
			ID: id, CreatedAt: now, TTLSeconds: 0,
			LastAccessedAt: now.Add(-time.Duration(12-i) * time.Minute),
			AccessCount:    int64(i),
		}}
	}

	mgr := newTestManager(st, cfg)
	require.NoError(t, mgr.EnforceCap(context.Background()))

	// target = 10*0.8 = 8, so at least 4 entries evicted.
	assert.LessOrEqual(t, len(st.rows), 8)
}

func TestEnforceCap_CascadesEvictionToL2AndL3(t *testing.T) {
	st := newFakeStore()
	now := time.Now()
	cfg := semcache.DefaultConfig()
	cfg.MaxEntries = 10
	cfg.LowWatermark = 0.8
	cfg.EvictionBatchRate = 1.0

	ids := make([]uuid.UUID, 12)
	for i := 0; i < 12; i++ {
		id := uuid.New()
		ids[i] = id
		st.rows[id] = semcache.AnswerRecord{Header: semcache.Header{
			ID: id, CreatedAt: now, TTLSeconds: 0,
			LastAccessedAt: now.Add(-time.Duration(12-i) * time.Minute),
			AccessCount:    int64(i),
		}}
		st.l2Rows[id] = true
		st.l3Rows[id] = true
	}

	mgr := newTestManager(st, cfg)
	require.NoError(t, mgr.EnforceCap(context.Background()))

	require.Less(t, len(st.rows), 12)
	for id := range st.rows {
		assert.True(t, st.l2Rows[id], "surviving L1 id %s should still have an L2 row", id)
		assert.True(t, st.l3Rows[id], "surviving L1 id %s should still have an L3 row", id)
	}
	for _, id := range ids {
		if _, stillL1 := st.rows[id]; !stillL1 {
			assert.False(t, st.l2Rows[id], "evicted L1 id %s should have lost its L2 row", id)
			assert.False(t, st.l3Rows[id], "evicted L1 id %s should have lost its L3 row", id)
		}
	}
}

func TestEnforceCap_NoOpBelowCap(t *testing.T) {
	st := newFakeStore()
	now := time.Now()
	for i := 0; i < 3; i++ {
		id := uuid.New()
		st.rows[id] = semcache.AnswerRecord{Header: semcache.Header{ID: id, CreatedAt: now, LastAccessedAt: now}}
	}
	cfg := semcache.DefaultConfig()
	cfg.MaxEntries = 100
	mgr := newTestManager(st, cfg)

	require.NoError(t, mgr.EnforceCap(context.Background()))
	assert.Len(t, st.rows, 3)
}

func TestMaybeRebuildIndex_RebuildsOnceTombstoneRatioCrossesThreshold(t *testing.T) {
	st := newFakeStore()
	now := time.Now()
	id1, id2 := uuid.New(), uuid.New()
	st.rows[id1] = semcache.AnswerRecord{Header: semcache.Header{ID: id1, CreatedAt: now, LastAccessedAt: now, Embedding: semcache.Embedding{1, 0}}}
	st.rows[id2] = semcache.AnswerRecord{Header: semcache.Header{ID: id2, CreatedAt: now, LastAccessedAt: now, Embedding: semcache.Embedding{0, 1}}}

	cfg := semcache.DefaultConfig()
	cfg.TombstoneRebuildRatio = 0.2
	mgr := newTestManager(st, cfg)

	idx := mgr.indexes.L1.(*annindex.LinearIndex)
	require.NoError(t, idx.Add(id1, semcache.Embedding{1, 0}))
	require.NoError(t, idx.Add(id2, semcache.Embedding{0, 1}))
	require.NoError(t, idx.Remove(id1))
	assert.Greater(t, idx.TombstoneRatio(), 0.0)

	require.NoError(t, mgr.MaybeRebuildIndex(context.Background(), semcache.LayerL1))
	assert.Equal(t, 0.0, idx.TombstoneRatio())
}
