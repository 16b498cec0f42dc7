package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quietloop/semcache/pkg/semcache"
)

// baseStore is a minimal in-memory Store double standing in for Postgres.
type baseStore struct{ rows map[uuid.UUID]semcache.AnswerRecord }

func newBaseStore() *baseStore { return &baseStore{rows: map[uuid.UUID]semcache.AnswerRecord{}} }

func (b *baseStore) InsertOrReplaceAnswer(_ context.Context, rec semcache.AnswerRecord) error {
	b.rows[rec.ID] = rec
	return nil
}
func (b *baseStore) InsertOrReplaceCompressed(context.Context, semcache.CompressedRecord) error {
	return nil
}
func (b *baseStore) InsertOrReplaceChunks(context.Context, semcache.ChunkRecord) error { return nil }
func (b *baseStore) FetchAnswersByIDs(context.Context, []uuid.UUID) ([]semcache.AnswerRecord, error) {
	return nil, nil
}
func (b *baseStore) FetchCompressedByIDs(context.Context, []uuid.UUID) ([]semcache.CompressedRecord, error) {
	return nil, nil
}
func (b *baseStore) FetchChunksByIDs(context.Context, []uuid.UUID) ([]semcache.ChunkRecord, error) {
	return nil, nil
}

func (b *baseStore) FindLiveAnswer(_ context.Context, queryText, scopeTag string, _ time.Time) (*semcache.AnswerRecord, error) {
	for _, r := range b.rows {
		if r.QueryText == queryText && r.ScopeTag == scopeTag {
			cp := r
			return &cp, nil
		}
	}
	return nil, nil
}
func (b *baseStore) FindLiveCompressed(context.Context, string, string, time.Time) (*semcache.CompressedRecord, error) {
	return nil, nil
}
func (b *baseStore) FindLiveChunks(context.Context, string, string, time.Time) (*semcache.ChunkRecord, error) {
	return nil, nil
}

func (b *baseStore) UpdateAccess(context.Context, semcache.Layer, uuid.UUID, time.Time) error { return nil }
func (b *baseStore) DeleteByIDs(context.Context, semcache.Layer, []uuid.UUID) (int64, error) {
	return 0, nil
}
func (b *baseStore) DeleteWhere(context.Context, semcache.Layer, Predicate) ([]uuid.UUID, error) {
	return nil, nil
}
func (b *baseStore) Count(context.Context, semcache.Layer) (int64, error) { return int64(len(b.rows)), nil }
func (b *baseStore) IterIDsByLastAccessed(context.Context, semcache.Layer, bool, int) ([]uuid.UUID, error) {
	return nil, nil
}
func (b *baseStore) SnapshotEmbeddings(context.Context, semcache.Layer, time.Time) (map[uuid.UUID]semcache.Embedding, error) {
	return nil, nil
}
func (b *baseStore) RecordQuery(context.Context, string, semcache.ResultKind, int64, float64) error {
	return nil
}
func (b *baseStore) StatsForDate(context.Context, string) (semcache.StatsSnapshot, error) {
	return semcache.StatsSnapshot{}, nil
}
func (b *baseStore) EnsureDimension(context.Context, int) error { return nil }
func (b *baseStore) HealthCheck(context.Context) error          { return nil }
func (b *baseStore) Close() error                                { return nil }

func newTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestRedisFastPath_WriteThenReadHitsRedis(t *testing.T) {
	client, _ := newTestRedis(t)
	base := newBaseStore()
	fp := NewRedisFastPath(base, client, time.Minute, nil, nil)

	rec := semcache.AnswerRecord{
		Header: semcache.Header{
			ID: uuid.New(), QueryText: "q", ScopeTag: "global",
			Embedding: semcache.Embedding{1, 0}, CreatedAt: time.Now(), LastAccessedAt: time.Now(),
			TTLSeconds: 3600, SourceVersion: "v1",
		},
		AnswerText: "answer",
	}
	require.NoError(t, fp.InsertOrReplaceAnswer(context.Background(), rec))

	// Remove the row from the base store directly so a later read can only
	// be satisfied by Redis, proving the fast path actually served it.
	delete(base.rows, rec.ID)

	got, err := fp.FindLiveAnswer(context.Background(), "q", "global", time.Now())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "answer", got.AnswerText)
	assert.Equal(t, rec.ID, got.ID)
}

func TestRedisFastPath_FallsBackToStoreOnMiss(t *testing.T) {
	client, _ := newTestRedis(t)
	base := newBaseStore()
	fp := NewRedisFastPath(base, client, time.Minute, nil, nil)

	rec := semcache.AnswerRecord{
		Header: semcache.Header{ID: uuid.New(), QueryText: "only in postgres", ScopeTag: "global", CreatedAt: time.Now(), LastAccessedAt: time.Now()},
		AnswerText: "pg answer",
	}
	base.rows[rec.ID] = rec

	got, err := fp.FindLiveAnswer(context.Background(), "only in postgres", "global", time.Now())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "pg answer", got.AnswerText)
}

func TestRedisFastPath_FallsBackWhenRedisUnreachable(t *testing.T) {
	client, mr := newTestRedis(t)
	base := newBaseStore()
	fp := NewRedisFastPath(base, client, time.Minute, nil, nil)

	rec := semcache.AnswerRecord{
		Header: semcache.Header{ID: uuid.New(), QueryText: "q", ScopeTag: "global", CreatedAt: time.Now(), LastAccessedAt: time.Now()},
		AnswerText: "pg answer",
	}
	base.rows[rec.ID] = rec
	mr.Close() // simulate Redis outage after the client was constructed

	got, err := fp.FindLiveAnswer(context.Background(), "q", "global", time.Now())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "pg answer", got.AnswerText)
}

func TestRedisFastPath_NilClientPassesThroughDirectly(t *testing.T) {
	base := newBaseStore()
	fp := NewRedisFastPath(base, nil, time.Minute, nil, nil)

	rec := semcache.AnswerRecord{
		Header:     semcache.Header{ID: uuid.New(), QueryText: "q", ScopeTag: "global", CreatedAt: time.Now(), LastAccessedAt: time.Now()},
		AnswerText: "direct",
	}
	require.NoError(t, fp.InsertOrReplaceAnswer(context.Background(), rec))

	got, err := fp.FindLiveAnswer(context.Background(), "q", "global", time.Now())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "direct", got.AnswerText)
}
