package annindex

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quietloop/semcache/pkg/semcache"
)

// unit builds a test fixture vector. The fixtures used here are already
// axis-aligned unit vectors or identical on both sides of a comparison, so
// no runtime normalization step is needed.
func unit(dims ...float32) semcache.Embedding {
	return semcache.Embedding(dims)
}

func TestLinearIndex_AddSearchRemove(t *testing.T) {
	idx := NewLinearIndex()
	ctx := context.Background()

	idA, idB := uuid.New(), uuid.New()
	require.NoError(t, idx.Add(idA, unit(1, 0, 0)))
	require.NoError(t, idx.Add(idB, unit(0, 1, 0)))
	assert.Equal(t, 2, idx.Len())

	results, err := idx.Search(ctx, unit(1, 0, 0), 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, idA, results[0].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)

	require.NoError(t, idx.Remove(idA))
	assert.Equal(t, 1, idx.Len())
	assert.InDelta(t, 0.5, idx.TombstoneRatio(), 1e-9)

	results, err = idx.Search(ctx, unit(1, 0, 0), 2)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, idB, results[0].ID)
}

func TestLinearIndex_AddIsIdempotentForSameVector(t *testing.T) {
	idx := NewLinearIndex()
	id := uuid.New()
	v := unit(1, 0, 0)
	require.NoError(t, idx.Add(id, v))
	require.NoError(t, idx.Add(id, v))
	assert.Equal(t, 1, idx.Len())
}

func TestLinearIndex_RebuildResetsTombstones(t *testing.T) {
	idx := NewLinearIndex()
	id := uuid.New()
	require.NoError(t, idx.Add(id, unit(1, 0, 0)))
	require.NoError(t, idx.Remove(id))
	assert.Greater(t, idx.TombstoneRatio(), 0.0)

	idx.Rebuild(map[uuid.UUID]semcache.Embedding{id: unit(1, 0, 0)})
	assert.Equal(t, 0.0, idx.TombstoneRatio())
	assert.Equal(t, 1, idx.Len())
}

func TestSelfTest_PerfectRecallAgainstSelf(t *testing.T) {
	idx := NewLinearIndex()
	entries := map[uuid.UUID]semcache.Embedding{}
	for i := 0; i < 20; i++ {
		id := uuid.New()
		entries[id] = unit(float32(i%5), float32((i+1)%5), float32((i+2)%5))
	}
	idx.Rebuild(entries)

	var queries []semcache.Embedding
	for _, e := range entries {
		queries = append(queries, e)
	}

	result, err := SelfTest(context.Background(), idx, entries, queries, 5)
	require.NoError(t, err)
	assert.True(t, result.Passed)
	assert.Equal(t, 1.0, result.RecallAtK)
}
