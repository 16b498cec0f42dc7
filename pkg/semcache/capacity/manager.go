// Package capacity implements capacity and TTL management (C5): a
// background sweep that expires TTL'd rows and, once a layer exceeds its
// configured cap, evicts the lowest-ranked entries in batches. Grounded on
// the teacher's eviction/lru.go LRUEvictor (ticker-driven Run loop,
// batched eviction, metrics/logging shape); the rank formula itself comes
// from the spec rather than the teacher (the teacher evicts by pure
// recency, this ranks by a weighted recency/frequency blend).
package capacity

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/quietloop/semcache/pkg/observability"
	"github.com/quietloop/semcache/pkg/semcache"
	"github.com/quietloop/semcache/pkg/semcache/annindex"
	"github.com/quietloop/semcache/pkg/semcache/store"
)

// headerCacheSize bounds the rank-formula header cache; rankCandidates
// re-fetches past this many distinct ids per process lifetime, same as
// any bounded LRU used purely as a fetch-avoidance layer over the store.
const headerCacheSize = 4096

// headerCacheTTL is how long a cached header is trusted before a sweep
// re-fetches it from the store rather than ranking against a stale
// last_accessed_at/access_count pair.
const headerCacheTTL = 30 * time.Second

type cachedHeader struct {
	header   semcache.Header
	cachedAt time.Time
}

// Indexes bundles the three per-layer ANN indexes so the manager can evict
// an id from its index the moment it evicts the backing row.
type Indexes struct {
	L1 annindex.Index
	L2 annindex.Index
	L3 annindex.Index
}

func (ix Indexes) forLayer(l semcache.Layer) annindex.Index {
	switch l {
	case semcache.LayerL1:
		return ix.L1
	case semcache.LayerL2:
		return ix.L2
	default:
		return ix.L3
	}
}

// Manager runs the TTL sweep and size-cap eviction described in spec §4.5.
type Manager struct {
	store       store.Store
	indexes     Indexes
	cfg         semcache.Config
	logger      observability.Logger
	metrics     observability.MetricsClient
	headerCache *lru.Cache[uuid.UUID, cachedHeader]
}

// NewManager builds a capacity Manager over the given store and indexes.
func NewManager(st store.Store, indexes Indexes, cfg semcache.Config, logger observability.Logger, metrics observability.MetricsClient) *Manager {
	if logger == nil {
		logger = observability.NewLogger("semcache.capacity")
	}
	if metrics == nil {
		metrics = observability.NewMetricsClient()
	}
	headerCache, _ := lru.New[uuid.UUID, cachedHeader](headerCacheSize)
	return &Manager{store: st, indexes: indexes, cfg: cfg, logger: logger, metrics: metrics, headerCache: headerCache}
}

// Run starts the background sweep loop; it blocks until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	interval := time.Duration(m.cfg.TTLSweepIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Hour
	}
	m.logger.Info("starting capacity sweep", map[string]interface{}{
		"interval_seconds": interval.Seconds(),
		"max_entries":      m.cfg.MaxEntries,
	})

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.runSweepCycle(ctx)
	for {
		select {
		case <-ticker.C:
			m.runSweepCycle(ctx)
		case <-ctx.Done():
			m.logger.Info("stopping capacity sweep", map[string]interface{}{})
			return
		}
	}
}

func (m *Manager) runSweepCycle(ctx context.Context) {
	for _, layer := range []semcache.Layer{semcache.LayerL1, semcache.LayerL2, semcache.LayerL3} {
		if err := m.SweepTTL(ctx, layer); err != nil {
			m.logger.Error("ttl sweep failed", map[string]interface{}{"layer": layer.String(), "error": err.Error()})
		}
	}
	// The size cap applies to L1 only; L2/L3 rows track L1 by shared id and
	// are evicted as a side effect of L1's eviction, not against their own
	// independent cap (spec §4.5).
	if err := m.EnforceCap(ctx); err != nil {
		m.logger.Error("cap enforcement failed", map[string]interface{}{"error": err.Error()})
	}
	for _, layer := range []semcache.Layer{semcache.LayerL1, semcache.LayerL2, semcache.LayerL3} {
		if err := m.MaybeRebuildIndex(ctx, layer); err != nil {
			m.logger.Error("index rebuild failed", map[string]interface{}{"layer": layer.String(), "error": err.Error()})
		}
	}
}

// SweepTTL deletes every row in layer whose TTL has elapsed and retires the
// same ids from the layer's ANN index (spec §4.5: "TTL sweep runs on a
// fixed interval... removes expired rows from both the store and the
// index").
func (m *Manager) SweepTTL(ctx context.Context, layer semcache.Layer) error {
	ids, err := m.store.DeleteWhere(ctx, layer, store.Predicate{Kind: store.PredicateTTLExpired})
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	idx := m.indexes.forLayer(layer)
	for _, id := range ids {
		_ = idx.Remove(id)
	}
	m.evictHeaderCache(ids)
	m.metrics.IncrementCounterWithLabels("semcache.evictions", float64(len(ids)), map[string]string{
		"layer": layer.String(), "reason": "ttl_expired",
	})
	m.logger.Info("ttl sweep evicted entries", map[string]interface{}{
		"layer": layer.String(), "count": len(ids),
	})
	return nil
}

type rankedEntry struct {
	id   uuid.UUID
	rank float64
}

func (m *Manager) cacheHeader(h semcache.Header, now time.Time) {
	if m.headerCache == nil {
		return
	}
	m.headerCache.Add(h.ID, cachedHeader{header: h, cachedAt: now})
}

func (m *Manager) evictHeaderCache(ids []uuid.UUID) {
	if m.headerCache == nil {
		return
	}
	for _, id := range ids {
		m.headerCache.Remove(id)
	}
}

// EnforceCap evicts L1's lowest-ranked entries once its live count exceeds
// cfg.MaxEntries, down to cfg.LowWatermark*MaxEntries, in batches of
// cfg.EvictionBatchRate (spec §4.5: "max_entries — size cap for L1 (L2/L3
// track L1 by shared id)"). The rank formula is:
//
//	rank = w_recency * normalize(now - last_accessed_at) + w_frequency * (1 / (1 + access_count))
//
// lower rank survives; higher rank (stale, rarely used) is evicted first.
// Every evicted L1 id is also deleted from L2 and L3, store and index alike
// (spec §4.5: "L2 and L3 rows sharing an id with an evicted L1 row are
// evicted too").
func (m *Manager) EnforceCap(ctx context.Context) error {
	const layer = semcache.LayerL1

	count, err := m.store.Count(ctx, layer)
	if err != nil {
		return err
	}
	cap64 := int64(m.cfg.MaxEntries)
	if count <= cap64 {
		return nil
	}

	target := int64(float64(cap64) * m.cfg.LowWatermark)
	toEvict := count - target
	if toEvict <= 0 {
		return nil
	}

	batchSize := int(float64(m.cfg.MaxEntries) * m.cfg.EvictionBatchRate)
	if batchSize <= 0 {
		batchSize = 100
	}
	fetchLimit := int(toEvict)
	if fetchLimit > batchSize*10 {
		fetchLimit = batchSize * 10
	}

	candidateIDs, err := m.store.IterIDsByLastAccessed(ctx, layer, true, fetchLimit)
	if err != nil {
		return err
	}
	ranked, err := m.rankCandidates(ctx, layer, candidateIDs)
	if err != nil {
		return err
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].rank > ranked[j].rank })

	evictedTotal := 0
	idx := m.indexes.forLayer(layer)
	for start := 0; start < len(ranked) && int64(evictedTotal) < toEvict; start += batchSize {
		end := start + batchSize
		if end > len(ranked) {
			end = len(ranked)
		}
		batch := ranked[start:end]
		ids := make([]uuid.UUID, len(batch))
		for i, r := range batch {
			ids[i] = r.id
		}
		n, err := m.store.DeleteByIDs(ctx, layer, ids)
		if err != nil {
			m.logger.Error("batch eviction failed", map[string]interface{}{"layer": layer.String(), "error": err.Error()})
			continue
		}
		for _, id := range ids {
			_ = idx.Remove(id)
		}
		m.evictHeaderCache(ids)
		m.cascadeEvict(ctx, ids)
		evictedTotal += int(n)
	}

	m.metrics.IncrementCounterWithLabels("semcache.evictions", float64(evictedTotal), map[string]string{
		"layer": layer.String(), "reason": "size_limit",
	})
	m.logger.Info("size-cap eviction complete", map[string]interface{}{
		"layer": layer.String(), "evicted": evictedTotal, "target": target, "before": count,
	})
	return nil
}

// cascadeEvict removes ids from L2 and L3 — store and index alike — after
// they were evicted from L1 by EnforceCap. Best-effort: a failure here
// leaves an orphaned L2/L3 row behind, which the next TTL sweep or a
// subsequent cascade pass will also attempt, rather than blocking L1's own
// eviction on it.
func (m *Manager) cascadeEvict(ctx context.Context, ids []uuid.UUID) {
	for _, layer := range []semcache.Layer{semcache.LayerL2, semcache.LayerL3} {
		n, err := m.store.DeleteByIDs(ctx, layer, ids)
		if err != nil {
			m.logger.Error("cascade eviction failed", map[string]interface{}{"layer": layer.String(), "error": err.Error()})
			continue
		}
		if n == 0 {
			continue
		}
		idx := m.indexes.forLayer(layer)
		for _, id := range ids {
			_ = idx.Remove(id)
		}
		m.metrics.IncrementCounterWithLabels("semcache.evictions", float64(n), map[string]string{
			"layer": layer.String(), "reason": "cascade",
		})
	}
}

// rankCandidates fetches the last_accessed_at/access_count pair for each
// candidate id and scores it with the weighted rank formula. IDs are
// fetched via the layer's own FetchXByIDs rather than a bespoke stats query,
// keeping the store interface narrow. A bounded LRU cache of recently-seen
// headers avoids re-fetching ids that were ranked (but not evicted) in a
// previous sweep cycle within headerCacheTTL.
func (m *Manager) rankCandidates(ctx context.Context, layer semcache.Layer, ids []uuid.UUID) ([]rankedEntry, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	now := time.Now()

	var headers []semcache.Header
	var uncached []uuid.UUID
	for _, id := range ids {
		if m.headerCache != nil {
			if c, ok := m.headerCache.Get(id); ok && now.Sub(c.cachedAt) < headerCacheTTL {
				headers = append(headers, c.header)
				continue
			}
		}
		uncached = append(uncached, id)
	}

	switch layer {
	case semcache.LayerL1:
		recs, err := m.store.FetchAnswersByIDs(ctx, uncached)
		if err != nil {
			return nil, err
		}
		for _, r := range recs {
			headers = append(headers, r.Header)
			m.cacheHeader(r.Header, now)
		}
	case semcache.LayerL2:
		recs, err := m.store.FetchCompressedByIDs(ctx, uncached)
		if err != nil {
			return nil, err
		}
		for _, r := range recs {
			headers = append(headers, r.Header)
			m.cacheHeader(r.Header, now)
		}
	default:
		recs, err := m.store.FetchChunksByIDs(ctx, uncached)
		if err != nil {
			return nil, err
		}
		for _, r := range recs {
			headers = append(headers, r.Header)
			m.cacheHeader(r.Header, now)
		}
	}

	var maxAge float64
	ages := make([]float64, len(headers))
	for i, h := range headers {
		age := now.Sub(h.LastAccessedAt).Seconds()
		if age < 0 {
			age = 0
		}
		ages[i] = age
		if age > maxAge {
			maxAge = age
		}
	}

	out := make([]rankedEntry, len(headers))
	wRecency, wFrequency := m.cfg.EvictionWeights.Recency, m.cfg.EvictionWeights.Frequency
	for i, h := range headers {
		normAge := 0.0
		if maxAge > 0 {
			normAge = ages[i] / maxAge
		}
		freqScore := 1.0 / (1.0 + float64(h.AccessCount))
		out[i] = rankedEntry{
			id:   h.ID,
			rank: wRecency*normAge + wFrequency*freqScore,
		}
	}
	return out, nil
}

// MaybeRebuildIndex rebuilds layer's linear index from a fresh store
// snapshot once its tombstone ratio crosses cfg.TombstoneRebuildRatio (spec
// §4.5: "index tombstones accumulated by deletions trigger a full rebuild
// when tombstones exceed 20% of live size"). pgvector-backed indexes report
// Rebuild as a no-op so this is harmless to call unconditionally once the
// live set has crossed brute_force_cutoff.
func (m *Manager) MaybeRebuildIndex(ctx context.Context, layer semcache.Layer) error {
	idx := m.indexes.forLayer(layer)
	linear, ok := idx.(*annindex.LinearIndex)
	if !ok {
		return nil
	}
	if linear.TombstoneRatio() < m.cfg.TombstoneRebuildRatio {
		return nil
	}
	snapshot, err := m.store.SnapshotEmbeddings(ctx, layer, time.Now())
	if err != nil {
		return err
	}
	linear.Rebuild(snapshot)
	m.logger.Info("rebuilt index after tombstone threshold", map[string]interface{}{
		"layer": layer.String(), "entries": len(snapshot),
	})
	return nil
}
