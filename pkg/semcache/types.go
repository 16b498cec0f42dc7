// Package semcache implements the multi-tier semantic cache core: an
// embedding-indexed answer/context/chunk cache that sits in front of a
// RAG+LLM pipeline.
package semcache

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Layer identifies one of the three cache tiers.
type Layer int

const (
	LayerL1 Layer = iota // final answers
	LayerL2              // compressed/analyzed context
	LayerL3              // retrieved chunk identifiers
)

func (l Layer) String() string {
	switch l {
	case LayerL1:
		return "l1"
	case LayerL2:
		return "l2"
	case LayerL3:
		return "l3"
	default:
		return "unknown"
	}
}

// ScopeKind is the visibility partition of a cache entry.
type ScopeKind int

const (
	ScopeGlobal ScopeKind = iota
	ScopeUser
	ScopeOrg
)

// Scope identifies the caller's isolation partition. Global has an empty ID.
type Scope struct {
	Kind ScopeKind
	ID   string
}

// GlobalScope is the shared, tenant-less visibility partition.
var GlobalScope = Scope{Kind: ScopeGlobal}

// UserScope builds a per-user scope tag.
func UserScope(id string) Scope { return Scope{Kind: ScopeUser, ID: id} }

// OrgScope builds a per-org scope tag.
func OrgScope(id string) Scope { return Scope{Kind: ScopeOrg, ID: id} }

// Tag renders the scope as the flat string stored in `scope_tag` columns.
func (s Scope) Tag() string {
	switch s.Kind {
	case ScopeUser:
		return "user:" + s.ID
	case ScopeOrg:
		return "org:" + s.ID
	default:
		return "global"
	}
}

// ScopeFromTag parses a stored scope_tag back into a Scope.
func ScopeFromTag(tag string) Scope {
	switch {
	case tag == "" || tag == "global":
		return GlobalScope
	case strings.HasPrefix(tag, "user:"):
		return UserScope(strings.TrimPrefix(tag, "user:"))
	case strings.HasPrefix(tag, "org:"):
		return OrgScope(strings.TrimPrefix(tag, "org:"))
	default:
		return GlobalScope
	}
}

// Visible reports whether an entry carrying scopeTag may be returned to a
// caller presenting callerScope: equal scope, or a Global entry seen by
// anyone. Applied before similarity thresholding (spec §4.6).
func (s Scope) Visible(entryTag string) bool {
	if entryTag == "" || entryTag == "global" {
		return true
	}
	return s.Tag() == entryTag
}

// Embedding is an L2-normalized vector of fixed dimension D.
type Embedding []float32

// Norm returns the Euclidean norm.
func (e Embedding) Norm() float64 {
	var sum float64
	for _, v := range e {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// IsUnit reports whether ||E|| = 1 within tolerance.
func (e Embedding) IsUnit(tolerance float64) bool {
	return math.Abs(1-e.Norm()) <= tolerance
}

// Cosine computes cosine similarity between two equal-length unit vectors.
func Cosine(a, b Embedding) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// Header carries the fields common to every stored entry, at every layer.
type Header struct {
	ID             uuid.UUID
	QueryText      string
	ScopeTag       string
	Embedding      Embedding
	CreatedAt      time.Time
	LastAccessedAt time.Time
	AccessCount    int64
	TTLSeconds     int64
	SourceVersion  string
}

// Live reports whether the header satisfies the liveness invariant of §3:
// not TTL-expired, and on the accepted source_version (current, or within
// grace per configuration — grace handling lives in the orchestrator, this
// method only checks the strict "==" case plus TTL=0 meaning "never").
func (h Header) expired(now time.Time) bool {
	if h.TTLSeconds == 0 {
		return false
	}
	return h.CreatedAt.Add(time.Duration(h.TTLSeconds) * time.Second).Before(now) ||
		h.CreatedAt.Add(time.Duration(h.TTLSeconds)*time.Second).Equal(now)
}

// AnswerRecord is the L1 entry.
type AnswerRecord struct {
	Header
	AnswerText     string
	ProducingAgent string
	TokenCount     int64
}

// CompressedRecord is the L2 entry.
type CompressedRecord struct {
	Header
	CompressedContext  []byte
	ReferencedChunkIDs []string
}

// ChunkRecord is the L3 entry.
type ChunkRecord struct {
	Header
	ChunkIDs    []string
	ChunkScores []float64
}

// Metadata accompanies every store call.
type Metadata struct {
	ProducingAgent string
	TokenCount     int64
	TTLSeconds     *int64 // nil means "use the configured default"
	SourceVersion  string
}

// ResultKind discriminates the LookupResult sum type.
type ResultKind int

const (
	ResultMiss ResultKind = iota
	ResultAnswerHit
	ResultCompressedHit
	ResultChunksHit
)

// LookupResult is the return value of Cache.Lookup: one of Miss, AnswerHit,
// CompressedHit, or ChunksHit (spec §4.4).
type LookupResult struct {
	Kind       ResultKind
	Similarity float64

	// AnswerHit fields
	AnswerText string
	AgeSeconds float64
	Metadata   Metadata

	// CompressedHit / ChunksHit fields
	ChunkIDs          []string
	CompressedContext []byte
	ChunkScores       []float64
}

func missResult() LookupResult { return LookupResult{Kind: ResultMiss} }

// IsHit reports whether the result is anything other than a Miss.
func (r LookupResult) IsHit() bool { return r.Kind != ResultMiss }

func (r LookupResult) String() string {
	switch r.Kind {
	case ResultAnswerHit:
		return fmt.Sprintf("AnswerHit{similarity=%.4f}", r.Similarity)
	case ResultCompressedHit:
		return fmt.Sprintf("CompressedHit{similarity=%.4f}", r.Similarity)
	case ResultChunksHit:
		return fmt.Sprintf("ChunksHit{similarity=%.4f}", r.Similarity)
	default:
		return "Miss"
	}
}

// StatsSnapshot is the read-only view returned by Cache.Stats.
type StatsSnapshot struct {
	Date                 string
	TotalQueries          int64
	L1Hits                int64
	L2Hits                int64
	L3Hits                int64
	Misses                int64
	TokensSaved           int64
	EstimatedCostSaved    float64
	CoherenceDegraded     bool
}

// HealthReport is the separate health signal named in spec §7.
type HealthReport struct {
	EmbeddingReachable bool
	StoreReachable     bool
	IndexConsistent    bool
	CoherenceDegraded  bool
	Detail             string
}
