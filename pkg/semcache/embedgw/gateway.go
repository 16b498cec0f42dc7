// Package embedgw implements the Embedding Gateway contract (C1): a pure
// function from text to an L2-normalized vector of fixed dimension D. The
// actual embedding-model implementation (OpenAI/Bedrock/Anthropic, etc.) is
// an external collaborator per spec §1 — this package only defines the
// contract the orchestrator depends on, plus a deterministic in-memory
// implementation for tests and startup self-tests.
package embedgw

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/quietloop/semcache/pkg/semcache"
)

// Gateway embeds text into a unit vector of fixed dimension. Implementations
// must be deterministic for identical input (spec §4.1).
type Gateway interface {
	Embed(ctx context.Context, text string) (semcache.Embedding, error)
	Dimension() int
}

// HashGateway is a deterministic, dependency-free Gateway used in tests and
// local development: it derives a pseudo-embedding from a SHA-256 stream of
// the input text. It satisfies the C1 contract (deterministic, L2-normalized,
// fixed D) without needing a real model runtime.
type HashGateway struct {
	dimension int
}

// NewHashGateway builds a HashGateway producing vectors of the given
// dimension. Attempting to embed against a cache built for a different D is
// rejected at cache initialization by the orchestrator, not here (spec
// §4.1: "attempting to use a gateway with different D fails cache
// initialization").
func NewHashGateway(dimension int) *HashGateway {
	return &HashGateway{dimension: dimension}
}

func (g *HashGateway) Dimension() int { return g.dimension }

// Embed derives a deterministic unit vector from text. Oversize input (by an
// arbitrary but documented bound) is rejected with ErrInputRejected-shaped
// behavior via a sentinel from the semcache package so callers see the same
// failure mode a real gateway would produce.
func (g *HashGateway) Embed(ctx context.Context, text string) (semcache.Embedding, error) {
	const maxInputBytes = 32 * 1024
	if len(text) == 0 {
		return nil, semcache.ErrEmbedInputRejected
	}
	if len(text) > maxInputBytes {
		return nil, semcache.ErrEmbedInputRejected
	}
	select {
	case <-ctx.Done():
		return nil, semcache.ErrEmbedUnavailable
	default:
	}

	vec := make([]float32, g.dimension)
	seed := []byte(text)
	counter := uint32(0)
	for i := 0; i < g.dimension; i++ {
		if i%8 == 0 {
			h := sha256.New()
			h.Write(seed)
			var ctrBytes [4]byte
			binary.BigEndian.PutUint32(ctrBytes[:], counter)
			h.Write(ctrBytes[:])
			counter++
			seed = h.Sum(nil)
		}
		byteVal := seed[i%len(seed)]
		vec[i] = float32(int(byteVal)-128) / 128.0
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		vec[0] = 1
		norm = 1
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return semcache.Embedding(vec), nil
}

// StaticGateway returns a fixed embedding regardless of input; used in unit
// tests that need exact control over similarity scores between fixtures.
type StaticGateway struct {
	dimension int
	byText    map[string]semcache.Embedding
	fail      error
}

func NewStaticGateway(dimension int) *StaticGateway {
	return &StaticGateway{dimension: dimension, byText: map[string]semcache.Embedding{}}
}

func (g *StaticGateway) Dimension() int { return g.dimension }

// Set pins the embedding returned for an exact text match.
func (g *StaticGateway) Set(text string, e semcache.Embedding) { g.byText[text] = e }

// FailWith makes every subsequent Embed call return err.
func (g *StaticGateway) FailWith(err error) { g.fail = err }

func (g *StaticGateway) Embed(ctx context.Context, text string) (semcache.Embedding, error) {
	if g.fail != nil {
		return nil, g.fail
	}
	if e, ok := g.byText[text]; ok {
		if len(e) != g.dimension {
			return nil, fmt.Errorf("%w: fixture has %d dims, gateway wants %d", semcache.ErrDimensionMismatch, len(e), g.dimension)
		}
		return e, nil
	}
	return nil, semcache.ErrEmbedInputRejected
}
