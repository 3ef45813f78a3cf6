package recall

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"

	"github.com/dgraph-io/ristretto"
)

// Embedder turns text into a fixed-size vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// HashEmbedder generates deterministic embeddings from a text hash. It has
// no semantic understanding, but identical wording embeds identically and
// the pipeline stays fully offline. Swap in a real embedder for semantic
// recall.
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder returns a 384-dimension hash embedder.
func NewHashEmbedder() *HashEmbedder {
	return &HashEmbedder{dimensions: 384}
}

// Embed creates a deterministic embedding from text.
func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	h.Write([]byte(text))

	embedding := make([]float32, e.dimensions)

	// LCG expansion of the hash into the full vector
	seed := h.Sum64()
	for i := 0; i < e.dimensions; i++ {
		seed = seed*6364136223846793005 + 1442695040888963407
		embedding[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}

	return normalize(embedding), nil
}

// Dimensions returns the embedding size.
func (e *HashEmbedder) Dimensions() int {
	return e.dimensions
}

// normalize converts an embedding to a unit vector.
func normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	norm = float32(math.Sqrt(float64(norm)))
	for i, v := range vec {
		vec[i] = v / norm
	}
	return vec
}

// CachingEmbedder memoizes embeddings of repeated text. Interview turns are
// re-embedded on every recall query, so the hit rate is high.
type CachingEmbedder struct {
	inner Embedder
	cache *ristretto.Cache
}

// NewCachingEmbedder wraps inner with a ristretto cache holding up to
// maxEntries embeddings.
func NewCachingEmbedder(inner Embedder, maxEntries int64) (*CachingEmbedder, error) {
	if maxEntries <= 0 {
		maxEntries = 4096
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &CachingEmbedder{inner: inner, cache: cache}, nil
}

// Embed returns a cached embedding or computes and caches one.
func (c *CachingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(text); ok {
		if emb, ok := v.([]float32); ok {
			return emb, nil
		}
	}

	emb, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(text, emb, 1)
	return emb, nil
}

// Dimensions returns the embedding size.
func (c *CachingEmbedder) Dimensions() int {
	return c.inner.Dimensions()
}

// Close releases the cache.
func (c *CachingEmbedder) Close() {
	c.cache.Close()
}
