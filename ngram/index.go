package ngram

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/citable/quotefind/core"
	"github.com/citable/quotefind/textnorm"
)

const (
	// DefaultN is the n-gram length used when no override is given.
	DefaultN = 3

	// DefaultMinOverlap is the default fraction of a query's rare n-grams
	// that a document must contain to become a candidate.
	DefaultMinOverlap = 0.3

	// defaultRareFraction: an n-gram is rare when it appears in at most
	// this fraction of the corpus.
	defaultRareFraction = 0.25

	// rareDocFloor keeps small corpora usable: the rarity cutoff never
	// drops below this many documents.
	rareDocFloor = 2

	// contextLines pads each matched line when forming candidate regions.
	contextLines = 2

	defaultWorkers = 4
)

// posting records where a single n-gram occurs within one document.
type posting struct {
	lines []int // 1-based, sorted, deduplicated
}

// docEntry keeps the original line text so candidate regions can carry
// verbatim excerpts for downstream fuzzy matching.
type docEntry struct {
	lines []string
}

// Candidate is a document that shares enough rare n-grams with a query
// to be worth a full fuzzy pass, restricted to the regions listed.
type Candidate struct {
	DocumentId core.ID
	// Overlap is the fraction of the query's rare n-grams present in
	// the document, in (0, 1].
	Overlap float64
	Regions []core.CandidateRegion
}

// Stats summarizes a completed Build.
type Stats struct {
	Documents   int
	TotalNgrams int
	RareNgrams  int
	Elapsed     time.Duration
}

// Index maps rare character n-grams to the documents and lines that
// contain them. Common n-grams are pruned after Build so lookups only
// touch discriminative trigrams.
type Index struct {
	n            int
	rareFraction float64
	workers      int
	normalizer   *textnorm.Normalizer
	logger       *slog.Logger

	mu       sync.RWMutex
	postings map[string]map[core.ID]*posting
	docs     map[core.ID]*docEntry
	stats    Stats
}

// Option configures an Index.
type Option func(*Index) error

// WithN sets the n-gram length.
func WithN(n int) Option {
	return func(ix *Index) error {
		if n < 2 {
			return fmt.Errorf("%w: n must be at least 2, got %d", ErrInvalidOption, n)
		}
		ix.n = n
		return nil
	}
}

// WithRareFraction sets the corpus fraction above which an n-gram is
// considered common and pruned.
func WithRareFraction(fraction float64) Option {
	return func(ix *Index) error {
		if fraction <= 0 || fraction > 1 {
			return fmt.Errorf("%w: rare fraction must be in (0, 1], got %v", ErrInvalidOption, fraction)
		}
		ix.rareFraction = fraction
		return nil
	}
}

// WithWorkers sets the size of the worker pool used by Build.
func WithWorkers(workers int) Option {
	return func(ix *Index) error {
		if workers < 1 {
			return fmt.Errorf("%w: workers must be at least 1, got %d", ErrInvalidOption, workers)
		}
		ix.workers = workers
		return nil
	}
}

// WithNormalizer overrides the text normalizer used for both documents
// and queries.
func WithNormalizer(n *textnorm.Normalizer) Option {
	return func(ix *Index) error {
		ix.normalizer = n
		return nil
	}
}

// WithLogger sets the logger for build diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(ix *Index) error {
		ix.logger = logger
		return nil
	}
}

// NewIndex creates an empty index. Call Build before FindCandidates.
func NewIndex(opts ...Option) (*Index, error) {
	ix := &Index{
		n:            DefaultN,
		rareFraction: defaultRareFraction,
		workers:      defaultWorkers,
		normalizer:   textnorm.New(),
		logger:       slog.Default(),
		postings:     make(map[string]map[core.ID]*posting),
		docs:         make(map[core.ID]*docEntry),
	}
	for _, opt := range opts {
		if err := opt(ix); err != nil {
			return nil, err
		}
	}
	ix.logger = ix.logger.With("component", "ngram-index")
	return ix, nil
}

// docResult is the per-document output of an extraction worker.
type docResult struct {
	id     core.ID
	lines  []string
	ngrams map[string][]int // ngram -> matched line numbers
}

// Build replaces the index contents with n-grams extracted from docs.
// Extraction runs on a worker pool; cancellation is honored between
// documents, and any work already submitted is drained before return.
func (ix *Index) Build(ctx context.Context, docs []*core.Document) (*Stats, error) {
	start := time.Now()

	pool, err := ants.NewPool(ix.workers)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = make([]*docResult, 0, len(docs))
	)

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			break
		}
		doc := doc
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			res := ix.extractDocument(doc)
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
		})
		if submitErr != nil {
			wg.Done()
			wg.Wait()
			return nil, fmt.Errorf("failed to submit document %d: %w", doc.Id, submitErr)
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	postings := make(map[string]map[core.ID]*posting)
	entries := make(map[core.ID]*docEntry, len(results))
	for _, res := range results {
		entries[res.id] = &docEntry{lines: res.lines}
		for gram, lines := range res.ngrams {
			byDoc, ok := postings[gram]
			if !ok {
				byDoc = make(map[core.ID]*posting)
				postings[gram] = byDoc
			}
			byDoc[res.id] = &posting{lines: lines}
		}
	}

	total := len(postings)
	cutoff := rarityCutoff(len(entries), ix.rareFraction)
	for gram, byDoc := range postings {
		if len(byDoc) > cutoff {
			delete(postings, gram)
		}
	}

	stats := Stats{
		Documents:   len(entries),
		TotalNgrams: total,
		RareNgrams:  len(postings),
		Elapsed:     time.Since(start),
	}

	ix.mu.Lock()
	ix.postings = postings
	ix.docs = entries
	ix.stats = stats
	ix.mu.Unlock()

	ix.logger.Info("index built",
		"documents", stats.Documents,
		"total_ngrams", stats.TotalNgrams,
		"rare_ngrams", stats.RareNgrams,
		"elapsed", stats.Elapsed)

	return &stats, nil
}

// rarityCutoff returns the maximum document frequency for an n-gram to
// survive pruning.
func rarityCutoff(docCount int, fraction float64) int {
	cutoff := int(float64(docCount) * fraction)
	if cutoff < rareDocFloor {
		cutoff = rareDocFloor
	}
	return cutoff
}

// extractDocument normalizes each line independently and collects the
// distinct n-grams per line. Line numbers are 1-based.
func (ix *Index) extractDocument(doc *core.Document) *docResult {
	lines := doc.Lines()
	grams := make(map[string][]int)
	for i, line := range lines {
		lineNo := i + 1
		normalized := ix.normalizer.Normalize(line)
		for gram := range ngramSet(normalized, ix.n) {
			existing := grams[gram]
			if len(existing) == 0 || existing[len(existing)-1] != lineNo {
				grams[gram] = append(existing, lineNo)
			}
		}
	}
	return &docResult{id: doc.Id, lines: lines, ngrams: grams}
}

// ngramSet returns the distinct rune n-grams of s.
func ngramSet(s string, n int) map[string]struct{} {
	runes := []rune(s)
	if len(runes) < n {
		return nil
	}
	set := make(map[string]struct{}, len(runes)-n+1)
	for i := 0; i+n <= len(runes); i++ {
		set[string(runes[i:i+n])] = struct{}{}
	}
	return set
}

// Documents returns the number of indexed documents.
func (ix *Index) Documents() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.docs)
}

// Stats returns the statistics from the most recent Build.
func (ix *Index) Stats() Stats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.stats
}

// FindCandidates returns the documents whose rare n-gram overlap with
// query meets minOverlap, ranked by overlap descending. Each candidate
// carries the line regions where its shared n-grams occur, padded with
// surrounding context. A query whose n-grams are all common (or too
// short to form any) yields no candidates.
func (ix *Index) FindCandidates(query string, minOverlap float64) []Candidate {
	normalized := ix.normalizer.Normalize(query)
	queryGrams := ngramSet(normalized, ix.n)
	if len(queryGrams) == 0 {
		return nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	rare := 0
	hits := make(map[core.ID]int)
	lineHits := make(map[core.ID]map[int]struct{})
	for gram := range queryGrams {
		byDoc, ok := ix.postings[gram]
		if !ok {
			continue
		}
		rare++
		for id, post := range byDoc {
			hits[id]++
			set, ok := lineHits[id]
			if !ok {
				set = make(map[int]struct{})
				lineHits[id] = set
			}
			for _, line := range post.lines {
				set[line] = struct{}{}
			}
		}
	}
	if rare == 0 {
		return nil
	}

	candidates := make([]Candidate, 0, len(hits))
	for id, count := range hits {
		overlap := float64(count) / float64(rare)
		if overlap < minOverlap {
			continue
		}
		entry := ix.docs[id]
		if entry == nil {
			continue
		}
		candidates = append(candidates, Candidate{
			DocumentId: id,
			Overlap:    overlap,
			Regions:    buildRegions(id, entry.lines, lineHits[id]),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Overlap != candidates[j].Overlap {
			return candidates[i].Overlap > candidates[j].Overlap
		}
		return candidates[i].DocumentId < candidates[j].DocumentId
	})
	return candidates
}

// buildRegions clusters matched line numbers into contiguous regions,
// padding each with contextLines of surrounding text and merging
// regions that touch after padding.
func buildRegions(id core.ID, lines []string, matched map[int]struct{}) []core.CandidateRegion {
	if len(matched) == 0 {
		return nil
	}
	nums := make([]int, 0, len(matched))
	for line := range matched {
		nums = append(nums, line)
	}
	sort.Ints(nums)

	type span struct{ start, end int }
	spans := make([]span, 0, len(nums))
	for _, line := range nums {
		start := line - contextLines
		if start < 1 {
			start = 1
		}
		end := line + contextLines
		if end > len(lines) {
			end = len(lines)
		}
		if n := len(spans); n > 0 && start <= spans[n-1].end+1 {
			if end > spans[n-1].end {
				spans[n-1].end = end
			}
			continue
		}
		spans = append(spans, span{start: start, end: end})
	}

	regions := make([]core.CandidateRegion, 0, len(spans))
	for _, s := range spans {
		regions = append(regions, core.CandidateRegion{
			DocumentId: id,
			StartLine:  s.start,
			EndLine:    s.end,
			Text:       strings.Join(lines[s.start-1:s.end], "\n"),
		})
	}
	return regions
}
