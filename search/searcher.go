package search

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"github.com/citable/quotefind/core"
	"github.com/citable/quotefind/embedding"
	"github.com/citable/quotefind/fuzzy"
	"github.com/citable/quotefind/ngram"
	"github.com/citable/quotefind/storage"
)

const (
	// DefaultShortCircuitSimilarity is the semantic similarity above
	// which the structural passes are skipped entirely.
	DefaultShortCircuitSimilarity = 0.95

	// DefaultSemanticFloor is the minimum semantic similarity for a
	// document to appear in results at all.
	DefaultSemanticFloor = 0.7

	// DefaultMinOverlap is the minimum rare n-gram overlap for a
	// document to receive a fuzzy pass.
	DefaultMinOverlap = 0.3

	// DefaultFallbackScanLimit bounds how many whole documents the
	// fallback pass scans when the n-gram index yields nothing.
	DefaultFallbackScanLimit = 5

	// ctxCheckInterval is how many candidates are processed between
	// cancellation checks.
	ctxCheckInterval = 4
)

// Searcher locates quotes in the document corpus. It layers a semantic
// pass over two structural passes: rare n-gram pruning followed by
// fuzzy matching inside candidate regions, with a bounded whole-document
// scan as a last resort.
type Searcher struct {
	documents storage.DocumentRepository
	cache     *embedding.Cache
	index     *ngram.Index
	matcher   *fuzzy.Matcher

	looseThreshold    float64
	shortCircuit      float64
	semanticFloor     float64
	minOverlap        float64
	fallbackScanLimit int
	logger            *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithMatcher overrides the fuzzy matcher used for structural passes.
func WithMatcher(matcher *fuzzy.Matcher) Option {
	return func(s *Searcher) error {
		if matcher == nil {
			return ErrMatcherRequired
		}
		s.matcher = matcher
		return nil
	}
}

// WithShortCircuitSimilarity sets the semantic similarity at which
// structural search is skipped.
func WithShortCircuitSimilarity(threshold float64) Option {
	return func(s *Searcher) error {
		s.shortCircuit = threshold
		return nil
	}
}

// WithSemanticFloor sets the minimum semantic similarity for results.
func WithSemanticFloor(floor float64) Option {
	return func(s *Searcher) error {
		s.semanticFloor = floor
		return nil
	}
}

// WithMinOverlap sets the minimum rare n-gram overlap for candidates.
func WithMinOverlap(overlap float64) Option {
	return func(s *Searcher) error {
		s.minOverlap = overlap
		return nil
	}
}

// WithFallbackScanLimit bounds the whole-document fallback scan.
// Zero disables the fallback pass.
func WithFallbackScanLimit(limit int) Option {
	return func(s *Searcher) error {
		if limit < 0 {
			limit = 0
		}
		s.fallbackScanLimit = limit
		return nil
	}
}

// NewSearcher creates a new searcher. The cache and index are optional:
// a nil cache disables the semantic pass, a nil index disables n-gram
// pruning, and search degrades to the passes that remain.
func NewSearcher(documents storage.DocumentRepository, cache *embedding.Cache, index *ngram.Index, opts ...Option) (*Searcher, error) {
	if documents == nil {
		return nil, ErrDocumentRepositoryRequired
	}

	s := &Searcher{
		documents:         documents,
		cache:             cache,
		index:             index,
		matcher:           fuzzy.NewMatcher(),
		looseThreshold:    fuzzy.LooseThreshold,
		shortCircuit:      DefaultShortCircuitSimilarity,
		semanticFloor:     DefaultSemanticFloor,
		minOverlap:        DefaultMinOverlap,
		fallbackScanLimit: DefaultFallbackScanLimit,
		logger:            slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "searcher")

	return s, nil
}

// Search finds where query is quoted in the corpus.
// Returns up to topK results sorted by similarity descending, at most
// one per document; a structural match replaces a semantic one for the
// same document.
func (s *Searcher) Search(ctx context.Context, query string, topK int) ([]*core.SearchResult, error) {
	return s.SearchWithMonitor(ctx, query, topK, nil)
}

// SearchWithMonitor is Search with observation hooks.
// The monitor receives callbacks at each stage of the search process.
func (s *Searcher) SearchWithMonitor(ctx context.Context, query string, topK int, monitor SearchMonitor) ([]*core.SearchResult, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	monitor.Start(query)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if topK <= 0 || s.matcher.Normalizer().Normalize(query) == "" {
		monitor.Finish(nil)
		return []*core.SearchResult{}, nil
	}

	// 1. Semantic pass. A failing embedding provider degrades the
	// search to structural passes instead of failing it.
	semantic, err := s.semanticPass(ctx, query, topK)
	if err != nil {
		return nil, err
	}
	monitor.AfterSemanticSearch(semantic)

	if len(semantic) > 0 && semantic[0].Similarity >= s.shortCircuit {
		results := truncate(semantic, topK)
		monitor.SemanticShortCircuit(results[0])
		monitor.Finish(results)
		return results, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 2. Structural passes: n-gram pruning, then fuzzy matching inside
	// candidate regions.
	structural, err := s.structuralPass(ctx, query, monitor)
	if err != nil {
		return nil, err
	}

	// 3. Bounded fallback when pruning found nothing.
	if len(structural) == 0 && s.fallbackScanLimit > 0 {
		structural, err = s.fallbackPass(ctx, query, semantic, monitor)
		if err != nil {
			return nil, err
		}
	}

	// 4. Merge, one result per document, sorted by similarity.
	results := merge(semantic, structural)
	results = truncate(results, topK)
	monitor.Finish(results)
	return results, nil
}

// FindBestMatch returns the single best location of query, or nil if
// the corpus contains nothing close to it.
func (s *Searcher) FindBestMatch(ctx context.Context, query string) (*core.SearchResult, error) {
	results, err := s.Search(ctx, query, 1)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0], nil
}

// semanticPass embeds the query and ranks documents by vector
// similarity. Provider errors are logged and yield no semantic
// results; cancellation errors propagate.
func (s *Searcher) semanticPass(ctx context.Context, query string, topK int) ([]*core.SearchResult, error) {
	if s.cache == nil {
		return nil, nil
	}

	vector, err := s.cache.Embed(ctx, query)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		s.logger.Warn("embedding provider unavailable, structural search only", "err", err)
		return nil, nil
	}

	matches, err := s.documents.FindSimilar(ctx, vector, float32(s.semanticFloor), topK)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		s.logger.Error("error querying similar documents", "err", err)
		return nil, nil
	}

	results := make([]*core.SearchResult, 0, len(matches))
	for _, match := range matches {
		results = append(results, &core.SearchResult{
			Similarity: float64(match.Score),
			Document:   match.Document,
			Method:     core.MethodEmbedding,
		})
	}
	return results, nil
}

// regionHit is the best structural match found within one document.
type regionHit struct {
	match     core.MatchResult
	startLine int
	endLine   int
	method    core.Method
}

// structuralPass runs fuzzy matching over the candidate regions the
// n-gram index selects. A verbatim match stops the scan: nothing can
// outrank confidence 1.0.
func (s *Searcher) structuralPass(ctx context.Context, query string, monitor SearchMonitor) ([]*core.SearchResult, error) {
	if s.index == nil {
		return nil, nil
	}

	candidates := s.index.FindCandidates(query, s.minOverlap)
	monitor.AfterCandidateSelection(candidates)
	if len(candidates) == 0 {
		return nil, nil
	}

	hits := make(map[core.ID]*regionHit)

scan:
	for i, candidate := range candidates {
		if i%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		for _, region := range candidate.Regions {
			match := s.matcher.FindMatch(query, region.Text)
			if !match.Matched {
				continue
			}

			startLine, endLine := absoluteLines(region.StartLine, region.Text, match.StartOffset, match.EndOffset)
			method := core.MethodTrigram
			if match.Confidence == 1.0 {
				method = core.MethodExact
			}

			best, seen := hits[candidate.DocumentId]
			if !seen || match.Confidence > best.match.Confidence {
				hits[candidate.DocumentId] = &regionHit{
					match:     match,
					startLine: startLine,
					endLine:   endLine,
					method:    method,
				}
			}

			if method == core.MethodExact {
				break scan
			}
		}
	}

	return s.resolveHits(ctx, hits, monitor)
}

// fallbackPass scans a bounded number of whole documents with the
// loose threshold. Semantically similar documents are scanned first;
// without semantic results it falls back to corpus order.
func (s *Searcher) fallbackPass(ctx context.Context, query string, semantic []*core.SearchResult, monitor SearchMonitor) ([]*core.SearchResult, error) {
	var docs []*core.Document
	for _, result := range semantic {
		docs = append(docs, result.Document)
	}
	if len(docs) == 0 {
		all, err := s.documents.ListDocuments(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			s.logger.Error("error listing documents for fallback scan", "err", err)
			return nil, nil
		}
		docs = all
	}
	if len(docs) > s.fallbackScanLimit {
		docs = docs[:s.fallbackScanLimit]
	}

	hits := make(map[core.ID]*regionHit)
	for i, doc := range docs {
		if i%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		match := s.matcher.FindMatchThreshold(query, doc.Contents, s.looseThreshold)
		if !match.Matched {
			continue
		}
		startLine, endLine := absoluteLines(1, doc.Contents, match.StartOffset, match.EndOffset)
		hits[doc.Id] = &regionHit{
			match:     match,
			startLine: startLine,
			endLine:   endLine,
			method:    core.MethodFuzzy,
		}
	}
	monitor.AfterFallbackScan(len(docs))

	return s.resolveHits(ctx, hits, monitor)
}

// resolveHits attaches full documents to region hits and reports them
// to the monitor. Documents are fetched one at a time: an unreadable
// record drops that hit, not the whole search.
func (s *Searcher) resolveHits(ctx context.Context, hits map[core.ID]*regionHit, monitor SearchMonitor) ([]*core.SearchResult, error) {
	if len(hits) == 0 {
		return nil, nil
	}

	ids := make([]core.ID, 0, len(hits))
	for id := range hits {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	results := make([]*core.SearchResult, 0, len(ids))
	for _, id := range ids {
		doc, err := s.documents.GetDocument(ctx, id)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			s.logger.Warn("skipping unreadable matched document", "id", id, "err", err)
			continue
		}
		hit := hits[id]
		result := &core.SearchResult{
			Similarity:  hit.match.Confidence,
			MatchedText: hit.match.MatchedText,
			Document:    doc,
			StartLine:   hit.startLine,
			EndLine:     hit.endLine,
			Method:      hit.method,
		}
		monitor.StructuralHit(result)
		results = append(results, result)
	}
	return results, nil
}

// absoluteLines converts byte offsets within text to 1-based line
// numbers, anchored at the line number where text begins.
func absoluteLines(baseLine int, text string, start, end int) (int, int) {
	startLine := baseLine + strings.Count(text[:start], "\n")
	endLine := baseLine + strings.Count(text[:end], "\n")
	return startLine, endLine
}

// merge combines semantic and structural results, keeping at most one
// result per document. A structural match replaces a semantic one for
// the same document regardless of score: it carries exact offsets. The
// merged set is ordered by similarity descending.
func merge(semantic, structural []*core.SearchResult) []*core.SearchResult {
	byDoc := make(map[core.ID]*core.SearchResult, len(semantic)+len(structural))
	order := make([]core.ID, 0, len(semantic)+len(structural))

	for _, result := range semantic {
		if _, seen := byDoc[result.Document.Id]; !seen {
			order = append(order, result.Document.Id)
		}
		byDoc[result.Document.Id] = result
	}
	for _, result := range structural {
		if _, seen := byDoc[result.Document.Id]; !seen {
			order = append(order, result.Document.Id)
		}
		byDoc[result.Document.Id] = result
	}

	results := make([]*core.SearchResult, 0, len(order))
	for _, id := range order {
		results = append(results, byDoc[id])
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	return results
}

func truncate(results []*core.SearchResult, topK int) []*core.SearchResult {
	if len(results) > topK {
		return results[:topK]
	}
	return results
}
