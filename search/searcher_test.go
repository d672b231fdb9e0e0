package search

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citable/quotefind/ai/mock"
	"github.com/citable/quotefind/core"
	"github.com/citable/quotefind/embedding"
	"github.com/citable/quotefind/fuzzy"
	"github.com/citable/quotefind/ngram"
	"github.com/citable/quotefind/storage"
	"github.com/citable/quotefind/storage/badger"
	"github.com/citable/quotefind/textnorm"
)

const darwinText = `Chapter IV: Natural Selection

It may be said that natural selection is daily and hourly
scrutinising, throughout the world, every variation, even
the slightest; rejecting that which is bad, preserving and
adding up all that is good.`

const newtonText = `Axioms, or Laws of Motion

To every action there is always opposed an equal reaction:
or the mutual actions of two bodies upon each other are
always equal, and directed to contrary parts.`

const mendelText = `Experiments in Plant Hybridisation

The offspring of the hybrids in which several essentially
different characters are combined exhibit the terms of a
series of combinations.`

type fixture struct {
	searcher *Searcher
	repo     storage.DocumentRepository
	embedder *mock.MockEmbedder
	cache    *embedding.Cache
	index    *ngram.Index
}

// newFixture stores the given documents with embeddings, builds the
// n-gram index over them, and wires a full searcher.
func newFixture(t *testing.T, docs map[string]string, opts ...Option) *fixture {
	t.Helper()
	ctx := context.Background()

	repo, backend, err := badger.NewMemoryRepository()
	require.NoError(t, err)
	t.Cleanup(func() {
		repo.Close()
		backend.Close()
	})

	embedder := mock.NewMockEmbedder()

	var stored []*core.Document
	for path, contents := range docs {
		vector, err := embedder.EmbedText(ctx, contents)
		require.NoError(t, err)
		added, err := repo.AddDocuments(ctx, &core.Document{
			Path:     path,
			Contents: contents,
			Vector:   embedding.NormalizeVector(vector),
		})
		require.NoError(t, err)
		stored = append(stored, added...)
	}

	index, err := ngram.NewIndex()
	require.NoError(t, err)
	_, err = index.Build(ctx, stored)
	require.NoError(t, err)

	cache, err := embedding.NewCache(embedder)
	require.NoError(t, err)

	searcher, err := NewSearcher(repo, cache, index, opts...)
	require.NoError(t, err)

	return &fixture{
		searcher: searcher,
		repo:     repo,
		embedder: embedder,
		cache:    cache,
		index:    index,
	}
}

func corpus() map[string]string {
	return map[string]string{
		"darwin.txt": darwinText,
		"newton.txt": newtonText,
		"mendel.txt": mendelText,
	}
}

func TestNewSearcher(t *testing.T) {
	t.Run("requires a repository", func(t *testing.T) {
		_, err := NewSearcher(nil, nil, nil)
		assert.ErrorIs(t, err, ErrDocumentRepositoryRequired)
	})

	t.Run("rejects a nil matcher", func(t *testing.T) {
		repo, backend, err := badger.NewMemoryRepository()
		require.NoError(t, err)
		defer backend.Close()

		_, err = NewSearcher(repo, nil, nil, WithMatcher(nil))
		assert.ErrorIs(t, err, ErrMatcherRequired)
	})
}

func TestSearchStructural(t *testing.T) {
	ctx := context.Background()

	t.Run("finds a verbatim quote with exact offsets", func(t *testing.T) {
		f := newFixture(t, corpus())

		query := "rejecting that which is bad, preserving and adding up all that is good"
		results, err := f.searcher.Search(ctx, query, 5)
		require.NoError(t, err)
		require.NotEmpty(t, results)

		top := results[0]
		assert.Equal(t, "darwin.txt", top.Document.Path)
		assert.True(t, top.Method.Structural())
		assert.Equal(t, 1.0, top.Similarity)
		assert.Equal(t, core.MethodExact, top.Method)

		// The matched text is a verbatim slice of the stored document
		assert.Contains(t, darwinText, top.MatchedText)
		assert.Contains(t, top.MatchedText, "rejecting that which is bad")
		assert.Equal(t, 5, top.StartLine)
		assert.Equal(t, 6, top.EndLine)
	})

	t.Run("survives OCR noise in the query", func(t *testing.T) {
		f := newFixture(t, corpus())

		// Case noise plus a query that crosses the original's line break
		query := "To every action there is always opposed an equal reaction: or the mutual actions of two bodies"
		noisy := strings.ToUpper(query[:10]) + query[10:]
		results, err := f.searcher.Search(ctx, noisy, 5)
		require.NoError(t, err)
		require.NotEmpty(t, results)

		top := results[0]
		assert.Equal(t, "newton.txt", top.Document.Path)
		assert.True(t, top.Method.Structural())
		assert.GreaterOrEqual(t, top.Similarity, 0.85)
		assert.Equal(t, 3, top.StartLine)
		assert.Equal(t, 4, top.EndLine)
	})

	t.Run("tolerates small corruptions", func(t *testing.T) {
		f := newFixture(t, corpus())

		// "conbinations" for "combinations", "severel" for "several"
		query := "the hybrids in which severel essentially different characters are conbined"
		results, err := f.searcher.Search(ctx, query, 5)
		require.NoError(t, err)
		require.NotEmpty(t, results)

		top := results[0]
		assert.Equal(t, "mendel.txt", top.Document.Path)
		assert.True(t, top.Method.Structural())
		assert.Less(t, top.Similarity, 1.0)
		assert.GreaterOrEqual(t, top.Similarity, 0.85)
	})

	t.Run("one result per document", func(t *testing.T) {
		f := newFixture(t, corpus())

		results, err := f.searcher.Search(ctx, "natural selection is daily and hourly scrutinising", 10)
		require.NoError(t, err)

		seen := make(map[string]bool)
		for _, result := range results {
			assert.False(t, seen[result.Document.Path], "duplicate result for %s", result.Document.Path)
			seen[result.Document.Path] = true
		}
	})

	t.Run("topK truncates near-duplicate corpora", func(t *testing.T) {
		quote := "the copied passage that appears everywhere in this collection"
		docs := make(map[string]string)
		for _, name := range []string{"a", "b", "c", "d", "e"} {
			docs[name+".txt"] = "Preamble for " + name + ".\n" + quote + "\nTrailing text."
		}
		// Five near-duplicates defeat rarity pruning on their shared
		// text, so these come back through the fallback scan
		f := newFixture(t, docs)

		results, err := f.searcher.Search(ctx, quote, 3)
		require.NoError(t, err)
		assert.Len(t, results, 3)

		seen := make(map[string]bool)
		for i, result := range results {
			assert.False(t, seen[result.Document.Path])
			seen[result.Document.Path] = true
			if i > 0 {
				assert.LessOrEqual(t, result.Similarity, results[i-1].Similarity)
			}
		}
	})
}

func TestSearchSemantic(t *testing.T) {
	ctx := context.Background()

	t.Run("short-circuits on near-certain similarity", func(t *testing.T) {
		f := newFixture(t, corpus())

		// The mock embedder is deterministic, so the full text embeds
		// to the stored vector exactly
		results, err := f.searcher.Search(ctx, darwinText, 5)
		require.NoError(t, err)
		require.NotEmpty(t, results)

		assert.Equal(t, "darwin.txt", results[0].Document.Path)
		assert.Equal(t, core.MethodEmbedding, results[0].Method)
		assert.GreaterOrEqual(t, results[0].Similarity, DefaultShortCircuitSimilarity)
	})

	t.Run("provider failure degrades to structural search", func(t *testing.T) {
		f := newFixture(t, corpus())
		f.embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
			return nil, errors.New("provider down")
		}

		results, err := f.searcher.Search(ctx, "rejecting that which is bad, preserving and adding up", 5)
		require.NoError(t, err)
		require.NotEmpty(t, results)
		assert.Equal(t, "darwin.txt", results[0].Document.Path)
		assert.True(t, results[0].Method.Structural())
	})

	t.Run("structural match outranks semantic for the same document", func(t *testing.T) {
		f := newFixture(t, corpus())

		results, err := f.searcher.Search(ctx, "always equal, and directed to contrary parts", 10)
		require.NoError(t, err)
		require.NotEmpty(t, results)

		assert.Equal(t, "newton.txt", results[0].Document.Path)
		assert.True(t, results[0].Method.Structural())
	})
}

func TestMerge(t *testing.T) {
	doc := func(id core.ID, path string) *core.Document {
		return &core.Document{Id: id, Path: path}
	}

	t.Run("orders strictly by similarity descending", func(t *testing.T) {
		semantic := []*core.SearchResult{
			{Similarity: 0.93, Document: doc(1, "a.txt"), Method: core.MethodEmbedding},
		}
		structural := []*core.SearchResult{
			{Similarity: 0.86, Document: doc(2, "b.txt"), Method: core.MethodFuzzy},
		}

		merged := merge(semantic, structural)
		require.Len(t, merged, 2)
		assert.Equal(t, 0.93, merged[0].Similarity)
		assert.Equal(t, core.MethodEmbedding, merged[0].Method)
		assert.Equal(t, 0.86, merged[1].Similarity)
	})

	t.Run("structural replaces semantic for the same document", func(t *testing.T) {
		semantic := []*core.SearchResult{
			{Similarity: 0.97, Document: doc(1, "a.txt"), Method: core.MethodEmbedding},
		}
		structural := []*core.SearchResult{
			{Similarity: 0.88, Document: doc(1, "a.txt"), Method: core.MethodTrigram},
		}

		merged := merge(semantic, structural)
		require.Len(t, merged, 1)
		assert.Equal(t, core.MethodTrigram, merged[0].Method)
		assert.Equal(t, 0.88, merged[0].Similarity)
	})
}

func TestSearchFallback(t *testing.T) {
	ctx := context.Background()

	t.Run("bounded scan finds quotes without rare n-grams", func(t *testing.T) {
		f := newFixture(t, corpus())
		// No cache, no index: only the fallback pass remains
		searcher, err := NewSearcher(f.repo, nil, nil)
		require.NoError(t, err)

		results, err := searcher.Search(ctx, "every variation, even the slightest", 5)
		require.NoError(t, err)
		require.NotEmpty(t, results)
		assert.Equal(t, "darwin.txt", results[0].Document.Path)
		assert.Equal(t, core.MethodFuzzy, results[0].Method)
		assert.Equal(t, 4, results[0].StartLine)
	})

	t.Run("zero limit disables the fallback", func(t *testing.T) {
		f := newFixture(t, corpus())
		searcher, err := NewSearcher(f.repo, nil, nil, WithFallbackScanLimit(0))
		require.NoError(t, err)

		results, err := searcher.Search(ctx, "every variation, even the slightest", 5)
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}

// unreadableRepo fails single-document reads for one record.
type unreadableRepo struct {
	storage.DocumentRepository
	badId core.ID
}

func (r *unreadableRepo) GetDocument(ctx context.Context, id core.ID) (*core.Document, error) {
	if id == r.badId {
		return nil, errors.New("corrupt record")
	}
	return r.DocumentRepository.GetDocument(ctx, id)
}

// unlistableRepo fails corpus iteration.
type unlistableRepo struct {
	storage.DocumentRepository
}

func (r *unlistableRepo) ListDocuments(ctx context.Context) ([]*core.Document, error) {
	return nil, errors.New("iteration failed")
}

func TestSearchFaultIsolation(t *testing.T) {
	ctx := context.Background()

	t.Run("unreadable matched document is skipped, not fatal", func(t *testing.T) {
		f := newFixture(t, corpus())
		darwin, err := f.repo.GetDocumentByPath(ctx, "darwin.txt")
		require.NoError(t, err)

		repo := &unreadableRepo{DocumentRepository: f.repo, badId: darwin.Id}
		searcher, err := NewSearcher(repo, nil, f.index)
		require.NoError(t, err)

		results, err := searcher.Search(ctx, "rejecting that which is bad, preserving and adding up all that is good", 5)
		require.NoError(t, err)
		for _, result := range results {
			assert.NotEqual(t, "darwin.txt", result.Document.Path)
		}
	})

	t.Run("other documents still match around a bad record", func(t *testing.T) {
		f := newFixture(t, corpus())
		darwin, err := f.repo.GetDocumentByPath(ctx, "darwin.txt")
		require.NoError(t, err)

		repo := &unreadableRepo{DocumentRepository: f.repo, badId: darwin.Id}
		searcher, err := NewSearcher(repo, nil, f.index)
		require.NoError(t, err)

		results, err := searcher.Search(ctx, "To every action there is always opposed an equal reaction", 5)
		require.NoError(t, err)
		require.NotEmpty(t, results)
		assert.Equal(t, "newton.txt", results[0].Document.Path)
	})

	t.Run("failed corpus listing degrades the fallback scan", func(t *testing.T) {
		f := newFixture(t, corpus())
		repo := &unlistableRepo{DocumentRepository: f.repo}
		searcher, err := NewSearcher(repo, nil, nil)
		require.NoError(t, err)

		results, err := searcher.Search(ctx, "every variation, even the slightest", 5)
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}

func TestSearchEdgeCases(t *testing.T) {
	ctx := context.Background()

	t.Run("empty query yields no results", func(t *testing.T) {
		f := newFixture(t, corpus())

		for _, query := range []string{"", "   ", "\n\t"} {
			results, err := f.searcher.Search(ctx, query, 5)
			require.NoError(t, err)
			assert.Empty(t, results)
		}
	})

	t.Run("blank query is screened under the matcher's rules", func(t *testing.T) {
		f := newFixture(t, corpus())
		matcher := fuzzy.NewMatcher(
			fuzzy.WithNormalizer(textnorm.New(textnorm.WithHyphenExceptions("well-being"))),
		)
		searcher, err := NewSearcher(f.repo, nil, f.index, WithMatcher(matcher))
		require.NoError(t, err)

		results, err := searcher.Search(ctx, " \u00ad\u200b \n", 5)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("non-positive topK yields no results", func(t *testing.T) {
		f := newFixture(t, corpus())

		results, err := f.searcher.Search(ctx, "natural selection", 0)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("cancelled context stops the search", func(t *testing.T) {
		f := newFixture(t, corpus())

		cancelled, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := f.searcher.Search(cancelled, "natural selection is daily and hourly", 5)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("absent quote finds nothing structurally", func(t *testing.T) {
		f := newFixture(t, corpus())
		searcher, err := NewSearcher(f.repo, nil, f.index)
		require.NoError(t, err)

		results, err := searcher.Search(ctx, "quantum chromodynamics predicts asymptotic freedom", 5)
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}

func TestFindBestMatch(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the top result", func(t *testing.T) {
		f := newFixture(t, corpus())

		result, err := f.searcher.FindBestMatch(ctx, "scrutinising, throughout the world, every variation")
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, "darwin.txt", result.Document.Path)
	})

	t.Run("nil when nothing matches", func(t *testing.T) {
		f := newFixture(t, corpus())
		searcher, err := NewSearcher(f.repo, nil, f.index, WithFallbackScanLimit(0))
		require.NoError(t, err)

		result, err := searcher.FindBestMatch(ctx, "entirely unrelated text about spacecraft")
		require.NoError(t, err)
		assert.Nil(t, result)
	})
}

// capturingMonitor records which hooks fired.
type capturingMonitor struct {
	started        bool
	semanticCount  int
	shortCircuited bool
	candidates     int
	structuralHits int
	finished       bool
}

var _ SearchMonitor = (*capturingMonitor)(nil)

func (m *capturingMonitor) Start(_ string)                              { m.started = true }
func (m *capturingMonitor) AfterSemanticSearch(r []*core.SearchResult)  { m.semanticCount = len(r) }
func (m *capturingMonitor) SemanticShortCircuit(_ *core.SearchResult)   { m.shortCircuited = true }
func (m *capturingMonitor) AfterCandidateSelection(c []ngram.Candidate) { m.candidates = len(c) }
func (m *capturingMonitor) StructuralHit(_ *core.SearchResult)          { m.structuralHits++ }
func (m *capturingMonitor) AfterFallbackScan(_ int)                     {}
func (m *capturingMonitor) Finish(_ []*core.SearchResult)               { m.finished = true }

func TestSearchWithMonitor(t *testing.T) {
	ctx := context.Background()

	t.Run("observes a structural search", func(t *testing.T) {
		f := newFixture(t, corpus())
		monitor := &capturingMonitor{}

		_, err := f.searcher.SearchWithMonitor(ctx, "rejecting that which is bad, preserving", 5, monitor)
		require.NoError(t, err)

		assert.True(t, monitor.started)
		assert.True(t, monitor.finished)
		assert.Greater(t, monitor.candidates, 0)
		assert.Greater(t, monitor.structuralHits, 0)
		assert.False(t, monitor.shortCircuited)
	})

	t.Run("observes a short circuit", func(t *testing.T) {
		f := newFixture(t, corpus())
		monitor := &capturingMonitor{}

		_, err := f.searcher.SearchWithMonitor(ctx, newtonText, 5, monitor)
		require.NoError(t, err)

		assert.True(t, monitor.shortCircuited)
		assert.Zero(t, monitor.candidates, "short circuit should skip candidate selection")
	})
}
