// Copyright 2025 Citable Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package quotefind verifies quotations against a corpus of source
// documents. Open a Library over a directory of ingested documents,
// then use Search or FindBestMatch to locate where a quoted passage
// actually appears, with exact offsets and line numbers.
package quotefind

import (
	"context"
	"log/slog"

	"github.com/citable/quotefind/ai"
	"github.com/citable/quotefind/ai/openai"
	"github.com/citable/quotefind/core"
	"github.com/citable/quotefind/embedding"
	"github.com/citable/quotefind/ingestion"
	"github.com/citable/quotefind/ngram"
	"github.com/citable/quotefind/search"
	"github.com/citable/quotefind/storage"
	"github.com/citable/quotefind/storage/badger"
)

// Library bundles the storage backend, embedding cache, n-gram index
// and searcher behind one handle.
type Library struct {
	backend   *badger.Backend
	documents storage.DocumentRepository
	provider  ai.AIProvider
	cache     *embedding.Cache
	index     *ngram.Index
	searcher  *search.Searcher
	logger    *slog.Logger
}

// LibraryOption configures a Library.
type LibraryOption func(*libraryOptions)

type libraryOptions struct {
	aiConfig      *ai.Config
	cacheCapacity int
}

// WithAIConfig sets the embedding provider configuration.
func WithAIConfig(config *ai.Config) LibraryOption {
	return func(o *libraryOptions) {
		o.aiConfig = config
	}
}

// WithCacheCapacity sets the embedding cache capacity.
func WithCacheCapacity(capacity int) LibraryOption {
	return func(o *libraryOptions) {
		o.cacheCapacity = capacity
	}
}

// Open opens a library at filePath, creating it if necessary, and
// builds the in-memory n-gram index over whatever the corpus already
// holds. An empty filePath opens an in-memory library.
func Open(filePath string, opts ...LibraryOption) (*Library, error) {
	options := &libraryOptions{
		aiConfig:      ai.DefaultConfig(),
		cacheCapacity: embedding.DefaultCapacity,
	}
	for _, opt := range opts {
		opt(options)
	}

	backend, err := badger.OpenBackend(filePath, filePath == "")
	if err != nil {
		return nil, err
	}
	documents := badger.NewDocumentRepository(backend)

	provider, err := openai.NewProvider(options.aiConfig)
	if err != nil {
		backend.Close()
		return nil, err
	}

	cache, err := embedding.NewCache(provider.Embedder(), embedding.WithCapacity(options.cacheCapacity))
	if err != nil {
		provider.Close()
		backend.Close()
		return nil, err
	}

	index, err := ngram.NewIndex()
	if err != nil {
		provider.Close()
		backend.Close()
		return nil, err
	}

	lib := &Library{
		backend:   backend,
		documents: documents,
		provider:  provider,
		cache:     cache,
		index:     index,
		logger:    slog.Default(),
	}

	if _, err := lib.RebuildIndex(context.Background()); err != nil {
		lib.Close()
		return nil, err
	}

	searcher, err := search.NewSearcher(documents, cache, index)
	if err != nil {
		lib.Close()
		return nil, err
	}
	lib.searcher = searcher

	return lib, nil
}

// Close releases all resources.
func (lib *Library) Close() error {
	if err := lib.provider.Close(); err != nil {
		lib.logger.Error("error closing AI provider", "err", err)
	}
	if err := lib.documents.Close(); err != nil {
		lib.logger.Error("error closing document repository", "err", err)
		return err
	}
	if err := lib.backend.Close(); err != nil {
		lib.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

// DocumentRepository exposes the underlying document store.
func (lib *Library) DocumentRepository() storage.DocumentRepository {
	return lib.documents
}

// IngestDirectory loads every text file beneath root into the corpus,
// waits for embedding to settle, and rebuilds the n-gram index.
// Returns the number of documents ingested.
func (lib *Library) IngestDirectory(ctx context.Context, root string, opts ...ingestion.Option) (int, error) {
	pipeline, err := ingestion.NewPipeline(lib.documents, lib.provider, opts...)
	if err != nil {
		return 0, err
	}
	defer pipeline.Release()

	docs, err := pipeline.IngestDirectory(ctx, root)
	if err != nil {
		return 0, err
	}
	pipeline.Wait()

	if progress := pipeline.Progress(); progress.Failed > 0 {
		lib.logger.Warn("some documents could not be embedded",
			"failed", progress.Failed, "total", progress.Total)
	}

	if len(docs) > 0 {
		if _, err := lib.RebuildIndex(ctx); err != nil {
			return len(docs), err
		}
	}
	return len(docs), nil
}

// RebuildIndex rebuilds the n-gram index from the stored corpus.
func (lib *Library) RebuildIndex(ctx context.Context) (*ngram.Stats, error) {
	docs, err := lib.documents.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	return lib.index.Build(ctx, docs)
}

// Search finds where query is quoted in the corpus, returning up to
// topK results, at most one per document.
func (lib *Library) Search(ctx context.Context, query string, topK int) ([]*core.SearchResult, error) {
	return lib.searcher.Search(ctx, query, topK)
}

// FindBestMatch returns the single best location of query, or nil if
// nothing in the corpus comes close.
func (lib *Library) FindBestMatch(ctx context.Context, query string) (*core.SearchResult, error) {
	return lib.searcher.FindBestMatch(ctx, query)
}

// NewSearcher builds a searcher over this library with custom options.
func (lib *Library) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	return search.NewSearcher(lib.documents, lib.cache, lib.index, opts...)
}

// NewIngestionPipeline builds an ingestion pipeline over this library.
// Call RebuildIndex after ingesting for new documents to become
// visible to structural search.
func (lib *Library) NewIngestionPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	return ingestion.NewPipeline(lib.documents, lib.provider, opts...)
}
