package ingestion

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/citable/quotefind/ai"
	"github.com/citable/quotefind/core"
	"github.com/citable/quotefind/storage"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 500 * time.Millisecond
	defaultBatchSize   = 16
)

// Pipeline orchestrates the ingestion of source documents. Documents
// are stored immediately; embeddings are generated asynchronously on a
// worker pool. Embedding failures are logged and counted, but never
// fail the ingest itself: an unembedded document still participates in
// structural search.
type Pipeline struct {
	documents   storage.DocumentRepository
	pool        *ants.Pool
	proc        *embeddingProcessor
	progress    *progressTracker
	batchSize   int
	maxAttempts int
	baseDelay   time.Duration
	wg          sync.WaitGroup
	logger      *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent embedding.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		if p.pool != nil {
			p.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithBatchSize sets how many documents are embedded per provider call.
func WithBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		p.batchSize = size
		return nil
	}
}

// WithRetry configures the retry policy for embedding calls.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(p *Pipeline) error {
		if maxAttempts <= 0 {
			return ErrInvalidMaxAttempts
		}
		p.maxAttempts = maxAttempts
		p.baseDelay = baseDelay
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(documents storage.DocumentRepository, provider ai.AIProvider, opts ...Option) (*Pipeline, error) {
	if documents == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		documents:   documents,
		pool:        pool,
		progress:    newProgressTracker(),
		batchSize:   defaultBatchSize,
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	// Create the processor after options are applied so it gets final config
	proc, err := newEmbeddingProcessor(documents, provider.Embedder(), p.maxAttempts, p.baseDelay, p.logger)
	if err != nil {
		p.Release()
		return nil, err
	}
	p.proc = proc

	return p, nil
}

// Ingest stores the given sources as documents and schedules them for
// asynchronous embedding. Returns the stored documents with IDs and
// timestamps populated. Call Wait to block until embedding settles, or
// poll Progress for status.
func (p *Pipeline) Ingest(ctx context.Context, sources ...Source) ([]*core.Document, error) {
	if len(sources) == 0 {
		return nil, ErrNoSources
	}

	docs := make([]*core.Document, len(sources))
	for i, src := range sources {
		docs[i] = &core.Document{
			Path:     src.Path,
			Contents: src.Contents,
			Metadata: src.Metadata,
		}
	}

	added, err := p.documents.AddDocuments(ctx, docs...)
	if err != nil {
		return nil, err
	}

	p.progress.addTotal(len(added))

	// Embed in batches so one slow provider call doesn't hold up the
	// whole ingest
	for start := 0; start < len(added); start += p.batchSize {
		end := start + p.batchSize
		if end > len(added) {
			end = len(added)
		}
		ids := make([]core.ID, 0, end-start)
		for _, doc := range added[start:end] {
			ids = append(ids, doc.Id)
		}

		p.wg.Add(1)
		submitErr := p.pool.Submit(func() {
			defer p.wg.Done()
			if err := p.proc.process(context.Background(), ids...); err != nil {
				p.logger.Error("error embedding documents", "err", err, "documents", len(ids))
				p.progress.fail(len(ids))
				return
			}
			p.progress.complete(len(ids))
		})
		if submitErr != nil {
			p.wg.Done()
			p.logger.Error("error submitting embedding batch", "err", submitErr)
			p.progress.fail(len(ids))
		}
	}

	return added, nil
}

// IngestDirectory loads every text file beneath root and ingests it.
// Returns the stored documents. An empty directory is not an error.
func (p *Pipeline) IngestDirectory(ctx context.Context, root string) ([]*core.Document, error) {
	sources, err := ReadDirectory(root)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return nil, nil
	}
	return p.Ingest(ctx, sources...)
}

// Wait blocks until all scheduled embedding work has finished.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// Progress returns a snapshot of embedding progress.
func (p *Pipeline) Progress() Progress {
	return p.progress.snapshot()
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}
