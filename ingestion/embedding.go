package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/citable/quotefind/ai"
	"github.com/citable/quotefind/core"
	"github.com/citable/quotefind/embedding"
	"github.com/citable/quotefind/storage"
)

// embeddingProcessor generates and stores embeddings for documents.
type embeddingProcessor struct {
	documents   storage.DocumentRepository
	embedder    ai.Embedder
	maxAttempts int
	baseDelay   time.Duration
	logger      *slog.Logger
}

func newEmbeddingProcessor(documents storage.DocumentRepository, embedder ai.Embedder, maxAttempts int, baseDelay time.Duration, logger *slog.Logger) (*embeddingProcessor, error) {
	if documents == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &embeddingProcessor{
		documents:   documents,
		embedder:    embedder,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		logger:      logger.With("processor", "embeddings"),
	}, nil
}

// process generates embeddings for the specified documents. Embedding
// calls go through RetryWithBackoff; vectors are unit-normalized
// before storage so similarity search can use plain dot products.
func (ep *embeddingProcessor) process(ctx context.Context, ids ...core.ID) error {
	ep.logger.Info("embedding documents", "documents", len(ids))

	docs, err := ep.documents.GetDocuments(ctx, ids...)
	if err != nil {
		ep.logger.Error("error retrieving documents", "err", err)
		return err
	}
	if len(docs) == 0 {
		return nil
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Contents
	}

	var vectors [][]float32
	err = RetryWithBackoff(ctx, func() error {
		var embedErr error
		vectors, embedErr = ep.embedder.EmbedTexts(ctx, texts)
		return embedErr
	}, ep.maxAttempts, ep.baseDelay)
	if err != nil {
		ep.logger.Error("error generating embeddings", "err", err)
		return err
	}

	if len(vectors) != len(docs) {
		return fmt.Errorf("embedding result mismatch. expected %d, received %d", len(docs), len(vectors))
	}

	for i := range vectors {
		docs[i].Vector = embedding.NormalizeVector(vectors[i])
	}

	_, err = ep.documents.UpdateDocuments(ctx, docs...)
	return err
}
