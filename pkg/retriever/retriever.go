// Package retriever embeds questions and pulls the nearest chunks back out
// of the vector store.
package retriever

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cinevec/cinevec/internal/models"
)

// Bounds for how many chunks a single question may pull. Out of range
// requests are clamped, not rejected.
const (
	MinTopK = 1
	MaxTopK = 10
)

// Embedder is the slice of an embedding provider the retriever needs.
type Embedder interface {
	Embed(text string) ([]float32, error)
}

// Store is the slice of the vector store the retriever needs.
type Store interface {
	Search(ctx context.Context, vector []float32, k int) ([]models.ScoredChunk, error)
}

type Retriever struct {
	embedder Embedder
	store    Store
	logger   *zap.Logger
}

func New(embedder Embedder, store Store, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{embedder: embedder, store: store, logger: logger}
}

// Retrieve embeds the question and returns up to k matching chunks, best
// first. k is clamped into [MinTopK, MaxTopK].
func (r *Retriever) Retrieve(ctx context.Context, question string, k int) ([]models.ScoredChunk, error) {
	clamped := clampTopK(k)
	if clamped != k {
		r.logger.Debug("clamped top k", zap.Int("requested", k), zap.Int("used", clamped))
	}

	vector, err := r.embedder.Embed(question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	chunks, err := r.store.Search(ctx, vector, clamped)
	if err != nil {
		return nil, fmt.Errorf("search store: %w", err)
	}

	r.logger.Debug("retrieved chunks",
		zap.Int("count", len(chunks)),
		zap.Int("top_k", clamped))
	return chunks, nil
}

func clampTopK(k int) int {
	if k < MinTopK {
		return MinTopK
	}
	if k > MaxTopK {
		return MaxTopK
	}
	return k
}
