package rag

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cinevec/cinevec/internal/models"
)

// Retriever finds chunks relevant to a question.
type Retriever interface {
	Retrieve(ctx context.Context, question string, k int) ([]models.ScoredChunk, error)
}

// Generator produces an answer from a fully rendered prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Engine struct {
	retriever Retriever
	generator Generator
	logger    *zap.Logger
}

func NewEngine(retriever Retriever, generator Generator, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{retriever: retriever, generator: generator, logger: logger}
}

// Ask answers a question from the catalog. When retrieval comes back empty
// the model is never consulted: the caller gets a fixed answer and no chunks.
func (e *Engine) Ask(ctx context.Context, question string, topK int) (*models.QueryResult, error) {
	chunks, err := e.retriever.Retrieve(ctx, question, topK)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}

	if len(chunks) == 0 {
		e.logger.Info("no matching context", zap.Int("top_k", topK))
		return &models.QueryResult{Answer: emptyContextAnswer}, nil
	}

	answer, err := e.generator.Generate(ctx, BuildPrompt(question, chunks))
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	e.logger.Info("answered question",
		zap.Int("chunks", len(chunks)),
		zap.Float64("best_score", chunks[0].Score))

	return &models.QueryResult{Answer: answer, Chunks: chunks}, nil
}
