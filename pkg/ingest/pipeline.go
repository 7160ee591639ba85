package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cinevec/cinevec/internal/models"
	"github.com/cinevec/cinevec/pkg/chunker"
	"github.com/cinevec/cinevec/pkg/embed"
)

// Store is the slice of the vector store the pipeline needs.
type Store interface {
	ReplaceAll(ctx context.Context, chunks []models.Chunk) error
}

type PipelineConfig struct {
	BatchSize int
	// OnProgress, when set, is called after every embedded batch.
	OnProgress func(done, total int)
}

type Pipeline struct {
	loader   *Loader
	chunker  chunker.Chunker
	embedder embed.Embedder
	store    Store
	config   PipelineConfig
	logger   *zap.Logger
}

func NewPipeline(ch chunker.Chunker, embedder embed.Embedder, store Store, config PipelineConfig, logger *zap.Logger) *Pipeline {
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		loader:   NewLoader(logger),
		chunker:  ch,
		embedder: embedder,
		store:    store,
		config:   config,
		logger:   logger,
	}
}

// Run ingests the directory: load, split, embed, then swap the store
// contents in a single transaction. The previous index stays serveable until
// the swap commits.
func (p *Pipeline) Run(ctx context.Context, dir string) (*models.IngestStats, error) {
	start := time.Now()
	log := p.logger.With(
		zap.String("run_id", uuid.NewString()),
		zap.String("dir", dir))

	log.Info("ingest started")

	docs, loadStats, err := p.loader.LoadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}

	stats := &models.IngestStats{
		Files:   loadStats.Files,
		Skipped: loadStats.Skipped,
		Errors:  loadStats.Errors,
	}

	// Duplicate ids would collide inside the store swap; the first one wins.
	seen := make(map[string]bool, len(docs))
	var chunks []models.Chunk
	for _, doc := range docs {
		if seen[doc.ID] {
			stats.Skipped++
			log.Debug("duplicate document id",
				zap.String("id", doc.ID), zap.String("source", doc.Source))
			continue
		}
		seen[doc.ID] = true
		stats.Documents++
		for i, piece := range p.chunker.Split(doc.Text) {
			chunks = append(chunks, models.NewChunk(doc, i, piece))
		}
	}
	stats.Chunks = len(chunks)

	log.Info("documents chunked",
		zap.Int("documents", stats.Documents),
		zap.Int("chunks", stats.Chunks))

	for batchStart := 0; batchStart < len(chunks); batchStart += p.config.BatchSize {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("ingest canceled: %w", err)
		}
		batchEnd := min(batchStart+p.config.BatchSize, len(chunks))

		texts := make([]string, 0, batchEnd-batchStart)
		for _, chunk := range chunks[batchStart:batchEnd] {
			texts = append(texts, chunk.Text)
		}
		vectors, err := p.embedder.EmbedBatch(texts)
		if err != nil {
			return nil, fmt.Errorf("embed batch at %d: %w", batchStart, err)
		}
		for i, vec := range vectors {
			chunks[batchStart+i].Embedding = vec
		}

		if p.config.OnProgress != nil {
			p.config.OnProgress(batchEnd, len(chunks))
		}
	}

	if err := p.store.ReplaceAll(ctx, chunks); err != nil {
		return nil, fmt.Errorf("replace store contents: %w", err)
	}

	stats.Duration = time.Since(start)
	log.Info("ingest finished",
		zap.Int("files", stats.Files),
		zap.Int("documents", stats.Documents),
		zap.Int("chunks", stats.Chunks),
		zap.Int("skipped", stats.Skipped),
		zap.Int("errors", stats.Errors),
		zap.Duration("took", stats.Duration))

	return stats, nil
}
