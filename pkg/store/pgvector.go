// Package store persists embedded chunks in Postgres with the pgvector
// extension and serves cosine similarity searches over them.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"github.com/cinevec/cinevec/internal/models"
)

// ErrStorage marks database failures: connection problems, failed
// transactions, malformed rows.
var ErrStorage = errors.New("storage error")

// ingestLockID is the advisory lock key that serializes full reindexes
// ("cinevec" read as an integer).
const ingestLockID int64 = 0x63696e65766563

type VectorStoreConfig struct {
	ConnString string
	TableName  string
	VectorDim  int
	BatchSize  int
}

type VectorStore struct {
	config VectorStoreConfig
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewWithConfig(ctx context.Context, config VectorStoreConfig, logger *zap.Logger) (*VectorStore, error) {
	if config.TableName == "" {
		config.TableName = "documents"
	}
	if config.VectorDim <= 0 {
		config.VectorDim = 384
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("%w: connect to database: %v", ErrStorage, err)
	}

	vs := &VectorStore{
		config: config,
		pool:   pool,
		logger: logger,
	}

	if err := vs.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return vs, nil
}

func (vs *VectorStore) initialize(ctx context.Context) error {
	if _, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("%w: create vector extension: %v", ErrStorage, err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			source_id TEXT UNIQUE NOT NULL,
			title TEXT,
			description TEXT,
			tags TEXT,
			rating DOUBLE PRECISION,
			release_date TEXT,
			runtime INTEGER,
			combined_text TEXT NOT NULL,
			embedding vector(%d),
			created_at TIMESTAMPTZ DEFAULT now()
		)`, vs.config.TableName, vs.config.VectorDim)

	if _, err := vs.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("%w: create table %s: %v", ErrStorage, vs.config.TableName, err)
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_embedding_idx
		ON %s
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`,
		vs.config.TableName, vs.config.TableName)

	if _, err := vs.pool.Exec(ctx, createIndex); err != nil {
		return fmt.Errorf("%w: create index: %v", ErrStorage, err)
	}

	return nil
}

// ReplaceAll swaps the entire table contents for the given chunks in one
// transaction: readers never observe a partially wiped table, and concurrent
// reindexes queue up behind an advisory lock instead of interleaving.
func (vs *VectorStore) ReplaceAll(ctx context.Context, chunks []models.Chunk) error {
	start := time.Now()

	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %v", ErrStorage, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", ingestLockID); err != nil {
		return fmt.Errorf("%w: acquire ingest lock: %v", ErrStorage, err)
	}

	if _, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s", vs.config.TableName)); err != nil {
		return fmt.Errorf("%w: clear table: %v", ErrStorage, err)
	}

	stmt := fmt.Sprintf(`
		INSERT INTO %s (source_id, title, description, tags, rating, release_date, runtime, combined_text, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		vs.config.TableName)

	for batchStart := 0; batchStart < len(chunks); batchStart += vs.config.BatchSize {
		batchEnd := min(batchStart+vs.config.BatchSize, len(chunks))

		batch := &pgx.Batch{}
		for _, chunk := range chunks[batchStart:batchEnd] {
			batch.Queue(stmt,
				chunk.SourceID,
				sanitizeUTF8(chunk.Title),
				sanitizeUTF8(chunk.Description),
				sanitizeUTF8(chunk.Tags),
				chunk.Rating,
				chunk.ReleaseDate,
				chunk.Runtime,
				sanitizeUTF8(chunk.Text),
				embeddingParam(chunk.Embedding),
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("%w: insert batch at %d: %v", ErrStorage, batchStart, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit transaction: %v", ErrStorage, err)
	}

	vs.logger.Info("replaced vector store contents",
		zap.String("table", vs.config.TableName),
		zap.Int("chunks", len(chunks)),
		zap.Duration("took", time.Since(start)))

	return nil
}

// Search returns the k chunks nearest to the query vector by cosine
// distance. Rows without an embedding are never candidates. Ties resolve by
// insertion order, so results are stable across calls. Fewer than k rows in
// the table is not an error, and neither is an empty result.
func (vs *VectorStore) Search(ctx context.Context, vector []float32, k int) ([]models.ScoredChunk, error) {
	if k <= 0 {
		return nil, fmt.Errorf("search limit must be positive, got %d", k)
	}

	query := fmt.Sprintf(`
		SELECT id, source_id,
		       COALESCE(title, ''), COALESCE(description, ''), COALESCE(tags, ''),
		       COALESCE(rating, 0), COALESCE(release_date, ''), COALESCE(runtime, 0),
		       combined_text, embedding <=> $1 AS distance, created_at
		FROM %s
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> $1, id
		LIMIT $2`,
		vs.config.TableName)

	rows, err := vs.pool.Query(ctx, query, pgvector.NewVector(vector), k)
	if err != nil {
		return nil, fmt.Errorf("%w: similarity query: %v", ErrStorage, err)
	}
	defer rows.Close()

	var results []models.ScoredChunk
	for rows.Next() {
		var sc models.ScoredChunk
		err := rows.Scan(
			&sc.ID,
			&sc.SourceID,
			&sc.Title,
			&sc.Description,
			&sc.Tags,
			&sc.Rating,
			&sc.ReleaseDate,
			&sc.Runtime,
			&sc.Text,
			&sc.Distance,
			&sc.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: scan row: %v", ErrStorage, err)
		}
		sc.Score = 1 - sc.Distance
		results = append(results, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read rows: %v", ErrStorage, err)
	}

	return results, nil
}

// Count reports how many chunks are stored, embedded or not.
func (vs *VectorStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := vs.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", vs.config.TableName)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: count rows: %v", ErrStorage, err)
	}
	return count, nil
}

func (vs *VectorStore) Close() {
	if vs.pool != nil {
		vs.pool.Close()
	}
}

// embeddingParam keeps rows insertable while their embedding is still
// missing; NULL embeddings are excluded from search.
func embeddingParam(vec []float32) any {
	if len(vec) == 0 {
		return nil
	}
	return pgvector.NewVector(vec)
}

func sanitizeUTF8(s string) string {
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for i, r := range s {
			if r == utf8.RuneError {
				_, size := utf8.DecodeRuneInString(s[i:])
				if size == 1 {
					continue
				}
			}
			v = append(v, r)
		}
		return string(v)
	}
	return s
}
