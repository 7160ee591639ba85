package models

import (
	"fmt"
	"time"
)

// Document is one source item produced by the ingest loader: a text file, an
// HTML page, a PDF, or a single catalog record from a CSV export. Text is the
// content that gets chunked and embedded; the metadata fields ride along onto
// every chunk cut from it.
type Document struct {
	ID          string
	Source      string
	Title       string
	Description string
	Tags        string
	Rating      float64
	ReleaseDate string
	Runtime     int
	Text        string
}

// Chunk is one retrievable row in the vector store. SourceID is unique per
// row; the embedding is derived from exactly Text.
type Chunk struct {
	ID          int64
	SourceID    string
	Title       string
	Description string
	Tags        string
	Rating      float64
	ReleaseDate string
	Runtime     int
	Text        string
	Embedding   []float32
	CreatedAt   time.Time
}

// NewChunk cuts chunk number index of doc, copying the document metadata onto
// the row.
func NewChunk(doc Document, index int, text string) Chunk {
	return Chunk{
		SourceID:    fmt.Sprintf("%s_%d", doc.ID, index),
		Title:       doc.Title,
		Description: doc.Description,
		Tags:        doc.Tags,
		Rating:      doc.Rating,
		ReleaseDate: doc.ReleaseDate,
		Runtime:     doc.Runtime,
		Text:        text,
	}
}

// ScoredChunk pairs a chunk with its cosine distance to the query vector.
// Score is 1 - Distance.
type ScoredChunk struct {
	Chunk
	Distance float64
	Score    float64
}

// QueryResult is what the query interface hands back to callers: the
// generated answer plus the chunks that grounded it, nearest first.
type QueryResult struct {
	Answer string
	Chunks []ScoredChunk
}

// IngestStats summarizes one ingestion run.
type IngestStats struct {
	Files     int
	Documents int
	Chunks    int
	Skipped   int
	Errors    int
	Duration  time.Duration
}
