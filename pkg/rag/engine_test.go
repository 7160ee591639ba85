package rag

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cinevec/cinevec/internal/models"
	"github.com/cinevec/cinevec/pkg/embed"
	"github.com/cinevec/cinevec/pkg/llm"
	"github.com/cinevec/cinevec/pkg/retriever"
	"github.com/cinevec/cinevec/pkg/store"
)

type stubRetriever struct {
	chunks []models.ScoredChunk
	err    error
}

func (s *stubRetriever) Retrieve(ctx context.Context, question string, k int) ([]models.ScoredChunk, error) {
	return s.chunks, s.err
}

type stubGenerator struct {
	answer string
	err    error

	calls   int
	prompts []string
}

func (s *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	s.calls++
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	return s.answer, nil
}

func TestAsk(t *testing.T) {
	ret := &stubRetriever{chunks: []models.ScoredChunk{
		scored(models.Chunk{SourceID: "tmdb_603_0", Title: "The Matrix", Description: "Hacker discovers reality.", ReleaseDate: "1999-03-30"}, 0.9),
	}}
	gen := &stubGenerator{answer: "The Matrix is about a hacker."}
	engine := NewEngine(ret, gen, zap.NewNop())

	result, err := engine.Ask(context.Background(), "Which movie is about a hacker?", 5)
	require.NoError(t, err)

	assert.Equal(t, "The Matrix is about a hacker.", result.Answer)
	require.Len(t, result.Chunks, 1)
	assert.Equal(t, "tmdb_603_0", result.Chunks[0].SourceID)

	require.Equal(t, 1, gen.calls)
	assert.Contains(t, gen.prompts[0], "[1] The Matrix (1999)")
	assert.Contains(t, gen.prompts[0], "User Question: Which movie is about a hacker?")
}

func TestAskEmptyRetrievalSkipsModel(t *testing.T) {
	gen := &stubGenerator{answer: "should never be used"}
	engine := NewEngine(&stubRetriever{}, gen, zap.NewNop())

	result, err := engine.Ask(context.Background(), "anything at all", 5)
	require.NoError(t, err)

	assert.Equal(t, emptyContextAnswer, result.Answer)
	assert.Empty(t, result.Chunks)
	assert.Zero(t, gen.calls, "the model must not be consulted without context")
}

func TestAskRetrieverError(t *testing.T) {
	boom := fmt.Errorf("%w: connection refused", store.ErrStorage)
	engine := NewEngine(&stubRetriever{err: boom}, &stubGenerator{}, zap.NewNop())

	_, err := engine.Ask(context.Background(), "question", 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrStorage))
}

func TestAskGeneratorError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{name: "service failure", err: fmt.Errorf("%w: quota exceeded", llm.ErrService), sentinel: llm.ErrService},
		{name: "timeout", err: fmt.Errorf("%w: no answer after 30s", llm.ErrTimeout), sentinel: llm.ErrTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ret := &stubRetriever{chunks: []models.ScoredChunk{
				scored(models.Chunk{SourceID: "a_0", Text: "context"}, 0.8),
			}}
			engine := NewEngine(ret, &stubGenerator{err: tt.err}, zap.NewNop())

			_, err := engine.Ask(context.Background(), "question", 5)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.sentinel))
		})
	}
}

// memoryStore gives the end-to-end test a real ranking backend without a
// database: cosine distances, no-embedding rows excluded, stable ties.
type memoryStore struct {
	chunks []models.Chunk
}

func (m *memoryStore) Search(ctx context.Context, vector []float32, k int) ([]models.ScoredChunk, error) {
	if k <= 0 {
		return nil, fmt.Errorf("search limit must be positive, got %d", k)
	}
	var results []models.ScoredChunk
	for _, c := range m.chunks {
		if c.Embedding == nil {
			continue
		}
		var dot, na, nb float64
		for i := range vector {
			dot += float64(vector[i]) * float64(c.Embedding[i])
			na += float64(vector[i]) * float64(vector[i])
			nb += float64(c.Embedding[i]) * float64(c.Embedding[i])
		}
		d := 1.0
		if na > 0 && nb > 0 {
			d = 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
		}
		results = append(results, models.ScoredChunk{Chunk: c, Distance: d, Score: 1 - d})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func TestAskEndToEnd(t *testing.T) {
	embedder := embed.NewHashEmbedder(384)

	docs := []models.Document{
		{ID: "cats.txt", Text: "The cat sat on the mat."},
		{ID: "dogs.txt", Text: "Dogs bark loudly at night."},
	}

	var chunks []models.Chunk
	for _, doc := range docs {
		chunk := models.NewChunk(doc, 0, doc.Text)
		vec, err := embedder.Embed(chunk.Text)
		require.NoError(t, err)
		chunk.Embedding = vec
		chunks = append(chunks, chunk)
	}

	ret := retriever.New(embedder, &memoryStore{chunks: chunks}, zap.NewNop())
	gen := &stubGenerator{answer: "Cats sit on mats."}
	engine := NewEngine(ret, gen, zap.NewNop())

	result, err := engine.Ask(context.Background(), "What do cats do?", 1)
	require.NoError(t, err)

	require.Len(t, result.Chunks, 1)
	assert.Equal(t, "cats.txt_0", result.Chunks[0].SourceID)
	assert.Equal(t, "Cats sit on mats.", result.Answer)

	require.Equal(t, 1, gen.calls)
	assert.Contains(t, gen.prompts[0], "The cat sat on the mat.")
	assert.NotContains(t, gen.prompts[0], "Dogs bark")
}
