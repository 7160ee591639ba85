package embed_test

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinevec/cinevec/pkg/embed"
)

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func TestHashEmbedderDeterministic(t *testing.T) {
	e := embed.NewHashEmbedder(384)

	first, err := e.Embed("The Matrix is a science fiction film")
	require.NoError(t, err)
	second, err := e.Embed("The Matrix is a science fiction film")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// A fresh instance produces the same vector for the same text.
	other, err := embed.NewHashEmbedder(384).Embed("The Matrix is a science fiction film")
	require.NoError(t, err)
	assert.Equal(t, first, other)
}

func TestHashEmbedderDimensions(t *testing.T) {
	e := embed.NewHashEmbedder(384)
	assert.Equal(t, 384, e.Dimensions())

	vec, err := e.Embed("some text")
	require.NoError(t, err)
	assert.Len(t, vec, 384)

	small := embed.NewHashEmbedder(16)
	vec, err = small.Embed("some text")
	require.NoError(t, err)
	assert.Len(t, vec, 16)

	// Non-positive dimensions fall back to the default.
	assert.Equal(t, 384, embed.NewHashEmbedder(0).Dimensions())
}

func TestHashEmbedderNormalized(t *testing.T) {
	e := embed.NewHashEmbedder(384)

	for _, text := range []string{"a", "the cat sat on the mat", "Título con acentos y más"} {
		vec, err := e.Embed(text)
		require.NoError(t, err)

		var sum float64
		for _, v := range vec {
			sum += float64(v) * float64(v)
		}
		assert.InDelta(t, 1.0, sum, 1e-4, "norm for %q", text)
	}
}

func TestHashEmbedderEmptyText(t *testing.T) {
	e := embed.NewHashEmbedder(384)

	for _, text := range []string{"", "   ", "\t\n", "?!, ."} {
		vec, err := e.Embed(text)
		require.NoError(t, err, "text %q", text)
		require.Len(t, vec, 384)

		var sum float64
		for _, v := range vec {
			sum += float64(v) * float64(v)
		}
		assert.InDelta(t, 1.0, sum, 1e-6, "text %q", text)
	}
}

func TestHashEmbedderBatchMatchesSingle(t *testing.T) {
	e := embed.NewHashEmbedder(384)
	texts := []string{"first chunk", "second chunk", "", "first chunk"}

	batch, err := e.EmbedBatch(texts)
	require.NoError(t, err)
	require.Len(t, batch, len(texts))

	for i, text := range texts {
		single, err := e.Embed(text)
		require.NoError(t, err)
		assert.Equal(t, single, batch[i], "texts[%d]", i)
	}
}

func TestHashEmbedderSimilarityRanking(t *testing.T) {
	e := embed.NewHashEmbedder(384)

	embedOf := func(text string) []float32 {
		vec, err := e.Embed(text)
		require.NoError(t, err)
		return vec
	}

	query := embedOf("What do cats do?")
	catDoc := embedOf("The cat sat on the mat.")
	dogDoc := embedOf("Dogs bark loudly at night.")

	catScore := cosine(query, catDoc)
	dogScore := cosine(query, dogDoc)
	assert.Greater(t, catScore, dogScore,
		"cat question should land closer to the cat sentence (%.4f vs %.4f)", catScore, dogScore)

	// Inflected forms stay close.
	cat := embedOf("cat")
	cats := embedOf("cats")
	dogs := embedOf("dogs")
	assert.Greater(t, cosine(cat, cats), cosine(cat, dogs))
}

func TestHashEmbedderDistinctTexts(t *testing.T) {
	e := embed.NewHashEmbedder(384)

	seen := make(map[string][]float32)
	for i := 0; i < 20; i++ {
		text := fmt.Sprintf("document number %d about topic %d", i, i*7)
		vec, err := e.Embed(text)
		require.NoError(t, err)
		for prev, prevVec := range seen {
			assert.NotEqual(t, prevVec, vec, "%q vs %q", prev, text)
		}
		seen[text] = vec
	}
}
