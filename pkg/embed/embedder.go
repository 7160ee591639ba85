// Package embed turns text into fixed-length dense vectors with a local
// model. No provider makes network calls.
package embed

import (
	"errors"
	"math"
)

// ErrEmbed marks failures producing a vector: missing model files, runtime
// initialization problems, inference errors.
var ErrEmbed = errors.New("embedding error")

// Embedder converts text into fixed-length vectors. Implementations are
// deterministic: the same input always yields the same vector, and batched
// calls yield the same vectors as single calls. Empty input embeds to a
// valid vector, never an error.
type Embedder interface {
	Embed(text string) ([]float32, error)
	EmbedBatch(texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// ONNXConfig configures the ONNX embedding session.
type ONNXConfig struct {
	ModelPath   string
	LibraryPath string // optional onnxruntime shared library override
	Dimensions  int
	MaxTokens   int
	CacheSize   int
}

func normalizeL2(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
}
