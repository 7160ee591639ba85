//go:build !cgo

package embed

import (
	"fmt"

	"go.uber.org/zap"
)

// ONNXEmbedder requires cgo for the onnxruntime bindings. This build has cgo
// disabled, so construction always fails; use the hash provider instead.
type ONNXEmbedder struct {
	dims int
}

func NewONNXEmbedder(config ONNXConfig, logger *zap.Logger) (*ONNXEmbedder, error) {
	return nil, fmt.Errorf("%w: onnx provider requires a cgo build", ErrEmbed)
}

func (e *ONNXEmbedder) Embed(text string) ([]float32, error) {
	return nil, fmt.Errorf("%w: onnx provider requires a cgo build", ErrEmbed)
}

func (e *ONNXEmbedder) EmbedBatch(texts []string) ([][]float32, error) {
	return nil, fmt.Errorf("%w: onnx provider requires a cgo build", ErrEmbed)
}

func (e *ONNXEmbedder) Dimensions() int {
	return e.dims
}

func (e *ONNXEmbedder) Close() error {
	return nil
}
