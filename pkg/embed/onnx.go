//go:build cgo

package embed

import (
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
)

// ONNXEmbedder runs a sentence-transformer model through onnxruntime. The
// session owns pre-allocated input and output tensors, so inference is
// serialized with a mutex.
type ONNXEmbedder struct {
	config    ONNXConfig
	tokenizer *SimpleTokenizer
	cache     *Cache
	logger    *zap.Logger

	mu        sync.Mutex
	session   *ort.AdvancedSession
	inputIDs  *ort.Tensor[int64]
	attention *ort.Tensor[int64]
	tokenType *ort.Tensor[int64]
	output    *ort.Tensor[float32]
}

func NewONNXEmbedder(config ONNXConfig, logger *zap.Logger) (*ONNXEmbedder, error) {
	if config.Dimensions <= 0 {
		config.Dimensions = 384
	}
	if config.MaxTokens < 3 {
		config.MaxTokens = 256
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if _, err := os.Stat(config.ModelPath); err != nil {
		return nil, fmt.Errorf("%w: model file %q: %v", ErrEmbed, config.ModelPath, err)
	}

	if config.LibraryPath != "" {
		ort.SetSharedLibraryPath(config.LibraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("%w: initialize onnxruntime: %v", ErrEmbed, err)
		}
	}

	inputShape := ort.NewShape(1, int64(config.MaxTokens))
	inputIDs, err := ort.NewEmptyTensor[int64](inputShape)
	if err != nil {
		return nil, fmt.Errorf("%w: allocate input_ids tensor: %v", ErrEmbed, err)
	}
	attention, err := ort.NewEmptyTensor[int64](inputShape)
	if err != nil {
		inputIDs.Destroy()
		return nil, fmt.Errorf("%w: allocate attention_mask tensor: %v", ErrEmbed, err)
	}
	tokenType, err := ort.NewEmptyTensor[int64](inputShape)
	if err != nil {
		inputIDs.Destroy()
		attention.Destroy()
		return nil, fmt.Errorf("%w: allocate token_type_ids tensor: %v", ErrEmbed, err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(config.Dimensions)))
	if err != nil {
		inputIDs.Destroy()
		attention.Destroy()
		tokenType.Destroy()
		return nil, fmt.Errorf("%w: allocate output tensor: %v", ErrEmbed, err)
	}

	session, err := ort.NewAdvancedSession(config.ModelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"sentence_embedding"},
		[]ort.ArbitraryTensor{inputIDs, attention, tokenType},
		[]ort.ArbitraryTensor{output},
		nil,
	)
	if err != nil {
		inputIDs.Destroy()
		attention.Destroy()
		tokenType.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("%w: create session for %q: %v", ErrEmbed, config.ModelPath, err)
	}

	var cache *Cache
	if config.CacheSize > 0 {
		cache = NewCache(config.CacheSize)
	}

	logger.Info("onnx embedder ready",
		zap.String("model", config.ModelPath),
		zap.Int("dimensions", config.Dimensions),
		zap.Int("max_tokens", config.MaxTokens))

	return &ONNXEmbedder{
		config:    config,
		tokenizer: NewSimpleTokenizer(config.MaxTokens),
		cache:     cache,
		logger:    logger,
		session:   session,
		inputIDs:  inputIDs,
		attention: attention,
		tokenType: tokenType,
		output:    output,
	}, nil
}

func (e *ONNXEmbedder) Embed(text string) ([]float32, error) {
	if e.cache != nil {
		if vec, ok := e.cache.Get(text); ok {
			return vec, nil
		}
	}

	ids, mask := e.tokenizer.Tokenize(text)

	e.mu.Lock()
	if e.session == nil {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: embedder is closed", ErrEmbed)
	}
	copy(e.inputIDs.GetData(), ids)
	copy(e.attention.GetData(), mask)
	types := e.tokenType.GetData()
	for i := range types {
		types[i] = 0
	}
	if err := e.session.Run(); err != nil {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: inference: %v", ErrEmbed, err)
	}
	vec := make([]float32, e.config.Dimensions)
	copy(vec, e.output.GetData())
	e.mu.Unlock()

	normalizeL2(vec)
	if e.cache != nil {
		e.cache.Put(text, vec)
	}
	return vec, nil
}

func (e *ONNXEmbedder) EmbedBatch(texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vec, err := e.Embed(text)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, vec)
	}
	return vectors, nil
}

func (e *ONNXEmbedder) Dimensions() int {
	return e.config.Dimensions
}

func (e *ONNXEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil
	}
	err := e.session.Destroy()
	_ = e.inputIDs.Destroy()
	_ = e.attention.Destroy()
	_ = e.tokenType.Destroy()
	_ = e.output.Destroy()
	e.session = nil
	return err
}
