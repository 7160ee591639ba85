package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap"
)

// stubModel fakes the provider: it records what it was asked and answers
// with a canned response, an error, or by stalling until the context dies.
type stubModel struct {
	response *llms.ContentResponse
	err      error
	stall    bool

	messages []llms.MessageContent
}

func (s *stubModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	s.messages = messages
	if s.stall {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.response, nil
}

func (s *stubModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	resp, err := s.GenerateContent(ctx, []llms.MessageContent{llms.TextParts(schema.ChatMessageTypeHuman, prompt)}, options...)
	if err != nil {
		return "", err
	}
	return resp.Choices[0].Content, nil
}

func testConfig() Config {
	return Config{
		APIKey:            "test-key",
		Model:             "gemini-2.0-flash",
		Temperature:       0.7,
		MaxTokens:         700,
		Timeout:           time.Second,
		RequestsPerMinute: 6000,
	}
}

func TestGenerate(t *testing.T) {
	stub := &stubModel{response: &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: "Paris is the capital of France."}},
	}}
	client := newClient(stub, testConfig(), zap.NewNop())

	answer, err := client.Generate(context.Background(), "What is the capital of France?")
	require.NoError(t, err)
	assert.Equal(t, "Paris is the capital of France.", answer)

	require.Len(t, stub.messages, 1)
	assert.Equal(t, schema.ChatMessageTypeHuman, stub.messages[0].Role)
	require.Len(t, stub.messages[0].Parts, 1)
	text, ok := stub.messages[0].Parts[0].(llms.TextContent)
	require.True(t, ok)
	assert.Equal(t, "What is the capital of France?", text.Text)
}

func TestGenerateServiceError(t *testing.T) {
	stub := &stubModel{err: errors.New("googleapi: quota exceeded")}
	client := newClient(stub, testConfig(), zap.NewNop())

	_, err := client.Generate(context.Background(), "question")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrService))
	assert.False(t, errors.Is(err, ErrTimeout))
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestGenerateTimeout(t *testing.T) {
	config := testConfig()
	config.Timeout = 20 * time.Millisecond

	stub := &stubModel{stall: true}
	client := newClient(stub, config, zap.NewNop())

	_, err := client.Generate(context.Background(), "question")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout))
	assert.False(t, errors.Is(err, ErrService))
}

func TestGenerateEmptyResponse(t *testing.T) {
	stub := &stubModel{response: &llms.ContentResponse{}}
	client := newClient(stub, testConfig(), zap.NewNop())

	_, err := client.Generate(context.Background(), "question")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrService))
}

func TestGenerateRateLimited(t *testing.T) {
	config := testConfig()
	config.RequestsPerMinute = 1

	stub := &stubModel{response: &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: "ok"}},
	}}
	client := newClient(stub, config, zap.NewNop())

	_, err := client.Generate(context.Background(), "first")
	require.NoError(t, err)

	// The second request would have to wait a full minute; give it a context
	// that expires first.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = client.Generate(ctx, "second")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout))
}

func TestNewWithConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "missing api key", mutate: func(c *Config) { c.APIKey = "" }},
		{name: "missing model", mutate: func(c *Config) { c.Model = "" }},
		{name: "temperature too high", mutate: func(c *Config) { c.Temperature = 2.5 }},
		{name: "temperature negative", mutate: func(c *Config) { c.Temperature = -0.1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := testConfig()
			tt.mutate(&config)

			_, err := NewWithConfig(context.Background(), config, zap.NewNop())
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrService))
		})
	}
}
