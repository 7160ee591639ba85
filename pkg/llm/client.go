// Package llm wraps the Gemini chat models behind a small client with
// sentinel errors callers can branch on.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// The two failure modes callers treat differently: the provider refusing or
// failing a request versus a request running out of time.
var (
	ErrService = errors.New("llm service error")
	ErrTimeout = errors.New("llm timeout")
)

type Config struct {
	APIKey            string
	Model             string
	Temperature       float64
	MaxTokens         int
	Timeout           time.Duration
	RequestsPerMinute int
}

type Client struct {
	config  Config
	model   llms.Model
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewWithConfig validates the configuration and connects a Gemini client.
func NewWithConfig(ctx context.Context, config Config, logger *zap.Logger) (*Client, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("%w: api key is required", ErrService)
	}
	if config.Model == "" {
		return nil, fmt.Errorf("%w: model name is required", ErrService)
	}
	if config.Temperature < 0 || config.Temperature > 2 {
		return nil, fmt.Errorf("%w: temperature must be between 0 and 2, got %g", ErrService, config.Temperature)
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = 700
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = 60
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	model, err := googleai.New(ctx,
		googleai.WithAPIKey(config.APIKey),
		googleai.WithDefaultModel(config.Model))
	if err != nil {
		return nil, fmt.Errorf("%w: initialize client: %v", ErrService, err)
	}

	return newClient(model, config, logger), nil
}

func newClient(model llms.Model, config Config, logger *zap.Logger) *Client {
	return &Client{
		config:  config,
		model:   model,
		limiter: rate.NewLimiter(rate.Limit(float64(config.RequestsPerMinute)/60.0), 1),
		logger:  logger,
	}
}

// Generate sends the prompt and returns the model's text answer. Requests
// that run out of time surface as ErrTimeout, everything else the provider
// reports as ErrService.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: waiting for rate limit: %v", ErrTimeout, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.model.GenerateContent(ctx,
		[]llms.MessageContent{llms.TextParts(schema.ChatMessageTypeHuman, prompt)},
		llms.WithTemperature(c.config.Temperature),
		llms.WithMaxTokens(c.config.MaxTokens),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: no answer after %s: %v", ErrTimeout, c.config.Timeout, err)
		}
		return "", fmt.Errorf("%w: %v", ErrService, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: response carried no choices", ErrService)
	}

	c.logger.Debug("generated answer",
		zap.String("model", c.config.Model),
		zap.Duration("took", time.Since(start)))

	return resp.Choices[0].Content, nil
}

// Model reports the configured model name.
func (c *Client) Model() string {
	return c.config.Model
}
