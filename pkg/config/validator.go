package config

import "fmt"

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate reports every missing or out-of-range setting. The required
// database and LLM fields come from the environment when unset in the file;
// anything listed here is fatal at startup.
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate Database config
	if c.Database.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "database.host",
			Message: "database host is required (set database.host or DB_HOST)",
		})
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "database.port",
			Message: "port must be between 1 and 65535",
		})
	}

	if c.Database.Name == "" {
		errors = append(errors, ValidationError{
			Field:   "database.name",
			Message: "database name is required (set database.name or DB_NAME)",
		})
	}

	if c.Database.User == "" {
		errors = append(errors, ValidationError{
			Field:   "database.user",
			Message: "database user is required (set database.user or DB_USER)",
		})
	}

	if c.Database.Password == "" {
		errors = append(errors, ValidationError{
			Field:   "database.password",
			Message: "database password is required (set database.password or DB_PASSWORD)",
		})
	}

	if c.Database.BatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.batch_size",
			Message: "batch_size must be positive",
		})
	}

	// Validate LLM config
	if c.LLM.APIKey == "" {
		errors = append(errors, ValidationError{
			Field:   "llm.api_key",
			Message: "API key is required (set llm.api_key or GOOGLE_API_KEY)",
		})
	}

	if c.LLM.Model == "" {
		errors = append(errors, ValidationError{
			Field:   "llm.model",
			Message: "model name is required (set llm.model or GOOGLE_MODEL_NAME)",
		})
	}

	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 8192 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be between 1 and 8192",
		})
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	if c.LLM.TimeoutSeconds < 1 {
		errors = append(errors, ValidationError{
			Field:   "llm.timeout_seconds",
			Message: "timeout_seconds must be positive",
		})
	}

	if c.LLM.RequestsPerMinute < 1 {
		errors = append(errors, ValidationError{
			Field:   "llm.requests_per_minute",
			Message: "requests_per_minute must be positive",
		})
	}

	// Validate Embedding config
	if c.Embedding.Provider != "onnx" && c.Embedding.Provider != "hash" {
		errors = append(errors, ValidationError{
			Field:   "embedding.provider",
			Message: fmt.Sprintf("unknown provider %q, must be onnx or hash", c.Embedding.Provider),
		})
	}

	if c.Embedding.Provider == "onnx" && c.Embedding.ModelPath == "" {
		errors = append(errors, ValidationError{
			Field:   "embedding.model_path",
			Message: "model_path is required for the onnx provider",
		})
	}

	if c.Embedding.Dimensions < 1 {
		errors = append(errors, ValidationError{
			Field:   "embedding.dimensions",
			Message: "dimensions must be positive",
		})
	}

	if c.Embedding.MaxTokens < 3 {
		errors = append(errors, ValidationError{
			Field:   "embedding.max_tokens",
			Message: "max_tokens must be at least 3",
		})
	}

	if c.Embedding.CacheSize < 0 {
		errors = append(errors, ValidationError{
			Field:   "embedding.cache_size",
			Message: "cache_size cannot be negative",
		})
	}

	// Validate Chunker config
	if c.Chunker.Size < 1 {
		errors = append(errors, ValidationError{
			Field:   "chunker.size",
			Message: "size must be positive",
		})
	}

	if c.Chunker.Overlap < 0 || c.Chunker.Overlap >= c.Chunker.Size {
		errors = append(errors, ValidationError{
			Field:   "chunker.overlap",
			Message: "overlap must be non-negative and less than size",
		})
	}

	// Validate Retrieval config
	if c.Retrieval.TopK < 1 {
		errors = append(errors, ValidationError{
			Field:   "retrieval.top_k",
			Message: "top_k must be positive",
		})
	}

	// Validate Server config
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "server.port",
			Message: "port must be between 1 and 65535",
		})
	}

	return errors
}
