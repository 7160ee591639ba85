package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	LLM       LLMConfig       `yaml:"llm"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Chunker   ChunkerConfig   `yaml:"chunker"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type DatabaseConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Name      string `yaml:"name"`
	User      string `yaml:"user"`
	Password  string `yaml:"password"`
	SSLMode   string `yaml:"sslmode"`
	TableName string `yaml:"table_name"`
	BatchSize int    `yaml:"batch_size"`
}

type LLMConfig struct {
	APIKey            string  `yaml:"api_key"`
	Model             string  `yaml:"model"`
	MaxTokens         int     `yaml:"max_tokens"`
	Temperature       float64 `yaml:"temperature"`
	TimeoutSeconds    int     `yaml:"timeout_seconds"`
	RequestsPerMinute int     `yaml:"requests_per_minute"`
}

type EmbeddingConfig struct {
	Provider    string `yaml:"provider"`
	ModelPath   string `yaml:"model_path"`
	LibraryPath string `yaml:"library_path"`
	Dimensions  int    `yaml:"dimensions"`
	MaxTokens   int    `yaml:"max_tokens"`
	CacheSize   int    `yaml:"cache_size"`
}

type ChunkerConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

type IngestConfig struct {
	Dir             string `yaml:"dir"`
	WatchDebounceMS int    `yaml:"watch_debounce_ms"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type LoggingConfig struct {
	Debug bool `yaml:"debug"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/cinevec/config.yaml"),
			"/etc/cinevec/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}

	// Merge with environment variables
	mergeWithEnv(&config)

	// Apply defaults for unset values
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.Database.Port == 0 {
		config.Database.Port = 5432
	}
	if config.Database.SSLMode == "" {
		config.Database.SSLMode = "disable"
	}
	if config.Database.TableName == "" {
		config.Database.TableName = "documents"
	}
	if config.Database.BatchSize == 0 {
		config.Database.BatchSize = 100
	}

	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 700
	}
	if config.LLM.Temperature == 0 {
		config.LLM.Temperature = 0.7
	}
	if config.LLM.TimeoutSeconds == 0 {
		config.LLM.TimeoutSeconds = 30
	}
	if config.LLM.RequestsPerMinute == 0 {
		config.LLM.RequestsPerMinute = 60
	}

	if config.Embedding.Provider == "" {
		config.Embedding.Provider = "onnx"
	}
	if config.Embedding.ModelPath == "" {
		config.Embedding.ModelPath = "models/all-MiniLM-L6-v2.onnx"
	}
	if config.Embedding.Dimensions == 0 {
		config.Embedding.Dimensions = 384
	}
	if config.Embedding.MaxTokens == 0 {
		config.Embedding.MaxTokens = 256
	}
	if config.Embedding.CacheSize == 0 {
		config.Embedding.CacheSize = 1024
	}

	if config.Chunker.Size == 0 {
		config.Chunker.Size = 500
	}
	if config.Chunker.Overlap == 0 {
		config.Chunker.Overlap = 50
	}

	if config.Retrieval.TopK == 0 {
		config.Retrieval.TopK = 5
	}

	if config.Ingest.WatchDebounceMS == 0 {
		config.Ingest.WatchDebounceMS = 2000
	}

	if config.Server.Host == "" {
		config.Server.Host = "0.0.0.0"
	}
	if config.Server.Port == 0 {
		config.Server.Port = 8080
	}
}

func mergeWithEnv(config *Config) {
	if host := os.Getenv("DB_HOST"); host != "" {
		config.Database.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Database.Port = p
		}
	}
	if name := os.Getenv("DB_NAME"); name != "" {
		config.Database.Name = name
	}
	if user := os.Getenv("DB_USER"); user != "" {
		config.Database.User = user
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		config.Database.Password = password
	}
	if apiKey := os.Getenv("GOOGLE_API_KEY"); apiKey != "" {
		config.LLM.APIKey = apiKey
	}
	if model := os.Getenv("GOOGLE_MODEL_NAME"); model != "" {
		config.LLM.Model = model
	}
}

// DatabaseURL assembles the pgx connection string from the discrete database
// fields, escaping credentials.
func (c *Config) DatabaseURL() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.Database.User, c.Database.Password),
		Host:   fmt.Sprintf("%s:%d", c.Database.Host, c.Database.Port),
		Path:   c.Database.Name,
	}
	q := u.Query()
	q.Set("sslmode", c.Database.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
