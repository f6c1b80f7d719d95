package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xhad/regqa/pkg/logging"
	"github.com/xhad/regqa/pkg/retry"
	"gopkg.in/yaml.v3"
)

type Config struct {
	LLM struct {
		Provider          string        `yaml:"provider"`
		BaseURL           string        `yaml:"base_url"`
		Model             string        `yaml:"model"`
		APIKey            string        `yaml:"api_key"`
		Timeout           time.Duration `yaml:"timeout"`
		RequestsPerSecond float64       `yaml:"requests_per_second"`
		Burst             int           `yaml:"burst"`
	} `yaml:"llm"`

	Embedder struct {
		Provider  string `yaml:"provider"`
		BaseURL   string `yaml:"base_url"`
		Model     string `yaml:"model"`
		BatchSize int    `yaml:"batch_size"`
		CacheSize int    `yaml:"cache_size"`
	} `yaml:"embedder"`

	Rewrite struct {
		MinHistoryChars int     `yaml:"min_history_chars"`
		Temperature     float64 `yaml:"temperature"`
		MaxTokens       int     `yaml:"max_tokens"`
	} `yaml:"rewrite"`

	Generator struct {
		Temperature     float64 `yaml:"temperature"`
		MaxTokens       int     `yaml:"max_tokens"`
		MaxPassageChars int     `yaml:"max_passage_chars"`
	} `yaml:"generator"`

	Database struct {
		URL       string `yaml:"url"`
		TableName string `yaml:"table_name"`
		VectorDim int    `yaml:"vector_dim"`
		BatchSize int    `yaml:"batch_size"`
	} `yaml:"database"`

	Retrieval struct {
		MaxRetrieve int `yaml:"max_retrieve"`
	} `yaml:"retrieval"`

	Reranker struct {
		Enabled   bool          `yaml:"enabled"`
		BaseURL   string        `yaml:"base_url"`
		Model     string        `yaml:"model"`
		TopK      int           `yaml:"top_k"`
		Timeout   time.Duration `yaml:"timeout"`
		Workers   int           `yaml:"workers"`
		QueueSize int           `yaml:"queue_size"`
	} `yaml:"reranker"`

	History struct {
		TTL      time.Duration `yaml:"ttl"`
		MaxTurns int           `yaml:"max_turns"`
	} `yaml:"history"`

	Retry retry.PolicyConfig `yaml:"retry"`

	Processor struct {
		ChunkSize      int `yaml:"chunk_size"`
		ChunkOverlap   int `yaml:"chunk_overlap"`
		MinChunkLength int `yaml:"min_chunk_length"`
	} `yaml:"processor"`

	Loader struct {
		Extensions     []string `yaml:"extensions"`
		MaxDepth       int      `yaml:"max_depth"`
		RateLimit      float64  `yaml:"rate_limit"`
		IgnorePatterns []string `yaml:"ignore_patterns"`
	} `yaml:"loader"`

	Server struct {
		Address         string        `yaml:"address"`
		AllowedOrigins  []string      `yaml:"allowed_origins"`
		RequestTimeout  time.Duration `yaml:"request_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Log logging.Config `yaml:"log"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/regqa/config.yaml"),
			"/etc/regqa/config.yaml",
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
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
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
	if config.LLM.Provider == "" {
		config.LLM.Provider = "ollama"
	}
	if config.LLM.Model == "" {
		config.LLM.Model = "llama3.1:8b"
	}
	if config.LLM.BaseURL == "" && config.LLM.Provider == "ollama" {
		config.LLM.BaseURL = "http://localhost:11434"
	}
	if config.LLM.Timeout == 0 {
		config.LLM.Timeout = 60 * time.Second
	}
	if config.LLM.Burst == 0 {
		config.LLM.Burst = 1
	}

	if config.Embedder.Provider == "" {
		config.Embedder.Provider = config.LLM.Provider
	}
	if config.Embedder.Model == "" {
		config.Embedder.Model = "nomic-embed-text:latest"
	}
	if config.Embedder.BaseURL == "" && config.Embedder.Provider == config.LLM.Provider {
		config.Embedder.BaseURL = config.LLM.BaseURL
	}
	if config.Embedder.BatchSize == 0 {
		config.Embedder.BatchSize = 32
	}
	if config.Embedder.CacheSize == 0 {
		config.Embedder.CacheSize = 512
	}

	if config.Rewrite.MinHistoryChars == 0 {
		config.Rewrite.MinHistoryChars = 50
	}
	if config.Rewrite.MaxTokens == 0 {
		config.Rewrite.MaxTokens = 300
	}

	if config.Generator.MaxTokens == 0 {
		config.Generator.MaxTokens = 512
	}
	if config.Generator.MaxPassageChars == 0 {
		config.Generator.MaxPassageChars = 1000
	}

	if config.Database.TableName == "" {
		config.Database.TableName = "regulation_chunks"
	}
	if config.Database.VectorDim == 0 {
		config.Database.VectorDim = 768
	}
	if config.Database.BatchSize == 0 {
		config.Database.BatchSize = 64
	}

	if config.Retrieval.MaxRetrieve == 0 {
		config.Retrieval.MaxRetrieve = 6
	}

	if config.Reranker.TopK == 0 {
		config.Reranker.TopK = 5
	}
	if config.Reranker.Timeout == 0 {
		config.Reranker.Timeout = 30 * time.Second
	}
	if config.Reranker.Workers == 0 {
		config.Reranker.Workers = 2
	}
	if config.Reranker.QueueSize == 0 {
		config.Reranker.QueueSize = 16
	}

	if config.History.TTL == 0 {
		config.History.TTL = 24 * time.Hour
	}
	if config.History.MaxTurns == 0 {
		config.History.MaxTurns = 5
	}

	defaults := retry.DefaultPolicyConfig()
	if config.Retry.MaxAttempts == 0 {
		config.Retry.MaxAttempts = defaults.MaxAttempts
	}
	if config.Retry.MinDelay == 0 {
		config.Retry.MinDelay = defaults.MinDelay
	}
	if config.Retry.MaxDelay == 0 {
		config.Retry.MaxDelay = defaults.MaxDelay
	}
	if config.Retry.Multiplier == 0 {
		config.Retry.Multiplier = defaults.Multiplier
	}

	if config.Processor.ChunkSize == 0 {
		config.Processor.ChunkSize = 1000
	}
	if config.Processor.ChunkOverlap == 0 {
		config.Processor.ChunkOverlap = 200
	}
	if config.Processor.MinChunkLength == 0 {
		config.Processor.MinChunkLength = 20
	}

	if len(config.Loader.Extensions) == 0 {
		config.Loader.Extensions = []string{".txt", ".md", ".html", ".htm"}
	}
	if config.Loader.MaxDepth == 0 {
		config.Loader.MaxDepth = 2
	}
	if config.Loader.RateLimit == 0 {
		config.Loader.RateLimit = 2.0
	}

	if config.Server.Address == "" {
		config.Server.Address = ":8080"
	}
	if len(config.Server.AllowedOrigins) == 0 {
		config.Server.AllowedOrigins = []string{"*"}
	}
	if config.Server.RequestTimeout == 0 {
		config.Server.RequestTimeout = 90 * time.Second
	}
	if config.Server.ShutdownTimeout == 0 {
		config.Server.ShutdownTimeout = 10 * time.Second
	}

	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "json"
	}
}

func mergeWithEnv(config *Config) {
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.LLM.BaseURL = baseURL
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		config.LLM.APIKey = key
	}
	if v := os.Getenv("USE_RERANKER"); v != "" {
		if enabled, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			config.Reranker.Enabled = enabled
		}
	}
	if v := os.Getenv("MAX_RETRIEVE"); v != "" {
		if k, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			config.Retrieval.MaxRetrieve = k
		}
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Log.Level = level
	}
}
