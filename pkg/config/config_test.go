package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	// Create temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configData := `
llm:
  base_url: "http://localhost:11434"
  model: "qwen2.5:7b"
  timeout: 45s

database:
  url: "postgres://localhost:5432/test"
  table_name: "test_chunks"
  vector_dim: 768
  batch_size: 50

retrieval:
  max_retrieve: 8

reranker:
  enabled: true
  base_url: "http://localhost:8787"
  top_k: 4

history:
  ttl: 2h

retry:
  max_attempts: 5
  min_delay: 500ms

processor:
  chunk_size: 500
  chunk_overlap: 100

log:
  level: debug
  format: console
`
	err := os.WriteFile(configPath, []byte(configData), 0644)
	require.NoError(t, err)

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "ollama", config.LLM.Provider)
	assert.Equal(t, "http://localhost:11434", config.LLM.BaseURL)
	assert.Equal(t, "qwen2.5:7b", config.LLM.Model)
	assert.Equal(t, 45*time.Second, config.LLM.Timeout)
	assert.Equal(t, "postgres://localhost:5432/test", config.Database.URL)
	assert.Equal(t, "test_chunks", config.Database.TableName)
	assert.Equal(t, 8, config.Retrieval.MaxRetrieve)
	assert.True(t, config.Reranker.Enabled)
	assert.Equal(t, 4, config.Reranker.TopK)
	assert.Equal(t, 2*time.Hour, config.History.TTL)
	assert.Equal(t, 5, config.Retry.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, config.Retry.MinDelay)
	assert.Equal(t, 4*time.Second, config.Retry.MaxDelay)
	assert.Equal(t, 500, config.Processor.ChunkSize)
	assert.Equal(t, "debug", config.Log.Level)
	assert.Equal(t, "console", config.Log.Format)
	assert.Empty(t, config.Validate())
}

func TestDefaultConfig(t *testing.T) {
	config, err := getDefaultConfig()
	require.NoError(t, err)

	assert.Equal(t, 6, config.Retrieval.MaxRetrieve)
	assert.Equal(t, 5, config.Reranker.TopK)
	assert.Equal(t, 5, config.History.MaxTurns)
	assert.Equal(t, 24*time.Hour, config.History.TTL)
	assert.Equal(t, 3, config.Retry.MaxAttempts)
	assert.Equal(t, time.Second, config.Retry.MinDelay)
	assert.Equal(t, 50, config.Rewrite.MinHistoryChars)
	assert.Equal(t, config.LLM.BaseURL, config.Embedder.BaseURL)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm: [unclosed"), 0644))
	_, err = LoadConfig(path)
	assert.Error(t, err)
}

func validConfig() *Config {
	config := &Config{}
	applyDefaults(config)
	return config
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name          string
		mutate        func(*Config)
		expectedErrs  int
		errorMessages []string
	}{
		{
			name:         "valid config",
			mutate:       func(*Config) {},
			expectedErrs: 0,
		},
		{
			name: "invalid config",
			mutate: func(c *Config) {
				c.LLM.BaseURL = "invalid-url"
				c.Generator.MaxTokens = 5000
				c.Generator.Temperature = 3.0
				c.Database.URL = "invalid-url"
				c.Database.VectorDim = -1
			},
			expectedErrs: 5,
			errorMessages: []string{
				"llm.base_url: invalid LLM base URL",
				"generator.temperature: temperature must be between 0 and 2",
				"max_tokens: max_tokens must be between 1 and 4096",
				"database.url: invalid database URL",
				"vector_dim: vector_dim must be positive",
			},
		},
		{
			name: "openai without key",
			mutate: func(c *Config) {
				c.LLM.Provider = "openai"
				c.LLM.BaseURL = ""
				c.LLM.APIKey = ""
			},
			expectedErrs:  1,
			errorMessages: []string{"llm.api_key"},
		},
		{
			name: "reranker enabled without endpoint",
			mutate: func(c *Config) {
				c.Reranker.Enabled = true
			},
			expectedErrs:  1,
			errorMessages: []string{"reranker.base_url"},
		},
		{
			name: "pipeline limits",
			mutate: func(c *Config) {
				c.Retrieval.MaxRetrieve = 0
				c.Retry.MaxAttempts = 0
				c.Processor.ChunkOverlap = c.Processor.ChunkSize
				c.Loader.Extensions = []string{"txt"}
			},
			expectedErrs: 4,
			errorMessages: []string{
				"retrieval.max_retrieve",
				"retry.max_attempts",
				"processor.chunk_overlap",
				"invalid extension format: txt",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validConfig()
			tt.mutate(config)
			errors := config.Validate()
			assert.Len(t, errors, tt.expectedErrs)

			if tt.errorMessages != nil && len(errors) == tt.expectedErrs {
				for i, msg := range tt.errorMessages {
					assert.Contains(t, errors[i].Error(), msg)
				}
			}
		})
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("OLLAMA_BASE_URL", "http://env-ollama:11434")
	t.Setenv("DATABASE_URL", "postgres://env-db:5432/test")
	t.Setenv("USE_RERANKER", "true")
	t.Setenv("MAX_RETRIEVE", "10")
	t.Setenv("LOG_LEVEL", "warn")

	config := &Config{}
	mergeWithEnv(config)

	assert.Equal(t, "http://env-ollama:11434", config.LLM.BaseURL)
	assert.Equal(t, "postgres://env-db:5432/test", config.Database.URL)
	assert.True(t, config.Reranker.Enabled)
	assert.Equal(t, 10, config.Retrieval.MaxRetrieve)
	assert.Equal(t, "warn", config.Log.Level)
}

func TestEnvironmentOverridesIgnoreMalformed(t *testing.T) {
	t.Setenv("USE_RERANKER", "maybe")
	t.Setenv("MAX_RETRIEVE", "many")

	config := &Config{}
	config.Retrieval.MaxRetrieve = 3
	mergeWithEnv(config)

	assert.False(t, config.Reranker.Enabled)
	assert.Equal(t, 3, config.Retrieval.MaxRetrieve)
}
