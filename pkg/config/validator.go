package config

import (
	"fmt"
	"net/url"
	"strings"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func validURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme != "" && u.Host != ""
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate LLM config
	switch c.LLM.Provider {
	case "ollama":
		if c.LLM.BaseURL == "" {
			errors = append(errors, ValidationError{
				Field:   "llm.base_url",
				Message: "Ollama base URL is required",
			})
		}
	case "openai":
		if c.LLM.APIKey == "" {
			errors = append(errors, ValidationError{
				Field:   "llm.api_key",
				Message: "api_key is required for the openai provider",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "llm.provider",
			Message: fmt.Sprintf("unknown provider: %s", c.LLM.Provider),
		})
	}

	if c.LLM.BaseURL != "" && !validURL(c.LLM.BaseURL) {
		errors = append(errors, ValidationError{
			Field:   "llm.base_url",
			Message: "invalid LLM base URL",
		})
	}

	if c.LLM.RequestsPerSecond < 0 {
		errors = append(errors, ValidationError{
			Field:   "llm.requests_per_second",
			Message: "requests_per_second must not be negative",
		})
	}

	if c.Rewrite.Temperature < 0 || c.Rewrite.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "rewrite.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	if c.Generator.Temperature < 0 || c.Generator.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "generator.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	if c.Generator.MaxTokens < 1 || c.Generator.MaxTokens > 4096 {
		errors = append(errors, ValidationError{
			Field:   "generator.max_tokens",
			Message: "max_tokens must be between 1 and 4096",
		})
	}

	// Validate Database config
	if c.Database.URL != "" && !validURL(c.Database.URL) {
		errors = append(errors, ValidationError{
			Field:   "database.url",
			Message: "invalid database URL",
		})
	}

	if c.Database.VectorDim < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.vector_dim",
			Message: "vector_dim must be positive",
		})
	}

	if c.Database.BatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.batch_size",
			Message: "batch_size must be positive",
		})
	}

	// Validate pipeline config
	if c.Retrieval.MaxRetrieve < 1 {
		errors = append(errors, ValidationError{
			Field:   "retrieval.max_retrieve",
			Message: "max_retrieve must be positive",
		})
	}

	if c.Reranker.Enabled {
		if !validURL(c.Reranker.BaseURL) {
			errors = append(errors, ValidationError{
				Field:   "reranker.base_url",
				Message: "a valid reranker base URL is required when the reranker is enabled",
			})
		}
		if c.Reranker.TopK < 1 {
			errors = append(errors, ValidationError{
				Field:   "reranker.top_k",
				Message: "top_k must be positive",
			})
		}
	}

	if c.History.TTL <= 0 {
		errors = append(errors, ValidationError{
			Field:   "history.ttl",
			Message: "ttl must be positive",
		})
	}

	if c.Retry.MaxAttempts < 1 {
		errors = append(errors, ValidationError{
			Field:   "retry.max_attempts",
			Message: "max_attempts must be at least 1",
		})
	}

	if c.Retry.MaxDelay < c.Retry.MinDelay {
		errors = append(errors, ValidationError{
			Field:   "retry.max_delay",
			Message: "max_delay must not be shorter than min_delay",
		})
	}

	// Validate Processor config
	if c.Processor.ChunkSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "processor.chunk_size",
			Message: "chunk_size must be positive",
		})
	}

	if c.Processor.ChunkOverlap < 0 || c.Processor.ChunkOverlap >= c.Processor.ChunkSize {
		errors = append(errors, ValidationError{
			Field:   "processor.chunk_overlap",
			Message: "chunk_overlap must be non-negative and less than chunk_size",
		})
	}

	// Validate Loader config
	if c.Loader.RateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "loader.rate_limit",
			Message: "rate_limit must be positive",
		})
	}

	for _, ext := range c.Loader.Extensions {
		if !strings.HasPrefix(ext, ".") {
			errors = append(errors, ValidationError{
				Field:   "loader.extensions",
				Message: fmt.Sprintf("invalid extension format: %s", ext),
			})
		}
	}

	return errors
}
