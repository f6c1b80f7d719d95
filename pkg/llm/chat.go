package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
	"github.com/xhad/regqa/internal/types"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// ChatConfig represents the configuration for a chat engine.
type ChatConfig struct {
	Provider string
	Model    string
	BaseURL  string // Ollama server URL or OpenAI-compatible endpoint
	APIKey   string
	// Timeout bounds a single generation call.
	Timeout time.Duration
	// RequestsPerSecond limits calls to the provider; zero disables the limit.
	RequestsPerSecond float64
	Burst             int
}

// ChatEngine sends prompts to a chat model and returns its text.
type ChatEngine struct {
	config  ChatConfig
	llm     llms.Model
	limiter *rate.Limiter
	logger  *zap.Logger
}

func applyChatDefaults(config ChatConfig) (ChatConfig, error) {
	if config.Provider == "" {
		config.Provider = ProviderOllama
	}
	if config.Model == "" {
		config.Model = "llama3.1:8b"
	}
	if config.Provider == ProviderOllama && config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	if config.Timeout < 0 {
		return config, fmt.Errorf("timeout cannot be negative")
	} else if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	if config.RequestsPerSecond < 0 {
		return config, fmt.Errorf("requests per second cannot be negative")
	}
	if config.Burst <= 0 {
		config.Burst = 1
	}
	return config, nil
}

// NewWithConfig creates a new ChatEngine with the given configuration.
func NewWithConfig(config ChatConfig, logger *zap.Logger) (*ChatEngine, error) {
	config, err := applyChatDefaults(config)
	if err != nil {
		return nil, err
	}

	var model llms.Model
	switch config.Provider {
	case ProviderOllama:
		model, err = ollama.New(ollama.WithModel(config.Model),
			ollama.WithServerURL(config.BaseURL))
	case ProviderOpenAI:
		opts := []openai.Option{openai.WithModel(config.Model), openai.WithToken(config.APIKey)}
		if config.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(config.BaseURL))
		}
		model, err = openai.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", config.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	return newEngine(config, model, logger), nil
}

// NewWithModel wraps an already constructed langchaingo model.
func NewWithModel(config ChatConfig, model llms.Model, logger *zap.Logger) (*ChatEngine, error) {
	if model == nil {
		return nil, fmt.Errorf("model is required")
	}
	config, err := applyChatDefaults(config)
	if err != nil {
		return nil, err
	}
	return newEngine(config, model, logger), nil
}

func newEngine(config ChatConfig, model llms.Model, logger *zap.Logger) *ChatEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	if config.RequestsPerSecond > 0 {
		limit = rate.Limit(config.RequestsPerSecond)
	}
	return &ChatEngine{
		config:  config,
		llm:     model,
		limiter: rate.NewLimiter(limit, config.Burst),
		logger:  logger.With(zap.String("provider", config.Provider), zap.String("model", config.Model)),
	}
}

// Generate runs a single completion. An empty string means the model had nothing to say.
func (ce *ChatEngine) Generate(ctx context.Context, req types.GenerationRequest) (string, error) {
	if err := ce.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, ce.config.Timeout)
	defer cancel()

	content := make([]llms.MessageContent, 0, 2)
	if req.System != "" {
		content = append(content, llms.TextParts(schema.ChatMessageTypeSystem, req.System))
	}
	content = append(content, llms.TextParts(schema.ChatMessageTypeHuman, req.Prompt))

	opts := []llms.CallOption{llms.WithTemperature(req.Temperature)}
	if req.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.MaxTokens))
	}

	start := time.Now()
	response, err := ce.llm.GenerateContent(ctx, content, opts...)
	if err != nil {
		return "", fmt.Errorf("chat error: %w", err)
	}
	if response == nil || len(response.Choices) == 0 || response.Choices[0] == nil {
		return "", types.ErrMalformedResponse
	}

	text := strings.TrimSpace(response.Choices[0].Content)
	ce.logger.Debug("generation finished",
		zap.Duration("took", time.Since(start)),
		zap.Int("chars", len(text)))
	return text, nil
}
