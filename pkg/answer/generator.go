// Package answer synthesizes a grounded answer from retrieved passages.
package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/xhad/regqa/internal/models"
	"github.com/xhad/regqa/internal/types"
	"go.uber.org/zap"
)

// GeneratorConfig represents the configuration for answer generation.
type GeneratorConfig struct {
	Temperature float64
	MaxTokens   int
	// MaxPassageChars caps each passage in the context block.
	MaxPassageChars int
}

// Generator builds the labeled context prompt, calls the model and attaches citations.
type Generator struct {
	config    GeneratorConfig
	generator types.TextGenerator
	logger    *zap.Logger
}

func NewWithConfig(config GeneratorConfig, generator types.TextGenerator, logger *zap.Logger) *Generator {
	if config.Temperature < 0 {
		config.Temperature = 0
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = 512
	}
	if config.MaxPassageChars <= 0 {
		config.MaxPassageChars = 1000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{config: config, generator: generator, logger: logger}
}

// BuildContext renders passages as "[title - page n]" headed blocks.
func (g *Generator) BuildContext(passages []models.Passage, lang models.Language) string {
	blocks := make([]string, 0, len(passages))
	for i, p := range passages {
		title := passageTitle(p)
		if title == "" {
			title = fmt.Sprintf("#%d", i+1)
		}
		blocks = append(blocks, fmt.Sprintf("[%s]\n%s", label(title, p.Page, lang), collapse(p.Content, g.config.MaxPassageChars)))
	}
	return strings.Join(blocks, "\n\n")
}

func fallback(lang models.Language) *models.PipelineResult {
	return &models.PipelineResult{
		Answer:   FallbackText(lang),
		Sources:  []models.SourceCitation{},
		Language: lang,
		Outcome:  models.OutcomeFallback,
	}
}

// Generate answers question from passages. Without passages, or when the model
// answers nothing usable, the canned fallback is returned with no citations.
func (g *Generator) Generate(ctx context.Context, question string, passages []models.Passage, lang models.Language) (*models.PipelineResult, error) {
	if len(passages) == 0 {
		g.logger.Info("no passages to ground on, returning fallback")
		return fallback(lang), nil
	}

	pack := packFor(lang)
	prompt, err := pack.human.Format(map[string]any{
		"context":  g.BuildContext(passages, lang),
		"question": strings.TrimSpace(question),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render answer prompt: %w", err)
	}

	raw, err := g.generator.Generate(ctx, types.GenerationRequest{
		System:      pack.system,
		Prompt:      prompt,
		Temperature: g.config.Temperature,
		MaxTokens:   g.config.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	text := Clean(raw)
	if text == "" {
		g.logger.Warn("model returned no usable answer, returning fallback", zap.Int("raw_chars", len(raw)))
		return fallback(lang), nil
	}

	citations := Citations(passages, lang)
	if block := FurtherReading(citations, lang); block != "" {
		text += "\n\n" + block
	}

	g.logger.Debug("answer generated",
		zap.Int("passages", len(passages)),
		zap.Int("citations", len(citations)))
	return &models.PipelineResult{
		Answer:   text,
		Sources:  citations,
		Language: lang,
		Outcome:  models.OutcomeAnswered,
	}, nil
}
