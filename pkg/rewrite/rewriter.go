// Package rewrite turns a user question into a standalone search query.
package rewrite

import (
	"context"
	"fmt"
	"strings"

	"github.com/xhad/regqa/internal/models"
	"github.com/xhad/regqa/internal/types"
	"go.uber.org/zap"
)

// RewriterConfig represents the configuration for the query rewriter.
type RewriterConfig struct {
	// MinHistoryChars is the trimmed history length from which the contextual prompt is used.
	MinHistoryChars int
	Temperature     float64
	MaxTokens       int
}

// Rewriter asks a text generator for a self-contained version of the question.
type Rewriter struct {
	config    RewriterConfig
	generator types.TextGenerator
	logger    *zap.Logger
}

func NewWithConfig(config RewriterConfig, generator types.TextGenerator, logger *zap.Logger) *Rewriter {
	if config.MinHistoryChars <= 0 {
		config.MinHistoryChars = 50
	}
	if config.Temperature < 0 {
		config.Temperature = 0
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = 300
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rewriter{config: config, generator: generator, logger: logger}
}

// SelectVariant picks the contextual prompt only when the history carries enough text to help.
func SelectVariant(history string, minChars int) models.RewriteVariant {
	if len([]rune(strings.TrimSpace(history))) < minChars {
		return models.VariantMinimal
	}
	return models.VariantContextual
}

// Prompt renders the rewrite prompt for the given variant.
func Prompt(question, history string, lang models.Language, variant models.RewriteVariant) (string, error) {
	values := map[string]any{"question": strings.TrimSpace(question)}
	if variant == models.VariantContextual {
		values["history"] = strings.TrimSpace(history)
	}
	prompt, err := templateFor(lang, variant).Format(values)
	if err != nil {
		return "", fmt.Errorf("failed to render rewrite prompt: %w", err)
	}
	return prompt, nil
}

// Rewrite never fails: when the model errors or answers nothing, the original
// question is used and the result is marked as a fallback.
func (r *Rewriter) Rewrite(ctx context.Context, question, history string, lang models.Language) models.RewrittenQuery {
	variant := SelectVariant(history, r.config.MinHistoryChars)
	result := models.RewrittenQuery{
		Original: question,
		Text:     strings.TrimSpace(question),
		Language: lang,
		Variant:  variant,
	}

	fallback := func(reason string, err error) models.RewrittenQuery {
		r.logger.Warn("query rewrite failed, using original question",
			zap.String("reason", reason),
			zap.String("variant", string(variant)),
			zap.Error(err))
		result.FellBack = true
		return result
	}

	prompt, err := Prompt(question, history, lang, variant)
	if err != nil {
		return fallback("prompt", err)
	}

	text, err := r.generator.Generate(ctx, types.GenerationRequest{
		Prompt:      prompt,
		Temperature: r.config.Temperature,
		MaxTokens:   r.config.MaxTokens,
	})
	if err != nil {
		return fallback("generation", err)
	}

	text = Clean(text)
	if text == "" {
		return fallback("empty output", nil)
	}

	result.Text = text
	r.logger.Debug("query rewritten",
		zap.String("variant", string(variant)),
		zap.String("original", question),
		zap.String("rewritten", text))
	return result
}

// Clean strips whitespace, an echoed prompt label and wrapping quotes from model output.
func Clean(text string) string {
	text = strings.TrimSpace(text)
	for _, label := range echoedLabels {
		if len(text) >= len(label) && strings.EqualFold(text[:len(label)], label) {
			text = strings.TrimSpace(text[len(label):])
			break
		}
	}
	for _, q := range [][2]string{{`"`, `"`}, {"'", "'"}, {"“", "”"}, {"«", "»"}} {
		if len(text) >= len(q[0])+len(q[1]) && strings.HasPrefix(text, q[0]) && strings.HasSuffix(text, q[1]) {
			inner := text[len(q[0]) : len(text)-len(q[1])]
			if !strings.Contains(inner, q[0]) && !strings.Contains(inner, q[1]) {
				text = strings.TrimSpace(inner)
			}
			break
		}
	}
	return text
}
