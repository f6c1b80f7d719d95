package types

import (
	"context"
	"errors"

	"github.com/xhad/regqa/internal/models"
)

// ErrMalformedResponse is returned by a TextGenerator whose provider answered without any choice.
var ErrMalformedResponse = models.ValidationError{Field: "generation", Message: "model response has no choices"}

// Core interfaces

// GenerationRequest is a single prompt sent to the generation model.
type GenerationRequest struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// TextGenerator produces text for a prompt. Empty text is a valid "no answer".
type TextGenerator interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

// VectorIndex is a loaded, read-only similarity index over the corpus.
type VectorIndex interface {
	SimilaritySearch(ctx context.Context, query string, k int) ([]models.Passage, error)
	Close()
}

// IndexOpener loads a persisted index from its location.
type IndexOpener func(ctx context.Context, location string) (VectorIndex, error)

// CrossEncoder scores (query, text) pairs; scores align with texts.
type CrossEncoder interface {
	Score(ctx context.Context, query string, texts []string) ([]float64, error)
}

// IsMalformed reports whether err came from a malformed model response.
func IsMalformed(err error) bool {
	var v models.ValidationError
	return errors.As(err, &v) && v == ErrMalformedResponse
}
