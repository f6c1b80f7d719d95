package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrValidation is matched by every ValidationError.
var ErrValidation = errors.New("validation failed")

// ErrEmptyQuestion is returned for blank questions.
var ErrEmptyQuestion = ValidationError{Field: "question", Message: "question must not be empty"}

// ValidationError reports a contract violation at a stage boundary.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Outcome tells how a pipeline run ended.
type Outcome string

const (
	OutcomeAnswered Outcome = "answered"
	OutcomeFallback Outcome = "fallback"
	OutcomeNotReady Outcome = "not_ready"
	OutcomeNoMatch  Outcome = "no_match"
)

// SourceCitation is a deduplicated reference to a (title, page) of the corpus.
type SourceCitation struct {
	Title    string `json:"title"`
	Page     int    `json:"page"`
	Citation string `json:"citation"`
}

// Key is the deduplication key of a citation.
func (c SourceCitation) Key() string {
	return fmt.Sprintf("%s\x00%d", c.Title, c.Page)
}

// PipelineResult is the only externally visible output of the pipeline.
type PipelineResult struct {
	Answer   string           `json:"answer"`
	Sources  []SourceCitation `json:"sources"`
	Language Language         `json:"language"`
	Outcome  Outcome          `json:"-"`
}

// Validate checks the result before it leaves the pipeline.
func (r *PipelineResult) Validate() error {
	if r == nil {
		return ValidationError{Field: "result", Message: "result is missing"}
	}
	if strings.TrimSpace(r.Answer) == "" {
		return ValidationError{Field: "answer", Message: "answer is empty"}
	}
	seen := make(map[string]bool, len(r.Sources))
	for i, s := range r.Sources {
		if strings.TrimSpace(s.Title) == "" {
			return ValidationError{Field: fmt.Sprintf("sources[%d].title", i), Message: "title is empty"}
		}
		if seen[s.Key()] {
			return ValidationError{Field: fmt.Sprintf("sources[%d]", i), Message: "duplicate citation"}
		}
		seen[s.Key()] = true
	}
	return nil
}

// ChatTurn is one question/answer exchange of a session.
type ChatTurn struct {
	Question  string
	Answer    string
	Timestamp time.Time
}
