package eval

import (
	"context"

	"github.com/xhad/regqa/internal/models"
	"go.uber.org/zap"
)

// Answerer is the pipeline under evaluation.
type Answerer interface {
	Process(ctx context.Context, q models.Question) (*models.PipelineResult, error)
}

type Runner struct {
	pipeline Answerer
	logger   *zap.Logger
	// OnResult, if set, is called after each case is scored.
	OnResult func(Result)
}

func NewRunner(pipeline Answerer, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{pipeline: pipeline, logger: logger}
}

// Run asks every case without session history. A pipeline error becomes the
// scored response so a failing case still shows up in the report.
func (r *Runner) Run(ctx context.Context, cases []Case) ([]Result, error) {
	results := make([]Result, 0, len(cases))
	for _, c := range cases {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		response := ""
		answer, err := r.pipeline.Process(ctx, models.Question{Text: c.Prompt})
		if err != nil {
			r.logger.Warn("case failed", zap.String("case", c.ID), zap.Error(err))
			response = "[error during pipeline execution] " + err.Error()
		} else {
			response = answer.Answer
		}

		verdict := Evaluate(c, response)
		result := Result{
			ID:       c.ID,
			Category: c.Category,
			Prompt:   c.Prompt,
			Response: response,
			Score:    verdict.Score,
			Reason:   verdict.Reason,
		}
		r.logger.Debug("case scored",
			zap.String("case", c.ID),
			zap.Int("score", int(verdict.Score)),
			zap.String("reason", verdict.Reason))
		if r.OnResult != nil {
			r.OnResult(result)
		}
		results = append(results, result)
	}
	return results, nil
}
