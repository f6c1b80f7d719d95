package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

type scoreRequest struct {
	Query      string   `json:"query"`
	Candidates []string `json:"candidates"`
	Model      string   `json:"model,omitempty"`
}

type scoreResult struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

type scoreResponse struct {
	Results []scoreResult `json:"results"`
	Model   string        `json:"model"`
}

// HTTPCrossEncoder calls a cross-encoder service exposing POST /v1/rerank.
type HTTPCrossEncoder struct {
	BaseURL string
	Model   string
	Client  *http.Client
	logger  *zap.Logger
}

// NewHTTPCrossEncoder constructs a client. If client is nil one is created with the given timeout.
func NewHTTPCrossEncoder(baseURL, model string, timeout time.Duration, client *http.Client, logger *zap.Logger) *HTTPCrossEncoder {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPCrossEncoder{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   model,
		Client:  client,
		logger:  logger,
	}
}

// Score returns one relevance score per text, in the order of texts.
func (c *HTTPCrossEncoder) Score(ctx context.Context, query string, texts []string) ([]float64, error) {
	if len(texts) == 0 {
		return []float64{}, nil
	}
	start := time.Now()

	payload, err := json.Marshal(scoreRequest{Query: query, Candidates: texts, Model: c.Model})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/rerank", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call rerank endpoint: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("rerank endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode rerank response: %w", err)
	}
	if len(decoded.Results) != len(texts) {
		return nil, fmt.Errorf("rerank endpoint scored %d of %d candidates", len(decoded.Results), len(texts))
	}

	scores := make([]float64, len(texts))
	seen := make([]bool, len(texts))
	for _, r := range decoded.Results {
		if r.Index < 0 || r.Index >= len(texts) || seen[r.Index] {
			return nil, fmt.Errorf("invalid result index %d for %d candidates", r.Index, len(texts))
		}
		seen[r.Index] = true
		scores[r.Index] = r.Score
	}

	c.logger.Debug("cross-encoder scored candidates",
		zap.Int("count", len(texts)),
		zap.String("model", decoded.Model),
		zap.Duration("took", time.Since(start)))
	return scores, nil
}
