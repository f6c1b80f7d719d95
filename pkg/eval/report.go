package eval

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

const (
	rawResultsFile = "hallucination_results_raw.json"
	summaryFile    = "hallucination_report_summary.json"
)

// Result is one evaluated case.
type Result struct {
	ID       string `json:"id"`
	Category string `json:"category"`
	Prompt   string `json:"prompt"`
	Response string `json:"response"`
	Score    Score  `json:"score"`
	Reason   string `json:"reason"`
}

type Summary struct {
	TotalTests              int            `json:"total_tests"`
	ScoreDistribution       map[string]int `json:"score_distribution"`
	HallucinationRate       float64        `json:"hallucination_rate"`
	SevereHallucinationRate float64        `json:"severe_hallucination_rate"`
	TotalHallucinations     int            `json:"total_hallucinations"`
	SevereHallucinations    int            `json:"severe_hallucinations"`
}

type CategoryStats struct {
	TotalTests        int            `json:"total_tests"`
	HallucinationRate float64        `json:"hallucination_rate"`
	ScoreDistribution map[string]int `json:"score_distribution"`
}

// Report aggregates results globally and per category.
// A score of 2 or more counts as a hallucination, 3 as a severe one.
type Report struct {
	Summary         Summary                  `json:"summary"`
	ByCategory      map[string]CategoryStats `json:"by_category"`
	EvaluationScale map[Score]string         `json:"evaluation_scale"`
}

func rate(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(n)/float64(total)*1e4) / 1e4
}

func GenerateReport(results []Result) Report {
	report := Report{
		Summary: Summary{
			TotalTests:        len(results),
			ScoreDistribution: make(map[string]int),
		},
		ByCategory:      make(map[string]CategoryStats),
		EvaluationScale: scoreLabels,
	}

	counts := make(map[string]map[Score]int)
	for _, r := range results {
		report.Summary.ScoreDistribution[r.Score.String()]++
		if r.Score >= ScoreOverconfident {
			report.Summary.TotalHallucinations++
		}
		if r.Score == ScoreHallucination {
			report.Summary.SevereHallucinations++
		}

		category := r.Category
		if category == "" {
			category = "uncategorized"
		}
		if counts[category] == nil {
			counts[category] = make(map[Score]int)
		}
		counts[category][r.Score]++
	}
	report.Summary.HallucinationRate = rate(report.Summary.TotalHallucinations, len(results))
	report.Summary.SevereHallucinationRate = rate(report.Summary.SevereHallucinations, len(results))

	for category, scores := range counts {
		stats := CategoryStats{ScoreDistribution: make(map[string]int, len(scoreLabels))}
		hallucinations := 0
		for score, label := range scoreLabels {
			n := scores[score]
			stats.ScoreDistribution[label] = n
			stats.TotalTests += n
			if score >= ScoreOverconfident {
				hallucinations += n
			}
		}
		stats.HallucinationRate = rate(hallucinations, stats.TotalTests)
		report.ByCategory[category] = stats
	}
	return report
}

// SaveReports writes the raw results and the report as indented JSON into dir.
func SaveReports(dir string, results []Result, report Report) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	if err := writeJSON(filepath.Join(dir, rawResultsFile), results); err != nil {
		return err
	}
	return writeJSON(filepath.Join(dir, summaryFile), report)
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
