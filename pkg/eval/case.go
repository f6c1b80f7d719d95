// Package eval scores pipeline answers for hallucination and aggregates the scores into a report.
package eval

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Case is one regression question.
type Case struct {
	ID       string `json:"id" yaml:"id"`
	Category string `json:"category" yaml:"category"`
	Prompt   string `json:"prompt" yaml:"prompt"`
	// ExpectedBehavior starting with abstain, refuse, avoid or no_ means the answer must abstain.
	ExpectedBehavior  string   `json:"expected_behavior" yaml:"expected_behavior"`
	ForbiddenKeywords []string `json:"forbidden_keywords" yaml:"forbidden_keywords"`
}

func (c Case) expectsAbstention() bool {
	for _, prefix := range []string{"abstain", "refuse", "avoid", "no_"} {
		if strings.HasPrefix(c.ExpectedBehavior, prefix) {
			return true
		}
	}
	return false
}

// LoadCases reads cases from a JSON or YAML file.
func LoadCases(path string) ([]Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading cases file: %w", err)
	}

	var cases []Case
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cases)
	default:
		err = json.Unmarshal(data, &cases)
	}
	if err != nil {
		return nil, fmt.Errorf("error parsing cases file: %w", err)
	}

	for i := range cases {
		if strings.TrimSpace(cases[i].Prompt) == "" {
			return nil, fmt.Errorf("case %d (%s) has no prompt", i, cases[i].ID)
		}
		if cases[i].Category == "" {
			cases[i].Category = "uncategorized"
		}
	}
	return cases, nil
}
