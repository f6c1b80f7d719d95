package models

import "strings"

// Language is one of the supported question/answer languages.
type Language string

const (
	Portuguese Language = "pt"
	English    Language = "en"
)

// PrimaryLanguage is used whenever detection is inconclusive.
const PrimaryLanguage = Portuguese

// ParseLanguage normalizes a declared language code. ok is false for unsupported codes.
func ParseLanguage(code string) (Language, bool) {
	code = strings.ToLower(strings.TrimSpace(code))
	if i := strings.IndexAny(code, "-_"); i > 0 {
		code = code[:i]
	}
	switch Language(code) {
	case Portuguese:
		return Portuguese, true
	case English:
		return English, true
	}
	return "", false
}

// Question is the raw inbound request. It is never mutated by the pipeline.
type Question struct {
	Text      string
	Language  string
	SessionID string
}

// RewriteVariant names the prompt used to rewrite a question.
type RewriteVariant string

const (
	VariantMinimal    RewriteVariant = "minimal"
	VariantContextual RewriteVariant = "contextual"
)

// RewrittenQuery is the standalone, search-ready form of a question.
type RewrittenQuery struct {
	Original string
	Text     string
	Language Language
	Variant  RewriteVariant
	FellBack bool
}

// Passage is a retrieved chunk of a source document.
type Passage struct {
	ID       string
	Content  string
	Source   string
	Page     int
	Score    float64
	Metadata map[string]interface{}
}

// RankedPassage is a Passage with the relevance score assigned by the reranker.
// Position is the passage's index in the retrieval order.
type RankedPassage struct {
	Passage
	RerankScore float64
	Position    int
}

// Passages strips the rerank scores, keeping the ranked order.
func Passages(ranked []RankedPassage) []Passage {
	out := make([]Passage, len(ranked))
	for i, r := range ranked {
		out[i] = r.Passage
	}
	return out
}
