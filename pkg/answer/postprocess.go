package answer

import (
	"regexp"
	"strings"
)

var (
	leadingLabel = regexp.MustCompile(`(?i)^\s*[*_]*\s*(resposta|answer|response)\s*[*_]*\s*:\s*[*_]*\s*`)
	trailerStart = regexp.MustCompile(`(?im)^[ \t>#*_-]*(fontes|fonte|sources|referências|referencias|references|citations)[ \t*_]*:`)
)

// Clean removes an echoed answer label and any source list the model wrote itself.
func Clean(raw string) string {
	text := strings.TrimSpace(raw)
	text = leadingLabel.ReplaceAllString(text, "")
	if loc := trailerStart.FindStringIndex(text); loc != nil {
		text = text[:loc[0]]
	}
	return strings.TrimSpace(text)
}

// collapse squeezes whitespace and caps the text at limit runes.
func collapse(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	if limit > 0 {
		if r := []rune(text); len(r) > limit {
			text = string(r[:limit])
		}
	}
	return text
}
