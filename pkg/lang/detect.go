// Package lang classifies questions as Portuguese or English with keyword heuristics.
package lang

import (
	"strings"
	"unicode"

	"github.com/xhad/regqa/internal/models"
)

// maxScan bounds the number of bytes inspected per call.
const maxScan = 64 * 1024

var portugueseKeywords = toSet(
	"que", "qual", "quais", "como", "quando", "onde", "por", "para",
	"regulamento", "edital", "prova", "olimpíada", "olimpiada", "inscrição", "inscricao",
	"posso", "pode", "podem", "devo", "preciso", "está", "são", "foi", "será",
	"isso", "aquilo", "ele", "ela", "não", "sobre", "uma", "um", "os",
)

var englishKeywords = toSet(
	"what", "which", "how", "when", "where", "why", "who", "can",
	"regulation", "regulations", "exam", "olympiad", "registration",
	"should", "must", "is", "are", "was", "will", "the", "this", "that", "it",
	"does", "about", "your", "of",
)

func toSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// Detect returns the language whose keywords occur more often in text.
// Ties, including no matches at all, resolve to the primary language.
func Detect(text string) models.Language {
	if len(text) > maxScan {
		text = text[:maxScan]
	}
	text = strings.ToLower(text)

	var pt, en int
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, w := range words {
		if _, ok := portugueseKeywords[w]; ok {
			pt++
		}
		if _, ok := englishKeywords[w]; ok {
			en++
		}
	}

	if en > pt {
		return models.English
	}
	return models.PrimaryLanguage
}

// Resolve prefers a supported declared language and falls back to detection.
func Resolve(declared, text string) models.Language {
	if l, ok := models.ParseLanguage(declared); ok {
		return l
	}
	return Detect(text)
}
