// Package processor splits loaded corpus pages into embedding-sized chunks.
package processor

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"
	"github.com/xhad/regqa/internal/models"
)

type ProcessorConfig struct {
	ChunkSize    int
	ChunkOverlap int
	// MinChunkLength drops fragments shorter than this many characters.
	MinChunkLength int
}

type Processor struct {
	config   ProcessorConfig
	splitter textsplitter.TextSplitter
}

func NewWithConfig(config ProcessorConfig) (*Processor, error) {
	if config.ChunkSize == 0 {
		config.ChunkSize = 1000
	}
	if config.ChunkOverlap == 0 {
		config.ChunkOverlap = 200
	}
	if config.MinChunkLength < 0 {
		config.MinChunkLength = 0
	}
	if config.ChunkSize < 0 || config.ChunkOverlap < 0 {
		return nil, fmt.Errorf("chunk size and overlap cannot be negative")
	}
	if config.ChunkOverlap >= config.ChunkSize {
		return nil, fmt.Errorf("chunk overlap (%d) must be smaller than chunk size (%d)", config.ChunkOverlap, config.ChunkSize)
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(config.ChunkSize),
		textsplitter.WithChunkOverlap(config.ChunkOverlap),
		textsplitter.WithSeparators([]string{"\n\n", "\n", ". ", "; ", " ", ""}),
	)

	return &Processor{
		config:   config,
		splitter: splitter,
	}, nil
}

// Process chunks every document. Documents that yield no chunk are kept with an empty chunk list.
func (p *Processor) Process(docs []models.Document) ([]models.ProcessedDocument, error) {
	processed := make([]models.ProcessedDocument, 0, len(docs))

	for _, doc := range docs {
		chunks, err := p.splitter.SplitText(cleanText(doc.Content))
		if err != nil {
			return nil, fmt.Errorf("failed to split %s: %w", doc.ID, err)
		}

		var kept []string
		for _, chunk := range chunks {
			for _, c := range bound(chunk, p.config.ChunkSize) {
				c = strings.TrimSpace(c)
				if utf8.RuneCountInString(c) < p.config.MinChunkLength || c == "" {
					continue
				}
				kept = append(kept, c)
			}
		}

		processed = append(processed, models.ProcessedDocument{
			Document: doc,
			Chunks:   kept,
		})
	}

	return processed, nil
}

// bound re-splits a chunk the splitter left longer than size runes, packing
// whole words first and cutting single oversized words by rune.
func bound(chunk string, size int) []string {
	if utf8.RuneCountInString(chunk) <= size {
		return []string{chunk}
	}

	var (
		out []string
		cur []rune
	)
	flush := func() {
		if len(cur) > 0 {
			out = append(out, string(cur))
			cur = cur[:0]
		}
	}
	for _, word := range strings.Fields(chunk) {
		w := []rune(word)
		for len(w) > size {
			flush()
			out = append(out, string(w[:size]))
			w = w[size:]
		}
		if len(cur) > 0 && len(cur)+1+len(w) > size {
			flush()
		}
		if len(cur) > 0 {
			cur = append(cur, ' ')
		}
		cur = append(cur, w...)
	}
	flush()
	return out
}

// cleanText normalizes spacing inside lines and keeps paragraph breaks for the splitter.
func cleanText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
