package answer

import (
	"fmt"
	"path"
	"strings"

	"github.com/xhad/regqa/internal/models"
)

var documentExtensions = []string{".pdf", ".txt", ".md", ".html", ".htm", ".docx"}

// CleanTitle turns a source path such as "docs/Regulamento_OBG-2025.pdf" into "Regulamento OBG 2025".
func CleanTitle(source string) string {
	title := strings.TrimSpace(strings.ReplaceAll(source, `\`, "/"))
	title = path.Base(title)
	if title == "." || title == "/" {
		return ""
	}
	lower := strings.ToLower(title)
	for _, ext := range documentExtensions {
		if strings.HasSuffix(lower, ext) {
			title = title[:len(title)-len(ext)]
			break
		}
	}
	title = strings.NewReplacer("_", " ", "-", " ").Replace(title)
	return strings.Join(strings.Fields(title), " ")
}

// passageTitle prefers an explicit title in the metadata over the cleaned source.
func passageTitle(p models.Passage) string {
	if t, ok := p.Metadata["title"].(string); ok && strings.TrimSpace(t) != "" {
		return strings.Join(strings.Fields(t), " ")
	}
	return CleanTitle(p.Source)
}

func label(title string, page int, lang models.Language) string {
	if page > 0 {
		return fmt.Sprintf("%s - %s %d", title, packFor(lang).pageWord, page)
	}
	return title
}

// Citations returns one citation per distinct (title, page), in first-seen order.
// Passages without a usable title are not cited.
func Citations(passages []models.Passage, lang models.Language) []models.SourceCitation {
	citations := make([]models.SourceCitation, 0, len(passages))
	seen := make(map[string]bool, len(passages))

	for _, p := range passages {
		title := passageTitle(p)
		if title == "" {
			continue
		}
		page := p.Page
		if page < 0 {
			page = 0
		}
		c := models.SourceCitation{Title: title, Page: page, Citation: label(title, page, lang)}
		if seen[c.Key()] {
			continue
		}
		seen[c.Key()] = true
		citations = append(citations, c)
	}
	return citations
}

// FurtherReading renders the citation block appended to an answer; empty when there are no citations.
func FurtherReading(citations []models.SourceCitation, lang models.Language) string {
	if len(citations) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(packFor(lang).furtherRead)
	for _, c := range citations {
		b.WriteString("\n- ")
		b.WriteString(c.Citation)
	}
	return b.String()
}
