// Package loader reads the regulatory corpus from disk or from the organization's website.
package loader

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/xhad/regqa/internal/models"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// pageBreak separates pages in text exported from PDFs (pdftotext writes a form feed).
const pageBreak = "\f"

type LoaderConfig struct {
	// Extensions lists the file types read from a corpus directory.
	Extensions []string
	// Crawl settings.
	MaxDepth       int
	RateLimit      float64 // requests per second
	IgnorePatterns []string
	Timeout        time.Duration
	OnProgress     func(location string)
}

type Loader struct {
	config  LoaderConfig
	limiter *rate.Limiter
	logger  *zap.Logger
}

func NewWithConfig(config LoaderConfig, logger *zap.Logger) *Loader {
	if len(config.Extensions) == 0 {
		config.Extensions = []string{".txt", ".md", ".html", ".htm"}
	}
	for i, ext := range config.Extensions {
		config.Extensions[i] = strings.ToLower(ext)
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxDepth == 0 {
		config.MaxDepth = 2
	}
	if config.RateLimit == 0 {
		config.RateLimit = 2
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		config:  config,
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		logger:  logger,
	}
}

func (l *Loader) supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range l.config.Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

// LoadDir reads every supported file below root, in lexical order.
func (l *Loader) LoadDir(ctx context.Context, root string) ([]models.Document, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to open corpus: %w", err)
	}
	if !info.IsDir() {
		return l.LoadFile(root, filepath.Base(root))
	}

	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !d.IsDir() && l.supported(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk corpus: %w", err)
	}
	sort.Strings(paths)

	var docs []models.Document
	for _, path := range paths {
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = filepath.Base(path)
		}
		loaded, err := l.LoadFile(path, filepath.ToSlash(rel))
		if err != nil {
			l.logger.Warn("skipping unreadable file", zap.String("path", path), zap.Error(err))
			continue
		}
		docs = append(docs, loaded...)
	}

	l.logger.Info("corpus loaded", zap.String("root", root), zap.Int("files", len(paths)), zap.Int("documents", len(docs)))
	return docs, nil
}

// LoadFile reads one file. source is the name stored with its chunks and shown in citations.
func (l *Loader) LoadFile(path, source string) ([]models.Document, error) {
	if !l.supported(path) {
		return nil, fmt.Errorf("unsupported file type: %s", filepath.Ext(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if l.config.OnProgress != nil {
		l.config.OnProgress(source)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return []models.Document{htmlDocument(doc, source)}, nil
	default:
		return splitPages(string(data), source), nil
	}
}

func documentID(source string, page int) string {
	id := strings.NewReplacer("/", "_", "\\", "_", " ", "_").Replace(source)
	if page > 0 {
		return fmt.Sprintf("%s_p%d", id, page)
	}
	return id
}

// splitPages turns form-feed separated text into one document per non-empty page.
// Text without page breaks becomes a single page-less document.
func splitPages(text, source string) []models.Document {
	pages := strings.Split(text, pageBreak)
	paged := len(pages) > 1

	var docs []models.Document
	for i, content := range pages {
		if strings.TrimSpace(content) == "" {
			continue
		}
		page := 0
		if paged {
			page = i + 1
		}
		docs = append(docs, models.Document{
			ID:      documentID(source, page),
			Source:  source,
			Page:    page,
			Content: content,
			Metadata: map[string]interface{}{
				"source": source,
				"page":   page,
			},
		})
	}
	return docs
}
