package loader

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/xhad/regqa/internal/models"
	"go.uber.org/zap"
)

var noisePatterns = []string{
	"Cookie Policy",
	"Accept Cookies",
	"Política de Privacidade",
	"Aceitar Cookies",
}

func cleanContent(content string) string {
	content = strings.Join(strings.Fields(content), " ")
	for _, pattern := range noisePatterns {
		content = strings.ReplaceAll(content, pattern, "")
	}
	return strings.TrimSpace(content)
}

func extractMainContent(doc *goquery.Document) string {
	doc.Find("script, style, nav, header, footer").Remove()

	selectors := []string{"main", "article", ".content", "#content", ".entry-content"}

	var content string
	for _, selector := range selectors {
		if selected := doc.Find(selector); selected.Length() > 0 {
			content = selected.Text()
			break
		}
	}
	if strings.TrimSpace(content) == "" {
		content = doc.Find("body").Text()
	}
	return cleanContent(content)
}

func htmlDocument(doc *goquery.Document, source string) models.Document {
	title := strings.TrimSpace(doc.Find("title").First().Text())
	meta := map[string]interface{}{"source": source}
	if title != "" {
		meta["title"] = title
	}
	return models.Document{
		ID:       documentID(source, 0),
		Source:   source,
		Title:    title,
		Content:  extractMainContent(doc),
		Metadata: meta,
	}
}

type crawl struct {
	loader  *Loader
	client  *http.Client
	host    string
	visited map[string]bool
	docs    []models.Document
}

// Crawl fetches pages of the site at baseURL, following same-host links up to MaxDepth.
func (l *Loader) Crawl(ctx context.Context, baseURL string) ([]models.Document, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", baseURL)
	}

	c := &crawl{
		loader:  l,
		client:  &http.Client{Timeout: l.config.Timeout},
		host:    parsed.Host,
		visited: make(map[string]bool),
	}
	if err := c.visit(ctx, parsed.String(), 0); err != nil {
		return nil, err
	}
	l.logger.Info("site crawled", zap.String("url", baseURL), zap.Int("documents", len(c.docs)))
	return c.docs, nil
}

func (c *crawl) shouldVisit(u *url.URL) bool {
	if u.Host != c.host || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	path := strings.ToLower(u.Path)
	if ext := pathExt(path); ext != "" && ext != ".html" && ext != ".htm" {
		return false
	}
	for _, pattern := range c.loader.config.IgnorePatterns {
		if strings.Contains(u.String(), pattern) {
			return false
		}
	}
	return true
}

func pathExt(path string) string {
	slash := strings.LastIndex(path, "/")
	dot := strings.LastIndex(path, ".")
	if dot <= slash {
		return ""
	}
	return path[dot:]
}

func (c *crawl) visit(ctx context.Context, rawURL string, depth int) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	u.Fragment = ""
	key := u.String()
	if depth > c.loader.config.MaxDepth || c.visited[key] || !c.shouldVisit(u) {
		return nil
	}
	c.visited[key] = true

	if err := c.loader.limiter.Wait(ctx); err != nil {
		return err
	}
	if c.loader.config.OnProgress != nil {
		c.loader.config.OnProgress(key)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, key, nil)
	if err != nil {
		return fmt.Errorf("failed to create request for %s: %w", key, err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("received status code %d for URL: %s", resp.StatusCode, key)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", key, err)
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, selection *goquery.Selection) {
		if href, ok := selection.Attr("href"); ok {
			links = append(links, href)
		}
	})

	document := htmlDocument(doc, key)
	document.Metadata["depth"] = depth
	document.Metadata["fetched_at"] = time.Now().UTC().Format(time.RFC3339)
	document.Metadata["last_modified"] = resp.Header.Get("Last-Modified")
	if document.Content != "" {
		c.docs = append(c.docs, document)
	}

	for _, href := range links {
		next, err := u.Parse(href)
		if err != nil {
			c.loader.logger.Debug("skipping malformed link", zap.String("href", href))
			continue
		}
		if err := c.visit(ctx, next.String(), depth+1); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.loader.logger.Warn("failed to crawl page", zap.String("url", next.String()), zap.Error(err))
		}
	}
	return nil
}
