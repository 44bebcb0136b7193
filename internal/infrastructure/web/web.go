// Package web implements the generic web-page source adapter.
package web

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/ports"
)

const maxBodyBytes = 2 << 20

var reWhitespace = regexp.MustCompile(`\s+`)

// Adapter extracts a single article from a web page.
type Adapter struct {
	client *http.Client
}

var _ ports.SourceAdapter = (*Adapter)(nil)

// New wires an HTTP client; defaults to a 20s timeout.
func New(client *http.Client) *Adapter {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &Adapter{client: client}
}

// Kind identifies the adapter inside the registry.
func (a *Adapter) Kind() domain.SourceKind {
	return domain.SourceKindWeb
}

// Fetch downloads the page and extracts its readable article content.
// A page without extractable content yields an empty candidate set.
func (a *Adapter) Fetch(ctx context.Context, src domain.Source) ([]domain.Candidate, error) {
	body, err := a.download(ctx, src.URL)
	if err != nil {
		return nil, err
	}

	pageURL, err := url.Parse(src.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid source url %s: %w", src.URL, err)
	}

	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		return nil, fmt.Errorf("extract content from %s: %w", src.URL, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content))
	if err != nil {
		return nil, fmt.Errorf("parse extracted content: %w", err)
	}
	doc.Find("script, style, figure, aside, nav, footer").Remove()
	text := strings.TrimSpace(reWhitespace.ReplaceAllString(doc.Text(), " "))
	if text == "" {
		return []domain.Candidate{}, nil
	}

	title := article.Title
	published := time.Time{}

	// Fall back to the raw page for metadata readability does not surface.
	if raw, rawErr := goquery.NewDocumentFromReader(bytes.NewReader(body)); rawErr == nil {
		if title == "" {
			title = extractTitle(raw, src.URL)
		}
		published = extractPublished(raw)
	}

	return []domain.Candidate{{
		Source:      src.Name,
		Title:       title,
		URL:         src.URL,
		Content:     text,
		PublishedAt: published,
	}}, nil
}

func (a *Adapter) download(ctx context.Context, pageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "NewsDigest/1.0")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("page returned %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read page: %w", err)
	}
	return body, nil
}

func extractTitle(doc *goquery.Document, pageURL string) string {
	if og, ok := doc.Find(`meta[property="og:title"]`).First().Attr("content"); ok && og != "" {
		return og
	}
	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
		return h1
	}
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	return pageURL
}

func extractPublished(doc *goquery.Document) time.Time {
	candidates := []string{}
	if v, ok := doc.Find(`meta[property="article:published_time"]`).First().Attr("content"); ok {
		candidates = append(candidates, v)
	}
	if v, ok := doc.Find(`meta[name="date"]`).First().Attr("content"); ok {
		candidates = append(candidates, v)
	}
	if v, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok {
		candidates = append(candidates, v)
	}

	for _, raw := range candidates {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
			return parsed
		}
		if parsed, err := time.Parse("2006-01-02", raw); err == nil {
			return parsed
		}
	}
	return time.Time{}
}
