// Package feed implements the RSS/Atom source adapter.
package feed

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/mmcdole/gofeed"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/ports"
)

const defaultMaxItems = 20

// Adapter fetches candidate items from RSS and Atom feeds.
type Adapter struct {
	parser   *gofeed.Parser
	maxItems int
}

var _ ports.SourceAdapter = (*Adapter)(nil)

// New wires a feed parser; client defaults to a 20s-timeout HTTP client.
func New(client *http.Client) *Adapter {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	parser := gofeed.NewParser()
	parser.Client = client
	parser.UserAgent = "NewsDigest/1.0"
	return &Adapter{parser: parser, maxItems: defaultMaxItems}
}

// Kind identifies the adapter inside the registry.
func (a *Adapter) Kind() domain.SourceKind {
	return domain.SourceKindFeed
}

// Fetch parses the source feed and converts its entries to candidates.
// An empty feed is not an error.
func (a *Adapter) Fetch(ctx context.Context, src domain.Source) ([]domain.Candidate, error) {
	parsed, err := a.parser.ParseURLWithContext(src.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", src.URL, err)
	}

	max := a.maxItems
	if v, ok := src.Options["max_items"]; ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			max = n
		}
	}

	candidates := make([]domain.Candidate, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if len(candidates) == max {
			break
		}
		candidates = append(candidates, convertItem(item, src.Name))
	}
	return candidates, nil
}

func convertItem(item *gofeed.Item, sourceName string) domain.Candidate {
	content := item.Content
	if content == "" {
		content = item.Description
	}

	var published time.Time
	if item.PublishedParsed != nil {
		published = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		published = *item.UpdatedParsed
	}

	return domain.Candidate{
		Source:      sourceName,
		Title:       item.Title,
		URL:         item.Link,
		Content:     content,
		GUID:        item.GUID,
		PublishedAt: published,
	}
}
