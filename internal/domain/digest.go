package domain

import "time"

// ArticleSummary is the digest entry produced for a single article.
type ArticleSummary struct {
	Fingerprint Fingerprint
	Title       string
	URL         string
	Snippet     string
	KeyPoints   []string
}

// Digest is the rendered output of the summarization stage.
type Digest struct {
	GeneratedAt time.Time
	Overall     string
	Insights    []string
	Articles    []ArticleSummary
}
