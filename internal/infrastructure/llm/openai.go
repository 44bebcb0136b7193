// Package llm implements the summarization stage against OpenAI-compatible APIs.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"NewsDigest/internal/config"
	"NewsDigest/internal/domain"
	"NewsDigest/internal/ports"
)

const maxContentChars = 3000

// Summarizer generates per-article snippets and the overall digest summary.
type Summarizer struct {
	endpoint     string
	model        string
	apiKey       string
	systemPrompt string
	httpClient   *http.Client
}

var _ ports.Summarizer = (*Summarizer)(nil)

// NewSummarizer builds a client from configuration.
func NewSummarizer(cfg config.OpenAIConfig) *Summarizer {
	return &Summarizer{
		endpoint:     cfg.Endpoint,
		model:        cfg.Model,
		apiKey:       cfg.APIKey,
		systemPrompt: cfg.SystemPrompt,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Summarize produces a digest for the article set: one snippet pass per
// article, then one overall pass across the snippets. Any API failure is
// returned to the caller, which treats it as fatal to the stage.
func (s *Summarizer) Summarize(ctx context.Context, articles []domain.Article) (domain.Digest, error) {
	if len(articles) == 0 {
		return domain.Digest{
			GeneratedAt: time.Now().UTC(),
			Overall:     "No new articles to summarize.",
		}, nil
	}

	summaries := make([]domain.ArticleSummary, 0, len(articles))
	for _, article := range articles {
		summary := domain.ArticleSummary{
			Fingerprint: article.Fingerprint,
			Title:       article.Title,
			URL:         article.URL,
		}

		content := strings.TrimSpace(article.Content)
		if content == "" {
			summary.Snippet = "Content not available for analysis."
			summaries = append(summaries, summary)
			continue
		}
		if len(content) > maxContentChars {
			content = content[:maxContentChars]
		}

		reply, err := s.complete(ctx, snippetPrompt(article.Title, content))
		if err != nil {
			return domain.Digest{}, fmt.Errorf("snippet for %q: %w", article.Title, err)
		}

		summary.Snippet, summary.KeyPoints = parseSections(reply, "SNIPPET:", "KEY POINTS:")
		if summary.Snippet == "" {
			summary.Snippet = "Unable to generate snippet."
		}
		summaries = append(summaries, summary)
	}

	reply, err := s.complete(ctx, overallPrompt(summaries))
	if err != nil {
		return domain.Digest{}, fmt.Errorf("overall summary: %w", err)
	}

	overall, insights := parseSections(reply, "OVERALL SUMMARY:", "KEY INSIGHTS:")
	if overall == "" {
		overall = "Unable to generate overall summary."
	}

	return domain.Digest{
		GeneratedAt: time.Now().UTC(),
		Overall:     overall,
		Insights:    insights,
		Articles:    summaries,
	}, nil
}

func snippetPrompt(title, content string) string {
	return fmt.Sprintf(`Analyze the following article and provide:
1. A concise 2-3 sentence snippet summarizing the main point
2. 2-4 key takeaways as bullet points

Title: %s
Content:
%s

Provide your response in this format:
SNIPPET: [your snippet here]
KEY POINTS:
- [point 1]
- [point 2]
- [point 3]`, title, content)
}

func overallPrompt(summaries []domain.ArticleSummary) string {
	var b strings.Builder
	for i, summary := range summaries {
		fmt.Fprintf(&b, "Article %d: %s\n%s\nKey points: %s\n\n",
			i+1, summary.Title, summary.Snippet, strings.Join(summary.KeyPoints, ", "))
	}

	return fmt.Sprintf(`Based on the following collection of tech news articles, provide:
1. An overall summary (3-4 sentences) of the main themes and developments
2. 3-5 key insights or trends emerging from these articles

Articles:
%s
Provide your response in this format:
OVERALL SUMMARY: [your summary here]

KEY INSIGHTS:
- [insight 1]
- [insight 2]
- [insight 3]`, b.String())
}

func (s *Summarizer) complete(ctx context.Context, prompt string) (string, error) {
	if s.apiKey == "" || s.endpoint == "" || s.model == "" {
		return "", fmt.Errorf("summarizer misconfigured")
	}

	body, err := json.Marshal(map[string]any{
		"model": s.model,
		"messages": []map[string]string{
			{"role": "system", "content": s.systemPrompt},
			{"role": "user", "content": prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("completion error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var decoded struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}

	return strings.TrimSpace(decoded.Choices[0].Message.Content), nil
}

// parseSections splits a plain-text protocol reply into the text following
// headTag and the bullet list following listTag.
func parseSections(reply, headTag, listTag string) (string, []string) {
	var head string
	var items []string

	if idx := strings.Index(reply, headTag); idx >= 0 {
		head = reply[idx+len(headTag):]
		if end := strings.Index(head, listTag); end >= 0 {
			head = head[:end]
		}
		head = strings.TrimSpace(head)
	}

	if idx := strings.Index(reply, listTag); idx >= 0 {
		for _, line := range strings.Split(reply[idx+len(listTag):], "\n") {
			line = strings.TrimSpace(line)
			if !strings.HasPrefix(line, "-") {
				continue
			}
			if item := strings.TrimSpace(strings.TrimPrefix(line, "-")); item != "" {
				items = append(items, item)
			}
		}
	}

	return head, items
}
