// Package youtube implements the video-platform source adapter on top of the
// YouTube Data API v3 search endpoint.
package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/ports"
)

const (
	defaultEndpoint   = "https://www.googleapis.com/youtube/v3"
	defaultMaxResults = 10
)

var reChannelID = regexp.MustCompile(`youtube\.com/channel/([A-Za-z0-9_-]+)`)

// Adapter fetches recent channel uploads as candidate items.
type Adapter struct {
	endpoint   string
	apiKey     string
	maxResults int
	http       *http.Client
}

var _ ports.SourceAdapter = (*Adapter)(nil)

// New creates a reusable API client. An empty endpoint selects the public API.
func New(endpoint, apiKey string) *Adapter {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	return &Adapter{
		endpoint:   strings.TrimSuffix(endpoint, "/"),
		apiKey:     apiKey,
		maxResults: defaultMaxResults,
		http:       &http.Client{Timeout: 15 * time.Second},
	}
}

// Kind identifies the adapter inside the registry.
func (a *Adapter) Kind() domain.SourceKind {
	return domain.SourceKindYouTube
}

type searchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title       string    `json:"title"`
			Description string    `json:"description"`
			PublishedAt time.Time `json:"publishedAt"`
		} `json:"snippet"`
	} `json:"items"`
}

// Fetch lists the channel's most recent videos, newest first. The video
// description stands in for content; transcripts are not fetched.
func (a *Adapter) Fetch(ctx context.Context, src domain.Source) ([]domain.Candidate, error) {
	if a.apiKey == "" {
		return nil, fmt.Errorf("youtube api key is not configured")
	}

	channelID := channelIDFor(src)
	if channelID == "" {
		return nil, fmt.Errorf("cannot determine channel id for %s", src.URL)
	}

	max := a.maxResults
	if v, ok := src.Options["max_videos"]; ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			max = n
		}
	}

	query := url.Values{}
	query.Set("part", "snippet")
	query.Set("channelId", channelID)
	query.Set("order", "date")
	query.Set("type", "video")
	query.Set("maxResults", strconv.Itoa(max))
	query.Set("key", a.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.endpoint+"/search?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search channel %s: %w", channelID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("youtube error %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var search searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&search); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	candidates := make([]domain.Candidate, 0, len(search.Items))
	for _, item := range search.Items {
		if item.ID.VideoID == "" {
			continue
		}
		candidates = append(candidates, domain.Candidate{
			Source:      src.Name,
			Title:       item.Snippet.Title,
			URL:         "https://www.youtube.com/watch?v=" + item.ID.VideoID,
			Content:     item.Snippet.Description,
			GUID:        item.ID.VideoID,
			PublishedAt: item.Snippet.PublishedAt,
		})
	}
	return candidates, nil
}

// channelIDFor prefers the explicit channel_id option over parsing the URL.
// Handles and custom URLs require an extra API round trip and must be
// configured via channel_id instead.
func channelIDFor(src domain.Source) string {
	if id := src.Options["channel_id"]; id != "" {
		return id
	}
	if m := reChannelID.FindStringSubmatch(src.URL); m != nil {
		return m[1]
	}
	return ""
}
