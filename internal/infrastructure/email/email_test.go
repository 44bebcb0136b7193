package email

import (
	"context"
	"strings"
	"testing"
	"time"

	"NewsDigest/internal/config"
	"NewsDigest/internal/domain"
)

func sampleDigest() domain.Digest {
	return domain.Digest{
		GeneratedAt: time.Date(2025, time.June, 2, 9, 0, 0, 0, time.UTC),
		Overall:     "A quiet cycle with one notable release.",
		Insights:    []string{"Releases keep shrinking", "Tooling <matters>"},
		Articles: []domain.ArticleSummary{
			{
				Title:     "Release 2.0",
				URL:       "https://example.com/release",
				Snippet:   "The release ships faster indexing.",
				KeyPoints: []string{"2x faster", "Less memory"},
			},
			{
				Title:   "Video Only",
				URL:     "https://example.com/video",
				Snippet: "Content not available for analysis.",
			},
		},
	}
}

func TestRenderDigest(t *testing.T) {
	t.Parallel()

	body, err := renderDigest(sampleDigest(), "2025-06-02")
	if err != nil {
		t.Fatalf("renderDigest: %v", err)
	}
	html := string(body)

	for _, want := range []string{
		"News Digest - 2025-06-02",
		"A quiet cycle with one notable release.",
		"Release 2.0",
		"The release ships faster indexing.",
		`href="https://example.com/release"`,
		"<li>2x faster</li>",
		"Video Only",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered mail is missing %q", want)
		}
	}

	if strings.Contains(html, "Tooling <matters>") {
		t.Error("insight text was not HTML-escaped")
	}
	if !strings.Contains(html, "Tooling &lt;matters&gt;") {
		t.Error("expected the escaped insight text")
	}
}

func TestRenderDigestWithoutInsights(t *testing.T) {
	t.Parallel()

	digest := sampleDigest()
	digest.Insights = nil

	body, err := renderDigest(digest, "2025-06-02")
	if err != nil {
		t.Fatalf("renderDigest: %v", err)
	}
	if strings.Contains(string(body), "Key Insights") {
		t.Error("insights section should be omitted when empty")
	}
}

func TestDeliverRequiresConfiguration(t *testing.T) {
	t.Parallel()

	mailer := NewMailer(config.SMTPConfig{})
	if err := mailer.Deliver(context.Background(), sampleDigest()); err == nil {
		t.Fatal("expected an error without host/from/to")
	}
}

func TestDeliverHonorsCancelledContext(t *testing.T) {
	t.Parallel()

	mailer := NewMailer(config.SMTPConfig{
		Host: "smtp.example.com", Port: 587,
		From: "digest@example.com", To: "reader@example.com",
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := mailer.Deliver(ctx, sampleDigest()); err == nil {
		t.Fatal("expected an error for a cancelled context")
	}
}
