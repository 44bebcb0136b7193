package ports

import (
	"context"
	"time"

	"NewsDigest/internal/domain"
)

// SourceAdapter translates one source kind's protocol into candidate items.
// Fetch must return an empty slice, not an error, when a source simply has
// nothing new; errors are reserved for connectivity and parse failures.
type SourceAdapter interface {
	Kind() domain.SourceKind
	Fetch(ctx context.Context, src domain.Source) ([]domain.Candidate, error)
}

// ArticleRepository persists deduplicated articles and answers the
// known-fingerprint snapshot query.
type ArticleRepository interface {
	KnownFingerprints(ctx context.Context, since time.Time) (map[domain.Fingerprint]struct{}, error)
	SaveArticles(ctx context.Context, articles []domain.Article) error
}

// RunRepository persists digest-run records. SaveRun is called at every
// status transition and must be idempotent under retry (same run ID,
// last write wins).
type RunRepository interface {
	SaveRun(ctx context.Context, run domain.DigestRun) error
	HasActiveRun(ctx context.Context) (bool, error)
}

// Summarizer turns the deduplicated article set into digest text.
type Summarizer interface {
	Summarize(ctx context.Context, articles []domain.Article) (domain.Digest, error)
}

// Deliverer sends the finished digest to its recipients.
type Deliverer interface {
	Deliver(ctx context.Context, digest domain.Digest) error
}

// Scheduler controls when digest runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
