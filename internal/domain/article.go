package domain

import "time"

// Fingerprint is the deterministic content-identity key used for deduplication.
// Two items with equal fingerprints are treated as the same content regardless
// of which source surfaced them.
type Fingerprint string

// SourceKind enumerates the closed set of adapter kinds.
type SourceKind string

const (
	SourceKindFeed    SourceKind = "feed"
	SourceKindYouTube SourceKind = "youtube"
	SourceKindWeb     SourceKind = "web"
)

// Source is a configured origin to poll. Immutable during a run.
type Source struct {
	Name    string
	Kind    SourceKind
	URL     string
	Options map[string]string
	Enabled bool
}

// Candidate is the raw output of one adapter invocation for one source.
// It exists only within a single run; the Fingerprint field is filled in
// by the coordinator before deduplication.
type Candidate struct {
	Source      string
	Title       string
	URL         string
	Content     string
	GUID        string
	PublishedAt time.Time
	Fingerprint Fingerprint
}

// Article is a candidate that passed deduplication and was persisted.
// Articles are append-only: created exactly once per fingerprint, never
// mutated afterwards.
type Article struct {
	Fingerprint Fingerprint
	Source      string
	Title       string
	URL         string
	Content     string
	PublishedAt time.Time
	RunID       string
	CreatedAt   time.Time
}
