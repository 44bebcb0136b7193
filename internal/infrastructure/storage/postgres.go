// Package storage persists articles and digest runs in Postgres.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS articles (
	fingerprint  TEXT PRIMARY KEY,
	source       TEXT NOT NULL,
	title        TEXT NOT NULL,
	url          TEXT,
	content      TEXT,
	published_at TIMESTAMPTZ,
	run_id       TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_articles_created_at ON articles (created_at);

CREATE TABLE IF NOT EXISTS digest_runs (
	id            TEXT PRIMARY KEY,
	started_at    TIMESTAMPTZ NOT NULL,
	finished_at   TIMESTAMPTZ,
	status        TEXT NOT NULL,
	report        JSONB NOT NULL DEFAULT '{}',
	article_count INTEGER NOT NULL DEFAULT 0,
	summary       TEXT,
	delivered     BOOLEAN,
	error         TEXT
);
CREATE INDEX IF NOT EXISTS idx_digest_runs_status ON digest_runs (status);
`

// PostgresStore implements the article and run repositories on Postgres.
type PostgresStore struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var _ ports.ArticleRepository = (*PostgresStore)(nil)
var _ ports.RunRepository = (*PostgresStore)(nil)

// NewPostgresStore wires a sql.DB implementation.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// InitSchema creates the tables if they do not exist.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// KnownFingerprints returns the snapshot of fingerprints already recorded,
// optionally restricted to articles created since the given time.
func (s *PostgresStore) KnownFingerprints(ctx context.Context, since time.Time) (map[domain.Fingerprint]struct{}, error) {
	query := s.builder.Select("fingerprint").From("articles")
	if !since.IsZero() {
		query = query.Where(sq.GtOrEq{"created_at": since})
	}

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build fingerprint query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query fingerprints: %w", err)
	}
	defer rows.Close()

	known := make(map[domain.Fingerprint]struct{})
	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			return nil, fmt.Errorf("scan fingerprint: %w", err)
		}
		known[domain.Fingerprint(fp)] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return known, nil
}

// SaveArticles inserts the new articles in one transaction. The fingerprint
// primary key plus ON CONFLICT DO NOTHING keeps the store append-only even
// when a run is retried.
func (s *PostgresStore) SaveArticles(ctx context.Context, articles []domain.Article) error {
	if len(articles) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, article := range articles {
		sqlStr, args, err := s.builder.
			Insert("articles").
			Columns("fingerprint", "source", "title", "url", "content", "published_at", "run_id", "created_at").
			Values(
				string(article.Fingerprint),
				article.Source,
				article.Title,
				article.URL,
				article.Content,
				nullTime(article.PublishedAt),
				article.RunID,
				article.CreatedAt,
			).
			Suffix("ON CONFLICT (fingerprint) DO NOTHING").
			ToSql()
		if err != nil {
			return fmt.Errorf("build article insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
			return fmt.Errorf("insert article %s: %w", article.Fingerprint, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit articles: %w", err)
	}
	return nil
}

// SaveRun upserts the run record keyed by run ID; last write wins, which
// makes the call idempotent under retry.
func (s *PostgresStore) SaveRun(ctx context.Context, run domain.DigestRun) error {
	report, err := json.Marshal(run.Report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	sqlStr, args, err := s.builder.
		Insert("digest_runs").
		Columns("id", "started_at", "finished_at", "status", "report", "article_count", "summary", "delivered", "error").
		Values(run.ID, run.StartedAt, run.FinishedAt, string(run.Status), report, run.ArticleCount, run.Summary, run.Delivered, run.Error).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			finished_at = EXCLUDED.finished_at,
			status = EXCLUDED.status,
			report = EXCLUDED.report,
			article_count = EXCLUDED.article_count,
			summary = EXCLUDED.summary,
			delivered = EXCLUDED.delivered,
			error = EXCLUDED.error`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build run upsert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("upsert run %s: %w", run.ID, err)
	}
	return nil
}

// HasActiveRun reports whether any run has not reached a terminal status.
func (s *PostgresStore) HasActiveRun(ctx context.Context) (bool, error) {
	sqlStr, args, err := s.builder.
		Select("1").
		From("digest_runs").
		Where(sq.Eq{"status": []string{string(domain.RunPending), string(domain.RunRunning)}}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build active-run query: %w", err)
	}

	var one int
	err = s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query active run: %w", err)
	}
	return true, nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
