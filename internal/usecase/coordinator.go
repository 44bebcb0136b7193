package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"NewsDigest/internal/adapter"
	"NewsDigest/internal/dedup"
	"NewsDigest/internal/domain"
	"NewsDigest/internal/fingerprint"
	"NewsDigest/internal/ports"
)

const defaultConcurrency = 4

// CoordinatorDeps wires all driven adapters into the run coordinator.
type CoordinatorDeps struct {
	Registry   *adapter.Registry
	Articles   ports.ArticleRepository
	Runs       ports.RunRepository
	Summarizer ports.Summarizer
	Deliverer  ports.Deliverer
	Logger     *slog.Logger

	// Concurrency bounds the source fan-out; defaults to 4.
	Concurrency int
	// RunTimeout cancels adapters still in flight once elapsed; zero means
	// no run-level timeout.
	RunTimeout time.Duration
	// Lookback limits the known-fingerprint snapshot; zero means full history.
	Lookback time.Duration
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Coordinator drives one digest run to completion, isolating each source's
// failure from the others and from the run as a whole.
type Coordinator struct {
	registry    *adapter.Registry
	articles    ports.ArticleRepository
	runs        ports.RunRepository
	summarizer  ports.Summarizer
	deliverer   ports.Deliverer
	logger      *slog.Logger
	concurrency int
	runTimeout  time.Duration
	lookback    time.Duration
	now         func() time.Time
}

// NewCoordinator constructs the orchestration component.
func NewCoordinator(deps CoordinatorDeps) *Coordinator {
	if deps.Concurrency <= 0 {
		deps.Concurrency = defaultConcurrency
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Coordinator{
		registry:    deps.Registry,
		articles:    deps.Articles,
		runs:        deps.Runs,
		summarizer:  deps.Summarizer,
		deliverer:   deps.Deliverer,
		logger:      deps.Logger,
		concurrency: deps.Concurrency,
		runTimeout:  deps.RunTimeout,
		lookback:    deps.Lookback,
		now:         deps.Now,
	}
}

// RunResult is the outcome of the fetch-and-dedup phase of one run.
type RunResult struct {
	Articles []domain.Article
	Report   map[string]domain.SourceOutcome
}

// StartRun creates a new digest run, persists it while still pending so a
// crash afterwards is observable, and transitions it to running. It refuses
// to start while another run is active.
func (c *Coordinator) StartRun(ctx context.Context) (domain.DigestRun, error) {
	active, err := c.runs.HasActiveRun(ctx)
	if err != nil {
		return domain.DigestRun{}, fmt.Errorf("check active run: %w", err)
	}
	if active {
		return domain.DigestRun{}, domain.ErrRunInProgress
	}

	run := domain.NewRun(c.now())
	if err := c.runs.SaveRun(ctx, run); err != nil {
		return domain.DigestRun{}, fmt.Errorf("persist run %s: %w", run.ID, err)
	}

	if err := run.Transition(domain.RunRunning); err != nil {
		return domain.DigestRun{}, err
	}
	if err := c.runs.SaveRun(ctx, run); err != nil {
		return domain.DigestRun{}, fmt.Errorf("persist run %s: %w", run.ID, err)
	}

	c.logger.Info("run started", "run", run.ID)
	return run, nil
}

type sourceResult struct {
	outcome    domain.SourceOutcome
	candidates []domain.Candidate
}

// Execute polls every enabled source with an isolating boundary, merges the
// surviving candidates, deduplicates them against the store and persists the
// new articles. A non-nil error is fatal to the run; per-source failures are
// recorded in the report instead.
func (c *Coordinator) Execute(ctx context.Context, run *domain.DigestRun, sources []domain.Source) (RunResult, error) {
	enabled := make([]domain.Source, 0, len(sources))
	for _, src := range sources {
		if src.Enabled {
			enabled = append(enabled, src)
		}
	}

	fetchCtx := ctx
	if c.runTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, c.runTimeout)
		defer cancel()
	}

	// Results are slotted by source index so the merged candidate set and the
	// report depend on configuration order, not completion order.
	results := make([]sourceResult, len(enabled))
	group := new(errgroup.Group)
	group.SetLimit(c.concurrency)
	for i, src := range enabled {
		i, src := i, src
		group.Go(func() error {
			items, err := c.fetchSource(fetchCtx, src)
			if err != nil {
				c.logger.Warn("source failed", "run", run.ID, "source", src.Name, "error", err)
				results[i] = sourceResult{outcome: domain.SourceOutcome{Err: err.Error()}}
				return nil
			}
			results[i] = sourceResult{
				outcome:    domain.SourceOutcome{OK: true, Items: len(items)},
				candidates: items,
			}
			return nil
		})
	}
	_ = group.Wait() // workers record failures in their result slot

	report := make(map[string]domain.SourceOutcome, len(enabled))
	var candidates []domain.Candidate
	failed := 0
	for i, src := range enabled {
		report[src.Name] = results[i].outcome
		if !results[i].outcome.OK {
			failed++
			continue
		}
		candidates = append(candidates, results[i].candidates...)
	}

	result := RunResult{Report: report}
	if len(enabled) > 0 && failed == len(enabled) {
		return result, fmt.Errorf("all %d sources failed", len(enabled))
	}

	fingerprinted := make([]domain.Candidate, 0, len(candidates))
	for _, cand := range candidates {
		fp := fingerprint.Compute(cand)
		if fp == "" {
			c.logger.Warn("skipping item with no usable identity",
				"run", run.ID, "source", cand.Source, "title", cand.Title)
			continue
		}
		cand.Fingerprint = fp
		fingerprinted = append(fingerprinted, cand)
	}

	if len(fingerprinted) == 0 {
		c.logger.Info("sources processed", "run", run.ID,
			"sources", len(enabled), "failed", failed, "new_articles", 0)
		return result, nil
	}

	var since time.Time
	if c.lookback > 0 {
		since = c.now().Add(-c.lookback)
	}
	known, err := c.articles.KnownFingerprints(ctx, since)
	if err != nil {
		return result, &domain.StorageError{Err: fmt.Errorf("load known fingerprints: %w", err)}
	}

	fresh, _ := dedup.Dedupe(fingerprinted, known)

	now := c.now().UTC()
	articles := make([]domain.Article, 0, len(fresh))
	for _, cand := range fresh {
		articles = append(articles, domain.Article{
			Fingerprint: cand.Fingerprint,
			Source:      cand.Source,
			Title:       cand.Title,
			URL:         cand.URL,
			Content:     cand.Content,
			PublishedAt: cand.PublishedAt,
			RunID:       run.ID,
			CreatedAt:   now,
		})
	}

	if len(articles) > 0 {
		if err := c.articles.SaveArticles(ctx, articles); err != nil {
			return result, &domain.StorageError{Err: fmt.Errorf("persist articles: %w", err)}
		}
	}

	result.Articles = articles
	c.logger.Info("sources processed", "run", run.ID,
		"sources", len(enabled), "failed", failed, "new_articles", len(articles))
	return result, nil
}

// fetchSource invokes one adapter behind the isolation boundary: any raised
// error, timeout or panic comes back as a source-scoped AdapterError.
func (c *Coordinator) fetchSource(ctx context.Context, src domain.Source) (items []domain.Candidate, err error) {
	defer func() {
		if r := recover(); r != nil {
			items = nil
			err = &domain.AdapterError{Source: src.Name, Err: fmt.Errorf("adapter panic: %v", r)}
		}
	}()

	a, err := c.registry.Resolve(src.Kind)
	if err != nil {
		return nil, &domain.AdapterError{Source: src.Name, Err: err}
	}

	items, err = a.Fetch(ctx, src)
	if err != nil {
		return nil, &domain.AdapterError{Source: src.Name, Err: err}
	}

	for i := range items {
		if items[i].Source == "" {
			items[i].Source = src.Name
		}
	}
	return items, nil
}

// Finalize records counts and stage outcomes and moves the run to a terminal
// status. It never fails: if status persistence keeps erroring it is logged
// as an operational alarm, not returned.
func (c *Coordinator) Finalize(ctx context.Context, run *domain.DigestRun, result RunResult, digest *domain.Digest, delivered *bool, fatal error) {
	run.Report = result.Report
	run.ArticleCount = len(result.Articles)
	run.Delivered = delivered
	if digest != nil {
		run.Summary = digest.Overall
	}

	next := domain.RunCompleted
	switch {
	case fatal != nil:
		next = domain.RunFailed
		run.Error = fatal.Error()
	case anyFailed(result.Report):
		next = domain.RunCompletedWithErrors
	}

	finished := c.now().UTC()
	run.FinishedAt = &finished
	if err := run.Transition(next); err != nil {
		c.logger.Error("finalize transition rejected", "run", run.ID, "error", err)
		return
	}

	c.saveFinal(ctx, *run)
	c.logger.Info("run finished", "run", run.ID, "status", run.Status,
		"articles", run.ArticleCount, "error", run.Error)
}

func (c *Coordinator) saveFinal(ctx context.Context, run domain.DigestRun) {
	err := c.runs.SaveRun(ctx, run)
	if err == nil {
		return
	}
	c.logger.Warn("run status persistence failed, retrying", "run", run.ID, "error", err)

	select {
	case <-time.After(500 * time.Millisecond):
	case <-ctx.Done():
	}

	if err := c.runs.SaveRun(ctx, run); err != nil {
		c.logger.Error("run status not persisted", "run", run.ID,
			"status", run.Status, "error", err)
	}
}

// RunOnce drives one complete run: start, execute, summarize, deliver,
// finalize. Adapter failures are isolated; the returned error is only
// non-nil for run-level fatal failures.
func (c *Coordinator) RunOnce(ctx context.Context, sources []domain.Source) (domain.DigestRun, error) {
	run, err := c.StartRun(ctx)
	if err != nil {
		return run, err
	}

	result, fatal := c.Execute(ctx, &run, sources)

	var digest *domain.Digest
	var delivered *bool
	if fatal == nil && len(result.Articles) > 0 && c.summarizer != nil {
		d, err := c.summarizer.Summarize(ctx, result.Articles)
		if err != nil {
			fatal = &domain.SummarizationError{Err: err}
		} else {
			digest = &d
			if c.deliverer != nil {
				if err := c.deliverer.Deliver(ctx, d); err != nil {
					fatal = &domain.DeliveryError{Err: err}
					delivered = boolPtr(false)
				} else {
					delivered = boolPtr(true)
				}
			}
		}
	}

	c.Finalize(ctx, &run, result, digest, delivered, fatal)
	return run, fatal
}

func anyFailed(report map[string]domain.SourceOutcome) bool {
	for _, outcome := range report {
		if !outcome.OK {
			return true
		}
	}
	return false
}

func boolPtr(v bool) *bool { return &v }
