package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"NewsDigest/internal/adapter"
	"NewsDigest/internal/domain"
	"NewsDigest/internal/fingerprint"
)

type fetchResult struct {
	items []domain.Candidate
	err   error
}

// fakeAdapter answers per source name; sources listed in block wait for
// context cancellation before failing.
type fakeAdapter struct {
	kind    domain.SourceKind
	results map[string]fetchResult
	block   map[string]bool
}

func (f *fakeAdapter) Kind() domain.SourceKind { return f.kind }

func (f *fakeAdapter) Fetch(ctx context.Context, src domain.Source) ([]domain.Candidate, error) {
	if f.block[src.Name] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	res := f.results[src.Name]
	return res.items, res.err
}

type fakeArticles struct {
	mu       sync.Mutex
	known    map[domain.Fingerprint]struct{}
	saved    []domain.Article
	knownErr error
	saveErr  error
}

func (f *fakeArticles) KnownFingerprints(ctx context.Context, since time.Time) (map[domain.Fingerprint]struct{}, error) {
	if f.knownErr != nil {
		return nil, f.knownErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	snapshot := make(map[domain.Fingerprint]struct{}, len(f.known))
	for fp := range f.known {
		snapshot[fp] = struct{}{}
	}
	return snapshot, nil
}

func (f *fakeArticles) SaveArticles(ctx context.Context, articles []domain.Article) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, articles...)
	return nil
}

type fakeRuns struct {
	mu     sync.Mutex
	active bool
	saves  []domain.DigestRun
	errOn  map[int]error // 1-based SaveRun call index -> error
	calls  int
}

func (f *fakeRuns) SaveRun(ctx context.Context, run domain.DigestRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.errOn[f.calls]; err != nil {
		return err
	}
	f.saves = append(f.saves, run)
	return nil
}

func (f *fakeRuns) HasActiveRun(ctx context.Context) (bool, error) {
	return f.active, nil
}

func (f *fakeRuns) last(t *testing.T) domain.DigestRun {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.saves) == 0 {
		t.Fatal("no run was persisted")
	}
	return f.saves[len(f.saves)-1]
}

type fakeSummarizer struct {
	called bool
	got    []domain.Article
	err    error
}

func (f *fakeSummarizer) Summarize(ctx context.Context, articles []domain.Article) (domain.Digest, error) {
	f.called = true
	f.got = articles
	if f.err != nil {
		return domain.Digest{}, f.err
	}
	return domain.Digest{Overall: "digest text", GeneratedAt: time.Now()}, nil
}

type fakeDeliverer struct {
	called bool
	err    error
}

func (f *fakeDeliverer) Deliver(ctx context.Context, digest domain.Digest) error {
	f.called = true
	return f.err
}

type fixture struct {
	coordinator *Coordinator
	articles    *fakeArticles
	runs        *fakeRuns
	summarizer  *fakeSummarizer
	deliverer   *fakeDeliverer
}

func newFixture(fa *fakeAdapter, opts func(*CoordinatorDeps)) *fixture {
	registry := adapter.NewRegistry()
	if fa != nil {
		registry.Register(fa)
	}

	f := &fixture{
		articles:   &fakeArticles{known: map[domain.Fingerprint]struct{}{}},
		runs:       &fakeRuns{},
		summarizer: &fakeSummarizer{},
		deliverer:  &fakeDeliverer{},
	}

	deps := CoordinatorDeps{
		Registry:   registry,
		Articles:   f.articles,
		Runs:       f.runs,
		Summarizer: f.summarizer,
		Deliverer:  f.deliverer,
	}
	if opts != nil {
		opts(&deps)
	}
	f.coordinator = NewCoordinator(deps)
	return f
}

func feedSource(name string) domain.Source {
	return domain.Source{Name: name, Kind: domain.SourceKindFeed, Enabled: true}
}

func item(url string) domain.Candidate {
	return domain.Candidate{Title: "item " + url, URL: url}
}

func TestRunOnceMixedOutcomes(t *testing.T) {
	t.Parallel()

	knownItem := item("https://example.com/seen-before")
	fa := &fakeAdapter{
		kind: domain.SourceKindFeed,
		results: map[string]fetchResult{
			"A": {items: []domain.Candidate{knownItem, item("https://example.com/a-new")}},
			"B": {err: errors.New("connection refused")},
			"C": {items: []domain.Candidate{item("https://example.com/c-new")}},
		},
	}
	f := newFixture(fa, nil)
	f.articles.known[fingerprint.Compute(knownItem)] = struct{}{}

	run, err := f.coordinator.RunOnce(context.Background(),
		[]domain.Source{feedSource("A"), feedSource("B"), feedSource("C")})
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if len(run.Report) != 3 {
		t.Fatalf("expected 3 report entries, got %d", len(run.Report))
	}
	if a := run.Report["A"]; !a.OK || a.Items != 2 {
		t.Fatalf("unexpected outcome for A: %+v", a)
	}
	if b := run.Report["B"]; b.OK || b.Err == "" {
		t.Fatalf("expected B to be failed, got %+v", b)
	}
	if c := run.Report["C"]; !c.OK || c.Items != 1 {
		t.Fatalf("unexpected outcome for C: %+v", c)
	}

	if len(f.articles.saved) != 2 {
		t.Fatalf("expected 2 new articles, got %d", len(f.articles.saved))
	}
	if run.Status != domain.RunCompletedWithErrors {
		t.Fatalf("expected completed_with_errors, got %s", run.Status)
	}
	if !f.summarizer.called || !f.deliverer.called {
		t.Fatal("expected summarization and delivery for the surviving articles")
	}
	if run.Delivered == nil || !*run.Delivered {
		t.Fatal("expected delivery to be recorded as successful")
	}
}

func TestRunOnceAllSourcesFail(t *testing.T) {
	t.Parallel()

	fa := &fakeAdapter{
		kind: domain.SourceKindFeed,
		results: map[string]fetchResult{
			"A": {err: errors.New("boom")},
			"B": {err: errors.New("bust")},
		},
	}
	f := newFixture(fa, nil)

	run, err := f.coordinator.RunOnce(context.Background(),
		[]domain.Source{feedSource("A"), feedSource("B")})
	if err == nil {
		t.Fatal("expected a fatal error when every source fails")
	}

	if run.Status != domain.RunFailed {
		t.Fatalf("expected failed, got %s", run.Status)
	}
	if len(run.Report) != 2 {
		t.Fatalf("expected 2 report entries, got %d", len(run.Report))
	}
	if f.summarizer.called || f.deliverer.called {
		t.Fatal("downstream stages must not run after total source failure")
	}
	if run.Error == "" {
		t.Fatal("expected the run error to be recorded")
	}
}

func TestRunOnceZeroSources(t *testing.T) {
	t.Parallel()

	f := newFixture(&fakeAdapter{kind: domain.SourceKindFeed}, nil)

	run, err := f.coordinator.RunOnce(context.Background(), nil)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if !run.Status.Terminal() {
		t.Fatalf("expected a terminal status, got %s", run.Status)
	}
	if run.Status != domain.RunCompleted {
		t.Fatalf("expected completed, got %s", run.Status)
	}
	if len(run.Report) != 0 {
		t.Fatalf("expected empty report, got %+v", run.Report)
	}
	if f.summarizer.called || f.deliverer.called {
		t.Fatal("nothing to summarize or deliver")
	}
}

func TestRunOnceCrossSourceDuplicate(t *testing.T) {
	t.Parallel()

	shared := "https://example.com/shared-story"
	fa := &fakeAdapter{
		kind: domain.SourceKindFeed,
		results: map[string]fetchResult{
			"A": {items: []domain.Candidate{item(shared)}},
			"B": {items: []domain.Candidate{item(shared)}},
		},
	}
	f := newFixture(fa, nil)

	run, err := f.coordinator.RunOnce(context.Background(),
		[]domain.Source{feedSource("A"), feedSource("B")})
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if len(f.articles.saved) != 1 {
		t.Fatalf("expected exactly one article, got %d", len(f.articles.saved))
	}
	if f.articles.saved[0].Source != "A" {
		t.Fatalf("expected the first source in configuration order to win, got %s", f.articles.saved[0].Source)
	}
	if run.Status != domain.RunCompleted {
		t.Fatalf("expected completed, got %s", run.Status)
	}
}

func TestRunOnceRefusedWhileActive(t *testing.T) {
	t.Parallel()

	f := newFixture(&fakeAdapter{kind: domain.SourceKindFeed}, nil)
	f.runs.active = true

	_, err := f.coordinator.RunOnce(context.Background(), []domain.Source{feedSource("A")})
	if !errors.Is(err, domain.ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress, got %v", err)
	}
}

func TestRunOnceStorageFailureIsFatal(t *testing.T) {
	t.Parallel()

	fa := &fakeAdapter{
		kind: domain.SourceKindFeed,
		results: map[string]fetchResult{
			"A": {items: []domain.Candidate{item("https://example.com/a")}},
		},
	}
	f := newFixture(fa, nil)
	f.articles.saveErr = errors.New("disk full")

	run, err := f.coordinator.RunOnce(context.Background(), []domain.Source{feedSource("A")})

	var storageErr *domain.StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("expected StorageError, got %v", err)
	}
	if run.Status != domain.RunFailed {
		t.Fatalf("expected failed, got %s", run.Status)
	}
	if f.summarizer.called {
		t.Fatal("summarization must not run after a storage failure")
	}
}

func TestRunOnceSummarizationFailureIsFatal(t *testing.T) {
	t.Parallel()

	fa := &fakeAdapter{
		kind: domain.SourceKindFeed,
		results: map[string]fetchResult{
			"A": {items: []domain.Candidate{item("https://example.com/a")}},
		},
	}
	f := newFixture(fa, nil)
	f.summarizer.err = errors.New("model unavailable")

	run, err := f.coordinator.RunOnce(context.Background(), []domain.Source{feedSource("A")})

	var sumErr *domain.SummarizationError
	if !errors.As(err, &sumErr) {
		t.Fatalf("expected SummarizationError, got %v", err)
	}
	if run.Status != domain.RunFailed {
		t.Fatalf("expected failed, got %s", run.Status)
	}
	if f.deliverer.called {
		t.Fatal("delivery must not run after a summarization failure")
	}
}

func TestRunOnceDeliveryFailurePreservesArticles(t *testing.T) {
	t.Parallel()

	fa := &fakeAdapter{
		kind: domain.SourceKindFeed,
		results: map[string]fetchResult{
			"A": {items: []domain.Candidate{item("https://example.com/a")}},
		},
	}
	f := newFixture(fa, nil)
	f.deliverer.err = errors.New("smtp down")

	run, err := f.coordinator.RunOnce(context.Background(), []domain.Source{feedSource("A")})

	var delErr *domain.DeliveryError
	if !errors.As(err, &delErr) {
		t.Fatalf("expected DeliveryError, got %v", err)
	}
	if run.Status != domain.RunFailed {
		t.Fatalf("expected failed, got %s", run.Status)
	}
	if len(f.articles.saved) != 1 {
		t.Fatal("persisted articles must survive a delivery failure")
	}
	if run.ArticleCount != 1 {
		t.Fatalf("expected article count 1, got %d", run.ArticleCount)
	}
	if run.Delivered == nil || *run.Delivered {
		t.Fatal("expected delivery to be recorded as failed")
	}
}

func TestRunOnceTimeoutIsolatesSlowSource(t *testing.T) {
	t.Parallel()

	fa := &fakeAdapter{
		kind: domain.SourceKindFeed,
		results: map[string]fetchResult{
			"fast": {items: []domain.Candidate{item("https://example.com/fast")}},
		},
		block: map[string]bool{"slow": true},
	}
	f := newFixture(fa, func(deps *CoordinatorDeps) {
		deps.RunTimeout = 50 * time.Millisecond
	})

	run, err := f.coordinator.RunOnce(context.Background(),
		[]domain.Source{feedSource("fast"), feedSource("slow")})
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if outcome := run.Report["slow"]; outcome.OK || outcome.Err == "" {
		t.Fatalf("expected the slow source to fail with a timeout, got %+v", outcome)
	}
	if outcome := run.Report["fast"]; !outcome.OK || outcome.Items != 1 {
		t.Fatalf("completed results must be retained, got %+v", outcome)
	}
	if run.Status != domain.RunCompletedWithErrors {
		t.Fatalf("expected completed_with_errors, got %s", run.Status)
	}
	if len(f.articles.saved) != 1 {
		t.Fatalf("expected 1 article from the fast source, got %d", len(f.articles.saved))
	}
}

func TestRunOnceSkipsItemsWithoutIdentity(t *testing.T) {
	t.Parallel()

	fa := &fakeAdapter{
		kind: domain.SourceKindFeed,
		results: map[string]fetchResult{
			"A": {items: []domain.Candidate{{ /* no url, no text */ }}},
		},
	}
	f := newFixture(fa, nil)

	run, err := f.coordinator.RunOnce(context.Background(), []domain.Source{feedSource("A")})
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if outcome := run.Report["A"]; !outcome.OK || outcome.Items != 1 {
		t.Fatalf("the source itself succeeded, got %+v", outcome)
	}
	if len(f.articles.saved) != 0 {
		t.Fatal("an unidentifiable item must not become an article")
	}
	if run.Status != domain.RunCompleted {
		t.Fatalf("expected completed, got %s", run.Status)
	}
	if f.summarizer.called {
		t.Fatal("no articles, no summarization")
	}
}

func TestStartRunPersistsPendingBeforeRunning(t *testing.T) {
	t.Parallel()

	f := newFixture(&fakeAdapter{kind: domain.SourceKindFeed}, nil)

	run, err := f.coordinator.StartRun(context.Background())
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if run.Status != domain.RunRunning {
		t.Fatalf("expected running, got %s", run.Status)
	}

	if len(f.runs.saves) != 2 {
		t.Fatalf("expected 2 persisted states, got %d", len(f.runs.saves))
	}
	if f.runs.saves[0].Status != domain.RunPending {
		t.Fatalf("first persisted state must be pending, got %s", f.runs.saves[0].Status)
	}
	if f.runs.saves[1].Status != domain.RunRunning {
		t.Fatalf("second persisted state must be running, got %s", f.runs.saves[1].Status)
	}
}

func TestFinalizeRetriesStatusPersistence(t *testing.T) {
	t.Parallel()

	fa := &fakeAdapter{
		kind: domain.SourceKindFeed,
		results: map[string]fetchResult{
			"A": {items: []domain.Candidate{item("https://example.com/a")}},
		},
	}
	f := newFixture(fa, nil)
	// Calls 1 and 2 are StartRun; call 3 is the finalize write.
	f.runs.errOn = map[int]error{3: errors.New("transient")}

	run, err := f.coordinator.RunOnce(context.Background(), []domain.Source{feedSource("A")})
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if run.Status != domain.RunCompleted {
		t.Fatalf("expected completed, got %s", run.Status)
	}

	if last := f.runs.last(t); last.Status != domain.RunCompleted {
		t.Fatalf("terminal status was not persisted on retry, got %s", last.Status)
	}
}
