package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"NewsDigest/internal/adapter"
	"NewsDigest/internal/config"
	"NewsDigest/internal/domain"
	"NewsDigest/internal/infrastructure/email"
	"NewsDigest/internal/infrastructure/feed"
	"NewsDigest/internal/infrastructure/llm"
	"NewsDigest/internal/infrastructure/scheduler"
	"NewsDigest/internal/infrastructure/storage"
	"NewsDigest/internal/infrastructure/web"
	"NewsDigest/internal/infrastructure/youtube"
	"NewsDigest/internal/logging"
	"NewsDigest/internal/ports"
	"NewsDigest/internal/usecase"
)

// Application wires configuration to the run coordinator and its adapters.
type Application struct {
	cfg         config.Config
	logger      *slog.Logger
	db          *sql.DB
	coordinator *usecase.Coordinator
	sources     []domain.Source
}

// New builds a runnable application instance and prepares storage.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	db, err := storage.Open(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	store := storage.NewPostgresStore(db)
	if err := store.InitSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	registry := adapter.NewRegistry()
	registry.Register(feed.New(nil))
	registry.Register(youtube.New(cfg.YouTube.Endpoint, cfg.YouTube.APIKey))
	registry.Register(web.New(nil))

	var summarizer ports.Summarizer
	if cfg.OpenAI.APIKey != "" {
		summarizer = llm.NewSummarizer(cfg.OpenAI)
	}

	var deliverer ports.Deliverer
	if cfg.SMTP.Host != "" {
		deliverer = email.NewMailer(cfg.SMTP)
	}

	coordinator := usecase.NewCoordinator(usecase.CoordinatorDeps{
		Registry:    registry,
		Articles:    store,
		Runs:        store,
		Summarizer:  summarizer,
		Deliverer:   deliverer,
		Logger:      baseLogger.With("component", "coordinator"),
		Concurrency: cfg.Run.Concurrency,
		RunTimeout:  cfg.Run.Timeout(),
		Lookback:    cfg.Run.Lookback(),
	})

	return &Application{
		cfg:         cfg,
		logger:      baseLogger,
		db:          db,
		coordinator: coordinator,
		sources:     domainSources(cfg.Sources),
	}, nil
}

// Run performs a single digest run.
func (a *Application) Run(ctx context.Context) error {
	run, err := a.coordinator.RunOnce(ctx, a.sources)
	if err != nil {
		return fmt.Errorf("run %s: %w", run.ID, err)
	}
	return nil
}

// RunScheduled executes digest runs on the configured interval until the
// context is cancelled.
func (a *Application) RunScheduled(ctx context.Context) error {
	driver := scheduler.NewTickerScheduler(a.cfg.Scheduler.IntervalDuration())
	sched := usecase.NewScheduler(driver, a.coordinator, a.sources,
		a.logger.With("component", "scheduler"))

	if err := sched.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return sched.Stop(context.WithoutCancel(ctx))
}

// Close releases the database connection.
func (a *Application) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

func domainSources(configs []config.SourceConfig) []domain.Source {
	sources := make([]domain.Source, 0, len(configs))
	for _, sc := range configs {
		sources = append(sources, domain.Source{
			Name:    sc.Name,
			Kind:    domain.SourceKind(sc.Kind),
			URL:     sc.URL,
			Options: sc.Options,
			Enabled: sc.IsEnabled(),
		})
	}
	return sources
}
