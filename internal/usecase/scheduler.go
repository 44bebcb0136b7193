package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/ports"
)

// Scheduler wires the cron-like driver with the run coordinator.
type Scheduler struct {
	driver      ports.Scheduler
	coordinator *Coordinator
	sources     []domain.Source
	logger      *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring digest runs.
func NewScheduler(driver ports.Scheduler, coordinator *Coordinator, sources []domain.Source, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Scheduler{driver: driver, coordinator: coordinator, sources: sources, logger: logger}
}

// Start registers the coordinator with the provided scheduler. A trigger that
// fires while a run is still active is skipped, not queued.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.coordinator == nil {
		return nil
	}

	job := func(trigger time.Time) {
		run, err := s.coordinator.RunOnce(ctx, s.sources)
		if errors.Is(err, domain.ErrRunInProgress) {
			s.logger.Warn("scheduled run skipped, previous run still active", "trigger", trigger)
			return
		}
		if err != nil {
			s.logger.Error("scheduled run failed", "run", run.ID, "error", err)
		}
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}
	return s.driver.Stop(ctx)
}
