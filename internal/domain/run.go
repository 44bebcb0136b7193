package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RunStatus is the lifecycle state of a digest run.
type RunStatus string

const (
	RunPending             RunStatus = "pending"
	RunRunning             RunStatus = "running"
	RunCompleted           RunStatus = "completed"
	RunCompletedWithErrors RunStatus = "completed_with_errors"
	RunFailed              RunStatus = "failed"
)

// transitions lists the allowed forward moves; terminal statuses have none.
var transitions = map[RunStatus][]RunStatus{
	RunPending: {RunRunning, RunFailed},
	RunRunning: {RunCompleted, RunCompletedWithErrors, RunFailed},
}

// Terminal reports whether no further transition may leave the status.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunCompleted, RunCompletedWithErrors, RunFailed:
		return true
	}
	return false
}

// CanTransition reports whether moving from s to next is a legal forward step.
func (s RunStatus) CanTransition(next RunStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// SourceOutcome records how one configured source fared within a run.
type SourceOutcome struct {
	OK    bool   `json:"ok"`
	Items int    `json:"items"`
	Err   string `json:"err,omitempty"`
}

// DigestRun tracks one execution of the fetch→dedup→summarize→deliver pipeline.
// It is mutated only by the run coordinator and becomes immutable once the
// status is terminal.
type DigestRun struct {
	ID           string
	StartedAt    time.Time
	FinishedAt   *time.Time
	Status       RunStatus
	Report       map[string]SourceOutcome
	ArticleCount int
	Summary      string
	Delivered    *bool
	Error        string
}

// NewRun creates a pending run with a fresh identifier.
func NewRun(now time.Time) DigestRun {
	return DigestRun{
		ID:        uuid.NewString(),
		StartedAt: now.UTC(),
		Status:    RunPending,
		Report:    map[string]SourceOutcome{},
	}
}

// Transition advances the run status, enforcing monotonicity.
func (r *DigestRun) Transition(next RunStatus) error {
	if !r.Status.CanTransition(next) {
		return fmt.Errorf("run %s: illegal transition %s -> %s", r.ID, r.Status, next)
	}
	r.Status = next
	return nil
}
