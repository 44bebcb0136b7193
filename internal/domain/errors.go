package domain

import (
	"errors"
	"fmt"
)

// ErrRunInProgress is returned when a new run is requested while another run
// has not reached a terminal status.
var ErrRunInProgress = errors.New("a digest run is already in progress")

// AdapterError is a source-scoped fetch failure. It is isolated by the
// coordinator: recorded in the outcome report, never propagated.
type AdapterError struct {
	Source string
	Err    error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("source %s: %v", e.Source, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }

// StorageError is fatal to the run: dedup results cannot be persisted.
type StorageError struct {
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage: %v", e.Err) }

func (e *StorageError) Unwrap() error { return e.Err }

// SummarizationError is fatal to the summarization stage and the run.
type SummarizationError struct {
	Err error
}

func (e *SummarizationError) Error() string { return fmt.Sprintf("summarize: %v", e.Err) }

func (e *SummarizationError) Unwrap() error { return e.Err }

// DeliveryError is fatal to the delivery stage and the run.
type DeliveryError struct {
	Err error
}

func (e *DeliveryError) Error() string { return fmt.Sprintf("deliver: %v", e.Err) }

func (e *DeliveryError) Unwrap() error { return e.Err }
