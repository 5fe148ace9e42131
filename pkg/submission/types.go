package submission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/FrenchMajesty/brand-identifier/pkg/types"
	"github.com/google/uuid"
)

var (
	// ErrEmptyInput is returned when Submit is called with blank input
	ErrEmptyInput = errors.New("description is empty")

	// ErrSuperseded is returned to a Submit call whose submission was replaced by a newer one
	ErrSuperseded = errors.New("submission superseded by a newer one")

	// ErrClosed is returned by Submit after Close
	ErrClosed = errors.New("controller is closed")
)

// Classifier sends a description to the classification service
type Classifier interface {
	Classify(ctx context.Context, text string) (*types.ClassificationResult, error)
}

// Observer receives a snapshot after every lifecycle change.
// Deliveries are serialized and arrive in Seq order, but they run on the
// goroutine that made the change: a slow observer delays later changes from
// being reported, and observers must not call Submit, Cancel or Close
// synchronously.
type Observer interface {
	OnChange(Snapshot)
}

// ObserverFunc adapts a function to the Observer interface
type ObserverFunc func(Snapshot)

// OnChange implements Observer
func (f ObserverFunc) OnChange(s Snapshot) { f(s) }

// SubmissionError is the failure recorded for a settled submission
type SubmissionError struct {
	SubmissionID uuid.UUID
	Err          error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submission failed: %v", e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// Outcome is the settled result of one submission
type Outcome struct {
	SubmissionID uuid.UUID
	Result       *types.ClassificationResult
	Err          error
	Latency      time.Duration
}

// Snapshot is a point-in-time copy of the controller state
type Snapshot struct {
	// Seq increases with every lifecycle change; observers can drop older snapshots
	Seq          uint64
	Input        string
	State        State
	Hint         DelayHint
	SubmissionID uuid.UUID
	Result       *types.ClassificationResult
	Err          error
}

// Loading reports whether a submission is in flight
func (s Snapshot) Loading() bool {
	return s.State == StatePending
}

// Metrics provides statistics about submissions made through the controller
type Metrics struct {
	Submissions int
	Succeeded   int
	Failed      int
	Superseded  int
	Canceled    int
	LastLatency time.Duration
}
