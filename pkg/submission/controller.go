package submission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/FrenchMajesty/brand-identifier/pkg/adapters/brandapi"
	"github.com/FrenchMajesty/brand-identifier/pkg/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config holds configuration for the Controller
type Config struct {
	// Classifier sends descriptions to the brand API. If nil, uses brandapi against DefaultBaseURL.
	Classifier Classifier

	// Schedule lists the delay hints shown while a submission is pending. If nil, uses DefaultSchedule.
	Schedule []HintStage

	// Logger receives lifecycle events. If nil, logging is disabled.
	Logger *zap.Logger
}

// applyDefaults fills in default values for unset config fields
func (c *Config) applyDefaults() {
	if c.Classifier == nil {
		c.Classifier = brandapi.NewClient(brandapi.DefaultBaseURL)
	}
	if c.Schedule == nil {
		c.Schedule = DefaultSchedule()
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

// submission is one in-flight request together with its hint timers
type submission struct {
	id     uuid.UUID
	ctx    context.Context
	cancel context.CancelFunc
	start  time.Time
	timers []*time.Timer

	// set under Controller.mu once the submission stops being current
	outcome    *Outcome
	superseded bool
}

func (s *submission) stopTimers() {
	for _, t := range s.timers {
		t.Stop()
	}
	s.timers = nil
}

// Controller owns the description input and drives the submission lifecycle:
// Idle → Pending → Settled, with staged delay hints while Pending.
// It is safe for concurrent use.
type Controller struct {
	classifier Classifier
	schedule   []HintStage
	logger     *zap.Logger

	mu      sync.Mutex
	input   string
	state   State
	hint    DelayHint
	result  *types.ClassificationResult
	err     error
	lastID  uuid.UUID
	current *submission
	seq     uint64
	metrics Metrics
	closed  bool

	observersMu sync.RWMutex
	observers   map[int]Observer
	nextObsID   int

	// deliverMu and deliverCond hand out delivery turns in Seq order
	deliverMu   sync.Mutex
	deliverCond *sync.Cond
	delivered   uint64

	closeOnce sync.Once
}

// NewController creates a new Controller with the given configuration
func NewController(cfg Config) (*Controller, error) {
	cfg.applyDefaults()

	for i, stage := range cfg.Schedule {
		if stage.After <= 0 {
			return nil, fmt.Errorf("hint stage %d: delay must be positive, got %v", i, stage.After)
		}
		if stage.Hint == HintNone {
			return nil, fmt.Errorf("hint stage %d: hint must not be none", i)
		}
	}

	schedule := make([]HintStage, len(cfg.Schedule))
	copy(schedule, cfg.Schedule)

	c := &Controller{
		classifier: cfg.Classifier,
		schedule:   schedule,
		logger:     cfg.Logger,
		state:      StateIdle,
		observers:  make(map[int]Observer),
	}
	c.deliverCond = sync.NewCond(&c.deliverMu)
	return c, nil
}

// SetInput replaces the description unconditionally
func (c *Controller) SetInput(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.input = text
}

// Clear empties the description
func (c *Controller) Clear() {
	c.SetInput("")
}

// Input returns the current description
func (c *Controller) Input() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.input
}

// State returns the current lifecycle state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot returns a copy of the current state
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// GetMetrics returns current submission metrics
func (c *Controller) GetMetrics() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metrics
}

// Subscribe registers an observer and returns a function that removes it.
// Snapshots reach observers one at a time, in Seq order.
func (c *Controller) Subscribe(o Observer) func() {
	c.observersMu.Lock()
	defer c.observersMu.Unlock()
	id := c.nextObsID
	c.nextObsID++
	c.observers[id] = o
	return func() {
		c.observersMu.Lock()
		defer c.observersMu.Unlock()
		delete(c.observers, id)
	}
}

// Submit classifies the current description and blocks until the submission
// settles. A newer Submit supersedes this one, in which case ErrSuperseded is
// returned and this call leaves the controller state alone. A failed
// submission returns its Outcome together with the error.
func (c *Controller) Submit(ctx context.Context) (*Outcome, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	text := c.input
	if strings.TrimSpace(text) == "" {
		c.mu.Unlock()
		return nil, ErrEmptyInput
	}

	if prev := c.current; prev != nil {
		c.supersedeLocked(prev)
	}

	sub := c.beginLocked(ctx)
	snap := c.commitLocked()
	c.mu.Unlock()

	c.logger.Debug("submission pending", zap.String("submission_id", sub.id.String()))
	c.notify(snap)

	result, err := c.classifier.Classify(sub.ctx, text)
	if err == nil && result == nil {
		err = errors.New("classifier returned no result")
	}

	c.mu.Lock()
	if sub.outcome != nil {
		// Settled by Cancel or Close while the request was in flight
		out := sub.outcome
		c.mu.Unlock()
		return out, out.Err
	}
	if sub.superseded {
		c.mu.Unlock()
		return nil, ErrSuperseded
	}
	out := c.settleLocked(sub, result, err)
	snap = c.commitLocked()
	c.mu.Unlock()

	c.notify(snap)
	if out.Err != nil {
		return out, out.Err
	}
	return out, nil
}

// Cancel abandons the in-flight submission, which settles with context.Canceled.
// It reports whether there was anything to cancel.
func (c *Controller) Cancel() bool {
	c.mu.Lock()
	sub := c.current
	if sub == nil {
		c.mu.Unlock()
		return false
	}
	c.settleLocked(sub, nil, context.Canceled)
	snap := c.commitLocked()
	c.mu.Unlock()

	c.notify(snap)
	return true
}

// Close settles any in-flight submission and rejects new ones.
// It's safe to call Close multiple times.
func (c *Controller) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		sub := c.current
		if sub == nil {
			c.mu.Unlock()
			return
		}
		c.settleLocked(sub, nil, ErrClosed)
		snap := c.commitLocked()
		c.mu.Unlock()

		c.notify(snap)
	})
	return nil
}

// beginLocked starts a new submission and arms its hint timers
func (c *Controller) beginLocked(parent context.Context) *submission {
	ctx, cancel := context.WithCancel(parent)
	sub := &submission{
		id:     uuid.New(),
		ctx:    ctx,
		cancel: cancel,
		start:  time.Now(),
	}

	for _, stage := range c.schedule {
		hint := stage.Hint
		sub.timers = append(sub.timers, time.AfterFunc(stage.After, func() {
			c.fireHint(sub, hint)
		}))
	}

	c.current = sub
	c.lastID = sub.id
	c.state = StatePending
	c.hint = HintNone
	c.result = nil
	c.err = nil
	c.metrics.Submissions++
	return sub
}

// supersedeLocked detaches prev so that neither its timers nor its response touch state again
func (c *Controller) supersedeLocked(prev *submission) {
	prev.stopTimers()
	prev.cancel()
	prev.superseded = true
	c.current = nil
	c.metrics.Superseded++
	c.logger.Debug("submission superseded", zap.String("submission_id", prev.id.String()))
}

// settleLocked finalizes sub. Timers are stopped before any state changes.
func (c *Controller) settleLocked(sub *submission, result *types.ClassificationResult, err error) *Outcome {
	sub.stopTimers()
	sub.cancel()

	latency := time.Since(sub.start)
	out := &Outcome{SubmissionID: sub.id, Latency: latency}

	if err != nil {
		serr := &SubmissionError{SubmissionID: sub.id, Err: err}
		out.Err = serr
		c.err = serr
		c.result = nil
		if errors.Is(err, context.Canceled) || errors.Is(err, ErrClosed) {
			c.metrics.Canceled++
		} else {
			c.metrics.Failed++
		}
		c.logger.Warn("submission failed",
			zap.String("submission_id", sub.id.String()),
			zap.Duration("latency", latency),
			zap.Error(err))
	} else {
		out.Result = result
		c.result = result
		c.err = nil
		c.metrics.Succeeded++
		c.logger.Info("submission settled",
			zap.String("submission_id", sub.id.String()),
			zap.String("label", result.Label),
			zap.Duration("latency", latency))
	}

	c.metrics.LastLatency = latency
	c.hint = HintNone
	c.state = StateSettled
	c.current = nil
	sub.outcome = out
	return out
}

// fireHint advances the delay hint if sub is still the pending submission
func (c *Controller) fireHint(sub *submission, hint DelayHint) {
	c.mu.Lock()
	if c.current != sub || c.state != StatePending {
		c.mu.Unlock()
		return
	}
	c.hint = hint
	snap := c.commitLocked()
	c.mu.Unlock()

	c.logger.Debug("delay hint",
		zap.String("submission_id", sub.id.String()),
		zap.Stringer("hint", hint))
	c.notify(snap)
}

// commitLocked records a lifecycle change and returns the snapshot to publish
func (c *Controller) commitLocked() Snapshot {
	c.seq++
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		Seq:          c.seq,
		Input:        c.input,
		State:        c.state,
		Hint:         c.hint,
		SubmissionID: c.lastID,
		Result:       c.result,
		Err:          c.err,
	}
}

// notify delivers snap once every earlier snapshot has been delivered.
// Every commitLocked must be followed by exactly one notify.
func (c *Controller) notify(snap Snapshot) {
	c.deliverMu.Lock()
	for c.delivered+1 != snap.Seq {
		c.deliverCond.Wait()
	}
	c.deliverMu.Unlock()

	defer func() {
		c.deliverMu.Lock()
		c.delivered = snap.Seq
		c.deliverCond.Broadcast()
		c.deliverMu.Unlock()
	}()

	c.observersMu.RLock()
	observers := make([]Observer, 0, len(c.observers))
	for _, o := range c.observers {
		observers = append(observers, o)
	}
	c.observersMu.RUnlock()

	for _, o := range observers {
		o.OnChange(snap)
	}
}
