package retry

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Config holds the configuration for retry logic
type Config struct {
	MaxRetries      int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	BackoffMultiple float64
}

// DefaultConfig returns a configuration that never retries. The brand API
// is called once per submission unless the caller opts into retries.
func DefaultConfig() Config {
	return Config{
		MaxRetries:      0,
		BaseDelay:       500 * time.Millisecond,
		MaxDelay:        5 * time.Second,
		BackoffMultiple: 2.0,
	}
}

// WithMaxRetries returns a copy of c with MaxRetries set to n (negative values clamp to 0)
func (c Config) WithMaxRetries(n int) Config {
	if n < 0 {
		n = 0
	}
	c.MaxRetries = n
	return c
}

// ErrorChecker decides whether an attempt should be retried
type ErrorChecker func(err error, statusCode int) bool

// Logger logs retry attempts
type Logger func(message string, args ...any)

// Options configures retry behavior
type Options struct {
	Config       Config
	ErrorChecker ErrorChecker
	Logger       Logger
	APIName      string
}

// Attempt is the outcome of a single try
type Attempt[T any] struct {
	Value      T
	StatusCode int
	Err        error
}

// calculateDelay computes the delay for the given attempt using exponential backoff
func (c Config) calculateDelay(attempt int) time.Duration {
	multiple := c.BackoffMultiple
	if multiple <= 0 {
		multiple = 1
	}
	delay := time.Duration(float64(c.BaseDelay) * math.Pow(multiple, float64(attempt)))
	if c.MaxDelay > 0 && delay > c.MaxDelay {
		delay = c.MaxDelay
	}
	return delay
}

// Execute runs fn until it succeeds, returns a non-retryable error, or the
// retry budget is spent. The last error is returned as-is so callers can
// still inspect it with errors.As.
func Execute[T any](ctx context.Context, opts Options, fn func(ctx context.Context, attempt int) Attempt[T]) (T, error) {
	var zero T
	var last Attempt[T]

	for attempt := 0; attempt <= opts.Config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := opts.Config.calculateDelay(attempt - 1)
			opts.log("%s retry attempt %d/%d after %v delay", opts.APIName, attempt+1, opts.Config.MaxRetries+1, delay)

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			case <-timer.C:
			}
		}

		last = fn(ctx, attempt)
		if last.Err == nil {
			if attempt > 0 {
				opts.log("%s request succeeded on attempt %d/%d", opts.APIName, attempt+1, opts.Config.MaxRetries+1)
			}
			return last.Value, nil
		}

		// A canceled caller is never retried
		if ctx.Err() != nil {
			return zero, last.Err
		}

		if opts.ErrorChecker == nil || !opts.ErrorChecker(last.Err, last.StatusCode) {
			return zero, last.Err
		}

		if attempt < opts.Config.MaxRetries {
			opts.log("%s retryable error (attempt %d/%d): %v", opts.APIName, attempt+1, opts.Config.MaxRetries+1, last.Err)
		}
	}

	if opts.Config.MaxRetries == 0 {
		return zero, last.Err
	}

	return zero, &RetryExhaustedError{
		APIName:        opts.APIName,
		MaxAttempts:    opts.Config.MaxRetries + 1,
		LastStatusCode: last.StatusCode,
		Err:            last.Err,
	}
}

func (o Options) log(message string, args ...any) {
	if o.Logger != nil {
		o.Logger(message, args...)
	}
}

// RetryExhaustedError is returned when every attempt failed with a retryable error
type RetryExhaustedError struct {
	APIName        string
	MaxAttempts    int
	LastStatusCode int
	Err            error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("retry attempts exhausted for %s after %d attempts: %v", e.APIName, e.MaxAttempts, e.Err)
}

func (e *RetryExhaustedError) Unwrap() error {
	return e.Err
}
