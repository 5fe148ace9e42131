package batch

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/FrenchMajesty/brand-identifier/pkg/types"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Classifier sends a description to the classification service
type Classifier interface {
	Classify(ctx context.Context, text string) (*types.ClassificationResult, error)
}

// Item is the result for one description, in input order
type Item struct {
	Index  int
	Text   string
	Result *types.ClassificationResult
	Err    error
}

// Option configures Run
type Option func(*runConfig)

type runConfig struct {
	limiter *rate.Limiter
}

// WithRateLimit caps requests started per second. Zero or less means no cap.
func WithRateLimit(perSecond float64) Option {
	return func(c *runConfig) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// ReadLines returns the non-blank lines of r, trimmed
func ReadLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read descriptions: %w", err)
	}
	return lines, nil
}

// Run classifies texts with at most concurrency requests in flight.
// A failed description is recorded on its Item and does not stop the batch;
// only context cancellation does.
func Run(ctx context.Context, classifier Classifier, texts []string, concurrency int, opts ...Option) ([]Item, error) {
	if concurrency < 1 {
		concurrency = 1
	}
	var rc runConfig
	for _, o := range opts {
		o(&rc)
	}

	items := make([]Item, len(texts))
	for i, text := range texts {
		items[i] = Item{Index: i, Text: text}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, text := range texts {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				items[i].Err = err
				return err
			}
			if rc.limiter != nil {
				if err := rc.limiter.Wait(gctx); err != nil {
					items[i].Err = err
					return err
				}
			}
			result, err := classifier.Classify(gctx, text)
			items[i].Result = result
			items[i].Err = err
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		for i := range items {
			if items[i].Result == nil && items[i].Err == nil {
				items[i].Err = err
			}
		}
		return items, err
	}
	return items, nil
}

// Summary counts successes and failures
func Summary(items []Item) (succeeded, failed int) {
	for _, it := range items {
		if it.Err != nil || it.Result == nil {
			failed++
			continue
		}
		succeeded++
	}
	return succeeded, failed
}
