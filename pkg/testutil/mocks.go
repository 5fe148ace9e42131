package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/FrenchMajesty/brand-identifier/pkg/types"
)

// MockClassifier is a mock implementation of submission.Classifier for testing
type MockClassifier struct {
	ClassifyFunc func(ctx context.Context, text string) (*types.ClassificationResult, error)

	mu        sync.Mutex
	CallCount int
	Texts     []string
}

func (m *MockClassifier) Classify(ctx context.Context, text string) (*types.ClassificationResult, error) {
	m.mu.Lock()
	m.CallCount++
	m.Texts = append(m.Texts, text)
	m.mu.Unlock()

	if m.ClassifyFunc != nil {
		return m.ClassifyFunc(ctx, text)
	}
	// Default: echo the text back with a fixed label
	return &types.ClassificationResult{Request: text, Label: "mock-brand"}, nil
}

// Calls returns the number of Classify calls so far
func (m *MockClassifier) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}

// LastText returns the most recent text passed to Classify
func (m *MockClassifier) LastText() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Texts) == 0 {
		return ""
	}
	return m.Texts[len(m.Texts)-1]
}

// NewLabelClassifier returns a mock that always answers with label
func NewLabelClassifier(label string) *MockClassifier {
	return &MockClassifier{
		ClassifyFunc: func(ctx context.Context, text string) (*types.ClassificationResult, error) {
			return &types.ClassificationResult{Request: text, Label: label}, nil
		},
	}
}

// NewErrorClassifier returns a mock that always fails with err
func NewErrorClassifier(err error) *MockClassifier {
	return &MockClassifier{
		ClassifyFunc: func(ctx context.Context, text string) (*types.ClassificationResult, error) {
			return nil, err
		},
	}
}

// BlockingClassifier holds every call until Release is called or the context ends
type BlockingClassifier struct {
	MockClassifier

	Label   string
	release chan struct{}
	once    sync.Once
	started chan struct{}
}

// NewBlockingClassifier returns a classifier whose calls block until Release
func NewBlockingClassifier(label string) *BlockingClassifier {
	b := &BlockingClassifier{
		Label:   label,
		release: make(chan struct{}),
		started: make(chan struct{}, 16),
	}
	b.ClassifyFunc = func(ctx context.Context, text string) (*types.ClassificationResult, error) {
		b.started <- struct{}{}
		select {
		case <-b.release:
			return &types.ClassificationResult{Request: text, Label: b.Label}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return b
}

// Release unblocks all current and future calls
func (b *BlockingClassifier) Release() {
	b.once.Do(func() { close(b.release) })
}

// WaitStarted waits until a call has reached the classifier
func (b *BlockingClassifier) WaitStarted(timeout time.Duration) bool {
	select {
	case <-b.started:
		return true
	case <-time.After(timeout):
		return false
	}
}
