package submission

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/FrenchMajesty/brand-identifier/pkg/adapters/brandapi"
	"github.com/FrenchMajesty/brand-identifier/pkg/testutil"
	"github.com/FrenchMajesty/brand-identifier/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const sampleDescription = "Great Value Hazelnut Milk Chocolate, 100 g"

// fastSchedule mirrors the 5s/15s/20s default at millisecond scale
func fastSchedule() []HintStage {
	return []HintStage{
		{After: 20 * time.Millisecond, Hint: HintConnecting},
		{After: 60 * time.Millisecond, Hint: HintStillProcessing},
		{After: 80 * time.Millisecond, Hint: HintAlmostThere},
	}
}

// recorder collects every snapshot delivered to it
type recorder struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (r *recorder) OnChange(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
}

func (r *recorder) hints() []DelayHint {
	r.mu.Lock()
	defer r.mu.Unlock()
	var hints []DelayHint
	for _, s := range r.snaps {
		if s.Hint != HintNone {
			hints = append(hints, s.Hint)
		}
	}
	return hints
}

func newTestController(t *testing.T, classifier Classifier) (*Controller, *recorder) {
	t.Helper()
	c, err := NewController(Config{
		Classifier: classifier,
		Schedule:   fastSchedule(),
		Logger:     zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	rec := &recorder{}
	c.Subscribe(rec)
	return c, rec
}

func TestNewController_Defaults(t *testing.T) {
	c, err := NewController(Config{})
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, StateIdle, c.State())
	assert.Equal(t, DefaultSchedule(), c.schedule)
	assert.IsType(t, &brandapi.Client{}, c.classifier)
}

func TestNewController_RejectsBadSchedule(t *testing.T) {
	_, err := NewController(Config{
		Classifier: &testutil.MockClassifier{},
		Schedule:   []HintStage{{After: 0, Hint: HintConnecting}},
	})
	assert.Error(t, err)

	_, err = NewController(Config{
		Classifier: &testutil.MockClassifier{},
		Schedule:   []HintStage{{After: time.Second, Hint: HintNone}},
	})
	assert.Error(t, err)
}

func TestClear(t *testing.T) {
	inputs := []string{"", "a", sampleDescription, "   "}
	for _, in := range inputs {
		c, _ := newTestController(t, &testutil.MockClassifier{})
		c.SetInput(in)
		c.Clear()
		assert.Equal(t, "", c.Input())
	}
}

func TestClear_Idempotent(t *testing.T) {
	c, _ := newTestController(t, &testutil.MockClassifier{})
	c.SetInput(sampleDescription)

	c.Clear()
	once := c.Snapshot()
	c.Clear()
	twice := c.Snapshot()

	assert.Equal(t, once, twice)
}

func TestSetInput_Replaces(t *testing.T) {
	c, _ := newTestController(t, &testutil.MockClassifier{})
	c.SetInput("first")
	c.SetInput("second")
	assert.Equal(t, "second", c.Input())
}

func TestSubmit_SuccessAgainstEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req brandapi.ProcessTextRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"text_request": req.Text, "text_result": "grocery"})
	}))
	defer server.Close()

	client := brandapi.NewClient(server.URL, brandapi.WithHTTPClient(server.Client()))
	c, rec := newTestController(t, client)
	c.SetInput(sampleDescription)

	out, err := c.Submit(context.Background())
	require.NoError(t, err)
	require.NotNil(t, out.Result)
	assert.Equal(t, "grocery", out.Result.Label)

	snap := c.Snapshot()
	assert.Equal(t, StateSettled, snap.State)
	assert.Equal(t, "grocery", snap.Result.Label)
	assert.Equal(t, HintNone, snap.Hint)
	assert.NoError(t, snap.Err)
	assert.Equal(t, out.SubmissionID, snap.SubmissionID)

	// Input is kept after submitting
	assert.Equal(t, sampleDescription, snap.Input)

	rec.mu.Lock()
	require.Len(t, rec.snaps, 2)
	assert.Equal(t, StatePending, rec.snaps[0].State)
	assert.Equal(t, StateSettled, rec.snaps[1].State)
	assert.Less(t, rec.snaps[0].Seq, rec.snaps[1].Seq)
	rec.mu.Unlock()
}

func TestSubmit_HintsProgressWhilePending(t *testing.T) {
	blocking := testutil.NewBlockingClassifier("Dove")
	c, rec := newTestController(t, blocking)
	c.SetInput(sampleDescription)

	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background())
		done <- err
	}()

	require.True(t, blocking.WaitStarted(time.Second))
	assert.True(t, c.Snapshot().Loading())

	require.Eventually(t, func() bool {
		return len(rec.hints()) == 3
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, HintAlmostThere, c.Snapshot().Hint)
	assert.Equal(t, []DelayHint{HintConnecting, HintStillProcessing, HintAlmostThere}, rec.hints())

	blocking.Release()
	require.NoError(t, <-done)

	snap := c.Snapshot()
	assert.Equal(t, StateSettled, snap.State)
	assert.Equal(t, HintNone, snap.Hint)
	assert.Equal(t, "Dove", snap.Result.Label)
}

func TestSubmit_SuccessCancelsHints(t *testing.T) {
	c, rec := newTestController(t, testutil.NewLabelClassifier("grocery"))
	c.SetInput(sampleDescription)

	_, err := c.Submit(context.Background())
	require.NoError(t, err)

	// Let real time cross every mark
	time.Sleep(150 * time.Millisecond)

	assert.Empty(t, rec.hints())
	assert.Equal(t, HintNone, c.Snapshot().Hint)
	assert.Equal(t, StateSettled, c.State())
}

func TestSubmit_FailureSettles(t *testing.T) {
	apiErr := &brandapi.APIError{Message: "brand API error 500", StatusCode: 500}
	c, rec := newTestController(t, testutil.NewErrorClassifier(apiErr))
	c.SetInput(sampleDescription)

	out, err := c.Submit(context.Background())
	require.Error(t, err)
	require.NotNil(t, out)
	assert.Nil(t, out.Result)

	var serr *SubmissionError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, out.SubmissionID, serr.SubmissionID)

	var gotAPIErr *brandapi.APIError
	assert.ErrorAs(t, err, &gotAPIErr)

	time.Sleep(150 * time.Millisecond)

	snap := c.Snapshot()
	assert.Equal(t, StateSettled, snap.State)
	assert.Nil(t, snap.Result)
	assert.ErrorIs(t, snap.Err, apiErr)
	assert.Empty(t, rec.hints())

	m := c.GetMetrics()
	assert.Equal(t, 1, m.Submissions)
	assert.Equal(t, 1, m.Failed)
	assert.Equal(t, 0, m.Succeeded)
}

func TestSubmit_FailureClearsPreviousResult(t *testing.T) {
	mock := &testutil.MockClassifier{}
	c, _ := newTestController(t, mock)
	c.SetInput("Dove Promises")

	_, err := c.Submit(context.Background())
	require.NoError(t, err)
	require.NotNil(t, c.Snapshot().Result)

	mock.ClassifyFunc = testutil.NewErrorClassifier(errors.New("boom")).ClassifyFunc
	_, err = c.Submit(context.Background())
	require.Error(t, err)

	assert.Nil(t, c.Snapshot().Result)
	assert.Equal(t, 2, mock.Calls())
}

func TestSubmit_EmptyInputRejected(t *testing.T) {
	mock := &testutil.MockClassifier{}
	c, rec := newTestController(t, mock)

	for _, in := range []string{"", "   ", "\t\n"} {
		c.SetInput(in)
		out, err := c.Submit(context.Background())
		assert.ErrorIs(t, err, ErrEmptyInput)
		assert.Nil(t, out)
	}

	assert.Equal(t, StateIdle, c.State())
	assert.Equal(t, 0, mock.Calls())
	assert.Empty(t, rec.snaps)
}

func TestSubmit_SendsInputVerbatim(t *testing.T) {
	mock := &testutil.MockClassifier{}
	c, _ := newTestController(t, mock)
	c.SetInput("  Hershey's Kisses  ")

	_, err := c.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "  Hershey's Kisses  ", mock.LastText())
}

func TestSubmit_SupersedesPending(t *testing.T) {
	blocking := testutil.NewBlockingClassifier("Lindt")
	c, rec := newTestController(t, blocking)
	c.SetInput("first description")

	first := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background())
		first <- err
	}()
	require.True(t, blocking.WaitStarted(time.Second))
	firstID := c.Snapshot().SubmissionID

	c.SetInput("second description")
	second := make(chan *Outcome, 1)
	go func() {
		out, _ := c.Submit(context.Background())
		second <- out
	}()

	assert.ErrorIs(t, <-first, ErrSuperseded)
	require.True(t, blocking.WaitStarted(time.Second))

	secondID := c.Snapshot().SubmissionID
	assert.NotEqual(t, firstID, secondID)

	blocking.Release()
	out := <-second
	require.NotNil(t, out)
	assert.Equal(t, secondID, out.SubmissionID)
	assert.Equal(t, "Lindt", out.Result.Label)

	time.Sleep(150 * time.Millisecond)

	// Neither submission may produce hints after settling
	assert.Equal(t, HintNone, c.Snapshot().Hint)
	rec.mu.Lock()
	for _, s := range rec.snaps {
		if s.SubmissionID == firstID {
			assert.NotEqual(t, StateSettled, s.State, "superseded submission must never settle")
		}
	}
	rec.mu.Unlock()

	m := c.GetMetrics()
	assert.Equal(t, 2, m.Submissions)
	assert.Equal(t, 1, m.Superseded)
	assert.Equal(t, 1, m.Succeeded)
}

func TestCancel(t *testing.T) {
	blocking := testutil.NewBlockingClassifier("unused")
	c, _ := newTestController(t, blocking)

	assert.False(t, c.Cancel(), "nothing to cancel while idle")

	c.SetInput(sampleDescription)
	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background())
		done <- err
	}()
	require.True(t, blocking.WaitStarted(time.Second))

	assert.True(t, c.Cancel())
	err := <-done
	assert.ErrorIs(t, err, context.Canceled)

	snap := c.Snapshot()
	assert.Equal(t, StateSettled, snap.State)
	assert.ErrorIs(t, snap.Err, context.Canceled)
	assert.Equal(t, 1, c.GetMetrics().Canceled)
}

func TestSubmit_CallerContextCanceled(t *testing.T) {
	blocking := testutil.NewBlockingClassifier("unused")
	c, _ := newTestController(t, blocking)
	c.SetInput(sampleDescription)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(ctx)
		done <- err
	}()
	require.True(t, blocking.WaitStarted(time.Second))
	cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, StateSettled, c.State())
}

func TestClose(t *testing.T) {
	blocking := testutil.NewBlockingClassifier("unused")
	c, _ := newTestController(t, blocking)
	c.SetInput(sampleDescription)

	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background())
		done <- err
	}()
	require.True(t, blocking.WaitStarted(time.Second))

	require.NoError(t, c.Close())
	assert.ErrorIs(t, <-done, ErrClosed)
	require.NoError(t, c.Close())

	_, err := c.Submit(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	c, _ := newTestController(t, testutil.NewLabelClassifier("grocery"))
	var mu sync.Mutex
	count := 0
	unsubscribe := c.Subscribe(ObserverFunc(func(Snapshot) {
		mu.Lock()
		count++
		mu.Unlock()
	}))

	c.SetInput(sampleDescription)
	_, err := c.Submit(context.Background())
	require.NoError(t, err)

	unsubscribe()
	_, err = c.Submit(context.Background())
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, count)
}

func TestSubscribe_SlowObserverSeesSnapshotsInOrder(t *testing.T) {
	for run := 0; run < 20; run++ {
		c, err := NewController(Config{
			Classifier: &testutil.MockClassifier{
				ClassifyFunc: func(ctx context.Context, text string) (*types.ClassificationResult, error) {
					time.Sleep(20 * time.Millisecond)
					return &types.ClassificationResult{Request: text, Label: "grocery"}, nil
				},
			},
			Schedule: []HintStage{{After: time.Millisecond, Hint: HintConnecting}},
		})
		require.NoError(t, err)

		var mu sync.Mutex
		var seqs []uint64
		c.Subscribe(ObserverFunc(func(s Snapshot) {
			if s.Hint != HintNone {
				// Slower than the request itself
				time.Sleep(30 * time.Millisecond)
			}
			mu.Lock()
			seqs = append(seqs, s.Seq)
			mu.Unlock()
		}))

		c.SetInput(sampleDescription)
		_, err = c.Submit(context.Background())
		require.NoError(t, err)
		require.NoError(t, c.Close())

		mu.Lock()
		got := append([]uint64(nil), seqs...)
		mu.Unlock()

		require.Len(t, got, 3, "pending, hint and settled snapshots")
		for i := 1; i < len(got); i++ {
			assert.Equal(t, got[i-1]+1, got[i], "run %d delivered %v", run, got)
		}
	}
}

func TestDelayHintMessages(t *testing.T) {
	assert.Equal(t, "", HintNone.Message())
	assert.Equal(t, "Connecting to the API service ...", HintConnecting.Message())
	assert.Equal(t, "Still processing, please stay tight...", HintStillProcessing.Message())
	assert.Equal(t, "Spinning up the connection, almost there!", HintAlmostThere.Message())
}

func TestDefaultSchedule(t *testing.T) {
	schedule := DefaultSchedule()
	require.Len(t, schedule, 3)
	assert.Equal(t, 5*time.Second, schedule[0].After)
	assert.Equal(t, 15*time.Second, schedule[1].After)
	assert.Equal(t, 20*time.Second, schedule[2].After)
}
