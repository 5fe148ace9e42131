package submission

import "time"

// State is the lifecycle state of the controller
type State int

const (
	// StateIdle means nothing has been submitted yet
	StateIdle State = iota
	// StatePending means a request is in flight
	StatePending
	// StateSettled means the last submission finished, successfully or not
	StateSettled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	case StateSettled:
		return "settled"
	default:
		return "unknown"
	}
}

// DelayHint is a progressive message shown while a request is still pending
type DelayHint int

const (
	// HintNone means no hint is shown: nothing is pending or the first mark has not passed
	HintNone DelayHint = iota
	// HintConnecting is shown after the first mark, 5s by default
	HintConnecting
	// HintStillProcessing is shown after the second mark, 15s by default
	HintStillProcessing
	// HintAlmostThere is shown after the third mark, 20s by default
	HintAlmostThere
)

// Message returns the user-facing text for the hint. HintNone has no text.
func (h DelayHint) Message() string {
	switch h {
	case HintConnecting:
		return "Connecting to the API service ..."
	case HintStillProcessing:
		return "Still processing, please stay tight..."
	case HintAlmostThere:
		return "Spinning up the connection, almost there!"
	default:
		return ""
	}
}

func (h DelayHint) String() string {
	switch h {
	case HintNone:
		return "none"
	case HintConnecting:
		return "connecting"
	case HintStillProcessing:
		return "still_processing"
	case HintAlmostThere:
		return "almost_there"
	default:
		return "unknown"
	}
}

// HintStage shows Hint once a submission has been pending for After
type HintStage struct {
	After time.Duration
	Hint  DelayHint
}

// DefaultSchedule is the hint schedule used when none is configured
func DefaultSchedule() []HintStage {
	return []HintStage{
		{After: 5 * time.Second, Hint: HintConnecting},
		{After: 15 * time.Second, Hint: HintStillProcessing},
		{After: 20 * time.Second, Hint: HintAlmostThere},
	}
}
