package deployment

import "github.com/artpar/convoy/internal/core/marathon"

// =============================================================================
// Convergence State Machine
// =============================================================================

// PollState is the state of the convergence poll.
type PollState string

const (
	PollInProgress    PollState = "in_progress"
	PollComplete      PollState = "complete"
	PollRetryExceeded PollState = "retry_exceeded"
)

// DefaultMaxRetries is the number of in-flight observations tolerated
// before giving up.
const DefaultMaxRetries = 10

// Convergence tracks the polling of one deploy. It is a value type: Observe
// returns the next state and leaves the receiver untouched.
type Convergence struct {
	State      PollState
	Retries    int
	MaxRetries int
}

// NewConvergence starts a poll in PollInProgress. A non-positive maxRetries
// falls back to DefaultMaxRetries.
func NewConvergence(maxRetries int) Convergence {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return Convergence{
		State:      PollInProgress,
		MaxRetries: maxRetries,
	}
}

// Terminal reports whether polling is over.
func (c Convergence) Terminal() bool {
	return c.State != PollInProgress
}

// Observe applies one tick.
//
// Transitions:
//   - no deployment affecting the app → complete
//   - still in flight → retries+1; retry_exceeded once retries reach MaxRetries
//   - terminal states never change
func (c Convergence) Observe(inFlight bool) Convergence {
	if c.Terminal() {
		return c
	}
	if !inFlight {
		c.State = PollComplete
		return c
	}
	c.Retries++
	if c.Retries >= c.MaxRetries {
		c.State = PollRetryExceeded
	}
	return c
}

// TaskFailedForVersion reports whether Marathon's last task failure belongs
// to the version started by this deploy. The result only drives a warning;
// it does not change the convergence outcome.
func TaskFailedForVersion(failure *marathon.TaskFailure, version string) bool {
	if failure == nil || version == "" {
		return false
	}
	return failure.Version == version
}
