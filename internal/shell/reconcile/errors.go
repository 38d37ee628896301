package reconcile

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrConflict is returned when Marathon answers 409 to a start or update:
	// another deployment of the app is already in flight.
	ErrConflict = errors.New("another deployment is in progress")

	// ErrDeployRejected is returned when a start or update fails for any
	// other reason, including transport failures.
	ErrDeployRejected = errors.New("deploy rejected by marathon")

	// ErrRetryExceeded is returned when the app did not converge within the
	// retry budget.
	ErrRetryExceeded = errors.New("app failed to converge")

	// ErrUnreachable is returned when no client can be built for the
	// deployment's Marathon URL.
	ErrUnreachable = errors.New("cannot connect to marathon")

	// ErrUnknownState is returned when polling ends in a state that is
	// neither complete nor retry exceeded.
	ErrUnknownState = errors.New("app is in unknown state")
)

// DeployError carries the Marathon response that ended a deployment.
type DeployError struct {
	Deployment string
	StatusCode int    // zero for transport failures
	Body       string // last response body or transport message
	Err        error
}

func (e *DeployError) Error() string {
	msg := fmt.Sprintf("deployment '%s': %v", e.Deployment, e.Err)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

func (e *DeployError) Unwrap() error {
	return e.Err
}
