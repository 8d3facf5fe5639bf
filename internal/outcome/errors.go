package outcome

import (
	"errors"
	"fmt"
)

// Step names one side effect of a resolution
type Step string

const (
	StepCallLog  Step = "call_log"
	StepOrder    Step = "order_creation"
	StepSchedule Step = "schedule_callback"
)

// ErrValidation is wrapped by every local rejection; nothing was sent
var ErrValidation = errors.New("invalid resolution")

var (
	ErrInvalidOutcome   = fmt.Errorf("%w: unknown outcome", ErrValidation)
	ErrMissingReason    = fmt.Errorf("%w: cancellation reason is required", ErrValidation)
	ErrMissingLogistics = fmt.Errorf("%w: city and address are required to place an order", ErrValidation)
)

var (
	// ErrCallLogFailed means nothing was applied
	ErrCallLogFailed = errors.New("call log was not saved")

	// ErrOrderNotCreated means the call is logged as confirmed but has no order
	ErrOrderNotCreated = errors.New("call logged, order not created")

	ErrScheduleFailed = errors.New("callback was not scheduled")
)

// StepError reports which side effect failed. It matches both the step's
// sentinel and the underlying cause with errors.Is.
type StepError struct {
	Step     Step
	Sentinel error
	Err      error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Sentinel, e.Err)
}

func (e *StepError) Unwrap() []error {
	return []error{e.Sentinel, e.Err}
}

// Partial reports whether earlier steps were applied before the failure
func (e *StepError) Partial() bool {
	return e.Step == StepOrder
}

// FailedStep extracts the failed step from err, if any
func FailedStep(err error) (Step, bool) {
	var se *StepError
	if errors.As(err, &se) {
		return se.Step, true
	}
	return "", false
}
