package processor

import (
	"errors"
	"fmt"
)

var (
	ErrMaxIterations       = errors.New("max iterations reached")
	ErrErrorBudgetExceeded = errors.New("iteration error budget exceeded")
	ErrErrorRateExceeded   = errors.New("iteration error rate exceeded")
)

// RunError reports a run aborted by one of the processor thresholds.
type RunError struct {
	Threshold error
	RunID     string
	Iteration int
	Detail    string
}

func (e *RunError) Error() string {
	msg := fmt.Sprintf("run %s aborted at iteration %d: %v", e.RunID, e.Iteration, e.Threshold)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

func (e *RunError) Unwrap() error {
	return e.Threshold
}
