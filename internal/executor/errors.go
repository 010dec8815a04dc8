package executor

import (
	"errors"
	"fmt"
)

var (
	// ErrShutDown is returned for units submitted after ShutDown started.
	ErrShutDown = errors.New("executor is not accepting new units: shut down")

	// ErrClosed is returned for units aborted or submitted after Close.
	ErrClosed = errors.New("executor closed")
)

// TaskError records the failure of one unit. The first TaskError becomes
// the executor's sticky status.
type TaskError struct {
	// TaskID is the id of the failed task, or 0 if the unit failed
	// Prepare and was never admitted.
	TaskID uint64

	// Unit is the unit's String().
	Unit string

	// Err is the error the unit reported.
	Err error
}

// Error implements the error interface.
func (e *TaskError) Error() string {
	if e.TaskID == 0 {
		return fmt.Sprintf("prepare %s: %v", e.Unit, e.Err)
	}
	return fmt.Sprintf("task %d (%s): %v", e.TaskID, e.Unit, e.Err)
}

// Unwrap returns the unit's error.
func (e *TaskError) Unwrap() error {
	return e.Err
}

// IsTaskError returns true if err is or wraps a TaskError.
// Uses errors.As to handle wrapped errors.
func IsTaskError(err error) bool {
	var te *TaskError
	return errors.As(err, &te)
}
