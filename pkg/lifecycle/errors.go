package lifecycle

import (
	"errors"
	"fmt"
)

// Operation names carried by OperationError.
const (
	OpRequestDevice    = "request device"
	OpRetrieveServices = "retrieve services"
)

// OperationError is returned when one of the external operations fails.
type OperationError struct {
	Op  string
	Err error
}

func (e *OperationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message())
}

// Message returns the text of the underlying failure.
func (e *OperationError) Message() string {
	if e == nil || e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

func wrapOperation(op string, err error) error {
	if err == nil {
		return nil
	}
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return err
	}
	return &OperationError{Op: op, Err: err}
}

var (
	// ErrNoDevice is reported when services are retrieved while no device is held.
	ErrNoDevice = errors.New("no device held")

	// ErrUnconfigured is reported when a Connection has no requester or retriever.
	ErrUnconfigured = errors.New("operation not configured")

	// ErrMachineStopped is returned by Send when the event loop is not running.
	ErrMachineStopped = errors.New("machine is not running")

	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("machine already started")

	// ErrInternalTrigger is returned when a caller sends a trigger reserved to the machine.
	ErrInternalTrigger = errors.New("trigger is internal to the machine")
)
