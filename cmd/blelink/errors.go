package main

import (
	"errors"
	"fmt"

	"github.com/srg/blelink/internal/goble"
	"github.com/srg/blelink/pkg/lifecycle"
)

// Command-level errors
var (
	// ErrRequestRejected indicates the device request failed and the machine
	// ended in Rejected.
	ErrRequestRejected = errors.New("device request rejected")

	// ErrConnectionLost indicates the link went down without being asked to.
	ErrConnectionLost = errors.New("connection lost")

	// ErrNoSelection indicates no peripheral matched the selection filters.
	ErrNoSelection = errors.New("no matching device found")
)

// FormatUserError adds a hint to errors a user can act on.
func FormatUserError(err error) string {
	switch {
	case errors.Is(err, goble.ErrBluetoothOff):
		return fmt.Sprintf("%s (enable Bluetooth and retry)", err)
	case errors.Is(err, ErrNoSelection):
		return fmt.Sprintf("%s (check --address, --name-prefix and --service)", err)
	case errors.Is(err, lifecycle.ErrMachineStopped):
		return "session ended before the command completed"
	default:
		return err.Error()
	}
}
