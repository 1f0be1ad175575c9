package goble

import (
	"context"

	"github.com/go-ble/ble"
)

// Adapter is the part of a go-ble host device used to find and dial peripherals.
// ble.Device satisfies it.
type Adapter interface {
	Scan(ctx context.Context, allowDup bool, h ble.AdvHandler) error
	Dial(ctx context.Context, a ble.Addr) (ble.Client, error)
}

// DeviceFactory creates the host adapter (can be overridden in tests)
var DeviceFactory = func() (Adapter, error) {
	return newPlatformDevice()
}
