package lifecycle

import "context"

// Device is a handle to a selected peripheral.
type Device interface {
	// ID returns a stable identifier, usually the peripheral address.
	ID() string
	// Name returns the peripheral's display name, may be empty.
	Name() string
	// IsConnected reports whether the low-level link is still up.
	IsConnected() bool
	// Disconnect requests termination of the low-level link.
	Disconnect() error
	// OnDisconnected registers fn to be called when the link drops without
	// being requested. The returned function removes the registration.
	OnDisconnected(fn func()) (unsubscribe func())
}

// Services is the capability set retrieved for a held Device.
type Services interface {
	// UUIDs lists the retrieved service UUIDs.
	UUIDs() []string
}

// DeviceRequester selects a peripheral. It returns (nil, nil) when the user
// made no selection.
type DeviceRequester interface {
	RequestDevice(ctx context.Context) (Device, error)
}

// ServiceRetriever enumerates the services of dev.
type ServiceRetriever interface {
	RetrieveServices(ctx context.Context, dev Device) (Services, error)
}

// RequestDeviceFunc adapts a function to DeviceRequester.
type RequestDeviceFunc func(ctx context.Context) (Device, error)

func (f RequestDeviceFunc) RequestDevice(ctx context.Context) (Device, error) {
	return f(ctx)
}

// RetrieveServicesFunc adapts a function to ServiceRetriever.
type RetrieveServicesFunc func(ctx context.Context, dev Device) (Services, error)

func (f RetrieveServicesFunc) RetrieveServices(ctx context.Context, dev Device) (Services, error) {
	return f(ctx, dev)
}
