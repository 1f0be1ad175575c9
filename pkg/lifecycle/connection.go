package lifecycle

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// ConnectionOptions configures a Connection.
type ConnectionOptions struct {
	// Name labels the connection in logs.
	Name string
	// OnDisconnected is invoked when the held device reports an unsolicited
	// disconnect. Nil installs the default callback, which only logs.
	OnDisconnected func()
}

// Connection owns the currently held Device and Services and notifies bound
// observers when either changes.
//
// Thread-safety: accessors and observer registration are safe for concurrent
// use, including from inside observer callbacks. The mutating operations
// (RequestDevice, ResetDevice, RetrieveServices, ResetServices, Purge) must be
// serialized by the caller; Machine does so on its event loop.
type Connection struct {
	name      string
	requester DeviceRequester
	retriever ServiceRetriever
	logger    *logrus.Logger

	mu              sync.Mutex
	device          Device
	services        Services
	unsubscribeLost func()
	onDisconnected  func()

	deviceObservers  *observerList[Device]
	serviceObservers *observerList[Services]
}

// NewConnection creates a Connection backed by the given external operations.
func NewConnection(requester DeviceRequester, retriever ServiceRetriever, opts *ConnectionOptions, logger *logrus.Logger) *Connection {
	if logger == nil {
		logger = logrus.New()
	}
	if opts == nil {
		opts = &ConnectionOptions{}
	}

	c := &Connection{
		name:             opts.Name,
		requester:        requester,
		retriever:        retriever,
		logger:           logger,
		deviceObservers:  newObserverList[Device](),
		serviceObservers: newObserverList[Services](),
	}
	c.SetDisconnectedCallback(opts.OnDisconnected)
	return c
}

// Name returns the connection label.
func (c *Connection) Name() string {
	return c.name
}

// Device returns the held device or nil.
func (c *Connection) Device() Device {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.device
}

// Services returns the held services or nil.
func (c *Connection) Services() Services {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.services
}

// SetDisconnectedCallback installs cb as the unsolicited-disconnect callback.
// Nil restores the default callback.
func (c *Connection) SetDisconnectedCallback(cb func()) {
	if cb == nil {
		cb = c.missingDisconnectedCallback
	}
	c.mu.Lock()
	c.onDisconnected = cb
	c.mu.Unlock()
}

func (c *Connection) missingDisconnectedCallback() {
	c.logger.WithField("connection", c.name).Warn("missing disconnected callback")
}

// handleLost is subscribed to every held device and forwards to the current callback.
func (c *Connection) handleLost() {
	c.mu.Lock()
	cb := c.onDisconnected
	c.mu.Unlock()
	cb()
}

// RequestDevice runs the external device request and replaces the held device
// with its result. A request that resolves with no selection clears the device.
// Failures are returned as *OperationError and leave the held device untouched.
func (c *Connection) RequestDevice(ctx context.Context) error {
	dev, err := c.fetchDevice(ctx)
	if err != nil {
		return err
	}
	c.replaceDevice(dev)
	return nil
}

func (c *Connection) fetchDevice(ctx context.Context) (Device, error) {
	if c.requester == nil {
		return nil, &OperationError{Op: OpRequestDevice, Err: ErrUnconfigured}
	}
	dev, err := c.requester.RequestDevice(ctx)
	if err != nil {
		return nil, wrapOperation(OpRequestDevice, err)
	}
	return dev, nil
}

// ResetDevice clears the services, then the device.
func (c *Connection) ResetDevice() {
	c.replaceServices(nil)
	c.replaceDevice(nil)
}

// RetrieveServices runs the external service retrieval for the held device
// and replaces the held services on success.
func (c *Connection) RetrieveServices(ctx context.Context) error {
	svc, err := c.fetchServices(ctx)
	if err != nil {
		return err
	}
	c.replaceServices(svc)
	return nil
}

func (c *Connection) fetchServices(ctx context.Context) (Services, error) {
	dev := c.Device()
	if dev == nil {
		return nil, &OperationError{Op: OpRetrieveServices, Err: ErrNoDevice}
	}
	if c.retriever == nil {
		return nil, &OperationError{Op: OpRetrieveServices, Err: ErrUnconfigured}
	}
	svc, err := c.retriever.RetrieveServices(ctx, dev)
	if err != nil {
		return nil, wrapOperation(OpRetrieveServices, err)
	}
	return svc, nil
}

// ResetServices clears the held services.
func (c *Connection) ResetServices() {
	c.replaceServices(nil)
}

// DisconnectGattServer asks the held device to drop its link. Nothing happens
// when no device is held or the link is already down.
func (c *Connection) DisconnectGattServer() {
	dev := c.Device()
	if dev == nil {
		c.logger.WithField("connection", c.name).Warn("missing device connection")
		return
	}
	if !dev.IsConnected() {
		c.logger.WithFields(logrus.Fields{
			"connection": c.name,
			"device":     dev.ID(),
		}).Info("device has already been disconnected")
		return
	}
	if err := dev.Disconnect(); err != nil {
		c.logger.WithFields(logrus.Fields{
			"connection": c.name,
			"device":     dev.ID(),
			"error":      err,
		}).Warn("failed to disconnect device")
	}
}

// RegisterDeviceObserver adds o and immediately binds it to the held device, if any.
// Registering the same observer twice has no effect.
func (c *Connection) RegisterDeviceObserver(o *Observer[Device]) {
	if o == nil || !c.deviceObservers.add(o) {
		return
	}
	if dev := c.Device(); dev != nil {
		o.notify(BoundEvent[Device]{Target: dev, Binding: true})
	}
}

// UnregisterDeviceObserver removes o, unbinding it from the held device first.
func (c *Connection) UnregisterDeviceObserver(o *Observer[Device]) {
	if o == nil || !c.deviceObservers.remove(o) {
		return
	}
	if dev := c.Device(); dev != nil {
		o.notify(BoundEvent[Device]{Target: dev, Binding: false})
	}
}

// RegisterServicesObserver adds o and immediately binds it to the held services, if any.
func (c *Connection) RegisterServicesObserver(o *Observer[Services]) {
	if o == nil || !c.serviceObservers.add(o) {
		return
	}
	if svc := c.Services(); svc != nil {
		o.notify(BoundEvent[Services]{Target: svc, Binding: true})
	}
}

// UnregisterServicesObserver removes o, unbinding it from the held services first.
func (c *Connection) UnregisterServicesObserver(o *Observer[Services]) {
	if o == nil || !c.serviceObservers.remove(o) {
		return
	}
	if svc := c.Services(); svc != nil {
		o.notify(BoundEvent[Services]{Target: svc, Binding: false})
	}
}

// Purge clears services and device, restores the default disconnect callback
// and drops every observer. Dropped observers receive no further events.
func (c *Connection) Purge() {
	c.ResetServices()
	c.ResetDevice()
	c.SetDisconnectedCallback(nil)
	c.logger.WithFields(logrus.Fields{
		"connection":        c.name,
		"device_observers":  c.deviceObservers.len(),
		"service_observers": c.serviceObservers.len(),
	}).Debug("purging connection observers")
	c.deviceObservers.clear()
	c.serviceObservers.clear()
}

// replaceDevice unbinds the old device, moves the disconnect listener and binds next.
func (c *Connection) replaceDevice(next Device) {
	c.notifyDevice(false)

	c.mu.Lock()
	unsubscribe := c.unsubscribeLost
	c.unsubscribeLost = nil
	c.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}

	c.mu.Lock()
	prev := c.device
	c.device = next
	c.mu.Unlock()

	var subscription func()
	if next != nil {
		subscription = next.OnDisconnected(c.handleLost)
	}
	c.mu.Lock()
	c.unsubscribeLost = subscription
	c.mu.Unlock()

	if prev != nil || next != nil {
		c.logger.WithFields(logrus.Fields{
			"connection": c.name,
			"previous":   deviceID(prev),
			"device":     deviceID(next),
		}).Debug("device replaced")
	}

	c.notifyDevice(true)
}

func (c *Connection) replaceServices(next Services) {
	c.notifyServices(false)

	c.mu.Lock()
	c.services = next
	c.mu.Unlock()

	c.notifyServices(true)
}

func (c *Connection) notifyDevice(binding bool) {
	dev := c.Device()
	if dev == nil {
		return
	}
	c.deviceObservers.notifyAll(BoundEvent[Device]{Target: dev, Binding: binding})
}

func (c *Connection) notifyServices(binding bool) {
	svc := c.Services()
	if svc == nil {
		return
	}
	c.serviceObservers.notifyAll(BoundEvent[Services]{Target: svc, Binding: binding})
}

func deviceID(d Device) string {
	if d == nil {
		return ""
	}
	return d.ID()
}
