package testutils

import (
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// FakeDevice is an in-memory lifecycle.Device. It starts connected.
type FakeDevice struct {
	id   string
	name string

	mu               sync.Mutex
	dropOnDisconnect bool
	disconnectErr    error
	connected        bool
	disconnectCalls  int
	nextListener     int
	listeners        *orderedmap.OrderedMap[int, func()]
}

func NewFakeDevice(id, name string) *FakeDevice {
	return &FakeDevice{
		id:        id,
		name:      name,
		connected: true,
		listeners: orderedmap.New[int, func()](),
	}
}

func (d *FakeDevice) ID() string   { return d.id }
func (d *FakeDevice) Name() string { return d.name }

func (d *FakeDevice) IsConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

// SetConnected changes the link state without notifying listeners.
func (d *FakeDevice) SetConnected(connected bool) {
	d.mu.Lock()
	d.connected = connected
	d.mu.Unlock()
}

func (d *FakeDevice) Disconnect() error {
	d.mu.Lock()
	d.disconnectCalls++
	d.connected = false
	drop := d.dropOnDisconnect
	err := d.disconnectErr
	d.mu.Unlock()

	if drop {
		d.fire()
	}
	return err
}

// DropLinkOnDisconnect makes Disconnect fire the disconnect listeners
// synchronously, the way some backends report a central-initiated drop.
func (d *FakeDevice) DropLinkOnDisconnect() {
	d.mu.Lock()
	d.dropOnDisconnect = true
	d.mu.Unlock()
}

// FailDisconnect makes Disconnect return err.
func (d *FakeDevice) FailDisconnect(err error) {
	d.mu.Lock()
	d.disconnectErr = err
	d.mu.Unlock()
}

// DisconnectCalls returns how many times Disconnect was called.
func (d *FakeDevice) DisconnectCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.disconnectCalls
}

func (d *FakeDevice) OnDisconnected(fn func()) func() {
	d.mu.Lock()
	d.nextListener++
	key := d.nextListener
	d.listeners.Set(key, fn)
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		d.listeners.Delete(key)
		d.mu.Unlock()
	}
}

// ListenerCount returns the number of registered disconnect listeners.
func (d *FakeDevice) ListenerCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.listeners.Len()
}

// DropConnection simulates an unsolicited link loss.
func (d *FakeDevice) DropConnection() {
	d.SetConnected(false)
	d.fire()
}

func (d *FakeDevice) fire() {
	d.mu.Lock()
	fns := make([]func(), 0, d.listeners.Len())
	for pair := d.listeners.Oldest(); pair != nil; pair = pair.Next() {
		fns = append(fns, pair.Value)
	}
	d.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// FakeServices is a fixed lifecycle.Services.
type FakeServices struct {
	List []string
}

func NewFakeServices(uuids ...string) *FakeServices {
	return &FakeServices{List: uuids}
}

func (s *FakeServices) UUIDs() []string {
	return s.List
}
