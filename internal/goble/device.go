package goble

import (
	"context"
	"sync"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"go.uber.org/atomic"

	"github.com/srg/blelink/internal/groutine"
)

// gattClient is the part of ble.Client used by Device.
type gattClient interface {
	Addr() ble.Addr
	Name() string
	DiscoverProfile(force bool) (*ble.Profile, error)
	CancelConnection() error
}

// Device is a dialed peripheral. It implements lifecycle.Device.
//
// When the client exposes a Disconnected() channel, a monitor goroutine reports
// every link loss to the registered listeners. Otherwise the loss is reported
// by Disconnect itself.
type Device struct {
	client   gattClient
	name     string
	logger   *logrus.Logger
	monitors bool

	down *atomic.Bool

	mu        sync.Mutex
	nextID    uint64
	listeners *orderedmap.OrderedMap[uint64, func()]
}

// NewDevice wraps a connected client. name is used when the client reports none.
func NewDevice(client ble.Client, name string, logger *logrus.Logger) *Device {
	return newDevice(client, name, logger)
}

func newDevice(client gattClient, name string, logger *logrus.Logger) *Device {
	if logger == nil {
		logger = logrus.New()
	}
	d := &Device{
		client:    client,
		name:      name,
		logger:    logger,
		down:      atomic.NewBool(false),
		listeners: orderedmap.New[uint64, func()](),
	}

	if monitored, ok := client.(interface{ Disconnected() <-chan struct{} }); ok {
		d.monitors = true
		groutine.Go(context.Background(), "ble-connection-monitor", func(ctx context.Context) {
			<-monitored.Disconnected()
			d.logger.WithField("address", d.ID()).Warn("BLE stack reported disconnection")
			d.markDown()
		})
	} else {
		d.logger.Debug("Client does not support Disconnected() channel (non-Darwin platform?)")
	}
	return d
}

// ID returns the peripheral address.
func (d *Device) ID() string {
	return d.client.Addr().String()
}

func (d *Device) Name() string {
	if n := d.client.Name(); n != "" {
		return n
	}
	return d.name
}

func (d *Device) IsConnected() bool {
	return !d.down.Load()
}

// Disconnect cancels the connection.
func (d *Device) Disconnect() error {
	err := d.client.CancelConnection()
	if err != nil {
		d.logger.WithField("error", err).Warn("BLE device disconnected with errors")
		return NormalizeError(err)
	}
	d.logger.WithField("address", d.ID()).Info("BLE device disconnected successfully")
	if !d.monitors {
		d.markDown()
	}
	return nil
}

// OnDisconnected registers fn for link loss.
func (d *Device) OnDisconnected(fn func()) func() {
	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.listeners.Set(id, fn)
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		d.listeners.Delete(id)
		d.mu.Unlock()
	}
}

func (d *Device) discoverProfile() (*ble.Profile, error) {
	return d.client.DiscoverProfile(true)
}

// markDown flags the link as lost and notifies listeners once.
func (d *Device) markDown() {
	if !d.down.CompareAndSwap(false, true) {
		return
	}
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
