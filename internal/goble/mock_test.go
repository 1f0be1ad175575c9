package goble

import (
	"context"
	"sync"

	"github.com/go-ble/ble"
	"github.com/stretchr/testify/mock"
)

// mockClient mocks the parts of ble.Client the package calls.
type mockClient struct {
	ble.Client
	mock.Mock
	disconnected chan struct{}
}

func newMockClient(addr, name string) *mockClient {
	c := &mockClient{disconnected: make(chan struct{})}
	c.On("Addr").Return(ble.NewAddr(addr)).Maybe()
	c.On("Name").Return(name).Maybe()
	return c
}

func (c *mockClient) Addr() ble.Addr {
	return c.Called().Get(0).(ble.Addr)
}

func (c *mockClient) Name() string {
	return c.Called().String(0)
}

func (c *mockClient) DiscoverProfile(force bool) (*ble.Profile, error) {
	args := c.Called(force)
	p, _ := args.Get(0).(*ble.Profile)
	return p, args.Error(1)
}

func (c *mockClient) CancelConnection() error {
	return c.Called().Error(0)
}

func (c *mockClient) Disconnected() <-chan struct{} {
	return c.disconnected
}

// drop closes the Disconnected channel the way the BLE stack does.
func (c *mockClient) drop() {
	close(c.disconnected)
}

// plainClient has no Disconnected channel.
type plainClient struct {
	addr      string
	cancelErr error
}

func (c *plainClient) Addr() ble.Addr { return ble.NewAddr(c.addr) }
func (c *plainClient) Name() string   { return "" }

func (c *plainClient) DiscoverProfile(bool) (*ble.Profile, error) { return &ble.Profile{}, nil }

func (c *plainClient) CancelConnection() error { return c.cancelErr }

// fakeAdapter replays advertisements on Scan and records dialed addresses.
type fakeAdapter struct {
	advs    []ble.Advertisement
	scanErr error
	dialErr error
	client  func(addr string) ble.Client

	mu     sync.Mutex
	dialed []string
}

func (a *fakeAdapter) Scan(ctx context.Context, allowDup bool, h ble.AdvHandler) error {
	for _, adv := range a.advs {
		h(adv)
	}
	if a.scanErr != nil {
		return a.scanErr
	}
	<-ctx.Done()
	return ctx.Err()
}

func (a *fakeAdapter) Dial(ctx context.Context, addr ble.Addr) (ble.Client, error) {
	a.mu.Lock()
	a.dialed = append(a.dialed, addr.String())
	a.mu.Unlock()
	if a.dialErr != nil {
		return nil, a.dialErr
	}
	return a.client(addr.String()), nil
}

func (a *fakeAdapter) dialedAddrs() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.dialed...)
}
