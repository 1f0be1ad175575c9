package testutils

import (
	"context"
	"time"

	"go.uber.org/atomic"

	"github.com/srg/blelink/pkg/lifecycle"
)

type deviceResult struct {
	dev lifecycle.Device
	err error
}

// PendingRequest is an outstanding RequestDevice call waiting to be resolved.
type PendingRequest struct {
	result chan deviceResult
}

// Resolve completes the call with dev. A nil dev means no selection.
func (p *PendingRequest) Resolve(dev lifecycle.Device) {
	p.result <- deviceResult{dev: dev}
}

// Fail completes the call with err.
func (p *PendingRequest) Fail(err error) {
	p.result <- deviceResult{err: err}
}

// ControlledRequester is a lifecycle.DeviceRequester whose calls stay pending
// until the test resolves them.
type ControlledRequester struct {
	calls chan *PendingRequest
	count *atomic.Int64
}

func NewControlledRequester() *ControlledRequester {
	return &ControlledRequester{
		calls: make(chan *PendingRequest, 16),
		count: atomic.NewInt64(0),
	}
}

func (r *ControlledRequester) RequestDevice(ctx context.Context) (lifecycle.Device, error) {
	p := &PendingRequest{result: make(chan deviceResult, 1)}
	r.count.Inc()
	r.calls <- p
	select {
	case res := <-p.result:
		return res.dev, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Next waits for the next call. It returns nil on timeout.
func (r *ControlledRequester) Next(timeout time.Duration) *PendingRequest {
	select {
	case p := <-r.calls:
		return p
	case <-time.After(timeout):
		return nil
	}
}

// Calls returns how many times RequestDevice was invoked.
func (r *ControlledRequester) Calls() int {
	return int(r.count.Load())
}

type servicesResult struct {
	svc lifecycle.Services
	err error
}

// PendingRetrieval is an outstanding RetrieveServices call.
type PendingRetrieval struct {
	Device lifecycle.Device
	result chan servicesResult
}

func (p *PendingRetrieval) Resolve(svc lifecycle.Services) {
	p.result <- servicesResult{svc: svc}
}

func (p *PendingRetrieval) Fail(err error) {
	p.result <- servicesResult{err: err}
}

// ControlledRetriever is a lifecycle.ServiceRetriever whose calls stay pending
// until the test resolves them.
type ControlledRetriever struct {
	calls chan *PendingRetrieval
	count *atomic.Int64
}

func NewControlledRetriever() *ControlledRetriever {
	return &ControlledRetriever{
		calls: make(chan *PendingRetrieval, 16),
		count: atomic.NewInt64(0),
	}
}

func (r *ControlledRetriever) RetrieveServices(ctx context.Context, dev lifecycle.Device) (lifecycle.Services, error) {
	p := &PendingRetrieval{Device: dev, result: make(chan servicesResult, 1)}
	r.count.Inc()
	r.calls <- p
	select {
	case res := <-p.result:
		return res.svc, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *ControlledRetriever) Next(timeout time.Duration) *PendingRetrieval {
	select {
	case p := <-r.calls:
		return p
	case <-time.After(timeout):
		return nil
	}
}

func (r *ControlledRetriever) Calls() int {
	return int(r.count.Load())
}
