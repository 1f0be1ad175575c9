package testutils

import (
	"sync"

	"github.com/srg/blelink/pkg/lifecycle"
)

// BoundRecorder collects the bound events delivered to its observer.
type BoundRecorder[T any] struct {
	mu       sync.Mutex
	events   []lifecycle.BoundEvent[T]
	observer *lifecycle.Observer[T]
}

func NewBoundRecorder[T any]() *BoundRecorder[T] {
	r := &BoundRecorder[T]{}
	r.observer = lifecycle.NewObserver(func(ev lifecycle.BoundEvent[T]) {
		r.mu.Lock()
		r.events = append(r.events, ev)
		r.mu.Unlock()
	})
	return r
}

// Observer returns the recording observer. The same pointer is returned on
// every call so it can be unregistered.
func (r *BoundRecorder[T]) Observer() *lifecycle.Observer[T] {
	return r.observer
}

// Events returns a copy of the recorded events.
func (r *BoundRecorder[T]) Events() []lifecycle.BoundEvent[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]lifecycle.BoundEvent[T](nil), r.events...)
}

// Reset forgets recorded events.
func (r *BoundRecorder[T]) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}
