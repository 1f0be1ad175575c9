// Package ringchan provides a bounded channel that never blocks producers.
package ringchan

import "go.uber.org/atomic"

// RingChannel is a buffered channel with overwrite-oldest semantics. When the
// buffer is full, Send discards the oldest element to make room.
//
// Send and Close must not be called concurrently; a single producer owns the
// write side. Readers use C() like any other channel and range over it until
// Close.
//
//	rc := ringchan.New[int](3)
//	for i := 0; i < 10; i++ {
//	    rc.Send(i)
//	}
//	rc.Close()
//	for v := range rc.C() {
//	    fmt.Println(v) // 7, 8, 9
//	}
type RingChannel[T any] struct {
	ch      chan T
	metrics metrics
}

// New creates a RingChannel with the given capacity.
func New[T any](capacity int) *RingChannel[T] {
	if capacity <= 0 {
		panic("ringchan: capacity must be > 0")
	}
	return &RingChannel[T]{ch: make(chan T, capacity)}
}

// C returns the receive side.
func (rc *RingChannel[T]) C() <-chan T {
	return rc.ch
}

// Send inserts v, dropping the oldest element when the buffer is full.
// It reports whether an element was dropped.
func (rc *RingChannel[T]) Send(v T) bool {
	dropped := false
	for {
		select {
		case rc.ch <- v:
			rc.metrics.written.Inc()
			return dropped
		default:
		}
		// A reader may have drained the buffer in between; retry the send then.
		select {
		case <-rc.ch:
			rc.metrics.overwritten.Inc()
			dropped = true
		default:
		}
	}
}

// Len returns the number of buffered elements.
func (rc *RingChannel[T]) Len() int {
	return len(rc.ch)
}

// Cap returns the buffer capacity.
func (rc *RingChannel[T]) Cap() int {
	return cap(rc.ch)
}

// Close closes the receive side. Send panics afterwards.
func (rc *RingChannel[T]) Close() {
	close(rc.ch)
}

// Metrics is a snapshot of channel counters.
type Metrics struct {
	Written     int64
	Overwritten int64
}

type metrics struct {
	written     atomic.Int64
	overwritten atomic.Int64
}

// Metrics returns the current counters.
func (rc *RingChannel[T]) Metrics() Metrics {
	return Metrics{
		Written:     rc.metrics.written.Load(),
		Overwritten: rc.metrics.overwritten.Load(),
	}
}
