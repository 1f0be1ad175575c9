package lifecycle

import (
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// BoundEvent is delivered to observers when a target changes. Binding is true
// when Target became active and false when it is about to become inactive.
type BoundEvent[T any] struct {
	Target  T
	Binding bool
}

// Observer wraps a bound callback. Observers are compared by identity, so keep
// the pointer returned by NewObserver to unregister it later.
type Observer[T any] struct {
	fn func(BoundEvent[T])
}

// NewObserver boxes fn into an Observer.
func NewObserver[T any](fn func(BoundEvent[T])) *Observer[T] {
	return &Observer[T]{fn: fn}
}

func (o *Observer[T]) notify(ev BoundEvent[T]) {
	if o == nil || o.fn == nil {
		return
	}
	o.fn(ev)
}

// observerList keeps observers in registration order.
type observerList[T any] struct {
	mu      sync.Mutex
	entries *orderedmap.OrderedMap[*Observer[T], struct{}]
}

func newObserverList[T any]() *observerList[T] {
	return &observerList[T]{entries: orderedmap.New[*Observer[T], struct{}]()}
}

// add returns false if o is already registered.
func (l *observerList[T]) add(o *Observer[T]) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.entries.Get(o); ok {
		return false
	}
	l.entries.Set(o, struct{}{})
	return true
}

// remove returns false if o was not registered.
func (l *observerList[T]) remove(o *Observer[T]) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.entries.Delete(o)
	return ok
}

func (l *observerList[T]) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.entries.Len()
}

func (l *observerList[T]) clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = orderedmap.New[*Observer[T], struct{}]()
}

// snapshot copies the observers so callbacks may register or unregister while
// a notification is being dispatched.
func (l *observerList[T]) snapshot() []*Observer[T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Observer[T], 0, l.entries.Len())
	for pair := l.entries.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}

func (l *observerList[T]) notifyAll(ev BoundEvent[T]) {
	for _, o := range l.snapshot() {
		o.notify(ev)
	}
}
