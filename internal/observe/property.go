// Package observe provides the observable-cell primitives used throughout
// the engine/session/provider packages: Property[T] (a synchronized value
// with change notification) and Signal[T] (a multicast emission channel).
// Both return a Subscription handle whose Close detaches the callback,
// matching the scoped-connection model described in spec.md §3/§9.
package observe

import (
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"
)

// Subscription is a handle returned by Subscribe. Close detaches the
// callback; it is safe to call from any goroutine and safe to call more
// than once.
type Subscription interface {
	Close()
}

type subHandle struct {
	id     int64
	remove func(int64)
	once   sync.Once
}

func (h *subHandle) Close() {
	h.once.Do(func() {
		h.remove(h.id)
	})
}

// Property is a single-writer, multi-reader synchronized value cell.
// Setting a value equal to the current one (per the supplied equality
// function) does not fire subscribers, matching spec.md §3's
// equality-guarded semantics.
type Property[T any] struct {
	mu     sync.RWMutex
	value  T
	equal  func(a, b T) bool
	subs   *xsync.Map[int64, func(T)]
	nextID atomic.Int64
}

// NewProperty builds a Property seeded with initial, using equal to guard
// redundant writes. Pass nil for equal to always notify on Set.
func NewProperty[T any](initial T, equal func(a, b T) bool) *Property[T] {
	return &Property[T]{
		value: initial,
		equal: equal,
		subs:  xsync.NewMap[int64, func(T)](),
	}
}

// Get returns the current value.
func (p *Property[T]) Get() T {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.value
}

// Set stores a new value. If it differs from the current value (per the
// Property's equality function), every subscriber is invoked synchronously
// on the caller's goroutine, in no particular order.
func (p *Property[T]) Set(v T) {
	p.mu.Lock()
	if p.equal != nil && p.equal(p.value, v) {
		p.mu.Unlock()
		return
	}
	p.value = v
	p.mu.Unlock()

	p.subs.Range(func(_ int64, fn func(T)) bool {
		fn(v)
		return true
	})
}

// Subscribe registers fn to be called on every future change. It does not
// fire immediately with the current value — callers that need the current
// value should call Get first.
func (p *Property[T]) Subscribe(fn func(T)) Subscription {
	id := p.nextID.Add(1)
	p.subs.Store(id, fn)
	return &subHandle{id: id, remove: func(i int64) { p.subs.Delete(i) }}
}

// Signal is a multicast emission channel with no retained value: each
// Emit call is delivered to every currently-subscribed callback and
// nothing else. Used for provider update streams where the history does
// not matter, only the live feed.
type Signal[T any] struct {
	subs   *xsync.Map[int64, func(T)]
	nextID atomic.Int64
}

// NewSignal builds an empty Signal.
func NewSignal[T any]() *Signal[T] {
	return &Signal[T]{subs: xsync.NewMap[int64, func(T)]()}
}

// Subscribe registers fn to be called on every Emit until the returned
// Subscription is closed.
func (s *Signal[T]) Subscribe(fn func(T)) Subscription {
	id := s.nextID.Add(1)
	s.subs.Store(id, fn)
	return &subHandle{id: id, remove: func(i int64) { s.subs.Delete(i) }}
}

// Emit delivers v to every current subscriber, synchronously, in no
// particular cross-subscriber order (spec.md §5: "across sessions, no
// ordering guarantee").
func (s *Signal[T]) Emit(v T) {
	s.subs.Range(func(_ int64, fn func(T)) bool {
		fn(v)
		return true
	})
}

// SubscriberCount reports the number of active subscriptions — used by
// tests verifying that closing a Subscription detaches it.
func (s *Signal[T]) SubscriberCount() int {
	return s.subs.Size()
}
