// Package state holds the client's observable stores: the authenticated
// Session, the active Conversation, and persisted Preferences.
package state

import "sync"

// Observable is a mutex-guarded value with change subscribers. Subscribers
// are called outside the lock, one update at a time and in update order,
// and may themselves call Update.
type Observable[T any] struct {
	mu        sync.Mutex
	state     T
	subs      map[int]func(T)
	nextID    int
	pending   []T
	notifying bool
	closed    bool

	clone func(T) T
}

func NewObservable[T any](initial T) *Observable[T] {
	return &Observable[T]{
		state: initial,
		subs:  make(map[int]func(T)),
	}
}

// NewCopyingObservable is NewObservable for values holding slices or
// pointers. clone runs on every value handed to readers and subscribers, so
// none of them share memory with the stored value.
func NewCopyingObservable[T any](initial T, clone func(T) T) *Observable[T] {
	o := NewObservable(initial)
	o.clone = clone
	return o
}

// Get returns a snapshot of the current value.
func (o *Observable[T]) Get() T {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.copyOf(o.state)
}

func (o *Observable[T]) copyOf(v T) T {
	if o.clone == nil {
		return v
	}
	return o.clone(v)
}

// Update applies fn under the lock and notifies subscribers.
func (o *Observable[T]) Update(fn func(*T)) T {
	o.mu.Lock()
	fn(&o.state)
	return o.publishLocked()
}

// TryUpdate applies fn under the lock. Subscribers are notified only when
// fn returns true; fn must leave the value untouched when returning false.
func (o *Observable[T]) TryUpdate(fn func(*T) bool) bool {
	o.mu.Lock()
	if !fn(&o.state) {
		o.mu.Unlock()
		return false
	}
	o.publishLocked()
	return true
}

// publishLocked queues the current value and drains the queue unless
// another goroutine is already doing so. It releases o.mu.
func (o *Observable[T]) publishLocked() T {
	snapshot := o.copyOf(o.state)
	if o.closed {
		o.mu.Unlock()
		return snapshot
	}

	o.pending = append(o.pending, snapshot)
	if o.notifying {
		o.mu.Unlock()
		return snapshot
	}

	o.notifying = true
	for len(o.pending) > 0 {
		batch := o.pending
		o.pending = nil
		subs := make([]func(T), 0, len(o.subs))
		for id := 0; id < o.nextID; id++ {
			if fn, ok := o.subs[id]; ok {
				subs = append(subs, fn)
			}
		}
		o.mu.Unlock()

		for _, s := range batch {
			for _, fn := range subs {
				fn(o.copyOf(s))
			}
		}

		o.mu.Lock()
	}
	o.notifying = false
	o.mu.Unlock()
	return snapshot
}

// Subscribe registers fn for every later change and returns a function that
// removes it. Unsubscribing twice is harmless.
func (o *Observable[T]) Subscribe(fn func(T)) func() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return func() {}
	}

	id := o.nextID
	o.nextID++
	o.subs[id] = fn

	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		delete(o.subs, id)
	}
}

// Close drops every subscriber. The value stays readable.
func (o *Observable[T]) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	o.pending = nil
	o.subs = make(map[int]func(T))
}
