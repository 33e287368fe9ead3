package service

import (
	"maps"
	"slices"
	"sync"
)

// ObserverRegistry holds callbacks keyed by subscription handle. Notify works
// on a copy of the registered callbacks, so observers may subscribe or
// unsubscribe from inside a callback.
type ObserverRegistry[T any] struct {
	mu        sync.Mutex
	next      uint64
	observers map[uint64]func(T)
}

func NewObserverRegistry[T any]() *ObserverRegistry[T] {
	return &ObserverRegistry[T]{
		observers: make(map[uint64]func(T)),
	}
}

// Subscribe registers fn and returns its unsubscribe function, which can be
// called more than once.
func (r *ObserverRegistry[T]) Subscribe(fn func(T)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	handle := r.next
	r.observers[handle] = fn
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.observers, handle)
	}
}

// Notify calls every observer registered when the call started, in
// subscription order.
func (r *ObserverRegistry[T]) Notify(value T) {
	r.mu.Lock()
	handles := slices.Sorted(maps.Keys(r.observers))
	callbacks := make([]func(T), 0, len(handles))
	for _, h := range handles {
		callbacks = append(callbacks, r.observers[h])
	}
	r.mu.Unlock()

	for _, fn := range callbacks {
		fn(value)
	}
}

func (r *ObserverRegistry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.observers)
}

func (r *ObserverRegistry[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.observers)
}
