// Package event provides the typed, in-process event emitters each side uses
// to re-fire protocol events to local listeners.
package event

import (
	"sync"
)

// Disposable releases a registration.
type Disposable interface {
	Dispose()
}

// DisposableFunc adapts a function to Disposable. Dispose runs it at most once.
type DisposableFunc func()

// Dispose implements Disposable.
func (f DisposableFunc) Dispose() {
	if f != nil {
		f()
	}
}

// Once wraps fn so that repeated Dispose calls run it once.
func Once(fn func()) Disposable {
	var once sync.Once
	return DisposableFunc(func() { once.Do(fn) })
}

// Combine disposes all of ds in order.
func Combine(ds ...Disposable) Disposable {
	return Once(func() {
		for _, d := range ds {
			if d != nil {
				d.Dispose()
			}
		}
	})
}

type listener[T any] struct {
	id int
	fn func(T)
}

// Emitter delivers values of type T to subscribed listeners, synchronously
// and in subscription order.
type Emitter[T any] struct {
	mu        sync.RWMutex
	nextID    int
	listeners []listener[T]
}

// Subscribe registers fn and returns a Disposable that removes it.
func (e *Emitter[T]) Subscribe(fn func(T)) Disposable {
	e.mu.Lock()
	e.nextID++
	id := e.nextID
	e.listeners = append(e.listeners, listener[T]{id: id, fn: fn})
	e.mu.Unlock()

	return Once(func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		for i, l := range e.listeners {
			if l.id == id {
				e.listeners = append(e.listeners[:i:i], e.listeners[i+1:]...)
				return
			}
		}
	})
}

// Fire delivers v to every listener registered at the time of the call.
func (e *Emitter[T]) Fire(v T) {
	e.mu.RLock()
	snapshot := make([]listener[T], len(e.listeners))
	copy(snapshot, e.listeners)
	e.mu.RUnlock()

	for _, l := range snapshot {
		l.fn(v)
	}
}

// Len returns the number of listeners.
func (e *Emitter[T]) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.listeners)
}
