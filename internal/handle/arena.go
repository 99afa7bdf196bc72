// Package handle allocates the numeric handles that name registrations
// (providers, decoration types, watchers, status bar items) across the
// process boundary.
//
// Handles come from a slot arena. A slot that has been released stays
// released until it is reused, and reuse bumps the slot generation, so a
// handle that outlived its registration never resolves to a newer one.
package handle

import (
	"errors"
	"fmt"
	"sync"
)

// Handle is the wire representation of an arena slot: the low bits hold the
// slot index, the high bits the slot generation.
type Handle int

const (
	indexBits = 20
	indexMask = 1<<indexBits - 1
	maxSlots  = 1 << indexBits
)

var (
	// ErrUnknownHandle is returned for handles that were never allocated.
	ErrUnknownHandle = errors.New("unknown handle")
	// ErrReleased is returned for handles whose registration has been released.
	ErrReleased = errors.New("handle released")
	// ErrExhausted is returned when every slot of the arena is live.
	ErrExhausted = errors.New("handle arena exhausted")
)

func (h Handle) index() int     { return int(h) & indexMask }
func (h Handle) generation() int { return int(h) >> indexBits }

// String formats the handle as index@generation.
func (h Handle) String() string {
	return fmt.Sprintf("%d@%d", h.index(), h.generation())
}

type slotState uint8

const (
	slotLive slotState = iota + 1
	slotReleased
)

type slot[T any] struct {
	gen   int
	state slotState
	value T
}

// Arena maps handles to values. It is safe for concurrent use.
type Arena[T any] struct {
	mu    sync.Mutex
	slots []slot[T]
	free  []int
	live  int
}

// New creates an empty arena.
func New[T any]() *Arena[T] {
	return &Arena[T]{}
}

// Alloc stores v in a free slot and returns its handle. Fresh slots are
// handed out in increasing order, released slots are reused oldest first.
func (a *Arena[T]) Alloc(v T) (Handle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var idx int
	if len(a.free) > 0 {
		idx = a.free[0]
		a.free = a.free[1:]
		a.slots[idx].gen++
	} else {
		if len(a.slots) >= maxSlots {
			return 0, ErrExhausted
		}
		idx = len(a.slots)
		a.slots = append(a.slots, slot[T]{})
	}

	s := &a.slots[idx]
	s.state = slotLive
	s.value = v
	a.live++

	return Handle(s.gen<<indexBits | idx), nil
}

// MustAlloc is Alloc for callers that treat exhaustion as fatal.
func (a *Arena[T]) MustAlloc(v T) Handle {
	h, err := a.Alloc(v)
	if err != nil {
		panic(err)
	}
	return h
}

// Get returns the value stored for h.
func (a *Arena[T]) Get(h Handle) (T, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, err := a.lookup(h)
	if err != nil {
		var zero T
		return zero, err
	}
	return s.value, nil
}

// Release invalidates h and returns the value it held.
func (a *Arena[T]) Release(h Handle) (T, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var zero T
	s, err := a.lookup(h)
	if err != nil {
		return zero, err
	}

	v := s.value
	s.value = zero
	s.state = slotReleased
	a.live--
	a.free = append(a.free, h.index())
	return v, nil
}

// Len returns the number of live handles.
func (a *Arena[T]) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.live
}

// Each calls fn for every live handle in slot order. fn must not call back
// into the arena.
func (a *Arena[T]) Each(fn func(Handle, T)) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for idx, s := range a.slots {
		if s.state == slotLive {
			fn(Handle(s.gen<<indexBits|idx), s.value)
		}
	}
}

func (a *Arena[T]) lookup(h Handle) (*slot[T], error) {
	if h < 0 || h.index() >= len(a.slots) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownHandle, int(h))
	}
	s := &a.slots[h.index()]
	if s.gen != h.generation() || s.state != slotLive {
		return nil, fmt.Errorf("%w: %d", ErrReleased, int(h))
	}
	return s, nil
}
