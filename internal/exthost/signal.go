package exthost

import (
	"context"
	"sync"
)

// signal wakes waiters whenever the mirrored state changes. Replies from the
// main side can overtake the events they caused, so API calls that create or
// change documents and editors wait on it for the mirror to catch up.
type signal struct {
	mu sync.Mutex
	ch chan struct{}
}

func newSignal() *signal {
	return &signal{ch: make(chan struct{})}
}

func (s *signal) broadcast() {
	s.mu.Lock()
	close(s.ch)
	s.ch = make(chan struct{})
	s.mu.Unlock()
}

// wait blocks until cond holds. cond is checked again after every broadcast.
func (s *signal) wait(ctx context.Context, cond func() bool) error {
	for {
		s.mu.Lock()
		ch := s.ch
		s.mu.Unlock()
		if cond() {
			return nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
