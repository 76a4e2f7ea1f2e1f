package task

import (
	"context"
	"sync"
)

// Signal is the pause gate shared between a scheduler and one worker.
type Signal struct {
	mu     sync.Mutex
	paused bool
	// resumed is closed while the task is running and replaced by an open
	// channel on Pause.
	resumed chan struct{}
}

func newSignal() *Signal {
	ch := make(chan struct{})
	close(ch)
	return &Signal{resumed: ch}
}

// Paused reports whether the task is paused.
func (s *Signal) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Wait blocks while the task is paused. It returns true when the worker may
// continue and false once ctx is done.
func (s *Signal) Wait(ctx context.Context) bool {
	for {
		s.mu.Lock()
		paused, ch := s.paused, s.resumed
		s.mu.Unlock()

		if !paused {
			return ctx.Err() == nil
		}

		select {
		case <-ch:
		case <-ctx.Done():
			return false
		}
	}
}

func (s *Signal) pause() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paused {
		return false
	}
	s.paused = true
	s.resumed = make(chan struct{})
	return true
}

func (s *Signal) resume() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.paused {
		return false
	}
	s.paused = false
	close(s.resumed)
	return true
}
