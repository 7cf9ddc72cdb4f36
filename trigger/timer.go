package trigger

import (
	"sync"
	"time"
)

// AfterFunc schedules f after d and returns a function that cancels it.
type AfterFunc func(d time.Duration, f func()) (stop func() bool)

func systemAfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// slot holds at most one pending callback. Scheduling replaces the
// previous one; a callback that fires after being replaced does nothing.
type slot struct {
	after AfterFunc

	mu   sync.Mutex
	gen  uint64
	stop func() bool
}

func (s *slot) schedule(d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	gen := s.gen
	if s.stop != nil {
		s.stop()
	}
	s.stop = s.after(d, func() {
		s.mu.Lock()
		if s.gen != gen {
			s.mu.Unlock()
			return
		}
		s.stop = nil
		s.mu.Unlock()
		fn()
	})
}

func (s *slot) cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	if s.stop != nil {
		s.stop()
		s.stop = nil
	}
}

func (s *slot) pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stop != nil
}
