package engine

import (
	"sync"

	"github.com/hazyhaar/linkguard/overlay"
)

// RunState holds the counters of one active feature. Each activation
// starts a new epoch; results computed under an older epoch are dropped.
type RunState struct {
	// Indicator is the feature's status overlay; nil disables it.
	Indicator *overlay.Indicator

	mu        sync.Mutex
	processed int
	malicious int
	epoch     uint64
}

// NewRunState creates zeroed counters bound to ind.
func NewRunState(ind *overlay.Indicator) *RunState {
	return &RunState{Indicator: ind}
}

// Counts returns the processed and malicious totals.
func (s *RunState) Counts() (processed, malicious int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processed, s.malicious
}

// Epoch returns the current activation epoch.
func (s *RunState) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// Reset zeroes the counters and starts a new epoch.
func (s *RunState) Reset() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed, s.malicious = 0, 0
	s.epoch++
	return s.epoch
}

func (s *RunState) set(epoch uint64, processed, malicious int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return false
	}
	s.processed, s.malicious = processed, malicious
	return true
}

func (s *RunState) add(epoch uint64, processed, malicious int) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return 0, false
	}
	s.processed += processed
	s.malicious += malicious
	return s.malicious, true
}
