package gps

import "sync"

// Throttle decides when a position sample is written to the durable store.
// Counters are process-local: with several gateway processes sharing one
// bus's traffic the persisted cadence is approximate.
type Throttle struct {
	mu     sync.Mutex
	counts map[string]int
	every  int
}

// NewThrottle creates a throttle that persists every n-th accepted sample
// per bus.
func NewThrottle(every int) *Throttle {
	if every <= 0 {
		every = 1
	}
	return &Throttle{
		counts: make(map[string]int),
		every:  every,
	}
}

// ShouldPersist increments the counter for busID and reports whether this
// sample should be written durably. The counter resets exactly when the
// threshold is reached.
func (t *Throttle) ShouldPersist(busID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.counts[busID]++
	if t.counts[busID] >= t.every {
		delete(t.counts, busID)
		return true
	}
	return false
}
