package router

import (
	"sync"
	"sync/atomic"
)

// FailureTracker keeps per-backend consecutive failure counts. It is the
// only state shared across in-flight requests. Each backend owns an
// independent atomic counter, so updates for one backend never contend
// with another's.
type FailureTracker struct {
	mu     sync.RWMutex
	counts map[string]*atomic.Uint32
}

// NewFailureTracker creates an empty tracker.
func NewFailureTracker() *FailureTracker {
	return &FailureTracker{counts: make(map[string]*atomic.Uint32)}
}

// MarkFailure records one more consecutive failure for a backend.
func (t *FailureTracker) MarkFailure(name string) {
	t.counter(name).Add(1)
}

// MarkSuccess clears a backend's failure count.
func (t *FailureTracker) MarkSuccess(name string) {
	t.counter(name).Store(0)
}

// Count returns a backend's current consecutive failure count.
func (t *FailureTracker) Count(name string) uint32 {
	t.mu.RLock()
	c, ok := t.counts[name]
	t.mu.RUnlock()
	if !ok {
		return 0
	}
	return c.Load()
}

func (t *FailureTracker) counter(name string) *atomic.Uint32 {
	t.mu.RLock()
	c, ok := t.counts[name]
	t.mu.RUnlock()
	if ok {
		return c
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.counts[name]; ok {
		return c
	}
	c = new(atomic.Uint32)
	t.counts[name] = c
	return c
}
