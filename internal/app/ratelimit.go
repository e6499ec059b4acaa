package app

import (
	"sync"
	"time"
)

// AttemptLimiter tracks join attempts per source key in a sliding window.
// Stale keys are never evicted; accepted as an open scaling concern.
type AttemptLimiter struct {
	mu      sync.Mutex
	history map[string][]time.Time
	limit   int
	window  time.Duration

	now func() time.Time
}

func NewAttemptLimiter(limit int, window time.Duration) *AttemptLimiter {
	return &AttemptLimiter{
		history: make(map[string][]time.Time),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

// Attempt records a join attempt for key and reports whether it is within
// the limit. The attempt is recorded even when it is the one that trips
// the limit, so a burst never gets free retries.
func (l *AttemptLimiter) Attempt(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	windowStart := now.Add(-l.window)

	attempts := l.history[key]
	fresh := make([]time.Time, 0, len(attempts)+1)
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}
	fresh = append(fresh, now)
	l.history[key] = fresh

	return len(fresh) <= l.limit
}
