package app

import (
	"sync"
	"time"

	"huddle/internal/core"
)

// Limiter gates inbound push-channel messages per connection. It is an
// interface so a multi-instance deployment can back it with a shared
// counter store without touching call sites.
type Limiter interface {
	Allow(sid core.SessionID) bool
	Forget(sid core.SessionID)
}

// SlidingWindowLimiter allows at most limit messages per rolling
// interval per connection. Exceeding the budget is a soft throttle;
// the connection stays bound.
type SlidingWindowLimiter struct {
	mu       sync.Mutex
	history  map[core.SessionID][]time.Time
	limit    int
	interval time.Duration
	now      func() time.Time
}

func NewSlidingWindowLimiter(limit int, interval time.Duration) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		history:  make(map[core.SessionID][]time.Time),
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

func (l *SlidingWindowLimiter) Allow(sid core.SessionID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	windowStart := now.Add(-l.interval)

	attempts := l.history[sid]
	fresh := make([]time.Time, 0, len(attempts))
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}

	if len(fresh) >= l.limit {
		l.history[sid] = fresh
		return false
	}

	fresh = append(fresh, now)
	l.history[sid] = fresh
	return true
}

func (l *SlidingWindowLimiter) Forget(sid core.SessionID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.history, sid)
}
