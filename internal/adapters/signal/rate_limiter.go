package signal

import "time"

// joinLimiter is a sliding-window limiter for join attempts on a single
// connection. Only the read pump touches it, so it carries no lock.
type joinLimiter struct {
	history  []time.Time
	limit    int
	interval time.Duration
}

func newJoinLimiter(limit int, interval time.Duration) *joinLimiter {
	if limit <= 0 {
		limit = 8
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &joinLimiter{limit: limit, interval: interval}
}

func (l *joinLimiter) allow(now time.Time) bool {
	windowStart := now.Add(-l.interval)

	fresh := l.history[:0]
	for _, t := range l.history {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}

	if len(fresh) >= l.limit {
		l.history = fresh
		return false
	}

	l.history = append(fresh, now)
	return true
}
