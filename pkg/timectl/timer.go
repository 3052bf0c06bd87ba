package timectl

import "time"

// SearchTimer measures one search against its limits.
type SearchTimer struct {
	start  time.Time
	limits TimeLimits
	now    func() time.Time
}

// NewSearchTimer starts a timer now.
func NewSearchTimer(limits TimeLimits) *SearchTimer {
	return newTimer(limits, time.Now)
}

func newTimer(limits TimeLimits, now func() time.Time) *SearchTimer {
	return &SearchTimer{start: now(), limits: limits, now: now}
}

// Limits returns the limits the timer enforces.
func (t *SearchTimer) Limits() TimeLimits { return t.limits }

// Elapsed returns the time since the timer started.
func (t *SearchTimer) Elapsed() time.Duration {
	return t.now().Sub(t.start)
}

// SoftExceeded reports whether the search should wrap up.
func (t *SearchTimer) SoftExceeded() bool {
	return t.Elapsed() >= t.limits.soft
}

// HardExceeded reports whether the search must stop now.
func (t *SearchTimer) HardExceeded() bool {
	return t.Elapsed() >= t.limits.hard
}

// SoftRemaining returns the time left before the soft limit, never negative.
func (t *SearchTimer) SoftRemaining() time.Duration {
	return remaining(t.limits.soft, t.Elapsed())
}

// HardRemaining returns the time left before the hard limit, never negative.
func (t *SearchTimer) HardRemaining() time.Duration {
	return remaining(t.limits.hard, t.Elapsed())
}

// Rearm restarts the clock under new limits. Used when a ponder search
// turns into a timed one.
func (t *SearchTimer) Rearm(limits TimeLimits) {
	t.start = t.now()
	t.limits = limits
}

func remaining(limit, elapsed time.Duration) time.Duration {
	if elapsed >= limit {
		return 0
	}
	return limit - elapsed
}
