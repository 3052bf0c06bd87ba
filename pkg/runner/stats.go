package runner

import (
	"runtime"
	"sync"
	"time"
)

const avgWindow = 64

// Stats is a snapshot of the loop counters. They are kept for
// observability only; nothing in the loop depends on them.
type Stats struct {
	CommandsProcessed uint64
	ResponsesSent     uint64
	Timeouts          uint64
	RejectedLines     uint64
	SuppressedWarns   uint64
	LaggedResponses   uint64
	// AvgCommandTime is the mean dispatch time over the last commands.
	AvgCommandTime time.Duration
	Uptime         time.Duration
	// PeakMemory is the highest heap size sampled, in bytes.
	PeakMemory uint64
}

type statsTracker struct {
	mu      sync.Mutex
	started time.Time
	s       Stats
	window  [avgWindow]time.Duration
	next    int
	filled  int
	sum     time.Duration
}

func newStatsTracker() *statsTracker {
	return &statsTracker{started: time.Now()}
}

func (t *statsTracker) command(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.s.CommandsProcessed++
	t.sum -= t.window[t.next]
	t.window[t.next] = d
	t.sum += d
	t.next = (t.next + 1) % avgWindow
	if t.filled < avgWindow {
		t.filled++
	}
}

func (t *statsTracker) update(fn func(*Stats)) {
	t.mu.Lock()
	fn(&t.s)
	t.mu.Unlock()
}

// sampleMemory records the current heap size if it is a new peak.
func (t *statsTracker) sampleMemory() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	t.update(func(s *Stats) {
		s.PeakMemory = max(s.PeakMemory, m.HeapAlloc)
	})
}

func (t *statsTracker) snapshot() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.s
	s.Uptime = time.Since(t.started)
	if t.filled > 0 {
		s.AvgCommandTime = t.sum / time.Duration(t.filled)
	}
	return s
}
