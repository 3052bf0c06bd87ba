package runner

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// SignalManager turns OS signals into a context, and covers the race on
// some terminals where Ctrl+C surfaces as a stdin error slightly before
// the signal itself is delivered.
type SignalManager struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// NewSignalManager creates a new manager and immediately starts listening for signals.
func NewSignalManager() *SignalManager {
	sm := &SignalManager{}
	sm.Reset()
	return sm
}

// Context returns the current signal context.
func (sm *SignalManager) Context() context.Context {
	return sm.ctx
}

// Done is closed when SIGINT or SIGTERM arrives, or after Stop.
func (sm *SignalManager) Done() <-chan struct{} {
	return sm.ctx.Done()
}

// Reset re-arms the signal listener.
func (sm *SignalManager) Reset() {
	if sm.cancel != nil {
		sm.cancel()
	}
	sm.ctx, sm.cancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// Stop permanently stops the signal listener.
func (sm *SignalManager) Stop() {
	if sm.cancel != nil {
		sm.cancel()
	}
}

// CheckRace waits briefly to see whether a signal follows an input error.
// It reports true when the error should be treated as an interruption.
func (sm *SignalManager) CheckRace() bool {
	if sm.ctx.Err() != nil {
		return true
	}
	select {
	case <-sm.ctx.Done():
		return true
	case <-time.After(100 * time.Millisecond):
		return false
	}
}
