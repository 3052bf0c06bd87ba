package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/opera/pkg/domain"
)

func startLoop(t *testing.T, e *Engine) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- e.Run(ctx) }()
	t.Cleanup(cancel)
	return cancel, errCh
}

func TestEngine_RunProcessesInOrder(t *testing.T) {
	e, sub := newTestEngine(t, newMockCore(nil))
	_, errCh := startLoop(t, e)
	ctx := context.Background()

	require.NoError(t, e.ProcessCommand(ctx, "isready"))
	require.NoError(t, e.ProcessCommand(ctx, "xyzzy"))
	require.NoError(t, e.ProcessCommand(ctx, "isready"))

	assert.Equal(t, []string{
		"readyok",
		"info string ERROR: protocol error: Unknown command: 'xyzzy'",
		"readyok",
	}, drain(sub))

	require.NoError(t, e.ProcessCommand(ctx, "quit"))
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after quit")
	}

	<-e.Stopped()
	assert.ErrorIs(t, e.ProcessCommand(ctx, "isready"), ErrStopped)
}

func TestEngine_RunShutdown(t *testing.T) {
	core := newMockCore(func(m *MockCore) {
		blockingSearch(m, domainResult("e2e4"))
	})
	e, sub := newTestEngine(t, core)
	_, errCh := startLoop(t, e)
	ctx := context.Background()

	require.NoError(t, e.ProcessCommand(ctx, "go infinite"))
	require.NoError(t, e.Shutdown(ctx))

	assert.NoError(t, <-errCh)
	assert.Equal(t, domain.StateStopping, e.State())
	assert.Equal(t, "bestmove e2e4", waitFor(t, sub, "bestmove"))
}

func TestEngine_RunStopAndReset(t *testing.T) {
	core := newMockCore(func(m *MockCore) {
		blockingSearch(m, domainResult("e2e4"))
	})
	e, sub := newTestEngine(t, core)
	startLoop(t, e)
	ctx := context.Background()

	require.NoError(t, e.ProcessCommand(ctx, "go infinite"))
	require.NoError(t, e.StopSearch(ctx))
	assert.Equal(t, "bestmove e2e4", waitFor(t, sub, "bestmove"))
	assert.Equal(t, domain.StateReady, e.State())

	require.NoError(t, e.Reset(ctx))
	assert.Equal(t, domain.StateReady, e.State())
	core.AssertCalled(t, "ResetSearch")
}

func TestEngine_RunContextCancel(t *testing.T) {
	e, _ := newTestEngine(t, newMockCore(nil))
	cancel, errCh := startLoop(t, e)

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
}

func TestEngine_ProcessCommandDeadline(t *testing.T) {
	// No loop is running, so the request is never answered.
	e, _ := newTestEngine(t, newMockCore(nil))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := e.ProcessCommand(ctx, "isready")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
