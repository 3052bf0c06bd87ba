package runner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSignalManager_Lifecycle(t *testing.T) {
	sm := NewSignalManager()
	defer sm.Stop()

	ctx1 := sm.Context()
	assert.NotNil(t, ctx1)
	assert.NoError(t, ctx1.Err())

	sm.Reset()
	ctx2 := sm.Context()
	assert.NotEqual(t, ctx1, ctx2, "Reset should generate a new context")
	assert.NoError(t, ctx2.Err())

	sm.Stop()
	assert.ErrorIs(t, ctx2.Err(), context.Canceled)
	select {
	case <-sm.Done():
	default:
		t.Fatal("Done should be closed after Stop")
	}
}

func TestSignalManager_CheckRace(t *testing.T) {
	sm := NewSignalManager()
	defer sm.Stop()

	start := time.Now()
	interrupted := sm.CheckRace()
	elapsed := time.Since(start)

	assert.False(t, interrupted)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, 500*time.Millisecond, "CheckRace took too long")

	sm.Stop()
	assert.True(t, sm.CheckRace())
}
