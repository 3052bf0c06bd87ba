package domain

import (
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecoveryFor(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want RecoveryAction
	}{
		{KindProtocol, RecoveryContinueWithDefault},
		{KindEngine, RecoveryResetState},
		{KindPosition, RecoverySkip},
		{KindMove, RecoverySkip},
		{KindSearch, RecoveryResetState},
		{KindConfiguration, RecoveryContinueWithDefault},
		{KindIO, RecoveryRetryOnce},
		{KindFFI, RecoveryResetState},
		{KindTimeout, RecoveryContinue},
		{KindResource, RecoveryRetryOnce},
		{KindInternal, RecoveryContinue},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, RecoveryFor(tt.kind))
		})
	}
}

func TestError_FatalIOTerminates(t *testing.T) {
	err := IOError(io.ErrClosedPipe, true)
	assert.Equal(t, RecoveryTerminate, err.Recovery())

	err = IOError(io.ErrClosedPipe, false)
	assert.Equal(t, RecoveryRetryOnce, err.Recovery())
}

func TestError_Messages(t *testing.T) {
	assert.Equal(t, "protocol error: Unknown command: 'foo'", ProtocolError("Unknown command: '%s'", "foo").Error())
	assert.Equal(t, "timeout after 1000ms: dispatch timed out", TimeoutError("dispatch", time.Second).Error())
	assert.Equal(t, "resource exhausted (tokens): too many", ResourceError("tokens", "too many").Error())
	assert.Equal(t, "move error: bad (index 3)", MoveError("bad").WithDetails("index 3").Error())
}

func TestWrap(t *testing.T) {
	t.Run("plain error gets kind and op", func(t *testing.T) {
		base := errors.New("boom")
		err := Wrap(KindSearch, "search", base)
		require.NotNil(t, err)
		assert.Equal(t, KindSearch, err.Kind)
		assert.Equal(t, "search", err.Op)
		assert.ErrorIs(t, err, base)
	})

	t.Run("domain error keeps its kind", func(t *testing.T) {
		inner := PositionError("bad fen")
		err := Wrap(KindInternal, "position", fmt.Errorf("context: %w", inner))
		assert.Equal(t, KindPosition, err.Kind)
		assert.Equal(t, "position", err.Op)
	})

	t.Run("nil stays nil", func(t *testing.T) {
		assert.Nil(t, Wrap(KindIO, "read", nil))
	})
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindMove, KindOf(fmt.Errorf("wrapped: %w", MoveError("x"))))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.True(t, IsKind(ConfigurationError("x"), KindConfiguration))
	assert.False(t, IsKind(ConfigurationError("x"), KindProtocol))
}
