package opera_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/opera"
	"github.com/aretw0/opera/pkg/adapters/chesscore"
	"github.com/aretw0/opera/pkg/domain"
	"github.com/aretw0/opera/pkg/engine"
	"github.com/aretw0/opera/pkg/runner"
)

func TestNew_Defaults(t *testing.T) {
	eng, err := opera.New(context.Background())
	require.NoError(t, err)
	t.Cleanup(eng.Close)

	d := eng.Dispatcher()
	assert.Equal(t, domain.StateReady, d.State())
	assert.Equal(t, strings.TrimSpace(opera.Version), d.Identification().Version)
	assert.Equal(t, runner.Stats{}, eng.LoopStats())
}

func TestEngine_RunSession(t *testing.T) {
	var commands []string
	eng, err := opera.New(context.Background(),
		opera.WithLifecycleHooks(domain.LifecycleHooks{
			OnCommand: func(_ context.Context, e *domain.CommandEvent) { commands = append(commands, e.Command) },
		}),
		opera.WithEngineOptions(engine.WithCacheBackend("memory")),
	)
	require.NoError(t, err)
	t.Cleanup(eng.Close)

	script := "uci\nsetoption name Hash value 8\nposition startpos moves e2e4\nisready\nquit\n"
	var out strings.Builder
	require.NoError(t, eng.Run(context.Background(), strings.NewReader(script), &out))

	assert.Contains(t, out.String(), "option name CacheBackend type string default memory")
	assert.Contains(t, out.String(), "readyok\n")
	assert.Equal(t, []string{"uci", "setoption", "position", "isready", "quit"}, commands)
	assert.Equal(t, 8, eng.Dispatcher().Config().HashMB)
	assert.Equal(t, []string{"e2e4"}, eng.Dispatcher().Position().Moves)
	assert.Equal(t, uint64(5), eng.LoopStats().CommandsProcessed)
}

type failingCore struct {
	*chesscore.Core
}

func (failingCore) SetHashSize(int) error { return errors.New("no memory") }

func TestNew_InitializeFailure(t *testing.T) {
	_, err := opera.New(context.Background(), opera.WithCore(failingCore{chesscore.New()}))
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindFFI))
}

type panickingCore struct {
	*chesscore.Core
}

func (panickingCore) ClearHash() error { panic("boom in core") }

func TestEngine_RunSurvivesCorePanic(t *testing.T) {
	eng, err := opera.New(context.Background(), opera.WithCore(panickingCore{chesscore.New()}))
	require.NoError(t, err)
	t.Cleanup(eng.Close)

	var out strings.Builder
	require.NoError(t, eng.Run(context.Background(), strings.NewReader("ucinewgame\nisready\n"), &out))

	assert.Equal(t, "info string ERROR: internal error: internal fault: boom in core\nreadyok\n", out.String())
}
