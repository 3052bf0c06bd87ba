package engine

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/opera/pkg/broadcast"
	"github.com/aretw0/opera/pkg/domain"
	"github.com/aretw0/opera/pkg/ports"
	"github.com/aretw0/opera/pkg/timectl"
)

// MockCore simulates the engine core.
type MockCore struct {
	mock.Mock
}

func (m *MockCore) Reset() error               { return m.Called().Error(0) }
func (m *MockCore) SetFEN(fen string) error    { return m.Called(fen).Error(0) }
func (m *MockCore) MakeMove(move string) error { return m.Called(move).Error(0) }
func (m *MockCore) Stop()                      { m.Called() }
func (m *MockCore) ResetSearch() error         { return m.Called().Error(0) }
func (m *MockCore) SetHashSize(mb int) error   { return m.Called(mb).Error(0) }
func (m *MockCore) SetThreads(n int) error     { return m.Called(n).Error(0) }
func (m *MockCore) ClearHash() error           { return m.Called().Error(0) }
func (m *MockCore) IsSearching() bool          { return m.Called().Bool(0) }

func (m *MockCore) FEN() (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}

func (m *MockCore) IsValidMove(move string) (bool, error) {
	args := m.Called(move)
	return args.Bool(0), args.Error(1)
}

func (m *MockCore) IsInCheck() (bool, error) {
	args := m.Called()
	return args.Bool(0), args.Error(1)
}

func (m *MockCore) IsCheckmate() (bool, error) {
	args := m.Called()
	return args.Bool(0), args.Error(1)
}

func (m *MockCore) IsStalemate() (bool, error) {
	args := m.Called()
	return args.Bool(0), args.Error(1)
}

func (m *MockCore) PositionInfo() (timectl.PositionInfo, error) {
	args := m.Called()
	return args.Get(0).(timectl.PositionInfo), args.Error(1)
}

func (m *MockCore) Search(ctx context.Context, limits domain.SearchLimits, progress domain.ProgressFunc) (domain.SearchResult, error) {
	args := m.Called(ctx, limits, progress)
	return args.Get(0).(domain.SearchResult), args.Error(1)
}

var _ ports.EngineCore = (*MockCore)(nil)

// newMockCore registers the expectations of setup first so they win over
// the permissive defaults.
func newMockCore(setup func(m *MockCore)) *MockCore {
	m := new(MockCore)
	if setup != nil {
		setup(m)
	}
	m.On("SetHashSize", mock.Anything).Return(nil).Maybe()
	m.On("SetThreads", mock.Anything).Return(nil).Maybe()
	m.On("ClearHash").Return(nil).Maybe()
	m.On("ResetSearch").Return(nil).Maybe()
	m.On("Reset").Return(nil).Maybe()
	m.On("Stop").Return().Maybe()
	m.On("IsSearching").Return(false).Maybe()
	m.On("FEN").Return("rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1", nil).Maybe()
	m.On("PositionInfo").Return(timectl.PositionInfo{LegalMoves: 20, IsOpening: true, MoveNumber: 1}, nil).Maybe()
	return m
}

// blockingSearch makes Search wait for cancellation before returning result.
func blockingSearch(m *MockCore, result domain.SearchResult) {
	m.On("Search", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(result, nil)
}

func newTestEngine(t *testing.T, core ports.EngineCore, opts ...Option) (*Engine, *broadcast.Subscription[string]) {
	t.Helper()
	e := New(core, opts...)
	sub := e.Subscribe()
	require.NoError(t, e.Initialize(context.Background()))
	t.Cleanup(func() {
		e.stopActive(context.Background())
		e.Close()
	})
	return e, sub
}

// drain returns every line already published to sub.
func drain(sub *broadcast.Subscription[string]) []string {
	var out []string
	for {
		select {
		case line, ok := <-sub.C():
			if !ok {
				return out
			}
			out = append(out, line)
		default:
			return out
		}
	}
}

// waitFor blocks until a line starting with prefix arrives.
func waitFor(t *testing.T, sub *broadcast.Subscription[string], prefix string) string {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case line, ok := <-sub.C():
			require.True(t, ok, "subscription closed while waiting for %q", prefix)
			if strings.HasPrefix(line, prefix) {
				return line
			}
		case <-timeout:
			require.FailNow(t, "timed out waiting for "+prefix)
			return ""
		}
	}
}

func waitForState(t *testing.T, e *Engine, want domain.EngineState) {
	t.Helper()
	require.Eventually(t, func() bool { return e.State() == want },
		5*time.Second, 5*time.Millisecond, "state never became %s", want)
}
