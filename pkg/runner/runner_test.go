package runner

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/opera/pkg/adapters/chesscore"
	"github.com/aretw0/opera/pkg/broadcast"
	"github.com/aretw0/opera/pkg/domain"
	"github.com/aretw0/opera/pkg/engine"
	"github.com/aretw0/opera/pkg/uci"
)

func newEngine(t *testing.T) *engine.Engine {
	t.Helper()
	eng := engine.New(chesscore.New())
	require.NoError(t, eng.Initialize(context.Background()))
	t.Cleanup(eng.Close)
	return eng
}

func outputLines(buf *bytes.Buffer) []string {
	return strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
}

func TestRunner_EndOfInputShutsDownCleanly(t *testing.T) {
	eng := newEngine(t)
	var out bytes.Buffer
	r := New(eng, WithInput(strings.NewReader("uci\nisready\n")), WithOutput(&out))

	require.NoError(t, r.Run(context.Background()))

	lines := outputLines(&out)
	require.NotEmpty(t, lines)
	assert.Equal(t, "id name Opera", lines[0])
	assert.Equal(t, "uciok", lines[len(lines)-2])
	assert.Equal(t, "readyok", lines[len(lines)-1])
	assert.Equal(t, domain.StateStopping, eng.State())
	assert.Equal(t, uint64(2), r.Stats().CommandsProcessed)
}

func TestRunner_Quit(t *testing.T) {
	eng := newEngine(t)
	var out bytes.Buffer
	r := New(eng, WithInput(strings.NewReader("isready\nquit\nisready\n")), WithOutput(&out))

	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, []string{"readyok"}, outputLines(&out))
	assert.Equal(t, domain.StateStopping, eng.State())
}

func TestRunner_SearchIsAnsweredBeforeExit(t *testing.T) {
	eng := newEngine(t)
	var out bytes.Buffer
	input := "position fen 6k1/5ppp/8/8/8/8/5PPP/R5K1 w - - 0 1\ngo depth 2\n"
	r := New(eng, WithInput(strings.NewReader(input)), WithOutput(&out))

	require.NoError(t, r.Run(context.Background()))

	lines := outputLines(&out)
	assert.True(t, strings.HasPrefix(lines[len(lines)-1], "bestmove "), "last line %q", lines[len(lines)-1])
}

func TestRunner_InvalidInputDoesNotStopLoop(t *testing.T) {
	eng := newEngine(t)
	var out bytes.Buffer
	input := "bogus\nposition startpos moves e2e5\n\nisready\n"
	r := New(eng, WithInput(strings.NewReader(input)), WithOutput(&out))

	require.NoError(t, r.Run(context.Background()))

	lines := outputLines(&out)
	require.Len(t, lines, 3)
	assert.Equal(t, "info string ERROR: protocol error: Unknown command: 'bogus'", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "info string ERROR: move error: "), lines[1])
	assert.Equal(t, "readyok", lines[2])
}

func TestRunner_OversizedLine(t *testing.T) {
	eng := newEngine(t)
	var out bytes.Buffer
	input := strings.Repeat("a", 200) + "\nisready\n"
	r := New(eng,
		WithInput(strings.NewReader(input)),
		WithOutput(&out),
		WithInputBufferSize(64),
	)

	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, []string{
		"info string ERROR: resource exhausted (input): line exceeds 64 bytes",
		"readyok",
	}, outputLines(&out))
	assert.Equal(t, uint64(1), r.Stats().RejectedLines)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestRunner_WriteFailureIsFatal(t *testing.T) {
	eng := newEngine(t)
	r := New(eng, WithInput(strings.NewReader("isready\n")), WithOutput(failingWriter{}))

	err := r.Run(context.Background())
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindIO))
	assert.Contains(t, err.Error(), "broken pipe")
}

func TestRunner_ShutdownSignal(t *testing.T) {
	eng := newEngine(t)
	pr, pw := io.Pipe()
	t.Cleanup(func() { _ = pw.Close() })

	stop := make(chan struct{})
	var out bytes.Buffer
	r := New(eng, WithInput(pr), WithOutput(&out), WithShutdownSignal(stop))

	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(context.Background()) }()

	_, err := io.WriteString(pw, "isready\n")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return r.Stats().CommandsProcessed == 1 }, 5*time.Second, 5*time.Millisecond)

	close(stop)
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not stop")
	}
	assert.Equal(t, []string{"readyok"}, outputLines(&out))
}

// fakeDispatcher answers commands with scripted behavior.
type fakeDispatcher struct {
	responses *broadcast.Topic[string]
	process   func(ctx context.Context, line string) error

	mu       sync.Mutex
	reported []*domain.Error
}

func newFakeDispatcher(process func(ctx context.Context, line string) error) *fakeDispatcher {
	return &fakeDispatcher{responses: broadcast.New[string](16), process: process}
}

func (f *fakeDispatcher) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeDispatcher) ProcessCommand(ctx context.Context, line string) error {
	return f.process(ctx, line)
}

func (f *fakeDispatcher) Shutdown(context.Context) error { return nil }

func (f *fakeDispatcher) Subscribe() *broadcast.Subscription[string] {
	return f.responses.Subscribe()
}

func (f *fakeDispatcher) Report(_ context.Context, err error) {
	var de *domain.Error
	if errors.As(err, &de) {
		f.mu.Lock()
		f.reported = append(f.reported, de)
		f.mu.Unlock()
	}
	f.responses.Publish(uci.ErrorString{Message: err.Error()}.String())
}

func (f *fakeDispatcher) State() domain.EngineState { return domain.StateReady }

func TestRunner_DispatchTimeout(t *testing.T) {
	d := newFakeDispatcher(func(ctx context.Context, line string) error {
		if line == "slow" {
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	})
	var out bytes.Buffer
	r := New(d,
		WithInput(strings.NewReader("slow\nfast\n")),
		WithOutput(&out),
		WithTimeouts(Timeouts{Dispatch: 20 * time.Millisecond}),
	)

	require.NoError(t, r.Run(context.Background()))

	stats := r.Stats()
	assert.Equal(t, uint64(1), stats.Timeouts)
	assert.Equal(t, uint64(2), stats.CommandsProcessed)
	require.Len(t, d.reported, 1)
	assert.Equal(t, domain.KindTimeout, d.reported[0].Kind)
	assert.Equal(t, []string{"info string ERROR: timeout after 20ms: dispatch timed out (slow)"}, outputLines(&out))
}

func TestRunner_TerminateOnFatalError(t *testing.T) {
	fatal := domain.IOError(errors.New("core pipe closed"), true)
	d := newFakeDispatcher(func(context.Context, string) error { return fatal })
	r := New(d, WithInput(strings.NewReader("go\nisready\n")), WithOutput(io.Discard))

	err := r.Run(context.Background())
	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, uint64(1), r.Stats().CommandsProcessed)
}

type panickingReader struct{}

func (panickingReader) Read([]byte) (int, error) { panic("reader exploded") }

func TestRunner_InputPanicIsReported(t *testing.T) {
	d := newFakeDispatcher(func(context.Context, string) error { return nil })
	var out bytes.Buffer
	r := New(d, WithInput(panickingReader{}), WithOutput(&out))

	err := r.Run(context.Background())
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindIO))
	assert.Equal(t, []string{"info string ERROR: io error: input reader panicked: reader exploded"}, outputLines(&out))
}

func TestRunner_TickHook(t *testing.T) {
	d := newFakeDispatcher(func(context.Context, string) error { return nil })
	pr, pw := io.Pipe()
	t.Cleanup(func() { _ = pw.Close() })

	ticks := make(chan Stats, 1)
	r := New(d,
		WithInput(pr),
		WithOutput(io.Discard),
		WithTickInterval(10*time.Millisecond),
		WithMonitoring(true),
		WithTickHook(func(s Stats) {
			select {
			case ticks <- s:
			default:
			}
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()

	select {
	case s := <-ticks:
		assert.NotZero(t, s.PeakMemory)
		assert.Positive(t, s.Uptime)
	case <-time.After(5 * time.Second):
		t.Fatal("no tick received")
	}

	cancel()
	assert.NoError(t, <-errCh)
}

func TestReadLine(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantLine  string
		oversized bool
		wantErr   error
	}{
		{"short line", "isready\nuci\n", "isready\n", false, nil},
		{"final line without newline", "quit", "quit", false, io.EOF},
		{"oversized line", strings.Repeat("x", 40) + "\nuci\n", "", true, nil},
		{"oversized at eof", strings.Repeat("x", 40), "", true, io.EOF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := bufio.NewReaderSize(strings.NewReader(tt.input), 16)
			line, oversized, err := readLine(r)
			assert.Equal(t, tt.wantLine, line)
			assert.Equal(t, tt.oversized, oversized)
			assert.Equal(t, tt.wantErr, err)
		})
	}
}

func TestStatsTracker_RollingAverage(t *testing.T) {
	tr := newStatsTracker()
	for i := 0; i < avgWindow; i++ {
		tr.command(time.Millisecond)
	}
	assert.Equal(t, time.Millisecond, tr.snapshot().AvgCommandTime)

	for i := 0; i < avgWindow; i++ {
		tr.command(3 * time.Millisecond)
	}
	s := tr.snapshot()
	assert.Equal(t, 3*time.Millisecond, s.AvgCommandTime)
	assert.Equal(t, uint64(2*avgWindow), s.CommandsProcessed)
}
