package runner

import (
	"io"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Defaults for the loop timeouts.
const (
	DefaultDispatchTimeout = time.Second
	DefaultWriteTimeout    = 5 * time.Second
	DefaultShutdownTimeout = 3 * time.Second
	DefaultTickInterval    = time.Second
	// DefaultInputBufferSize is the read buffer of the stdin pump; longer
	// lines are discarded and reported.
	DefaultInputBufferSize = 8192
)

// Timeouts bounds the individual loop operations. A timeout cancels only
// the operation it wraps, never the loop.
type Timeouts struct {
	Dispatch time.Duration
	Write    time.Duration
	Shutdown time.Duration
}

// DefaultTimeouts returns the stock loop timeouts.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Dispatch: DefaultDispatchTimeout,
		Write:    DefaultWriteTimeout,
		Shutdown: DefaultShutdownTimeout,
	}
}

// Option defines a functional option for configuring the Runner.
type Option func(*Runner)

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithInput sets the command source. Defaults to os.Stdin.
func WithInput(in io.Reader) Option {
	return func(r *Runner) {
		r.input = in
	}
}

// WithOutput sets the response sink. Defaults to os.Stdout.
func WithOutput(out io.Writer) Option {
	return func(r *Runner) {
		r.output = out
	}
}

// WithTimeouts overrides the loop timeouts. Zero fields keep their default.
func WithTimeouts(t Timeouts) Option {
	return func(r *Runner) {
		if t.Dispatch > 0 {
			r.timeouts.Dispatch = t.Dispatch
		}
		if t.Write > 0 {
			r.timeouts.Write = t.Write
		}
		if t.Shutdown > 0 {
			r.timeouts.Shutdown = t.Shutdown
		}
	}
}

// WithInputBufferSize sets the longest line the pump accepts.
func WithInputBufferSize(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.bufferSize = n
		}
	}
}

// WithTickInterval sets the maintenance tick period.
func WithTickInterval(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.tick = d
		}
	}
}

// WithMonitoring enables memory sampling on each tick.
func WithMonitoring(on bool) Option {
	return func(r *Runner) {
		r.monitoring = on
	}
}

// WithTickHook registers a callback receiving the statistics on each tick.
func WithTickHook(fn func(Stats)) Option {
	return func(r *Runner) {
		r.onTick = fn
	}
}

// WithShutdownSignal adds a channel whose closing triggers a graceful
// shutdown, in addition to SIGINT and SIGTERM.
func WithShutdownSignal(ch <-chan struct{}) Option {
	return func(r *Runner) {
		r.shutdown = ch
	}
}

// WithWarnLimit throttles warnings about rejected input lines.
func WithWarnLimit(every time.Duration, burst int) Option {
	return func(r *Runner) {
		r.warn = rate.NewLimiter(rate.Every(every), burst)
	}
}
