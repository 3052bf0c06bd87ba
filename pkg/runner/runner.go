package runner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"time"

	"golang.org/x/time/rate"

	"github.com/aretw0/opera/pkg/broadcast"
	"github.com/aretw0/opera/pkg/domain"
)

// Dispatcher is the command side of the engine as seen by the loop.
type Dispatcher interface {
	Run(ctx context.Context) error
	ProcessCommand(ctx context.Context, line string) error
	Shutdown(ctx context.Context) error
	Subscribe() *broadcast.Subscription[string]
	Report(ctx context.Context, err error)
	State() domain.EngineState
}

// Runner handles the event loop of the engine using the provided IO.
type Runner struct {
	engine Dispatcher
	input  io.Reader
	output io.Writer
	logger *slog.Logger

	timeouts   Timeouts
	bufferSize int
	tick       time.Duration
	monitoring bool
	onTick     func(Stats)
	shutdown   <-chan struct{}
	warn       *rate.Limiter

	stats *statsTracker
}

// New creates a Runner reading os.Stdin and writing os.Stdout by default.
func New(engine Dispatcher, opts ...Option) *Runner {
	r := &Runner{
		engine:     engine,
		input:      os.Stdin,
		output:     os.Stdout,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		timeouts:   DefaultTimeouts(),
		bufferSize: DefaultInputBufferSize,
		tick:       DefaultTickInterval,
		warn:       rate.NewLimiter(rate.Every(time.Second), 5),
		stats:      newStatsTracker(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Stats returns a snapshot of the loop counters.
func (r *Runner) Stats() Stats {
	return r.stats.snapshot()
}

// Run executes the loop until quit, end of input, a shutdown signal or a
// fatal I/O error. Only the last one is returned as an error.
func (r *Runner) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	responses := r.engine.Subscribe()
	defer responses.Close()

	engineDone := make(chan error, 1)
	go func() { engineDone <- r.engine.Run(ctx) }()

	signals := NewSignalManager()
	defer signals.Stop()

	lines := pump(ctx, r.input, r.bufferSize)
	writer := newResponseWriter(r.output, r.timeouts.Write)

	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()

	r.logger.Debug("Event loop started")
	var lagged uint64

	for {
		// Cases are listed in priority order; select itself is fair.
		select {
		case in, ok := <-lines:
			if !ok {
				return r.drain(ctx, responses, writer, "end of input")
			}
			if in.err != nil {
				if signals.CheckRace() {
					return r.drain(ctx, responses, writer, "interrupted")
				}
				err := domain.IOError(in.err, true).WithOp("read")
				r.logger.Error("Failed to read input", "error", err)
				r.engine.Report(ctx, err)
				_ = r.drain(ctx, responses, writer, "input error")
				return err
			}
			if err := r.handleLine(ctx, in); err != nil {
				_ = r.drain(ctx, responses, writer, "unrecoverable error")
				return err
			}
			if r.engine.State() == domain.StateStopping {
				return r.drain(ctx, responses, writer, "quit")
			}

		case line, ok := <-responses.C():
			if !ok {
				return writer.Flush()
			}
			if err := r.write(ctx, writer, line); err != nil {
				return err
			}

		case <-signals.Done():
			return r.drain(ctx, responses, writer, "signal")

		case <-r.shutdown:
			return r.drain(ctx, responses, writer, "shutdown requested")

		case err := <-engineDone:
			if err != nil && !errors.Is(err, context.Canceled) {
				r.logger.Error("Engine loop failed", "error", err)
			}
			return r.drain(ctx, responses, writer, "engine stopped")

		case <-ctx.Done():
			return r.drain(ctx, responses, writer, "context cancelled")

		case <-ticker.C:
			lagged = r.maintain(responses, lagged)
		}
	}
}

func (r *Runner) handleLine(ctx context.Context, in inputResult) error {
	if in.oversized {
		r.reject(ctx, domain.ResourceError("input", "line exceeds %d bytes", r.bufferSize).WithOp("read"))
		return nil
	}

	line, err := SanitizeInput(in.text)
	if err != nil {
		r.reject(ctx, domain.Wrap(domain.KindProtocol, "sanitize", err))
		return nil
	}
	if line == "" {
		return nil
	}

	start := time.Now()
	dctx, cancel := context.WithTimeout(ctx, r.timeouts.Dispatch)
	defer cancel()

	err = r.engine.ProcessCommand(dctx, line)
	r.stats.command(time.Since(start))

	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		r.stats.update(func(s *Stats) { s.Timeouts++ })
		r.engine.Report(ctx, domain.TimeoutError("dispatch", r.timeouts.Dispatch).WithDetails(line))
		return nil
	case errors.Is(err, context.Canceled):
		return nil
	}

	var de *domain.Error
	if errors.As(err, &de) && de.Recovery() == domain.RecoveryTerminate {
		return de
	}
	r.logger.Debug("Command failed", "error", err)
	return nil
}

// reject reports an input line refused before dispatch. Warnings are
// throttled so that hostile input cannot flood the log.
func (r *Runner) reject(ctx context.Context, err *domain.Error) {
	r.stats.update(func(s *Stats) { s.RejectedLines++ })
	if r.warn.Allow() {
		r.logger.Warn("Rejected input line", "error", err)
	} else {
		r.stats.update(func(s *Stats) { s.SuppressedWarns++ })
	}
	r.engine.Report(ctx, err)
}

func (r *Runner) write(ctx context.Context, w *responseWriter, line string) error {
	err := w.WriteLine(ctx, line)
	if err == nil {
		r.stats.update(func(s *Stats) { s.ResponsesSent++ })
		return nil
	}
	if domain.IsKind(err, domain.KindTimeout) {
		r.stats.update(func(s *Stats) { s.Timeouts++ })
		r.logger.Warn("Response write timed out", "line", line)
		return nil
	}
	r.logger.Error("Failed to write response", "error", err)
	return err
}

func (r *Runner) maintain(responses *broadcast.Subscription[string], lagged uint64) uint64 {
	if r.monitoring {
		r.stats.sampleMemory()
	}
	if n := responses.Lagged(); n > lagged {
		r.logger.Warn("Responses dropped for slow output", "dropped", n-lagged)
		lagged = n
		r.stats.update(func(s *Stats) { s.LaggedResponses = n })
	}
	snapshot := r.stats.snapshot()
	if r.onTick != nil {
		r.onTick(snapshot)
	}
	return lagged
}

// drain shuts the engine down, writes whatever responses are still queued
// within the shutdown timeout and flushes.
func (r *Runner) drain(ctx context.Context, responses *broadcast.Subscription[string], w *responseWriter, reason string) error {
	r.logger.Info("Shutting down", "reason", reason)

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeouts.Shutdown)
	defer cancel()

	if err := r.engine.Shutdown(sctx); err != nil {
		r.logger.Debug("Engine shutdown", "error", err)
	}

	for {
		select {
		case line, ok := <-responses.C():
			if !ok {
				return r.finish(w)
			}
			if err := r.write(sctx, w, line); err != nil {
				return err
			}
		case <-sctx.Done():
			r.logger.Warn("Shutdown grace period elapsed with responses pending")
			return r.finish(w)
		default:
			return r.finish(w)
		}
	}
}

func (r *Runner) finish(w *responseWriter) error {
	if r.monitoring {
		r.stats.sampleMemory()
	}
	s := r.stats.snapshot()
	r.logger.Info("Event loop finished",
		"commands", s.CommandsProcessed,
		"responses", s.ResponsesSent,
		"timeouts", s.Timeouts,
		"rejected", s.RejectedLines,
		"avg_command_ms", float64(s.AvgCommandTime.Microseconds())/1000,
		"uptime", s.Uptime.Round(time.Millisecond).String(),
		"peak_memory_bytes", s.PeakMemory)
	return w.Flush()
}
