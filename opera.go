package opera

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/aretw0/opera/pkg/adapters/chesscore"
	"github.com/aretw0/opera/pkg/adapters/memory"
	"github.com/aretw0/opera/pkg/domain"
	"github.com/aretw0/opera/pkg/engine"
	"github.com/aretw0/opera/pkg/ports"
	"github.com/aretw0/opera/pkg/runner"
)

// Engine is the high-level entry point for the Opera library.
// It wires an engine core, the command dispatcher and the event loop.
type Engine struct {
	dispatcher *engine.Engine
	core       ports.EngineCore
	logger     *slog.Logger

	engineOpts []engine.Option
	runnerOpts []runner.Option

	mu     sync.Mutex
	runner *runner.Runner
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithCore replaces the default engine core.
func WithCore(core ports.EngineCore) Option {
	return func(e *Engine) {
		e.core = core
	}
}

// WithLogger sets a custom structured logger for the engine and the loop.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.engineOpts = append(e.engineOpts, engine.WithLifecycleHooks(hooks))
	}
}

// WithEngineOptions passes options through to the dispatcher.
func WithEngineOptions(opts ...engine.Option) Option {
	return func(e *Engine) {
		e.engineOpts = append(e.engineOpts, opts...)
	}
}

// WithRunnerOptions passes options through to the event loop.
func WithRunnerOptions(opts ...runner.Option) Option {
	return func(e *Engine) {
		e.runnerOpts = append(e.runnerOpts, opts...)
	}
}

// New builds an engine and moves it to Ready. Without WithCore, the
// built-in chess core with an in-memory analysis cache is used.
func New(ctx context.Context, opts ...Option) (*Engine, error) {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}

	if e.core == nil {
		e.core = chesscore.New(
			chesscore.WithCache(memory.NewCache(domain.DefaultEngineConfig().HashMB)),
			chesscore.WithLogger(e.logger),
		)
	}

	engineOpts := []engine.Option{
		engine.WithIdentification(engine.Identification{
			Name:    engine.DefaultIdentification().Name,
			Author:  engine.DefaultIdentification().Author,
			Version: strings.TrimSpace(Version),
		}),
	}
	if e.logger != nil {
		engineOpts = append(engineOpts, engine.WithLogger(e.logger))
	}
	e.dispatcher = engine.New(e.core, append(engineOpts, e.engineOpts...)...)

	if err := e.dispatcher.Initialize(ctx); err != nil {
		e.dispatcher.Close()
		return nil, err
	}
	return e, nil
}

// Run serves the protocol on in/out until quit, end of input, a signal or
// ctx ends. Only unrecoverable I/O failures are returned.
func (e *Engine) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	opts := []runner.Option{runner.WithInput(in), runner.WithOutput(out)}
	if e.logger != nil {
		opts = append(opts, runner.WithLogger(e.logger))
	}
	r := runner.New(e.dispatcher, append(opts, e.runnerOpts...)...)

	e.mu.Lock()
	e.runner = r
	e.mu.Unlock()

	return r.Run(ctx)
}

// Dispatcher exposes the command dispatcher, e.g. for diagnostics.
func (e *Engine) Dispatcher() *engine.Engine {
	return e.dispatcher
}

// LoopStats returns the counters of the current or last event loop.
func (e *Engine) LoopStats() runner.Stats {
	e.mu.Lock()
	r := e.runner
	e.mu.Unlock()
	if r == nil {
		return runner.Stats{}
	}
	return r.Stats()
}

// Close releases the dispatcher's subscriptions.
func (e *Engine) Close() {
	e.dispatcher.Close()
}
