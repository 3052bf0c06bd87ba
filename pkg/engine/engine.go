package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/aretw0/opera/pkg/broadcast"
	"github.com/aretw0/opera/pkg/domain"
	"github.com/aretw0/opera/pkg/ports"
	"github.com/aretw0/opera/pkg/state"
	"github.com/aretw0/opera/pkg/timectl"
	"github.com/aretw0/opera/pkg/uci"
)

const (
	// DefaultResponseCapacity is how many lines a slow subscriber may fall
	// behind before it starts losing them.
	DefaultResponseCapacity = 64
	// DefaultStopTimeout bounds how long "stop" waits for the core.
	DefaultStopTimeout = time.Second
	// DefaultParseTimeout bounds sanitizing and parsing one line.
	DefaultParseTimeout = 100 * time.Millisecond
	requestQueueSize   = 64
)

// Identification is announced in reply to "uci".
type Identification struct {
	Name    string
	Author  string
	Version string
}

// DefaultIdentification returns the engine's own identity.
func DefaultIdentification() Identification {
	return Identification{Name: "Opera", Author: "Opera Team"}
}

// Engine coordinates the parser, the state machine and the engine core.
type Engine struct {
	parser  *uci.Parser
	machine *state.Machine
	core    ports.EngineCore
	policy  timectl.Policy
	id      Identification

	responses *broadcast.Topic[string]
	requests  chan request

	logger       *slog.Logger
	hooks        domain.LifecycleHooks
	cacheBackend string
	stopTimeout  time.Duration
	parseTimeout time.Duration

	// fields collected by options before the machine is built
	config      domain.EngineConfig
	limits      *uci.InputLimits
	responseCap int

	posMu   sync.Mutex
	history History

	searchMu sync.Mutex
	active   *activeSearch

	done     chan struct{}
	doneOnce sync.Once
}

// History is the last position set up by "position": the base FEN
// ("startpos" for the initial position) and the moves applied to it.
type History struct {
	Base  string
	Moves []string
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithPolicy sets the time policy. Defaults to the standard policy.
func WithPolicy(p timectl.Policy) Option {
	return func(e *Engine) {
		if p != nil {
			e.policy = p
		}
	}
}

// WithIdentification overrides the announced name and author.
func WithIdentification(id Identification) Option {
	return func(e *Engine) {
		e.id = id
	}
}

// WithConfig sets the initial engine configuration.
func WithConfig(cfg domain.EngineConfig) Option {
	return func(e *Engine) {
		e.config = cfg
	}
}

// WithInputLimits sets the parser's input limits.
func WithInputLimits(limits uci.InputLimits) Option {
	return func(e *Engine) {
		e.limits = &limits
	}
}

// WithResponseCapacity sets the per-subscriber response buffer.
func WithResponseCapacity(n int) Option {
	return func(e *Engine) {
		e.responseCap = n
	}
}

// WithCacheBackend names the analysis cache backend echoed by "uci".
func WithCacheBackend(name string) Option {
	return func(e *Engine) {
		e.cacheBackend = name
	}
}

// WithStopTimeout bounds how long "stop" waits for the core to return.
func WithStopTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.stopTimeout = d
		}
	}
}

// WithParseTimeout bounds the time spent parsing one line. A line that
// takes longer is dropped with a timeout error.
func WithParseTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.parseTimeout = d
		}
	}
}

// New creates an engine around core. Call Initialize before use.
func New(core ports.EngineCore, opts ...Option) *Engine {
	e := &Engine{
		core:         core,
		policy:       timectl.DefaultStandard(),
		id:           DefaultIdentification(),
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		cacheBackend: "memory",
		stopTimeout:  DefaultStopTimeout,
		parseTimeout: DefaultParseTimeout,
		config:       domain.DefaultEngineConfig(),
		responseCap:  DefaultResponseCapacity,
		requests:     make(chan request, requestQueueSize),
		done:         make(chan struct{}),
		history:      History{Base: "startpos"},
	}
	for _, opt := range opts {
		opt(e)
	}

	parserOpts := []uci.ParserOption{}
	if e.limits != nil {
		parserOpts = append(parserOpts, uci.WithLimits(*e.limits))
	}
	e.parser = uci.NewParser(parserOpts...)
	e.machine = state.New(
		state.WithConfig(e.config),
		state.WithLogger(e.logger),
		state.WithHooks(e.hooks),
	)
	e.responses = broadcast.New(e.responseCap, broadcast.WithDropCallback(func(line string) {
		e.logger.Warn("response dropped for lagging subscriber", "line", line)
	}))
	return e
}

// Initialize pushes the configuration into the core and moves to Ready.
func (e *Engine) Initialize(ctx context.Context) error {
	start := time.Now()
	e.logger.Info("Initializing engine", "name", e.id.Name)

	if err := e.applyConfig(e.machine.Config()); err != nil {
		_ = e.machine.SetError(ctx, "initialization failed")
		return err
	}
	if err := e.machine.TransitionTo(ctx, domain.StateReady, "Engine initialization complete"); err != nil {
		return err
	}

	e.logger.Info("Engine initialization complete", "elapsed_ms", time.Since(start).Milliseconds())
	return nil
}

func (e *Engine) applyConfig(cfg domain.EngineConfig) error {
	if err := e.core.SetHashSize(cfg.HashMB); err != nil {
		return domain.Wrap(domain.KindFFI, "set_hash_size", err)
	}
	if err := e.core.SetThreads(cfg.Threads); err != nil {
		return domain.Wrap(domain.KindFFI, "set_threads", err)
	}
	return e.tune(cfg)
}

func (e *Engine) tune(cfg domain.EngineConfig) error {
	t, ok := e.core.(ports.Tunable)
	if !ok {
		return nil
	}
	if err := t.Tune(cfg); err != nil {
		return domain.Wrap(domain.KindFFI, "tune", err)
	}
	return nil
}

// Subscribe returns a lossy subscription to outbound protocol lines.
func (e *Engine) Subscribe() *broadcast.Subscription[string] {
	return e.responses.Subscribe()
}

// SubscribeState returns a lossy subscription to lifecycle transitions.
func (e *Engine) SubscribeState() *broadcast.Subscription[domain.StateChangeEvent] {
	return e.machine.Subscribe()
}

// State returns the lifecycle state.
func (e *Engine) State() domain.EngineState {
	return e.machine.State()
}

// Config returns the current engine configuration.
func (e *Engine) Config() domain.EngineConfig {
	return e.machine.Config()
}

// Statistics returns the lifecycle counters.
func (e *Engine) Statistics() domain.Statistics {
	return e.machine.Statistics()
}

// ParserStats returns the parser counters.
func (e *Engine) ParserStats() uci.ParserStats {
	return e.parser.Stats()
}

// Position returns a copy of the position history.
func (e *Engine) Position() History {
	e.posMu.Lock()
	defer e.posMu.Unlock()
	return History{Base: e.history.Base, Moves: slices.Clone(e.history.Moves)}
}

func (e *Engine) setHistory(h History) {
	e.posMu.Lock()
	e.history = h
	e.posMu.Unlock()
}

// Identification returns the announced identity.
func (e *Engine) Identification() Identification {
	return e.id
}

// Close ends every subscription. Call it after Run has returned.
func (e *Engine) Close() {
	e.responses.Close()
	e.machine.Close()
}

func (e *Engine) emit(r uci.Response) {
	line := r.String()
	e.logger.Debug("Sending response", "response", line)
	e.responses.Publish(line)
}

func (e *Engine) emitDebug(format string, args ...any) {
	if !e.machine.Debug() {
		return
	}
	e.emit(uci.InfoString{Message: fmt.Sprintf(format, args...)})
}
