package state

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/aretw0/opera/pkg/broadcast"
	"github.com/aretw0/opera/pkg/domain"
)

// DefaultEventCapacity is the per-subscriber buffer of the event topic.
const DefaultEventCapacity = 32

// Machine tracks the engine lifecycle, configuration and statistics.
type Machine struct {
	state atomic.Uint32

	cfgMu  sync.RWMutex
	config domain.EngineConfig

	searchMu sync.Mutex
	search   *domain.SearchContext

	debug             atomic.Bool
	searchesStarted   atomic.Uint64
	searchesCompleted atomic.Uint64
	totalNodes        atomic.Uint64

	events *broadcast.Topic[domain.StateChangeEvent]
	logger *slog.Logger
	hooks  domain.LifecycleHooks
}

// Option configures a Machine.
type Option func(*Machine)

// WithLogger sets the logger used for transition traces.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithConfig sets the initial configuration.
func WithConfig(cfg domain.EngineConfig) Option {
	return func(m *Machine) {
		m.config = cfg
	}
}

// WithHooks registers lifecycle callbacks.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(m *Machine) {
		m.hooks = hooks
	}
}

// WithEventCapacity sets how many events a slow subscriber may fall behind
// before it starts losing them.
func WithEventCapacity(n int) Option {
	return func(m *Machine) {
		m.events = broadcast.New[domain.StateChangeEvent](n)
	}
}

// New creates a machine in the Initializing state.
func New(opts ...Option) *Machine {
	m := &Machine{
		config: domain.DefaultEngineConfig(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.events == nil {
		m.events = broadcast.New[domain.StateChangeEvent](DefaultEventCapacity)
	}
	m.state.Store(uint32(domain.StateInitializing))
	return m
}

// State returns the current state.
func (m *Machine) State() domain.EngineState {
	return domain.EngineState(m.state.Load())
}

// TransitionTo moves to the given state. Pairs outside the transition
// table fail with an Engine error and leave the state untouched.
// A self-transition is a silent no-op.
func (m *Machine) TransitionTo(ctx context.Context, to domain.EngineState, reason string) error {
	for {
		from := m.State()
		if !from.CanTransitionTo(to) {
			return domain.EngineError("Invalid state transition from %s to %s", from, to)
		}
		if from == to {
			return nil
		}
		if !m.state.CompareAndSwap(uint32(from), uint32(to)) {
			continue
		}
		m.emit(ctx, domain.NewStateChangeEvent(from, to, reason))
		return nil
	}
}

func (m *Machine) emit(ctx context.Context, evt domain.StateChangeEvent) {
	m.logger.Debug("state transition",
		"from", evt.From.String(),
		"to", evt.To.String(),
		"reason", evt.Reason)
	m.events.Publish(evt)
	if m.hooks.OnStateChange != nil {
		m.hooks.OnStateChange(ctx, &evt)
	}
}

// Subscribe returns a lossy subscription to transition events.
func (m *Machine) Subscribe() *broadcast.Subscription[domain.StateChangeEvent] {
	return m.events.Subscribe()
}

// Config returns a copy of the current configuration.
func (m *Machine) Config() domain.EngineConfig {
	m.cfgMu.RLock()
	defer m.cfgMu.RUnlock()
	return m.config
}

// UpdateConfig applies fn to the configuration under the write lock.
func (m *Machine) UpdateConfig(fn func(*domain.EngineConfig)) {
	m.cfgMu.Lock()
	defer m.cfgMu.Unlock()
	fn(&m.config)
}

// StartSearch installs the context of a search. The machine must already
// be Searching or Pondering.
func (m *Machine) StartSearch(ctx context.Context, sc *domain.SearchContext) error {
	if s := m.State(); !s.IsComputing() {
		return domain.EngineError("Cannot start search in state %s", s)
	}

	m.searchMu.Lock()
	m.search = sc
	m.searchMu.Unlock()

	m.searchesStarted.Add(1)
	if m.hooks.OnSearchStart != nil {
		m.hooks.OnSearchStart(ctx, &domain.SearchEvent{
			EventBase: domain.EventBase{Timestamp: sc.StartedAt, Type: domain.EventSearchStart},
			SearchID:  sc.ID,
		})
	}
	return nil
}

// CurrentSearch returns the active search context, or nil.
func (m *Machine) CurrentSearch() *domain.SearchContext {
	m.searchMu.Lock()
	defer m.searchMu.Unlock()
	return m.search
}

// CompleteSearch records the finished search and returns to Ready. When
// the engine is already shutting down the state is left alone.
func (m *Machine) CompleteSearch(ctx context.Context, nodes uint64) error {
	m.searchMu.Lock()
	m.search = nil
	m.searchMu.Unlock()

	m.searchesCompleted.Add(1)
	m.totalNodes.Add(nodes)

	if m.State() == domain.StateStopping {
		return nil
	}
	return m.TransitionTo(ctx, domain.StateReady, "search completed")
}

// Reset returns the machine to Ready. From Error it routes through
// Initializing; from Stopping it fails.
func (m *Machine) Reset(ctx context.Context) error {
	m.searchMu.Lock()
	m.search = nil
	m.searchMu.Unlock()

	if m.State() == domain.StateError {
		if err := m.TransitionTo(ctx, domain.StateInitializing, "reset"); err != nil {
			return err
		}
	}
	return m.TransitionTo(ctx, domain.StateReady, "reset")
}

// SetError moves the machine to the Error state.
func (m *Machine) SetError(ctx context.Context, reason string) error {
	return m.TransitionTo(ctx, domain.StateError, reason)
}

// SetDebug toggles the protocol debug flag.
func (m *Machine) SetDebug(on bool) { m.debug.Store(on) }

// Debug reports whether protocol debug output is enabled.
func (m *Machine) Debug() bool { return m.debug.Load() }

// Statistics returns a snapshot of the counters.
func (m *Machine) Statistics() domain.Statistics {
	return domain.Statistics{
		SearchesStarted:   m.searchesStarted.Load(),
		SearchesCompleted: m.searchesCompleted.Load(),
		TotalNodes:        m.totalNodes.Load(),
		Debug:             m.debug.Load(),
	}
}

// ResetStatistics clears the search counters.
func (m *Machine) ResetStatistics() {
	m.searchesStarted.Store(0)
	m.searchesCompleted.Store(0)
	m.totalNodes.Store(0)
}

// Close ends every event subscription.
func (m *Machine) Close() {
	m.events.Close()
}
