package domain

import (
	"time"

	"github.com/google/uuid"
)

// EngineState is the lifecycle position of the engine.
type EngineState uint32

const (
	StateInitializing EngineState = iota
	StateReady
	StateSearching
	StatePondering
	StateStopping
	StateError
)

func (s EngineState) String() string {
	switch s {
	case StateInitializing:
		return "Initializing"
	case StateReady:
		return "Ready"
	case StateSearching:
		return "Searching"
	case StatePondering:
		return "Pondering"
	case StateStopping:
		return "Stopping"
	case StateError:
		return "Error"
	default:
		return "Unknown"
	}
}

// CanAcceptCommands reports whether the engine takes new work in this state.
func (s EngineState) CanAcceptCommands() bool {
	return s == StateReady || s == StatePondering
}

// IsComputing reports whether a search is running.
func (s EngineState) IsComputing() bool {
	return s == StateSearching || s == StatePondering
}

// IsTerminal reports whether the state needs outside intervention to leave.
func (s EngineState) IsTerminal() bool {
	return s == StateStopping || s == StateError
}

// CanTransitionTo reports whether to is reachable from s in one step.
// Self-transitions are no-ops and allowed everywhere except Stopping.
func (s EngineState) CanTransitionTo(to EngineState) bool {
	if s == to {
		return s != StateStopping
	}
	switch s {
	case StateInitializing:
		return to == StateReady || to == StateError
	case StateReady:
		return to == StateSearching || to == StatePondering || to == StateStopping || to == StateError
	case StateSearching:
		return to == StateReady || to == StatePondering || to == StateStopping || to == StateError
	case StatePondering:
		return to == StateReady || to == StateSearching || to == StateStopping || to == StateError
	case StateError:
		return to == StateInitializing || to == StateStopping
	default:
		return false
	}
}

// EngineConfig is the option-backed configuration of the engine.
type EngineConfig struct {
	HashMB             int  `yaml:"hash" mapstructure:"hash"`
	Threads            int  `yaml:"threads" mapstructure:"threads"`
	Ponder             bool `yaml:"ponder" mapstructure:"ponder"`
	MultiThread        bool `yaml:"-" mapstructure:"-"`
	AnalysisMode       bool `yaml:"analysis" mapstructure:"analysis"`
	Contempt           int  `yaml:"contempt" mapstructure:"contempt"`
	MorphyStyle        bool `yaml:"morphy_style" mapstructure:"morphy_style"`
	SacrificeThreshold int  `yaml:"sacrifice_threshold" mapstructure:"sacrifice_threshold"`
	TacticalDepth      int  `yaml:"tactical_depth" mapstructure:"tactical_depth"`
}

// DefaultEngineConfig returns the configuration announced by a fresh engine.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		HashMB:             16,
		Threads:            1,
		SacrificeThreshold: 100,
		TacticalDepth:      2,
	}
}

// SearchContext lives from "go" until the search completes or is stopped.
type SearchContext struct {
	ID        string
	StartedAt time.Time
	// Ponder is true when the search started from "go ponder".
	Ponder bool
	// Params is the originating time control, kept for ponderhit.
	Params any
}

// NewSearchContext stamps a new search.
func NewSearchContext(ponder bool, params any) *SearchContext {
	return &SearchContext{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
		Ponder:    ponder,
		Params:    params,
	}
}

// Statistics is a snapshot of the lifecycle counters.
type Statistics struct {
	SearchesStarted   uint64
	SearchesCompleted uint64
	TotalNodes        uint64
	Debug             bool
}
