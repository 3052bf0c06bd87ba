package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventStateChange    EventType = "state_change"
	EventSearchStart    EventType = "search_start"
	EventSearchComplete EventType = "search_complete"
	EventCommand        EventType = "command"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
}

// StateChangeEvent is published on every accepted transition. Observers
// may miss events; nothing depends on their delivery.
type StateChangeEvent struct {
	EventBase
	From   EngineState `json:"from"`
	To     EngineState `json:"to"`
	Reason string      `json:"reason"`
}

// NewStateChangeEvent stamps a transition event.
func NewStateChangeEvent(from, to EngineState, reason string) StateChangeEvent {
	return StateChangeEvent{
		EventBase: EventBase{Timestamp: time.Now(), Type: EventStateChange},
		From:      from,
		To:        to,
		Reason:    reason,
	}
}

// SearchEvent describes the start or end of a search.
type SearchEvent struct {
	EventBase
	SearchID string        `json:"search_id"`
	BestMove string        `json:"best_move,omitempty"`
	Depth    int           `json:"depth,omitempty"`
	Nodes    uint64        `json:"nodes,omitempty"`
	Elapsed  time.Duration `json:"elapsed,omitempty"`
	Stopped  bool          `json:"stopped,omitempty"`
}

// CommandEvent describes one processed protocol command.
type CommandEvent struct {
	EventBase
	Command  string        `json:"command"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnStateChange    func(context.Context, *StateChangeEvent)
	OnSearchStart    func(context.Context, *SearchEvent)
	OnSearchComplete func(context.Context, *SearchEvent)
	OnCommand        func(context.Context, *CommandEvent)
	OnError          func(context.Context, *Error)
}
