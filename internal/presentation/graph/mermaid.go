package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/opera/pkg/domain"
)

// Lifecycle lists every engine state in declaration order.
var Lifecycle = []domain.EngineState{
	domain.StateInitializing,
	domain.StateReady,
	domain.StateSearching,
	domain.StatePondering,
	domain.StateStopping,
	domain.StateError,
}

// Overlay contains dynamic state data to visualize on the graph.
type Overlay struct {
	Visited []domain.EngineState
	Current *domain.EngineState
}

// GenerateMermaid produces a Mermaid state flowchart of the lifecycle
// transition table. It applies semantic styling:
// - Initializing: ((Circle))
// - Stopping: (((Double circle)))
// - Error: {{Hexagon}}
// - Searching/Pondering: (Rounded)
// - Default: [Rectangle]
// Self-transitions are omitted. Overlay styles (Visited/Current) are
// applied if provided.
func GenerateMermaid(states []domain.EngineState, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, s := range states {
		opener, closer := "[", "]"
		switch {
		case s == domain.StateInitializing:
			opener, closer = "((", "))"
		case s == domain.StateStopping:
			opener, closer = "(((", ")))"
		case s == domain.StateError:
			opener, closer = "{{", "}}"
		case s.IsComputing():
			opener, closer = "(", ")"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", nodeID(s), opener, s, closer)
	}

	for _, from := range states {
		for _, to := range states {
			if from == to || !from.CanTransitionTo(to) {
				continue
			}
			arrow := "-->"
			if to == domain.StateError {
				// failure edges are dotted
				arrow = "-.->"
			}
			fmt.Fprintf(&sb, "    %s %s %s\n", nodeID(from), arrow, nodeID(to))
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[domain.EngineState]bool)
		for _, s := range overlay.Visited {
			if !seen[s] {
				seen[s] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", nodeID(s))
			}
		}
		if overlay.Current != nil {
			fmt.Fprintf(&sb, "    class %s current;\n", nodeID(*overlay.Current))
		}
	}

	return sb.String()
}

func nodeID(s domain.EngineState) string {
	return strings.ToLower(s.String())
}
