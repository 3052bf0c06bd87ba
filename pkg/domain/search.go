package domain

import "time"

// SearchLimits are the non-time bounds handed to the engine core. Zero
// values mean unlimited. Time is enforced by the caller through context
// cancellation and the progress callback.
type SearchLimits struct {
	Depth       int
	Nodes       uint64
	SearchMoves []string
}

// SearchInfo is reported once per completed iteration.
type SearchInfo struct {
	Depth    int
	SelDepth int
	Score    int
	// MateIn is non-zero for forced mates; negative when the engine is mated.
	MateIn   int
	Nodes    uint64
	Elapsed  time.Duration
	PV       []string
	HashFull int
}

// ProgressFunc receives each completed iteration. Returning false asks
// the search to stop and return what it has.
type ProgressFunc func(SearchInfo) bool

// SearchResult is the outcome of a search. BestMove is empty when the
// side to move has no legal move.
type SearchResult struct {
	BestMove   string
	PonderMove string
	Score      int
	MateIn     int
	Depth      int
	Nodes      uint64
	Elapsed    time.Duration
	PV         []string
}
