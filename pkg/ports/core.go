package ports

import (
	"context"

	"github.com/aretw0/opera/pkg/domain"
	"github.com/aretw0/opera/pkg/timectl"
)

// Board is the position held by the engine core. Moves use UCI long
// algebraic notation ("e2e4", "e7e8q").
type Board interface {
	// Reset returns to the standard starting position.
	Reset() error
	SetFEN(fen string) error
	FEN() (string, error)
	// MakeMove applies a legal move. Illegal moves fail with a Move error
	// and leave the board unchanged.
	MakeMove(move string) error
	IsValidMove(move string) (bool, error)
	IsInCheck() (bool, error)
	IsCheckmate() (bool, error)
	IsStalemate() (bool, error)
	// PositionInfo summarizes the position for the time policy.
	PositionInfo() (timectl.PositionInfo, error)
}

// Searcher runs searches on the board it is bound to.
type Searcher interface {
	// Search blocks until the limits are reached, progress returns false,
	// Stop is called or ctx is cancelled. A cancelled search still returns
	// its best result so far.
	Search(ctx context.Context, limits domain.SearchLimits, progress domain.ProgressFunc) (domain.SearchResult, error)
	Stop()
	IsSearching() bool
	ResetSearch() error
}

// CoreConfig is the engine-wide configuration surface.
type CoreConfig interface {
	SetHashSize(mb int) error
	SetThreads(n int) error
	ClearHash() error
}

// EngineCore is the external collaborator providing board state and
// search. Implementations must turn internal faults into typed errors and
// never panic across this boundary.
type EngineCore interface {
	Board
	Searcher
	CoreConfig
}

// Tunable is implemented by cores that honor the evaluation options
// (contempt, style and tactical depth) of the engine configuration.
type Tunable interface {
	Tune(cfg domain.EngineConfig) error
}
