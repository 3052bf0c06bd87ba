package uci

// Command is one parsed inbound protocol command.
type Command interface {
	// Keyword is the protocol keyword of the command.
	Keyword() string
}

type (
	UCI        struct{}
	IsReady    struct{}
	UCINewGame struct{}
	Stop       struct{}
	PonderHit  struct{}
	Quit       struct{}
)

// Debug toggles diagnostic output.
type Debug struct {
	On bool
}

// SetOption carries "setoption name <Name> [value <Value>]".
type SetOption struct {
	Name     string
	Value    string
	HasValue bool
}

// Register carries "register later | name <n> code <c>".
type Register struct {
	Later bool
	Name  string
	Code  string
}

// PositionSpec is either the start position or a FEN.
type PositionSpec struct {
	StartPos bool
	FEN      string
}

// Position carries "position (startpos | fen <fen>) [moves ...]".
type Position struct {
	Spec  PositionSpec
	Moves []Move
}

// MoveStrings renders the move list in UCI notation.
func (p Position) MoveStrings() []string {
	out := make([]string, len(p.Moves))
	for i, m := range p.Moves {
		out[i] = m.String()
	}
	return out
}

// GoParams holds the optional "go" parameters. Nil means not given.
type GoParams struct {
	WTime     *uint64
	BTime     *uint64
	WInc      *uint64
	BInc      *uint64
	MovesToGo *uint64
	Depth     *uint64
	Nodes     *uint64
	Mate      *uint64
	MoveTime  *uint64

	Infinite    bool
	Ponder      bool
	SearchMoves []Move
}

// Go carries "go ...".
type Go struct {
	Params GoParams
}

func (UCI) Keyword() string { return "uci" }
func (IsReady) Keyword() string { return "isready" }
func (UCINewGame) Keyword() string { return "ucinewgame" }
func (Stop) Keyword() string { return "stop" }
func (PonderHit) Keyword() string { return "ponderhit" }
func (Quit) Keyword() string { return "quit" }
func (Debug) Keyword() string { return "debug" }
func (SetOption) Keyword() string { return "setoption" }
func (Register) Keyword() string { return "register" }
func (Position) Keyword() string { return "position" }
func (Go) Keyword() string { return "go" }
