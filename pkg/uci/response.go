package uci

import (
	"strconv"
	"strings"
	"time"
)

// Response is one outbound protocol message. String never includes the
// trailing newline; a Response may span several lines.
type Response interface {
	String() string
}

// ID renders "id name" and "id author".
type ID struct {
	Name   string
	Author string
}

func (r ID) String() string {
	return "id name " + r.Name + "\nid author " + r.Author
}

// UCIOK ends the identification block.
type UCIOK struct{}

func (UCIOK) String() string { return "uciok" }

// ReadyOK answers isready.
type ReadyOK struct{}

func (ReadyOK) String() string { return "readyok" }

// OptionType is the declared type of an engine option.
type OptionType string

const (
	OptionCheck  OptionType = "check"
	OptionSpin   OptionType = "spin"
	OptionCombo  OptionType = "combo"
	OptionButton OptionType = "button"
	OptionString OptionType = "string"
)

// Option declares one configurable engine option.
type Option struct {
	Name    string
	Type    OptionType
	Default string
	Min     int
	Max     int
	Vars    []string
}

// SpinOption declares an integer option.
func SpinOption(name string, def, lo, hi int) Option {
	return Option{Name: name, Type: OptionSpin, Default: strconv.Itoa(def), Min: lo, Max: hi}
}

// CheckOption declares a boolean option.
func CheckOption(name string, def bool) Option {
	return Option{Name: name, Type: OptionCheck, Default: strconv.FormatBool(def)}
}

// StringOption declares a free-text option.
func StringOption(name, def string) Option {
	return Option{Name: name, Type: OptionString, Default: def}
}

func (o Option) String() string {
	var b strings.Builder
	b.WriteString("option name ")
	b.WriteString(o.Name)
	b.WriteString(" type ")
	b.WriteString(string(o.Type))

	switch o.Type {
	case OptionCheck:
		writeField(&b, "default", o.Default)
	case OptionSpin:
		writeField(&b, "default", o.Default)
		writeField(&b, "min", strconv.Itoa(o.Min))
		writeField(&b, "max", strconv.Itoa(o.Max))
	case OptionString:
		def := o.Default
		if def == "" {
			def = "<empty>"
		}
		writeField(&b, "default", def)
	case OptionCombo:
		writeField(&b, "default", o.Default)
		for _, v := range o.Vars {
			writeField(&b, "var", v)
		}
	}
	return b.String()
}

func writeField(b *strings.Builder, key, value string) {
	b.WriteByte(' ')
	b.WriteString(key)
	b.WriteByte(' ')
	b.WriteString(value)
}

// Score is a centipawn or mate-distance evaluation.
type Score struct {
	Mate  bool
	Value int
}

// Centipawns builds a centipawn score.
func Centipawns(cp int) Score { return Score{Value: cp} }

// MateIn builds a mate score; negative values mean the engine is mated.
func MateIn(moves int) Score { return Score{Mate: true, Value: moves} }

func (s Score) String() string {
	if s.Mate {
		return "mate " + strconv.Itoa(s.Value)
	}
	return "cp " + strconv.Itoa(s.Value)
}

// Info is a search progress report. Only fields that were set are rendered.
type Info struct {
	depth          *int
	selDepth       *int
	score          *Score
	elapsed        *time.Duration
	nodes          *uint64
	nps            *uint64
	hashFull       *int
	currMove       string
	currMoveNumber *int
	pv             []string
}

// NewInfo starts an empty info line.
func NewInfo() *Info { return &Info{} }

// Depth sets the completed iteration depth.
func (i *Info) Depth(d int) *Info {
	i.depth = &d
	return i
}

func (i *Info) SelDepth(d int) *Info {
	i.selDepth = &d
	return i
}

func (i *Info) Score(s Score) *Info {
	i.score = &s
	return i
}

func (i *Info) Time(d time.Duration) *Info {
	i.elapsed = &d
	return i
}

func (i *Info) Nodes(n uint64) *Info {
	i.nodes = &n
	return i
}

func (i *Info) NPS(n uint64) *Info {
	i.nps = &n
	return i
}

func (i *Info) HashFull(permill int) *Info {
	i.hashFull = &permill
	return i
}

func (i *Info) CurrMove(m string) *Info {
	i.currMove = m
	return i
}

func (i *Info) CurrMoveNumber(n int) *Info {
	i.currMoveNumber = &n
	return i
}

// PV sets the principal variation; it is always rendered last.
func (i *Info) PV(moves ...string) *Info {
	i.pv = moves
	return i
}

// String renders the fields in protocol order with pv last.
func (i *Info) String() string {
	var b strings.Builder
	b.WriteString("info")
	if i.depth != nil {
		writeField(&b, "depth", strconv.Itoa(*i.depth))
	}
	if i.selDepth != nil {
		writeField(&b, "seldepth", strconv.Itoa(*i.selDepth))
	}
	if i.score != nil {
		writeField(&b, "score", i.score.String())
	}
	if i.elapsed != nil {
		writeField(&b, "time", strconv.FormatInt(i.elapsed.Milliseconds(), 10))
	}
	if i.nodes != nil {
		writeField(&b, "nodes", strconv.FormatUint(*i.nodes, 10))
	}
	if i.nps != nil {
		writeField(&b, "nps", strconv.FormatUint(*i.nps, 10))
	}
	if i.hashFull != nil {
		writeField(&b, "hashfull", strconv.Itoa(*i.hashFull))
	}
	if i.currMove != "" {
		writeField(&b, "currmove", i.currMove)
	}
	if i.currMoveNumber != nil {
		writeField(&b, "currmovenumber", strconv.Itoa(*i.currMoveNumber))
	}
	if len(i.pv) > 0 {
		writeField(&b, "pv", strings.Join(i.pv, " "))
	}
	return b.String()
}

// NullMove is sent as bestmove when the side to move has no legal move.
const NullMove = "0000"

// BestMove ends a search.
type BestMove struct {
	Move   string
	Ponder string
}

func (r BestMove) String() string {
	move := r.Move
	if move == "" {
		move = NullMove
	}
	if r.Ponder == "" {
		return "bestmove " + move
	}
	return "bestmove " + move + " ponder " + r.Ponder
}

// InfoString carries a free-form diagnostic.
type InfoString struct {
	Message string
}

func (r InfoString) String() string { return "info string " + r.Message }

// ErrorString reports a recovered failure to the GUI.
type ErrorString struct {
	Message string
}

func (r ErrorString) String() string { return "info string ERROR: " + r.Message }

// FormatBatch renders responses one per line, newline-terminated.
func FormatBatch(responses ...Response) string {
	var b strings.Builder
	for _, r := range responses {
		b.WriteString(r.String())
		b.WriteByte('\n')
	}
	return b.String()
}
