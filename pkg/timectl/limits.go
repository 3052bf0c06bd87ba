package timectl

import (
	"math"
	"time"
)

// Color is the side to move.
type Color uint8

const (
	White Color = iota
	Black
)

// SearchParams is the time-relevant part of a "go" command. Nil pointers
// mean the parameter was not given.
type SearchParams struct {
	MoveTime  *uint64
	WTime     *uint64
	BTime     *uint64
	WInc      *uint64
	BInc      *uint64
	MovesToGo *uint64
	Depth     *uint64
	Nodes     *uint64
	Infinite  bool
}

// Millis returns a pointer to v, for building SearchParams literals.
func Millis(v uint64) *uint64 { return &v }

// InfiniteSearch returns params for "go infinite".
func InfiniteSearch() SearchParams { return SearchParams{Infinite: true} }

// MoveTimeSearch returns params for "go movetime ms".
func MoveTimeSearch(ms uint64) SearchParams { return SearchParams{MoveTime: &ms} }

// DepthSearch returns params for "go depth d".
func DepthSearch(d uint64) SearchParams { return SearchParams{Depth: &d} }

// NodesSearch returns params for "go nodes n".
func NodesSearch(n uint64) SearchParams { return SearchParams{Nodes: &n} }

// HasTimeControl reports whether either side's clock was given.
func (p SearchParams) HasTimeControl() bool {
	return p.WTime != nil || p.BTime != nil
}

// IsMoveTime reports whether a fixed move time was given.
func (p SearchParams) IsMoveTime() bool {
	return p.MoveTime != nil
}

// clock returns the remaining time and increment of the side to move,
// falling back to the other side's clock when only that one was sent.
func (p SearchParams) clock(side Color) (remaining, inc uint64, ok bool) {
	our, ourInc, their, theirInc := p.WTime, p.WInc, p.BTime, p.BInc
	if side == Black {
		our, ourInc, their, theirInc = p.BTime, p.BInc, p.WTime, p.WInc
	}
	if our == nil {
		our, ourInc = their, theirInc
	}
	if our == nil {
		return 0, 0, false
	}
	if ourInc != nil {
		inc = *ourInc
	}
	return *our, inc, true
}

// PositionInfo describes the position the search starts from.
type PositionInfo struct {
	LegalMoves int
	IsOpening  bool
	IsEndgame  bool
	MoveNumber int
	SideToMove Color
}

// SearchProgress is reported by the search after each completed depth.
type SearchProgress struct {
	Depth          int
	Nodes          uint64
	Score          int
	BestMoveStable bool
	StabilityCount int
}

// TimeLimits bounds a search. Soft <= Hard holds for every value built by
// NewTimeLimits or LimitsFromMillis.
type TimeLimits struct {
	soft time.Duration
	hard time.Duration
}

// NewTimeLimits builds limits, clamping soft to hard.
func NewTimeLimits(soft, hard time.Duration) TimeLimits {
	if hard < 0 {
		hard = 0
	}
	if soft < 0 {
		soft = 0
	}
	if soft > hard {
		soft = hard
	}
	return TimeLimits{soft: soft, hard: hard}
}

// LimitsFromMillis builds limits from millisecond counts, saturating at
// the largest representable duration.
func LimitsFromMillis(softMS, hardMS uint64) TimeLimits {
	return NewTimeLimits(millisToDuration(softMS), millisToDuration(hardMS))
}

// Infinite returns limits that never expire in practice.
func Infinite() TimeLimits {
	return TimeLimits{soft: math.MaxInt64, hard: math.MaxInt64}
}

// Soft is the time the search aims to finish by.
func (l TimeLimits) Soft() time.Duration { return l.soft }

// Hard is the absolute deadline.
func (l TimeLimits) Hard() time.Duration { return l.hard }

// SoftMS returns the soft limit in milliseconds.
func (l TimeLimits) SoftMS() uint64 { return uint64(l.soft.Milliseconds()) }

// HardMS returns the hard limit in milliseconds.
func (l TimeLimits) HardMS() uint64 { return uint64(l.hard.Milliseconds()) }

// IsInfinite reports whether the soft limit is longer than a day.
func (l TimeLimits) IsInfinite() bool {
	return l.soft > 24*time.Hour
}

const maxDurationMillis = uint64(math.MaxInt64 / int64(time.Millisecond))

func millisToDuration(ms uint64) time.Duration {
	if ms > maxDurationMillis {
		return math.MaxInt64
	}
	return time.Duration(ms) * time.Millisecond
}

func satSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

func satAdd(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}

// satScale multiplies by a non-negative factor, truncating toward zero.
func satScale(v uint64, factor float64) uint64 {
	if factor <= 0 {
		return 0
	}
	f := float64(v) * factor
	if f >= math.MaxUint64 {
		return math.MaxUint64
	}
	return uint64(f)
}
