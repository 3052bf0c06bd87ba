package timectl

import "time"

// Policy decides the time budget of a search and when it may stop early.
type Policy interface {
	Name() string
	Calculate(params SearchParams, pos PositionInfo) TimeLimits
	ShouldStopEarly(elapsed time.Duration, progress SearchProgress) bool
}

const (
	DefaultMargin       uint64  = 50
	DefaultSoftFactor   float64 = 0.35
	DefaultHardFactor   float64 = 3.0
	DefaultMinStability int     = 3
	EmergencyBudget     uint64  = 10
)

const (
	earlyStopMinDepth   = 6
	earlyStopMinElapsed = 100 * time.Millisecond

	defaultMovesOpening    uint64 = 40
	defaultMovesEndgame    uint64 = 15
	defaultMovesMiddlegame uint64 = 30
)

// Standard spreads the remaining clock over the expected number of moves.
type Standard struct {
	Margin       uint64
	SoftFactor   float64
	HardFactor   float64
	MinStability int
}

// StandardOption configures a Standard policy.
type StandardOption func(*Standard)

// WithHardFactor sets the multiple of the base budget allowed as hard limit.
func WithHardFactor(f float64) StandardOption {
	return func(s *Standard) {
		if f > 0 {
			s.HardFactor = f
		}
	}
}

// WithMinStability sets how many iterations the best move must survive
// before an early stop is allowed.
func WithMinStability(n int) StandardOption {
	return func(s *Standard) {
		if n > 0 {
			s.MinStability = n
		}
	}
}

// NewStandard creates a standard policy. A non-positive soft factor falls
// back to the default; one above the hard factor is capped to it.
func NewStandard(margin uint64, softFactor float64, opts ...StandardOption) *Standard {
	s := &Standard{
		Margin:       margin,
		SoftFactor:   softFactor,
		HardFactor:   DefaultHardFactor,
		MinStability: DefaultMinStability,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.SoftFactor <= 0 {
		s.SoftFactor = DefaultSoftFactor
	}
	if s.SoftFactor > s.HardFactor {
		s.SoftFactor = s.HardFactor
	}
	return s
}

// DefaultStandard returns the policy used for ordinary games.
func DefaultStandard() *Standard {
	return NewStandard(DefaultMargin, DefaultSoftFactor)
}

func (s *Standard) Name() string { return "standard" }

func (s *Standard) Calculate(params SearchParams, pos PositionInfo) TimeLimits {
	if params.Infinite {
		return Infinite()
	}
	if params.MoveTime != nil {
		mt := *params.MoveTime
		return LimitsFromMillis(satSub(mt, s.Margin), mt)
	}

	remaining, inc, ok := params.clock(pos.SideToMove)
	if !ok {
		// depth, nodes, mate or a bare "go": no clock to respect.
		return Infinite()
	}

	if remaining <= s.Margin {
		return LimitsFromMillis(EmergencyBudget, satSub(remaining, EmergencyBudget))
	}

	moves := s.movesToGo(params, pos)
	available := satSub(remaining, s.Margin)
	base := satAdd(available/moves, inc)

	soft := satScale(base, s.SoftFactor)
	hard := min(satScale(base, s.HardFactor), available)
	return LimitsFromMillis(soft, hard)
}

func (s *Standard) movesToGo(params SearchParams, pos PositionInfo) uint64 {
	if params.MovesToGo != nil && *params.MovesToGo > 0 {
		return *params.MovesToGo
	}
	switch {
	case pos.IsEndgame:
		return defaultMovesEndgame
	case pos.IsOpening:
		return defaultMovesOpening
	default:
		return defaultMovesMiddlegame
	}
}

func (s *Standard) ShouldStopEarly(elapsed time.Duration, progress SearchProgress) bool {
	return progress.Depth >= earlyStopMinDepth &&
		progress.BestMoveStable &&
		progress.StabilityCount >= s.MinStability &&
		elapsed > earlyStopMinElapsed
}

// Fixed gives every move the same budget regardless of the clock.
type Fixed struct {
	Time   uint64
	Margin uint64
}

// NewFixed creates a fixed policy of ms milliseconds per move.
func NewFixed(ms uint64) *Fixed {
	return &Fixed{Time: ms, Margin: DefaultMargin}
}

func (f *Fixed) Name() string { return "fixed" }

func (f *Fixed) Calculate(SearchParams, PositionInfo) TimeLimits {
	return LimitsFromMillis(satSub(f.Time, f.Margin), f.Time)
}

func (f *Fixed) ShouldStopEarly(time.Duration, SearchProgress) bool { return false }

// InfinitePolicy never limits the search; only "stop" ends it.
type InfinitePolicy struct{}

func (InfinitePolicy) Name() string { return "infinite" }

func (InfinitePolicy) Calculate(SearchParams, PositionInfo) TimeLimits { return Infinite() }

func (InfinitePolicy) ShouldStopEarly(time.Duration, SearchProgress) bool { return false }

// PolicyByName resolves a configured policy name. Unknown names yield the
// standard policy.
func PolicyByName(name string, fixedMS uint64) Policy {
	switch name {
	case "fixed":
		return NewFixed(fixedMS)
	case "infinite":
		return InfinitePolicy{}
	default:
		return DefaultStandard()
	}
}
