package engine

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/aretw0/opera/pkg/domain"
	"github.com/aretw0/opera/pkg/timectl"
	"github.com/aretw0/opera/pkg/uci"
)

const maxSearchDepth = 64

// activeSearch tracks one "go" from dispatch to its bestmove.
type activeSearch struct {
	sc     *domain.SearchContext
	params timectl.SearchParams
	info   timectl.PositionInfo
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	mu        sync.Mutex
	timer     *timectl.SearchTimer
	deadline  *time.Timer
	pondering bool
	infinite  bool
	stopped   bool
	parked    *searchOutcome
	last      domain.SearchInfo
	best      string
	stable    int
}

type searchOutcome struct {
	result domain.SearchResult
	err    error
}

// timed reports whether the clock should end the search. Call with mu held.
func (as *activeSearch) timed() bool {
	return !as.pondering && !as.infinite
}

// arm starts the hard deadline. Call with mu held.
func (as *activeSearch) arm(limits timectl.TimeLimits) {
	if as.deadline != nil {
		as.deadline.Stop()
		as.deadline = nil
	}
	if limits.IsInfinite() {
		return
	}
	as.deadline = time.AfterFunc(limits.Hard(), as.cancel)
}

func (e *Engine) current() *activeSearch {
	e.searchMu.Lock()
	defer e.searchMu.Unlock()
	return e.active
}

// searchLimits converts "go" parameters into core limits.
func searchLimits(p uci.GoParams) domain.SearchLimits {
	var limits domain.SearchLimits
	if p.Depth != nil {
		limits.Depth = clampDepth(*p.Depth)
	}
	if p.Mate != nil && *p.Mate > 0 {
		// A mate in N is found within 2N-1 plies.
		d := clampDepth(2*min(*p.Mate, maxSearchDepth) - 1)
		if limits.Depth == 0 || d < limits.Depth {
			limits.Depth = d
		}
	}
	if p.Nodes != nil {
		limits.Nodes = *p.Nodes
	}
	for _, m := range p.SearchMoves {
		limits.SearchMoves = append(limits.SearchMoves, m.String())
	}
	return limits
}

func clampDepth(d uint64) int {
	if d > maxSearchDepth {
		return maxSearchDepth
	}
	return int(d)
}

func timeParams(p uci.GoParams) timectl.SearchParams {
	return timectl.SearchParams{
		MoveTime:  p.MoveTime,
		WTime:     p.WTime,
		BTime:     p.BTime,
		WInc:      p.WInc,
		BInc:      p.BInc,
		MovesToGo: p.MovesToGo,
		Depth:     p.Depth,
		Nodes:     p.Nodes,
		Infinite:  p.Infinite,
	}
}

func (e *Engine) handleGo(ctx context.Context, p uci.GoParams) error {
	if s := e.machine.State(); s != domain.StateReady {
		return domain.ProtocolError("go command invalid in state %s, expected Ready", s)
	}
	e.awaitCoreIdle(ctx)

	info, err := e.core.PositionInfo()
	if err != nil {
		return domain.Wrap(domain.KindFFI, "position_info", err)
	}
	params := timeParams(p)
	limits := searchLimits(p)

	timeLimits := timectl.Infinite()
	if !p.Ponder && !p.Infinite {
		timeLimits = e.policy.Calculate(params, info)
	}

	target, reason := domain.StateSearching, "go command"
	if p.Ponder {
		target, reason = domain.StatePondering, "go ponder command"
	}
	if err := e.machine.TransitionTo(ctx, target, reason); err != nil {
		return err
	}

	sc := domain.NewSearchContext(p.Ponder, params)
	if err := e.machine.StartSearch(ctx, sc); err != nil {
		return err
	}

	searchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	as := &activeSearch{
		sc:        sc,
		params:    params,
		info:      info,
		cancel:    cancel,
		done:      make(chan struct{}),
		timer:     timectl.NewSearchTimer(timeLimits),
		pondering: p.Ponder,
		infinite:  p.Infinite,
	}
	as.mu.Lock()
	as.arm(timeLimits)
	as.mu.Unlock()

	e.searchMu.Lock()
	e.active = as
	e.searchMu.Unlock()

	e.logger.Info("Search started",
		"search_id", sc.ID,
		"policy", e.policy.Name(),
		"soft_ms", timeLimits.SoftMS(),
		"hard_ms", timeLimits.HardMS(),
		"depth", limits.Depth,
		"ponder", p.Ponder)
	e.emitDebug("search %s soft %dms hard %dms", sc.ID, timeLimits.SoftMS(), timeLimits.HardMS())

	go e.runSearch(searchCtx, as, limits)
	return nil
}

func (e *Engine) runSearch(ctx context.Context, as *activeSearch, limits domain.SearchLimits) {
	defer close(as.done)
	defer func() {
		if r := recover(); r != nil {
			e.finishSearch(context.WithoutCancel(ctx), as, domain.SearchResult{}, e.panicError("search", r))
		}
	}()

	result, err := e.core.Search(ctx, limits, func(info domain.SearchInfo) bool {
		return e.onProgress(as, info)
	})

	as.mu.Lock()
	// Ponder and infinite searches may not answer before stop or ponderhit.
	hold := !as.timed() && !as.stopped
	if hold {
		as.parked = &searchOutcome{result: result, err: err}
	}
	as.mu.Unlock()
	if hold {
		e.logger.Debug("Search result parked", "search_id", as.sc.ID)
		return
	}

	e.finishSearch(context.WithoutCancel(ctx), as, result, err)
}

func (e *Engine) onProgress(as *activeSearch, info domain.SearchInfo) bool {
	info.PV = slices.Clone(info.PV)

	as.mu.Lock()
	as.last = info
	if len(info.PV) > 0 {
		if info.PV[0] == as.best {
			as.stable++
		} else {
			as.best = info.PV[0]
			as.stable = 0
		}
	}
	progress := timectl.SearchProgress{
		Depth:          info.Depth,
		Nodes:          info.Nodes,
		Score:          info.Score,
		BestMoveStable: as.stable > 0,
		StabilityCount: as.stable,
	}
	timed, stopped := as.timed(), as.stopped
	elapsed := as.timer.Elapsed()
	exceeded := as.timer.SoftExceeded()
	as.mu.Unlock()

	e.emit(infoLine(info))

	if stopped {
		return false
	}
	if !timed {
		return true
	}
	if exceeded {
		return false
	}
	return !e.policy.ShouldStopEarly(elapsed, progress)
}

func infoLine(info domain.SearchInfo) *uci.Info {
	score := uci.Centipawns(info.Score)
	if info.MateIn != 0 {
		score = uci.MateIn(info.MateIn)
	}
	line := uci.NewInfo().
		Depth(info.Depth).
		SelDepth(info.SelDepth).
		Score(score).
		Nodes(info.Nodes).
		Time(info.Elapsed)
	if ms := info.Elapsed.Milliseconds(); ms > 0 {
		line.NPS(info.Nodes * 1000 / uint64(ms))
	}
	if info.HashFull > 0 {
		line.HashFull(info.HashFull)
	}
	return line.PV(info.PV...)
}

// finishSearch publishes the bestmove of as exactly once.
func (e *Engine) finishSearch(ctx context.Context, as *activeSearch, result domain.SearchResult, err error) {
	as.once.Do(func() {
		as.mu.Lock()
		if as.deadline != nil {
			as.deadline.Stop()
		}
		stopped := as.stopped
		last := as.last
		elapsed := as.timer.Elapsed()
		as.mu.Unlock()
		as.cancel()

		if result.BestMove == "" && len(last.PV) > 0 {
			result.BestMove = last.PV[0]
			if len(last.PV) > 1 {
				result.PonderMove = last.PV[1]
			}
			result.Depth = max(result.Depth, last.Depth)
			result.Nodes = max(result.Nodes, last.Nodes)
		}

		e.searchMu.Lock()
		if e.active == as {
			e.active = nil
		}
		e.searchMu.Unlock()

		if cerr := e.machine.CompleteSearch(ctx, result.Nodes); cerr != nil {
			e.logger.Error("Failed to complete search", "search_id", as.sc.ID, "error", cerr)
		}

		e.emit(uci.BestMove{Move: result.BestMove, Ponder: result.PonderMove})
		e.logger.Info("Search finished",
			"search_id", as.sc.ID,
			"bestmove", result.BestMove,
			"depth", result.Depth,
			"nodes", result.Nodes,
			"elapsed_ms", elapsed.Milliseconds(),
			"stopped", stopped)

		if e.hooks.OnSearchComplete != nil {
			e.hooks.OnSearchComplete(ctx, &domain.SearchEvent{
				EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventSearchComplete},
				SearchID:  as.sc.ID,
				BestMove:  result.BestMove,
				Depth:     result.Depth,
				Nodes:     result.Nodes,
				Elapsed:   elapsed,
				Stopped:   stopped,
			})
		}

		if err != nil {
			_, _ = e.Recover(ctx, domain.Wrap(domain.KindSearch, "search", err), nil)
		}
	})
}

func (e *Engine) handleStop(ctx context.Context) error {
	as := e.current()
	if as == nil {
		e.logger.Debug("stop ignored, no active search", "state", e.machine.State().String())
		return nil
	}
	e.finalize(ctx, as)
	return nil
}

// awaitCoreIdle gives a search abandoned after a stop timeout up to
// another stop timeout to release the core.
func (e *Engine) awaitCoreIdle(ctx context.Context) {
	if !e.core.IsSearching() {
		return
	}
	e.core.Stop()

	deadline := time.NewTimer(e.stopTimeout)
	defer deadline.Stop()
	poll := time.NewTicker(5 * time.Millisecond)
	defer poll.Stop()

	for e.core.IsSearching() {
		select {
		case <-poll.C:
		case <-deadline.C:
			e.logger.Warn("Core still busy with an abandoned search", "timeout_ms", e.stopTimeout.Milliseconds())
			return
		case <-ctx.Done():
			return
		}
	}
	e.logger.Debug("Core released abandoned search")
}

// stopActive finalizes the active search, if any.
func (e *Engine) stopActive(ctx context.Context) {
	if as := e.current(); as != nil {
		e.finalize(ctx, as)
	}
}

// finalize cancels as and waits a bounded time for the core to return.
// When the core does not answer in time the last reported line is used.
func (e *Engine) finalize(ctx context.Context, as *activeSearch) {
	as.mu.Lock()
	as.stopped = true
	parked := as.parked
	as.mu.Unlock()

	if parked != nil {
		e.finishSearch(ctx, as, parked.result, parked.err)
		return
	}

	e.core.Stop()
	as.cancel()

	select {
	case <-as.done:
		// runSearch saw stopped and finished the search itself, unless it
		// parked the result just before stopped was set.
		as.mu.Lock()
		parked = as.parked
		as.mu.Unlock()
		if parked != nil {
			e.finishSearch(ctx, as, parked.result, parked.err)
		}
	case <-time.After(e.stopTimeout):
		e.logger.Warn("Search did not stop in time, using best effort result",
			"search_id", as.sc.ID,
			"timeout_ms", e.stopTimeout.Milliseconds())
		e.finishSearch(ctx, as, domain.SearchResult{}, nil)
	}
}

func (e *Engine) handlePonderHit(ctx context.Context) error {
	as := e.current()
	if as == nil || e.machine.State() != domain.StatePondering {
		e.logger.Warn("ponderhit ignored, not pondering", "state", e.machine.State().String())
		return nil
	}
	if err := e.machine.TransitionTo(ctx, domain.StateSearching, "ponderhit"); err != nil {
		return err
	}

	limits := timectl.Infinite()
	if !as.infinite {
		limits = e.policy.Calculate(as.params, as.info)
	}

	as.mu.Lock()
	as.pondering = false
	as.timer.Rearm(limits)
	as.arm(limits)
	parked := as.parked
	as.mu.Unlock()

	e.logger.Info("Ponder hit", "search_id", as.sc.ID, "soft_ms", limits.SoftMS(), "hard_ms", limits.HardMS())
	if parked != nil && !as.infinite {
		e.finishSearch(ctx, as, parked.result, parked.err)
	}
	return nil
}
