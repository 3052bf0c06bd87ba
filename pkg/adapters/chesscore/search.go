package chesscore

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"github.com/notnil/chess"
	"golang.org/x/sync/errgroup"

	"github.com/aretw0/opera/pkg/domain"
	"github.com/aretw0/opera/pkg/ports"
)

const (
	mateScore     = 100_000
	mateThreshold = mateScore - 1_000
	infScore      = 1_000_000
	maxDepth      = 64
	pollInterval  = 1024
)

// Search runs an iterative-deepening search on a snapshot of the board.
// Cancellation through ctx or Stop ends the search early; the result of the
// last completed iteration is returned, or the first legal move if none
// completed.
func (c *Core) Search(ctx context.Context, limits domain.SearchLimits, progress domain.ProgressFunc) (result domain.SearchResult, err error) {
	if !c.searching.CompareAndSwap(false, true) {
		return domain.SearchResult{}, domain.SearchError("search already running")
	}
	defer c.searching.Store(false)
	c.stop.Store(false)

	err = guard("search", func() error {
		fen, err := c.FEN()
		if err != nil {
			return err
		}
		root, err := decodeFEN(fen)
		if err != nil {
			return err
		}
		s := &search{
			ctx:       ctx,
			stop:      &c.stop,
			style:     c.currentStyle(),
			threads:   c.Threads(),
			nodeLimit: limits.Nodes,
			cache:     c.cache,
			logger:    c.logger,
		}
		result, err = s.run(root, limits, progress)
		return err
	})
	return result, err
}

// Stop asks a running search to return as soon as possible.
func (c *Core) Stop() {
	c.stop.Store(true)
}

func (c *Core) IsSearching() bool {
	return c.searching.Load()
}

// ResetSearch cancels any running search. Cached analysis is kept; use
// ClearHash to drop it.
func (c *Core) ResetSearch() error {
	c.Stop()
	return nil
}

type search struct {
	ctx       context.Context
	stop      *atomic.Bool
	style     Style
	threads   int
	nodeLimit uint64
	cache     ports.AnalysisCache
	logger    *slog.Logger

	nodes    atomic.Uint64
	selDepth atomic.Int64
	aborted  atomic.Bool
}

func (s *search) run(root *chess.Position, limits domain.SearchLimits, progress domain.ProgressFunc) (domain.SearchResult, error) {
	start := time.Now()
	moves := rootMoves(root, limits.SearchMoves)
	if len(moves) == 0 {
		score := s.drawScore()
		if root.Status() == chess.Checkmate {
			score = -mateScore
		}
		return domain.SearchResult{Score: score, Elapsed: time.Since(start)}, nil
	}

	key := positionKey(root.String())
	hashMove := s.hashMove(key)
	orderMoves(root, moves, hashMove)

	depthLimit := limits.Depth
	if depthLimit <= 0 || depthLimit > maxDepth {
		depthLimit = maxDepth
	}

	result := domain.SearchResult{BestMove: moves[0].String()}
	for depth := 1; depth <= depthLimit; depth++ {
		score, pv, ok := s.iterate(root, moves, depth)
		if !ok {
			break
		}

		result.BestMove = pv[0]
		result.PonderMove = ""
		if len(pv) > 1 {
			result.PonderMove = pv[1]
		}
		result.Score = score
		result.MateIn = mateIn(score)
		result.Depth = depth
		result.PV = pv

		// The best move leads the next iteration.
		orderMoves(root, moves, pv[0])
		s.store(key, result)

		info := domain.SearchInfo{
			Depth:    depth,
			SelDepth: max(depth, int(s.selDepth.Load())),
			Score:    score,
			MateIn:   result.MateIn,
			Nodes:    s.nodes.Load(),
			Elapsed:  time.Since(start),
			PV:       pv,
			HashFull: s.hashFull(),
		}
		if progress != nil && !progress(info) {
			break
		}
		if result.MateIn != 0 && abs(result.MateIn)*2 <= depth {
			break
		}
	}

	result.Nodes = s.nodes.Load()
	result.Elapsed = time.Since(start)
	return result, nil
}

// iterate searches every root move to depth. ok is false when the search
// was interrupted before the iteration finished.
func (s *search) iterate(root *chess.Position, moves []*chess.Move, depth int) (int, []string, bool) {
	if s.threads <= 1 || len(moves) == 1 {
		return s.iterateSerial(root, moves, depth)
	}
	return s.iterateParallel(root, moves, depth)
}

func (s *search) iterateSerial(root *chess.Position, moves []*chess.Move, depth int) (int, []string, bool) {
	alpha, beta := -infScore, infScore
	best := -infScore
	var bestPV []string
	for _, m := range moves {
		score, pv := s.negamax(root.Update(m), depth-1, -beta, -alpha, 1)
		score = -score
		if s.aborted.Load() {
			return 0, nil, false
		}
		if score > best {
			best = score
			bestPV = append([]string{m.String()}, pv...)
		}
		alpha = max(alpha, score)
	}
	return best, bestPV, true
}

// iterateParallel splits the root moves across workers. Each move gets a
// full window, trading pruning for parallelism.
func (s *search) iterateParallel(root *chess.Position, moves []*chess.Move, depth int) (int, []string, bool) {
	scores := make([]int, len(moves))
	pvs := make([][]string, len(moves))
	children := make([]*chess.Position, len(moves))
	for i, m := range moves {
		children[i] = root.Update(m)
	}

	var g errgroup.Group
	g.SetLimit(s.threads)
	for i := range moves {
		g.Go(func() error {
			score, pv := s.negamax(children[i], depth-1, -infScore, infScore, 1)
			scores[i], pvs[i] = -score, pv
			return nil
		})
	}
	_ = g.Wait()
	if s.aborted.Load() {
		return 0, nil, false
	}

	bestIdx := 0
	for i := range moves {
		if scores[i] > scores[bestIdx] {
			bestIdx = i
		}
	}
	return scores[bestIdx], append([]string{moves[bestIdx].String()}, pvs[bestIdx]...), true
}

func (s *search) negamax(pos *chess.Position, depth, alpha, beta, ply int) (int, []string) {
	if s.poll() {
		return 0, nil
	}

	moves := pos.ValidMoves()
	if len(moves) == 0 {
		if pos.Status() == chess.Checkmate {
			return -mateScore + ply, nil
		}
		return s.drawScore(), nil
	}
	if depth <= 0 {
		return s.quiesce(pos, alpha, beta, ply, s.style.TacticalDepth), nil
	}

	moves = slices.Clone(moves)
	orderMoves(pos, moves, "")

	best := -infScore
	var bestPV []string
	for _, m := range moves {
		score, pv := s.negamax(pos.Update(m), depth-1, -beta, -alpha, ply+1)
		score = -score
		if s.aborted.Load() {
			return 0, nil
		}
		if score > best {
			best = score
			bestPV = append([]string{m.String()}, pv...)
		}
		alpha = max(alpha, score)
		if alpha >= beta {
			break
		}
	}
	return best, bestPV
}

// quiesce resolves captures and promotions up to budget plies so the
// static evaluation is not taken in the middle of an exchange.
func (s *search) quiesce(pos *chess.Position, alpha, beta, ply, budget int) int {
	if s.poll() {
		return 0
	}
	if int64(ply) > s.selDepth.Load() {
		s.selDepth.Store(int64(ply))
	}

	stand := evaluate(pos, s.style)
	if budget <= 0 || stand >= beta {
		return stand
	}
	alpha = max(alpha, stand)

	var tactical []*chess.Move
	for _, m := range pos.ValidMoves() {
		if m.HasTag(chess.Capture) || m.HasTag(chess.EnPassant) || m.Promo() != chess.NoPieceType {
			tactical = append(tactical, m)
		}
	}
	orderMoves(pos, tactical, "")

	for _, m := range tactical {
		score := -s.quiesce(pos.Update(m), -beta, -alpha, ply+1, budget-1)
		if s.aborted.Load() {
			return 0
		}
		if score >= beta {
			return score
		}
		alpha = max(alpha, score)
	}
	return alpha
}

// poll counts a node and reports whether the search must unwind.
func (s *search) poll() bool {
	if s.aborted.Load() {
		return true
	}
	n := s.nodes.Add(1)
	if s.nodeLimit > 0 && n > s.nodeLimit {
		s.aborted.Store(true)
		return true
	}
	if n%pollInterval == 0 && (s.stop.Load() || s.ctx.Err() != nil) {
		s.aborted.Store(true)
		return true
	}
	return false
}

func (s *search) drawScore() int {
	return -s.style.Contempt
}

func (s *search) hashMove(key string) string {
	if s.cache == nil {
		return ""
	}
	entry, err := s.cache.Load(s.ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			s.logger.Debug("analysis cache load failed", "err", err)
		}
		return ""
	}
	return entry.BestMove
}

func (s *search) store(key string, r domain.SearchResult) {
	if s.cache == nil {
		return
	}
	err := s.cache.Save(s.ctx, ports.AnalysisEntry{
		Key:      key,
		Depth:    r.Depth,
		Score:    r.Score,
		BestMove: r.BestMove,
		PV:       r.PV,
	})
	if err != nil {
		s.logger.Debug("analysis cache save failed", "err", err)
	}
}

// hashFull reports cache occupancy in permill.
func (s *search) hashFull() int {
	if s.cache == nil || s.cache.Capacity() == 0 {
		return 0
	}
	n, err := s.cache.Len(s.ctx)
	if err != nil {
		return 0
	}
	return min(1000, n*1000/s.cache.Capacity())
}

func rootMoves(root *chess.Position, restrict []string) []*chess.Move {
	all := slices.Clone(root.ValidMoves())
	if len(restrict) == 0 {
		return all
	}
	allowed := make(map[string]struct{}, len(restrict))
	for _, m := range restrict {
		allowed[m] = struct{}{}
	}
	filtered := all[:0]
	for _, m := range all {
		if _, ok := allowed[m.String()]; ok {
			filtered = append(filtered, m)
		}
	}
	if len(filtered) == 0 {
		return slices.Clone(root.ValidMoves())
	}
	return filtered
}

// orderMoves sorts the preferred move first, then captures by
// most-valuable-victim / least-valuable-attacker.
func orderMoves(pos *chess.Position, moves []*chess.Move, preferred string) {
	board := pos.Board()
	key := func(m *chess.Move) int {
		if preferred != "" && m.String() == preferred {
			return 1 << 20
		}
		score := 0
		if m.HasTag(chess.Capture) {
			score += 10*pieceValue[board.Piece(m.S2()).Type()] - pieceValue[board.Piece(m.S1()).Type()]
		}
		if m.Promo() != chess.NoPieceType {
			score += pieceValue[m.Promo()]
		}
		return score
	}
	slices.SortStableFunc(moves, func(a, b *chess.Move) int {
		return key(b) - key(a)
	})
}

// mateIn converts a mate score to moves, zero for ordinary scores.
func mateIn(score int) int {
	switch {
	case score > mateThreshold:
		return (mateScore - score + 1) / 2
	case score < -mateThreshold:
		return -(mateScore + score + 1) / 2
	}
	return 0
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
