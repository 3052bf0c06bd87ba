package chesscore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/notnil/chess"

	"github.com/aretw0/opera/pkg/domain"
	"github.com/aretw0/opera/pkg/ports"
	"github.com/aretw0/opera/pkg/timectl"
)

// Core is a notnil/chess backed engine core. Board methods are safe to
// call while a search runs; the search works on its own snapshot.
type Core struct {
	mu  sync.Mutex
	pos *chess.Position

	styleMu sync.RWMutex
	style   Style

	hashMB  atomic.Int64
	threads atomic.Int64

	searching atomic.Bool
	stop      atomic.Bool

	cache  ports.AnalysisCache
	logger *slog.Logger
}

var (
	_ ports.EngineCore = (*Core)(nil)
	_ ports.Tunable    = (*Core)(nil)
)

// Option configures a Core.
type Option func(*Core)

// WithCache sets the analysis cache used for hash moves.
func WithCache(cache ports.AnalysisCache) Option {
	return func(c *Core) {
		c.cache = cache
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Core) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a core on the starting position.
func New(opts ...Option) *Core {
	c := &Core{
		pos:    chess.StartingPosition(),
		style:  DefaultStyle(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	c.hashMB.Store(16)
	c.threads.Store(1)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// guard runs fn and converts a panic into an Ffi error.
func guard(op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = domain.FFIError(op, fmt.Errorf("panic: %v", r))
		}
	}()
	return fn()
}

func (c *Core) Reset() error {
	return guard("reset", func() error {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.pos = chess.StartingPosition()
		return nil
	})
}

func (c *Core) SetFEN(fen string) error {
	return guard("set_fen", func() error {
		pos, err := decodeFEN(fen)
		if err != nil {
			return err
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		c.pos = pos
		return nil
	})
}

func decodeFEN(fen string) (*chess.Position, error) {
	opt, err := chess.FEN(fen)
	if err != nil {
		return nil, domain.PositionError("Invalid FEN: %v", err)
	}
	pos := chess.NewGame(opt).Position()
	if err := checkKings(pos.Board()); err != nil {
		return nil, err
	}
	return pos, nil
}

// checkKings rejects boards the move generator cannot work with.
func checkKings(board *chess.Board) error {
	var white, black int
	for _, p := range board.SquareMap() {
		if p.Type() != chess.King {
			continue
		}
		if p.Color() == chess.White {
			white++
		} else {
			black++
		}
	}
	if white != 1 || black != 1 {
		return domain.PositionError("Invalid FEN: expected one king per side, got %d white and %d black", white, black)
	}
	return nil
}

func (c *Core) FEN() (fen string, err error) {
	err = guard("get_fen", func() error {
		c.mu.Lock()
		defer c.mu.Unlock()
		fen = c.pos.String()
		return nil
	})
	return fen, err
}

func (c *Core) MakeMove(move string) error {
	return guard("make_move", func() error {
		c.mu.Lock()
		defer c.mu.Unlock()
		m := findMove(c.pos, move)
		if m == nil {
			return domain.MoveError("Illegal move: %s", move)
		}
		c.pos = c.pos.Update(m)
		return nil
	})
}

func findMove(pos *chess.Position, move string) *chess.Move {
	move = strings.ToLower(move)
	for _, m := range pos.ValidMoves() {
		if m.String() == move {
			return m
		}
	}
	return nil
}

func (c *Core) IsValidMove(move string) (ok bool, err error) {
	err = guard("is_valid_move", func() error {
		c.mu.Lock()
		defer c.mu.Unlock()
		ok = findMove(c.pos, move) != nil
		return nil
	})
	return ok, err
}

func (c *Core) IsInCheck() (check bool, err error) {
	err = guard("is_in_check", func() error {
		c.mu.Lock()
		defer c.mu.Unlock()
		check = inCheck(c.pos.Board().SquareMap(), c.pos.Turn())
		return nil
	})
	return check, err
}

func (c *Core) IsCheckmate() (mate bool, err error) {
	err = guard("is_checkmate", func() error {
		c.mu.Lock()
		defer c.mu.Unlock()
		mate = c.pos.Status() == chess.Checkmate
		return nil
	})
	return mate, err
}

func (c *Core) IsStalemate() (stale bool, err error) {
	err = guard("is_stalemate", func() error {
		c.mu.Lock()
		defer c.mu.Unlock()
		stale = c.pos.Status() == chess.Stalemate
		return nil
	})
	return stale, err
}

// PositionInfo classifies the current position for the time policy.
func (c *Core) PositionInfo() (info timectl.PositionInfo, err error) {
	err = guard("position_info", func() error {
		c.mu.Lock()
		defer c.mu.Unlock()

		info.LegalMoves = len(c.pos.ValidMoves())
		info.MoveNumber = fullMoveNumber(c.pos.String())
		if c.pos.Turn() == chess.Black {
			info.SideToMove = timectl.Black
		}

		material := nonPawnMaterial(c.pos.Board().SquareMap())
		info.IsEndgame = material <= endgameMaterial
		info.IsOpening = !info.IsEndgame && info.MoveNumber <= openingMoves
		return nil
	})
	return info, err
}

const (
	endgameMaterial = 1900
	openingMoves    = 10
)

func fullMoveNumber(fen string) int {
	fields := strings.Fields(fen)
	if len(fields) < 6 {
		return 1
	}
	n, err := strconv.Atoi(fields[5])
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// positionKey identifies a position for the analysis cache, ignoring the
// move counters.
func positionKey(fen string) string {
	fields := strings.Fields(fen)
	if len(fields) > 4 {
		fields = fields[:4]
	}
	return strings.Join(fields, " ")
}

func (c *Core) SetHashSize(mb int) error {
	return guard("set_hash_size", func() error {
		if mb < 1 {
			return domain.ConfigurationError("hash size must be at least 1 MB, got %d", mb)
		}
		c.hashMB.Store(int64(mb))
		if c.cache == nil {
			return nil
		}
		return c.cache.Resize(context.Background(), mb)
	})
}

func (c *Core) SetThreads(n int) error {
	return guard("set_threads", func() error {
		if n < 1 {
			return domain.ConfigurationError("thread count must be at least 1, got %d", n)
		}
		c.threads.Store(int64(n))
		return nil
	})
}

func (c *Core) ClearHash() error {
	return guard("clear_hash", func() error {
		if c.cache == nil {
			return nil
		}
		return c.cache.Clear(context.Background())
	})
}

// Tune applies the evaluation options of cfg.
func (c *Core) Tune(cfg domain.EngineConfig) error {
	return guard("tune", func() error {
		c.styleMu.Lock()
		defer c.styleMu.Unlock()
		c.style = StyleFrom(cfg)
		return nil
	})
}

func (c *Core) currentStyle() Style {
	c.styleMu.RLock()
	defer c.styleMu.RUnlock()
	return c.style
}

// HashSize returns the configured hash size in megabytes.
func (c *Core) HashSize() int { return int(c.hashMB.Load()) }

// Threads returns the configured thread count.
func (c *Core) Threads() int { return int(c.threads.Load()) }
