package engine

import (
	"context"
	"strconv"
	"strings"

	"github.com/aretw0/opera/pkg/domain"
	"github.com/aretw0/opera/pkg/uci"
)

// Option bounds announced by "uci" and enforced by "setoption".
const (
	MinHashMB    = 1
	MaxHashMB    = 2048
	MinThreads   = 1
	MaxThreads   = 64
	MinContempt  = -100
	MaxContempt  = 100
	MaxSacrifice = 1000
	MaxTactical  = 10
)

// Process parses line and routes it to its handler. Errors are returned
// unrecovered; see Handle.
func (e *Engine) Process(ctx context.Context, line string) error {
	e.logger.Debug("Processing command", "line", line)

	cmd, err := e.parser.Parse(line)
	if err != nil {
		return err
	}
	return e.dispatch(ctx, cmd)
}

// dispatch routes a parsed command to its handler.
func (e *Engine) dispatch(ctx context.Context, cmd uci.Command) error {
	switch c := cmd.(type) {
	case uci.UCI:
		return e.handleUCI()
	case uci.IsReady:
		return e.handleIsReady()
	case uci.Debug:
		e.machine.SetDebug(c.On)
		return nil
	case uci.SetOption:
		return e.handleSetOption(ctx, c)
	case uci.Register:
		e.logger.Debug("Registration ignored", "later", c.Later)
		return nil
	case uci.UCINewGame:
		return e.handleNewGame()
	case uci.Position:
		return e.handlePosition(c)
	case uci.Go:
		return e.handleGo(ctx, c.Params)
	case uci.Stop:
		return e.handleStop(ctx)
	case uci.PonderHit:
		return e.handlePonderHit(ctx)
	case uci.Quit:
		return e.handleQuit(ctx)
	default:
		return domain.InternalError("unhandled command %T", cmd)
	}
}

// Options returns the option declarations announced by "uci", with the
// current configuration as defaults.
func (e *Engine) Options() []uci.Option {
	cfg := e.machine.Config()
	return []uci.Option{
		uci.SpinOption("Hash", cfg.HashMB, MinHashMB, MaxHashMB),
		uci.SpinOption("Threads", cfg.Threads, MinThreads, MaxThreads),
		uci.CheckOption("Ponder", cfg.Ponder),
		uci.CheckOption("UCI_AnalyseMode", cfg.AnalysisMode),
		uci.SpinOption("Contempt", cfg.Contempt, MinContempt, MaxContempt),
		uci.CheckOption("MorphyStyle", cfg.MorphyStyle),
		uci.SpinOption("SacrificeThreshold", cfg.SacrificeThreshold, 0, MaxSacrifice),
		uci.SpinOption("TacticalDepth", cfg.TacticalDepth, 0, MaxTactical),
		{Name: "Clear Hash", Type: uci.OptionButton},
		uci.StringOption("CacheBackend", e.cacheBackend),
	}
}

func (e *Engine) handleUCI() error {
	e.emit(uci.ID{Name: e.id.Name, Author: e.id.Author})
	for _, opt := range e.Options() {
		e.emit(opt)
	}
	e.emit(uci.UCIOK{})
	return nil
}

func (e *Engine) handleIsReady() error {
	if s := e.machine.State(); !s.CanAcceptCommands() {
		e.logger.Warn("isready received while engine is busy", "state", s.String())
	}
	e.emit(uci.ReadyOK{})
	return nil
}

func (e *Engine) handleSetOption(ctx context.Context, opt uci.SetOption) error {
	name := strings.ToLower(strings.TrimSpace(opt.Name))
	value := strings.TrimSpace(opt.Value)

	switch name {
	case "hash":
		mb, err := spinValue(value, MinHashMB, MaxHashMB)
		if err != nil {
			return domain.ConfigurationError("Invalid hash size: '%s'", value)
		}
		if err := e.core.SetHashSize(mb); err != nil {
			return domain.Wrap(domain.KindFFI, "set_hash_size", err)
		}
		e.machine.UpdateConfig(func(c *domain.EngineConfig) { c.HashMB = mb })
	case "threads":
		n, err := spinValue(value, MinThreads, MaxThreads)
		if err != nil {
			return domain.ConfigurationError("Invalid thread count: '%s'", value)
		}
		if err := e.core.SetThreads(n); err != nil {
			return domain.Wrap(domain.KindFFI, "set_threads", err)
		}
		e.machine.UpdateConfig(func(c *domain.EngineConfig) { c.Threads = n })
	case "ponder":
		on, err := checkValue(value)
		if err != nil {
			return domain.ConfigurationError("Invalid ponder value: '%s'", value)
		}
		e.machine.UpdateConfig(func(c *domain.EngineConfig) { c.Ponder = on })
	case "uci_analysemode":
		on, err := checkValue(value)
		if err != nil {
			return domain.ConfigurationError("Invalid analysis mode value: '%s'", value)
		}
		e.machine.UpdateConfig(func(c *domain.EngineConfig) { c.AnalysisMode = on })
	case "contempt":
		v, err := spinValue(value, MinContempt, MaxContempt)
		if err != nil {
			return domain.ConfigurationError("Invalid contempt value: '%s'", value)
		}
		return e.retune(func(c *domain.EngineConfig) { c.Contempt = v })
	case "morphystyle":
		on, err := checkValue(value)
		if err != nil {
			return domain.ConfigurationError("Invalid MorphyStyle value: '%s'", value)
		}
		return e.retune(func(c *domain.EngineConfig) { c.MorphyStyle = on })
	case "sacrificethreshold":
		v, err := spinValue(value, 0, MaxSacrifice)
		if err != nil {
			return domain.ConfigurationError("Invalid sacrifice threshold: '%s'", value)
		}
		return e.retune(func(c *domain.EngineConfig) { c.SacrificeThreshold = v })
	case "tacticaldepth":
		v, err := spinValue(value, 0, MaxTactical)
		if err != nil {
			return domain.ConfigurationError("Invalid tactical depth: '%s'", value)
		}
		return e.retune(func(c *domain.EngineConfig) { c.TacticalDepth = v })
	case "clear hash":
		if err := e.core.ClearHash(); err != nil {
			return domain.Wrap(domain.KindFFI, "clear_hash", err)
		}
	case "cachebackend":
		e.logger.Info("CacheBackend is chosen at startup; ignoring", "value", value)
	default:
		e.logger.Warn("Unknown option", "name", opt.Name)
		return nil
	}

	e.logger.Debug("Option set", "name", opt.Name, "value", value)
	e.emitDebug("option %s set to %s", opt.Name, value)
	return nil
}

// retune applies fn to the configuration and pushes the result to the core.
func (e *Engine) retune(fn func(*domain.EngineConfig)) error {
	e.machine.UpdateConfig(fn)
	return e.tune(e.machine.Config())
}

// spinValue parses an integer option value and clamps it to [lo, hi].
func spinValue(v string, lo, hi int) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	return max(lo, min(n, hi)), nil
}

func checkValue(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "true", "on", "yes", "1":
		return true, nil
	case "false", "off", "no", "0":
		return false, nil
	}
	return strconv.ParseBool(v)
}

func (e *Engine) handleNewGame() error {
	if s := e.machine.State(); s != domain.StateReady {
		return domain.ProtocolError("ucinewgame command invalid in state %s, expected Ready", s)
	}

	e.machine.ResetStatistics()
	if err := e.core.ClearHash(); err != nil {
		return domain.Wrap(domain.KindFFI, "clear_hash", err)
	}
	if err := e.core.ResetSearch(); err != nil {
		return domain.Wrap(domain.KindFFI, "reset_search", err)
	}
	if err := e.core.Reset(); err != nil {
		return domain.Wrap(domain.KindFFI, "reset", err)
	}
	e.setHistory(History{Base: "startpos"})
	e.logger.Info("New game")
	return nil
}

func (e *Engine) handlePosition(cmd uci.Position) error {
	history := History{Base: "startpos"}
	if !cmd.Spec.StartPos {
		history.Base = cmd.Spec.FEN
	}
	// A failed setup leaves the board wherever it stopped.
	defer func() { e.setHistory(history) }()

	if cmd.Spec.StartPos {
		if err := e.core.Reset(); err != nil {
			return domain.Wrap(domain.KindFFI, "reset", err)
		}
	} else if err := e.core.SetFEN(cmd.Spec.FEN); err != nil {
		return domain.Wrap(domain.KindPosition, "set_fen", err)
	}

	for i, m := range cmd.Moves {
		move := m.String()
		ok, err := e.core.IsValidMove(move)
		if err != nil {
			return domain.Wrap(domain.KindFFI, "is_valid_move", err)
		}
		if !ok {
			return domain.MoveError("Invalid move '%s' at position %d in sequence", move, i+1)
		}
		if err := e.core.MakeMove(move); err != nil {
			return domain.Wrap(domain.KindMove, "make_move", err).
				WithDetails("move " + strconv.Itoa(i+1) + " in sequence")
		}
		history.Moves = append(history.Moves, move)
	}

	if e.machine.Debug() {
		if fen, err := e.core.FEN(); err == nil {
			e.emitDebug("position %s", fen)
		}
	}
	return nil
}

func (e *Engine) handleQuit(ctx context.Context) error {
	e.logger.Info("Quit received")
	e.stopActive(ctx)
	return e.machine.TransitionTo(ctx, domain.StateStopping, "quit command")
}
