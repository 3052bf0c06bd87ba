package engine

import (
	"context"
	"errors"
	"runtime/debug"
	"strings"
	"time"

	"github.com/aretw0/opera/pkg/domain"
	"github.com/aretw0/opera/pkg/uci"
)

// Handle processes one line and executes the recovery action of any
// failure. The returned error is nil when the failure was recovered from
// locally, and the original error otherwise. The command event always
// carries the failure, recovered or not. Only the handler is retried:
// parsing the same line twice fails the same way.
func (e *Engine) Handle(ctx context.Context, line string) error {
	start := time.Now()
	e.logger.Debug("Processing command", "line", line)

	var retry func() error
	cmd, err := e.parse(line)
	if err == nil {
		retry = func() error { return e.dispatch(ctx, cmd) }
		err = retry()
	}
	failure := err
	if err != nil {
		var action domain.RecoveryAction
		action, err = e.Recover(ctx, err, retry)
		if action != domain.RecoveryTerminate {
			err = nil
		}
	}
	if e.hooks.OnCommand != nil {
		e.hooks.OnCommand(ctx, &domain.CommandEvent{
			EventBase: domain.EventBase{Timestamp: start, Type: domain.EventCommand},
			Command:   commandName(line),
			Duration:  time.Since(start),
			Err:       failure,
		})
	}
	return err
}

// parse runs the parser under the parse timeout. Parsing is synchronous,
// so an overrun is detected once it returns and the command is dropped.
func (e *Engine) parse(line string) (uci.Command, error) {
	start := time.Now()
	cmd, err := e.parser.Parse(line)
	if err != nil {
		return nil, err
	}
	if elapsed := time.Since(start); elapsed > e.parseTimeout {
		return nil, domain.TimeoutError("parse", e.parseTimeout).WithDetails(cmd.Keyword())
	}
	return cmd, nil
}

// Recover executes the recovery action attached to err and reports the
// failure. retry may be nil when the operation cannot be repeated.
func (e *Engine) Recover(ctx context.Context, err error, retry func() error) (domain.RecoveryAction, error) {
	de := asDomainError(err)
	action := de.Recovery()

	switch action {
	case domain.RecoveryRetryOnce:
		if retry != nil {
			e.logger.Debug("Retrying failed operation", "op", de.Op)
			rerr := retry()
			if rerr == nil {
				return action, nil
			}
			de = asDomainError(rerr)
		}
	case domain.RecoveryResetState:
		if rerr := e.resetState(ctx); rerr != nil {
			e.logger.Error("Reset after failure did not succeed", "error", rerr)
		}
	case domain.RecoveryTerminate:
		e.logger.Error("Unrecoverable failure", "error", de)
	}

	e.Report(ctx, de)
	return action, de
}

// Report publishes err to the GUI as "info string ERROR: ..." and fires
// the error hook. It is safe to call from any goroutine.
func (e *Engine) Report(ctx context.Context, err error) {
	de := asDomainError(err)
	e.logger.Warn("Command failed",
		"kind", de.Kind.String(),
		"op", de.Op,
		"recovery", de.Recovery().String(),
		"error", de)
	e.emit(uci.ErrorString{Message: de.Error()})
	if e.hooks.OnError != nil {
		e.hooks.OnError(ctx, de)
	}
}

// panicError logs a recovered panic with its stack and converts it into an
// internal error.
func (e *Engine) panicError(op string, r any) *domain.Error {
	err := domain.InternalError("internal fault: %v", r).WithOp(op)
	e.logger.Error("Recovered from panic", "op", op, "error", err, "stack", string(debug.Stack()))
	return err
}

func asDomainError(err error) *domain.Error {
	var de *domain.Error
	if errors.As(err, &de) {
		return de
	}
	return domain.Wrap(domain.KindInternal, "dispatch", err)
}

// resetState stops any search and forces the lifecycle back to Ready.
func (e *Engine) resetState(ctx context.Context) error {
	e.stopActive(ctx)
	if err := e.machine.Reset(ctx); err != nil {
		return err
	}
	if err := e.core.ResetSearch(); err != nil {
		return domain.Wrap(domain.KindFFI, "reset_search", err)
	}
	return nil
}

// commandName returns the lowercase verb of line, or "unknown" so that
// arbitrary input never reaches a metric label.
func commandName(line string) string {
	verb := strings.TrimLeft(line, " \t")
	if i := strings.IndexAny(verb, " \t\r\n"); i >= 0 {
		verb = verb[:i]
	}
	verb = strings.ToLower(verb)
	switch verb {
	case "uci", "isready", "ucinewgame", "stop", "ponderhit", "quit",
		"debug", "setoption", "register", "position", "go":
		return verb
	}
	return "unknown"
}
