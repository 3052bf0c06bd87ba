package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"

	"github.com/aretw0/opera/internal/config"
	"github.com/aretw0/opera/internal/logging"
	"github.com/aretw0/opera/pkg/domain"
)

// createLogger configures the application logger on stderr.
func createLogger(cfg *config.Config) *slog.Logger {
	return logging.New(logging.ParseLevel(cfg.Log.Level), cfg.Log.Format)
}

func createDebugHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStateChange: func(ctx context.Context, e *domain.StateChangeEvent) {
			logger.Debug("State Change", "from", e.From, "to", e.To, "reason", e.Reason)
		},
		OnSearchStart: func(ctx context.Context, e *domain.SearchEvent) {
			logger.Debug("Search Start", "search_id", e.SearchID)
		},
		OnSearchComplete: func(ctx context.Context, e *domain.SearchEvent) {
			logger.Debug("Search Complete",
				"search_id", e.SearchID,
				"best_move", e.BestMove,
				"depth", e.Depth,
				"nodes", e.Nodes,
				"elapsed_ms", e.Elapsed.Milliseconds(),
				"stopped", e.Stopped)
		},
		OnCommand: func(ctx context.Context, e *domain.CommandEvent) {
			if e.Err != nil {
				logger.Debug("Command (Error)", "command", e.Command, "err", e.Err)
			} else {
				logger.Debug("Command", "command", e.Command, "duration", e.Duration)
			}
		},
	}
}

// Guard runs fn and turns a panic into a protocol error line on out, so
// the GUI sees a message instead of a dead pipe. The panic is logged with
// its stack and Guard returns nil.
func Guard(out io.Writer, logger *slog.Logger, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Internal fault", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			fmt.Fprintf(out, "info string ERROR: internal fault: %v\n", r)
			err = nil
		}
	}()
	return fn()
}
