package engine

import (
	"context"
	"errors"

	"github.com/aretw0/opera/pkg/domain"
)

// ErrStopped is returned for requests submitted after Run has returned.
var ErrStopped = errors.New("engine stopped")

type requestKind int

const (
	requestProcess requestKind = iota
	requestStop
	requestReset
	requestShutdown
)

func (k requestKind) String() string {
	switch k {
	case requestProcess:
		return "process"
	case requestStop:
		return "stop"
	case requestReset:
		return "reset"
	default:
		return "shutdown"
	}
}

type request struct {
	kind  requestKind
	line  string
	reply chan error
}

// ProcessCommand queues one protocol line and waits until it has been
// dispatched. The returned error has already been recovered from and
// reported; callers only need it to decide whether to terminate.
func (e *Engine) ProcessCommand(ctx context.Context, line string) error {
	return e.submit(ctx, request{kind: requestProcess, line: line})
}

// StopSearch queues a stop of the active search.
func (e *Engine) StopSearch(ctx context.Context) error {
	return e.submit(ctx, request{kind: requestStop})
}

// Reset queues a forced return to Ready.
func (e *Engine) Reset(ctx context.Context) error {
	return e.submit(ctx, request{kind: requestReset})
}

// Shutdown queues a graceful shutdown and waits for Run to acknowledge it.
func (e *Engine) Shutdown(ctx context.Context) error {
	return e.submit(ctx, request{kind: requestShutdown})
}

// Stopped is closed when Run returns.
func (e *Engine) Stopped() <-chan struct{} {
	return e.done
}

func (e *Engine) submit(ctx context.Context, req request) error {
	req.reply = make(chan error, 1)
	select {
	case e.requests <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		return ErrStopped
	}

	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		// Run may have answered before exiting.
		select {
		case err := <-req.reply:
			return err
		default:
			return ErrStopped
		}
	}
}

// Run drains the request queue until "quit", Shutdown or ctx is done.
// Requests are handled one at a time in arrival order.
func (e *Engine) Run(ctx context.Context) error {
	defer e.doneOnce.Do(func() { close(e.done) })

	for {
		select {
		case <-ctx.Done():
			e.stopActive(context.WithoutCancel(ctx))
			return ctx.Err()
		case req := <-e.requests:
			err := e.serve(ctx, req)
			req.reply <- err
			if req.kind == requestShutdown || e.machine.State() == domain.StateStopping {
				e.logger.Debug("Engine loop finished", "request", req.kind.String())
				return nil
			}
		}
	}
}

// serve handles one request. A panic is reported to the GUI and the
// loop keeps going.
func (e *Engine) serve(ctx context.Context, req request) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e.Report(ctx, e.panicError(req.kind.String(), r))
			err = nil
		}
	}()

	switch req.kind {
	case requestProcess:
		return e.Handle(ctx, req.line)
	case requestStop:
		return e.handleStop(ctx)
	case requestReset:
		return e.resetState(ctx)
	default:
		e.stopActive(ctx)
		if e.machine.State() == domain.StateStopping {
			return nil
		}
		return e.machine.TransitionTo(ctx, domain.StateStopping, "shutdown requested")
	}
}
