package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrCacheMiss is returned when an analysis cache holds no entry for a key.
var ErrCacheMiss = errors.New("analysis entry not found")

// ErrorKind classifies failures by the layer that produced them.
type ErrorKind int

const (
	KindProtocol ErrorKind = iota
	KindEngine
	KindPosition
	KindMove
	KindSearch
	KindConfiguration
	KindIO
	KindFFI
	KindTimeout
	KindResource
	KindInternal
)

var kindNames = [...]string{
	KindProtocol:      "protocol",
	KindEngine:        "engine",
	KindPosition:      "position",
	KindMove:          "move",
	KindSearch:        "search",
	KindConfiguration: "configuration",
	KindIO:            "io",
	KindFFI:           "ffi",
	KindTimeout:       "timeout",
	KindResource:      "resource",
	KindInternal:      "internal",
}

func (k ErrorKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// RecoveryAction is the intent attached to an error kind. The engine
// coordinator executes it; it is not advisory.
type RecoveryAction int

const (
	// RecoveryContinue keeps going without changing anything.
	RecoveryContinue RecoveryAction = iota
	// RecoveryContinueWithDefault keeps the previous (default) value.
	RecoveryContinueWithDefault
	// RecoveryRetryOnce re-runs the failed operation exactly one more time.
	RecoveryRetryOnce
	// RecoverySkip drops the offending command.
	RecoverySkip
	// RecoveryResetState forces the lifecycle back to Ready.
	RecoveryResetState
	// RecoveryTerminate stops the event loop.
	RecoveryTerminate
)

func (a RecoveryAction) String() string {
	switch a {
	case RecoveryContinue:
		return "continue"
	case RecoveryContinueWithDefault:
		return "continue_with_default"
	case RecoveryRetryOnce:
		return "retry_once"
	case RecoverySkip:
		return "skip"
	case RecoveryResetState:
		return "reset_state"
	case RecoveryTerminate:
		return "terminate"
	default:
		return "unknown"
	}
}

// Error is the typed error carried across every layer of the engine.
type Error struct {
	Kind    ErrorKind
	Op      string // operation that failed, e.g. "parse", "dispatch"
	Message string
	// Details holds extra context rendered after the message.
	Details string
	// Resource names the exhausted resource for KindResource.
	Resource string
	// Timeout is the elapsed budget for KindTimeout.
	Timeout time.Duration
	// Fatal marks IO failures that must terminate the loop.
	Fatal bool
	Err   error
}

func (e *Error) Error() string {
	var b strings.Builder
	switch e.Kind {
	case KindProtocol:
		b.WriteString("protocol error: ")
	case KindEngine:
		b.WriteString("engine error: ")
	case KindPosition:
		b.WriteString("position error: ")
	case KindMove:
		b.WriteString("move error: ")
	case KindSearch:
		b.WriteString("search error: ")
	case KindConfiguration:
		b.WriteString("configuration error: ")
	case KindIO:
		b.WriteString("io error: ")
	case KindFFI:
		b.WriteString("engine core error: ")
	case KindTimeout:
		fmt.Fprintf(&b, "timeout after %dms: ", e.Timeout.Milliseconds())
	case KindResource:
		fmt.Fprintf(&b, "resource exhausted (%s): ", e.Resource)
	default:
		b.WriteString("internal error: ")
	}
	b.WriteString(e.Message)
	if e.Details != "" {
		b.WriteString(" (")
		b.WriteString(e.Details)
		b.WriteString(")")
	}
	if e.Err != nil && e.Message == "" {
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Recovery returns the recovery action for this error.
func (e *Error) Recovery() RecoveryAction {
	if e.Kind == KindIO && e.Fatal {
		return RecoveryTerminate
	}
	return RecoveryFor(e.Kind)
}

// WithOp returns a copy of the error annotated with the operation name.
func (e *Error) WithOp(op string) *Error {
	cp := *e
	cp.Op = op
	return &cp
}

// WithDetails returns a copy of the error annotated with details.
func (e *Error) WithDetails(details string) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

// RecoveryFor maps an error kind to its recovery action.
func RecoveryFor(kind ErrorKind) RecoveryAction {
	switch kind {
	case KindProtocol, KindConfiguration:
		return RecoveryContinueWithDefault
	case KindEngine, KindSearch, KindFFI:
		return RecoveryResetState
	case KindPosition, KindMove:
		return RecoverySkip
	case KindIO, KindResource:
		return RecoveryRetryOnce
	default:
		return RecoveryContinue
	}
}

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func ProtocolError(format string, args ...any) *Error {
	return newError(KindProtocol, format, args...)
}

func EngineError(format string, args ...any) *Error {
	return newError(KindEngine, format, args...)
}

func PositionError(format string, args ...any) *Error {
	return newError(KindPosition, format, args...)
}

func MoveError(format string, args ...any) *Error {
	return newError(KindMove, format, args...)
}

func SearchError(format string, args ...any) *Error {
	return newError(KindSearch, format, args...)
}

func ConfigurationError(format string, args ...any) *Error {
	return newError(KindConfiguration, format, args...)
}

func InternalError(format string, args ...any) *Error {
	return newError(KindInternal, format, args...)
}

// IOError wraps a read or write failure. Fatal IO errors terminate the loop.
func IOError(err error, fatal bool) *Error {
	return &Error{Kind: KindIO, Message: err.Error(), Fatal: fatal, Err: err}
}

// FFIError wraps a failure raised inside the engine core boundary.
func FFIError(op string, err error) *Error {
	return &Error{Kind: KindFFI, Op: op, Message: fmt.Sprintf("%s failed: %v", op, err), Err: err}
}

// TimeoutError reports an operation that exceeded its budget.
func TimeoutError(op string, d time.Duration) *Error {
	return &Error{Kind: KindTimeout, Op: op, Message: op + " timed out", Timeout: d}
}

// ResourceError reports an exhaustion heuristic that fired.
func ResourceError(resource, format string, args ...any) *Error {
	e := newError(KindResource, format, args...)
	e.Resource = resource
	return e
}

// Wrap attaches a kind to an arbitrary error, preserving an existing *Error.
func Wrap(kind ErrorKind, op string, err error) *Error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		if de.Op == "" {
			return de.WithOp(op)
		}
		return de
	}
	return &Error{Kind: kind, Op: op, Message: err.Error(), Err: err}
}

// KindOf extracts the error kind, defaulting to KindInternal.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// IsKind reports whether err is a domain error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var de *Error
	return errors.As(err, &de) && de.Kind == kind
}
