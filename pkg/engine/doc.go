/*
Package engine is the command dispatcher of Opera.

An Engine owns the parser, the lifecycle state machine and the engine core.
It turns each protocol line into state transitions and core calls, and
publishes the resulting protocol lines on a lossy response topic.

Commands are processed strictly in arrival order by a single goroutine
(Run) that drains an inbound queue. ProcessCommand, StopSearch, Shutdown
and Reset enqueue a request and wait for its reply, so callers can bound
each dispatch with a context deadline.

Searches run on a worker goroutine so that "stop" is served while the
core is busy. Failures are mapped to a domain.RecoveryAction which the
engine executes before reporting the failure as "info string ERROR: ...".
*/
package engine
