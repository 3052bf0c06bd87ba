/*
Package domain contains the core types shared by every layer of the Opera engine.

It defines the lifecycle states and their transition table, the typed error
taxonomy with its recovery actions, the option-backed engine configuration and
the observability events. The package is kept pure and free of I/O.

# Key Entities

  - EngineState: Initializing, Ready, Searching, Pondering, Stopping, Error.
  - Error: a typed failure (Protocol, Position, Move, Timeout, ...) with a RecoveryAction.
  - EngineConfig: values set through "setoption" and echoed by "uci".
  - SearchContext: the lifetime of one "go" command.
  - LifecycleHooks: callbacks for logging and metrics.
*/
package domain
