// Package state holds the engine's lifecycle state machine.
//
// The Machine is the single shared mutable resource of the engine. The
// current state is read with lock-free loads and changed only through
// TransitionTo, which validates the move against the transition table and
// publishes a StateChangeEvent. Configuration sits behind a read-mostly
// lock because only setoption writes it.
package state
