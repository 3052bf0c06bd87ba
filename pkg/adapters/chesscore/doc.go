// Package chesscore implements ports.EngineCore on top of
// github.com/notnil/chess.
//
// The board, move legality and FEN handling come from notnil/chess. Search
// is an iterative-deepening alpha-beta with a capture-only quiescence
// stage, polled for cooperative cancellation. Every exported method runs
// behind a recover guard, so a fault inside the chess library surfaces as
// a typed Ffi error instead of a crash.
package chesscore
