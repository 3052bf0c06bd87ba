/*
Package opera is a UCI chess engine coordination layer.

It sits between a chess GUI speaking the Universal Chess Interface over
stdin/stdout and an engine core that owns the board and the search. Opera
sanitizes and parses every input line, keeps the engine lifecycle in a
strict state machine, budgets search time, and writes protocol responses
without ever blocking input handling.

# Architecture

  - pkg/uci: sanitizer, tokenizer, parser and response rendering.
  - pkg/state: the lifecycle state machine.
  - pkg/timectl: time policies and the search timer.
  - pkg/engine: the command dispatcher, search worker and error recovery.
  - pkg/runner: the event loop over stdin/stdout.
  - pkg/adapters: the notnil/chess engine core and the analysis caches.

# Usage

	eng, err := opera.New(ctx)
	if err != nil {
		log.Fatal(err)
	}
	defer eng.Close()

	// Serve the protocol until "quit" or end of input.
	if err := eng.Run(ctx, os.Stdin, os.Stdout); err != nil {
		log.Fatal(err)
	}

Diagnostics are written to stderr through log/slog; stdout carries
protocol lines only.
*/
package opera
