/*
Package runner implements the event loop that connects the engine to a GUI.

It is the bridge between the command dispatcher (pkg/engine) and the outside
world: lines arrive on stdin, responses leave on stdout, and diagnostics go
to the logger on stderr.

# Key Components

  - Runner: multiplexes stdin lines, dispatcher responses, shutdown signals
    and a maintenance tick in a single loop.
  - SignalManager: turns SIGINT/SIGTERM into a graceful shutdown.
  - SanitizeInput: the first line of defense applied to every raw line.
  - Stats: counters kept for observability only.

# Usage

	r := runner.New(eng,
		runner.WithInput(os.Stdin),
		runner.WithOutput(os.Stdout),
		runner.WithLogger(logger),
	)

	if err := r.Run(ctx); err != nil {
		log.Fatal(err)
	}

End of input is a normal shutdown: pending responses are drained for up to
the shutdown timeout and Run returns nil.
*/
package runner
