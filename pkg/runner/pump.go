package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
)

type inputResult struct {
	text      string
	oversized bool
	err       error
}

// pump reads lines from r into the returned channel until EOF, a read
// error or ctx is done. The channel is closed on EOF. Lines longer than
// size are drained and delivered as oversized markers.
func pump(ctx context.Context, r io.Reader, size int) <-chan inputResult {
	out := make(chan inputResult)
	reader := bufio.NewReaderSize(r, size)

	send := func(res inputResult) bool {
		select {
		case out <- res:
			return true
		case <-ctx.Done():
			return false
		}
	}

	go func() {
		defer close(out)
		defer func() {
			if p := recover(); p != nil {
				send(inputResult{err: fmt.Errorf("input reader panicked: %v", p)})
			}
		}()
		for {
			line, oversized, err := readLine(reader)

			// If we got text (even with EOF), send it
			if line != "" || oversized {
				if !send(inputResult{text: line, oversized: oversized}) {
					return
				}
			}
			if err != nil {
				if errors.Is(err, io.EOF) {
					return
				}
				send(inputResult{err: err})
				return
			}
		}
	}()
	return out
}

// readLine returns one line without its terminator. A line that does not
// fit the reader's buffer is consumed up to its newline and discarded.
func readLine(r *bufio.Reader) (string, bool, error) {
	chunk, err := r.ReadSlice('\n')
	if !errors.Is(err, bufio.ErrBufferFull) {
		return string(chunk), false, err
	}
	for errors.Is(err, bufio.ErrBufferFull) {
		_, err = r.ReadSlice('\n')
	}
	return "", true, err
}
