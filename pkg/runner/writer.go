package runner

import (
	"bufio"
	"context"
	"io"
	"sync"
	"time"

	"github.com/aretw0/opera/pkg/domain"
)

// responseWriter writes one response per line and flushes after each.
type responseWriter struct {
	mu      sync.Mutex
	w       *bufio.Writer
	timeout time.Duration
}

func newResponseWriter(out io.Writer, timeout time.Duration) *responseWriter {
	return &responseWriter{w: bufio.NewWriter(out), timeout: timeout}
}

// WriteLine writes line under the write timeout. A timed out write keeps
// running in the background and holds back later writes until it ends.
func (rw *responseWriter) WriteLine(ctx context.Context, line string) error {
	done := make(chan error, 1)
	go func() { done <- rw.write(line) }()

	timer := time.NewTimer(rw.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			return domain.IOError(err, true).WithOp("write")
		}
		return nil
	case <-timer.C:
		return domain.TimeoutError("write", rw.timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (rw *responseWriter) write(line string) error {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	if _, err := rw.w.WriteString(line); err != nil {
		return err
	}
	if err := rw.w.WriteByte('\n'); err != nil {
		return err
	}
	return rw.w.Flush()
}

// Flush pushes out anything still buffered.
func (rw *responseWriter) Flush() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	if err := rw.w.Flush(); err != nil {
		return domain.IOError(err, true).WithOp("flush")
	}
	return nil
}
