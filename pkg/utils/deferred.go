// Package utils holds small helpers shared by the command line entry point.
package utils

import (
	"bytes"
	"io"
	"sync"
)

// DeferredWriter buffers log output while the terminal is owned by the TUI so
// it can be replayed after the program exits.
type DeferredWriter struct {
	mu    sync.Mutex
	lines [][]byte
}

// Write records a copy of p. It never fails.
func (w *DeferredWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.lines = append(w.lines, bytes.Clone(p))
	return len(p), nil
}

// Len returns the number of buffered writes.
func (w *DeferredWriter) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.lines)
}

// Flush writes every buffered entry to out in order and clears the buffer.
func (w *DeferredWriter) Flush(out io.Writer) error {
	w.mu.Lock()
	lines := w.lines
	w.lines = nil
	w.mu.Unlock()

	for _, line := range lines {
		if _, err := out.Write(line); err != nil {
			return err
		}
	}
	return nil
}
