package repl

import (
	"bytes"
	"io"
	"sync"
)

// Sink is the writer handed to the print builtin. It forwards to its
// underlying writer until [Sink.Capture] is called, then buffers output
// until drained.
type Sink struct {
	mu        sync.Mutex
	w         io.Writer
	buf       bytes.Buffer
	capturing bool
}

// NewSink returns a Sink that forwards to w.
func NewSink(w io.Writer) *Sink { return &Sink{w: w} }

// Write implements io.Writer.
func (s *Sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.capturing {
		return s.buf.Write(p)
	}

	return s.w.Write(p)
}

// Capture starts buffering writes.
func (s *Sink) Capture() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.capturing = true
}

// Drain returns and clears the buffered output.
func (s *Sink) Drain() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.buf.String()
	s.buf.Reset()

	return out
}
