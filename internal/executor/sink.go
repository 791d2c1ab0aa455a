package executor

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrSinkClosed is returned by writes after the sink has been released.
	ErrSinkClosed = errors.New("executor: output sink closed")
	// ErrOutputLimit is returned by a write that would exceed the sink's limit.
	ErrOutputLimit = errors.New("executor: output limit exceeded")
)

// Sink is the Output Sink for a single run: an append-only, call-scoped
// buffer the interpreter writes into instead of the process's stdout.
//
// A Sink is safe for concurrent use. The abandoned goroutine of a timed-out
// run may still hold it, which is why writes after Close are rejected rather
// than appended.
type Sink struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	limit  int
	closed bool
}

// NewSink acquires a fresh, empty sink. A limit <= 0 means unlimited.
func NewSink(limit int) *Sink {
	return &Sink{limit: limit}
}

// Write appends p. Once the limit is reached the write is truncated to what
// fits and ErrOutputLimit is returned.
func (s *Sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrSinkClosed
	}
	if s.limit > 0 && s.buf.Len()+len(p) > s.limit {
		room := s.limit - s.buf.Len()
		s.buf.Write(p[:room])
		return room, fmt.Errorf("%w (%d bytes)", ErrOutputLimit, s.limit)
	}
	return s.buf.Write(p)
}

// Close releases the sink. It is idempotent; contents stay readable.
func (s *Sink) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// String returns everything written so far.
func (s *Sink) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

// Len reports the number of bytes captured.
func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Len()
}
