// Package stack holds the daemon's bounded LIFO list of absolute paths.
//
// A Stack is owned by exactly one daemon and is not safe for concurrent
// use; the daemon serves one command at a time, so no locking is needed.
package stack

import (
	"github.com/arthur-debert/fls/pkg/errors"
)

// DefaultCapacity is the number of entries a stack holds when no capacity
// is configured.
const DefaultCapacity = 100

// Stack is a slice-backed LIFO. The top of the stack is the last element.
type Stack struct {
	entries  []string
	capacity int
}

// New returns an empty stack bounded by capacity. A non-positive capacity
// falls back to DefaultCapacity.
func New(capacity int) *Stack {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Stack{
		entries:  make([]string, 0, capacity),
		capacity: capacity,
	}
}

// Push adds entry on top. A full stack rejects the push without mutation.
func (s *Stack) Push(entry string) error {
	if s.Full() {
		return errors.Newf(errors.ErrStackFull, "stack holds %d entries", s.capacity)
	}
	s.entries = append(s.entries, entry)
	return nil
}

// Pop removes and returns the top entry.
func (s *Stack) Pop() (string, error) {
	top, err := s.Peek()
	if err != nil {
		return "", err
	}
	s.entries[len(s.entries)-1] = ""
	s.entries = s.entries[:len(s.entries)-1]
	return top, nil
}

// Peek returns the top entry without removing it.
func (s *Stack) Peek() (string, error) {
	if len(s.entries) == 0 {
		return "", errors.New(errors.ErrStackEmpty, "stack is empty")
	}
	return s.entries[len(s.entries)-1], nil
}

// Pick returns the entry n places below the top; 0 is the top.
func (s *Stack) Pick(n int) (string, error) {
	if n < 0 || n >= len(s.entries) {
		return "", errors.Newf(errors.ErrIndexOutOfRange, "index %d, depth %d", n, len(s.entries)).
			WithDetail("index", n)
	}
	return s.entries[len(s.entries)-1-n], nil
}

// Len returns the current depth.
func (s *Stack) Len() int {
	return len(s.entries)
}

// Cap returns the capacity bound.
func (s *Stack) Cap() int {
	return s.capacity
}

// Full reports whether another push would be rejected.
func (s *Stack) Full() bool {
	return len(s.entries) >= s.capacity
}
