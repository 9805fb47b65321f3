package id

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Sequence generates job identifiers of the form "<prefix>_<n>_<unix>".
// The counter orders submissions within a process; the timestamp keeps
// identifiers from colliding across restarts. Safe for concurrent use.
type Sequence struct {
	prefix  string
	counter atomic.Uint64
	now     func() time.Time
}

// NewSequence creates a Sequence whose identifiers start with prefix.
func NewSequence(prefix string) *Sequence {
	return &Sequence{prefix: prefix, now: time.Now}
}

// Next returns the next counter value and its formatted identifier.
func (s *Sequence) Next() (uint64, string) {
	n := s.counter.Add(1)
	return n, fmt.Sprintf("%s_%d_%d", s.prefix, n, s.now().Unix())
}

// Last returns the most recently issued counter value.
func (s *Sequence) Last() uint64 { return s.counter.Load() }
