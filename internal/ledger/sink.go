package ledger

import (
	"sync/atomic"

	"github.com/flitsinc/go-bridge/internal/schema"
)

// Sink carries exactly one terminal answer back to the HTTP exchange that
// created a request. A CAS guards delivery so racing resolution paths (human
// answer vs timer vs supersession vs shutdown) cannot double-write; the loser
// of the race becomes a no-op.
type Sink struct {
	done atomic.Bool
	ch   chan schema.Answer
}

func NewSink() *Sink {
	return &Sink{ch: make(chan schema.Answer, 1)}
}

// Deliver hands ans to the waiting exchange and reports whether this call won
// the race. The channel is buffered, so delivery never blocks even when the
// exchange has already gone away.
func (s *Sink) Deliver(ans schema.Answer) bool {
	if !s.done.CompareAndSwap(false, true) {
		return false
	}
	s.ch <- ans
	return true
}

// Terminated reports whether a terminal answer was already delivered.
func (s *Sink) Terminated() bool {
	return s.done.Load()
}

// Wait returns the channel the terminal answer arrives on.
func (s *Sink) Wait() <-chan schema.Answer {
	return s.ch
}
