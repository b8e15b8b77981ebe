package ready

import (
	"context"
	"sync"
	"time"
)

// Latch is the readiness rendezvous between the bridge and the presentation
// surface: a one-shot gate that the surface signals once per activation and
// that resets when the surface goes away.
type Latch struct {
	mu    sync.Mutex
	ready bool
	ch    chan struct{}
}

func NewLatch() *Latch {
	return &Latch{ch: make(chan struct{})}
}

// Signal marks the surface ready. Extra signals while already ready are
// no-ops.
func (l *Latch) Signal() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ready {
		return
	}
	l.ready = true
	close(l.ch)
}

// Reset rearms the latch so a subsequent activation must signal readiness
// again.
func (l *Latch) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.ready {
		return
	}
	l.ready = false
	l.ch = make(chan struct{})
}

// Ready reports the current state without waiting.
func (l *Latch) Ready() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ready
}

// WaitUntilReady blocks until the surface signals readiness, the timeout
// elapses, or ctx is done. It reports whether readiness was observed.
func (l *Latch) WaitUntilReady(ctx context.Context, timeout time.Duration) bool {
	l.mu.Lock()
	ready := l.ready
	ch := l.ch
	l.mu.Unlock()
	if ready {
		return true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ch:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}
