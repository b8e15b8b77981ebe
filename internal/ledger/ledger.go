package ledger

import (
	"errors"
	"sync"
	"time"

	"github.com/flitsinc/go-bridge/internal/schema"
)

var ErrNotPending = errors.New("request not pending")

// Pending is one outstanding question awaiting a human answer.
type Pending struct {
	ID        string
	Sink      *Sink
	Deadline  time.Time // zero when the request is unbounded
	CreatedAt time.Time

	timer *time.Timer
}

// Ledger tracks in-flight requests. At most one entry exists per request id;
// registering a duplicate id supersedes the previous holder. The active id
// tracks the most recent registrant and serves as the fallback target for
// surface messages that omit an explicit id.
type Ledger struct {
	mu      sync.Mutex
	pending map[string]*Pending
	active  string
	nowFn   func() time.Time
}

type Option func(*Ledger)

func WithClock(nowFn func() time.Time) Option {
	return func(l *Ledger) {
		if nowFn != nil {
			l.nowFn = nowFn
		}
	}
}

func New(opts ...Option) *Ledger {
	l := &Ledger{
		pending: map[string]*Pending{},
		nowFn:   time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Register adds a pending request under id. If an entry already holds that id
// it is resolved with a superseded error before the new one takes its place,
// so a stale holder is always notified before a new holder can occupy the id.
// A positive timeout arms a timer that resolves the entry with a timeout
// error; zero means unbounded.
func (l *Ledger) Register(id string, sink *Sink, timeout time.Duration) *Pending {
	l.mu.Lock()
	defer l.mu.Unlock()

	if prev, ok := l.pending[id]; ok {
		l.removeLocked(prev)
		prev.Sink.Deliver(schema.Errorf("superseded by a newer request with the same id"))
	}

	now := l.nowFn()
	p := &Pending{ID: id, Sink: sink, CreatedAt: now}
	if timeout > 0 {
		p.Deadline = now.Add(timeout)
		p.timer = time.AfterFunc(timeout, func() { l.expire(id, p) })
	}
	l.pending[id] = p
	l.active = id
	return p
}

// Resolve delivers ans to the pending request with the given id. An empty id
// falls back to the active request (last registrant wins), which can
// misattribute an answer if two requests are pending and the surface does not
// tag its messages. Returns ErrNotPending when nothing matches or the entry
// already terminated through another path.
func (l *Ledger) Resolve(id string, ans schema.Answer) error {
	l.mu.Lock()
	if id == "" {
		id = l.active
	}
	p, ok := l.pending[id]
	if !ok {
		l.mu.Unlock()
		return ErrNotPending
	}
	l.removeLocked(p)
	l.mu.Unlock()

	if !p.Sink.Deliver(ans) {
		return ErrNotPending
	}
	return nil
}

// Abandon removes a request whose HTTP connection went away before any
// resolution. The sink is terminated so a late surface reply is a no-op.
func (l *Ledger) Abandon(id string) {
	_ = l.Resolve(id, schema.Errorf("request abandoned by the caller"))
}

// Shutdown resolves every remaining entry with a shutdown error so no agent
// connection is left hanging when the bridge goes away.
func (l *Ledger) Shutdown() {
	l.mu.Lock()
	drained := make([]*Pending, 0, len(l.pending))
	for _, p := range l.pending {
		drained = append(drained, p)
	}
	for _, p := range drained {
		l.removeLocked(p)
	}
	l.mu.Unlock()

	for _, p := range drained {
		p.Sink.Deliver(schema.Errorf("bridge is shutting down"))
	}
}

// Len reports how many requests are currently pending.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// ActiveID returns the fallback id for untagged surface messages.
func (l *Ledger) ActiveID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// expire is the timer callback. The pointer comparison guards against a timer
// that was already queued to run firing after its id was superseded and
// re-registered by a fresh entry.
func (l *Ledger) expire(id string, p *Pending) {
	l.mu.Lock()
	cur, ok := l.pending[id]
	if !ok || cur != p {
		l.mu.Unlock()
		return
	}
	l.removeLocked(cur)
	l.mu.Unlock()

	cur.Sink.Deliver(schema.Errorf("timed out waiting for a human answer"))
}

// removeLocked stops the timer before dropping the entry so a timeout can
// never fire against an entry that already terminated through another path.
func (l *Ledger) removeLocked(p *Pending) {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	delete(l.pending, p.ID)
	if l.active == p.ID {
		l.active = ""
	}
}
