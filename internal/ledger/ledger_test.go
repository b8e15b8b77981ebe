package ledger

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/flitsinc/go-bridge/internal/schema"
)

func mustAnswer(t *testing.T, sink *Sink) schema.Answer {
	t.Helper()
	select {
	case ans := <-sink.Wait():
		return ans
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for answer")
		return schema.Answer{}
	}
}

func assertNoAnswer(t *testing.T, sink *Sink, wait time.Duration) {
	t.Helper()
	select {
	case ans := <-sink.Wait():
		t.Fatalf("unexpected answer: %+v", ans)
	case <-time.After(wait):
	}
}

func TestResolveByExplicitID(t *testing.T) {
	l := New()
	sink := NewSink()
	l.Register("req-1", sink, 0)

	if err := l.Resolve("req-1", schema.Continue()); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	ans := mustAnswer(t, sink)
	if ans.Action != schema.ActionContinue {
		t.Fatalf("unexpected action %q", ans.Action)
	}
	if l.Len() != 0 {
		t.Fatalf("entry not removed")
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	l := New()
	sink := NewSink()
	l.Register("req-1", sink, 0)

	if err := l.Resolve("req-1", schema.End()); err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	if err := l.Resolve("req-1", schema.Continue()); !errors.Is(err, ErrNotPending) {
		t.Fatalf("second resolve should report ErrNotPending, got %v", err)
	}
	ans := mustAnswer(t, sink)
	if ans.Action != schema.ActionEnd {
		t.Fatalf("unexpected action %q", ans.Action)
	}
	assertNoAnswer(t, sink, 50*time.Millisecond)
}

func TestSupersessionResolvesPriorHolder(t *testing.T) {
	l := New()
	first := NewSink()
	second := NewSink()

	l.Register("req-1", first, 0)
	l.Register("req-1", second, 0)

	ans := mustAnswer(t, first)
	if ans.Action != schema.ActionError || !strings.Contains(ans.Error, "superseded") {
		t.Fatalf("expected superseded error, got %+v", ans)
	}

	if err := l.Resolve("req-1", schema.Instruction("real answer", nil)); err != nil {
		t.Fatalf("resolve second: %v", err)
	}
	ans = mustAnswer(t, second)
	if ans.Action != schema.ActionInstruction || ans.Text != "real answer" {
		t.Fatalf("second holder did not get the real answer: %+v", ans)
	}
}

func TestActiveIDFallback(t *testing.T) {
	l := New()
	sink := NewSink()
	l.Register("req-1", sink, 0)

	if got := l.ActiveID(); got != "req-1" {
		t.Fatalf("active id %q", got)
	}
	if err := l.Resolve("", schema.Continue()); err != nil {
		t.Fatalf("resolve via fallback: %v", err)
	}
	if got := l.ActiveID(); got != "" {
		t.Fatalf("active id not cleared, got %q", got)
	}
}

// With two untagged pending requests, the fallback targets the last
// registrant. This is the documented misattribution hazard: the older request
// stays pending.
func TestActiveIDFallbackIsLastRegistrantWins(t *testing.T) {
	l := New()
	older := NewSink()
	newer := NewSink()
	l.Register("req-a", older, 0)
	l.Register("req-b", newer, 0)

	if err := l.Resolve("", schema.Continue()); err != nil {
		t.Fatalf("resolve via fallback: %v", err)
	}
	ans := mustAnswer(t, newer)
	if ans.Action != schema.ActionContinue {
		t.Fatalf("unexpected action %q", ans.Action)
	}
	assertNoAnswer(t, older, 50*time.Millisecond)
	if l.Len() != 1 {
		t.Fatalf("older request should still be pending")
	}
}

func TestTimeoutResolves(t *testing.T) {
	l := New()
	sink := NewSink()
	l.Register("req-1", sink, 20*time.Millisecond)

	ans := mustAnswer(t, sink)
	if ans.Action != schema.ActionError || !strings.Contains(ans.Error, "timed out") {
		t.Fatalf("expected timeout error, got %+v", ans)
	}
	if l.Len() != 0 {
		t.Fatalf("entry not removed after timeout")
	}
}

func TestUnboundedRequestNeverTimesOut(t *testing.T) {
	l := New()
	sink := NewSink()
	l.Register("req-1", sink, 0)
	assertNoAnswer(t, sink, 100*time.Millisecond)
}

func TestTimerCancelledOnResolve(t *testing.T) {
	l := New()
	sink := NewSink()
	l.Register("req-1", sink, 30*time.Millisecond)

	if err := l.Resolve("req-1", schema.Continue()); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	ans := mustAnswer(t, sink)
	if ans.Action != schema.ActionContinue {
		t.Fatalf("unexpected action %q", ans.Action)
	}
	// Let the original deadline pass; the timer must not deliver a second
	// answer.
	assertNoAnswer(t, sink, 80*time.Millisecond)
}

func TestTimerDoesNotKillReRegisteredID(t *testing.T) {
	l := New()
	first := NewSink()
	l.Register("req-1", first, 15*time.Millisecond)

	// Supersede just before the deadline, then make sure the fresh entry
	// survives the old timer's window.
	second := NewSink()
	l.Register("req-1", second, 0)
	mustAnswer(t, first)

	assertNoAnswer(t, second, 80*time.Millisecond)
	if l.Len() != 1 {
		t.Fatalf("fresh entry should still be pending")
	}
}

func TestShutdownDrainsAllPending(t *testing.T) {
	l := New()
	sinks := make([]*Sink, 5)
	for i := range sinks {
		sinks[i] = NewSink()
		l.Register(string(rune('a'+i)), sinks[i], 0)
	}

	l.Shutdown()

	for i, sink := range sinks {
		ans := mustAnswer(t, sink)
		if ans.Action != schema.ActionError || !strings.Contains(ans.Error, "shutting down") {
			t.Fatalf("sink %d: expected shutdown error, got %+v", i, ans)
		}
	}
	if l.Len() != 0 {
		t.Fatalf("pending entries left after shutdown")
	}
}

// Every resolution path fires at once; exactly one terminal answer may win.
func TestSingleResolutionUnderContention(t *testing.T) {
	l := New()
	sink := NewSink()
	l.Register("req-1", sink, time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Resolve("req-1", schema.Continue())
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		l.Shutdown()
	}()
	wg.Wait()

	mustAnswer(t, sink)
	assertNoAnswer(t, sink, 50*time.Millisecond)
	if !sink.Terminated() {
		t.Fatalf("sink should be terminated")
	}
}

func TestAbandonTerminatesSink(t *testing.T) {
	l := New()
	sink := NewSink()
	l.Register("req-1", sink, 0)

	l.Abandon("req-1")
	if !sink.Terminated() {
		t.Fatalf("sink should be terminated after abandon")
	}
	if err := l.Resolve("req-1", schema.Continue()); !errors.Is(err, ErrNotPending) {
		t.Fatalf("late resolve should report ErrNotPending, got %v", err)
	}
}
