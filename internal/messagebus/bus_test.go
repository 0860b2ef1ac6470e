package messagebus

import (
	"context"
	"sync"
	"testing"
	"time"

	"acr/internal/shared/clock"
)

// fakeClock mirrors the registry package's deterministic test clock:
// AfterFunc callbacks fire synchronously from Advance.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	owner   *fakeClock
	fireAt  time.Time
	fn      func()
	stopped bool
}

func newFakeClock(start time.Time) *fakeClock { return &fakeClock{now: start} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, fn func()) clock.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{owner: c, fireAt: c.now.Add(d), fn: fn}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	was := !t.stopped
	t.stopped = true
	return was
}

func (t *fakeTimer) Reset(d time.Duration) bool {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	was := !t.stopped
	t.stopped = false
	t.fireAt = t.owner.now.Add(d)
	return was
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	target := c.now
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var due *fakeTimer
		for _, t := range c.timers {
			if !t.stopped && !t.fireAt.After(target) {
				due = t
				t.stopped = true
				break
			}
		}
		c.mu.Unlock()
		if due == nil {
			return
		}
		due.fn()
	}
}

func newTestBus(fc *fakeClock) *Bus {
	b := New(Config{Clock: fc, ProcessingTick: time.Second})
	return b
}

func TestPriorityOrderingWithoutHandler(t *testing.T) {
	fc := newFakeClock(time.Now())
	b := newTestBus(fc)
	defer b.Stop()

	b.SendToAgent("sender", "R", "low", "low-body", PriorityLow, false, 0)
	b.SendToAgent("sender", "R", "crit", "crit-body", PriorityCritical, false, 0)
	b.SendToAgent("sender", "R", "norm", "norm-body", PriorityNormal, false, 0)

	msgs := b.GetMessages("R")
	if len(msgs) != 3 {
		t.Fatalf("expected 3 queued messages, got %d", len(msgs))
	}
	want := []string{"crit", "norm", "low"}
	for i, w := range want {
		if msgs[i].Subject != w {
			t.Fatalf("position %d: expected %q, got %q", i, w, msgs[i].Subject)
		}
	}
}

func TestBroadcastZeroRecipients(t *testing.T) {
	fc := newFakeClock(time.Now())
	b := New(Config{Clock: fc, ProcessingTick: time.Second, LiveRecipients: func() []string { return nil }})
	defer b.Stop()

	b.BroadcastToAll("sender", "hello", "body", PriorityNormal, 0)
	stats := b.GetStats()
	if stats.BroadcastCount != 1 {
		t.Fatalf("expected exactly one logical broadcast, got %d", stats.BroadcastCount)
	}
	history := b.GetHistory(HistoryFilter{Type: TypeBroadcast})
	if len(history) != 1 {
		t.Fatalf("expected exactly one broadcast history entry, got %d", len(history))
	}
}

func TestBroadcastExcludesSenderAndFansOut(t *testing.T) {
	fc := newFakeClock(time.Now())
	live := []string{"sender", "r1", "r2"}
	b := New(Config{Clock: fc, ProcessingTick: time.Second, LiveRecipients: func() []string { return live }})
	defer b.Stop()

	b.BroadcastToAll("sender", "hello", "body", PriorityNormal, 0)
	if len(b.GetMessages("sender")) != 0 {
		t.Fatalf("sender should not receive its own broadcast")
	}
	if len(b.GetMessages("r1")) != 1 || len(b.GetMessages("r2")) != 1 {
		t.Fatalf("expected both other live recipients to receive a clone")
	}
}

func TestHandlerDeliveryAutoAcknowledgesWithoutRequiresAck(t *testing.T) {
	fc := newFakeClock(time.Now())
	b := New(Config{Clock: fc, ProcessingTick: time.Second})
	defer b.Stop()

	received := make(chan Message, 1)
	b.RegisterHandler("R", func(msg Message) error {
		received <- msg
		return nil
	})
	b.SendToAgent("sender", "R", "hi", "body", PriorityNormal, false, 0)

	fc.Advance(time.Second)
	select {
	case msg := <-received:
		if msg.Subject != "hi" {
			t.Fatalf("unexpected message delivered: %+v", msg)
		}
	default:
		t.Fatalf("expected handler invocation after tick")
	}

	stats := b.GetStats()
	if stats.TotalDelivered != 1 {
		t.Fatalf("expected one delivered message, got %d", stats.TotalDelivered)
	}
}

func TestMessageExpiry(t *testing.T) {
	fc := newFakeClock(time.Now())
	b := New(Config{Clock: fc, ProcessingTick: time.Second})
	defer b.Stop()

	b.RegisterHandler("R", func(Message) error { return nil })
	b.SendToAgent("sender", "R", "stale", "body", PriorityNormal, false, 10*time.Millisecond)

	fc.Advance(time.Second)
	stats := b.GetStats()
	if stats.TotalExpired != 1 {
		t.Fatalf("expected one expired message, got %d", stats.TotalExpired)
	}
	history := b.GetHistory(HistoryFilter{Type: TypeDirect})
	if len(history) != 1 || history[0].Status != StatusExpired {
		t.Fatalf("expected history to record expired status, got %+v", history)
	}
}

func TestRequestResponseRoundTrip(t *testing.T) {
	fc := newFakeClock(time.Now())
	b := New(Config{Clock: fc, ProcessingTick: time.Second, DefaultRequestTimeout: time.Minute})
	defer b.Stop()

	b.RegisterRequestHandler("R", func(msg Message) (any, error) {
		return "pong:" + msg.Subject, nil
	})

	resultCh := make(chan any, 1)
	errCh := make(chan error, 1)
	go func() {
		body, err := b.SendRequest(context.Background(), "caller", "R", "ping", nil, PriorityNormal, 0)
		resultCh <- body
		errCh <- err
	}()

	// Give the goroutine a chance to enqueue before advancing the clock.
	time.Sleep(10 * time.Millisecond)
	fc.Advance(time.Second)

	select {
	case body := <-resultCh:
		if err := <-errCh; err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if body != "pong:ping" {
			t.Fatalf("unexpected response body: %v", body)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for request/response round trip")
	}
}

func TestRequestTimeout(t *testing.T) {
	fc := newFakeClock(time.Now())
	b := New(Config{Clock: fc, ProcessingTick: time.Second})
	defer b.Stop()

	resultCh := make(chan error, 1)
	go func() {
		_, err := b.SendRequest(context.Background(), "caller", "R", "ping", nil, PriorityNormal, 5*time.Second)
		resultCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	fc.Advance(5 * time.Second)

	select {
	case err := <-resultCh:
		if err == nil {
			t.Fatalf("expected timeout error")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for request timeout to fire")
	}
}
