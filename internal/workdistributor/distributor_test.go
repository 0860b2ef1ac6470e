package workdistributor

import (
	"sync"
	"testing"
	"time"

	"acr/internal/registry"
	"acr/internal/shared/clock"
)

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

func newTestRegistry(fc *fakeClock) *registry.Registry {
	return registry.New(registry.Config{Clock: fc, HeartbeatInterval: time.Hour})
}

func registerActiveAgent(t *testing.T, r *registry.Registry, id string, role registry.Role) {
	t.Helper()
	if _, err := r.Register(id, role, nil, "", "cli", "s1", nil); err != nil {
		t.Fatalf("register %s: %v", id, err)
	}
	active := registry.StatusActive
	r.Heartbeat(id, &active, nil)
}

func TestOptimisticClaimRace(t *testing.T) {
	fc := newFakeClock(time.Now())
	r := newTestRegistry(fc)
	registerActiveAgent(t, r, "A", registry.RoleImplementer)
	registerActiveAgent(t, r, "B", registry.RoleImplementer)

	d := New(Config{Registry: r, Clock: fc})
	task, err := d.CreateTask("T1", "first task", CreateOptions{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	resA := d.ClaimTask(task.ID, "A", nil)
	resB := d.ClaimTask(task.ID, "B", nil)

	if resA.Success == resB.Success {
		t.Fatalf("expected exactly one claim to succeed, got A=%v B=%v", resA.Success, resB.Success)
	}
	winner, loser := resA, resB
	if resB.Success {
		winner, loser = resB, resA
	}
	if winner.Task.ClaimVersion != 1 {
		t.Fatalf("expected winning claim version 1, got %d", winner.Task.ClaimVersion)
	}
	if loser.Conflict == nil || loser.Conflict.ClaimVersion != 1 {
		t.Fatalf("expected loser conflict to name version 1, got %+v", loser.Conflict)
	}
}

func TestDependencyUnblock(t *testing.T) {
	fc := newFakeClock(time.Now())
	r := newTestRegistry(fc)
	registerActiveAgent(t, r, "A", registry.RoleImplementer)

	d := New(Config{Registry: r, Clock: fc})
	t1, _ := d.CreateTask("T1", "", CreateOptions{})
	t2, err := d.CreateTask("T2", "", CreateOptions{Dependencies: []string{t1.ID}})
	if err != nil {
		t.Fatalf("create t2: %v", err)
	}
	if t2.Status != StatusBlocked {
		t.Fatalf("expected T2 blocked, got %v", t2.Status)
	}

	claim := d.ClaimTask(t1.ID, "A", nil)
	if !claim.Success {
		t.Fatalf("expected claim success: %+v", claim)
	}
	if err := d.CompleteTask(t1.ID, "A", nil); err != nil {
		t.Fatalf("complete: %v", err)
	}

	updated, _ := d.Get(t2.ID)
	if updated.Status != StatusAvailable {
		t.Fatalf("expected T2 available after T1 completes, got %v", updated.Status)
	}
}

func TestClaimTimeoutReleasesTask(t *testing.T) {
	fc := newFakeClock(time.Now())
	r := newTestRegistry(fc)
	registerActiveAgent(t, r, "A", registry.RoleImplementer)

	d := New(Config{Registry: r, Clock: fc, ClaimTimeout: time.Minute})
	task, _ := d.CreateTask("T1", "", CreateOptions{})
	claim := d.ClaimTask(task.ID, "A", nil)
	if !claim.Success {
		t.Fatalf("expected claim success: %+v", claim)
	}

	fc.Advance(time.Minute)

	updated, _ := d.Get(task.ID)
	if updated.Status != StatusAvailable || updated.ClaimedBy != "" {
		t.Fatalf("expected task released after claim timeout, got %+v", updated)
	}
	agent, _ := r.Get("A")
	if agent.CurrentTaskID != "" {
		t.Fatalf("expected agent's current task cleared after claim timeout")
	}
}

func TestClaimOnBlockedTaskFailsRegardlessOfVersion(t *testing.T) {
	fc := newFakeClock(time.Now())
	r := newTestRegistry(fc)
	registerActiveAgent(t, r, "A", registry.RoleImplementer)

	d := New(Config{Registry: r, Clock: fc})
	t1, _ := d.CreateTask("T1", "", CreateOptions{})
	t2, _ := d.CreateTask("T2", "", CreateOptions{Dependencies: []string{t1.ID}})

	expected := t2.ClaimVersion
	res := d.ClaimTask(t2.ID, "A", &expected)
	if res.Success || res.Reason != "dependencies_pending" {
		t.Fatalf("expected dependencies_pending failure, got %+v", res)
	}
}

func TestFailTaskRetriesThenFails(t *testing.T) {
	fc := newFakeClock(time.Now())
	r := newTestRegistry(fc)
	registerActiveAgent(t, r, "A", registry.RoleImplementer)

	d := New(Config{Registry: r, Clock: fc, MaxRetries: 2})
	task, _ := d.CreateTask("T1", "", CreateOptions{})
	d.ClaimTask(task.ID, "A", nil)

	if err := d.FailTask(task.ID, "A", errBoom); err != nil {
		t.Fatalf("fail: %v", err)
	}
	updated, _ := d.Get(task.ID)
	if updated.Status != StatusAvailable {
		t.Fatalf("expected retry to release task to available, got %v", updated.Status)
	}

	registerActiveAgent(t, r, "B", registry.RoleImplementer)
	d.ClaimTask(task.ID, "B", nil)
	if err := d.FailTask(task.ID, "B", errBoom); err != nil {
		t.Fatalf("fail: %v", err)
	}
	final, _ := d.Get(task.ID)
	if final.Status != StatusFailed {
		t.Fatalf("expected terminal failure after exhausting retries, got %v", final.Status)
	}
}

var errBoom = fakeErr("boom")

type fakeErr string

func (e fakeErr) Error() string { return string(e) }
