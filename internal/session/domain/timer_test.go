package domain

import (
	"testing"
	"time"
)

// fakeScheduler records scheduled tasks and lets tests fire or inspect them.
type fakeScheduler struct {
	tasks []*fakeTask
}

type fakeTask struct {
	delay     time.Duration
	fn        func()
	cancelled bool
}

func (s *fakeScheduler) schedule(delay time.Duration, fn func()) func() {
	task := &fakeTask{delay: delay, fn: fn}
	s.tasks = append(s.tasks, task)
	return func() { task.cancelled = true }
}

func (s *fakeScheduler) last() *fakeTask {
	if len(s.tasks) == 0 {
		return nil
	}
	return s.tasks[len(s.tasks)-1]
}

// manualClock advances only when the test says so.
type manualClock struct {
	now time.Time
}

func (c *manualClock) get() time.Time {
	return c.now
}

func (c *manualClock) advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestController() (*TimerController, *manualClock, *fakeScheduler) {
	clock := &manualClock{now: time.Unix(1000, 0)}
	scheduler := &fakeScheduler{}
	return NewTimerController(clock.get, scheduler.schedule), clock, scheduler
}

func TestStartVoteTimerClampsToMinimum(t *testing.T) {
	controller, _, scheduler := newTestController()

	controller.StartVoteTimer(3*time.Second, func() {})

	task := scheduler.last()
	if task == nil {
		t.Fatal("expected scheduled task")
	}
	if task.delay != MinVoteDuration {
		t.Fatalf("expected clamp to %v, got %v", MinVoteDuration, task.delay)
	}
}

func TestStartAutoRepeatClampsToMinimum(t *testing.T) {
	controller, _, scheduler := newTestController()

	controller.StartAutoRepeat(10*time.Second, func() {})

	task := scheduler.last()
	if task.delay != MinAutoRepeatDelay {
		t.Fatalf("expected clamp to %v, got %v", MinAutoRepeatDelay, task.delay)
	}
	if controller.Active() != TimerAutoRepeat {
		t.Fatalf("expected auto-repeat active, got %v", controller.Active())
	}
}

func TestStartVoteTimerReplacesExistingTimer(t *testing.T) {
	controller, _, scheduler := newTestController()

	controller.StartVoteTimer(30*time.Second, func() {})
	first := scheduler.last()
	controller.StartVoteTimer(60*time.Second, func() {})

	if !first.cancelled {
		t.Fatal("expected first timer to be cancelled")
	}
	if scheduler.last().delay != 60*time.Second {
		t.Fatalf("expected replacement delay, got %v", scheduler.last().delay)
	}
}

func TestPausePreservesExactRemaining(t *testing.T) {
	controller, clock, scheduler := newTestController()

	controller.StartVoteTimer(30*time.Second, func() {})
	clock.advance(20 * time.Second)
	controller.Pause()

	if !scheduler.last().cancelled {
		t.Fatal("expected scheduled callback cancelled on pause")
	}
	snapshot := controller.Snapshot()
	if snapshot == nil {
		t.Fatal("expected snapshot while paused")
	}
	if !snapshot.Paused {
		t.Fatal("expected paused snapshot")
	}
	if snapshot.Remaining != 10*time.Second {
		t.Fatalf("expected 10s remaining, got %v", snapshot.Remaining)
	}

	// An arbitrarily long pause must not erode the remainder.
	clock.advance(48 * time.Hour)
	controller.Resume()

	task := scheduler.last()
	if task.delay != 10*time.Second {
		t.Fatalf("expected resume to honor stored remainder, got %v", task.delay)
	}
	snapshot = controller.Snapshot()
	if snapshot.Paused {
		t.Fatal("expected running snapshot after resume")
	}
	if want := clock.get().Add(10 * time.Second); !snapshot.Deadline.Equal(want) {
		t.Fatalf("expected deadline %v, got %v", want, snapshot.Deadline)
	}
}

func TestPauseClampsNegativeRemainder(t *testing.T) {
	controller, clock, _ := newTestController()

	controller.StartVoteTimer(10*time.Second, func() {})
	clock.advance(15 * time.Second)
	controller.Pause()

	if got := controller.Snapshot().Remaining; got != 0 {
		t.Fatalf("expected remainder clamped to zero, got %v", got)
	}
}

func TestResumeWithoutRemainderRestartsAutoRepeat(t *testing.T) {
	controller, _, scheduler := newTestController()

	fired := 0
	controller.StartAutoRepeat(30*time.Second, func() { fired++ })
	controller.CancelVoteTimer() // no-op: auto-repeat is active
	controller.Pause()
	controller.Resume()

	// The paused auto-repeat resumes with its remainder.
	if scheduler.last().delay != 30*time.Second {
		t.Fatalf("expected full remainder, got %v", scheduler.last().delay)
	}

	// A pause with nothing tracked falls back to a fresh full cooldown.
	controller.CancelVoteTimer()
	controller.kind = TimerNone
	controller.onFire = nil
	controller.Pause()
	controller.Resume()
	if scheduler.last().delay != 30*time.Second {
		t.Fatalf("expected fresh full cooldown, got %v", scheduler.last().delay)
	}
	if controller.Active() != TimerAutoRepeat {
		t.Fatalf("expected auto-repeat tracked after fallback, got %v", controller.Active())
	}
}

func TestPauseResumeIdempotence(t *testing.T) {
	controller, clock, scheduler := newTestController()

	controller.StartVoteTimer(30*time.Second, func() {})
	clock.advance(5 * time.Second)
	controller.Pause()
	controller.Pause()

	if got := controller.Snapshot().Remaining; got != 25*time.Second {
		t.Fatalf("expected remainder unchanged by double pause, got %v", got)
	}

	controller.Resume()
	before := len(scheduler.tasks)
	controller.Resume()
	if len(scheduler.tasks) != before {
		t.Fatal("expected second resume to be a no-op")
	}
}

func TestCancelAllClearsEverything(t *testing.T) {
	controller, _, scheduler := newTestController()

	controller.StartAutoRepeat(30*time.Second, func() {})
	controller.CancelAll()

	if !scheduler.last().cancelled {
		t.Fatal("expected scheduled task cancelled")
	}
	if controller.Snapshot() != nil {
		t.Fatal("expected empty snapshot after cancel")
	}

	// Auto-repeat configuration must not survive a forced reset.
	controller.Pause()
	controller.Resume()
	if got := controller.Active(); got != TimerNone {
		t.Fatalf("expected no timer after reset, got %v", got)
	}
}

func TestCancelVoteTimerOnlyAffectsVoteTimer(t *testing.T) {
	controller, _, scheduler := newTestController()

	controller.StartVoteTimer(30*time.Second, func() {})
	controller.CancelVoteTimer()
	if !scheduler.last().cancelled {
		t.Fatal("expected vote timer cancelled")
	}
	if controller.Active() != TimerNone {
		t.Fatalf("expected no active timer, got %v", controller.Active())
	}

	controller.StartAutoRepeat(30*time.Second, func() {})
	controller.CancelVoteTimer()
	if scheduler.last().cancelled {
		t.Fatal("expected auto-repeat untouched")
	}
}
