package domain

import "time"

// MinVoteDuration is the shortest vote window the controller will schedule.
const MinVoteDuration = 5 * time.Second

// MinAutoRepeatDelay is the shortest cooldown before the next cycle starts.
const MinAutoRepeatDelay = 20 * time.Second

// TimerKind identifies which deadline a timer tracks.
type TimerKind int

const (
	// TimerNone means no timer is active.
	TimerNone TimerKind = iota
	// TimerVote counts down the vote phase.
	TimerVote
	// TimerAutoRepeat counts down to the next automatic cycle start.
	TimerAutoRepeat
)

// String returns the lowercase timer kind name.
func (k TimerKind) String() string {
	switch k {
	case TimerVote:
		return "vote"
	case TimerAutoRepeat:
		return "auto-repeat"
	default:
		return "none"
	}
}

// Scheduler schedules fn once after delay and returns a cancel function.
// Cancel must be safe to call after fn has fired.
type Scheduler func(delay time.Duration, fn func()) (cancel func())

// AfterFuncScheduler is the production Scheduler backed by time.AfterFunc.
func AfterFuncScheduler(delay time.Duration, fn func()) func() {
	timer := time.AfterFunc(delay, fn)
	return func() { timer.Stop() }
}

// TimerSnapshot is a read-only projection of the active timer.
type TimerSnapshot struct {
	Kind      TimerKind     `json:"kind"`
	Deadline  time.Time     `json:"deadline"`
	Paused    bool          `json:"paused"`
	Remaining time.Duration `json:"remaining"`
}

type autoRepeatConfig struct {
	delay  time.Duration
	onFire func()
}

// TimerController manages at most one active deadline: either the vote
// countdown (vote phase) or the auto-repeat cooldown (idle phase). Pausing
// captures the exact remaining duration so a later resume honors it
// regardless of how long the controller stayed paused.
//
// The controller is owned by the session loop. Scheduled callbacks fire on a
// timer goroutine, so callers must hand them back to the loop (for example by
// enqueueing a command) rather than mutating session state directly.
type TimerController struct {
	clock    func() time.Time
	schedule Scheduler

	kind      TimerKind
	deadline  time.Time
	cancel    func()
	onFire    func()
	paused    bool
	remaining time.Duration

	autoRepeat *autoRepeatConfig
}

// NewTimerController creates a controller with an injected clock and
// scheduler. Nil arguments fall back to the real clock and time.AfterFunc.
func NewTimerController(clock func() time.Time, schedule Scheduler) *TimerController {
	if clock == nil {
		clock = time.Now
	}
	if schedule == nil {
		schedule = AfterFuncScheduler
	}
	return &TimerController{clock: clock, schedule: schedule}
}

// StartVoteTimer schedules onExpire once after duration, clamped to
// MinVoteDuration. Any previously active timer is cancelled and replaced.
func (c *TimerController) StartVoteTimer(duration time.Duration, onExpire func()) {
	if duration < MinVoteDuration {
		duration = MinVoteDuration
	}
	c.cancelActive()
	c.paused = false
	c.remaining = 0
	c.kind = TimerVote
	c.onFire = onExpire
	c.deadline = c.clock().Add(duration)
	c.cancel = c.schedule(duration, onExpire)
}

// StartAutoRepeat schedules onFire once after delay, clamped to
// MinAutoRepeatDelay, and records the absolute next-start instant for
// display. The configuration is remembered so Resume can restart a fresh
// cooldown when no paused remainder exists.
func (c *TimerController) StartAutoRepeat(delay time.Duration, onFire func()) {
	if delay < MinAutoRepeatDelay {
		delay = MinAutoRepeatDelay
	}
	c.cancelActive()
	c.paused = false
	c.remaining = 0
	c.kind = TimerAutoRepeat
	c.onFire = onFire
	c.autoRepeat = &autoRepeatConfig{delay: delay, onFire: onFire}
	c.deadline = c.clock().Add(delay)
	c.cancel = c.schedule(delay, onFire)
}

// Pause cancels the active timer and stores its remaining duration, clamped
// to zero. Pausing while already paused or with no active timer is a no-op.
func (c *TimerController) Pause() {
	if c.paused || c.kind == TimerNone {
		c.paused = true
		return
	}
	remaining := c.deadline.Sub(c.clock())
	if remaining < 0 {
		remaining = 0
	}
	c.cancelActive()
	c.paused = true
	c.remaining = remaining
}

// Resume reschedules the paused timer for exactly the stored remaining
// duration from now. When nothing was stored but auto-repeat has been
// configured, a fresh cooldown starts from the full configured delay.
func (c *TimerController) Resume() {
	if !c.paused {
		return
	}
	c.paused = false

	if c.kind != TimerNone && c.onFire != nil {
		remaining := c.remaining
		c.remaining = 0
		c.deadline = c.clock().Add(remaining)
		c.cancel = c.schedule(remaining, c.onFire)
		return
	}

	if c.autoRepeat != nil {
		c.StartAutoRepeat(c.autoRepeat.delay, c.autoRepeat.onFire)
	}
}

// CancelVoteTimer stops the vote countdown if it is the active timer. Used on
// the vote -> combine transition so the deadline cannot fire mid-merge.
func (c *TimerController) CancelVoteTimer() {
	if c.kind != TimerVote {
		return
	}
	c.cancelActive()
	c.clearActive()
}

// CancelAll stops both timers and clears every stored deadline or remainder.
// Used on a forced return to idle.
func (c *TimerController) CancelAll() {
	c.cancelActive()
	c.clearActive()
	c.paused = false
	c.autoRepeat = nil
}

// Paused reports whether the controller is paused.
func (c *TimerController) Paused() bool {
	return c.paused
}

// Active returns the kind of the currently tracked timer, including a paused
// one that still holds a remainder.
func (c *TimerController) Active() TimerKind {
	return c.kind
}

// Snapshot projects the tracked timer for observers. It returns nil when no
// timer is tracked.
func (c *TimerController) Snapshot() *TimerSnapshot {
	if c.kind == TimerNone {
		return nil
	}
	snapshot := &TimerSnapshot{
		Kind:   c.kind,
		Paused: c.paused,
	}
	if c.paused {
		snapshot.Remaining = c.remaining
	} else {
		snapshot.Deadline = c.deadline
	}
	return snapshot
}

func (c *TimerController) cancelActive() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *TimerController) clearActive() {
	c.kind = TimerNone
	c.deadline = time.Time{}
	c.cancel = nil
	c.onFire = nil
	c.remaining = 0
}
