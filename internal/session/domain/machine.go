package domain

import "time"

// Session owns the mutable cycle state for one crowd party: the phase, the
// submission ledger, and the timers. All mutation goes through its methods so
// the phase guard stays in one place; there are no package-level globals.
type Session struct {
	phase  Phase
	ledger *Ledger
	timers *TimerController
}

// NewSession creates an idle session. Nil collaborators fall back to
// real-clock defaults.
func NewSession(ledger *Ledger, timers *TimerController) *Session {
	if ledger == nil {
		ledger = NewLedger(time.Now)
	}
	if timers == nil {
		timers = NewTimerController(nil, nil)
	}
	return &Session{
		phase:  PhaseIdle,
		ledger: ledger,
		timers: timers,
	}
}

// Phase returns the current phase.
func (s *Session) Phase() Phase {
	return s.phase
}

// Ledger returns the session's submission ledger.
func (s *Session) Ledger() *Ledger {
	return s.ledger
}

// Timers returns the session's timer controller.
func (s *Session) Timers() *TimerController {
	return s.timers
}

// ToVote transitions idle -> vote and clears the ledger so no submissions
// carry over from the previous cycle. It reports whether the transition
// happened; any phase other than idle leaves the session unchanged.
func (s *Session) ToVote() bool {
	if s.phase != PhaseIdle {
		return false
	}
	s.ledger.Clear()
	s.phase = PhaseVote
	return true
}

// ToCombine transitions vote -> combine and cancels the vote countdown so an
// in-flight deadline cannot fire mid-merge. It reports whether the transition
// happened.
func (s *Session) ToCombine() bool {
	if s.phase != PhaseVote {
		return false
	}
	s.timers.CancelVoteTimer()
	s.phase = PhaseCombine
	return true
}

// ToIdle forces the session back to idle from any phase, cancelling all
// timers and stored deadline state. It always succeeds and is idempotent.
func (s *Session) ToIdle() {
	s.timers.CancelAll()
	s.phase = PhaseIdle
}
