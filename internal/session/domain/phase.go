package domain

// Phase describes the lifecycle state of a crowd cycle.
//
// Exactly one phase is active at a time. Transitions form a cycle:
// idle -> vote -> combine -> idle, with idle reachable from any phase as a
// forced abort.
type Phase int

const (
	// PhaseIdle is the rest state between cycles and the start state.
	PhaseIdle Phase = iota
	// PhaseVote accepts submissions and votes from chat.
	PhaseVote
	// PhaseCombine reduces the ledger to a single action.
	PhaseCombine
)

// String returns the lowercase phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseVote:
		return "vote"
	case PhaseCombine:
		return "combine"
	default:
		return "unknown"
	}
}
