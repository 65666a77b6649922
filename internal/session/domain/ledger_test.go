package domain

import (
	"strings"
	"testing"
	"time"
)

func testClock(start time.Time) func() time.Time {
	current := start
	return func() time.Time {
		current = current.Add(time.Second)
		return current
	}
}

func TestSubmitRejectsEmptyAndOverlongText(t *testing.T) {
	ledger := NewLedger(nil)

	ledger.Submit("alice", "", false)
	ledger.Submit("alice", "   ", false)
	ledger.Submit("alice", strings.Repeat("x", MaxSubmissionLength+1), false)

	if ledger.Len() != 0 {
		t.Fatalf("expected empty ledger, got %d entries", ledger.Len())
	}
}

func TestSubmitAcceptsMaxLengthText(t *testing.T) {
	ledger := NewLedger(nil)

	ledger.Submit("alice", strings.Repeat("x", MaxSubmissionLength), false)

	if ledger.Len() != 1 {
		t.Fatalf("expected one entry, got %d", ledger.Len())
	}
}

func TestSubmitGrantsImplicitSelfVote(t *testing.T) {
	ledger := NewLedger(nil)

	ledger.Submit("Alice", "open the door", false)

	submissions := ledger.Submissions()
	if len(submissions) != 1 {
		t.Fatalf("expected one submission, got %d", len(submissions))
	}
	if got := submissions[0].Votes.Count(); got != 1 {
		t.Fatalf("expected implicit self-vote, got count %d", got)
	}
	if !submissions[0].Votes.Contains("alice") {
		t.Fatal("expected normalized self-vote in voter set")
	}
}

func TestResubmitReplacesTextAndKeepsSingleSelfVote(t *testing.T) {
	ledger := NewLedger(testClock(time.Unix(1000, 0)))

	ledger.Submit("Alice", "open the door", false)
	first := ledger.Submissions()[0].CreatedAt
	ledger.Submit("ALICE", "search the room", false)

	submissions := ledger.Submissions()
	if len(submissions) != 1 {
		t.Fatalf("expected resubmit to replace, got %d entries", len(submissions))
	}
	if submissions[0].Text != "search the room" {
		t.Fatalf("expected replaced text, got %q", submissions[0].Text)
	}
	if !submissions[0].CreatedAt.After(first) {
		t.Fatal("expected resubmit to refresh timestamp")
	}
	if got := submissions[0].Votes.Count(); got != 1 {
		t.Fatalf("expected exactly one self-vote after resubmit, got %d", got)
	}
}

func TestVoteDeduplicatesInNormalMode(t *testing.T) {
	ledger := NewLedger(nil)

	ledger.Submit("alice", "open the door", false)
	ledger.Vote("bob", "alice", false)
	ledger.Vote("BOB", "Alice", false)

	if got := ledger.Submissions()[0].Votes.Count(); got != 2 {
		t.Fatalf("expected repeat vote to be a no-op, got count %d", got)
	}
}

func TestVoteForUnknownTargetIsNoOp(t *testing.T) {
	ledger := NewLedger(nil)

	ledger.Submit("alice", "open the door", false)
	ledger.Vote("bob", "carol", false)

	if got := ledger.Submissions()[0].Votes.Count(); got != 1 {
		t.Fatalf("expected count unchanged, got %d", got)
	}
}

func TestVoteAllowsExplicitSelfVoteTarget(t *testing.T) {
	// A submitter already carries their implicit self-vote, so an explicit
	// +1 at their own name is absorbed by set semantics rather than blocked.
	ledger := NewLedger(nil)

	ledger.Submit("alice", "open the door", false)
	ledger.Vote("alice", "alice", false)

	if got := ledger.Submissions()[0].Votes.Count(); got != 1 {
		t.Fatalf("expected self-vote to dedupe, got %d", got)
	}
}

func TestDebugModeAppendsPerSubmission(t *testing.T) {
	ledger := NewLedger(nil)

	ledger.Submit("alice", "open the door", true)
	ledger.Submit("alice", "search the room", true)

	if ledger.Len() != 2 {
		t.Fatalf("expected two debug entries, got %d", ledger.Len())
	}
}

func TestDebugModeCountsDuplicateVotes(t *testing.T) {
	ledger := NewLedger(nil)

	ledger.Submit("alice", "open the door", true)
	ledger.Vote("bob", "alice", true)
	if got := ledger.Submissions()[0].Votes.Count(); got != 2 {
		t.Fatalf("expected two voters, got %d", got)
	}

	ledger.Vote("bob", "alice", true)
	if got := ledger.Submissions()[0].Votes.Count(); got != 3 {
		t.Fatalf("expected duplicate vote to count, got %d", got)
	}

	ledger.Vote("bob", "alice", true)
	if got := ledger.Submissions()[0].Votes.Count(); got != 4 {
		t.Fatalf("expected counter to keep accumulating, got %d", got)
	}
}

func TestDebugVoteTargetsNewestSubmission(t *testing.T) {
	ledger := NewLedger(nil)

	ledger.Submit("alice", "open the door", true)
	ledger.Submit("alice", "search the room", true)
	ledger.Vote("bob", "alice", true)

	submissions := ledger.Submissions()
	if got := submissions[0].Votes.Count(); got != 1 {
		t.Fatalf("expected older entry untouched, got %d", got)
	}
	if got := submissions[1].Votes.Count(); got != 2 {
		t.Fatalf("expected newest entry voted, got %d", got)
	}
}

func TestClearDiscardsEverything(t *testing.T) {
	ledger := NewLedger(nil)

	ledger.Submit("alice", "open the door", false)
	ledger.Submit("bob", "search the room", false)
	ledger.Clear()

	if ledger.Len() != 0 {
		t.Fatalf("expected cleared ledger, got %d entries", ledger.Len())
	}
	ledger.Submit("alice", "try again", false)
	if ledger.Len() != 1 {
		t.Fatalf("expected ledger usable after clear, got %d entries", ledger.Len())
	}
}

func TestSnapshotHonorsLimitAndOrder(t *testing.T) {
	ledger := NewLedger(nil)

	ledger.Submit("alice", "open the door", false)
	ledger.Submit("bob", "search the room", false)
	ledger.Submit("carol", "light the torch", false)

	views := ledger.Snapshot(2)
	if len(views) != 2 {
		t.Fatalf("expected two views, got %d", len(views))
	}
	if views[0].User != "alice" || views[1].User != "bob" {
		t.Fatalf("expected insertion order, got %q then %q", views[0].User, views[1].User)
	}

	all := ledger.Snapshot(0)
	if len(all) != 3 {
		t.Fatalf("expected full snapshot with no limit, got %d", len(all))
	}
}
