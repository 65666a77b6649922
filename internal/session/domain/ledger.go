package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// MaxSubmissionLength caps submission text length in characters. Longer chat
// lines are dropped as noise rather than truncated.
const MaxSubmissionLength = 200

// VoteRecord tracks support for one submission.
//
// In tracked mode (the default) voters form a set keyed by normalized
// username, so repeat votes from the same user never change the count. In
// counted mode (debug) repeat votes accumulate in a counter that is decoupled
// from the set cardinality, which makes single-user demos workable.
type VoteRecord struct {
	order   []string
	voters  map[string]struct{}
	counted bool
	count   int
}

func newVoteRecord(voter string, counted bool) *VoteRecord {
	record := &VoteRecord{
		voters:  map[string]struct{}{voter: {}},
		order:   []string{voter},
		counted: counted,
	}
	return record
}

// Add records a vote from voter. It reports whether the record changed.
func (r *VoteRecord) Add(voter string) bool {
	if _, exists := r.voters[voter]; exists {
		if !r.counted {
			return false
		}
		if r.count < len(r.voters) {
			r.count = len(r.voters)
		}
		r.count++
		return true
	}
	r.voters[voter] = struct{}{}
	r.order = append(r.order, voter)
	return true
}

// Contains reports whether voter already supports this record.
func (r *VoteRecord) Contains(voter string) bool {
	_, exists := r.voters[voter]
	return exists
}

// Count returns the effective vote count: the duplicate-aware counter when it
// has materialized in counted mode, otherwise the voter-set size.
func (r *VoteRecord) Count() int {
	if r.counted && r.count > 0 {
		return r.count
	}
	return len(r.voters)
}

// Voters returns the distinct voters in arrival order.
func (r *VoteRecord) Voters() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Submission is one chat-sourced action suggestion for the current cycle.
type Submission struct {
	User      string
	Text      string
	CreatedAt time.Time
	Votes     *VoteRecord
}

// SubmissionView is a read-only projection of a submission for observers.
type SubmissionView struct {
	User      string    `json:"user"`
	Text      string    `json:"text"`
	Votes     int       `json:"votes"`
	CreatedAt time.Time `json:"createdAt"`
}

// Ledger collects the current cycle's submissions and their voters.
//
// The ledger is owned by the session loop and is not safe for concurrent
// mutation; observers receive copies via Snapshot.
type Ledger struct {
	entries []*Submission
	byUser  map[string]*Submission
	clock   func() time.Time
}

// NewLedger creates an empty ledger with an injected clock.
func NewLedger(clock func() time.Time) *Ledger {
	if clock == nil {
		clock = time.Now
	}
	return &Ledger{
		byUser: make(map[string]*Submission),
		clock:  clock,
	}
}

// NormalizeUser canonicalizes a chat identity for case-insensitive matching.
func NormalizeUser(user string) string {
	return strings.ToLower(strings.TrimSpace(user))
}

// Submit records text as user's suggestion for this cycle.
//
// Empty or over-length text is dropped silently; chat streams are noisy and
// malformed lines must not produce observable errors. In normal mode a repeat
// submission from the same user replaces the earlier text and timestamp while
// keeping the user's implicit self-vote. In debug mode every call appends a
// fresh submission.
func (l *Ledger) Submit(user, text string, debug bool) {
	text = strings.TrimSpace(text)
	if text == "" || utf8.RuneCountInString(text) > MaxSubmissionLength {
		return
	}
	key := NormalizeUser(user)
	if key == "" {
		return
	}

	now := l.clock().UTC()
	if !debug {
		if existing, ok := l.byUser[key]; ok {
			existing.Text = text
			existing.CreatedAt = now
			existing.Votes.Add(key)
			return
		}
	}

	submission := &Submission{
		User:      strings.TrimSpace(user),
		Text:      text,
		CreatedAt: now,
		Votes:     newVoteRecord(key, debug),
	}
	l.entries = append(l.entries, submission)
	if !debug {
		l.byUser[key] = submission
	}
}

// Vote records voter's support for target's submission.
//
// Votes for unknown targets are dropped silently. In normal mode a repeat
// vote from the same voter is a no-op; in debug mode it accumulates in the
// duplicate-vote counter. Nothing stops a voter from targeting their own
// submission.
func (l *Ledger) Vote(voter, target string, debug bool) {
	voterKey := NormalizeUser(voter)
	if voterKey == "" {
		return
	}
	submission := l.find(NormalizeUser(target))
	if submission == nil {
		return
	}
	submission.Votes.Add(voterKey)
}

// find returns the most recent submission owned by the normalized user key.
func (l *Ledger) find(key string) *Submission {
	if key == "" {
		return nil
	}
	if submission, ok := l.byUser[key]; ok {
		return submission
	}
	// Debug-mode entries are not indexed; scan newest-first.
	for i := len(l.entries) - 1; i >= 0; i-- {
		if NormalizeUser(l.entries[i].User) == key {
			return l.entries[i]
		}
	}
	return nil
}

// Clear discards every submission. Called on entering the vote phase so no
// entries carry over between cycles.
func (l *Ledger) Clear() {
	l.entries = nil
	l.byUser = make(map[string]*Submission)
}

// Len returns the number of submissions.
func (l *Ledger) Len() int {
	return len(l.entries)
}

// Submissions returns the submissions in insertion order. The slice is a
// copy; the submission pointers are shared.
func (l *Ledger) Submissions() []*Submission {
	out := make([]*Submission, len(l.entries))
	copy(out, l.entries)
	return out
}

// Snapshot projects up to limit submissions, in insertion order, for
// observers. A non-positive limit returns every entry.
func (l *Ledger) Snapshot(limit int) []SubmissionView {
	entries := l.entries
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	views := make([]SubmissionView, 0, len(entries))
	for _, submission := range entries {
		views = append(views, SubmissionView{
			User:      submission.User,
			Text:      submission.Text,
			Votes:     submission.Votes.Count(),
			CreatedAt: submission.CreatedAt,
		})
	}
	return views
}
