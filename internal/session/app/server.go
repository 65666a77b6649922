// Package app composes the session core with its collaborators: chat
// transports feed events in, the merge engine reduces the ledger, and the
// game client receives the resulting action.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/louisbranch/crowdplay/internal/chat"
	"github.com/louisbranch/crowdplay/internal/game"
	"github.com/louisbranch/crowdplay/internal/merge"
	"github.com/louisbranch/crowdplay/internal/platform/id"
	"github.com/louisbranch/crowdplay/internal/session/domain"
	"github.com/louisbranch/crowdplay/internal/storage"
)

// commandQueueSize bounds the inbound command buffer. Chat bursts beyond it
// are dropped, which matches the drop-noise posture for public streams.
const commandQueueSize = 256

// Announcer sends user-facing messages to the chat audience.
type Announcer interface {
	SendChatMessage(ctx context.Context, text string) error
}

// Merger reduces submissions to one action.
type Merger interface {
	Merge(ctx context.Context, req merge.Request) (merge.Result, error)
	Blending() bool
}

// SnapshotSink receives a session snapshot on every state change.
type SnapshotSink interface {
	Broadcast(snapshot Snapshot)
}

// Snapshot is the serializable projection of session state for observers.
type Snapshot struct {
	CycleID     string                  `json:"cycleId,omitempty"`
	Phase       string                  `json:"phase"`
	Paused      bool                    `json:"paused"`
	Submissions []domain.SubmissionView `json:"submissions"`
	Timer       *domain.TimerSnapshot   `json:"timer,omitempty"`
	Trace       *merge.Trace            `json:"trace,omitempty"`
}

// Config wires a coordinator's collaborators and settings.
type Config struct {
	Settings storage.Settings
	Game     game.Client
	Chat     Announcer
	Merger   Merger
	Sink     SnapshotSink
	Clock    func() time.Time
	// Scheduler overrides the timer scheduler; tests use a fake.
	Scheduler domain.Scheduler
	// IDGenerator overrides cycle ID generation.
	IDGenerator func() (string, error)
	// SnapshotLimit caps how many submissions each snapshot carries.
	SnapshotLimit int
}

type commandKind int

const (
	cmdChatEvent commandKind = iota
	cmdVoteExpired
	cmdAutoRepeatFired
	cmdPause
	cmdResume
	cmdContextUpdate
)

type command struct {
	kind    commandKind
	event   chat.Event
	context game.Context
}

// Coordinator runs the submit-and-vote cycle. All session state is mutated
// from the single Run goroutine; the exported mutation methods only enqueue
// commands, so chat transports and timer callbacks never touch the ledger or
// timers directly.
type Coordinator struct {
	cfg      Config
	session  *domain.Session
	commands chan command

	gameCtx   game.Context
	lastTrace *merge.Trace
	cycleID   string

	snapshotMu   sync.Mutex
	lastSnapshot Snapshot
}

// New creates a coordinator.
func New(cfg Config) (*Coordinator, error) {
	if cfg.Game == nil {
		return nil, errors.New("game client is required")
	}
	if cfg.Chat == nil {
		return nil, errors.New("chat announcer is required")
	}
	if cfg.Merger == nil {
		return nil, errors.New("merger is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.IDGenerator == nil {
		cfg.IDGenerator = id.NewID
	}
	cfg.Settings = cfg.Settings.Normalize()

	ledger := domain.NewLedger(cfg.Clock)
	timers := domain.NewTimerController(cfg.Clock, cfg.Scheduler)
	coordinator := &Coordinator{
		cfg:      cfg,
		session:  domain.NewSession(ledger, timers),
		commands: make(chan command, commandQueueSize),
	}
	coordinator.lastSnapshot = coordinator.snapshot()
	return coordinator, nil
}

// Run consumes commands until ctx is done. It owns every session mutation.
func (c *Coordinator) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd := <-c.commands:
			c.handle(ctx, cmd)
		}
	}
}

// HandleChatEvent enqueues one inbound chat line. Safe for any goroutine.
func (c *Coordinator) HandleChatEvent(event chat.Event) {
	c.enqueue(command{kind: cmdChatEvent, event: event})
}

// UpdateGameContext enqueues a story-context refresh. Safe for any goroutine.
func (c *Coordinator) UpdateGameContext(gameCtx game.Context) {
	c.enqueue(command{kind: cmdContextUpdate, context: gameCtx})
}

// Pause enqueues an operator pause of the running timer.
func (c *Coordinator) Pause() {
	c.enqueue(command{kind: cmdPause})
}

// Resume enqueues an operator resume.
func (c *Coordinator) Resume() {
	c.enqueue(command{kind: cmdResume})
}

// LastSnapshot returns the most recently broadcast snapshot.
func (c *Coordinator) LastSnapshot() Snapshot {
	c.snapshotMu.Lock()
	defer c.snapshotMu.Unlock()
	return c.lastSnapshot
}

func (c *Coordinator) enqueue(cmd command) {
	select {
	case c.commands <- cmd:
	default:
		// Queue overflow means a chat flood; dropping is the same posture as
		// dropping malformed lines.
	}
}

func (c *Coordinator) handle(ctx context.Context, cmd command) {
	switch cmd.kind {
	case cmdChatEvent:
		c.handleChatEvent(ctx, cmd.event)
	case cmdVoteExpired:
		c.finishCycle(ctx)
	case cmdAutoRepeatFired:
		c.startCycle(ctx)
	case cmdPause:
		c.session.Timers().Pause()
		c.broadcast()
	case cmdResume:
		c.session.Timers().Resume()
		c.broadcast()
	case cmdContextUpdate:
		c.gameCtx = cmd.context
	}
}

func (c *Coordinator) handleChatEvent(ctx context.Context, event chat.Event) {
	parsed := chat.Parse(event)
	switch parsed.Intent {
	case chat.IntentOpenVote:
		c.startCycle(ctx)
	case chat.IntentTally:
		c.finishCycle(ctx)
	case chat.IntentSubmit:
		if c.session.Phase() != domain.PhaseVote {
			return
		}
		c.session.Ledger().Submit(event.User, parsed.Text, c.cfg.Settings.DebugMode)
		c.broadcast()
	case chat.IntentVote:
		if c.session.Phase() != domain.PhaseVote {
			return
		}
		c.session.Ledger().Vote(event.User, parsed.Target, c.cfg.Settings.DebugMode)
		c.broadcast()
	}
}

// startCycle opens a vote phase and arms its countdown.
func (c *Coordinator) startCycle(ctx context.Context) {
	if !c.session.ToVote() {
		return
	}
	cycleID, err := c.cfg.IDGenerator()
	if err != nil {
		log.Printf("generate cycle id: %v", err)
	}
	c.cycleID = cycleID
	duration := c.cfg.Settings.VoteDuration
	if duration < domain.MinVoteDuration {
		duration = domain.MinVoteDuration
	}
	c.session.Timers().StartVoteTimer(duration, func() {
		c.enqueue(command{kind: cmdVoteExpired})
	})
	c.announce(ctx, fmt.Sprintf(
		"Voting is open for %s! Suggest an action with \"> ...\" and support one with \"+1 @name\".",
		duration.Round(time.Second)))
	c.broadcast()
}

// finishCycle closes voting, merges the ledger, submits the action, and
// returns to idle. Collaborator failures abandon the cycle with a chat
// notice; the session never lingers in combine.
func (c *Coordinator) finishCycle(ctx context.Context) {
	if !c.session.ToCombine() {
		return
	}
	c.broadcast()

	submissions := c.mergeSubmissions()
	if len(submissions) == 0 {
		c.announce(ctx, "No suggestions this round.")
		c.reset(ctx)
		return
	}

	result, err := c.cfg.Merger.Merge(ctx, merge.Request{
		Submissions:     submissions,
		Story:           mergeSections(c.gameCtx.Sections),
		LastKnownAction: c.gameCtx.MostRecentAction,
		PartyName:       c.cfg.Settings.PartyName,
		CompanionName:   c.cfg.Settings.CompanionName,
		Model:           c.cfg.Settings.Model,
		MaxOutputTokens: c.cfg.Settings.TokenBudget,
	})
	if err != nil {
		log.Printf("merge submissions: %v", err)
		c.announce(ctx, "Could not merge this round's suggestions; the cycle was abandoned.")
		c.reset(ctx)
		return
	}
	if result.Trace != nil {
		c.lastTrace = result.Trace
	}

	if err := c.cfg.Game.SubmitAction(ctx, c.cfg.Settings.PartyName, result.ActionText); err != nil {
		log.Printf("submit action: %v", err)
		c.announce(ctx, "The game rejected this round's action; the cycle was abandoned.")
		c.reset(ctx)
		return
	}

	if c.cfg.Merger.Blending() {
		c.announce(ctx, fmt.Sprintf("%s acts: %s", c.partyLabel(), result.ActionText))
	} else {
		c.announce(ctx, fmt.Sprintf("Winning action: %s", result.ActionText))
	}
	c.reset(ctx)
}

// reset forces idle and, when configured, arms the next auto-repeat cycle.
func (c *Coordinator) reset(ctx context.Context) {
	c.session.ToIdle()
	if delay := c.cfg.Settings.AutoRepeatDelay; delay > 0 {
		c.session.Timers().StartAutoRepeat(delay, func() {
			c.enqueue(command{kind: cmdAutoRepeatFired})
		})
	}
	c.broadcast()
}

func (c *Coordinator) mergeSubmissions() []merge.Submission {
	entries := c.session.Ledger().Submissions()
	out := make([]merge.Submission, 0, len(entries))
	for _, entry := range entries {
		out = append(out, merge.Submission{
			User:      entry.User,
			Text:      entry.Text,
			Votes:     entry.Votes.Count(),
			CreatedAt: entry.CreatedAt,
		})
	}
	return out
}

func mergeSections(sections []game.Section) []merge.Section {
	out := make([]merge.Section, 0, len(sections))
	for _, section := range sections {
		out = append(out, merge.Section{Kind: section.Kind, Text: section.Text})
	}
	return out
}

func (c *Coordinator) partyLabel() string {
	if c.cfg.Settings.PartyName != "" {
		return c.cfg.Settings.PartyName
	}
	return "The party"
}

func (c *Coordinator) announce(ctx context.Context, text string) {
	if err := c.cfg.Chat.SendChatMessage(ctx, text); err != nil {
		log.Printf("send chat message: %v", err)
	}
}

func (c *Coordinator) snapshot() Snapshot {
	limit := c.cfg.SnapshotLimit
	return Snapshot{
		CycleID:     c.cycleID,
		Phase:       c.session.Phase().String(),
		Paused:      c.session.Timers().Paused(),
		Submissions: c.session.Ledger().Snapshot(limit),
		Timer:       c.session.Timers().Snapshot(),
		Trace:       c.lastTrace,
	}
}

func (c *Coordinator) broadcast() {
	snapshot := c.snapshot()
	c.snapshotMu.Lock()
	c.lastSnapshot = snapshot
	c.snapshotMu.Unlock()
	if c.cfg.Sink != nil {
		c.cfg.Sink.Broadcast(snapshot)
	}
}
