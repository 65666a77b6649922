// Package chat models inbound chat events and parses them into session
// intents: submissions, votes, and privileged cycle commands.
package chat

import (
	"regexp"
	"strings"
)

// Source identifies the transport a chat event arrived on.
type Source string

const (
	// SourceTwitch events arrive over the Twitch IRC transport.
	SourceTwitch Source = "twitch"
	// SourceYouTube events arrive via the live-chat widget bridge.
	SourceYouTube Source = "youtube"
)

// Event is one inbound chat line. Privileged marks source-defined moderator
// or owner roles; the bridge never marks YouTube users privileged.
type Event struct {
	Source     Source
	User       string
	Text       string
	Privileged bool
}

// Intent classifies what an event asks the session to do.
type Intent int

const (
	// IntentNone means the line matched no recognized pattern.
	IntentNone Intent = iota
	// IntentSubmit proposes action text for the current cycle.
	IntentSubmit
	// IntentVote supports another user's submission.
	IntentVote
	// IntentOpenVote is the privileged command that starts a cycle.
	IntentOpenVote
	// IntentTally is the privileged command that ends voting early.
	IntentTally
)

// Parsed is the decoded form of an event.
type Parsed struct {
	Intent Intent
	// Text is the submission text for IntentSubmit.
	Text string
	// Target is the vote target username for IntentVote.
	Target string
}

var (
	submitPattern = regexp.MustCompile(`^>\s*(.+)$`)
	votePattern   = regexp.MustCompile(`(?i)^(?:\+1\s+@(\w+)|@(\w+)\s+\+1)$`)
)

// Parse decodes an event into a session intent.
//
// Commands are recognized verbatim, case-insensitively, and only for
// privileged Twitch users; everyone else's command-shaped lines fall through
// to IntentNone. Submissions and votes are open to all users on all sources.
func Parse(event Event) Parsed {
	text := strings.TrimSpace(event.Text)
	if text == "" {
		return Parsed{}
	}

	if event.Privileged && event.Source == SourceTwitch {
		switch strings.ToLower(text) {
		case "!vote":
			return Parsed{Intent: IntentOpenVote}
		case "!tally":
			return Parsed{Intent: IntentTally}
		}
	}

	if match := submitPattern.FindStringSubmatch(text); match != nil {
		return Parsed{Intent: IntentSubmit, Text: strings.TrimSpace(match[1])}
	}

	if match := votePattern.FindStringSubmatch(text); match != nil {
		target := match[1]
		if target == "" {
			target = match[2]
		}
		return Parsed{Intent: IntentVote, Target: target}
	}

	return Parsed{}
}
