// Package storage defines the persistent operator settings the session core
// consumes. The core never writes settings; persistence stays outside it.
package storage

import (
	"context"
	"errors"
	"time"
)

// Minimum clamps for operator-tunable durations. The timer controller clamps
// again at schedule time, so a bad stored value can never arm a too-short
// timer.
const (
	MinVoteDuration    = 5 * time.Second
	MinAutoRepeatDelay = 20 * time.Second
)

// ErrNotFound indicates no settings row has been saved yet.
var ErrNotFound = errors.New("settings not found")

// Settings are the operator-tunable knobs for the crowd cycle.
type Settings struct {
	// VoteDuration is how long a vote phase stays open.
	VoteDuration time.Duration
	// AutoRepeatDelay is the cooldown before the next automatic cycle;
	// zero disables auto-repeat.
	AutoRepeatDelay time.Duration
	// DebugMode relaxes submission and vote dedup for demos.
	DebugMode bool
	// TokenBudget caps output tokens per language-model call.
	TokenBudget int
	// PartyName is the character the audience controls.
	PartyName string
	// CompanionName is the second character addressed in prompts.
	CompanionName string
	// Model selects the language model; empty selects tally mode.
	Model string
}

// DefaultSettings returns the out-of-the-box configuration.
func DefaultSettings() Settings {
	return Settings{
		VoteDuration:    60 * time.Second,
		AutoRepeatDelay: 0,
		TokenBudget:     300,
		PartyName:       "the party",
	}
}

// Normalize clamps durations to their minimums. A disabled auto-repeat stays
// disabled.
func (s Settings) Normalize() Settings {
	if s.VoteDuration < MinVoteDuration {
		s.VoteDuration = MinVoteDuration
	}
	if s.AutoRepeatDelay > 0 && s.AutoRepeatDelay < MinAutoRepeatDelay {
		s.AutoRepeatDelay = MinAutoRepeatDelay
	}
	return s
}

// SettingsStore persists operator settings between restarts.
type SettingsStore interface {
	LoadSettings(ctx context.Context) (Settings, error)
	SaveSettings(ctx context.Context, settings Settings) error
}
