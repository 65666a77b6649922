package storage

import (
	"testing"
	"time"
)

func TestNormalizeClampsVoteDuration(t *testing.T) {
	settings := Settings{VoteDuration: 3 * time.Second}.Normalize()
	if settings.VoteDuration != MinVoteDuration {
		t.Fatalf("expected clamp to %v, got %v", MinVoteDuration, settings.VoteDuration)
	}
}

func TestNormalizeClampsAutoRepeatWhenEnabled(t *testing.T) {
	settings := Settings{VoteDuration: time.Minute, AutoRepeatDelay: 10 * time.Second}.Normalize()
	if settings.AutoRepeatDelay != MinAutoRepeatDelay {
		t.Fatalf("expected clamp to %v, got %v", MinAutoRepeatDelay, settings.AutoRepeatDelay)
	}
}

func TestNormalizeKeepsAutoRepeatDisabled(t *testing.T) {
	settings := Settings{VoteDuration: time.Minute}.Normalize()
	if settings.AutoRepeatDelay != 0 {
		t.Fatalf("expected auto-repeat to stay disabled, got %v", settings.AutoRepeatDelay)
	}
}

func TestNormalizeLeavesValidValuesAlone(t *testing.T) {
	settings := Settings{VoteDuration: 90 * time.Second, AutoRepeatDelay: time.Minute}.Normalize()
	if settings.VoteDuration != 90*time.Second {
		t.Fatalf("expected vote duration untouched, got %v", settings.VoteDuration)
	}
	if settings.AutoRepeatDelay != time.Minute {
		t.Fatalf("expected auto-repeat untouched, got %v", settings.AutoRepeatDelay)
	}
}
