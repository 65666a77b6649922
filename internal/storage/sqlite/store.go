// Package sqlite provides SQLite-backed settings persistence.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/louisbranch/crowdplay/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/crowdplay/internal/storage"
	"github.com/louisbranch/crowdplay/internal/storage/sqlite/migrations"
)

// Store provides SQLite-backed operator settings persistence.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a settings SQLite store and applies migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// LoadSettings reads the single settings row. It returns storage.ErrNotFound
// when nothing has been saved yet.
func (s *Store) LoadSettings(ctx context.Context) (storage.Settings, error) {
	if err := ctx.Err(); err != nil {
		return storage.Settings{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Settings{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT vote_duration_ms, auto_repeat_ms, debug_mode, token_budget, party_name, companion_name, model
FROM settings WHERE id = 1
`)

	var voteDurationMS, autoRepeatMS int64
	var debugMode int
	var settings storage.Settings
	err := row.Scan(
		&voteDurationMS,
		&autoRepeatMS,
		&debugMode,
		&settings.TokenBudget,
		&settings.PartyName,
		&settings.CompanionName,
		&settings.Model,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return storage.Settings{}, storage.ErrNotFound
		}
		return storage.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	settings.VoteDuration = time.Duration(voteDurationMS) * time.Millisecond
	settings.AutoRepeatDelay = time.Duration(autoRepeatMS) * time.Millisecond
	settings.DebugMode = debugMode != 0
	return settings, nil
}

// SaveSettings upserts the single settings row.
func (s *Store) SaveSettings(ctx context.Context, settings storage.Settings) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	settings.PartyName = strings.TrimSpace(settings.PartyName)
	if settings.PartyName == "" {
		return fmt.Errorf("party name is required")
	}

	debugMode := 0
	if settings.DebugMode {
		debugMode = 1
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO settings (
	id,
	vote_duration_ms,
	auto_repeat_ms,
	debug_mode,
	token_budget,
	party_name,
	companion_name,
	model,
	updated_at
) VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
	vote_duration_ms = excluded.vote_duration_ms,
	auto_repeat_ms = excluded.auto_repeat_ms,
	debug_mode = excluded.debug_mode,
	token_budget = excluded.token_budget,
	party_name = excluded.party_name,
	companion_name = excluded.companion_name,
	model = excluded.model,
	updated_at = excluded.updated_at
`,
		settings.VoteDuration.Milliseconds(),
		settings.AutoRepeatDelay.Milliseconds(),
		debugMode,
		settings.TokenBudget,
		settings.PartyName,
		strings.TrimSpace(settings.CompanionName),
		strings.TrimSpace(settings.Model),
		time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
