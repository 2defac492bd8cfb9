// Package store provides storage backends for the Sarah engine.
//
// This file implements the SQLite-backed conversation state store.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/my21staff/SarahEngine/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the permissions for created database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists conversation state in a local SQLite database with
// version-checked writes.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store. The DSN is a file path; its
// directory is created when missing.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "dsn_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(cfg.DSN)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run SQLite migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite conversation store ready", "path", cfg.DSN)
	return &SQLiteStore{db: db}, nil
}

// GetConversationState returns the stored state for a contact, or (nil, nil) when absent.
func (s *SQLiteStore) GetConversationState(ctx context.Context, contactPhone string) (*models.ConversationState, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+selectStateColumns+` FROM conversation_states WHERE contact_phone = ?`, contactPhone)
	state, err := scanConversationState(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetConversationState failed", "error", err, "contact_phone", contactPhone)
		return nil, fmt.Errorf("failed to load state for %s: %w", contactPhone, err)
	}
	return state, nil
}

// SaveConversationState performs a version-checked upsert. A first write must
// carry Version zero; updates must match the stored version exactly.
func (s *SQLiteStore) SaveConversationState(ctx context.Context, state models.ConversationState) (models.ConversationState, error) {
	if err := state.Validate(); err != nil {
		return models.ConversationState{}, err
	}
	extractedJSON, err := marshalExtractedData(state.ExtractedData)
	if err != nil {
		return models.ConversationState{}, err
	}

	now := time.Now()
	newVersion := state.Version + 1
	if state.Version == 0 {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO conversation_states (contact_phone, state, extracted_data, lead_score, lead_temperature, language, message_count, version, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(contact_phone) DO NOTHING`,
			state.ContactPhone, state.State, extractedJSON, state.LeadScore, state.LeadTemperature, state.Language, state.MessageCount, newVersion, now)
		if err != nil {
			slog.Error("SQLiteStore SaveConversationState insert failed", "error", err, "contact_phone", state.ContactPhone)
			return models.ConversationState{}, fmt.Errorf("failed to insert state for %s: %w", state.ContactPhone, err)
		}
		affected, _ := res.RowsAffected()
		if affected == 0 {
			return models.ConversationState{}, models.ErrConcurrentModification
		}
	} else {
		res, err := s.db.ExecContext(ctx,
			`UPDATE conversation_states
			 SET state = ?, extracted_data = ?, lead_score = ?, lead_temperature = ?, language = ?, message_count = ?, version = ?, updated_at = ?
			 WHERE contact_phone = ? AND version = ?`,
			state.State, extractedJSON, state.LeadScore, state.LeadTemperature, state.Language, state.MessageCount, newVersion, now,
			state.ContactPhone, state.Version)
		if err != nil {
			slog.Error("SQLiteStore SaveConversationState update failed", "error", err, "contact_phone", state.ContactPhone)
			return models.ConversationState{}, fmt.Errorf("failed to update state for %s: %w", state.ContactPhone, err)
		}
		affected, _ := res.RowsAffected()
		if affected == 0 {
			return models.ConversationState{}, models.ErrConcurrentModification
		}
	}

	state.Version = newVersion
	state.UpdatedAt = now
	slog.Debug("SQLiteStore SaveConversationState succeeded", "contact_phone", state.ContactPhone, "state", state.State, "version", state.Version)
	return state, nil
}

// DeleteConversationState removes the state for a contact.
func (s *SQLiteStore) DeleteConversationState(ctx context.Context, contactPhone string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM conversation_states WHERE contact_phone = ?`, contactPhone)
	if err != nil {
		slog.Error("SQLiteStore DeleteConversationState failed", "error", err, "contact_phone", contactPhone)
		return fmt.Errorf("failed to delete state for %s: %w", contactPhone, err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
