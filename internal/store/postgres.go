// Package store provides storage backends for the Sarah engine.
//
// This file implements the PostgreSQL-backed conversation state store.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/my21staff/SarahEngine/internal/models"
	_ "github.com/lib/pq"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists conversation state in PostgreSQL with version-checked writes.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL store and applies migrations.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "dsn_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open PostgreSQL connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("PostgreSQL ping failed", "error", err)
		return nil, err
	}
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run PostgreSQL migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("PostgreSQL conversation store ready")
	return &PostgresStore{db: db}, nil
}

// GetConversationState returns the stored state for a contact, or (nil, nil) when absent.
func (s *PostgresStore) GetConversationState(ctx context.Context, contactPhone string) (*models.ConversationState, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+selectStateColumns+` FROM conversation_states WHERE contact_phone = $1`, contactPhone)
	state, err := scanConversationState(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetConversationState failed", "error", err, "contact_phone", contactPhone)
		return nil, fmt.Errorf("failed to load state for %s: %w", contactPhone, err)
	}
	return state, nil
}

// SaveConversationState performs a version-checked upsert, mirroring the
// SQLite backend's semantics.
func (s *PostgresStore) SaveConversationState(ctx context.Context, state models.ConversationState) (models.ConversationState, error) {
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
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 ON CONFLICT (contact_phone) DO NOTHING`,
			state.ContactPhone, state.State, extractedJSON, state.LeadScore, state.LeadTemperature, state.Language, state.MessageCount, newVersion, now)
		if err != nil {
			slog.Error("PostgresStore SaveConversationState insert failed", "error", err, "contact_phone", state.ContactPhone)
			return models.ConversationState{}, fmt.Errorf("failed to insert state for %s: %w", state.ContactPhone, err)
		}
		affected, _ := res.RowsAffected()
		if affected == 0 {
			return models.ConversationState{}, models.ErrConcurrentModification
		}
	} else {
		res, err := s.db.ExecContext(ctx,
			`UPDATE conversation_states
			 SET state = $1, extracted_data = $2, lead_score = $3, lead_temperature = $4, language = $5, message_count = $6, version = $7, updated_at = $8
			 WHERE contact_phone = $9 AND version = $10`,
			state.State, extractedJSON, state.LeadScore, state.LeadTemperature, state.Language, state.MessageCount, newVersion, now,
			state.ContactPhone, state.Version)
		if err != nil {
			slog.Error("PostgresStore SaveConversationState update failed", "error", err, "contact_phone", state.ContactPhone)
			return models.ConversationState{}, fmt.Errorf("failed to update state for %s: %w", state.ContactPhone, err)
		}
		affected, _ := res.RowsAffected()
		if affected == 0 {
			return models.ConversationState{}, models.ErrConcurrentModification
		}
	}

	state.Version = newVersion
	state.UpdatedAt = now
	slog.Debug("PostgresStore SaveConversationState succeeded", "contact_phone", state.ContactPhone, "state", state.State, "version", state.Version)
	return state, nil
}

// DeleteConversationState removes the state for a contact.
func (s *PostgresStore) DeleteConversationState(ctx context.Context, contactPhone string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM conversation_states WHERE contact_phone = $1`, contactPhone)
	if err != nil {
		slog.Error("PostgresStore DeleteConversationState failed", "error", err, "contact_phone", contactPhone)
		return fmt.Errorf("failed to delete state for %s: %w", contactPhone, err)
	}
	return nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
