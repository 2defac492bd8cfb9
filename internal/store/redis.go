// Package store provides storage backends for the Sarah engine.
//
// This file implements the Redis-backed conversation state store. The full
// state document is stored as a JSON value per contact key; conditional writes
// use a WATCH transaction keyed on the stored version.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/my21staff/SarahEngine/internal/models"
	"github.com/redis/go-redis/v9"
)

// stateKeyPrefix namespaces conversation state keys in Redis.
const stateKeyPrefix = "sarah:state:"

// maxCASRetries bounds optimistic transaction retries before giving up.
const maxCASRetries = 3

// RedisStore persists conversation state in Redis.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed store and verifies connectivity.
func NewRedisStore(opts ...Option) (*RedisStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.RedisAddr == "" {
		slog.Error("RedisStore address not set")
		return nil, fmt.Errorf("redis address not set")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		slog.Error("Redis ping failed", "error", err, "addr", cfg.RedisAddr)
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	slog.Debug("Redis conversation store ready", "addr", cfg.RedisAddr)
	return &RedisStore{client: client}, nil
}

func stateKey(contactPhone string) string {
	return stateKeyPrefix + contactPhone
}

// GetConversationState returns the stored state for a contact, or (nil, nil) when absent.
func (s *RedisStore) GetConversationState(ctx context.Context, contactPhone string) (*models.ConversationState, error) {
	raw, err := s.client.Get(ctx, stateKey(contactPhone)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		slog.Error("RedisStore GetConversationState failed", "error", err, "contact_phone", contactPhone)
		return nil, fmt.Errorf("failed to load state for %s: %w", contactPhone, err)
	}

	var state models.ConversationState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		slog.Error("RedisStore GetConversationState decode failed", "error", err, "contact_phone", contactPhone)
		return nil, fmt.Errorf("failed to decode state for %s: %w", contactPhone, err)
	}
	return &state, nil
}

// SaveConversationState performs a version-checked write inside a WATCH
// transaction. The incoming Version must match the stored one (zero for a
// first write).
func (s *RedisStore) SaveConversationState(ctx context.Context, state models.ConversationState) (models.ConversationState, error) {
	if err := state.Validate(); err != nil {
		return models.ConversationState{}, err
	}

	key := stateKey(state.ContactPhone)
	var saved models.ConversationState

	txn := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Result()
		switch {
		case errors.Is(err, redis.Nil):
			if state.Version != 0 {
				return models.ErrConcurrentModification
			}
		case err != nil:
			return err
		default:
			var current models.ConversationState
			if err := json.Unmarshal([]byte(raw), &current); err != nil {
				return fmt.Errorf("failed to decode stored state: %w", err)
			}
			if current.Version != state.Version {
				return models.ErrConcurrentModification
			}
		}

		saved = state
		saved.Version = state.Version + 1
		saved.UpdatedAt = time.Now()
		payload, err := json.Marshal(saved)
		if err != nil {
			return fmt.Errorf("failed to marshal state: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			return nil
		})
		return err
	}

	var err error
	for i := 0; i < maxCASRetries; i++ {
		err = s.client.Watch(ctx, txn, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
		slog.Debug("RedisStore SaveConversationState watch conflict, retrying", "contact_phone", state.ContactPhone, "attempt", i+1)
	}
	if errors.Is(err, redis.TxFailedErr) {
		err = models.ErrConcurrentModification
	}
	if err != nil {
		if !errors.Is(err, models.ErrConcurrentModification) {
			slog.Error("RedisStore SaveConversationState failed", "error", err, "contact_phone", state.ContactPhone)
		}
		return models.ConversationState{}, err
	}

	slog.Debug("RedisStore SaveConversationState succeeded", "contact_phone", state.ContactPhone, "state", saved.State, "version", saved.Version)
	return saved, nil
}

// DeleteConversationState removes the state for a contact.
func (s *RedisStore) DeleteConversationState(ctx context.Context, contactPhone string) error {
	if err := s.client.Del(ctx, stateKey(contactPhone)).Err(); err != nil {
		slog.Error("RedisStore DeleteConversationState failed", "error", err, "contact_phone", contactPhone)
		return fmt.Errorf("failed to delete state for %s: %w", contactPhone, err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
