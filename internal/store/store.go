// Package store provides conversation-state storage backends for the Sarah engine.
//
// Backends: Convex HTTP state store (the production deployment during the
// migration), PostgreSQL, SQLite, Redis, and an in-memory store for tests.
package store

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/my21staff/SarahEngine/internal/models"
)

// Store is the per-contact conversation state store consumed by the engine.
// Get returns (nil, nil) when no state exists for the contact; the engine
// substitutes defaults. Save rewrites the state wholesale. Backends that can
// enforce conditional writes compare the incoming Version against the stored
// one and return models.ErrConcurrentModification on mismatch.
type Store interface {
	GetConversationState(ctx context.Context, contactPhone string) (*models.ConversationState, error)
	SaveConversationState(ctx context.Context, state models.ConversationState) (models.ConversationState, error)
	DeleteConversationState(ctx context.Context, contactPhone string) error
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN           string        // PostgreSQL DSN or SQLite file path
	RedisAddr     string        // Redis host:port
	RedisPassword string        // Redis password, empty for none
	ConvexBaseURL string        // Base URL of the Convex HTTP state store
	HTTPClient    *http.Client  // HTTP client override for the Convex backend
	Timeout       time.Duration // per-request timeout for remote backends
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithPostgresDSN sets a PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithSQLiteDSN sets an SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithRedisAddr sets the Redis server address.
func WithRedisAddr(addr string) Option {
	return func(o *Opts) { o.RedisAddr = addr }
}

// WithRedisPassword sets the Redis password.
func WithRedisPassword(password string) Option {
	return func(o *Opts) { o.RedisPassword = password }
}

// WithConvexBaseURL sets the base URL for the Convex HTTP state store.
func WithConvexBaseURL(baseURL string) Option {
	return func(o *Opts) { o.ConvexBaseURL = strings.TrimRight(baseURL, "/") }
}

// WithHTTPClient overrides the HTTP client used by the Convex backend.
func WithHTTPClient(client *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = client }
}

// WithTimeout sets the per-request timeout for remote backends.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// DetectDSNType classifies a DSN string as "postgres" or "sqlite".
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// InMemoryStore is a mutex-guarded map store with full conditional-write
// semantics. It backs unit tests and single-process deployments.
type InMemoryStore struct {
	mu     sync.RWMutex
	states map[string]models.ConversationState
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{states: make(map[string]models.ConversationState)}
}

// GetConversationState returns a copy of the stored state, or (nil, nil) when absent.
func (s *InMemoryStore) GetConversationState(ctx context.Context, contactPhone string) (*models.ConversationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[contactPhone]
	if !ok {
		return nil, nil
	}
	state.ExtractedData = state.ExtractedData.Clone()
	return &state, nil
}

// SaveConversationState performs a version-checked write. The incoming Version
// must match the stored one (zero for a first write); on success the persisted
// state is returned with Version incremented.
func (s *InMemoryStore) SaveConversationState(ctx context.Context, state models.ConversationState) (models.ConversationState, error) {
	if err := state.Validate(); err != nil {
		return models.ConversationState{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, exists := s.states[state.ContactPhone]
	if exists && current.Version != state.Version {
		return models.ConversationState{}, models.ErrConcurrentModification
	}
	if !exists && state.Version != 0 {
		return models.ConversationState{}, models.ErrConcurrentModification
	}
	state.Version++
	state.UpdatedAt = time.Now()
	state.ExtractedData = state.ExtractedData.Clone()
	s.states[state.ContactPhone] = state
	return state, nil
}

// DeleteConversationState removes the state for a contact. Deleting an absent
// contact is not an error.
func (s *InMemoryStore) DeleteConversationState(ctx context.Context, contactPhone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, contactPhone)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
