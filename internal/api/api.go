// Package api exposes the HTTP surface of the Sarah engine: the inbound
// message webhook, conversation state endpoints, and operator controls.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/my21staff/SarahEngine/internal/flow"
	"github.com/my21staff/SarahEngine/internal/messaging"
	"github.com/my21staff/SarahEngine/internal/store"
)

// Constants for API server configuration
const (
	// DefaultAPIAddr is the default listen address.
	DefaultAPIAddr = ":8080"
	// DefaultRequestTimeout bounds handler work per request.
	DefaultRequestTimeout = 30 * time.Second
	// DefaultShutdownTimeout bounds graceful shutdown.
	DefaultShutdownTimeout = 10 * time.Second
)

// Opts holds configuration options for the API server.
type Opts struct {
	Addr        string
	APIKey      string
	WorkspaceID string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithAPIKey enables X-API-Key authentication on all endpoints except /health.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithWorkspaceID sets the workspace attributed to webhook messages.
func WithWorkspaceID(id string) Option {
	return func(o *Opts) { o.WorkspaceID = id }
}

// Server wires the engine, store and messaging service behind HTTP handlers.
type Server struct {
	addr        string
	apiKey      string
	workspaceID string
	engine      *flow.Engine
	store       store.Store
	msgService  messaging.Service
	dispatcher  *messaging.InboundDispatcher
	httpServer  *http.Server
}

// NewServer creates an API server. The dispatcher may be nil when operator
// mute controls are not needed (e.g., in tests).
func NewServer(engine *flow.Engine, st store.Store, msgService messaging.Service, dispatcher *messaging.InboundDispatcher, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAPIAddr
	}

	s := &Server{
		addr:        cfg.Addr,
		apiKey:      cfg.APIKey,
		workspaceID: cfg.WorkspaceID,
		engine:      engine,
		store:       st,
		msgService:  msgService,
		dispatcher:  dispatcher,
	}
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Routes builds the HTTP mux for the server. Exposed for tests.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/webhook/messages", s.authenticated(s.webhookMessagesHandler))
	mux.HandleFunc("/sarah/state", s.authenticated(s.stateHandler))
	mux.HandleFunc("/sarah/mute", s.authenticated(s.muteHandler))
	mux.HandleFunc("/sarah/unmute", s.authenticated(s.unmuteHandler))
	svc := s.msgService
	if wrapper, ok := svc.(interface{ Unwrap() messaging.Service }); ok {
		svc = wrapper.Unwrap()
	}
	if twilioSvc, ok := svc.(*messaging.TwilioService); ok {
		mux.HandleFunc("/webhook/twilio", twilioSvc.WebhookHandler)
	}
	return mux
}

// authenticated wraps a handler with X-API-Key verification when an API key is
// configured. Without a configured key, the handler is served as-is.
func (s *Server) authenticated(next http.HandlerFunc) http.HandlerFunc {
	if s.apiKey == "" {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != s.apiKey {
			slog.Warn("Server: rejected request with invalid API key", "path", r.URL.Path)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// Run starts the HTTP server and blocks until the context is cancelled or the
// server fails. Shutdown is graceful within DefaultShutdownTimeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server listening", "addr", s.addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}
