package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/my21staff/SarahEngine/internal/models"
)

// webhookMessage is the inbound webhook payload shape.
type webhookMessage struct {
	ContactPhone string             `json:"contact_phone"`
	Body         string             `json:"body"`
	Type         models.MessageType `json:"type,omitempty"`
	Time         int64              `json:"time,omitempty"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("ok", nil))
}

// webhookMessagesHandler accepts an inbound WhatsApp message from the gateway
// webhook, runs it through the qualification engine, and replies to the
// contact when auto-respond is on.
func (s *Server) webhookMessagesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.webhookMessagesHandler: processing webhook", "method", r.Method)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.webhookMessagesHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var payload webhookMessage
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		slog.Warn("Server.webhookMessagesHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	canonicalFrom, err := s.msgService.ValidateAndCanonicalizeRecipient(payload.ContactPhone)
	if err != nil {
		slog.Warn("Server.webhookMessagesHandler: sender validation failed", "error", err, "contact_phone", payload.ContactPhone)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), DefaultRequestTimeout)
	defer cancel()

	if s.dispatcher != nil && s.dispatcher.IsMuted(canonicalFrom) {
		slog.Debug("Server.webhookMessagesHandler: contact muted, recording only", "contact_phone", canonicalFrom)
		writeJSONResponse(w, http.StatusOK, models.Recorded())
		return
	}

	result, err := s.engine.ProcessMessage(ctx, models.InboundMessage{
		ContactPhone: canonicalFrom,
		WorkspaceID:  s.workspaceID,
		Body:         payload.Body,
		Type:         payload.Type,
		Time:         models.Timestamp(payload.Time),
	})
	if err != nil {
		slog.Error("Server.webhookMessagesHandler: engine turn failed", "error", err, "contact_phone", canonicalFrom)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to process message"))
		return
	}

	if result.Reply != "" {
		if err := s.msgService.SendMessage(ctx, result.ContactPhone, result.Reply); err != nil {
			slog.Error("Server.webhookMessagesHandler: failed to send reply", "error", err, "contact_phone", result.ContactPhone)
		}
	}
	if result.State == models.FunnelStateHandoff && s.dispatcher != nil {
		s.dispatcher.Mute(result.ContactPhone)
	}

	slog.Info("Server.webhookMessagesHandler: message processed",
		"contact_phone", result.ContactPhone,
		"state", result.State,
		"lead_score", result.LeadScore,
		"lead_temperature", result.LeadTemperature)
	writeJSONResponse(w, http.StatusOK, models.Success(result))
}

// stateHandler serves conversation state reads, upserts and deletes. GET and
// POST speak the bare state-document contract consumed by store.ConvexStore,
// so this server can stand in as the state store during the migration.
func (s *Server) stateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	switch r.Method {
	case http.MethodGet:
		s.getStateHandler(w, r)
	case http.MethodPost:
		s.saveStateHandler(w, r)
	case http.MethodDelete:
		s.deleteStateHandler(w, r)
	default:
		w.Header().Set("Allow", "GET, POST, DELETE")
		slog.Warn("Server.stateHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) getStateHandler(w http.ResponseWriter, r *http.Request) {
	contactPhone := r.URL.Query().Get("contact_phone")
	if contactPhone == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required parameter: contact_phone"))
		return
	}

	state, err := s.store.GetConversationState(r.Context(), contactPhone)
	if err != nil {
		slog.Error("Server.getStateHandler: failed to get state", "error", err, "contact_phone", contactPhone)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to get conversation state"))
		return
	}
	if state == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Conversation state not found"))
		return
	}
	// Bare document, not the APIResponse envelope: clients decode top-level
	// state/extracted_data fields.
	writeJSONResponse(w, http.StatusOK, state)
}

func (s *Server) saveStateHandler(w http.ResponseWriter, r *http.Request) {
	var state models.ConversationState
	if err := json.NewDecoder(r.Body).Decode(&state); err != nil {
		slog.Warn("Server.saveStateHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := state.Validate(); err != nil {
		slog.Warn("Server.saveStateHandler: validation failed", "error", err, "contact_phone", state.ContactPhone)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	// The wire contract carries no version field, so a document without one
	// is a last-write-wins rewrite: adopt the stored version. Clients that do
	// send a version keep conditional-write semantics.
	if state.Version == 0 {
		current, err := s.store.GetConversationState(r.Context(), state.ContactPhone)
		if err != nil {
			slog.Error("Server.saveStateHandler: failed to read current state", "error", err, "contact_phone", state.ContactPhone)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to save conversation state"))
			return
		}
		if current != nil {
			state.Version = current.Version
		}
	}

	saved, err := s.store.SaveConversationState(r.Context(), state)
	if err != nil {
		if errors.Is(err, models.ErrConcurrentModification) {
			writeJSONResponse(w, http.StatusConflict, models.Error("Conversation state was modified concurrently"))
			return
		}
		slog.Error("Server.saveStateHandler: failed to save state", "error", err, "contact_phone", state.ContactPhone)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to save conversation state"))
		return
	}
	slog.Info("Server.saveStateHandler: state saved", "contact_phone", saved.ContactPhone, "state", saved.State)
	writeJSONResponse(w, http.StatusOK, saved)
}

func (s *Server) deleteStateHandler(w http.ResponseWriter, r *http.Request) {
	contactPhone := r.URL.Query().Get("contact_phone")
	if contactPhone == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required parameter: contact_phone"))
		return
	}
	if err := s.store.DeleteConversationState(r.Context(), contactPhone); err != nil {
		slog.Error("Server.deleteStateHandler: failed to delete state", "error", err, "contact_phone", contactPhone)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to delete conversation state"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Conversation state deleted", nil))
}

// muteRequest is shared by the mute and unmute endpoints.
type muteRequest struct {
	ContactPhone string `json:"contact_phone"`
}

func (s *Server) muteHandler(w http.ResponseWriter, r *http.Request) {
	s.setMuted(w, r, true)
}

func (s *Server) unmuteHandler(w http.ResponseWriter, r *http.Request) {
	s.setMuted(w, r, false)
}

// setMuted lets a human operator take over (or hand back) a conversation.
func (s *Server) setMuted(w http.ResponseWriter, r *http.Request, muted bool) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.dispatcher == nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("Operator controls not available"))
		return
	}

	var req muteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.ContactPhone == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required field: contact_phone"))
		return
	}

	if muted {
		s.dispatcher.Mute(req.ContactPhone)
		writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Contact muted", nil))
		return
	}
	s.dispatcher.Unmute(req.ContactPhone)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Contact unmuted", nil))
}
