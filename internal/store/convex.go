// Package store provides storage backends for the Sarah engine.
//
// This file implements the client for the Convex HTTP state store used during
// the Supabase/Convex migration.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/my21staff/SarahEngine/internal/models"
)

// DefaultConvexTimeout bounds each state store request.
const DefaultConvexTimeout = 10 * time.Second

// ConvexStore talks to the external state store over HTTP:
//
//	GET  {base}/sarah/state?contact_phone=<phone>
//	POST {base}/sarah/state
//
// The wire contract has no version field, so writes are last-write-wins; the
// Version on returned states is always zero and conditional-write semantics do
// not apply to this backend.
type ConvexStore struct {
	baseURL    string
	httpClient *http.Client
}

// convexStatePayload mirrors the wire shape of the state document. Every field
// is optional; absent fields default per the conversation-state defaults.
type convexStatePayload struct {
	ContactPhone    string                `json:"contact_phone"`
	State           *string               `json:"state,omitempty"`
	ExtractedData   *models.ExtractedData `json:"extracted_data,omitempty"`
	LeadScore       *int                  `json:"lead_score,omitempty"`
	LeadTemperature *string               `json:"lead_temperature,omitempty"`
	Language        *string               `json:"language,omitempty"`
	MessageCount    *int                  `json:"message_count,omitempty"`
}

// NewConvexStore creates a Convex-backed state store. A base URL is required;
// it is injected here rather than defaulted inside the data access methods.
func NewConvexStore(opts ...Option) (*ConvexStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.ConvexBaseURL == "" {
		slog.Error("ConvexStore base URL not set")
		return nil, fmt.Errorf("convex base URL not set")
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = DefaultConvexTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	slog.Debug("ConvexStore created", "base_url", cfg.ConvexBaseURL)
	return &ConvexStore{baseURL: cfg.ConvexBaseURL, httpClient: client}, nil
}

// GetConversationState fetches the state document for a contact. Missing
// fields in the response are filled with conversation-state defaults. A 404
// returns (nil, nil).
func (s *ConvexStore) GetConversationState(ctx context.Context, contactPhone string) (*models.ConversationState, error) {
	endpoint := fmt.Sprintf("%s/sarah/state?contact_phone=%s", s.baseURL, url.QueryEscape(contactPhone))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build state request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		slog.Error("ConvexStore GetConversationState request failed", "error", err, "contact_phone", contactPhone)
		return nil, fmt.Errorf("state store request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		slog.Debug("ConvexStore GetConversationState not found", "contact_phone", contactPhone)
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		slog.Error("ConvexStore GetConversationState non-OK response", "status", resp.StatusCode, "contact_phone", contactPhone)
		return nil, fmt.Errorf("state store returned status %d: %s", resp.StatusCode, string(body))
	}

	var payload convexStatePayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		slog.Error("ConvexStore GetConversationState decode failed", "error", err, "contact_phone", contactPhone)
		return nil, fmt.Errorf("failed to decode state response: %w", err)
	}

	state := payloadToState(contactPhone, payload)
	slog.Debug("ConvexStore GetConversationState succeeded", "contact_phone", contactPhone, "state", state.State)
	return &state, nil
}

// SaveConversationState rewrites the state document wholesale. The store has
// no conditional-write support; the returned state carries Version zero.
func (s *ConvexStore) SaveConversationState(ctx context.Context, state models.ConversationState) (models.ConversationState, error) {
	if err := state.Validate(); err != nil {
		return models.ConversationState{}, err
	}

	stateStr := string(state.State)
	tempStr := string(state.LeadTemperature)
	langStr := string(state.Language)
	extracted := state.ExtractedData
	payload := convexStatePayload{
		ContactPhone:    state.ContactPhone,
		State:           &stateStr,
		ExtractedData:   &extracted,
		LeadScore:       &state.LeadScore,
		LeadTemperature: &tempStr,
		Language:        &langStr,
		MessageCount:    &state.MessageCount,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return models.ConversationState{}, fmt.Errorf("failed to marshal state: %w", err)
	}

	endpoint := s.baseURL + "/sarah/state"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return models.ConversationState{}, fmt.Errorf("failed to build state request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		slog.Error("ConvexStore SaveConversationState request failed", "error", err, "contact_phone", state.ContactPhone)
		return models.ConversationState{}, fmt.Errorf("state store write failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 512))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Error("ConvexStore SaveConversationState non-OK response", "status", resp.StatusCode, "contact_phone", state.ContactPhone)
		return models.ConversationState{}, fmt.Errorf("state store write returned status %d", resp.StatusCode)
	}

	state.Version = 0
	state.UpdatedAt = time.Now()
	slog.Debug("ConvexStore SaveConversationState succeeded", "contact_phone", state.ContactPhone, "state", state.State)
	return state, nil
}

// DeleteConversationState resets a contact back to the default document; the
// wire contract has no delete operation.
func (s *ConvexStore) DeleteConversationState(ctx context.Context, contactPhone string) error {
	_, err := s.SaveConversationState(ctx, models.NewConversationState(contactPhone))
	return err
}

// Close is a no-op for the HTTP-backed store.
func (s *ConvexStore) Close() error {
	return nil
}

// payloadToState fills a full conversation state from a partial wire payload,
// defaulting absent fields and rejecting unparseable enum values back to
// defaults rather than propagating them.
func payloadToState(contactPhone string, payload convexStatePayload) models.ConversationState {
	state := models.NewConversationState(contactPhone)
	if payload.State != nil {
		if parsed, err := models.ParseFunnelState(*payload.State); err == nil {
			state.State = parsed
		} else {
			slog.Warn("ConvexStore ignoring invalid funnel state from store", "value", *payload.State, "contact_phone", contactPhone)
		}
	}
	if payload.ExtractedData != nil {
		state.ExtractedData = payload.ExtractedData.Clone()
	}
	if payload.LeadScore != nil {
		state.LeadScore = *payload.LeadScore
	}
	if payload.LeadTemperature != nil {
		if parsed, err := models.ParseLeadTemperature(*payload.LeadTemperature); err == nil {
			state.LeadTemperature = parsed
		}
	}
	if payload.Language != nil {
		if parsed, err := models.ParseLanguage(*payload.Language); err == nil {
			state.Language = parsed
		}
	}
	if payload.MessageCount != nil {
		state.MessageCount = *payload.MessageCount
	}
	return state
}
