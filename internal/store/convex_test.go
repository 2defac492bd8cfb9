package store

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/my21staff/SarahEngine/internal/models"
)

func TestNewConvexStoreRequiresBaseURL(t *testing.T) {
	if _, err := NewConvexStore(); err == nil {
		t.Fatal("expected error when base URL is not set")
	}
}

func TestConvexStoreGetConversationState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		if r.URL.Path != "/sarah/state" {
			t.Errorf("path = %s, want /sarah/state", r.URL.Path)
		}
		if got := r.URL.Query().Get("contact_phone"); got != "628123456789" {
			t.Errorf("contact_phone = %q, want 628123456789", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"contact_phone": "628123456789",
			"state": "qualifying",
			"extracted_data": {"name": "Budi"},
			"lead_score": 25,
			"lead_temperature": "cold",
			"language": "id",
			"message_count": 2
		}`))
	}))
	defer srv.Close()

	s, err := NewConvexStore(WithConvexBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("NewConvexStore failed: %v", err)
	}
	state, err := s.GetConversationState(context.Background(), "628123456789")
	if err != nil {
		t.Fatalf("GetConversationState returned error: %v", err)
	}
	if state == nil {
		t.Fatal("expected state, got nil")
	}
	if state.State != models.FunnelStateQualifying {
		t.Errorf("State = %s, want qualifying", state.State)
	}
	if state.ExtractedData.Name == nil || *state.ExtractedData.Name != "Budi" {
		t.Errorf("Name = %v, want Budi", state.ExtractedData.Name)
	}
	if state.LeadScore != 25 {
		t.Errorf("LeadScore = %d, want 25", state.LeadScore)
	}
	if state.MessageCount != 2 {
		t.Errorf("MessageCount = %d, want 2", state.MessageCount)
	}
}

func TestConvexStoreGetDefaultsSparsePayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"contact_phone": "628123456789", "state": "not-a-state"}`))
	}))
	defer srv.Close()

	s, err := NewConvexStore(WithConvexBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("NewConvexStore failed: %v", err)
	}
	state, err := s.GetConversationState(context.Background(), "628123456789")
	if err != nil {
		t.Fatalf("GetConversationState returned error: %v", err)
	}
	if state.State != models.FunnelStateGreeting {
		t.Errorf("State = %s, want greeting (invalid enum falls back to default)", state.State)
	}
	if state.LeadTemperature != models.TemperatureCold {
		t.Errorf("LeadTemperature = %s, want cold", state.LeadTemperature)
	}
	if state.Language != models.LanguageIndonesian {
		t.Errorf("Language = %s, want id", state.Language)
	}
	if state.MessageCount != 0 {
		t.Errorf("MessageCount = %d, want 0", state.MessageCount)
	}
}

func TestConvexStoreGetNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s, err := NewConvexStore(WithConvexBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("NewConvexStore failed: %v", err)
	}
	state, err := s.GetConversationState(context.Background(), "628123456789")
	if err != nil {
		t.Fatalf("GetConversationState returned error: %v", err)
	}
	if state != nil {
		t.Errorf("expected nil for 404, got %+v", state)
	}
}

func TestConvexStoreGetServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s, err := NewConvexStore(WithConvexBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("NewConvexStore failed: %v", err)
	}
	if _, err := s.GetConversationState(context.Background(), "628123456789"); err == nil {
		t.Error("expected error for 500 response")
	}
}

func TestConvexStoreSaveConversationState(t *testing.T) {
	var received convexStatePayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/sarah/state" {
			t.Errorf("path = %s, want /sarah/state", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s, err := NewConvexStore(WithConvexBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("NewConvexStore failed: %v", err)
	}

	state := models.NewConversationState("628123456789")
	state.State = models.FunnelStateScoring
	state.LeadScore = 55
	state.LeadTemperature = models.TemperatureWarm
	state.MessageCount = 4
	state.Version = 7

	saved, err := s.SaveConversationState(context.Background(), state)
	if err != nil {
		t.Fatalf("SaveConversationState returned error: %v", err)
	}
	if received.ContactPhone != "628123456789" {
		t.Errorf("wire contact_phone = %q, want 628123456789", received.ContactPhone)
	}
	if received.State == nil || *received.State != "scoring" {
		t.Errorf("wire state = %v, want scoring", received.State)
	}
	if received.LeadScore == nil || *received.LeadScore != 55 {
		t.Errorf("wire lead_score = %v, want 55", received.LeadScore)
	}
	// Last-write-wins backend: version does not round-trip.
	if saved.Version != 0 {
		t.Errorf("saved Version = %d, want 0", saved.Version)
	}
}

func TestConvexStoreSaveServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s, err := NewConvexStore(WithConvexBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("NewConvexStore failed: %v", err)
	}
	if _, err := s.SaveConversationState(context.Background(), models.NewConversationState("628123456789")); err == nil {
		t.Error("expected error for 502 response")
	}
}

func TestConvexStoreDeleteResetsToDefault(t *testing.T) {
	var received convexStatePayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s, err := NewConvexStore(WithConvexBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("NewConvexStore failed: %v", err)
	}
	if err := s.DeleteConversationState(context.Background(), "628123456789"); err != nil {
		t.Fatalf("DeleteConversationState returned error: %v", err)
	}
	if received.State == nil || *received.State != "greeting" {
		t.Errorf("wire state = %v, want greeting", received.State)
	}
	if received.MessageCount == nil || *received.MessageCount != 0 {
		t.Errorf("wire message_count = %v, want 0", received.MessageCount)
	}
}
