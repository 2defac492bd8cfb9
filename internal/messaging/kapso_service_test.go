package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/my21staff/SarahEngine/internal/models"
)

func TestNewKapsoServiceRequiresConfig(t *testing.T) {
	if _, err := NewKapsoService(); err == nil {
		t.Error("expected error when base URL is not set")
	}
	if _, err := NewKapsoService(WithKapsoBaseURL("http://localhost:9999")); err == nil {
		t.Error("expected error when API key is not set")
	}
}

func TestKapsoServiceSendMessage(t *testing.T) {
	var gotPath, gotKey string
	var gotPayload map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-API-Key")
		if err := json.NewDecoder(r.Body).Decode(&gotPayload); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	s, err := NewKapsoService(WithKapsoBaseURL(srv.URL), WithKapsoAPIKey("secret"))
	if err != nil {
		t.Fatalf("NewKapsoService failed: %v", err)
	}

	if err := s.SendMessage(context.Background(), "+62 812-3456-789", "Halo!"); err != nil {
		t.Fatalf("SendMessage returned error: %v", err)
	}
	if gotPath != "/whatsapp/messages" {
		t.Errorf("path = %s, want /whatsapp/messages", gotPath)
	}
	if gotKey != "secret" {
		t.Errorf("X-API-Key = %q, want secret", gotKey)
	}
	if gotPayload["phone_number"] != "628123456789" {
		t.Errorf("phone_number = %q, want 628123456789 (canonicalized)", gotPayload["phone_number"])
	}
	if gotPayload["message"] != "Halo!" {
		t.Errorf("message = %q, want Halo!", gotPayload["message"])
	}

	select {
	case receipt := <-s.Receipts():
		if receipt.Status != models.MessageStatusSent {
			t.Errorf("receipt status = %s, want sent", receipt.Status)
		}
		if receipt.To != "628123456789" {
			t.Errorf("receipt to = %q, want 628123456789", receipt.To)
		}
	default:
		t.Error("expected a sent receipt")
	}
}

func TestKapsoServiceSendMessageGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s, err := NewKapsoService(WithKapsoBaseURL(srv.URL), WithKapsoAPIKey("secret"))
	if err != nil {
		t.Fatalf("NewKapsoService failed: %v", err)
	}

	if err := s.SendMessage(context.Background(), "628123456789", "Halo"); err == nil {
		t.Fatal("expected error for 500 response")
	}
	select {
	case receipt := <-s.Receipts():
		if receipt.Status != models.MessageStatusFailed {
			t.Errorf("receipt status = %s, want failed", receipt.Status)
		}
	default:
		t.Error("expected a failed receipt")
	}
}

func TestKapsoServiceSendMessageInvalidRecipient(t *testing.T) {
	s, err := NewKapsoService(WithKapsoBaseURL("http://127.0.0.1:1"), WithKapsoAPIKey("secret"))
	if err != nil {
		t.Fatalf("NewKapsoService failed: %v", err)
	}
	tests := []string{"", "abc", "123"}
	for _, to := range tests {
		if err := s.SendMessage(context.Background(), to, "Halo"); err == nil {
			t.Errorf("SendMessage(%q) expected error", to)
		}
	}
}

func TestKapsoServiceSendAfterStop(t *testing.T) {
	s, err := NewKapsoService(WithKapsoBaseURL("http://127.0.0.1:1"), WithKapsoAPIKey("secret"))
	if err != nil {
		t.Fatalf("NewKapsoService failed: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}
	if err := s.SendMessage(context.Background(), "628123456789", "Halo"); !errors.Is(err, ErrServiceStopped) {
		t.Errorf("error = %v, want ErrServiceStopped", err)
	}
	// Stop is idempotent.
	if err := s.Stop(); err != nil {
		t.Errorf("second Stop returned error: %v", err)
	}
}

func TestKapsoServiceHandleInboundMessage(t *testing.T) {
	s, err := NewKapsoService(WithKapsoBaseURL("http://127.0.0.1:1"), WithKapsoAPIKey("secret"))
	if err != nil {
		t.Fatalf("NewKapsoService failed: %v", err)
	}

	s.HandleInboundMessage("+62 812-3456-789", "halo kak", models.MessageTypeText, 1700000000)

	select {
	case response := <-s.Responses():
		if response.From != "628123456789" {
			t.Errorf("From = %q, want 628123456789 (canonicalized)", response.From)
		}
		if response.Body != "halo kak" {
			t.Errorf("Body = %q, want halo kak", response.Body)
		}
		if response.Time != 1700000000 {
			t.Errorf("Time = %d, want 1700000000", response.Time)
		}
	default:
		t.Fatal("expected inbound message on responses channel")
	}
}

func TestKapsoServiceHandleInboundMessageDropsInvalidSender(t *testing.T) {
	s, err := NewKapsoService(WithKapsoBaseURL("http://127.0.0.1:1"), WithKapsoAPIKey("secret"))
	if err != nil {
		t.Fatalf("NewKapsoService failed: %v", err)
	}

	s.HandleInboundMessage("not-a-number", "halo", models.MessageTypeText, 0)

	select {
	case response := <-s.Responses():
		t.Errorf("expected message to be dropped, got %+v", response)
	default:
	}
}

func TestKapsoServiceHandleInboundFillsTimestamp(t *testing.T) {
	s, err := NewKapsoService(WithKapsoBaseURL("http://127.0.0.1:1"), WithKapsoAPIKey("secret"))
	if err != nil {
		t.Fatalf("NewKapsoService failed: %v", err)
	}

	s.HandleInboundMessage("628123456789", "halo", models.MessageTypeText, 0)

	select {
	case response := <-s.Responses():
		if response.Time == 0 {
			t.Error("expected zero timestamp to be replaced with current time")
		}
	default:
		t.Fatal("expected inbound message on responses channel")
	}
}
