package twiliowhatsapp

import (
	"context"
	"testing"
)

func TestNewClientRequiresCredentials(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("TWILIO_FROM_NUMBER", "")

	if _, err := NewClient(); err == nil {
		t.Error("expected error with no credentials configured")
	}
	if _, err := NewClient(WithAccountSID("AC123"), WithAuthToken("token")); err == nil {
		t.Error("expected error when sender number is missing")
	}
}

func TestNewClientUsesEnvFallback(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "AC123")
	t.Setenv("TWILIO_AUTH_TOKEN", "token")
	t.Setenv("TWILIO_FROM_NUMBER", "whatsapp:+14155238886")

	c, err := NewClient()
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if c.fromWhats != "whatsapp:+14155238886" {
		t.Errorf("fromWhats = %q, want whatsapp:+14155238886", c.fromWhats)
	}
}

func TestMockClientRecordsMessages(t *testing.T) {
	mock := NewMockClient()
	if err := mock.SendMessage(context.Background(), "+628123456789", "Halo"); err != nil {
		t.Fatalf("SendMessage returned error: %v", err)
	}
	if len(mock.SentMessages) != 1 {
		t.Fatalf("recorded %d messages, want 1", len(mock.SentMessages))
	}
	if mock.SentMessages[0].To != "+628123456789" || mock.SentMessages[0].Body != "Halo" {
		t.Errorf("recorded message = %+v", mock.SentMessages[0])
	}
}
