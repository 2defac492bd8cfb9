package genai

import "testing"

func TestNewClientRequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := NewClient(); err == nil {
		t.Fatal("expected error when no API key is configured")
	}
}

func TestNewClientUsesEnvFallback(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	c, err := NewClient()
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if c.model != DefaultModel {
		t.Errorf("model = %q, want default %q", c.model, DefaultModel)
	}
}

func TestNewClientModelOverride(t *testing.T) {
	c, err := NewClient(WithAPIKey("sk-test"), WithModel("gpt-4o"))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if c.model != "gpt-4o" {
		t.Errorf("model = %q, want gpt-4o", c.model)
	}
}
