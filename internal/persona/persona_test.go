package persona

import (
	"reflect"
	"strings"
	"testing"

	"github.com/my21staff/SarahEngine/internal/models"
)

func TestValidateTags(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{
			name:  "known tags pass through in order",
			input: []string{"friendly", "concise"},
			want:  []string{"friendly", "concise"},
		},
		{
			name:  "unknown tags stripped",
			input: []string{"friendly", "sarcastic", "clear"},
			want:  []string{"friendly", "clear"},
		},
		{
			name:  "normalization",
			input: []string{" Friendly ", "CONCISE"},
			want:  []string{"friendly", "concise"},
		},
		{
			name:  "duplicates removed",
			input: []string{"clear", "clear", "friendly"},
			want:  []string{"clear", "friendly"},
		},
		{
			name:  "concise wins over later detailed",
			input: []string{"concise", "detailed"},
			want:  []string{"concise"},
		},
		{
			name:  "detailed wins when listed first",
			input: []string{"detailed", "concise"},
			want:  []string{"detailed"},
		},
		{
			name:  "formal casual exclusion",
			input: []string{"casual", "supportive", "formal"},
			want:  []string{"casual", "supportive"},
		},
		{name: "empty input", input: nil, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateTags(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ValidateTags(%v) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestBuildPromptGuide(t *testing.T) {
	cfg := models.DefaultWorkspaceBotSettings()
	guide := BuildPromptGuide(cfg, models.LanguageIndonesian)

	if !strings.Contains(guide, "You are Sarah") {
		t.Errorf("guide missing persona name: %q", guide)
	}
	if !strings.Contains(guide, "Reply in Indonesian.") {
		t.Errorf("guide missing language instruction: %q", guide)
	}
	if !strings.Contains(guide, "Keep replies under 280 characters.") {
		t.Errorf("guide missing length cap: %q", guide)
	}
	if !strings.Contains(guide, "at most one emoji") {
		t.Errorf("guide missing emoji instruction for moderate level: %q", guide)
	}
	// Default settings share price ranges, so no pricing deferral line.
	if strings.Contains(guide, "Do not quote prices") {
		t.Errorf("guide unexpectedly defers pricing: %q", guide)
	}
}

func TestBuildPromptGuideVariants(t *testing.T) {
	cfg := models.DefaultWorkspaceBotSettings()
	cfg.Persona.Name = ""
	cfg.Persona.ToneTags = []string{"no_pressure", "bogus"}
	cfg.Response.EmojiLevel = "none"
	cfg.Response.SharePriceRanges = false

	guide := BuildPromptGuide(cfg, models.LanguageEnglish)

	if !strings.Contains(guide, "You are Sarah") {
		t.Errorf("empty persona name should default to Sarah: %q", guide)
	}
	if !strings.Contains(guide, "Reply in English.") {
		t.Errorf("guide missing english instruction: %q", guide)
	}
	if !strings.Contains(guide, "Never pressure the customer") {
		t.Errorf("guide missing no_pressure instruction: %q", guide)
	}
	if strings.Contains(guide, "bogus") {
		t.Errorf("unknown tag leaked into guide: %q", guide)
	}
	if !strings.Contains(guide, "Do not use emoji.") {
		t.Errorf("guide missing emoji prohibition: %q", guide)
	}
	if !strings.Contains(guide, "Do not quote prices") {
		t.Errorf("guide missing pricing deferral: %q", guide)
	}
}
