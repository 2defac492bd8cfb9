package language

import (
	"testing"

	"github.com/my21staff/SarahEngine/internal/models"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name    string
		current models.Language
		message string
		want    models.Language
	}{
		{
			name:    "indonesian greeting flips english conversation back",
			current: models.LanguageEnglish,
			message: "halo kak",
			want:    models.LanguageIndonesian,
		},
		{
			name:    "english greeting flips indonesian conversation",
			current: models.LanguageIndonesian,
			message: "hello there",
			want:    models.LanguageEnglish,
		},
		{
			name:    "indonesian wins when both match",
			current: models.LanguageEnglish,
			message: "hello kakak",
			want:    models.LanguageIndonesian,
		},
		{
			name:    "neutral message is sticky for english",
			current: models.LanguageEnglish,
			message: "12345",
			want:    models.LanguageEnglish,
		},
		{
			name:    "neutral message is sticky for indonesian",
			current: models.LanguageIndonesian,
			message: "bagaimana caranya?",
			want:    models.LanguageIndonesian,
		},
		{
			name:    "empty current defaults to indonesian",
			current: "",
			message: "???",
			want:    models.LanguageIndonesian,
		},
		{
			name:    "case insensitive match",
			current: models.LanguageIndonesian,
			message: "HELLO",
			want:    models.LanguageEnglish,
		},
		{
			name:    "word boundary respected",
			current: models.LanguageIndonesian,
			message: "shiny things", // "hi" inside a word must not match
			want:    models.LanguageIndonesian,
		},
		{
			name:    "ya as a whole word",
			current: models.LanguageEnglish,
			message: "ya betul",
			want:    models.LanguageIndonesian,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Resolve(tt.current, tt.message); got != tt.want {
				t.Errorf("Resolve(%q, %q) = %q, want %q", tt.current, tt.message, got, tt.want)
			}
		})
	}
}
