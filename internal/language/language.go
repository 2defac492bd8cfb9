// Package language implements the lightweight two-pattern language detection
// used when persisting a turn. Only the current inbound message is inspected,
// never the conversation history, and the stored language is sticky: a message
// matching neither pattern leaves it unchanged.
package language

import (
	"regexp"

	"github.com/my21staff/SarahEngine/internal/models"
)

// The check is deliberately asymmetric: Indonesian indicators win outright,
// English only flips the language when no Indonesian indicator is present.
var (
	englishPattern    = regexp.MustCompile(`(?i)\b(hi|hello|hey|yeah|okay|sure|thanks)\b`)
	indonesianPattern = regexp.MustCompile(`(?i)\b(halo|hai|selamat|ada|nggak|gak|ya|yah|sih|kakak)\b`)
)

// Resolve returns the language to persist for this turn given the currently
// stored language and the inbound message body.
func Resolve(current models.Language, message string) models.Language {
	indonesian := indonesianPattern.MatchString(message)
	if indonesian {
		return models.LanguageIndonesian
	}
	if englishPattern.MatchString(message) {
		return models.LanguageEnglish
	}
	if current == "" {
		return models.LanguageIndonesian
	}
	return current
}
