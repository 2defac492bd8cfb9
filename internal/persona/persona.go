// Package persona provides a fixed whitelist of persona tone tags, validation,
// mutual-exclusion enforcement, and prompt-guide construction for generated
// replies. Workspace settings may carry arbitrary tags; only whitelisted ones
// ever reach a prompt.
package persona

import (
	"fmt"
	"strings"

	"github.com/my21staff/SarahEngine/internal/models"
)

// AllTags is the hard-coded set of safe persona tone tags.
var AllTags = map[string]bool{
	// Style
	"concise":  true,
	"detailed": true,
	"formal":   true,
	"casual":   true,
	"clear":    true,
	// Stance
	"supportive":   true,
	"friendly":     true,
	"professional": true,
	"direct":       true,
	// Interaction
	"one_question_at_a_time": true,
	"no_pressure":            true,
}

// mutuallyExclusivePairs defines tags where at most one may be active; the
// earlier tag in the settings list wins.
var mutuallyExclusivePairs = [][2]string{
	{"concise", "detailed"},
	{"formal", "casual"},
}

// guideForTag maps each tag to the instruction it contributes to the prompt guide.
var guideForTag = map[string]string{
	"concise":                "Keep answers short.",
	"detailed":               "Explain thoroughly when asked.",
	"formal":                 "Use formal language.",
	"casual":                 "Keep the register casual and warm.",
	"clear":                  "Prefer plain words over jargon.",
	"supportive":             "Acknowledge the customer's situation before advising.",
	"friendly":               "Be approachable and positive.",
	"professional":           "Stay businesslike.",
	"direct":                 "Get to the point quickly.",
	"one_question_at_a_time": "Ask at most one question per message.",
	"no_pressure":            "Never pressure the customer toward a purchase.",
}

// ValidateTags strips unknown tags and resolves mutual exclusions, preserving
// the input order of surviving tags.
func ValidateTags(tags []string) []string {
	var cleaned []string
	seen := make(map[string]bool)
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if !AllTags[tag] || seen[tag] {
			continue
		}
		seen[tag] = true
		cleaned = append(cleaned, tag)
	}
	for _, pair := range mutuallyExclusivePairs {
		if seen[pair[0]] && seen[pair[1]] {
			// first-listed tag wins
			cleaned = removeTag(cleaned, laterOf(cleaned, pair[0], pair[1]))
		}
	}
	return cleaned
}

func laterOf(tags []string, a, b string) string {
	for _, tag := range tags {
		if tag == a {
			return b
		}
		if tag == b {
			return a
		}
	}
	return b
}

func removeTag(tags []string, target string) []string {
	out := tags[:0]
	for _, tag := range tags {
		if tag != target {
			out = append(out, tag)
		}
	}
	return out
}

// BuildPromptGuide constructs the system-prompt guide for generated replies
// from workspace persona settings and the resolved conversation language.
func BuildPromptGuide(settings models.WorkspaceBotSettings, lang models.Language) string {
	var b strings.Builder
	name := settings.Persona.Name
	if name == "" {
		name = "Sarah"
	}
	fmt.Fprintf(&b, "You are %s, a %s WhatsApp assistant qualifying business leads.\n", name, settings.Persona.Style)
	if lang == models.LanguageEnglish {
		b.WriteString("Reply in English.\n")
	} else {
		b.WriteString("Reply in Indonesian.\n")
	}
	for _, tag := range ValidateTags(settings.Persona.ToneTags) {
		if guide, ok := guideForTag[tag]; ok {
			b.WriteString(guide)
			b.WriteString("\n")
		}
	}
	if settings.Response.MaxLength > 0 {
		fmt.Fprintf(&b, "Keep replies under %d characters.\n", settings.Response.MaxLength)
	}
	switch settings.Response.EmojiLevel {
	case "none":
		b.WriteString("Do not use emoji.\n")
	case "moderate":
		b.WriteString("Use at most one emoji per message.\n")
	}
	if !settings.Response.SharePriceRanges {
		b.WriteString("Do not quote prices; defer pricing to the sales team.\n")
	}
	return b.String()
}
