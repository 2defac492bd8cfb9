// Package keyword provides cheap, stateless intent classification for inbound
// messages: explicit handoff requests, disinterest, and media detection.
//
// Matching is intentionally crude case-insensitive substring matching. False
// positives are acceptable because the downstream action (offering a handoff)
// is cheap; precision is not critical here.
package keyword

import (
	"strings"

	"github.com/my21staff/SarahEngine/internal/models"
)

// disinterestKeywords flag a contact who is closing out the conversation.
var disinterestKeywords = []string{
	"not interested",
	"tidak tertarik",
	"no thanks",
	"ga jadi",
	"nggak dulu",
}

// Flags is the classifier output for a single inbound message.
type Flags struct {
	WantsHandoff  bool `json:"wants_handoff"`
	NotInterested bool `json:"not_interested"`
	IsImage       bool `json:"is_image"`
}

// Classify runs the classifier with the built-in handoff keyword list.
func Classify(content string, msgType models.MessageType) Flags {
	return ClassifyWith(content, msgType, models.DefaultHandoffKeywords())
}

// ClassifyWith runs the classifier with a workspace-specific handoff keyword
// list. Missing content is treated as an empty string; there are no failure
// modes and no side effects.
func ClassifyWith(content string, msgType models.MessageType, handoffKeywords []string) Flags {
	if len(handoffKeywords) == 0 {
		handoffKeywords = models.DefaultHandoffKeywords()
	}
	lower := strings.ToLower(content)
	return Flags{
		WantsHandoff:  containsAny(lower, handoffKeywords),
		NotInterested: containsAny(lower, disinterestKeywords),
		IsImage:       msgType == models.MessageTypeImage,
	}
}

func containsAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
