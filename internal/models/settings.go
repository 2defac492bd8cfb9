// Package models defines per-workspace bot configuration structures.
package models

// PersonaSettings controls how Sarah introduces and expresses herself.
type PersonaSettings struct {
	Name          string   `json:"name"`
	Style         string   `json:"style"`          // e.g. "friendly"
	Language      string   `json:"language"`       // default conversation language
	ToneTags      []string `json:"tone_tags"`      // validated against persona.AllTags
	GreetingStyle string   `json:"greeting_style"` // e.g. "casual"
}

// BehaviorSettings controls when Sarah responds at all.
type BehaviorSettings struct {
	// AutoRespond is a pointer so a workspace document that omits the field
	// can be told apart from one that explicitly disables replies.
	AutoRespond          *bool    `json:"auto_respond"`
	HandoffKeywords      []string `json:"handoff_keywords"`
	QuietHoursEnabled    bool     `json:"quiet_hours_enabled"`
	QuietHoursStart      string   `json:"quiet_hours_start"` // "HH:MM" local time
	QuietHoursEnd        string   `json:"quiet_hours_end"`   // "HH:MM" local time
	MaxMessagesBeforeHum int      `json:"max_messages_before_human"`
}

// AutoRespondOn reports whether replies are enabled; unset means on.
func (b BehaviorSettings) AutoRespondOn() bool {
	return b.AutoRespond == nil || *b.AutoRespond
}

// ResponseSettings controls the shape of outbound replies.
type ResponseSettings struct {
	MaxLength        int    `json:"max_length"` // characters, truncation cap
	EmojiLevel       string `json:"emoji_level"`
	SharePriceRanges bool   `json:"share_price_ranges"`
	ReplyDelay       string `json:"reply_delay"` // e.g. "instant"
}

// WorkspaceBotSettings is the per-tenant persona/behavior/response configuration
// fetched from the intern settings service.
type WorkspaceBotSettings struct {
	WorkspaceID string           `json:"workspace_id,omitempty"`
	Persona     PersonaSettings  `json:"persona"`
	Behavior    BehaviorSettings `json:"behavior"`
	Response    ResponseSettings `json:"response"`
}

// DefaultHandoffKeywords is the built-in multilingual handoff keyword list used
// when a workspace does not configure its own.
func DefaultHandoffKeywords() []string {
	return []string{"human", "manusia", "person", "sales", "consultant", "talk to someone", "operator", "cs", "customer service"}
}

// DefaultWorkspaceBotSettings is the single fallback configuration used whenever
// the settings service is unreachable or returns a non-OK response. Both failure
// paths must return this value; there is exactly one copy so they cannot drift.
func DefaultWorkspaceBotSettings() WorkspaceBotSettings {
	autoRespond := true
	return WorkspaceBotSettings{
		Persona: PersonaSettings{
			Name:          "Sarah",
			Style:         "friendly",
			Language:      string(LanguageIndonesian),
			ToneTags:      []string{"supportive", "clear"},
			GreetingStyle: "casual",
		},
		Behavior: BehaviorSettings{
			AutoRespond:          &autoRespond,
			HandoffKeywords:      DefaultHandoffKeywords(),
			QuietHoursEnabled:    false,
			QuietHoursStart:      "22:00",
			QuietHoursEnd:        "08:00",
			MaxMessagesBeforeHum: 10,
		},
		Response: ResponseSettings{
			MaxLength:        280,
			EmojiLevel:       "moderate",
			SharePriceRanges: true,
			ReplyDelay:       "instant",
		},
	}
}
