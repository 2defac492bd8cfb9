// Package models defines conversation state structures for the qualification funnel.
package models

import (
	"fmt"
	"time"
)

// FunnelState represents the stage of a contact in the qualification funnel.
// The set is closed: ParseFunnelState rejects anything outside it, so a mistyped
// state is a construction-time error rather than a silent no-op downstream.
type FunnelState string

const (
	// FunnelStateGreeting is the initial stage for a new contact.
	FunnelStateGreeting FunnelState = "greeting"
	// FunnelStateQualifying is the stage where qualification slots are collected.
	FunnelStateQualifying FunnelState = "qualifying"
	// FunnelStateScoring is the stage where the lead score decides the outcome.
	FunnelStateScoring FunnelState = "scoring"
	// FunnelStateHandoff is the terminal stage for leads routed to a human operator.
	FunnelStateHandoff FunnelState = "handoff"
	// FunnelStateCompleted is the terminal stage for closed-out conversations.
	FunnelStateCompleted FunnelState = "completed"
)

// ParseFunnelState validates and converts a raw string into a FunnelState.
func ParseFunnelState(s string) (FunnelState, error) {
	switch FunnelState(s) {
	case FunnelStateGreeting, FunnelStateQualifying, FunnelStateScoring, FunnelStateHandoff, FunnelStateCompleted:
		return FunnelState(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidFunnelState, s)
	}
}

// IsTerminal reports whether the state ends automatic funnel progression.
func (s FunnelState) IsTerminal() bool {
	return s == FunnelStateHandoff || s == FunnelStateCompleted
}

// LeadTemperature is the categorical bucket derived from the lead score.
type LeadTemperature string

const (
	// TemperatureCold marks leads scoring below the warm threshold.
	TemperatureCold LeadTemperature = "cold"
	// TemperatureWarm marks leads scoring in the middle band.
	TemperatureWarm LeadTemperature = "warm"
	// TemperatureHot marks leads at or above the handoff threshold.
	TemperatureHot LeadTemperature = "hot"
)

// Score thresholds for temperature bands and funnel decisions.
const (
	// HotScoreThreshold is the minimum score for a hot lead (and the scoring→handoff cut).
	HotScoreThreshold = 70
	// WarmScoreThreshold is the minimum score for a warm lead (and the scoring→completed cut).
	WarmScoreThreshold = 40
	// MaxLeadScore is the upper clamp for the lead score.
	MaxLeadScore = 100
)

// TemperatureForScore maps a lead score to its temperature band.
func TemperatureForScore(score int) LeadTemperature {
	switch {
	case score >= HotScoreThreshold:
		return TemperatureHot
	case score >= WarmScoreThreshold:
		return TemperatureWarm
	default:
		return TemperatureCold
	}
}

// ParseLeadTemperature validates and converts a raw string into a LeadTemperature.
func ParseLeadTemperature(s string) (LeadTemperature, error) {
	switch LeadTemperature(s) {
	case TemperatureCold, TemperatureWarm, TemperatureHot:
		return LeadTemperature(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidLeadTemperature, s)
	}
}

// Language is the detected conversation language.
type Language string

const (
	// LanguageIndonesian is the default conversation language.
	LanguageIndonesian Language = "id"
	// LanguageEnglish is used once English indicators dominate a message.
	LanguageEnglish Language = "en"
)

// ParseLanguage validates and converts a raw string into a Language.
func ParseLanguage(s string) (Language, error) {
	switch Language(s) {
	case LanguageIndonesian, LanguageEnglish:
		return Language(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidLanguage, s)
	}
}

// Urgency classifies the strongest pain-point tier matched in a single turn.
// It feeds scoring but is not persisted.
type Urgency string

const (
	// UrgencyLow is the default when no stronger tier matched this turn.
	UrgencyLow Urgency = "low"
	// UrgencyMedium marks a medium-tier pain keyword match.
	UrgencyMedium Urgency = "medium"
	// UrgencyHigh marks a high-tier pain keyword match.
	UrgencyHigh Urgency = "high"
)

// Rank orders urgencies so the highest tier matched in a turn wins.
func (u Urgency) Rank() int {
	switch u {
	case UrgencyHigh:
		return 2
	case UrgencyMedium:
		return 1
	default:
		return 0
	}
}

// ExtractedData holds the structured slots pulled from conversation text.
// Name, BusinessType, TeamSize, and Goals are set-once (first-write-wins);
// PainPoints accumulates across turns as a deduplicated, insertion-ordered list.
type ExtractedData struct {
	Name         *string  `json:"name,omitempty"`
	BusinessType *string  `json:"business_type,omitempty"`
	TeamSize     *int     `json:"team_size,omitempty"`
	PainPoints   []string `json:"pain_points,omitempty"`
	Goals        *string  `json:"goals,omitempty"`
}

// MergeField implements the set-once rule for extracted slots: the existing
// value always wins, a candidate only fills an empty slot.
func MergeField[T any](existing, candidate *T) *T {
	if existing != nil {
		return existing
	}
	return candidate
}

// AddPainPoint appends a pain keyword, preserving insertion order and skipping
// duplicates. It reports whether the keyword was newly added.
func (d *ExtractedData) AddPainPoint(kw string) bool {
	for _, existing := range d.PainPoints {
		if existing == kw {
			return false
		}
	}
	d.PainPoints = append(d.PainPoints, kw)
	return true
}

// Clone returns a deep copy so per-turn extraction never aliases stored state.
func (d ExtractedData) Clone() ExtractedData {
	out := ExtractedData{
		Name:         copyStringPtr(d.Name),
		BusinessType: copyStringPtr(d.BusinessType),
		Goals:        copyStringPtr(d.Goals),
	}
	if d.TeamSize != nil {
		v := *d.TeamSize
		out.TeamSize = &v
	}
	if len(d.PainPoints) > 0 {
		out.PainPoints = append([]string(nil), d.PainPoints...)
	}
	return out
}

// Complete reports whether every qualification slot is filled: name, business
// type, team size (defined, including zero), at least one pain point, and goals.
func (d ExtractedData) Complete() bool {
	return d.Name != nil && d.BusinessType != nil && d.TeamSize != nil && len(d.PainPoints) > 0 && d.Goals != nil
}

func copyStringPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// ConversationState is the per-contact funnel state, keyed by phone number and
// rewritten wholesale at the end of every processed turn.
type ConversationState struct {
	ContactPhone    string          `json:"contact_phone"`
	State           FunnelState     `json:"state"`
	ExtractedData   ExtractedData   `json:"extracted_data"`
	LeadScore       int             `json:"lead_score"`
	LeadTemperature LeadTemperature `json:"lead_temperature"`
	Language        Language        `json:"language"`
	MessageCount    int             `json:"message_count"`
	// Version supports conditional writes on backends that can enforce them.
	// Zero means the state has never been persisted.
	Version   int64     `json:"version,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// NewConversationState returns the default state for a first-time contact.
func NewConversationState(contactPhone string) ConversationState {
	return ConversationState{
		ContactPhone:    contactPhone,
		State:           FunnelStateGreeting,
		ExtractedData:   ExtractedData{},
		LeadScore:       0,
		LeadTemperature: TemperatureCold,
		Language:        LanguageIndonesian,
		MessageCount:    0,
	}
}

// Validate checks the invariants that must hold for any persisted state.
func (s *ConversationState) Validate() error {
	if s.ContactPhone == "" {
		return ErrEmptyContactPhone
	}
	if _, err := ParseFunnelState(string(s.State)); err != nil {
		return err
	}
	if _, err := ParseLeadTemperature(string(s.LeadTemperature)); err != nil {
		return err
	}
	if _, err := ParseLanguage(string(s.Language)); err != nil {
		return err
	}
	if s.LeadScore < 0 || s.LeadScore > MaxLeadScore {
		return ErrLeadScoreOutOfRange
	}
	if s.MessageCount < 0 {
		return ErrNegativeMessageCount
	}
	return nil
}
