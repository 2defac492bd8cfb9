// Package flow implements the lead-qualification conversation engine: slot
// extraction and scoring, the funnel state machine, and the per-turn pipeline
// that ties them to the state store and messaging layer.
package flow

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/my21staff/SarahEngine/internal/models"
)

// Point values for the additive lead score.
const (
	namePoints         = 5
	businessTypePoints = 10
	goalsPoints        = 10
	teamLargePoints    = 20 // team_size >= 3
	teamPairPoints     = 15 // team_size == 2
	teamSoloPoints     = 10 // team_size == 1
	urgencyHighPoints  = 30
	urgencyMedPoints   = 20
	painPresentPoints  = 10 // pain points on record, nothing stronger this turn
	engagementPoints   = 15 // flat per-turn bonus
)

// maxNameTokens bounds the short-reply name heuristic: greeting replies of at
// most this many whitespace-separated tokens are taken as the contact's name.
const maxNameTokens = 3

// Slot extraction patterns. Each list is ordered; the first match wins.
var (
	businessTypePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bbisnis\s+(.+)`),
		regexp.MustCompile(`(?i)\bjualan\s+(.+)`),
		regexp.MustCompile(`(?i)\btoko\s+(.+)`),
		regexp.MustCompile(`(?i)\b(restaurant|cafe|f&b|food|spa|wellness|fashion|online shop|e-commerce)\b`),
	}
	teamSizePattern = regexp.MustCompile(`(?i)\b(\d+)\s+(?:orang|people|person)\b`)
	goalsPatterns   = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bpengen\s+(.+)`),
		regexp.MustCompile(`(?i)\bmau\s+(.+)`),
		regexp.MustCompile(`(?i)\bbutuh\s+(.+)`),
		regexp.MustCompile(`(?i)\bwant\s+(.+)`),
		regexp.MustCompile(`(?i)\bneed\s+(.+)`),
	}
)

// urgencyKeywords is the three-tier pain-point table. Every keyword found in a
// message is recorded as a pain point; the highest tier matched in the turn
// becomes that turn's urgency.
var urgencyKeywords = []struct {
	tier     models.Urgency
	keywords []string
}{
	{models.UrgencyHigh, []string{"kewalahan", "overwhelmed", "miss message", "slow response", "lambat", "complaint"}},
	{models.UrgencyMedium, []string{"busy", "sibuk", "need help", "growth", "growing", "manual"}},
	{models.UrgencyLow, []string{"curious", "penasaran", "checking", "lihat-lihat", "maybe"}},
}

// ExtractionResult is the per-turn output of ExtractAndScore.
type ExtractionResult struct {
	Data            models.ExtractedData   `json:"extracted_data"`
	LeadScore       int                    `json:"lead_score"`
	LeadTemperature models.LeadTemperature `json:"lead_temperature"`
	// Urgency is this turn's pain tier. It feeds scoring but is not persisted.
	Urgency models.Urgency `json:"urgency"`
}

// ExtractAndScore incrementally builds the extracted slots from an inbound
// message and recomputes the lead score and temperature. The input data is
// never mutated; extraction is first-write-wins per slot, pain points are a
// growing set union.
func ExtractAndScore(current models.ExtractedData, state models.FunnelState, message string) ExtractionResult {
	data := current.Clone()
	trimmed := strings.TrimSpace(message)
	lower := strings.ToLower(trimmed)

	data.Name = models.MergeField(data.Name, extractName(state, trimmed))
	data.BusinessType = models.MergeField(data.BusinessType, extractBusinessType(trimmed))
	data.TeamSize = models.MergeField(data.TeamSize, extractTeamSize(trimmed))
	data.Goals = models.MergeField(data.Goals, extractGoals(trimmed))

	urgency := collectPainPoints(&data, lower)
	score := scoreLead(data, urgency)

	return ExtractionResult{
		Data:            data,
		LeadScore:       score,
		LeadTemperature: models.TemperatureForScore(score),
		Urgency:         urgency,
	}
}

// extractName applies the short-reply heuristic: while still greeting, a reply
// of at most three tokens is assumed to be the contact introducing themselves.
func extractName(state models.FunnelState, trimmed string) *string {
	if state != models.FunnelStateGreeting || trimmed == "" {
		return nil
	}
	if len(strings.Fields(trimmed)) > maxNameTokens {
		return nil
	}
	return &trimmed
}

func extractBusinessType(trimmed string) *string {
	for _, pattern := range businessTypePatterns {
		m := pattern.FindStringSubmatch(trimmed)
		if m == nil {
			continue
		}
		value := m[0]
		if len(m) > 1 && m[1] != "" {
			value = m[1]
		}
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		return &value
	}
	return nil
}

func extractTeamSize(trimmed string) *int {
	m := teamSizePattern.FindStringSubmatch(trimmed)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		// Digits that overflow int are ignored rather than poisoning the slot.
		slog.Debug("flow.extractTeamSize: unparseable capture ignored", "capture", m[1], "error", err)
		return nil
	}
	return &n
}

func extractGoals(trimmed string) *string {
	for _, pattern := range goalsPatterns {
		m := pattern.FindStringSubmatch(trimmed)
		if m == nil {
			continue
		}
		value := strings.TrimSpace(m[1])
		if value == "" {
			continue
		}
		return &value
	}
	return nil
}

// collectPainPoints appends every pain keyword found in the lowered message to
// data.PainPoints (set union) and returns the highest tier matched this turn.
func collectPainPoints(data *models.ExtractedData, lower string) models.Urgency {
	urgency := models.UrgencyLow
	for _, tier := range urgencyKeywords {
		for _, kw := range tier.keywords {
			if !strings.Contains(lower, kw) {
				continue
			}
			data.AddPainPoint(kw)
			if tier.tier.Rank() > urgency.Rank() {
				urgency = tier.tier
			}
		}
	}
	return urgency
}

// scoreLead computes the additive lead score, clamped to [0,MaxLeadScore].
func scoreLead(data models.ExtractedData, urgency models.Urgency) int {
	score := 0
	if data.Name != nil {
		score += namePoints
	}
	if data.BusinessType != nil {
		score += businessTypePoints
	}
	if data.Goals != nil {
		score += goalsPoints
	}
	if data.TeamSize != nil {
		switch {
		case *data.TeamSize >= 3:
			score += teamLargePoints
		case *data.TeamSize == 2:
			score += teamPairPoints
		case *data.TeamSize == 1:
			score += teamSoloPoints
		}
	}
	switch urgency {
	case models.UrgencyHigh:
		score += urgencyHighPoints
	case models.UrgencyMedium:
		score += urgencyMedPoints
	default:
		if len(data.PainPoints) > 0 {
			score += painPresentPoints
		}
	}
	score += engagementPoints

	if score > models.MaxLeadScore {
		score = models.MaxLeadScore
	}
	if score < 0 {
		score = 0
	}
	return score
}
