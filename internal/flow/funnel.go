package flow

import (
	"log/slog"

	"github.com/my21staff/SarahEngine/internal/models"
)

// DetermineState is the pure transition function of the qualification funnel.
// The funnel only moves forward:
//
//	greeting → qualifying              (unconditional)
//	qualifying → scoring               (all qualification slots filled)
//	scoring → handoff                  (lead score >= HotScoreThreshold)
//	scoring → completed                (lead score < WarmScoreThreshold)
//	scoring → scoring                  (score in the middle band, awaiting signal)
//
// Terminal states map to themselves. FunnelState is a closed enum, so the
// identity fallthrough can only ever see handoff or completed.
func DetermineState(current models.FunnelState, data models.ExtractedData, leadScore int) models.FunnelState {
	switch current {
	case models.FunnelStateGreeting:
		return models.FunnelStateQualifying
	case models.FunnelStateQualifying:
		if data.Complete() {
			return models.FunnelStateScoring
		}
		return models.FunnelStateQualifying
	case models.FunnelStateScoring:
		if leadScore >= models.HotScoreThreshold {
			return models.FunnelStateHandoff
		}
		if leadScore < models.WarmScoreThreshold {
			return models.FunnelStateCompleted
		}
		return models.FunnelStateScoring
	default:
		slog.Debug("flow.DetermineState: terminal state, no transition", "state", current)
		return current
	}
}
