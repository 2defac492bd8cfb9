package flow

import (
	"testing"

	"github.com/my21staff/SarahEngine/internal/models"
)

func completeData() models.ExtractedData {
	return models.ExtractedData{
		Name:         strPtr("Budi"),
		BusinessType: strPtr("restaurant"),
		TeamSize:     intPtr(4),
		PainPoints:   []string{"kewalahan"},
		Goals:        strPtr("respon cepat"),
	}
}

func TestDetermineState(t *testing.T) {
	tests := []struct {
		name    string
		current models.FunnelState
		data    models.ExtractedData
		score   int
		want    models.FunnelState
	}{
		{
			name:    "greeting always advances",
			current: models.FunnelStateGreeting,
			want:    models.FunnelStateQualifying,
		},
		{
			name:    "greeting advances even with empty data",
			current: models.FunnelStateGreeting,
			data:    models.ExtractedData{},
			score:   0,
			want:    models.FunnelStateQualifying,
		},
		{
			name:    "qualifying stays while incomplete",
			current: models.FunnelStateQualifying,
			data:    models.ExtractedData{Name: strPtr("Budi")},
			want:    models.FunnelStateQualifying,
		},
		{
			name:    "qualifying advances when complete",
			current: models.FunnelStateQualifying,
			data:    completeData(),
			want:    models.FunnelStateScoring,
		},
		{
			name:    "scoring hands off hot lead",
			current: models.FunnelStateScoring,
			data:    completeData(),
			score:   70,
			want:    models.FunnelStateHandoff,
		},
		{
			name:    "scoring completes cold lead",
			current: models.FunnelStateScoring,
			data:    completeData(),
			score:   39,
			want:    models.FunnelStateCompleted,
		},
		{
			name:    "scoring holds warm lead",
			current: models.FunnelStateScoring,
			data:    completeData(),
			score:   55,
			want:    models.FunnelStateScoring,
		},
		{
			name:    "warm boundary stays",
			current: models.FunnelStateScoring,
			data:    completeData(),
			score:   40,
			want:    models.FunnelStateScoring,
		},
		{
			name:    "just below hot boundary stays",
			current: models.FunnelStateScoring,
			data:    completeData(),
			score:   69,
			want:    models.FunnelStateScoring,
		},
		{
			name:    "handoff is terminal",
			current: models.FunnelStateHandoff,
			data:    completeData(),
			score:   100,
			want:    models.FunnelStateHandoff,
		},
		{
			name:    "completed is terminal",
			current: models.FunnelStateCompleted,
			data:    completeData(),
			score:   100,
			want:    models.FunnelStateCompleted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetermineState(tt.current, tt.data, tt.score)
			if got != tt.want {
				t.Errorf("DetermineState(%q, score=%d) = %q, want %q", tt.current, tt.score, got, tt.want)
			}
		})
	}
}

// The funnel may only ever move forward; walking every reachable transition
// from every state must never yield an earlier stage.
func TestFunnelNeverMovesBackward(t *testing.T) {
	order := map[models.FunnelState]int{
		models.FunnelStateGreeting:   0,
		models.FunnelStateQualifying: 1,
		models.FunnelStateScoring:    2,
		models.FunnelStateHandoff:    3,
		models.FunnelStateCompleted:  3,
	}

	states := []models.FunnelState{
		models.FunnelStateGreeting,
		models.FunnelStateQualifying,
		models.FunnelStateScoring,
		models.FunnelStateHandoff,
		models.FunnelStateCompleted,
	}
	datas := []models.ExtractedData{{}, completeData()}
	scores := []int{0, 39, 40, 69, 70, 100}

	for _, current := range states {
		for _, data := range datas {
			for _, score := range scores {
				next := DetermineState(current, data, score)
				if order[next] < order[current] {
					t.Errorf("backward transition %q -> %q (score=%d, complete=%v)", current, next, score, data.Complete())
				}
			}
		}
	}
}
