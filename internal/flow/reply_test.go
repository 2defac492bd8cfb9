package flow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/my21staff/SarahEngine/internal/keyword"
	"github.com/my21staff/SarahEngine/internal/models"
)

func composeTemplate(t *testing.T, state models.ConversationState, flags keyword.Flags) string {
	t.Helper()
	return NewComposer().Compose(context.Background(), state, flags, models.DefaultWorkspaceBotSettings(), "")
}

func TestTemplateReplyLanguage(t *testing.T) {
	state := models.NewConversationState(testPhone)

	id := composeTemplate(t, state, keyword.Flags{})
	if !strings.Contains(id, "Halo") {
		t.Errorf("indonesian greeting = %q, want Halo greeting", id)
	}
	if !strings.Contains(id, "Sarah") {
		t.Errorf("greeting %q missing persona name", id)
	}

	state.Language = models.LanguageEnglish
	en := composeTemplate(t, state, keyword.Flags{})
	if !strings.Contains(en, "Hi!") {
		t.Errorf("english greeting = %q", en)
	}
}

func TestTemplateReplyFlagPriority(t *testing.T) {
	state := models.NewConversationState(testPhone)
	state.State = models.FunnelStateQualifying

	handoff := composeTemplate(t, state, keyword.Flags{WantsHandoff: true})
	if !strings.Contains(handoff, "tim kami") {
		t.Errorf("handoff reply = %q, want team connection message", handoff)
	}

	closed := composeTemplate(t, state, keyword.Flags{NotInterested: true})
	if !strings.Contains(closed, "Nggak apa-apa") {
		t.Errorf("disinterest reply = %q", closed)
	}

	image := composeTemplate(t, state, keyword.Flags{IsImage: true})
	if !strings.Contains(image, "gambar") {
		t.Errorf("image reply = %q", image)
	}

	// Handoff beats the image flag when both are present.
	both := composeTemplate(t, state, keyword.Flags{WantsHandoff: true, IsImage: true})
	if both != handoff {
		t.Errorf("combined flags reply = %q, want handoff reply %q", both, handoff)
	}
}

func TestQualifyingQuestionAsksFirstMissingSlot(t *testing.T) {
	tests := []struct {
		name string
		data models.ExtractedData
		want string // substring of the expected question
	}{
		{name: "asks business type first", data: models.ExtractedData{}, want: "bidang apa"},
		{
			name: "asks team size next",
			data: models.ExtractedData{BusinessType: strPtr("restaurant")},
			want: "Berapa orang",
		},
		{
			name: "asks pain next",
			data: models.ExtractedData{BusinessType: strPtr("restaurant"), TeamSize: intPtr(3)},
			want: "tantangan",
		},
		{
			name: "asks goals last",
			data: models.ExtractedData{BusinessType: strPtr("restaurant"), TeamSize: intPtr(3), PainPoints: []string{"sibuk"}},
			want: "tingkatkan",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := models.NewConversationState(testPhone)
			state.State = models.FunnelStateQualifying
			state.ExtractedData = tt.data

			reply := composeTemplate(t, state, keyword.Flags{})
			if !strings.Contains(reply, tt.want) {
				t.Errorf("reply = %q, want substring %q", reply, tt.want)
			}
		})
	}
}

func TestQualifyingQuestionUsesName(t *testing.T) {
	state := models.NewConversationState(testPhone)
	state.State = models.FunnelStateQualifying
	state.ExtractedData.Name = strPtr("Budi")

	reply := composeTemplate(t, state, keyword.Flags{})
	if !strings.HasPrefix(reply, "Budi, ") {
		t.Errorf("reply = %q, want name-prefixed question", reply)
	}
}

func TestTruncateReply(t *testing.T) {
	tests := []struct {
		name      string
		reply     string
		maxLength int
		want      string
	}{
		{name: "under limit unchanged", reply: "halo", maxLength: 10, want: "halo"},
		{name: "at limit unchanged", reply: "abcde", maxLength: 5, want: "abcde"},
		{name: "over limit gets ellipsis", reply: "abcdef", maxLength: 5, want: "abcd…"},
		{name: "zero limit disables truncation", reply: "abcdef", maxLength: 0, want: "abcdef"},
		{name: "multibyte counted in runes", reply: "héllo wörld", maxLength: 7, want: "héllo …"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncateReply(tt.reply, tt.maxLength); got != tt.want {
				t.Errorf("truncateReply(%q, %d) = %q, want %q", tt.reply, tt.maxLength, got, tt.want)
			}
		})
	}
}

type stubGenAI struct {
	reply string
	err   error
	calls int
}

func (s *stubGenAI) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func TestComposePrefersGenAI(t *testing.T) {
	stub := &stubGenAI{reply: "Halo Budi! Senang kenalan."}
	composer := NewGenAIComposer(stub)
	state := models.NewConversationState(testPhone)

	reply := composer.Compose(context.Background(), state, keyword.Flags{}, models.DefaultWorkspaceBotSettings(), "halo")
	if reply != stub.reply {
		t.Errorf("reply = %q, want generated %q", reply, stub.reply)
	}
	if stub.calls != 1 {
		t.Errorf("generate calls = %d, want 1", stub.calls)
	}
}

func TestComposeFallsBackToTemplate(t *testing.T) {
	tests := []struct {
		name string
		stub *stubGenAI
	}{
		{name: "generation error", stub: &stubGenAI{err: errors.New("rate limited")}},
		{name: "blank generation", stub: &stubGenAI{reply: "   "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			composer := NewGenAIComposer(tt.stub)
			state := models.NewConversationState(testPhone)

			reply := composer.Compose(context.Background(), state, keyword.Flags{}, models.DefaultWorkspaceBotSettings(), "halo")
			if !strings.Contains(reply, "Halo!") {
				t.Errorf("fallback reply = %q, want template greeting", reply)
			}
		})
	}
}

func TestComposeTruncatesGeneratedReply(t *testing.T) {
	stub := &stubGenAI{reply: strings.Repeat("a", 400)}
	composer := NewGenAIComposer(stub)
	state := models.NewConversationState(testPhone)
	cfg := models.DefaultWorkspaceBotSettings()

	reply := composer.Compose(context.Background(), state, keyword.Flags{}, cfg, "halo")
	if got := len([]rune(reply)); got != cfg.Response.MaxLength {
		t.Errorf("generated reply length = %d runes, want capped at %d", got, cfg.Response.MaxLength)
	}
}

func TestNilComposerYieldsNoReply(t *testing.T) {
	var c *Composer
	if got := c.Compose(context.Background(), models.NewConversationState(testPhone), keyword.Flags{}, models.DefaultWorkspaceBotSettings(), ""); got != "" {
		t.Errorf("nil composer reply = %q, want empty", got)
	}
}
