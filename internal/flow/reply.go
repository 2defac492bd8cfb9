package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/my21staff/SarahEngine/internal/genai"
	"github.com/my21staff/SarahEngine/internal/keyword"
	"github.com/my21staff/SarahEngine/internal/models"
	"github.com/my21staff/SarahEngine/internal/persona"
)

// Composer builds the outbound reply for a processed turn. Static bilingual
// templates are always available; when a GenAI client is configured it is
// tried first and the template is the fallback.
type Composer struct {
	genai genai.ClientInterface
}

// NewComposer creates a template-only composer.
func NewComposer() *Composer {
	return &Composer{}
}

// NewGenAIComposer creates a composer that prefers generated replies.
func NewGenAIComposer(client genai.ClientInterface) *Composer {
	return &Composer{genai: client}
}

// Compose selects the reply for the turn. A nil Composer yields no reply.
func (c *Composer) Compose(ctx context.Context, state models.ConversationState, flags keyword.Flags, cfg models.WorkspaceBotSettings, inbound string) string {
	if c == nil {
		return ""
	}
	template := c.templateReply(state, flags, cfg)
	if c.genai == nil {
		return truncateReply(template, cfg.Response.MaxLength)
	}

	guide := persona.BuildPromptGuide(cfg, state.Language)
	prompt := fmt.Sprintf("Conversation stage: %s. Customer message: %q. Suggested reply: %q. Rewrite the suggested reply in your own voice.", state.State, inbound, template)
	generated, err := c.genai.Generate(ctx, guide, prompt)
	if err != nil || strings.TrimSpace(generated) == "" {
		slog.Debug("Composer falling back to template reply", "error", err, "state", state.State)
		return truncateReply(template, cfg.Response.MaxLength)
	}
	return truncateReply(strings.TrimSpace(generated), cfg.Response.MaxLength)
}

// templateReply picks the static reply for the turn. Classifier flags take
// priority over the funnel stage.
func (c *Composer) templateReply(state models.ConversationState, flags keyword.Flags, cfg models.WorkspaceBotSettings) string {
	english := state.Language == models.LanguageEnglish
	name := ""
	if state.ExtractedData.Name != nil {
		name = *state.ExtractedData.Name
	}

	switch {
	case flags.WantsHandoff:
		if english {
			return "Of course! I'm connecting you with our team now, someone will reply shortly."
		}
		return "Siap! Aku sambungkan ke tim kami ya, sebentar lagi ada yang balas."
	case flags.NotInterested:
		if english {
			return "No problem at all. If anything changes, just message us here. Thank you!"
		}
		return "Nggak apa-apa. Kalau berubah pikiran, chat aja di sini ya. Terima kasih!"
	case flags.IsImage:
		if english {
			return "Thanks for the picture! Could you tell me a bit more in text so I can help?"
		}
		return "Makasih gambarnya! Boleh ceritakan sedikit lewat teks biar aku bisa bantu?"
	}

	switch state.State {
	case models.FunnelStateQualifying:
		return qualifyingQuestion(state.ExtractedData, english, name)
	case models.FunnelStateScoring:
		if english {
			return "Got it, thank you! Let me put together the best option for your business."
		}
		return "Oke, makasih infonya! Aku siapkan opsi terbaik buat bisnismu ya."
	case models.FunnelStateHandoff:
		if english {
			return "Perfect. Our consultant will take it from here and reach out shortly!"
		}
		return "Mantap. Konsultan kami akan lanjut bantu dan segera menghubungi ya!"
	case models.FunnelStateCompleted:
		if english {
			return "Thanks for chatting with us! We're here whenever you need us."
		}
		return "Makasih sudah ngobrol sama kami! Kapan pun butuh, kami di sini."
	default: // greeting
		greeterName := cfg.Persona.Name
		if greeterName == "" {
			greeterName = "Sarah"
		}
		if english {
			return fmt.Sprintf("Hi! I'm %s from my21staff. What's your name?", greeterName)
		}
		return fmt.Sprintf("Halo! Aku %s dari my21staff. Boleh kenalan, namamu siapa?", greeterName)
	}
}

// qualifyingQuestion asks for the first missing qualification slot.
func qualifyingQuestion(data models.ExtractedData, english bool, name string) string {
	prefix := ""
	if name != "" {
		prefix = name + ", "
	}
	switch {
	case data.BusinessType == nil:
		if english {
			return prefix + "what kind of business are you running?"
		}
		return prefix + "bisnismu bergerak di bidang apa?"
	case data.TeamSize == nil:
		if english {
			return "How many people handle customer chats on your team?"
		}
		return "Berapa orang yang pegang chat customer di timmu?"
	case len(data.PainPoints) == 0:
		if english {
			return "What's the biggest challenge with handling chats right now?"
		}
		return "Apa tantangan terbesar soal balas chat customer sekarang?"
	case data.Goals == nil:
		if english {
			return "What would you like to improve the most?"
		}
		return "Apa yang paling pengen kamu tingkatkan?"
	default:
		if english {
			return "Could you tell me a bit more about your business?"
		}
		return "Boleh cerita sedikit lagi tentang bisnismu?"
	}
}

// truncateReply caps the reply length in runes, appending an ellipsis when cut.
func truncateReply(reply string, maxLength int) string {
	if maxLength <= 0 {
		return reply
	}
	runes := []rune(reply)
	if len(runes) <= maxLength {
		return reply
	}
	if maxLength <= 1 {
		return string(runes[:maxLength])
	}
	return string(runes[:maxLength-1]) + "…"
}
