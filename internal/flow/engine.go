package flow

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/my21staff/SarahEngine/internal/keyword"
	"github.com/my21staff/SarahEngine/internal/language"
	"github.com/my21staff/SarahEngine/internal/models"
	"github.com/my21staff/SarahEngine/internal/settings"
	"github.com/my21staff/SarahEngine/internal/store"
)

// TurnResult is the engine's output for one processed inbound message.
type TurnResult struct {
	TurnID          string                 `json:"turn_id"`
	ContactPhone    string                 `json:"contact_phone"`
	State           models.FunnelState     `json:"state"`
	ExtractedData   models.ExtractedData   `json:"extracted_data"`
	LeadScore       int                    `json:"lead_score"`
	LeadTemperature models.LeadTemperature `json:"lead_temperature"`
	Language        models.Language        `json:"language"`
	MessageCount    int                    `json:"message_count"`
	Flags           keyword.Flags          `json:"flags"`
	// Saved is false when the turn was processed but the write to the state
	// store failed; persistence is best-effort and never aborts a turn.
	Saved bool   `json:"saved"`
	Reply string `json:"reply,omitempty"`
}

// Engine runs the per-message qualification pipeline: classify, load state,
// extract and score, transition, persist, compose a reply.
type Engine struct {
	store    store.Store
	settings *settings.Client
	composer *Composer
}

// Option defines a configuration option for the Engine.
type Option func(*Engine)

// WithSettingsClient wires the intern settings service client. Without it the
// engine runs on the built-in default settings.
func WithSettingsClient(client *settings.Client) Option {
	return func(e *Engine) { e.settings = client }
}

// WithComposer wires a reply composer. Without it the engine produces no reply
// text (the orchestrating caller decides what to send).
func WithComposer(composer *Composer) Option {
	return func(e *Engine) { e.composer = composer }
}

// NewEngine creates an Engine backed by the given state store.
func NewEngine(st store.Store, opts ...Option) *Engine {
	e := &Engine{store: st}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ProcessMessage runs one full turn of the qualification pipeline.
//
// Persistence failures degrade: a failed read substitutes the default state, a
// failed write is reported through TurnResult.Saved. The only hard error is an
// invalid inbound message.
func (e *Engine) ProcessMessage(ctx context.Context, msg models.InboundMessage) (*TurnResult, error) {
	if err := msg.Validate(); err != nil {
		slog.Error("Engine.ProcessMessage invalid message", "error", err, "contact_phone", msg.ContactPhone)
		return nil, err
	}

	cfg := e.settings.Fetch(ctx, msg.WorkspaceID)
	flags := keyword.ClassifyWith(msg.Body, msg.NormalizedType(), cfg.Behavior.HandoffKeywords)
	state := e.loadState(ctx, msg.ContactPhone)
	slog.Debug("Engine.ProcessMessage turn start",
		"contact_phone", msg.ContactPhone, "state", state.State,
		"wants_handoff", flags.WantsHandoff, "not_interested", flags.NotInterested)

	var next models.ConversationState
	var saved bool
	switch {
	case flags.WantsHandoff:
		next, saved = e.markHandoff(ctx, state)
	case state.State.IsTerminal():
		// The funnel is frozen after handoff/completed: later messages bump
		// the message count and language but never re-score the lead.
		next, saved = e.saveState(ctx, state, msg.Body)
	default:
		extraction := ExtractAndScore(state.ExtractedData, state.State, msg.Body)
		state.ExtractedData = extraction.Data
		state.LeadScore = extraction.LeadScore
		state.LeadTemperature = extraction.LeadTemperature
		state.State = DetermineState(state.State, extraction.Data, extraction.LeadScore)
		if flags.NotInterested {
			state.State = models.FunnelStateCompleted
		}
		next, saved = e.saveState(ctx, state, msg.Body)
	}

	reply := ""
	if cfg.Behavior.AutoRespondOn() {
		reply = e.composer.Compose(ctx, next, flags, cfg, msg.Body)
	}

	result := &TurnResult{
		TurnID:          uuid.NewString(),
		ContactPhone:    next.ContactPhone,
		State:           next.State,
		ExtractedData:   next.ExtractedData,
		LeadScore:       next.LeadScore,
		LeadTemperature: next.LeadTemperature,
		Language:        next.Language,
		MessageCount:    next.MessageCount,
		Flags:           flags,
		Saved:           saved,
		Reply:           reply,
	}
	slog.Info("Engine.ProcessMessage turn complete",
		"contact_phone", result.ContactPhone, "state", result.State,
		"lead_score", result.LeadScore, "temperature", result.LeadTemperature, "saved", saved)
	return result, nil
}

// loadState fetches the current conversation state. Any fetch failure or
// missing state substitutes the full default so the pipeline always has a
// usable state to work from.
func (e *Engine) loadState(ctx context.Context, contactPhone string) models.ConversationState {
	state, err := e.store.GetConversationState(ctx, contactPhone)
	if err != nil {
		slog.Warn("Engine.loadState degrading to default state", "error", err, "contact_phone", contactPhone)
		return models.NewConversationState(contactPhone)
	}
	if state == nil {
		slog.Debug("Engine.loadState new contact", "contact_phone", contactPhone)
		return models.NewConversationState(contactPhone)
	}
	return *state
}

// saveState resolves the conversation language from the current inbound
// message only, increments the message count, and persists the merged state.
// Write failures (including concurrent-modification conflicts) are reported as
// saved=false; the turn continues regardless.
func (e *Engine) saveState(ctx context.Context, state models.ConversationState, inbound string) (models.ConversationState, bool) {
	state.Language = language.Resolve(state.Language, inbound)
	state.MessageCount++

	persisted, err := e.store.SaveConversationState(ctx, state)
	if err != nil {
		if errors.Is(err, models.ErrConcurrentModification) {
			slog.Warn("Engine.saveState concurrent write lost", "contact_phone", state.ContactPhone)
		} else {
			slog.Error("Engine.saveState write failed", "error", err, "contact_phone", state.ContactPhone)
		}
		return state, false
	}
	return persisted, true
}

// markHandoff is the forced-handoff write path: state becomes handoff and the
// temperature is pinned hot regardless of the computed score. Score, extracted
// data, and language are preserved; no language re-detection happens here.
// Write failures degrade to saved=false, mirroring saveState.
func (e *Engine) markHandoff(ctx context.Context, state models.ConversationState) (models.ConversationState, bool) {
	state.State = models.FunnelStateHandoff
	state.LeadTemperature = models.TemperatureHot
	state.MessageCount++

	persisted, err := e.store.SaveConversationState(ctx, state)
	if err != nil {
		if errors.Is(err, models.ErrConcurrentModification) {
			slog.Warn("Engine.markHandoff concurrent write lost", "contact_phone", state.ContactPhone)
		} else {
			slog.Error("Engine.markHandoff write failed", "error", err, "contact_phone", state.ContactPhone)
		}
		return state, false
	}
	slog.Info("Engine.markHandoff contact handed off", "contact_phone", state.ContactPhone)
	return persisted, true
}
