package messaging

import (
	"context"
	"log/slog"
	"sync"

	"github.com/my21staff/SarahEngine/internal/flow"
	"github.com/my21staff/SarahEngine/internal/models"
)

// TurnProcessor is the engine surface consumed by the dispatcher.
type TurnProcessor interface {
	ProcessMessage(ctx context.Context, msg models.InboundMessage) (*flow.TurnResult, error)
}

// InboundDispatcher consumes the messaging service's response channel, routes
// every inbound message through the engine, and sends the composed reply back.
//
// Contacts can be muted: once a conversation is handed off to a human
// operator, the bot must stop answering that contact. Handoff turns mute
// automatically; Unmute re-enables the bot (e.g., when the operator closes
// the conversation).
type InboundDispatcher struct {
	svc         Service
	engine      TurnProcessor
	workspaceID string

	mu    sync.RWMutex
	muted map[string]bool
}

// NewInboundDispatcher creates a dispatcher for one workspace.
func NewInboundDispatcher(svc Service, engine TurnProcessor, workspaceID string) *InboundDispatcher {
	return &InboundDispatcher{
		svc:         svc,
		engine:      engine,
		workspaceID: workspaceID,
		muted:       make(map[string]bool),
	}
}

// Mute silences the bot for a contact.
func (d *InboundDispatcher) Mute(contactPhone string) {
	canonical, err := d.svc.ValidateAndCanonicalizeRecipient(contactPhone)
	if err != nil {
		slog.Warn("InboundDispatcher Mute invalid contact", "error", err, "contact_phone", contactPhone)
		return
	}
	d.mu.Lock()
	d.muted[canonical] = true
	d.mu.Unlock()
	slog.Info("InboundDispatcher contact muted", "contact_phone", canonical)
}

// Unmute re-enables the bot for a contact.
func (d *InboundDispatcher) Unmute(contactPhone string) {
	canonical, err := d.svc.ValidateAndCanonicalizeRecipient(contactPhone)
	if err != nil {
		slog.Warn("InboundDispatcher Unmute invalid contact", "error", err, "contact_phone", contactPhone)
		return
	}
	d.mu.Lock()
	delete(d.muted, canonical)
	d.mu.Unlock()
	slog.Info("InboundDispatcher contact unmuted", "contact_phone", canonical)
}

// IsMuted reports whether the bot is silenced for a contact.
func (d *InboundDispatcher) IsMuted(contactPhone string) bool {
	canonical, err := d.svc.ValidateAndCanonicalizeRecipient(contactPhone)
	if err != nil {
		return false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.muted[canonical]
}

// Run consumes inbound messages until the context is cancelled or the service
// response channel is closed.
func (d *InboundDispatcher) Run(ctx context.Context) {
	slog.Info("InboundDispatcher running", "workspace_id", d.workspaceID)
	for {
		select {
		case <-ctx.Done():
			slog.Info("InboundDispatcher stopping: context cancelled")
			return
		case response, ok := <-d.svc.Responses():
			if !ok {
				slog.Info("InboundDispatcher stopping: response channel closed")
				return
			}
			d.Dispatch(ctx, response)
		}
	}
}

// Dispatch processes a single inbound message: runs the engine turn and sends
// the composed reply, unless the contact is muted.
func (d *InboundDispatcher) Dispatch(ctx context.Context, response models.Response) {
	if d.IsMuted(response.From) {
		slog.Debug("InboundDispatcher skipping muted contact", "contact_phone", response.From)
		return
	}

	result, err := d.engine.ProcessMessage(ctx, models.InboundMessage{
		ContactPhone: response.From,
		WorkspaceID:  d.workspaceID,
		Body:         response.Body,
		Type:         response.Type,
		Time:         response.Time,
	})
	if err != nil {
		slog.Error("InboundDispatcher engine turn failed", "error", err, "contact_phone", response.From)
		return
	}

	if result.Reply != "" {
		if err := d.svc.SendMessage(ctx, result.ContactPhone, result.Reply); err != nil {
			slog.Error("InboundDispatcher failed to send reply", "error", err, "contact_phone", result.ContactPhone)
		}
	}

	// After a handoff the conversation belongs to a human operator.
	if result.State == models.FunnelStateHandoff {
		d.Mute(result.ContactPhone)
	}
}
