package messaging

import (
	"context"
	"log/slog"
	"time"

	"github.com/my21staff/SarahEngine/internal/scheduler"
	"github.com/my21staff/SarahEngine/internal/settings"
)

// QuietHoursService wraps a Service and defers outbound messages during the
// workspace's configured quiet hours. Deferred messages are held in a queue
// and delivered by FlushDue once the window ends, typically from a cron job.
type QuietHoursService struct {
	Service

	settings    *settings.Client
	workspaceID string
	queue       *scheduler.DeferredQueue
	now         func() time.Time
}

// NewQuietHoursService wraps inner with quiet-hours deferral. A nil settings
// client disables deferral (defaults have quiet hours off).
func NewQuietHoursService(inner Service, settingsClient *settings.Client, workspaceID string) *QuietHoursService {
	return &QuietHoursService{
		Service:     inner,
		settings:    settingsClient,
		workspaceID: workspaceID,
		queue:       scheduler.NewDeferredQueue(),
		now:         time.Now,
	}
}

// SendMessage defers the message when inside the quiet window, otherwise
// delegates to the wrapped service.
func (s *QuietHoursService) SendMessage(ctx context.Context, to string, body string) error {
	if s.inQuietHours(ctx) {
		slog.Info("QuietHoursService deferring message", "to", to, "pending", s.queue.Len()+1)
		s.queue.Enqueue(to, body)
		return nil
	}
	return s.Service.SendMessage(ctx, to, body)
}

// FlushDue delivers queued messages if the quiet window has ended. Safe to
// call on a schedule regardless of the current time.
func (s *QuietHoursService) FlushDue(ctx context.Context) {
	if s.inQuietHours(ctx) {
		return
	}
	s.queue.Flush(ctx, s.Service.SendMessage)
}

// Unwrap returns the wrapped service, e.g. for backend-specific webhook routing.
func (s *QuietHoursService) Unwrap() Service {
	return s.Service
}

// Pending returns the number of deferred messages.
func (s *QuietHoursService) Pending() int {
	return s.queue.Len()
}

func (s *QuietHoursService) inQuietHours(ctx context.Context) bool {
	cfg := s.settings.Fetch(ctx, s.workspaceID)
	if !cfg.Behavior.QuietHoursEnabled {
		return false
	}
	return scheduler.InQuietWindow(s.now(), cfg.Behavior.QuietHoursStart, cfg.Behavior.QuietHoursEnd)
}

var _ Service = (*QuietHoursService)(nil)
