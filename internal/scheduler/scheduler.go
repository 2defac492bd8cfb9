// Package scheduler provides cron-based job scheduling and quiet-hours
// handling for outbound messages.
//
// During a workspace's configured quiet hours, replies are queued instead of
// sent; a cron job flushes the queue once the window ends.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler provides cron-based job scheduling.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler creates and starts a cron scheduler.
func NewScheduler() *Scheduler {
	// Standard 5-field cron parser (min, hour, dom, month, dow) with panic recovery
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	c.Start()
	return &Scheduler{cron: c}
}

// AddJob schedules a task using the provided cron expression.
// It returns an error if the expression is invalid.
func (s *Scheduler) AddJob(expr string, task func()) error {
	_, err := s.cron.AddFunc(expr, task)
	return err
}

// Stop stops the cron scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// parseClock parses an "HH:MM" string into minutes since midnight.
func parseClock(v string) (int, error) {
	parts := strings.SplitN(v, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock value %q: expected HH:MM", v)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in clock value %q", v)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in clock value %q", v)
	}
	return hour*60 + minute, nil
}

// InQuietWindow reports whether t falls inside the [start, end) window given
// as "HH:MM" strings. Windows that cross midnight (e.g. 22:00 to 08:00) are
// handled. Malformed bounds disable the window.
func InQuietWindow(t time.Time, start, end string) bool {
	startMin, err := parseClock(start)
	if err != nil {
		slog.Warn("quiet hours start unparsable, treating window as disabled", "error", err, "start", start)
		return false
	}
	endMin, err := parseClock(end)
	if err != nil {
		slog.Warn("quiet hours end unparsable, treating window as disabled", "error", err, "end", end)
		return false
	}
	if startMin == endMin {
		return false
	}

	now := t.Hour()*60 + t.Minute()
	if startMin < endMin {
		return now >= startMin && now < endMin
	}
	// Window crosses midnight.
	return now >= startMin || now < endMin
}

// SendFunc delivers one queued message.
type SendFunc func(ctx context.Context, to string, body string) error

// QueuedMessage is a reply deferred by quiet hours.
type QueuedMessage struct {
	To       string
	Body     string
	QueuedAt time.Time
}

// DeferredQueue holds replies formed during quiet hours until they may be
// delivered. Queue order is preserved per flush.
type DeferredQueue struct {
	mu      sync.Mutex
	pending []QueuedMessage
}

// NewDeferredQueue creates an empty queue.
func NewDeferredQueue() *DeferredQueue {
	return &DeferredQueue{}
}

// Enqueue adds a message to the queue.
func (q *DeferredQueue) Enqueue(to, body string) {
	q.mu.Lock()
	q.pending = append(q.pending, QueuedMessage{To: to, Body: body, QueuedAt: time.Now()})
	n := len(q.pending)
	q.mu.Unlock()
	slog.Debug("DeferredQueue message queued for quiet hours", "to", to, "pending", n)
}

// Len returns the number of pending messages.
func (q *DeferredQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Flush delivers all pending messages through send. Messages that fail to
// send are re-queued for the next flush.
func (q *DeferredQueue) Flush(ctx context.Context, send SendFunc) {
	q.mu.Lock()
	batch := q.pending
	q.pending = nil
	q.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	slog.Info("DeferredQueue flushing", "count", len(batch))

	var failed []QueuedMessage
	for _, msg := range batch {
		if err := send(ctx, msg.To, msg.Body); err != nil {
			slog.Error("DeferredQueue send failed, re-queueing", "error", err, "to", msg.To)
			failed = append(failed, msg)
		}
	}

	if len(failed) > 0 {
		q.mu.Lock()
		q.pending = append(failed, q.pending...)
		q.mu.Unlock()
	}
}
