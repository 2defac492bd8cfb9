package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"08:30", 510, false},
		{"21:00", 1260, false},
		{"23:59", 1439, false},
		{"24:00", 0, true},
		{"12:60", 0, true},
		{"-1:00", 0, true},
		{"noon", 0, true},
		{"", 0, true},
		{"12", 0, true},
	}
	for _, tt := range tests {
		got, err := parseClock(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseClock(%q) expected error, got %d", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseClock(%q) returned error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseClock(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func clock(hour, minute int) time.Time {
	return time.Date(2026, time.March, 10, hour, minute, 0, 0, time.UTC)
}

func TestInQuietWindow(t *testing.T) {
	tests := []struct {
		name       string
		at         time.Time
		start, end string
		want       bool
	}{
		{"inside same-day window", clock(12, 0), "09:00", "17:00", true},
		{"before same-day window", clock(8, 59), "09:00", "17:00", false},
		{"start is inclusive", clock(9, 0), "09:00", "17:00", true},
		{"end is exclusive", clock(17, 0), "09:00", "17:00", false},
		{"night inside wrapped window", clock(23, 0), "21:00", "08:00", true},
		{"early morning inside wrapped window", clock(2, 30), "21:00", "08:00", true},
		{"daytime outside wrapped window", clock(12, 0), "21:00", "08:00", false},
		{"wrapped end is exclusive", clock(8, 0), "21:00", "08:00", false},
		{"equal bounds disable window", clock(12, 0), "12:00", "12:00", false},
		{"malformed start disables window", clock(23, 0), "late", "08:00", false},
		{"malformed end disables window", clock(23, 0), "21:00", "early", false},
		{"empty bounds disable window", clock(23, 0), "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InQuietWindow(tt.at, tt.start, tt.end); got != tt.want {
				t.Errorf("InQuietWindow(%s, %q, %q) = %v, want %v",
					tt.at.Format("15:04"), tt.start, tt.end, got, tt.want)
			}
		})
	}
}

func TestDeferredQueueFlush(t *testing.T) {
	q := NewDeferredQueue()
	q.Enqueue("628111111111", "satu")
	q.Enqueue("628222222222", "dua")
	if q.Len() != 2 {
		t.Fatalf("Len = %d, want 2", q.Len())
	}

	var delivered []string
	q.Flush(context.Background(), func(ctx context.Context, to, body string) error {
		delivered = append(delivered, body)
		return nil
	})

	if len(delivered) != 2 || delivered[0] != "satu" || delivered[1] != "dua" {
		t.Errorf("delivered = %v, want [satu dua] in queue order", delivered)
	}
	if q.Len() != 0 {
		t.Errorf("Len = %d after flush, want 0", q.Len())
	}
}

func TestDeferredQueueRequeuesFailures(t *testing.T) {
	q := NewDeferredQueue()
	q.Enqueue("628111111111", "satu")
	q.Enqueue("628222222222", "dua")

	q.Flush(context.Background(), func(ctx context.Context, to, body string) error {
		if body == "satu" {
			return errors.New("gateway down")
		}
		return nil
	})
	if q.Len() != 1 {
		t.Fatalf("Len = %d after partial flush, want 1", q.Len())
	}

	var delivered []string
	q.Flush(context.Background(), func(ctx context.Context, to, body string) error {
		delivered = append(delivered, body)
		return nil
	})
	if len(delivered) != 1 || delivered[0] != "satu" {
		t.Errorf("retried = %v, want [satu]", delivered)
	}
}

func TestDeferredQueueFlushEmpty(t *testing.T) {
	q := NewDeferredQueue()
	called := false
	q.Flush(context.Background(), func(ctx context.Context, to, body string) error {
		called = true
		return nil
	})
	if called {
		t.Error("flush of an empty queue should not call send")
	}
}

func TestSchedulerAddJob(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	if err := s.AddJob("*/5 * * * *", func() {}); err != nil {
		t.Errorf("AddJob with valid expression returned error: %v", err)
	}
	if err := s.AddJob("not a cron expr", func() {}); err == nil {
		t.Error("AddJob with invalid expression expected error")
	}
	// 6-field (seconds) expressions are not accepted by the 5-field parser.
	if err := s.AddJob("0 */5 * * * *", func() {}); err == nil {
		t.Error("AddJob with 6-field expression expected error")
	}
}
