package application

import (
	"context"
	"errors"
	"log"
	"sync"
	"testing"
	"time"

	notifications "cargotrack-cloud/internal/notifications/domain"
	"cargotrack-cloud/internal/notifications/infrastructure/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingSender struct {
	mu    sync.Mutex
	calls []string
	fail  error
}

func (s *recordingSender) Send(_ context.Context, userID, kind string, _ map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.calls = append(s.calls, userID+"|"+kind)
	return nil
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func newTestDeduper(t *testing.T, sender Sender, clock Clock) (*Deduper, *memory.NotificationRepository) {
	t.Helper()
	ledger := memory.NewNotificationRepository()
	deduper, err := NewDeduper(ledger, sender, log.Default(), WithClock(clock))
	if err != nil {
		t.Fatalf("new deduper: %v", err)
	}
	return deduper, ledger
}

func TestSendSuppressesWithinCooldown(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, time.May, 1, 8, 0, 0, 0, time.UTC)}
	sender := &recordingSender{}
	deduper, ledger := newTestDeduper(t, sender, clock)
	req := Request{UserID: "user-1", Type: notifications.TypeLowBattery, Disambiguator: notifications.DisambiguatorWarning}

	sent, err := deduper.Send(context.Background(), req)
	if err != nil || !sent {
		t.Fatalf("first send: sent=%v err=%v", sent, err)
	}

	clock.Advance(23 * time.Hour)
	sent, err = deduper.Send(context.Background(), req)
	if err != nil {
		t.Fatalf("second send: %v", err)
	}
	if sent {
		t.Fatal("expected suppression inside the cooldown")
	}
	if sender.count() != 1 {
		t.Fatalf("expected 1 delivery, got %d", sender.count())
	}
	if got := len(ledger.All()); got != 1 {
		t.Fatalf("expected 1 ledger row, got %d", got)
	}
}

func TestSendResumesAfterCooldown(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, time.May, 1, 8, 0, 0, 0, time.UTC)}
	sender := &recordingSender{}
	deduper, _ := newTestDeduper(t, sender, clock)
	req := Request{UserID: "user-1", Type: notifications.TypeNoSignal}

	if sent, err := deduper.Send(context.Background(), req); err != nil || !sent {
		t.Fatalf("first send: sent=%v err=%v", sent, err)
	}
	clock.Advance(24*time.Hour + time.Minute)
	if sent, err := deduper.Send(context.Background(), req); err != nil || !sent {
		t.Fatalf("post-cooldown send: sent=%v err=%v", sent, err)
	}
	if sender.count() != 2 {
		t.Fatalf("expected 2 deliveries, got %d", sender.count())
	}
}

func TestBatteryTiersDedupIndependently(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, time.May, 1, 8, 0, 0, 0, time.UTC)}
	sender := &recordingSender{}
	deduper, _ := newTestDeduper(t, sender, clock)

	warning := Request{UserID: "user-1", Type: notifications.TypeLowBattery, Disambiguator: notifications.DisambiguatorWarning}
	critical := Request{UserID: "user-1", Type: notifications.TypeLowBattery, Disambiguator: notifications.DisambiguatorCritical}

	if sent, _ := deduper.Send(context.Background(), warning); !sent {
		t.Fatal("expected warning tier to send")
	}
	// A drop into the critical tier is a distinct key and fires immediately.
	if sent, _ := deduper.Send(context.Background(), critical); !sent {
		t.Fatal("expected critical tier to send despite recent warning")
	}
	// But the same tier again is suppressed.
	if sent, _ := deduper.Send(context.Background(), critical); sent {
		t.Fatal("expected repeat critical tier suppressed")
	}
	if sender.count() != 2 {
		t.Fatalf("expected 2 deliveries, got %d", sender.count())
	}
}

func TestUsersDedupIndependently(t *testing.T) {
	sender := &recordingSender{}
	deduper, _ := newTestDeduper(t, sender, &fakeClock{now: time.Now()})

	if sent, _ := deduper.Send(context.Background(), Request{UserID: "user-1", Type: notifications.TypeDelivered, Disambiguator: "shp-1"}); !sent {
		t.Fatal("expected first user to send")
	}
	if sent, _ := deduper.Send(context.Background(), Request{UserID: "user-2", Type: notifications.TypeDelivered, Disambiguator: "shp-1"}); !sent {
		t.Fatal("expected second user to send")
	}
}

func TestSendFailureLeavesNoLedgerRow(t *testing.T) {
	sender := &recordingSender{fail: errors.New("boom")}
	deduper, ledger := newTestDeduper(t, sender, &fakeClock{now: time.Now()})

	sent, err := deduper.Send(context.Background(), Request{UserID: "user-1", Type: notifications.TypeLowBattery})
	if err == nil || sent {
		t.Fatalf("expected failure, got sent=%v err=%v", sent, err)
	}
	if got := len(ledger.All()); got != 0 {
		t.Fatalf("expected empty ledger after failed delivery, got %d rows", got)
	}

	// A later retry is not blocked by the failed attempt.
	sender.fail = nil
	if sent, err := deduper.Send(context.Background(), Request{UserID: "user-1", Type: notifications.TypeLowBattery}); err != nil || !sent {
		t.Fatalf("retry: sent=%v err=%v", sent, err)
	}
}

func TestNilSenderReportsUnavailable(t *testing.T) {
	deduper, _ := newTestDeduper(t, nil, &fakeClock{now: time.Now()})

	_, err := deduper.Send(context.Background(), Request{UserID: "user-1", Type: notifications.TypeNoSignal})
	if !errors.Is(err, notifications.ErrSenderUnavailable) {
		t.Fatalf("expected ErrSenderUnavailable, got %v", err)
	}
}
