package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
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

func TestGovernorEnforcesLimit(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, time.July, 1, 10, 0, 0, 0, time.UTC)}
	governor, err := NewGovernor(3, time.Minute, WithClock(clock))
	if err != nil {
		t.Fatalf("new governor: %v", err)
	}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		verdict, err := governor.Check(ctx, "user-1")
		if err != nil {
			t.Fatalf("check %d: %v", i, err)
		}
		if !verdict.Allowed {
			t.Fatalf("expected request %d allowed", i)
		}
		if verdict.Remaining != 2-i {
			t.Fatalf("expected remaining %d, got %d", 2-i, verdict.Remaining)
		}
	}

	verdict, err := governor.Check(ctx, "user-1")
	if err != nil {
		t.Fatalf("check over limit: %v", err)
	}
	if verdict.Allowed || verdict.Remaining != 0 {
		t.Fatalf("expected denial with 0 remaining, got %+v", verdict)
	}
	if !verdict.ResetAt.Equal(clock.Now().Add(time.Minute)) {
		t.Fatalf("unexpected resetAt %v", verdict.ResetAt)
	}
}

func TestGovernorKeysAreIndependent(t *testing.T) {
	governor, err := NewGovernor(1, time.Minute)
	if err != nil {
		t.Fatalf("new governor: %v", err)
	}
	ctx := context.Background()

	if verdict, _ := governor.Check(ctx, "user-1"); !verdict.Allowed {
		t.Fatal("expected first key allowed")
	}
	if verdict, _ := governor.Check(ctx, "user-2"); !verdict.Allowed {
		t.Fatal("expected second key allowed")
	}
	if verdict, _ := governor.Check(ctx, "user-1"); verdict.Allowed {
		t.Fatal("expected first key exhausted")
	}
}

func TestGovernorWindowResets(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, time.July, 1, 10, 0, 0, 0, time.UTC)}
	governor, err := NewGovernor(1, time.Minute, WithClock(clock))
	if err != nil {
		t.Fatalf("new governor: %v", err)
	}
	ctx := context.Background()

	if verdict, _ := governor.Check(ctx, "user-1"); !verdict.Allowed {
		t.Fatal("expected first request allowed")
	}
	if verdict, _ := governor.Check(ctx, "user-1"); verdict.Allowed {
		t.Fatal("expected second request denied")
	}

	clock.Advance(time.Minute + time.Second)
	if verdict, _ := governor.Check(ctx, "user-1"); !verdict.Allowed {
		t.Fatal("expected request allowed after window reset")
	}
}

func TestGovernorPurgesExpiredKeys(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, time.July, 1, 10, 0, 0, 0, time.UTC)}
	governor, err := NewGovernor(5, time.Minute, WithClock(clock))
	if err != nil {
		t.Fatalf("new governor: %v", err)
	}
	ctx := context.Background()

	for _, key := range []string{"a", "b", "c"} {
		if _, err := governor.Check(ctx, key); err != nil {
			t.Fatalf("check %s: %v", key, err)
		}
	}
	if governor.Size() != 3 {
		t.Fatalf("expected 3 tracked keys, got %d", governor.Size())
	}

	clock.Advance(2 * time.Minute)
	if _, err := governor.Check(ctx, "d"); err != nil {
		t.Fatalf("check d: %v", err)
	}
	if governor.Size() != 1 {
		t.Fatalf("expected expired keys purged, got %d", governor.Size())
	}
}

func TestMiddlewareReturns429(t *testing.T) {
	governor, err := NewGovernor(1, time.Minute)
	if err != nil {
		t.Fatalf("new governor: %v", err)
	}
	middleware := &Middleware{Limiter: governor}
	handler := middleware.Wrap(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/api/v1/shipments", nil))
	if first.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", first.Code)
	}

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/api/v1/shipments", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", second.Code)
	}
	if second.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Fatalf("expected remaining 0, got %q", second.Header().Get("X-RateLimit-Remaining"))
	}
	if second.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
}
