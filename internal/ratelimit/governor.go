package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Verdict is one rate limit decision.
type Verdict struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter decides whether a keyed caller may proceed.
type Limiter interface {
	Check(ctx context.Context, key string) (Verdict, error)
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

const purgeInterval = time.Minute

type entry struct {
	count   int
	resetAt time.Time
}

// Governor is a fixed-window in-memory limiter. Expired windows are
// purged lazily during checks rather than by a background sweeper, so an
// idle governor holds no goroutine.
type Governor struct {
	mu        sync.Mutex
	entries   map[string]*entry
	limit     int
	window    time.Duration
	clock     Clock
	nextPurge time.Time
}

// GovernorOption customizes the governor.
type GovernorOption func(*Governor)

// WithClock assigns a clock.
func WithClock(clock Clock) GovernorOption {
	return func(g *Governor) {
		if clock != nil {
			g.clock = clock
		}
	}
}

// NewGovernor constructs a fixed-window limiter allowing limit requests
// per window per key.
func NewGovernor(limit int, window time.Duration, opts ...GovernorOption) (*Governor, error) {
	if limit <= 0 {
		return nil, errors.New("ratelimit: limit must be positive")
	}
	if window <= 0 {
		return nil, errors.New("ratelimit: window must be positive")
	}
	governor := &Governor{
		entries: make(map[string]*entry),
		limit:   limit,
		window:  window,
		clock:   systemClock{},
	}
	for _, opt := range opts {
		opt(governor)
	}
	governor.nextPurge = governor.clock.Now().Add(purgeInterval)
	return governor, nil
}

// Check counts one request against the key's current window.
func (g *Governor) Check(ctx context.Context, key string) (Verdict, error) {
	_ = ctx
	if g == nil {
		return Verdict{}, errors.New("ratelimit: nil governor")
	}
	now := g.clock.Now()

	g.mu.Lock()
	defer g.mu.Unlock()

	if now.After(g.nextPurge) {
		g.purgeLocked(now)
		g.nextPurge = now.Add(purgeInterval)
	}

	current := g.entries[key]
	if current == nil || !now.Before(current.resetAt) {
		current = &entry{resetAt: now.Add(g.window)}
		g.entries[key] = current
	}

	if current.count >= g.limit {
		return Verdict{Allowed: false, Remaining: 0, ResetAt: current.resetAt}, nil
	}
	current.count++
	return Verdict{
		Allowed:   true,
		Remaining: g.limit - current.count,
		ResetAt:   current.resetAt,
	}, nil
}

func (g *Governor) purgeLocked(now time.Time) {
	for key, current := range g.entries {
		if !now.Before(current.resetAt) {
			delete(g.entries, key)
		}
	}
}

// Size returns the tracked key count, for tests and introspection.
func (g *Governor) Size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
