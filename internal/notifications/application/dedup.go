package application

import (
	"context"
	"errors"
	"log"
	"time"

	notifications "cargotrack-cloud/internal/notifications/domain"
	"cargotrack-cloud/internal/observability/metrics"
)

// Sender is the outbound notification collaborator. Delivery mechanics
// (push, email) live outside this core.
type Sender interface {
	Send(ctx context.Context, userID, kind string, payload map[string]any) error
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

const defaultCooldown = 24 * time.Hour

// Deduper guards the outbound sender: at most one notification per
// (user, type, disambiguator) within the cooldown window. The ledger
// check and the send are not one transaction; overlapping scans can race,
// which coarse scan intervals keep harmless in practice.
type Deduper struct {
	ledger   notifications.NotificationRepository
	sender   Sender
	clock    Clock
	cooldown time.Duration
	logger   *log.Logger
}

// DeduperOption customizes the deduper.
type DeduperOption func(*Deduper)

// WithCooldown overrides the default 24h cooldown.
func WithCooldown(cooldown time.Duration) DeduperOption {
	return func(d *Deduper) {
		if cooldown > 0 {
			d.cooldown = cooldown
		}
	}
}

// WithClock overrides the default clock.
func WithClock(clock Clock) DeduperOption {
	return func(d *Deduper) {
		if clock != nil {
			d.clock = clock
		}
	}
}

// NewDeduper constructs a dedup engine.
func NewDeduper(ledger notifications.NotificationRepository, sender Sender, logger *log.Logger, opts ...DeduperOption) (*Deduper, error) {
	if ledger == nil {
		return nil, errors.New("dedup: nil ledger")
	}
	if logger == nil {
		logger = log.Default()
	}
	deduper := &Deduper{
		ledger:   ledger,
		sender:   sender,
		clock:    systemClock{},
		cooldown: defaultCooldown,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(deduper)
	}
	return deduper, nil
}

// Request describes one notification attempt.
type Request struct {
	UserID        string
	Type          string
	Disambiguator string
	Message       string
	Payload       map[string]any
}

// Send delivers the notification unless an identical compound key fired
// within the cooldown. Returns true when the sender was invoked and a
// ledger row written.
func (d *Deduper) Send(ctx context.Context, req Request) (bool, error) {
	if d == nil {
		return false, errors.New("dedup: nil deduper")
	}
	if req.UserID == "" || req.Type == "" {
		return false, errors.New("dedup: user id and type required")
	}

	now := d.clock.Now().UTC()
	lastSent, err := d.ledger.LastSentAt(ctx, req.UserID, req.Type, req.Disambiguator)
	if err != nil {
		return false, err
	}
	if !lastSent.IsZero() && now.Sub(lastSent) < d.cooldown {
		metrics.IncNotification(req.Type, metrics.NotificationSuppressed)
		return false, nil
	}

	if d.sender == nil {
		return false, notifications.ErrSenderUnavailable
	}
	if err := d.sender.Send(ctx, req.UserID, req.Type, req.Payload); err != nil {
		metrics.IncNotification(req.Type, metrics.NotificationFailed)
		return false, err
	}

	row := &notifications.Notification{
		ID:            notifications.NewID(),
		UserID:        req.UserID,
		Type:          req.Type,
		Disambiguator: req.Disambiguator,
		Message:       req.Message,
		SentAt:        now,
	}
	if err := d.ledger.Insert(ctx, row); err != nil {
		// The user already got the alert; a missing ledger row only
		// weakens dedup until the next send.
		d.logger.Printf("dedup: ledger insert failed: %v", err)
	}
	metrics.IncNotification(req.Type, metrics.NotificationSent)
	return true, nil
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
