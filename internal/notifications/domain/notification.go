package notifications

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"
)

// Notification types.
const (
	TypeLowBattery      = "low_battery"
	TypeNoSignal        = "no_signal"
	TypeUnusedLabel     = "unused_label_reminder"
	TypePendingShipment = "pending_shipment_reminder"
	TypeDelivered       = "delivered"
)

// Low-battery disambiguator tiers.
const (
	DisambiguatorCritical = "critical_10"
	DisambiguatorWarning  = "warning_20"
)

var (
	// ErrNotFound indicates a missing notification record.
	ErrNotFound = errors.New("notification: not found")
	// ErrSenderUnavailable indicates the outbound sender is unreachable or
	// not configured.
	ErrSenderUnavailable = errors.New("notification: sender unavailable")
)

// Notification is one ledger row per user-facing alert. The compound key
// (UserID, Type, Disambiguator) drives dedup; the ledger is an audit
// trail, not a delivery queue.
type Notification struct {
	ID            string
	UserID        string
	Type          string
	Disambiguator string
	Message       string
	SentAt        time.Time
	Read          bool
}

// Validate checks notification invariants.
func (n Notification) Validate() error {
	if n.ID == "" {
		return errors.New("notification: empty id")
	}
	if n.UserID == "" {
		return errors.New("notification: empty user id")
	}
	if n.Type == "" {
		return errors.New("notification: empty type")
	}
	return nil
}

// NewID generates a random notification id.
func NewID() string {
	buf := make([]byte, 12)
	_, _ = rand.Read(buf)
	return "ntf-" + hex.EncodeToString(buf)
}

// NotificationRepository persists the dedup ledger.
type NotificationRepository interface {
	Insert(ctx context.Context, notification *Notification) error
	// LastSentAt returns the most recent SentAt for the compound key, or
	// the zero time when no row exists.
	LastSentAt(ctx context.Context, userID, notificationType, disambiguator string) (time.Time, error)
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteUnreadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
