package memory

import (
	"context"
	"sync"
	"time"

	notifications "cargotrack-cloud/internal/notifications/domain"
)

// NotificationRepository is an in-memory dedup ledger.
type NotificationRepository struct {
	mu   sync.RWMutex
	rows []notifications.Notification
}

// NewNotificationRepository constructs a repository.
func NewNotificationRepository() *NotificationRepository {
	return &NotificationRepository{}
}

// Insert appends a ledger row.
func (r *NotificationRepository) Insert(ctx context.Context, notification *notifications.Notification) error {
	_ = ctx
	if notification == nil {
		return notifications.ErrNotFound
	}
	if err := notification.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	r.rows = append(r.rows, *notification)
	r.mu.Unlock()
	return nil
}

// LastSentAt returns the most recent SentAt for the compound key.
func (r *NotificationRepository) LastSentAt(ctx context.Context, userID, notificationType, disambiguator string) (time.Time, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var last time.Time
	for _, row := range r.rows {
		if row.UserID != userID || row.Type != notificationType || row.Disambiguator != disambiguator {
			continue
		}
		if row.SentAt.After(last) {
			last = row.SentAt
		}
	}
	return last, nil
}

// DeleteReadBefore removes read rows older than cutoff.
func (r *NotificationRepository) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	_ = ctx
	return r.deleteBefore(cutoff, true), nil
}

// DeleteUnreadBefore removes unread rows older than cutoff.
func (r *NotificationRepository) DeleteUnreadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	_ = ctx
	return r.deleteBefore(cutoff, false), nil
}

func (r *NotificationRepository) deleteBefore(cutoff time.Time, read bool) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.rows[:0]
	var removed int64
	for _, row := range r.rows {
		if row.Read == read && row.SentAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, row)
	}
	r.rows = kept
	return removed
}

// All returns every row for assertion convenience.
func (r *NotificationRepository) All() []notifications.Notification {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]notifications.Notification, len(r.rows))
	copy(out, r.rows)
	return out
}
