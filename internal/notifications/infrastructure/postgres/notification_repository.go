package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	notifications "cargotrack-cloud/internal/notifications/domain"
)

const defaultNotificationsTable = "notifications"

// DBTX is the query surface shared by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// NotificationRepository is a Postgres implementation of the dedup ledger.
type NotificationRepository struct {
	db    DBTX
	table string
}

// NewNotificationRepository constructs a repository.
func NewNotificationRepository(db DBTX, opts ...NotificationOption) *NotificationRepository {
	repo := &NotificationRepository{db: db, table: defaultNotificationsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// NotificationOption configures the repository.
type NotificationOption func(*NotificationRepository)

// WithNotificationTable overrides the default table name.
func WithNotificationTable(table string) NotificationOption {
	return func(repo *NotificationRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Insert stores one ledger row.
func (r *NotificationRepository) Insert(ctx context.Context, notification *notifications.Notification) error {
	if r == nil || r.db == nil {
		return errors.New("notification repo: nil db")
	}
	if notification == nil {
		return errors.New("notification repo: nil notification")
	}
	if err := notification.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	user_id,
	type,
	disambiguator,
	message,
	sent_at,
	read
) VALUES (
	$1, $2, $3, $4, $5, $6, $7
)`, r.table)

	_, err := r.db.ExecContext(
		ctx,
		query,
		notification.ID,
		notification.UserID,
		notification.Type,
		notification.Disambiguator,
		notification.Message,
		notification.SentAt.UTC(),
		notification.Read,
	)
	return err
}

// LastSentAt returns the most recent sent_at for the compound key, or the
// zero time when no row exists.
func (r *NotificationRepository) LastSentAt(ctx context.Context, userID, notificationType, disambiguator string) (time.Time, error) {
	if r == nil || r.db == nil {
		return time.Time{}, errors.New("notification repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT sent_at
FROM %s
WHERE user_id = $1 AND type = $2 AND disambiguator = $3
ORDER BY sent_at DESC
LIMIT 1`, r.table)

	var sentAt time.Time
	if err := r.db.QueryRowContext(ctx, query, userID, notificationType, disambiguator).Scan(&sentAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	return sentAt.UTC(), nil
}

// DeleteReadBefore removes read rows older than cutoff.
func (r *NotificationRepository) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return r.deleteBefore(ctx, cutoff, true)
}

// DeleteUnreadBefore removes unread rows older than cutoff.
func (r *NotificationRepository) DeleteUnreadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return r.deleteBefore(ctx, cutoff, false)
}

func (r *NotificationRepository) deleteBefore(ctx context.Context, cutoff time.Time, read bool) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("notification repo: nil db")
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE read = $1 AND sent_at < $2`, r.table)
	result, err := r.db.ExecContext(ctx, query, read, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
