package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	telemetry "cargotrack-cloud/internal/telemetry/domain"
)

const defaultEventsTable = "location_events"

// EventRepository is a Postgres implementation for location events.
type EventRepository struct {
	db    DBTX
	table string
}

// NewEventRepository constructs a repository.
func NewEventRepository(db DBTX, opts ...EventOption) *EventRepository {
	repo := &EventRepository{db: db, table: defaultEventsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// EventOption configures the repository.
type EventOption func(*EventRepository)

// WithEventTable overrides the default table name.
func WithEventTable(table string) EventOption {
	return func(repo *EventRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Insert stores one location event.
func (r *EventRepository) Insert(ctx context.Context, event *telemetry.LocationEvent) error {
	if r == nil || r.db == nil {
		return errors.New("event repo: nil db")
	}
	if event == nil {
		return errors.New("event repo: nil event")
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	device_id,
	latitude,
	longitude,
	accuracy,
	altitude,
	speed,
	battery,
	recorded_at,
	received_at,
	is_offline_sync
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
)`, r.table)

	_, err := r.db.ExecContext(
		ctx,
		query,
		event.ID,
		event.DeviceID,
		event.Latitude,
		event.Longitude,
		nullFloat(event.Accuracy),
		nullFloat(event.Altitude),
		nullFloat(event.Speed),
		nullFloat(event.Battery),
		event.RecordedAt.UTC(),
		event.ReceivedAt.UTC(),
		event.IsOfflineSync,
	)
	return err
}

// ListRecentByDevice loads up to limit events, newest-first by recorded_at.
func (r *EventRepository) ListRecentByDevice(ctx context.Context, deviceID string, limit int) ([]telemetry.LocationEvent, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("event repo: nil db")
	}
	if deviceID == "" {
		return nil, errors.New("event repo: empty device id")
	}
	if limit <= 0 {
		limit = 10
	}

	query := fmt.Sprintf(`
SELECT id, device_id, latitude, longitude, accuracy, altitude, speed, battery, recorded_at, received_at, is_offline_sync
FROM %s
WHERE device_id = $1
ORDER BY recorded_at DESC
LIMIT $2`, r.table)

	rows, err := r.db.QueryContext(ctx, query, deviceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []telemetry.LocationEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// CountSince counts events for the device recorded at or after since.
func (r *EventRepository) CountSince(ctx context.Context, deviceID string, since time.Time) (int, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("event repo: nil db")
	}
	if deviceID == "" {
		return 0, errors.New("event repo: empty device id")
	}

	query := fmt.Sprintf(`
SELECT COUNT(*)
FROM %s
WHERE device_id = $1 AND recorded_at >= $2`, r.table)

	var count int
	if err := r.db.QueryRowContext(ctx, query, deviceID, since.UTC()).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// DeleteByDeviceBefore removes the device's events recorded at or before
// the cutoff.
func (r *EventRepository) DeleteByDeviceBefore(ctx context.Context, deviceID string, cutoff time.Time) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("event repo: nil db")
	}
	if deviceID == "" {
		return 0, errors.New("event repo: empty device id")
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE device_id = $1 AND recorded_at <= $2`, r.table)
	result, err := r.db.ExecContext(ctx, query, deviceID, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func scanEvent(rows *sql.Rows) (telemetry.LocationEvent, error) {
	var event telemetry.LocationEvent
	var accuracy, altitude, speed, battery sql.NullFloat64
	if err := rows.Scan(
		&event.ID,
		&event.DeviceID,
		&event.Latitude,
		&event.Longitude,
		&accuracy,
		&altitude,
		&speed,
		&battery,
		&event.RecordedAt,
		&event.ReceivedAt,
		&event.IsOfflineSync,
	); err != nil {
		return telemetry.LocationEvent{}, err
	}
	event.Accuracy = floatPtr(accuracy)
	event.Altitude = floatPtr(altitude)
	event.Speed = floatPtr(speed)
	event.Battery = floatPtr(battery)
	event.RecordedAt = event.RecordedAt.UTC()
	event.ReceivedAt = event.ReceivedAt.UTC()
	return event, nil
}

func nullFloat(value *float64) sql.NullFloat64 {
	if value == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *value, Valid: true}
}

func floatPtr(value sql.NullFloat64) *float64 {
	if !value.Valid {
		return nil
	}
	v := value.Float64
	return &v
}
