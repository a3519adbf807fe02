package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	devices "cargotrack-cloud/internal/devices/domain"
)

const defaultDevicesTable = "devices"

// DeviceRepository is a Postgres implementation for devices.
type DeviceRepository struct {
	db    DBTX
	table string
}

// NewDeviceRepository constructs a repository.
func NewDeviceRepository(db DBTX, opts ...DeviceOption) *DeviceRepository {
	repo := &DeviceRepository{db: db, table: defaultDevicesTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// DeviceOption configures the repository.
type DeviceOption func(*DeviceRepository)

// WithDeviceTable overrides the default table name.
func WithDeviceTable(table string) DeviceOption {
	return func(repo *DeviceRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

const deviceColumns = "id, imei, iccid, status, battery_pct, order_id, activated_at, created_at, updated_at"

// Get loads a device by id.
func (r *DeviceRepository) Get(ctx context.Context, id string) (*devices.Device, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("device repo: nil db")
	}
	if id == "" {
		return nil, errors.New("device repo: empty id")
	}

	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE id = $1
LIMIT 1`, deviceColumns, r.table)

	device, err := scanDevice(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return device, nil
}

// Save upserts a device.
func (r *DeviceRepository) Save(ctx context.Context, device *devices.Device) error {
	if r == nil || r.db == nil {
		return errors.New("device repo: nil db")
	}
	if device == nil {
		return errors.New("device repo: nil device")
	}
	if err := device.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	imei,
	iccid,
	status,
	battery_pct,
	order_id,
	activated_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7
)
ON CONFLICT (id)
DO UPDATE SET
	imei = EXCLUDED.imei,
	iccid = EXCLUDED.iccid,
	status = EXCLUDED.status,
	battery_pct = EXCLUDED.battery_pct,
	order_id = EXCLUDED.order_id,
	activated_at = EXCLUDED.activated_at,
	updated_at = NOW()`, r.table)

	_, err := r.db.ExecContext(
		ctx,
		query,
		device.ID,
		device.IMEI,
		device.ICCID,
		string(device.Status),
		nullFloat(device.BatteryPct),
		nullString(device.OrderID),
		nullTime(device.ActivatedAt),
	)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if device.CreatedAt.IsZero() {
		device.CreatedAt = now
	}
	device.UpdatedAt = now
	return nil
}

// UpdateBattery sets the battery percentage; a missing device is a no-op.
func (r *DeviceRepository) UpdateBattery(ctx context.Context, id string, pct float64, at time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("device repo: nil db")
	}
	if id == "" {
		return errors.New("device repo: empty id")
	}

	query := fmt.Sprintf(`
UPDATE %s
SET battery_pct = $2, updated_at = $3
WHERE id = $1`, r.table)

	_, err := r.db.ExecContext(ctx, query, id, pct, at.UTC())
	return err
}

// ListByStatus loads devices in the given status.
func (r *DeviceRepository) ListByStatus(ctx context.Context, status devices.Status) ([]devices.Device, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("device repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE status = $1
ORDER BY id ASC`, deviceColumns, r.table)

	rows, err := r.db.QueryContext(ctx, query, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []devices.Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *device)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(row rowScanner) (*devices.Device, error) {
	var device devices.Device
	var status string
	var battery sql.NullFloat64
	var orderID sql.NullString
	var activatedAt sql.NullTime
	if err := row.Scan(
		&device.ID,
		&device.IMEI,
		&device.ICCID,
		&status,
		&battery,
		&orderID,
		&activatedAt,
		&device.CreatedAt,
		&device.UpdatedAt,
	); err != nil {
		return nil, err
	}
	device.Status = devices.Status(status)
	if battery.Valid {
		pct := battery.Float64
		device.BatteryPct = &pct
	}
	if orderID.Valid {
		device.OrderID = orderID.String
	}
	if activatedAt.Valid {
		device.ActivatedAt = activatedAt.Time.UTC()
	}
	device.CreatedAt = device.CreatedAt.UTC()
	device.UpdatedAt = device.UpdatedAt.UTC()
	return &device, nil
}

func nullFloat(value *float64) sql.NullFloat64 {
	if value == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *value, Valid: true}
}

func nullString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

func nullTime(value time.Time) sql.NullTime {
	if value.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: value.UTC(), Valid: true}
}
