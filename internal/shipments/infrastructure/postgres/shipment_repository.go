package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	shipments "cargotrack-cloud/internal/shipments/domain"
)

const defaultShipmentsTable = "shipments"

// ShipmentRepository is a Postgres implementation for shipments.
type ShipmentRepository struct {
	db    DBTX
	table string
}

// NewShipmentRepository constructs a repository.
func NewShipmentRepository(db DBTX, opts ...ShipmentOption) *ShipmentRepository {
	repo := &ShipmentRepository{db: db, table: defaultShipmentsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// ShipmentOption configures the repository.
type ShipmentOption func(*ShipmentRepository)

// WithShipmentTable overrides the default table name.
func WithShipmentTable(table string) ShipmentOption {
	return func(repo *ShipmentRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

const shipmentColumns = `id, user_id, org_id, device_id, status, origin_address, origin_lat, origin_lng,
destination_address, destination_lat, destination_lng, share_code, share_enabled, delivered_at, created_at, updated_at`

// Get loads a shipment by id.
func (r *ShipmentRepository) Get(ctx context.Context, id string) (*shipments.Shipment, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("shipment repo: nil db")
	}
	if id == "" {
		return nil, errors.New("shipment repo: empty id")
	}
	return r.getWhere(ctx, "id = $1", id)
}

// GetByShareCode loads a shipment by its public share code.
func (r *ShipmentRepository) GetByShareCode(ctx context.Context, code string) (*shipments.Shipment, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("shipment repo: nil db")
	}
	if code == "" {
		return nil, nil
	}
	return r.getWhere(ctx, "share_code = $1", code)
}

// GetOpenByDevice returns the PENDING or IN_TRANSIT shipment bound to the device.
func (r *ShipmentRepository) GetOpenByDevice(ctx context.Context, deviceID string) (*shipments.Shipment, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("shipment repo: nil db")
	}
	if deviceID == "" {
		return nil, nil
	}

	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE device_id = $1 AND status IN ($2, $3)
ORDER BY created_at DESC
LIMIT 1`, shipmentColumns, r.table)

	shipment, err := scanShipment(r.db.QueryRowContext(ctx, query, deviceID,
		string(shipments.StatusPending), string(shipments.StatusInTransit)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return shipment, nil
}

func (r *ShipmentRepository) getWhere(ctx context.Context, where string, arg any) (*shipments.Shipment, error) {
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE %s
LIMIT 1`, shipmentColumns, r.table, where)

	shipment, err := scanShipment(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return shipment, nil
}

// Save upserts a shipment.
func (r *ShipmentRepository) Save(ctx context.Context, shipment *shipments.Shipment) error {
	if r == nil || r.db == nil {
		return errors.New("shipment repo: nil db")
	}
	if shipment == nil {
		return errors.New("shipment repo: nil shipment")
	}
	if err := shipment.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	user_id,
	org_id,
	device_id,
	status,
	origin_address,
	origin_lat,
	origin_lng,
	destination_address,
	destination_lat,
	destination_lng,
	share_code,
	share_enabled,
	delivered_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
)
ON CONFLICT (id)
DO UPDATE SET
	device_id = EXCLUDED.device_id,
	status = EXCLUDED.status,
	origin_address = EXCLUDED.origin_address,
	origin_lat = EXCLUDED.origin_lat,
	origin_lng = EXCLUDED.origin_lng,
	destination_address = EXCLUDED.destination_address,
	destination_lat = EXCLUDED.destination_lat,
	destination_lng = EXCLUDED.destination_lng,
	share_enabled = EXCLUDED.share_enabled,
	delivered_at = EXCLUDED.delivered_at,
	updated_at = NOW()`, r.table)

	_, err := r.db.ExecContext(
		ctx,
		query,
		shipment.ID,
		shipment.UserID,
		nullString(shipment.OrgID),
		nullString(shipment.DeviceID),
		string(shipment.Status),
		shipment.OriginAddress,
		nullFloat(shipment.OriginLat),
		nullFloat(shipment.OriginLng),
		shipment.DestinationAddress,
		nullFloat(shipment.DestinationLat),
		nullFloat(shipment.DestinationLng),
		shipment.ShareCode,
		shipment.ShareEnabled,
		nullTime(shipment.DeliveredAt),
	)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if shipment.CreatedAt.IsZero() {
		shipment.CreatedAt = now
	}
	shipment.UpdatedAt = now
	return nil
}

// List loads shipments matching the owner filter, newest first.
func (r *ShipmentRepository) List(ctx context.Context, filter shipments.ListFilter) ([]shipments.Shipment, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("shipment repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE ($1 = '' OR user_id = $1)
	AND ($2 = '' OR org_id = $2)
ORDER BY created_at DESC`, shipmentColumns, r.table)

	return r.list(ctx, query, filter.UserID, filter.OrgID)
}

// ListByStatus loads shipments in the given status.
func (r *ShipmentRepository) ListByStatus(ctx context.Context, status shipments.Status) ([]shipments.Shipment, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("shipment repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE status = $1
ORDER BY created_at ASC`, shipmentColumns, r.table)

	return r.list(ctx, query, string(status))
}

// ListDeliveredBefore loads shipments delivered before cutoff.
func (r *ShipmentRepository) ListDeliveredBefore(ctx context.Context, cutoff time.Time) ([]shipments.Shipment, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("shipment repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE status = $1 AND delivered_at IS NOT NULL AND delivered_at < $2
ORDER BY delivered_at ASC`, shipmentColumns, r.table)

	return r.list(ctx, query, string(shipments.StatusDelivered), cutoff.UTC())
}

// ExistsByDevice reports whether any shipment references the device.
func (r *ShipmentRepository) ExistsByDevice(ctx context.Context, deviceID string) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("shipment repo: nil db")
	}
	if deviceID == "" {
		return false, nil
	}

	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE device_id = $1)`, r.table)
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, deviceID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *ShipmentRepository) list(ctx context.Context, query string, args ...any) ([]shipments.Shipment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []shipments.Shipment
	for rows.Next() {
		shipment, err := scanShipment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *shipment)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanShipment(row rowScanner) (*shipments.Shipment, error) {
	var shipment shipments.Shipment
	var status string
	var orgID, deviceID sql.NullString
	var originLat, originLng, destLat, destLng sql.NullFloat64
	var deliveredAt sql.NullTime
	if err := row.Scan(
		&shipment.ID,
		&shipment.UserID,
		&orgID,
		&deviceID,
		&status,
		&shipment.OriginAddress,
		&originLat,
		&originLng,
		&shipment.DestinationAddress,
		&destLat,
		&destLng,
		&shipment.ShareCode,
		&shipment.ShareEnabled,
		&deliveredAt,
		&shipment.CreatedAt,
		&shipment.UpdatedAt,
	); err != nil {
		return nil, err
	}
	shipment.Status = shipments.Status(status)
	if orgID.Valid {
		shipment.OrgID = orgID.String
	}
	if deviceID.Valid {
		shipment.DeviceID = deviceID.String
	}
	shipment.OriginLat = floatPtr(originLat)
	shipment.OriginLng = floatPtr(originLng)
	shipment.DestinationLat = floatPtr(destLat)
	shipment.DestinationLng = floatPtr(destLng)
	if deliveredAt.Valid {
		shipment.DeliveredAt = deliveredAt.Time.UTC()
	}
	shipment.CreatedAt = shipment.CreatedAt.UTC()
	shipment.UpdatedAt = shipment.UpdatedAt.UTC()
	return &shipment, nil
}

func nullString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
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

func nullTime(value time.Time) sql.NullTime {
	if value.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: value.UTC(), Valid: true}
}
