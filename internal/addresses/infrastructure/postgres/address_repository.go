package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	addresses "cargotrack-cloud/internal/addresses/domain"
)

const defaultAddressesTable = "saved_addresses"

// DBTX is the query surface shared by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// AddressRepository is a Postgres implementation of the address book.
type AddressRepository struct {
	db    DBTX
	table string
}

// NewAddressRepository constructs a repository.
func NewAddressRepository(db DBTX, opts ...AddressOption) *AddressRepository {
	repo := &AddressRepository{db: db, table: defaultAddressesTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// AddressOption configures the repository.
type AddressOption func(*AddressRepository)

// WithAddressTable overrides the default table name.
func WithAddressTable(table string) AddressOption {
	return func(repo *AddressRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

const addressColumns = "id, user_id, org_id, label, line1, line2, city, postal_code, country, lat, lng, created_at, updated_at"

// Get loads an address by id.
func (r *AddressRepository) Get(ctx context.Context, id string) (*addresses.SavedAddress, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("address repo: nil db")
	}
	if id == "" {
		return nil, errors.New("address repo: empty id")
	}

	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE id = $1
LIMIT 1`, addressColumns, r.table)

	address, err := scanAddress(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return address, nil
}

// Save upserts an address.
func (r *AddressRepository) Save(ctx context.Context, address *addresses.SavedAddress) error {
	if r == nil || r.db == nil {
		return errors.New("address repo: nil db")
	}
	if address == nil {
		return errors.New("address repo: nil address")
	}
	if err := address.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	user_id,
	org_id,
	label,
	line1,
	line2,
	city,
	postal_code,
	country,
	lat,
	lng
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
)
ON CONFLICT (id)
DO UPDATE SET
	label = EXCLUDED.label,
	line1 = EXCLUDED.line1,
	line2 = EXCLUDED.line2,
	city = EXCLUDED.city,
	postal_code = EXCLUDED.postal_code,
	country = EXCLUDED.country,
	lat = EXCLUDED.lat,
	lng = EXCLUDED.lng,
	updated_at = NOW()`, r.table)

	var orgID sql.NullString
	if address.OrgID != "" {
		orgID = sql.NullString{String: address.OrgID, Valid: true}
	}

	_, err := r.db.ExecContext(
		ctx,
		query,
		address.ID,
		address.UserID,
		orgID,
		address.Label,
		address.Line1,
		address.Line2,
		address.City,
		address.PostalCode,
		address.Country,
		nullFloat(address.Lat),
		nullFloat(address.Lng),
	)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if address.CreatedAt.IsZero() {
		address.CreatedAt = now
	}
	address.UpdatedAt = now
	return nil
}

// List loads addresses matching the owner filter.
func (r *AddressRepository) List(ctx context.Context, filter addresses.ListFilter) ([]addresses.SavedAddress, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("address repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE ($1 = '' OR user_id = $1)
	AND ($2 = '' OR org_id = $2)
ORDER BY label ASC, created_at ASC`, addressColumns, r.table)

	rows, err := r.db.QueryContext(ctx, query, filter.UserID, filter.OrgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []addresses.SavedAddress
	for rows.Next() {
		address, err := scanAddress(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *address)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes an address.
func (r *AddressRepository) Delete(ctx context.Context, id string) error {
	if r == nil || r.db == nil {
		return errors.New("address repo: nil db")
	}
	if id == "" {
		return errors.New("address repo: empty id")
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.table)
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return addresses.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAddress(row rowScanner) (*addresses.SavedAddress, error) {
	var address addresses.SavedAddress
	var orgID sql.NullString
	var lat, lng sql.NullFloat64
	if err := row.Scan(
		&address.ID,
		&address.UserID,
		&orgID,
		&address.Label,
		&address.Line1,
		&address.Line2,
		&address.City,
		&address.PostalCode,
		&address.Country,
		&lat,
		&lng,
		&address.CreatedAt,
		&address.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if orgID.Valid {
		address.OrgID = orgID.String
	}
	address.Lat = floatPtr(lat)
	address.Lng = floatPtr(lng)
	address.CreatedAt = address.CreatedAt.UTC()
	address.UpdatedAt = address.UpdatedAt.UTC()
	return &address, nil
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
