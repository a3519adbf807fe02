package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	orders "cargotrack-cloud/internal/orders/domain"
)

const defaultOrdersTable = "orders"

// DBTX is the query surface shared by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// OrderRepository is a Postgres implementation for orders.
type OrderRepository struct {
	db    DBTX
	table string
}

// NewOrderRepository constructs a repository.
func NewOrderRepository(db DBTX, opts ...OrderOption) *OrderRepository {
	repo := &OrderRepository{db: db, table: defaultOrdersTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// OrderOption configures the repository.
type OrderOption func(*OrderRepository)

// WithOrderTable overrides the default table name.
func WithOrderTable(table string) OrderOption {
	return func(repo *OrderRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Get loads an order by id.
func (r *OrderRepository) Get(ctx context.Context, id string) (*orders.Order, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("order repo: nil db")
	}
	if id == "" {
		return nil, errors.New("order repo: empty id")
	}

	query := fmt.Sprintf(`
SELECT id, user_id, org_id, status, fulfilled_at, created_at, updated_at
FROM %s
WHERE id = $1
LIMIT 1`, r.table)

	var order orders.Order
	var status string
	var orgID sql.NullString
	var fulfilledAt sql.NullTime
	if err := r.db.QueryRowContext(ctx, query, id).Scan(
		&order.ID,
		&order.UserID,
		&orgID,
		&status,
		&fulfilledAt,
		&order.CreatedAt,
		&order.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	order.Status = status
	if orgID.Valid {
		order.OrgID = orgID.String
	}
	if fulfilledAt.Valid {
		order.FulfilledAt = fulfilledAt.Time.UTC()
	}
	order.CreatedAt = order.CreatedAt.UTC()
	order.UpdatedAt = order.UpdatedAt.UTC()
	return &order, nil
}

// Save upserts an order.
func (r *OrderRepository) Save(ctx context.Context, order *orders.Order) error {
	if r == nil || r.db == nil {
		return errors.New("order repo: nil db")
	}
	if order == nil {
		return errors.New("order repo: nil order")
	}
	if err := order.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	user_id,
	org_id,
	status,
	fulfilled_at
) VALUES (
	$1, $2, $3, $4, $5
)
ON CONFLICT (id)
DO UPDATE SET
	status = EXCLUDED.status,
	fulfilled_at = EXCLUDED.fulfilled_at,
	updated_at = NOW()`, r.table)

	var orgID sql.NullString
	if order.OrgID != "" {
		orgID = sql.NullString{String: order.OrgID, Valid: true}
	}
	var fulfilledAt sql.NullTime
	if !order.FulfilledAt.IsZero() {
		fulfilledAt = sql.NullTime{Time: order.FulfilledAt.UTC(), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query, order.ID, order.UserID, orgID, string(order.Status), fulfilledAt)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now
	return nil
}
