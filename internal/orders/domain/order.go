package orders

import (
	"context"
	"errors"
	"time"
)

// Order status values.
const (
	StatusPlaced    = "PLACED"
	StatusShipped   = "SHIPPED"
	StatusDelivered = "DELIVERED"
)

// ErrNotFound indicates a missing order record.
var ErrNotFound = errors.New("order: not found")

// Order is the commercial ownership record linking purchased devices to a
// user. FulfilledAt is stamped when the order ships.
type Order struct {
	ID          string
	UserID      string
	OrgID       string
	Status      string
	FulfilledAt time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate checks order invariants.
func (o Order) Validate() error {
	if o.ID == "" {
		return errors.New("order: empty id")
	}
	if o.UserID == "" {
		return errors.New("order: empty user id")
	}
	return nil
}

// Fulfilled reports whether the order has left the warehouse.
func (o Order) Fulfilled() bool {
	return o.Status == StatusShipped || o.Status == StatusDelivered
}

// OrderRepository manages order persistence.
type OrderRepository interface {
	Get(ctx context.Context, id string) (*Order, error)
	Save(ctx context.Context, order *Order) error
}
