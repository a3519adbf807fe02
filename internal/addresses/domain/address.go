package addresses

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"
)

// ErrNotFound indicates a missing saved address.
var ErrNotFound = errors.New("address: not found")

// SavedAddress is a reusable origin or destination entry in a user's
// address book.
type SavedAddress struct {
	ID         string
	UserID     string
	OrgID      string
	Label      string
	Line1      string
	Line2      string
	City       string
	PostalCode string
	Country    string
	Lat        *float64
	Lng        *float64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Validate checks address invariants.
func (a SavedAddress) Validate() error {
	if a.ID == "" {
		return errors.New("address: empty id")
	}
	if a.UserID == "" {
		return errors.New("address: empty user id")
	}
	if a.Line1 == "" && a.Lat == nil {
		return errors.New("address: line1 or coordinates required")
	}
	if (a.Lat == nil) != (a.Lng == nil) {
		return errors.New("address: latitude and longitude must be set together")
	}
	if a.Lat != nil {
		if *a.Lat < -90 || *a.Lat > 90 || *a.Lng < -180 || *a.Lng > 180 {
			return errors.New("address: coordinates out of range")
		}
	}
	return nil
}

// NewID generates a random address id.
func NewID() string {
	buf := make([]byte, 12)
	_, _ = rand.Read(buf)
	return "adr-" + hex.EncodeToString(buf)
}

// ListFilter restricts list queries to an owner scope.
type ListFilter struct {
	UserID string
	OrgID  string
}

// AddressRepository persists saved addresses.
type AddressRepository interface {
	Get(ctx context.Context, id string) (*SavedAddress, error)
	Save(ctx context.Context, address *SavedAddress) error
	List(ctx context.Context, filter ListFilter) ([]SavedAddress, error)
	Delete(ctx context.Context, id string) error
}
