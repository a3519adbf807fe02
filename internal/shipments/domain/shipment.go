package shipments

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"
)

// Status is a shipment lifecycle state.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusInTransit Status = "IN_TRANSIT"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
)

var (
	// ErrNotFound indicates a missing shipment record. Public tracking also
	// maps share-disabled lookups to this error to avoid existence disclosure.
	ErrNotFound = errors.New("shipment: not found")
	// ErrShareExpired indicates a valid share code past its post-delivery window.
	ErrShareExpired = errors.New("shipment: share link expired")
	// ErrTerminalStatus blocks transitions out of DELIVERED/CANCELLED.
	ErrTerminalStatus = errors.New("shipment: status is terminal")
	// ErrNoDestination blocks delivery without destination coordinates.
	ErrNoDestination = errors.New("shipment: destination coordinates required")
	// ErrInvalidTransition covers every other illegal status change.
	ErrInvalidTransition = errors.New("shipment: invalid status transition")
	// ErrInvalidInput marks rejected caller input.
	ErrInvalidInput = errors.New("shipment: invalid input")
)

// Shipment is a tracked consignment bound to at most one device.
type Shipment struct {
	ID                 string
	UserID             string
	OrgID              string
	DeviceID           string
	Status             Status
	OriginAddress      string
	OriginLat          *float64
	OriginLng          *float64
	DestinationAddress string
	DestinationLat     *float64
	DestinationLng     *float64
	ShareCode          string
	ShareEnabled       bool
	DeliveredAt        time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Validate checks shipment invariants.
func (s Shipment) Validate() error {
	if s.ID == "" {
		return errors.New("shipment: empty id")
	}
	if s.UserID == "" {
		return errors.New("shipment: empty user id")
	}
	switch s.Status {
	case StatusPending, StatusInTransit, StatusDelivered, StatusCancelled:
	default:
		return errors.New("shipment: unknown status")
	}
	return nil
}

// HasDestination reports whether destination coordinates are set.
func (s Shipment) HasDestination() bool {
	return s.DestinationLat != nil && s.DestinationLng != nil
}

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Transition applies a status change in place; all legal-transition rules
// live here. DELIVERED requires destination coordinates and stamps
// DeliveredAt exactly once, with the transition time rather than any
// event time. Re-applying the current status is a no-op.
func (s *Shipment) Transition(next Status, now time.Time) error {
	if s == nil {
		return ErrNotFound
	}
	if s.Status == next {
		return nil
	}
	if s.Status.Terminal() {
		return ErrTerminalStatus
	}
	switch next {
	case StatusInTransit:
		if s.Status != StatusPending {
			return ErrInvalidTransition
		}
	case StatusDelivered:
		if !s.HasDestination() {
			return ErrNoDestination
		}
		if s.DeliveredAt.IsZero() {
			s.DeliveredAt = now.UTC()
		}
	case StatusCancelled:
		// Any non-terminal status may cancel.
	default:
		return ErrInvalidTransition
	}
	s.Status = next
	s.UpdatedAt = now.UTC()
	return nil
}

// NewID generates a random shipment id.
func NewID() string {
	buf := make([]byte, 12)
	_, _ = rand.Read(buf)
	return "shp-" + hex.EncodeToString(buf)
}

// NewShareCode generates a public opaque tracking token.
func NewShareCode() string {
	buf := make([]byte, 10)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

// ListFilter restricts list queries to an owner scope. Empty fields are
// unconstrained.
type ListFilter struct {
	UserID string
	OrgID  string
}

// ShipmentRepository manages shipment persistence.
type ShipmentRepository interface {
	Get(ctx context.Context, id string) (*Shipment, error)
	GetByShareCode(ctx context.Context, code string) (*Shipment, error)
	// GetOpenByDevice returns the PENDING or IN_TRANSIT shipment bound to
	// the device, or nil.
	GetOpenByDevice(ctx context.Context, deviceID string) (*Shipment, error)
	Save(ctx context.Context, shipment *Shipment) error
	List(ctx context.Context, filter ListFilter) ([]Shipment, error)
	ListByStatus(ctx context.Context, status Status) ([]Shipment, error)
	// ListDeliveredBefore returns shipments whose DeliveredAt precedes cutoff.
	ListDeliveredBefore(ctx context.Context, cutoff time.Time) ([]Shipment, error)
	ExistsByDevice(ctx context.Context, deviceID string) (bool, error)
}
