package devices

import (
	"context"
	"errors"
	"time"
)

// Status is a device lifecycle state.
type Status string

const (
	StatusInventory Status = "INVENTORY"
	StatusSold      Status = "SOLD"
	StatusActive    Status = "ACTIVE"
	StatusDepleted  Status = "DEPLETED"
)

var (
	// ErrNotFound indicates a missing device record.
	ErrNotFound = errors.New("device: not found")
	// ErrNotPurchased blocks activation of a device still in inventory.
	ErrNotPurchased = errors.New("device: not purchased")
	// ErrAlreadyActive blocks re-activation of an active device.
	ErrAlreadyActive = errors.New("device: already active")
	// ErrDepleted blocks activation of a depleted device.
	ErrDepleted = errors.New("device: depleted")
	// ErrStillOwned blocks inventory reset while an order link remains.
	ErrStillOwned = errors.New("device: ownership link present")
	// ErrInvalidTransition covers every other illegal status change.
	ErrInvalidTransition = errors.New("device: invalid status transition")
)

// Device represents a physical tracking unit. The id is hardware-assigned
// and immutable; IMEI and ICCID exist for cross-system lookup only.
type Device struct {
	ID          string
	IMEI        string
	ICCID       string
	Status      Status
	BatteryPct  *float64
	OrderID     string
	ActivatedAt time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate checks device invariants.
func (d Device) Validate() error {
	if d.ID == "" {
		return errors.New("device: empty id")
	}
	switch d.Status {
	case StatusInventory, StatusSold, StatusActive, StatusDepleted:
	default:
		return errors.New("device: unknown status")
	}
	if d.BatteryPct != nil && (*d.BatteryPct < 0 || *d.BatteryPct > 100) {
		return errors.New("device: battery out of range")
	}
	return nil
}

// Transition applies a status change in place. All legal-transition rules
// live here: forward INVENTORY→SOLD→ACTIVE→DEPLETED, plus administrative
// reset to INVENTORY once no ownership link remains. ActivatedAt is
// stamped exactly once, on the first transition into ACTIVE.
func (d *Device) Transition(next Status, now time.Time) error {
	if d == nil {
		return ErrNotFound
	}
	switch next {
	case StatusInventory:
		if d.OrderID != "" {
			return ErrStillOwned
		}
		d.Status = StatusInventory
	case StatusSold:
		if d.Status != StatusInventory {
			return ErrInvalidTransition
		}
		d.Status = StatusSold
	case StatusActive:
		switch d.Status {
		case StatusSold:
			d.Status = StatusActive
			if d.ActivatedAt.IsZero() {
				d.ActivatedAt = now.UTC()
			}
		case StatusInventory:
			return ErrNotPurchased
		case StatusActive:
			return ErrAlreadyActive
		case StatusDepleted:
			return ErrDepleted
		default:
			return ErrInvalidTransition
		}
	case StatusDepleted:
		if d.Status != StatusActive {
			return ErrInvalidTransition
		}
		d.Status = StatusDepleted
	default:
		return ErrInvalidTransition
	}
	d.UpdatedAt = now.UTC()
	return nil
}

// DeviceRepository manages device persistence.
type DeviceRepository interface {
	Get(ctx context.Context, id string) (*Device, error)
	Save(ctx context.Context, device *Device) error
	UpdateBattery(ctx context.Context, id string, pct float64, at time.Time) error
	ListByStatus(ctx context.Context, status Status) ([]Device, error)
}
