package memory

import (
	"context"
	"sync"
	"time"

	shipments "cargotrack-cloud/internal/shipments/domain"
)

// ShipmentRepository is an in-memory repository for shipments.
type ShipmentRepository struct {
	mu   sync.RWMutex
	data map[string]*shipments.Shipment
}

// NewShipmentRepository constructs a repository.
func NewShipmentRepository() *ShipmentRepository {
	return &ShipmentRepository{data: make(map[string]*shipments.Shipment)}
}

// Get loads a shipment by id.
func (r *ShipmentRepository) Get(ctx context.Context, id string) (*shipments.Shipment, error) {
	_ = ctx
	r.mu.RLock()
	shipment := r.data[id]
	r.mu.RUnlock()
	if shipment == nil {
		return nil, nil
	}
	clone := *shipment
	return &clone, nil
}

// GetByShareCode loads a shipment by its public share code.
func (r *ShipmentRepository) GetByShareCode(ctx context.Context, code string) (*shipments.Shipment, error) {
	_ = ctx
	if code == "" {
		return nil, nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, shipment := range r.data {
		if shipment.ShareCode == code {
			clone := *shipment
			return &clone, nil
		}
	}
	return nil, nil
}

// GetOpenByDevice returns the PENDING or IN_TRANSIT shipment bound to the device.
func (r *ShipmentRepository) GetOpenByDevice(ctx context.Context, deviceID string) (*shipments.Shipment, error) {
	_ = ctx
	if deviceID == "" {
		return nil, nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, shipment := range r.data {
		if shipment.DeviceID != deviceID {
			continue
		}
		if shipment.Status == shipments.StatusPending || shipment.Status == shipments.StatusInTransit {
			clone := *shipment
			return &clone, nil
		}
	}
	return nil, nil
}

// Save upserts a shipment.
func (r *ShipmentRepository) Save(ctx context.Context, shipment *shipments.Shipment) error {
	_ = ctx
	if shipment == nil {
		return shipments.ErrNotFound
	}
	if err := shipment.Validate(); err != nil {
		return err
	}
	clone := *shipment
	r.mu.Lock()
	r.data[shipment.ID] = &clone
	r.mu.Unlock()
	return nil
}

// List returns shipments matching the owner filter.
func (r *ShipmentRepository) List(ctx context.Context, filter shipments.ListFilter) ([]shipments.Shipment, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []shipments.Shipment
	for _, shipment := range r.data {
		if filter.OrgID != "" && shipment.OrgID != filter.OrgID {
			continue
		}
		if filter.UserID != "" && shipment.UserID != filter.UserID {
			continue
		}
		result = append(result, *shipment)
	}
	return result, nil
}

// ListByStatus returns shipments in the given status.
func (r *ShipmentRepository) ListByStatus(ctx context.Context, status shipments.Status) ([]shipments.Shipment, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []shipments.Shipment
	for _, shipment := range r.data {
		if shipment.Status == status {
			result = append(result, *shipment)
		}
	}
	return result, nil
}

// ListDeliveredBefore returns shipments delivered before cutoff.
func (r *ShipmentRepository) ListDeliveredBefore(ctx context.Context, cutoff time.Time) ([]shipments.Shipment, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []shipments.Shipment
	for _, shipment := range r.data {
		if shipment.Status == shipments.StatusDelivered && !shipment.DeliveredAt.IsZero() && shipment.DeliveredAt.Before(cutoff) {
			result = append(result, *shipment)
		}
	}
	return result, nil
}

// ExistsByDevice reports whether any shipment references the device.
func (r *ShipmentRepository) ExistsByDevice(ctx context.Context, deviceID string) (bool, error) {
	_ = ctx
	if deviceID == "" {
		return false, nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, shipment := range r.data {
		if shipment.DeviceID == deviceID {
			return true, nil
		}
	}
	return false, nil
}
