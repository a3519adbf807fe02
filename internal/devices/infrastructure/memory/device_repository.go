package memory

import (
	"context"
	"sync"
	"time"

	devices "cargotrack-cloud/internal/devices/domain"
)

// DeviceRepository is an in-memory repository for devices.
type DeviceRepository struct {
	mu   sync.RWMutex
	data map[string]*devices.Device
}

// NewDeviceRepository constructs a repository.
func NewDeviceRepository() *DeviceRepository {
	return &DeviceRepository{data: make(map[string]*devices.Device)}
}

// Get loads a device by id.
func (r *DeviceRepository) Get(ctx context.Context, id string) (*devices.Device, error) {
	_ = ctx
	r.mu.RLock()
	device := r.data[id]
	r.mu.RUnlock()
	if device == nil {
		return nil, nil
	}
	clone := *device
	return &clone, nil
}

// Save upserts a device.
func (r *DeviceRepository) Save(ctx context.Context, device *devices.Device) error {
	_ = ctx
	if device == nil {
		return devices.ErrNotFound
	}
	if err := device.Validate(); err != nil {
		return err
	}
	clone := *device
	r.mu.Lock()
	r.data[device.ID] = &clone
	r.mu.Unlock()
	return nil
}

// UpdateBattery sets the battery percentage; a missing device is a no-op.
func (r *DeviceRepository) UpdateBattery(ctx context.Context, id string, pct float64, at time.Time) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	device := r.data[id]
	if device == nil {
		return nil
	}
	device.BatteryPct = &pct
	device.UpdatedAt = at.UTC()
	return nil
}

// ListByStatus returns devices in the given status.
func (r *DeviceRepository) ListByStatus(ctx context.Context, status devices.Status) ([]devices.Device, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []devices.Device
	for _, device := range r.data {
		if device.Status == status {
			result = append(result, *device)
		}
	}
	return result, nil
}
