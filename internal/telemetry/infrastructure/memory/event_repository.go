package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	telemetry "cargotrack-cloud/internal/telemetry/domain"
)

// EventRepository is an in-memory store for location events.
type EventRepository struct {
	mu   sync.RWMutex
	rows []telemetry.LocationEvent
}

// NewEventRepository constructs a repository.
func NewEventRepository() *EventRepository {
	return &EventRepository{}
}

// Insert appends an event.
func (r *EventRepository) Insert(ctx context.Context, event *telemetry.LocationEvent) error {
	_ = ctx
	if event == nil {
		return nil
	}
	r.mu.Lock()
	r.rows = append(r.rows, *event)
	r.mu.Unlock()
	return nil
}

// ListRecentByDevice returns up to limit events, newest-first by RecordedAt.
func (r *EventRepository) ListRecentByDevice(ctx context.Context, deviceID string, limit int) ([]telemetry.LocationEvent, error) {
	_ = ctx
	r.mu.RLock()
	var result []telemetry.LocationEvent
	for _, event := range r.rows {
		if event.DeviceID == deviceID {
			result = append(result, event)
		}
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].RecordedAt.After(result[j].RecordedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// CountSince counts events for the device recorded at or after since.
func (r *EventRepository) CountSince(ctx context.Context, deviceID string, since time.Time) (int, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, event := range r.rows {
		if event.DeviceID == deviceID && !event.RecordedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

// DeleteByDeviceBefore removes the device's events recorded at or before
// the cutoff.
func (r *EventRepository) DeleteByDeviceBefore(ctx context.Context, deviceID string, cutoff time.Time) (int64, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.rows[:0]
	var removed int64
	for _, event := range r.rows {
		if event.DeviceID == deviceID && !event.RecordedAt.After(cutoff) {
			removed++
			continue
		}
		kept = append(kept, event)
	}
	r.rows = kept
	return removed, nil
}
