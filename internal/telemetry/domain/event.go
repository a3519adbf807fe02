package telemetry

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"
)

// Report is one raw location report as submitted by a tracking device.
// Pointer fields are optional on the wire.
type Report struct {
	DeviceID      string     `json:"deviceId"`
	Latitude      float64    `json:"latitude"`
	Longitude     float64    `json:"longitude"`
	Accuracy      *float64   `json:"accuracy,omitempty"`
	Altitude      *float64   `json:"altitude,omitempty"`
	Speed         *float64   `json:"speed,omitempty"`
	Battery       *float64   `json:"battery,omitempty"`
	RecordedAt    *time.Time `json:"recordedAt,omitempty"`
	IsOfflineSync bool       `json:"isOfflineSync,omitempty"`
}

// LocationEvent is a validated, immutable position reading. RecordedAt is
// device time, ReceivedAt ingestion time; the two diverge for buffered
// offline-sync uploads, so consumers always order by RecordedAt.
type LocationEvent struct {
	ID            string
	DeviceID      string
	Latitude      float64
	Longitude     float64
	Accuracy      *float64
	Altitude      *float64
	Speed         *float64
	Battery       *float64
	RecordedAt    time.Time
	ReceivedAt    time.Time
	IsOfflineSync bool
}

// NewEventID generates a random location event id.
func NewEventID() string {
	buf := make([]byte, 12)
	_, _ = rand.Read(buf)
	return "evt-" + hex.EncodeToString(buf)
}

// EventRepository persists location events. ListRecentByDevice returns
// events ordered newest-first by recorded_at.
type EventRepository interface {
	Insert(ctx context.Context, event *LocationEvent) error
	ListRecentByDevice(ctx context.Context, deviceID string, limit int) ([]LocationEvent, error)
	CountSince(ctx context.Context, deviceID string, since time.Time) (int, error)
	// DeleteByDeviceBefore removes the device's events recorded at or
	// before the cutoff. Newer events survive so a reused device keeps
	// the history of its current shipment.
	DeleteByDeviceBefore(ctx context.Context, deviceID string, cutoff time.Time) (int64, error)
}
