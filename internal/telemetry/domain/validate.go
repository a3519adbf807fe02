package telemetry

import (
	"math"
	"time"
)

// ValidationError describes a rejected report field. Validation failures
// are terminal; devices must not retry the same payload.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "telemetry: invalid " + e.Field + ": " + e.Reason
}

// ValidateReport checks a raw report and returns a normalized event.
// RecordedAt defaults to receivedAt when the device omits it. The event id
// is left empty; the ingestion layer assigns one before storage.
func ValidateReport(report Report, receivedAt time.Time) (LocationEvent, error) {
	if report.DeviceID == "" {
		return LocationEvent{}, &ValidationError{Field: "deviceId", Reason: "required"}
	}
	if !isFinite(report.Latitude) {
		return LocationEvent{}, &ValidationError{Field: "latitude", Reason: "not finite"}
	}
	if !isFinite(report.Longitude) {
		return LocationEvent{}, &ValidationError{Field: "longitude", Reason: "not finite"}
	}
	if report.Latitude < -90 || report.Latitude > 90 {
		return LocationEvent{}, &ValidationError{Field: "latitude", Reason: "out of range"}
	}
	if report.Longitude < -180 || report.Longitude > 180 {
		return LocationEvent{}, &ValidationError{Field: "longitude", Reason: "out of range"}
	}
	// (0,0) is the no-fix sentinel some firmwares emit, not a position.
	if report.Latitude == 0 && report.Longitude == 0 {
		return LocationEvent{}, &ValidationError{Field: "coordinates", Reason: "no fix"}
	}
	for _, field := range []struct {
		name  string
		value *float64
	}{
		{"accuracy", report.Accuracy},
		{"altitude", report.Altitude},
		{"speed", report.Speed},
		{"battery", report.Battery},
	} {
		if field.value != nil && !isFinite(*field.value) {
			return LocationEvent{}, &ValidationError{Field: field.name, Reason: "not finite"}
		}
	}

	recordedAt := receivedAt
	if report.RecordedAt != nil && !report.RecordedAt.IsZero() {
		recordedAt = report.RecordedAt.UTC()
	}
	return LocationEvent{
		DeviceID:      report.DeviceID,
		Latitude:      report.Latitude,
		Longitude:     report.Longitude,
		Accuracy:      report.Accuracy,
		Altitude:      report.Altitude,
		Speed:         report.Speed,
		Battery:       report.Battery,
		RecordedAt:    recordedAt,
		ReceivedAt:    receivedAt.UTC(),
		IsOfflineSync: report.IsOfflineSync,
	}, nil
}

func isFinite(value float64) bool {
	return !math.IsNaN(value) && !math.IsInf(value, 0)
}
