package scans

import (
	"context"
	"fmt"
	"time"

	"cargotrack-cloud/internal/geo"
	notifapp "cargotrack-cloud/internal/notifications/application"
	notifications "cargotrack-cloud/internal/notifications/domain"
	"cargotrack-cloud/internal/observability/metrics"
	shipments "cargotrack-cloud/internal/shipments/domain"
	telemetry "cargotrack-cloud/internal/telemetry/domain"
)

// RunDelivery sweeps in-transit shipments and marks the ones whose device
// has dwelled inside the destination geofence long enough.
func (e *Engine) RunDelivery(ctx context.Context) (*Summary, error) {
	start := e.clock.Now()
	summary := &Summary{Scan: "delivery"}

	inTransit, err := e.shipments.ListByStatus(ctx, shipments.StatusInTransit)
	if err != nil {
		metrics.ObserveScan(summary.Scan, metrics.ResultError, 0, e.clock.Now().Sub(start))
		return nil, err
	}

	for index := range inTransit {
		shipment := inTransit[index]
		summary.Checked++
		delivered, err := e.detectDelivery(ctx, &shipment)
		if err != nil {
			summary.Errors++
			e.logger.Printf("scans: delivery check failed for %s: %v", shipment.ID, err)
			continue
		}
		if delivered {
			summary.Notified++
		}
	}

	metrics.ObserveScan(summary.Scan, metrics.ResultSuccess, summary.Checked, e.clock.Now().Sub(start))
	return summary, nil
}

// detectDelivery applies the geofence rule to one shipment: at least two
// of the recent events inside the destination radius, spanning the
// minimum dwell. A single drive-by ping never delivers.
func (e *Engine) detectDelivery(ctx context.Context, shipment *shipments.Shipment) (bool, error) {
	if shipment.DeviceID == "" || !shipment.HasDestination() {
		return false, nil
	}

	events, err := e.events.ListRecentByDevice(ctx, shipment.DeviceID, e.cfg.EventWindow)
	if err != nil {
		return false, err
	}

	inside := filterInside(events, *shipment.DestinationLat, *shipment.DestinationLng, e.cfg.GeofenceRadiusMeters)
	if len(inside) < 2 {
		return false, nil
	}
	// Events arrive newest-first; the dwell is the span between the newest
	// and oldest in-geofence samples.
	dwell := inside[0].RecordedAt.Sub(inside[len(inside)-1].RecordedAt)
	if dwell < e.cfg.Dwell() {
		return false, nil
	}

	now := e.clock.Now()
	if err := shipment.Transition(shipments.StatusDelivered, now); err != nil {
		return false, err
	}
	if err := e.shipments.Save(ctx, shipment); err != nil {
		return false, err
	}

	if _, err := e.notifier.Send(ctx, notifapp.Request{
		UserID:        shipment.UserID,
		Type:          notifications.TypeDelivered,
		Disambiguator: shipment.ID,
		Message:       fmt.Sprintf("Shipment %s was delivered", shipment.ID),
		Payload:       map[string]any{"shipmentId": shipment.ID, "deliveredAt": now.Format(time.RFC3339)},
	}); err != nil {
		// Delivery already recorded; the alert alone failed.
		e.logger.Printf("scans: delivered notification failed for %s: %v", shipment.ID, err)
	}
	return true, nil
}

func filterInside(events []telemetry.LocationEvent, lat, lng, radius float64) []telemetry.LocationEvent {
	var inside []telemetry.LocationEvent
	for _, event := range events {
		if geo.Distance(event.Latitude, event.Longitude, lat, lng) <= radius {
			inside = append(inside, event)
		}
	}
	return inside
}
