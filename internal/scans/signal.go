package scans

import (
	"context"
	"fmt"

	notifapp "cargotrack-cloud/internal/notifications/application"
	notifications "cargotrack-cloud/internal/notifications/domain"
	"cargotrack-cloud/internal/observability/metrics"
	shipments "cargotrack-cloud/internal/shipments/domain"
)

// RunSignal sweeps in-transit shipments and alerts owners whose device
// has been silent beyond the configured window.
func (e *Engine) RunSignal(ctx context.Context) (*Summary, error) {
	start := e.clock.Now()
	summary := &Summary{Scan: "signal"}

	inTransit, err := e.shipments.ListByStatus(ctx, shipments.StatusInTransit)
	if err != nil {
		metrics.ObserveScan(summary.Scan, metrics.ResultError, 0, e.clock.Now().Sub(start))
		return nil, err
	}

	cutoff := e.clock.Now().Add(-e.cfg.SignalSilence())
	for index := range inTransit {
		shipment := inTransit[index]
		if shipment.DeviceID == "" {
			continue
		}
		summary.Checked++

		count, err := e.events.CountSince(ctx, shipment.DeviceID, cutoff)
		if err != nil {
			summary.Errors++
			e.logger.Printf("scans: signal check failed for %s: %v", shipment.ID, err)
			continue
		}
		if count > 0 {
			continue
		}

		sent, err := e.notifier.Send(ctx, notifapp.Request{
			UserID:        shipment.UserID,
			Type:          notifications.TypeNoSignal,
			Disambiguator: shipment.ID,
			Message:       fmt.Sprintf("No signal from shipment %s for over %dh", shipment.ID, e.cfg.SignalSilenceHours),
			Payload:       map[string]any{"shipmentId": shipment.ID, "deviceId": shipment.DeviceID},
		})
		if err != nil {
			summary.Errors++
			e.logger.Printf("scans: no-signal notification failed for %s: %v", shipment.ID, err)
			continue
		}
		if sent {
			summary.Notified++
		}
	}

	metrics.ObserveScan(summary.Scan, metrics.ResultSuccess, summary.Checked, e.clock.Now().Sub(start))
	return summary, nil
}
