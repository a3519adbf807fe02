package scans

import (
	"context"
	"fmt"

	devices "cargotrack-cloud/internal/devices/domain"
	notifapp "cargotrack-cloud/internal/notifications/application"
	notifications "cargotrack-cloud/internal/notifications/domain"
	"cargotrack-cloud/internal/observability/metrics"
	shipments "cargotrack-cloud/internal/shipments/domain"
)

// RunUnusedLabels reminds buyers about sold trackers that were delivered
// to them but never activated against a shipment. Reminders are grouped:
// one notification per user regardless of how many idle trackers they own.
func (e *Engine) RunUnusedLabels(ctx context.Context) (*Summary, error) {
	start := e.clock.Now()
	summary := &Summary{Scan: "unused_labels"}

	sold, err := e.devices.ListByStatus(ctx, devices.StatusSold)
	if err != nil {
		metrics.ObserveScan(summary.Scan, metrics.ResultError, 0, e.clock.Now().Sub(start))
		return nil, err
	}

	cutoff := e.clock.Now().Add(-e.cfg.UnusedLabelAge())
	idleByUser := make(map[string]int)
	for index := range sold {
		device := sold[index]
		summary.Checked++
		if device.OrderID == "" {
			continue
		}
		order, err := e.orders.Get(ctx, device.OrderID)
		if err != nil {
			summary.Errors++
			e.logger.Printf("scans: order lookup failed for %s: %v", device.ID, err)
			continue
		}
		if order == nil || !order.Fulfilled() {
			continue
		}
		if order.FulfilledAt.IsZero() || order.FulfilledAt.After(cutoff) {
			continue
		}
		used, err := e.shipments.ExistsByDevice(ctx, device.ID)
		if err != nil {
			summary.Errors++
			e.logger.Printf("scans: usage check failed for %s: %v", device.ID, err)
			continue
		}
		if used {
			continue
		}
		if order.UserID != "" {
			idleByUser[order.UserID]++
		}
	}

	for userID, count := range idleByUser {
		sent, err := e.notifier.Send(ctx, notifapp.Request{
			UserID:  userID,
			Type:    notifications.TypeUnusedLabel,
			Message: fmt.Sprintf("You have %d tracker(s) not yet attached to any shipment", count),
			Payload: map[string]any{"idleCount": count},
		})
		if err != nil {
			summary.Errors++
			e.logger.Printf("scans: unused-label reminder failed for %s: %v", userID, err)
			continue
		}
		if sent {
			summary.Notified++
		}
	}

	metrics.ObserveScan(summary.Scan, metrics.ResultSuccess, summary.Checked, e.clock.Now().Sub(start))
	return summary, nil
}

// RunPendingReminders nudges owners of shipments that were created but
// never picked up any telemetry.
func (e *Engine) RunPendingReminders(ctx context.Context) (*Summary, error) {
	start := e.clock.Now()
	summary := &Summary{Scan: "pending_reminders"}

	pending, err := e.shipments.ListByStatus(ctx, shipments.StatusPending)
	if err != nil {
		metrics.ObserveScan(summary.Scan, metrics.ResultError, 0, e.clock.Now().Sub(start))
		return nil, err
	}

	cutoff := e.clock.Now().Add(-e.cfg.PendingReminderAge())
	for index := range pending {
		shipment := pending[index]
		summary.Checked++
		if shipment.CreatedAt.After(cutoff) {
			continue
		}
		sent, err := e.notifier.Send(ctx, notifapp.Request{
			UserID:        shipment.UserID,
			Type:          notifications.TypePendingShipment,
			Disambiguator: shipment.ID,
			Message:       fmt.Sprintf("Shipment %s has been pending for over %d day(s)", shipment.ID, e.cfg.PendingReminderDays),
			Payload:       map[string]any{"shipmentId": shipment.ID},
		})
		if err != nil {
			summary.Errors++
			e.logger.Printf("scans: pending reminder failed for %s: %v", shipment.ID, err)
			continue
		}
		if sent {
			summary.Notified++
		}
	}

	metrics.ObserveScan(summary.Scan, metrics.ResultSuccess, summary.Checked, e.clock.Now().Sub(start))
	return summary, nil
}
