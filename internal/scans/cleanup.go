package scans

import (
	"context"

	"cargotrack-cloud/internal/observability/metrics"
)

// CleanupSummary reports one retention sweep.
type CleanupSummary struct {
	ShipmentsChecked     int   `json:"shipmentsChecked"`
	EventsDeleted        int64 `json:"eventsDeleted"`
	SharesDisabled       int   `json:"sharesDisabled"`
	ReadNotifsDeleted    int64 `json:"readNotificationsDeleted"`
	UnreadNotifsDeleted  int64 `json:"unreadNotificationsDeleted"`
	Errors               int   `json:"errors"`
}

// RunCleanup enforces the retention windows: location events of shipments
// delivered beyond the event retention are purged and their share links
// force-disabled; old notifications are dropped on their read/unread
// schedules.
func (e *Engine) RunCleanup(ctx context.Context) (*CleanupSummary, error) {
	start := e.clock.Now()
	summary := &CleanupSummary{}
	now := e.clock.Now()

	expired, err := e.shipments.ListDeliveredBefore(ctx, now.Add(-e.cfg.EventRetention()))
	if err != nil {
		metrics.ObserveScan("cleanup", metrics.ResultError, 0, e.clock.Now().Sub(start))
		return nil, err
	}

	for index := range expired {
		shipment := expired[index]
		summary.ShipmentsChecked++

		if shipment.DeviceID != "" {
			// Purge only up to this shipment's delivery; the device may
			// carry a newer shipment whose events are still live.
			deleted, err := e.events.DeleteByDeviceBefore(ctx, shipment.DeviceID, shipment.DeliveredAt)
			if err != nil {
				summary.Errors++
				e.logger.Printf("scans: event purge failed for %s: %v", shipment.ID, err)
				continue
			}
			summary.EventsDeleted += deleted
		}
		if shipment.ShareEnabled {
			shipment.ShareEnabled = false
			shipment.UpdatedAt = now.UTC()
			if err := e.shipments.Save(ctx, &shipment); err != nil {
				summary.Errors++
				e.logger.Printf("scans: share disable failed for %s: %v", shipment.ID, err)
				continue
			}
			summary.SharesDisabled++
		}
	}

	readDeleted, err := e.ledger.DeleteReadBefore(ctx, now.Add(-e.cfg.ReadRetention()))
	if err != nil {
		summary.Errors++
		e.logger.Printf("scans: read notification purge failed: %v", err)
	}
	summary.ReadNotifsDeleted = readDeleted

	unreadDeleted, err := e.ledger.DeleteUnreadBefore(ctx, now.Add(-e.cfg.UnreadRetention()))
	if err != nil {
		summary.Errors++
		e.logger.Printf("scans: unread notification purge failed: %v", err)
	}
	summary.UnreadNotifsDeleted = unreadDeleted

	metrics.ObserveScan("cleanup", metrics.ResultSuccess, summary.ShipmentsChecked, e.clock.Now().Sub(start))
	return summary, nil
}
