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

// RunBattery sweeps active devices and alerts owners whose tracker
// battery dropped into the warning or critical tier while carrying an
// in-transit shipment. The two tiers dedup independently, so a drop from
// warning into critical re-alerts at once.
func (e *Engine) RunBattery(ctx context.Context) (*Summary, error) {
	start := e.clock.Now()
	summary := &Summary{Scan: "battery"}

	active, err := e.devices.ListByStatus(ctx, devices.StatusActive)
	if err != nil {
		metrics.ObserveScan(summary.Scan, metrics.ResultError, 0, e.clock.Now().Sub(start))
		return nil, err
	}

	for index := range active {
		device := active[index]
		summary.Checked++
		notified, err := e.checkBattery(ctx, &device)
		if err != nil {
			summary.Errors++
			e.logger.Printf("scans: battery check failed for %s: %v", device.ID, err)
			continue
		}
		if notified {
			summary.Notified++
		}
	}

	metrics.ObserveScan(summary.Scan, metrics.ResultSuccess, summary.Checked, e.clock.Now().Sub(start))
	return summary, nil
}

func (e *Engine) checkBattery(ctx context.Context, device *devices.Device) (bool, error) {
	if device.BatteryPct == nil {
		return false, nil
	}
	pct := *device.BatteryPct
	if pct <= 0 {
		// 0% is a dead tracker, not a low-battery condition.
		return false, nil
	}

	var tier string
	switch {
	case pct <= e.cfg.BatteryCriticalPct:
		tier = notifications.DisambiguatorCritical
	case pct <= e.cfg.BatteryWarningPct:
		tier = notifications.DisambiguatorWarning
	default:
		return false, nil
	}

	// Alerts fire only for trackers carrying an in-transit shipment.
	open, err := e.shipments.GetOpenByDevice(ctx, device.ID)
	if err != nil {
		return false, err
	}
	if open == nil || open.Status != shipments.StatusInTransit {
		return false, nil
	}

	userID, err := e.ownerOf(ctx, device)
	if err != nil {
		return false, err
	}
	if userID == "" {
		return false, nil
	}

	return e.notifier.Send(ctx, notifapp.Request{
		UserID: userID,
		Type:   notifications.TypeLowBattery,
		// Scoped per device so one owner's trackers alert independently.
		Disambiguator: device.ID + ":" + tier,
		Message:       fmt.Sprintf("Tracker %s battery at %.0f%%", device.ID, pct),
		Payload:       map[string]any{"deviceId": device.ID, "batteryPct": pct, "tier": tier},
	})
}
