package application

import (
	"context"
	"errors"
	"log"
	"time"

	devices "cargotrack-cloud/internal/devices/domain"
	"cargotrack-cloud/internal/observability/metrics"
	shipments "cargotrack-cloud/internal/shipments/domain"
	telemetry "cargotrack-cloud/internal/telemetry/domain"
)

// ErrUnknownDevice rejects reports from device ids the platform has
// never provisioned.
var ErrUnknownDevice = errors.New("telemetry: unknown device")

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// Ingestor validates and persists device location reports, keeping the
// device battery reading and the bound shipment status current.
type Ingestor struct {
	events    telemetry.EventRepository
	devices   devices.DeviceRepository
	shipments shipments.ShipmentRepository
	clock     Clock
	logger    *log.Logger
}

// IngestorOption customizes the ingestor.
type IngestorOption func(*Ingestor)

// WithClock assigns a clock.
func WithClock(clock Clock) IngestorOption {
	return func(i *Ingestor) {
		if clock != nil {
			i.clock = clock
		}
	}
}

// NewIngestor constructs a telemetry ingestor.
func NewIngestor(eventRepo telemetry.EventRepository, deviceRepo devices.DeviceRepository, shipmentRepo shipments.ShipmentRepository, logger *log.Logger, opts ...IngestorOption) (*Ingestor, error) {
	if eventRepo == nil {
		return nil, errors.New("telemetry: nil event repository")
	}
	if deviceRepo == nil {
		return nil, errors.New("telemetry: nil device repository")
	}
	if shipmentRepo == nil {
		return nil, errors.New("telemetry: nil shipment repository")
	}
	if logger == nil {
		logger = log.Default()
	}
	ingestor := &Ingestor{
		events:    eventRepo,
		devices:   deviceRepo,
		shipments: shipmentRepo,
		clock:     systemClock{},
		logger:    logger,
	}
	for _, opt := range opts {
		opt(ingestor)
	}
	return ingestor, nil
}

// Ingest processes one report and returns the stored event.
func (i *Ingestor) Ingest(ctx context.Context, report telemetry.Report) (*telemetry.LocationEvent, error) {
	if i == nil {
		return nil, errors.New("telemetry: nil ingestor")
	}
	start := i.clock.Now()
	event, err := i.ingest(ctx, report)
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	metrics.ObserveIngest(result, i.clock.Now().Sub(start))
	return event, err
}

func (i *Ingestor) ingest(ctx context.Context, report telemetry.Report) (*telemetry.LocationEvent, error) {
	receivedAt := i.clock.Now().UTC()
	event, err := telemetry.ValidateReport(report, receivedAt)
	if err != nil {
		metrics.IncIngestError("validation")
		return nil, err
	}

	device, err := i.devices.Get(ctx, event.DeviceID)
	if err != nil {
		metrics.IncIngestError("device_lookup")
		return nil, err
	}
	if device == nil {
		metrics.IncIngestError("unknown_device")
		return nil, ErrUnknownDevice
	}

	event.ID = telemetry.NewEventID()
	if err := i.events.Insert(ctx, &event); err != nil {
		metrics.IncIngestError("insert")
		return nil, err
	}

	// Battery and shipment bookkeeping ride along with the ingest; their
	// failures are logged, not surfaced, since the event is already stored.
	if event.Battery != nil {
		battery := clampBattery(*event.Battery)
		if err := i.devices.UpdateBattery(ctx, event.DeviceID, battery, receivedAt); err != nil {
			i.logger.Printf("telemetry: battery update failed for %s: %v", event.DeviceID, err)
		}
	}
	i.advanceShipment(ctx, event.DeviceID, receivedAt)

	return &event, nil
}

// advanceShipment moves the device's bound shipment from PENDING to
// IN_TRANSIT on its first accepted report.
func (i *Ingestor) advanceShipment(ctx context.Context, deviceID string, now time.Time) {
	shipment, err := i.shipments.GetOpenByDevice(ctx, deviceID)
	if err != nil {
		i.logger.Printf("telemetry: open shipment lookup failed for %s: %v", deviceID, err)
		return
	}
	if shipment == nil || shipment.Status != shipments.StatusPending {
		return
	}
	if err := shipment.Transition(shipments.StatusInTransit, now); err != nil {
		i.logger.Printf("telemetry: shipment %s transition failed: %v", shipment.ID, err)
		return
	}
	if err := i.shipments.Save(ctx, shipment); err != nil {
		i.logger.Printf("telemetry: shipment %s save failed: %v", shipment.ID, err)
	}
}

// BatchResult summarizes an offline-sync batch.
type BatchResult struct {
	Accepted int           `json:"accepted"`
	Rejected int           `json:"rejected"`
	Errors   []BatchError  `json:"errors,omitempty"`
}

// BatchError reports one rejected batch entry.
type BatchError struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// IngestBatch processes a buffered upload. Entries fail independently;
// one bad report never blocks the rest of the batch.
func (i *Ingestor) IngestBatch(ctx context.Context, reports []telemetry.Report) (*BatchResult, error) {
	if i == nil {
		return nil, errors.New("telemetry: nil ingestor")
	}
	result := &BatchResult{}
	for index, report := range reports {
		if _, err := i.Ingest(ctx, report); err != nil {
			result.Rejected++
			result.Errors = append(result.Errors, BatchError{Index: index, Reason: err.Error()})
			continue
		}
		result.Accepted++
	}
	return result, nil
}

func clampBattery(pct float64) float64 {
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
