package scans

import (
	"context"
	"errors"
	"log"
	"time"

	devices "cargotrack-cloud/internal/devices/domain"
	notifapp "cargotrack-cloud/internal/notifications/application"
	notifications "cargotrack-cloud/internal/notifications/domain"
	orders "cargotrack-cloud/internal/orders/domain"
	shipments "cargotrack-cloud/internal/shipments/domain"
	telemetry "cargotrack-cloud/internal/telemetry/domain"
)

// Notifier is the dedup-guarded notification gateway.
type Notifier interface {
	Send(ctx context.Context, req notifapp.Request) (bool, error)
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// Engine runs the periodic scans: delivery detection, battery and signal
// alerts, reminders, and retention cleanup. Each record fails alone; one
// broken row never aborts the sweep.
type Engine struct {
	shipments shipments.ShipmentRepository
	devices   devices.DeviceRepository
	orders    orders.OrderRepository
	events    telemetry.EventRepository
	ledger    notifications.NotificationRepository
	notifier  Notifier
	cfg       Config
	clock     Clock
	logger    *log.Logger
}

// EngineOption customizes the engine.
type EngineOption func(*Engine)

// WithClock assigns a clock.
func WithClock(clock Clock) EngineOption {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// NewEngine constructs a scan engine.
func NewEngine(
	shipmentRepo shipments.ShipmentRepository,
	deviceRepo devices.DeviceRepository,
	orderRepo orders.OrderRepository,
	eventRepo telemetry.EventRepository,
	ledger notifications.NotificationRepository,
	notifier Notifier,
	cfg Config,
	logger *log.Logger,
	opts ...EngineOption,
) (*Engine, error) {
	if shipmentRepo == nil || deviceRepo == nil || orderRepo == nil || eventRepo == nil || ledger == nil {
		return nil, errors.New("scans: nil repository")
	}
	if notifier == nil {
		return nil, errors.New("scans: nil notifier")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}
	engine := &Engine{
		shipments: shipmentRepo,
		devices:   deviceRepo,
		orders:    orderRepo,
		events:    eventRepo,
		ledger:    ledger,
		notifier:  notifier,
		cfg:       cfg,
		clock:     systemClock{},
		logger:    logger,
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine, nil
}

// Summary reports one scan run.
type Summary struct {
	Scan     string `json:"scan"`
	Checked  int    `json:"checked"`
	Notified int    `json:"notified"`
	Errors   int    `json:"errors"`
}

// ownerOf resolves the user behind a device via its order link.
func (e *Engine) ownerOf(ctx context.Context, device *devices.Device) (string, error) {
	if device.OrderID == "" {
		return "", nil
	}
	order, err := e.orders.Get(ctx, device.OrderID)
	if err != nil {
		return "", err
	}
	if order == nil {
		return "", nil
	}
	return order.UserID, nil
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
