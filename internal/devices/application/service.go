package application

import (
	"context"
	"errors"
	"log"
	"time"

	"cargotrack-cloud/internal/auth"
	devices "cargotrack-cloud/internal/devices/domain"
	orders "cargotrack-cloud/internal/orders/domain"
)

// ShipmentBinder lets activation attach the device to a target shipment
// without importing the shipments context directly.
type ShipmentBinder interface {
	// Owner returns the shipment's owner fields, or ("","") with
	// found=false when the shipment does not exist.
	Owner(ctx context.Context, shipmentID string) (userID, orgID string, found bool, err error)
	AttachDevice(ctx context.Context, shipmentID, deviceID string) error
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// Service drives device lifecycle transitions.
type Service struct {
	devices devices.DeviceRepository
	orders  orders.OrderRepository
	binder  ShipmentBinder
	clock   Clock
	logger  *log.Logger
}

// ServiceOption customizes the device service.
type ServiceOption func(*Service)

// WithClock assigns a clock.
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithShipmentBinder assigns a binder for activation-time attachment.
func WithShipmentBinder(binder ShipmentBinder) ServiceOption {
	return func(s *Service) {
		s.binder = binder
	}
}

// NewService constructs a device lifecycle service.
func NewService(deviceRepo devices.DeviceRepository, orderRepo orders.OrderRepository, logger *log.Logger, opts ...ServiceOption) (*Service, error) {
	if deviceRepo == nil {
		return nil, errors.New("devices: nil device repository")
	}
	if orderRepo == nil {
		return nil, errors.New("devices: nil order repository")
	}
	if logger == nil {
		logger = log.Default()
	}
	service := &Service{
		devices: deviceRepo,
		orders:  orderRepo,
		clock:   systemClock{},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// BindingResult reports what happened to a requested shipment binding.
// An owner mismatch does not fail the activation; callers inspect this.
type BindingResult struct {
	Requested bool   `json:"requested"`
	Bound     bool   `json:"bound"`
	Reason    string `json:"reason,omitempty"`
}

// ActivationResult is the outcome of a successful activation.
type ActivationResult struct {
	Device  *devices.Device `json:"device"`
	Binding BindingResult   `json:"binding"`
}

// Activate transitions a SOLD device to ACTIVE for its owner, optionally
// binding it to a shipment the same caller owns.
func (s *Service) Activate(ctx context.Context, deviceID, targetShipmentID string) (*ActivationResult, error) {
	if s == nil {
		return nil, errors.New("devices: nil service")
	}
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return nil, auth.ErrForbidden
	}
	device, err := s.devices.Get(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if device == nil {
		return nil, devices.ErrNotFound
	}
	if device.OrderID == "" {
		return nil, devices.ErrNotPurchased
	}
	order, err := s.orders.Get(ctx, device.OrderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, devices.ErrNotPurchased
	}
	if err := identity.Authorize(order.UserID, order.OrgID); err != nil {
		return nil, err
	}

	if err := device.Transition(devices.StatusActive, s.clock.Now()); err != nil {
		return nil, err
	}
	if err := s.devices.Save(ctx, device); err != nil {
		return nil, err
	}

	result := &ActivationResult{Device: device}
	if targetShipmentID != "" {
		result.Binding = s.bind(ctx, identity, targetShipmentID, device.ID)
	}
	return result, nil
}

func (s *Service) bind(ctx context.Context, identity auth.Identity, shipmentID, deviceID string) BindingResult {
	result := BindingResult{Requested: true}
	if s.binder == nil {
		result.Reason = "binding not supported"
		return result
	}
	userID, orgID, found, err := s.binder.Owner(ctx, shipmentID)
	if err != nil {
		s.logger.Printf("devices: shipment owner lookup failed for %s: %v", shipmentID, err)
		result.Reason = "lookup failed"
		return result
	}
	if !found {
		result.Reason = "shipment not found"
		return result
	}
	if !identity.CanAccess(userID, orgID) {
		result.Reason = "owner mismatch"
		return result
	}
	if err := s.binder.AttachDevice(ctx, shipmentID, deviceID); err != nil {
		s.logger.Printf("devices: shipment binding failed for %s: %v", shipmentID, err)
		result.Reason = "binding failed"
		return result
	}
	result.Bound = true
	return result
}

// Assign links an inventory device to an order (INVENTORY→SOLD).
func (s *Service) Assign(ctx context.Context, deviceID, orderID string) (*devices.Device, error) {
	if s == nil {
		return nil, errors.New("devices: nil service")
	}
	if orderID == "" {
		return nil, errors.New("devices: order id required")
	}
	device, err := s.devices.Get(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if device == nil {
		return nil, devices.ErrNotFound
	}
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, orders.ErrNotFound
	}
	if err := device.Transition(devices.StatusSold, s.clock.Now()); err != nil {
		return nil, err
	}
	device.OrderID = orderID
	if err := s.devices.Save(ctx, device); err != nil {
		return nil, err
	}
	return device, nil
}

// Deplete marks an active device as exhausted.
func (s *Service) Deplete(ctx context.Context, deviceID string) (*devices.Device, error) {
	if s == nil {
		return nil, errors.New("devices: nil service")
	}
	device, err := s.devices.Get(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if device == nil {
		return nil, devices.ErrNotFound
	}
	if err := device.Transition(devices.StatusDepleted, s.clock.Now()); err != nil {
		return nil, err
	}
	if err := s.devices.Save(ctx, device); err != nil {
		return nil, err
	}
	return device, nil
}

// Reset returns a device to inventory. Only legal once the ownership
// link has been cleared administratively.
func (s *Service) Reset(ctx context.Context, deviceID string) (*devices.Device, error) {
	if s == nil {
		return nil, errors.New("devices: nil service")
	}
	device, err := s.devices.Get(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if device == nil {
		return nil, devices.ErrNotFound
	}
	if err := device.Transition(devices.StatusInventory, s.clock.Now()); err != nil {
		return nil, err
	}
	if err := s.devices.Save(ctx, device); err != nil {
		return nil, err
	}
	return device, nil
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
