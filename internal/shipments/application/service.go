package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"cargotrack-cloud/internal/auth"
	devices "cargotrack-cloud/internal/devices/domain"
	shipments "cargotrack-cloud/internal/shipments/domain"
	telemetry "cargotrack-cloud/internal/telemetry/domain"
)

// Clock provides time.
type Clock interface {
	Now() time.Time
}

const (
	defaultShareExpiry = 90 * 24 * time.Hour
	trackEventLimit    = 10
)

// Service owns shipment lifecycle and query operations. Every mutation
// and single-record read runs through the caller's access predicate.
type Service struct {
	shipments   shipments.ShipmentRepository
	devices     devices.DeviceRepository
	events      telemetry.EventRepository
	clock       Clock
	shareExpiry time.Duration
	logger      *log.Logger
}

// ServiceOption customizes the shipment service.
type ServiceOption func(*Service)

// WithClock assigns a clock.
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithShareExpiry overrides the post-delivery public tracking window.
func WithShareExpiry(expiry time.Duration) ServiceOption {
	return func(s *Service) {
		if expiry > 0 {
			s.shareExpiry = expiry
		}
	}
}

// NewService constructs a shipment service.
func NewService(shipmentRepo shipments.ShipmentRepository, deviceRepo devices.DeviceRepository, eventRepo telemetry.EventRepository, logger *log.Logger, opts ...ServiceOption) (*Service, error) {
	if shipmentRepo == nil {
		return nil, errors.New("shipments: nil shipment repository")
	}
	if deviceRepo == nil {
		return nil, errors.New("shipments: nil device repository")
	}
	if eventRepo == nil {
		return nil, errors.New("shipments: nil event repository")
	}
	if logger == nil {
		logger = log.Default()
	}
	service := &Service{
		shipments:   shipmentRepo,
		devices:     deviceRepo,
		events:      eventRepo,
		clock:       systemClock{},
		shareExpiry: defaultShareExpiry,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// CreateInput describes a new shipment.
type CreateInput struct {
	DeviceID           string   `json:"deviceId"`
	OriginAddress      string   `json:"originAddress,omitempty"`
	OriginLat          *float64 `json:"originLat,omitempty"`
	OriginLng          *float64 `json:"originLng,omitempty"`
	DestinationAddress string   `json:"destinationAddress,omitempty"`
	DestinationLat     *float64 `json:"destinationLat"`
	DestinationLng     *float64 `json:"destinationLng"`
}

// Create registers a PENDING shipment for the caller. Destination
// coordinates and a device reference are mandatory; delivery detection
// cannot work without either.
func (s *Service) Create(ctx context.Context, input CreateInput) (*shipments.Shipment, error) {
	if s == nil {
		return nil, errors.New("shipments: nil service")
	}
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return nil, auth.ErrForbidden
	}
	if input.DeviceID == "" {
		return nil, fmt.Errorf("%w: device id required", shipments.ErrInvalidInput)
	}
	if input.DestinationLat == nil || input.DestinationLng == nil {
		return nil, shipments.ErrNoDestination
	}
	if *input.DestinationLat < -90 || *input.DestinationLat > 90 ||
		*input.DestinationLng < -180 || *input.DestinationLng > 180 {
		return nil, fmt.Errorf("%w: destination coordinates out of range", shipments.ErrInvalidInput)
	}
	device, err := s.devices.Get(ctx, input.DeviceID)
	if err != nil {
		return nil, err
	}
	if device == nil {
		return nil, devices.ErrNotFound
	}

	now := s.clock.Now().UTC()
	shipment := &shipments.Shipment{
		ID:                 shipments.NewID(),
		UserID:             identity.UserID,
		OrgID:              identity.OrgID,
		DeviceID:           input.DeviceID,
		Status:             shipments.StatusPending,
		OriginAddress:      input.OriginAddress,
		OriginLat:          input.OriginLat,
		OriginLng:          input.OriginLng,
		DestinationAddress: input.DestinationAddress,
		DestinationLat:     input.DestinationLat,
		DestinationLng:     input.DestinationLng,
		ShareCode:          shipments.NewShareCode(),
		ShareEnabled:       true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.shipments.Save(ctx, shipment); err != nil {
		return nil, err
	}
	return shipment, nil
}

// Get loads one shipment for the caller.
func (s *Service) Get(ctx context.Context, id string) (*shipments.Shipment, error) {
	if s == nil {
		return nil, errors.New("shipments: nil service")
	}
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return nil, auth.ErrForbidden
	}
	shipment, err := s.shipments.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if shipment == nil {
		return nil, shipments.ErrNotFound
	}
	if err := identity.Authorize(shipment.UserID, shipment.OrgID); err != nil {
		return nil, err
	}
	return shipment, nil
}

// List returns the shipments visible to the caller.
func (s *Service) List(ctx context.Context) ([]shipments.Shipment, error) {
	if s == nil {
		return nil, errors.New("shipments: nil service")
	}
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return nil, auth.ErrForbidden
	}
	filter := identity.ListFilter()
	return s.shipments.List(ctx, shipments.ListFilter{UserID: filter.UserID, OrgID: filter.OrgID})
}

// Patch describes a partial shipment update. Nil fields stay untouched.
type Patch struct {
	Status             *shipments.Status `json:"status,omitempty"`
	ShareEnabled       *bool             `json:"shareEnabled,omitempty"`
	OriginAddress      *string           `json:"originAddress,omitempty"`
	DestinationAddress *string           `json:"destinationAddress,omitempty"`
	DestinationLat     *float64          `json:"destinationLat,omitempty"`
	DestinationLng     *float64          `json:"destinationLng,omitempty"`
}

// Update applies a patch. Concurrent updates are last-write-wins; the
// caller that saves second overwrites the first.
func (s *Service) Update(ctx context.Context, id string, patch Patch) (*shipments.Shipment, error) {
	shipment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now().UTC()

	if patch.OriginAddress != nil {
		shipment.OriginAddress = *patch.OriginAddress
	}
	if patch.DestinationAddress != nil {
		shipment.DestinationAddress = *patch.DestinationAddress
	}
	if patch.DestinationLat != nil {
		shipment.DestinationLat = patch.DestinationLat
	}
	if patch.DestinationLng != nil {
		shipment.DestinationLng = patch.DestinationLng
	}
	if patch.ShareEnabled != nil {
		shipment.ShareEnabled = *patch.ShareEnabled
	}
	if patch.Status != nil {
		if err := shipment.Transition(*patch.Status, now); err != nil {
			return nil, err
		}
	}
	shipment.UpdatedAt = now
	if err := s.shipments.Save(ctx, shipment); err != nil {
		return nil, err
	}
	return shipment, nil
}

// Cancel performs the logical delete: the row stays, status becomes
// CANCELLED.
func (s *Service) Cancel(ctx context.Context, id string) (*shipments.Shipment, error) {
	shipment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := shipment.Transition(shipments.StatusCancelled, s.clock.Now()); err != nil {
		return nil, err
	}
	if err := s.shipments.Save(ctx, shipment); err != nil {
		return nil, err
	}
	return shipment, nil
}

// History returns the shipment's recent location events, newest-first,
// after the access check.
func (s *Service) History(ctx context.Context, id string, limit int) (*shipments.Shipment, []telemetry.LocationEvent, error) {
	shipment, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if shipment.DeviceID == "" {
		return shipment, nil, nil
	}
	events, err := s.events.ListRecentByDevice(ctx, shipment.DeviceID, limit)
	if err != nil {
		return nil, nil, err
	}
	return shipment, events, nil
}

// TrackView is the public, unauthenticated projection of a shipment.
type TrackView struct {
	Status             shipments.Status           `json:"status"`
	OriginAddress      string                     `json:"originAddress,omitempty"`
	DestinationAddress string                     `json:"destinationAddress,omitempty"`
	DeliveredAt        *time.Time                 `json:"deliveredAt,omitempty"`
	Positions          []TrackPosition            `json:"positions"`
}

// TrackPosition is one public position sample.
type TrackPosition struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	RecordedAt time.Time `json:"recordedAt"`
}

// Track resolves a public share code. Missing and share-disabled both
// yield ErrNotFound so the endpoint cannot confirm which codes exist; a
// delivered shipment past the expiry window yields the distinct
// ErrShareExpired, since a well-formed code already implies existence.
func (s *Service) Track(ctx context.Context, shareCode string) (*TrackView, error) {
	if s == nil {
		return nil, errors.New("shipments: nil service")
	}
	if shareCode == "" {
		return nil, shipments.ErrNotFound
	}
	shipment, err := s.shipments.GetByShareCode(ctx, shareCode)
	if err != nil {
		return nil, err
	}
	if shipment == nil || !shipment.ShareEnabled {
		return nil, shipments.ErrNotFound
	}
	now := s.clock.Now().UTC()
	if shipment.Status == shipments.StatusDelivered && !shipment.DeliveredAt.IsZero() &&
		now.After(shipment.DeliveredAt.Add(s.shareExpiry)) {
		return nil, shipments.ErrShareExpired
	}

	view := &TrackView{
		Status:             shipment.Status,
		OriginAddress:      shipment.OriginAddress,
		DestinationAddress: shipment.DestinationAddress,
		Positions:          []TrackPosition{},
	}
	if !shipment.DeliveredAt.IsZero() {
		deliveredAt := shipment.DeliveredAt
		view.DeliveredAt = &deliveredAt
	}
	if shipment.DeviceID != "" {
		events, err := s.events.ListRecentByDevice(ctx, shipment.DeviceID, trackEventLimit)
		if err != nil {
			return nil, err
		}
		for _, event := range events {
			view.Positions = append(view.Positions, TrackPosition{
				Latitude:   event.Latitude,
				Longitude:  event.Longitude,
				RecordedAt: event.RecordedAt,
			})
		}
	}
	return view, nil
}

// Owner exposes shipment ownership for device activation binding.
func (s *Service) Owner(ctx context.Context, shipmentID string) (string, string, bool, error) {
	if s == nil {
		return "", "", false, errors.New("shipments: nil service")
	}
	shipment, err := s.shipments.Get(ctx, shipmentID)
	if err != nil {
		return "", "", false, err
	}
	if shipment == nil {
		return "", "", false, nil
	}
	return shipment.UserID, shipment.OrgID, true, nil
}

// AttachDevice binds a device to the shipment. Ownership has already
// been checked by the caller.
func (s *Service) AttachDevice(ctx context.Context, shipmentID, deviceID string) error {
	if s == nil {
		return errors.New("shipments: nil service")
	}
	shipment, err := s.shipments.Get(ctx, shipmentID)
	if err != nil {
		return err
	}
	if shipment == nil {
		return shipments.ErrNotFound
	}
	if shipment.Status.Terminal() {
		return shipments.ErrTerminalStatus
	}
	shipment.DeviceID = deviceID
	shipment.UpdatedAt = s.clock.Now().UTC()
	return s.shipments.Save(ctx, shipment)
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
