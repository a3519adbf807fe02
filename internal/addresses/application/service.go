package application

import (
	"context"
	"errors"
	"time"

	addresses "cargotrack-cloud/internal/addresses/domain"
	"cargotrack-cloud/internal/auth"
)

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// Service owns the saved address book. All reads and writes go through
// the caller's access predicate.
type Service struct {
	addresses addresses.AddressRepository
	clock     Clock
}

// ServiceOption customizes the address service.
type ServiceOption func(*Service)

// WithClock assigns a clock.
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewService constructs an address service.
func NewService(addressRepo addresses.AddressRepository, opts ...ServiceOption) (*Service, error) {
	if addressRepo == nil {
		return nil, errors.New("addresses: nil repository")
	}
	service := &Service{addresses: addressRepo, clock: systemClock{}}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Input describes a new or updated address.
type Input struct {
	Label      string   `json:"label,omitempty"`
	Line1      string   `json:"line1,omitempty"`
	Line2      string   `json:"line2,omitempty"`
	City       string   `json:"city,omitempty"`
	PostalCode string   `json:"postalCode,omitempty"`
	Country    string   `json:"country,omitempty"`
	Lat        *float64 `json:"lat,omitempty"`
	Lng        *float64 `json:"lng,omitempty"`
}

// Create stores a new address for the caller.
func (s *Service) Create(ctx context.Context, input Input) (*addresses.SavedAddress, error) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return nil, auth.ErrForbidden
	}
	now := s.clock.Now().UTC()
	address := &addresses.SavedAddress{
		ID:         addresses.NewID(),
		UserID:     identity.UserID,
		OrgID:      identity.OrgID,
		Label:      input.Label,
		Line1:      input.Line1,
		Line2:      input.Line2,
		City:       input.City,
		PostalCode: input.PostalCode,
		Country:    input.Country,
		Lat:        input.Lat,
		Lng:        input.Lng,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.addresses.Save(ctx, address); err != nil {
		return nil, err
	}
	return address, nil
}

// Get loads one address for the caller.
func (s *Service) Get(ctx context.Context, id string) (*addresses.SavedAddress, error) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return nil, auth.ErrForbidden
	}
	address, err := s.addresses.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if address == nil {
		return nil, addresses.ErrNotFound
	}
	if err := identity.Authorize(address.UserID, address.OrgID); err != nil {
		return nil, err
	}
	return address, nil
}

// List returns the addresses visible to the caller.
func (s *Service) List(ctx context.Context) ([]addresses.SavedAddress, error) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return nil, auth.ErrForbidden
	}
	filter := identity.ListFilter()
	return s.addresses.List(ctx, addresses.ListFilter{UserID: filter.UserID, OrgID: filter.OrgID})
}

// Update applies new field values to an existing address.
func (s *Service) Update(ctx context.Context, id string, input Input) (*addresses.SavedAddress, error) {
	address, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	address.Label = input.Label
	address.Line1 = input.Line1
	address.Line2 = input.Line2
	address.City = input.City
	address.PostalCode = input.PostalCode
	address.Country = input.Country
	address.Lat = input.Lat
	address.Lng = input.Lng
	address.UpdatedAt = s.clock.Now().UTC()
	if err := s.addresses.Save(ctx, address); err != nil {
		return nil, err
	}
	return address, nil
}

// Delete removes an address the caller may access.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.addresses.Delete(ctx, id)
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
