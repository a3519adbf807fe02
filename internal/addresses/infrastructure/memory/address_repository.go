package memory

import (
	"context"
	"sync"

	addresses "cargotrack-cloud/internal/addresses/domain"
)

// AddressRepository is an in-memory address book.
type AddressRepository struct {
	mu   sync.RWMutex
	data map[string]*addresses.SavedAddress
}

// NewAddressRepository constructs a repository.
func NewAddressRepository() *AddressRepository {
	return &AddressRepository{data: make(map[string]*addresses.SavedAddress)}
}

// Get loads an address by id.
func (r *AddressRepository) Get(ctx context.Context, id string) (*addresses.SavedAddress, error) {
	_ = ctx
	r.mu.RLock()
	address := r.data[id]
	r.mu.RUnlock()
	if address == nil {
		return nil, nil
	}
	clone := *address
	return &clone, nil
}

// Save upserts an address.
func (r *AddressRepository) Save(ctx context.Context, address *addresses.SavedAddress) error {
	_ = ctx
	if address == nil {
		return addresses.ErrNotFound
	}
	if err := address.Validate(); err != nil {
		return err
	}
	clone := *address
	r.mu.Lock()
	r.data[address.ID] = &clone
	r.mu.Unlock()
	return nil
}

// List returns addresses matching the owner filter.
func (r *AddressRepository) List(ctx context.Context, filter addresses.ListFilter) ([]addresses.SavedAddress, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []addresses.SavedAddress
	for _, address := range r.data {
		if filter.OrgID != "" && address.OrgID != filter.OrgID {
			continue
		}
		if filter.UserID != "" && address.UserID != filter.UserID {
			continue
		}
		result = append(result, *address)
	}
	return result, nil
}

// Delete removes an address.
func (r *AddressRepository) Delete(ctx context.Context, id string) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[id]; !ok {
		return addresses.ErrNotFound
	}
	delete(r.data, id)
	return nil
}
