package memory

import (
	"context"
	"sync"

	orders "cargotrack-cloud/internal/orders/domain"
)

// OrderRepository is an in-memory repository for orders.
type OrderRepository struct {
	mu   sync.RWMutex
	data map[string]*orders.Order
}

// NewOrderRepository constructs a repository.
func NewOrderRepository() *OrderRepository {
	return &OrderRepository{data: make(map[string]*orders.Order)}
}

// Get loads an order by id.
func (r *OrderRepository) Get(ctx context.Context, id string) (*orders.Order, error) {
	_ = ctx
	r.mu.RLock()
	order := r.data[id]
	r.mu.RUnlock()
	if order == nil {
		return nil, nil
	}
	clone := *order
	return &clone, nil
}

// Save upserts an order.
func (r *OrderRepository) Save(ctx context.Context, order *orders.Order) error {
	_ = ctx
	if order == nil {
		return orders.ErrNotFound
	}
	if err := order.Validate(); err != nil {
		return err
	}
	clone := *order
	r.mu.Lock()
	r.data[order.ID] = &clone
	r.mu.Unlock()
	return nil
}
