package customer

import (
	"context"
)

// Repository defines the interface for customer persistence
type Repository interface {
	Create(ctx context.Context, customer *Customer) error
	Get(ctx context.Context, id string) (*Customer, error)
	Update(ctx context.Context, customer *Customer) error
	List(ctx context.Context) ([]*Customer, error)
}
