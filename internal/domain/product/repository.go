package product

import (
	"context"
)

// Repository defines the interface for product persistence
type Repository interface {
	Create(ctx context.Context, product *Product) error
	Get(ctx context.Context, id string) (*Product, error)
	Update(ctx context.Context, product *Product) error
	List(ctx context.Context) ([]*Product, error)
}
