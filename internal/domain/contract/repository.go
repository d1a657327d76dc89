package contract

import (
	"context"
)

// Repository defines the interface for contract persistence
type Repository interface {
	Create(ctx context.Context, contract *Contract) error
	Get(ctx context.Context, id string) (*Contract, error)
	ExistsByNumber(ctx context.Context, number string) (bool, error)
}
