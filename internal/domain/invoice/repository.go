package invoice

import (
	"context"

	"github.com/billcycle/billcycle/internal/types"
)

// Repository defines the interface for invoice persistence
type Repository interface {
	// CreateWithLineItems persists the invoice header and all line items
	// as one unit.
	CreateWithLineItems(ctx context.Context, invoice *Invoice) error
	Get(ctx context.Context, id string) (*Invoice, error)
	Update(ctx context.Context, invoice *Invoice) error
	List(ctx context.Context, filter *types.InvoiceFilter) ([]*Invoice, error)
	ExistsByNumber(ctx context.Context, number string) (bool, error)
}
