package openitem

import (
	"context"
	"time"

	"github.com/billcycle/billcycle/internal/types"
)

// Repository defines the interface for open item persistence
type Repository interface {
	Create(ctx context.Context, item *OpenItem) error
	Get(ctx context.Context, id string) (*OpenItem, error)
	Update(ctx context.Context, item *OpenItem) error
	List(ctx context.Context, filter *types.OpenItemFilter) ([]*OpenItem, error)
	ListByInvoice(ctx context.Context, invoiceID string) ([]*OpenItem, error)
	// ListDueBefore returns unsettled items whose due date is strictly
	// before the given time.
	ListDueBefore(ctx context.Context, asOf time.Time) ([]*OpenItem, error)
	ExistsByNumber(ctx context.Context, number string) (bool, error)
}
