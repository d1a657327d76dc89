package dueschedule

import (
	"context"
	"time"

	"github.com/billcycle/billcycle/internal/types"
)

// Repository defines the interface for due schedule persistence
type Repository interface {
	Create(ctx context.Context, schedule *DueSchedule) error
	CreateBulk(ctx context.Context, schedules []*DueSchedule) error
	Get(ctx context.Context, id string) (*DueSchedule, error)
	Update(ctx context.Context, schedule *DueSchedule) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter *types.DueScheduleFilter) ([]*DueSchedule, error)
	ListBySubscription(ctx context.Context, subscriptionID string) ([]*DueSchedule, error)
	// ListDue returns ACTIVE, unprocessed schedules with due date at or
	// before the cutoff, ordered by subscription and period start.
	ListDue(ctx context.Context, cutoff time.Time) ([]*DueSchedule, error)
	ExistsByNumber(ctx context.Context, number string) (bool, error)
}
