package testutil

import (
	"context"
	"time"

	"github.com/billcycle/billcycle/internal/domain/dueschedule"
	"github.com/billcycle/billcycle/internal/types"
	"github.com/samber/lo"
)

// InMemoryDueScheduleStore implements dueschedule.Repository
type InMemoryDueScheduleStore struct {
	*InMemoryStore[*dueschedule.DueSchedule]
}

// NewInMemoryDueScheduleStore creates a new in-memory due schedule store
func NewInMemoryDueScheduleStore() *InMemoryDueScheduleStore {
	return &InMemoryDueScheduleStore{
		InMemoryStore: NewInMemoryStore[*dueschedule.DueSchedule](),
	}
}

func copyDueSchedule(d *dueschedule.DueSchedule) *dueschedule.DueSchedule {
	if d == nil {
		return nil
	}
	copied := *d
	if d.InvoiceID != nil {
		invoiceID := *d.InvoiceID
		copied.InvoiceID = &invoiceID
	}
	return &copied
}

func (s *InMemoryDueScheduleStore) Create(ctx context.Context, schedule *dueschedule.DueSchedule) error {
	return s.InMemoryStore.Create(ctx, schedule.ID, copyDueSchedule(schedule))
}

func (s *InMemoryDueScheduleStore) CreateBulk(ctx context.Context, schedules []*dueschedule.DueSchedule) error {
	for _, schedule := range schedules {
		if err := s.Create(ctx, schedule); err != nil {
			return err
		}
	}
	return nil
}

func (s *InMemoryDueScheduleStore) Get(ctx context.Context, id string) (*dueschedule.DueSchedule, error) {
	schedule, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return copyDueSchedule(schedule), nil
}

func (s *InMemoryDueScheduleStore) Update(ctx context.Context, schedule *dueschedule.DueSchedule) error {
	return s.InMemoryStore.Update(ctx, schedule.ID, copyDueSchedule(schedule))
}

func (s *InMemoryDueScheduleStore) Delete(ctx context.Context, id string) error {
	return s.InMemoryStore.Delete(ctx, id)
}

func (s *InMemoryDueScheduleStore) List(ctx context.Context, filter *types.DueScheduleFilter) ([]*dueschedule.DueSchedule, error) {
	items, err := s.InMemoryStore.List(ctx, filter, dueScheduleFilterFn, dueScheduleSortFn)
	if err != nil {
		return nil, err
	}
	return lo.Map(items, func(d *dueschedule.DueSchedule, _ int) *dueschedule.DueSchedule {
		return copyDueSchedule(d)
	}), nil
}

func (s *InMemoryDueScheduleStore) ListBySubscription(ctx context.Context, subscriptionID string) ([]*dueschedule.DueSchedule, error) {
	return s.List(ctx, &types.DueScheduleFilter{SubscriptionID: subscriptionID})
}

func (s *InMemoryDueScheduleStore) ListDue(ctx context.Context, cutoff time.Time) ([]*dueschedule.DueSchedule, error) {
	return s.List(ctx, &types.DueScheduleFilter{
		Statuses:    []types.DueScheduleStatus{types.DueScheduleStatusActive},
		DueBefore:   &cutoff,
		Unprocessed: true,
	})
}

func (s *InMemoryDueScheduleStore) ExistsByNumber(ctx context.Context, number string) (bool, error) {
	return s.InMemoryStore.Exists(ctx, func(d *dueschedule.DueSchedule) bool {
		return d.ScheduleNumber == number
	}), nil
}

func dueScheduleFilterFn(_ context.Context, d *dueschedule.DueSchedule, filter interface{}) bool {
	f, ok := filter.(*types.DueScheduleFilter)
	if !ok || f == nil {
		return true
	}
	if f.SubscriptionID != "" && d.SubscriptionID != f.SubscriptionID {
		return false
	}
	if len(f.Statuses) > 0 && !lo.Contains(f.Statuses, d.ScheduleStatus) {
		return false
	}
	if f.DueBefore != nil && d.DueDate.After(*f.DueBefore) {
		return false
	}
	if f.Unprocessed && d.Processed {
		return false
	}
	return true
}

func dueScheduleSortFn(i, j *dueschedule.DueSchedule) bool {
	if i.SubscriptionID != j.SubscriptionID {
		return i.SubscriptionID < j.SubscriptionID
	}
	return i.PeriodStart.Before(j.PeriodStart)
}
