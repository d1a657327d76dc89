package testutil

import (
	"context"
	"time"

	"github.com/billcycle/billcycle/internal/domain/openitem"
	"github.com/billcycle/billcycle/internal/types"
	"github.com/samber/lo"
)

// InMemoryOpenItemStore implements openitem.Repository
type InMemoryOpenItemStore struct {
	*InMemoryStore[*openitem.OpenItem]
}

// NewInMemoryOpenItemStore creates a new in-memory open item store
func NewInMemoryOpenItemStore() *InMemoryOpenItemStore {
	return &InMemoryOpenItemStore{
		InMemoryStore: NewInMemoryStore[*openitem.OpenItem](),
	}
}

func copyOpenItem(item *openitem.OpenItem) *openitem.OpenItem {
	if item == nil {
		return nil
	}
	copied := *item
	if item.LastReminderAt != nil {
		at := *item.LastReminderAt
		copied.LastReminderAt = &at
	}
	if item.PaymentMethod != nil {
		method := *item.PaymentMethod
		copied.PaymentMethod = &method
	}
	if item.PaymentReference != nil {
		ref := *item.PaymentReference
		copied.PaymentReference = &ref
	}
	return &copied
}

func (s *InMemoryOpenItemStore) Create(ctx context.Context, item *openitem.OpenItem) error {
	return s.InMemoryStore.Create(ctx, item.ID, copyOpenItem(item))
}

func (s *InMemoryOpenItemStore) Get(ctx context.Context, id string) (*openitem.OpenItem, error) {
	item, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return copyOpenItem(item), nil
}

func (s *InMemoryOpenItemStore) Update(ctx context.Context, item *openitem.OpenItem) error {
	return s.InMemoryStore.Update(ctx, item.ID, copyOpenItem(item))
}

func (s *InMemoryOpenItemStore) List(ctx context.Context, filter *types.OpenItemFilter) ([]*openitem.OpenItem, error) {
	items, err := s.InMemoryStore.List(ctx, filter, openItemFilterFn, openItemSortFn)
	if err != nil {
		return nil, err
	}
	return lo.Map(items, func(item *openitem.OpenItem, _ int) *openitem.OpenItem {
		return copyOpenItem(item)
	}), nil
}

func (s *InMemoryOpenItemStore) ListByInvoice(ctx context.Context, invoiceID string) ([]*openitem.OpenItem, error) {
	return s.List(ctx, &types.OpenItemFilter{InvoiceID: invoiceID})
}

func (s *InMemoryOpenItemStore) ListDueBefore(ctx context.Context, asOf time.Time) ([]*openitem.OpenItem, error) {
	return s.List(ctx, &types.OpenItemFilter{
		Statuses: []types.OpenItemStatus{
			types.OpenItemStatusOpen,
			types.OpenItemStatusPartiallyPaid,
		},
		DueBefore: &asOf,
	})
}

func (s *InMemoryOpenItemStore) ExistsByNumber(ctx context.Context, number string) (bool, error) {
	return s.InMemoryStore.Exists(ctx, func(item *openitem.OpenItem) bool {
		return item.ItemNumber == number
	}), nil
}

func openItemFilterFn(_ context.Context, item *openitem.OpenItem, filter interface{}) bool {
	f, ok := filter.(*types.OpenItemFilter)
	if !ok || f == nil {
		return true
	}
	if f.InvoiceID != "" && item.InvoiceID != f.InvoiceID {
		return false
	}
	if f.CustomerID != "" && item.CustomerID != f.CustomerID {
		return false
	}
	if len(f.Statuses) > 0 && !lo.Contains(f.Statuses, item.ItemStatus) {
		return false
	}
	if f.DueBefore != nil && !item.DueDate.Before(*f.DueBefore) {
		return false
	}
	return true
}

func openItemSortFn(i, j *openitem.OpenItem) bool {
	if !i.DueDate.Equal(j.DueDate) {
		return i.DueDate.Before(j.DueDate)
	}
	return i.ItemNumber < j.ItemNumber
}
