package service

import (
	"context"
	"time"

	"github.com/billcycle/billcycle/internal/api/dto"
	"github.com/billcycle/billcycle/internal/domain/openitem"
	ierr "github.com/billcycle/billcycle/internal/errors"
	"github.com/billcycle/billcycle/internal/types"
	"github.com/shopspring/decimal"
)

// OpenItemService is the receivables ledger. It is the only writer of open
// item payment fields; paid amounts are monotone under payment recording and
// never exceed the amount owed.
type OpenItemService interface {
	// RecordPayment adds an incoming payment and recomputes the item status
	RecordPayment(ctx context.Context, id string, req dto.RecordPaymentRequest) (*dto.OpenItemResponse, error)

	// ReversePayment backs a payment out, floored at zero paid
	ReversePayment(ctx context.Context, id string, req dto.ReversePaymentRequest) (*dto.OpenItemResponse, error)

	// CancelOpenItem writes a receivable off. Only legal while nothing has
	// been paid.
	CancelOpenItem(ctx context.Context, id string) (*dto.OpenItemResponse, error)

	// MarkOverdue promotes unsettled items past their due date to OVERDUE
	MarkOverdue(ctx context.Context, asOf time.Time) (*dto.OverdueSweepResponse, error)

	// AddReminder records a dunning reminder on an item past its due date
	AddReminder(ctx context.Context, id string) (*dto.OpenItemResponse, error)

	// GetOpenItem returns a single receivable
	GetOpenItem(ctx context.Context, id string) (*dto.OpenItemResponse, error)

	// ListOpenItems returns receivables matching the filter
	ListOpenItems(ctx context.Context, filter *types.OpenItemFilter) (*dto.ListOpenItemsResponse, error)
}

type openItemService struct {
	ServiceParams
}

func NewOpenItemService(params ServiceParams) OpenItemService {
	return &openItemService{
		ServiceParams: params,
	}
}

func (s *openItemService) RecordPayment(ctx context.Context, id string, req dto.RecordPaymentRequest) (*dto.OpenItemResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var item *openitem.OpenItem
	err := s.DB.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		item, err = s.OpenItemRepo.Get(txCtx, id)
		if err != nil {
			return err
		}
		if item.ItemStatus == types.OpenItemStatusCancelled {
			return ierr.NewError("open item cancelled").
				WithHintf("Open item %s is cancelled and accepts no payments", item.ItemNumber).
				Mark(ierr.ErrInvalidOperation)
		}
		if req.Amount.GreaterThan(item.RemainingAmount()) {
			return ierr.NewError("overpayment").
				WithHintf("Payment of %s exceeds the remaining %s on open item %s",
					req.Amount.String(), item.RemainingAmount().String(), item.ItemNumber).
				WithReportableDetails(map[string]any{
					"open_item_id": item.ID,
					"amount":       req.Amount,
					"remaining":    item.RemainingAmount(),
				}).
				Mark(ierr.ErrValidation)
		}

		target := previewPaymentStatus(item, item.PaidAmount.Add(req.Amount))
		if target != item.ItemStatus {
			if err := item.ItemStatus.CanTransitionTo(target); err != nil {
				return err
			}
		}

		item.PaidAmount = item.PaidAmount.Add(req.Amount)
		item.ItemStatus = target
		method := req.Method
		item.PaymentMethod = &method
		if req.Reference != "" {
			ref := req.Reference
			item.PaymentReference = &ref
		}
		item.UpdatedAt = time.Now().UTC()
		item.UpdatedBy = types.GetUserID(txCtx)
		return s.OpenItemRepo.Update(txCtx, item)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("recorded payment",
		"open_item_id", item.ID,
		"amount", req.Amount,
		"paid_amount", item.PaidAmount,
		"status", item.ItemStatus,
	)
	return &dto.OpenItemResponse{OpenItem: item}, nil
}

func (s *openItemService) ReversePayment(ctx context.Context, id string, req dto.ReversePaymentRequest) (*dto.OpenItemResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var item *openitem.OpenItem
	err := s.DB.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		item, err = s.OpenItemRepo.Get(txCtx, id)
		if err != nil {
			return err
		}
		if item.ItemStatus == types.OpenItemStatusCancelled {
			return ierr.NewError("open item cancelled").
				WithHintf("Open item %s is cancelled and has no payments to reverse", item.ItemNumber).
				Mark(ierr.ErrInvalidOperation)
		}

		// Floor at zero
		newPaid := item.PaidAmount.Sub(req.Amount)
		if newPaid.IsNegative() {
			newPaid = decimal.Zero
		}

		target := previewPaymentStatus(item, newPaid)
		if target != item.ItemStatus {
			if err := item.ItemStatus.CanTransitionTo(target); err != nil {
				return err
			}
		}

		item.PaidAmount = newPaid
		item.ItemStatus = target
		item.UpdatedAt = time.Now().UTC()
		item.UpdatedBy = types.GetUserID(txCtx)
		return s.OpenItemRepo.Update(txCtx, item)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("reversed payment",
		"open_item_id", item.ID,
		"amount", req.Amount,
		"paid_amount", item.PaidAmount,
		"status", item.ItemStatus,
	)
	return &dto.OpenItemResponse{OpenItem: item}, nil
}

func (s *openItemService) CancelOpenItem(ctx context.Context, id string) (*dto.OpenItemResponse, error) {
	item, err := s.OpenItemRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.PaidAmount.IsPositive() {
		return nil, ierr.NewError("open item has payments").
			WithHintf("Open item %s carries a paid amount of %s and cannot be cancelled",
				item.ItemNumber, item.PaidAmount.String()).
			Mark(ierr.ErrInvalidOperation)
	}
	if err := item.ItemStatus.CanTransitionTo(types.OpenItemStatusCancelled); err != nil {
		return nil, err
	}

	item.ItemStatus = types.OpenItemStatusCancelled
	item.UpdatedAt = time.Now().UTC()
	item.UpdatedBy = types.GetUserID(ctx)
	if err := s.OpenItemRepo.Update(ctx, item); err != nil {
		return nil, err
	}
	return &dto.OpenItemResponse{OpenItem: item}, nil
}

func (s *openItemService) MarkOverdue(ctx context.Context, asOf time.Time) (*dto.OverdueSweepResponse, error) {
	items, err := s.OpenItemRepo.ListDueBefore(ctx, asOf)
	if err != nil {
		return nil, err
	}

	marked := 0
	err = s.DB.WithTx(ctx, func(txCtx context.Context) error {
		for _, item := range items {
			if item.ItemStatus != types.OpenItemStatusOpen && item.ItemStatus != types.OpenItemStatusPartiallyPaid {
				continue
			}
			if !item.IsPastDue(asOf) {
				continue
			}

			item.ItemStatus = types.OpenItemStatusOverdue
			item.UpdatedAt = time.Now().UTC()
			item.UpdatedBy = types.GetUserID(txCtx)
			if err := s.OpenItemRepo.Update(txCtx, item); err != nil {
				return err
			}
			marked++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if marked > 0 {
		s.Logger.Infow("marked open items overdue",
			"items_marked", marked,
			"as_of", asOf,
		)
	}
	return &dto.OverdueSweepResponse{ItemsMarked: marked, AsOf: asOf}, nil
}

func (s *openItemService) AddReminder(ctx context.Context, id string) (*dto.OpenItemResponse, error) {
	item, err := s.OpenItemRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !item.ItemStatus.IsRemindable() {
		return nil, ierr.NewError("open item not remindable").
			WithHintf("Open item %s in status %s cannot receive reminders", item.ItemNumber, item.ItemStatus).
			Mark(ierr.ErrInvalidOperation)
	}
	now := time.Now().UTC()
	if !item.IsPastDue(now) {
		return nil, ierr.NewError("open item not yet due").
			WithHintf("Open item %s is due %s and cannot be reminded before that",
				item.ItemNumber, types.FormatDate(item.DueDate)).
			Mark(ierr.ErrInvalidOperation)
	}

	item.ReminderCount++
	item.LastReminderAt = &now
	item.UpdatedAt = now
	item.UpdatedBy = types.GetUserID(ctx)
	if err := s.OpenItemRepo.Update(ctx, item); err != nil {
		return nil, err
	}

	s.Logger.Infow("added payment reminder",
		"open_item_id", item.ID,
		"reminder_count", item.ReminderCount,
		"reminder_level", item.ReminderLevel(),
	)
	return &dto.OpenItemResponse{OpenItem: item}, nil
}

func (s *openItemService) GetOpenItem(ctx context.Context, id string) (*dto.OpenItemResponse, error) {
	item, err := s.OpenItemRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &dto.OpenItemResponse{OpenItem: item}, nil
}

func (s *openItemService) ListOpenItems(ctx context.Context, filter *types.OpenItemFilter) (*dto.ListOpenItemsResponse, error) {
	items, err := s.OpenItemRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	resp := &dto.ListOpenItemsResponse{
		Items: make([]*dto.OpenItemResponse, 0, len(items)),
		Total: len(items),
	}
	for _, item := range items {
		resp.Items = append(resp.Items, &dto.OpenItemResponse{OpenItem: item})
	}
	return resp, nil
}

// previewPaymentStatus derives the status an item would carry at the given
// paid amount. An OVERDUE item that remains unsettled stays OVERDUE; only a
// full settlement or a reversal to a lower paid amount moves it.
func previewPaymentStatus(item *openitem.OpenItem, newPaid decimal.Decimal) types.OpenItemStatus {
	preview := *item
	preview.PaidAmount = newPaid
	target := preview.RecomputePaymentStatus()
	if item.ItemStatus == types.OpenItemStatusOverdue && target != types.OpenItemStatusPaid {
		return types.OpenItemStatusOverdue
	}
	return target
}
