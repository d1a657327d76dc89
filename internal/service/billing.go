package service

import (
	"context"
	"sort"
	"time"

	"github.com/billcycle/billcycle/internal/api/dto"
	"github.com/billcycle/billcycle/internal/domain/dueschedule"
	"github.com/billcycle/billcycle/internal/domain/invoice"
	"github.com/billcycle/billcycle/internal/domain/openitem"
	ierr "github.com/billcycle/billcycle/internal/errors"
	"github.com/billcycle/billcycle/internal/idgen"
	"github.com/billcycle/billcycle/internal/types"
	"github.com/samber/lo"
)

// BillingService runs the billing pass that converts due periods into
// invoices and receivables. Batch runs are single-writer; concurrent runs
// must be serialized by the caller.
type BillingService interface {
	// RunBillingBatch selects all billable periods due at or before the
	// cutoff, groups them by subscription and invoices each group in its own
	// transaction. A group failure is recorded and never aborts the run.
	// Re-running with the same cutoff creates no additional invoices.
	RunBillingBatch(ctx context.Context, cutoffDate time.Time) (*dto.BatchRunResponse, error)

	// MarkOverdueOpenItems promotes unsettled receivables past their due
	// date to OVERDUE. Idempotent.
	MarkOverdueOpenItems(ctx context.Context, asOf time.Time) (*dto.OverdueSweepResponse, error)
}

type billingService struct {
	ServiceParams
	invoiceService InvoiceService
	openItemSvc    OpenItemService
}

func NewBillingService(params ServiceParams, invoiceService InvoiceService, openItemSvc OpenItemService) BillingService {
	return &billingService{
		ServiceParams:  params,
		invoiceService: invoiceService,
		openItemSvc:    openItemSvc,
	}
}

func (s *billingService) RunBillingBatch(ctx context.Context, cutoffDate time.Time) (*dto.BatchRunResponse, error) {
	cutoff := types.DateOnly(cutoffDate)
	batchID := types.GenerateUUIDWithPrefix(types.UUID_PREFIX_BATCH_RUN)
	startedAt := time.Now().UTC()

	s.Logger.Infow("starting billing batch run",
		"batch_id", batchID,
		"cutoff_date", types.FormatDate(cutoff),
	)

	due, err := s.DueScheduleRepo.ListDue(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	groups := lo.GroupBy(due, func(d *dueschedule.DueSchedule) string {
		return d.SubscriptionID
	})

	// Deterministic group order keeps runs reproducible
	subscriptionIDs := lo.Keys(groups)
	sort.Strings(subscriptionIDs)

	result := &dto.BatchRunResponse{
		BatchID:    batchID,
		CutoffDate: cutoff,
		Failures:   make([]dto.BatchRunFailure, 0),
		StartedAt:  startedAt,
	}

	for _, subscriptionID := range subscriptionIDs {
		processed, err := s.billSubscriptionGroup(ctx, batchID, subscriptionID, groups[subscriptionID], cutoff)
		if err != nil {
			s.Logger.Errorw("billing group failed",
				"batch_id", batchID,
				"subscription_id", subscriptionID,
				"error", err,
			)
			result.Failures = append(result.Failures, dto.BatchRunFailure{
				SubscriptionID: subscriptionID,
				Error:          ierr.Hint(err),
			})
			continue
		}
		if processed > 0 {
			result.InvoicesCreated++
			result.PeriodsProcessed += processed
		}
	}

	result.CompletedAt = time.Now().UTC()
	s.Logger.Infow("completed billing batch run",
		"batch_id", batchID,
		"invoices_created", result.InvoicesCreated,
		"periods_processed", result.PeriodsProcessed,
		"failures", len(result.Failures),
	)
	return result, nil
}

// billSubscriptionGroup invoices all due periods of one subscription inside
// a single transaction. Returns the number of periods processed; zero means
// every period in the group was claimed by a concurrent run.
func (s *billingService) billSubscriptionGroup(
	ctx context.Context,
	batchID string,
	subscriptionID string,
	schedules []*dueschedule.DueSchedule,
	cutoff time.Time,
) (int, error) {
	sub, err := s.SubRepo.Get(ctx, subscriptionID)
	if err != nil {
		return 0, err
	}

	processed := 0
	err = s.DB.WithTx(ctx, func(txCtx context.Context) error {
		// Re-read each schedule inside the transaction so periods invoiced
		// since the selection are dropped instead of double-billed.
		billable := make([]*dueschedule.DueSchedule, 0, len(schedules))
		for _, schedule := range schedules {
			current, err := s.DueScheduleRepo.Get(txCtx, schedule.ID)
			if err != nil {
				return err
			}
			if current.IsBillable(cutoff) {
				billable = append(billable, current)
			}
		}
		if len(billable) == 0 {
			return nil
		}

		inv, err := s.invoiceService.AssembleInvoice(txCtx, sub, billable, cutoff, types.InvoiceModeActive)
		if err != nil {
			return err
		}
		inv.BatchID = &batchID
		if err := s.InvoiceRepo.CreateWithLineItems(txCtx, inv); err != nil {
			return err
		}

		item, err := s.buildOpenItem(txCtx, inv)
		if err != nil {
			return err
		}
		if err := s.OpenItemRepo.Create(txCtx, item); err != nil {
			return err
		}

		for _, schedule := range billable {
			if err := schedule.ScheduleStatus.CanTransitionTo(types.DueScheduleStatusCompleted); err != nil {
				return err
			}
			schedule.ScheduleStatus = types.DueScheduleStatusCompleted
			schedule.Processed = true
			schedule.InvoiceID = &inv.ID
			schedule.UpdatedAt = time.Now().UTC()
			schedule.UpdatedBy = types.GetUserID(txCtx)
			if err := s.DueScheduleRepo.Update(txCtx, schedule); err != nil {
				return err
			}
		}

		processed = len(billable)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return processed, nil
}

// buildOpenItem derives the receivable from a freshly posted invoice.
func (s *billingService) buildOpenItem(ctx context.Context, inv *invoice.Invoice) (*openitem.OpenItem, error) {
	number, err := s.IDGen.Generate(ctx, idgen.KindOpenItem)
	if err != nil {
		return nil, err
	}

	item := &openitem.OpenItem{
		ID:         types.GenerateUUIDWithPrefix(types.UUID_PREFIX_OPEN_ITEM),
		ItemNumber: number,
		InvoiceID:  inv.ID,
		CustomerID: inv.CustomerID,
		Amount:     inv.Total,
		DueDate:    inv.DueDate,
		ItemStatus: types.OpenItemStatusOpen,
		BaseModel:  types.GetDefaultBaseModel(ctx),
	}
	if err := item.Validate(); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *billingService) MarkOverdueOpenItems(ctx context.Context, asOf time.Time) (*dto.OverdueSweepResponse, error) {
	return s.openItemSvc.MarkOverdue(ctx, asOf)
}
