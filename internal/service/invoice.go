package service

import (
	"context"
	"fmt"
	"time"

	"github.com/billcycle/billcycle/internal/api/dto"
	"github.com/billcycle/billcycle/internal/domain/dueschedule"
	"github.com/billcycle/billcycle/internal/domain/invoice"
	"github.com/billcycle/billcycle/internal/domain/subscription"
	ierr "github.com/billcycle/billcycle/internal/errors"
	"github.com/billcycle/billcycle/internal/idgen"
	"github.com/billcycle/billcycle/internal/types"
	"github.com/shopspring/decimal"
)

// InvoiceService assembles invoices from due billing periods and manages
// their lifecycle. Invoices are created here and nowhere else; totals are
// always derived from the line items.
type InvoiceService interface {
	// AssembleInvoice builds an unsaved invoice covering the given periods
	// of one subscription. Unit price comes from the subscription when it
	// carries one, else from the linked product; with neither the assembly
	// fails with a price resolution error.
	AssembleInvoice(ctx context.Context, sub *subscription.Subscription, schedules []*dueschedule.DueSchedule, billingDate time.Time, mode types.InvoiceMode) (*invoice.Invoice, error)

	// FinalizeInvoice moves a draft invoice into ACTIVE
	FinalizeInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error)

	// CancelInvoice voids an invoice and its receivables. Rejected once any
	// payment has been recorded against the invoice.
	CancelInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error)

	// GetInvoice returns a single invoice with its line items
	GetInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error)

	// ListInvoices returns invoices matching the filter
	ListInvoices(ctx context.Context, filter *types.InvoiceFilter) (*dto.ListInvoicesResponse, error)
}

type invoiceService struct {
	ServiceParams
}

func NewInvoiceService(params ServiceParams) InvoiceService {
	return &invoiceService{
		ServiceParams: params,
	}
}

func (s *invoiceService) AssembleInvoice(
	ctx context.Context,
	sub *subscription.Subscription,
	schedules []*dueschedule.DueSchedule,
	billingDate time.Time,
	mode types.InvoiceMode,
) (*invoice.Invoice, error) {
	if len(schedules) == 0 {
		return nil, ierr.NewError("no billing periods to invoice").
			WithHint("Invoice assembly requires at least one billing period").
			Mark(ierr.ErrValidation)
	}
	if err := mode.Validate(); err != nil {
		return nil, err
	}

	cust, err := s.CustomerRepo.Get(ctx, sub.CustomerID)
	if err != nil {
		return nil, err
	}

	unitPrice, itemName, err := s.resolvePrice(ctx, sub)
	if err != nil {
		return nil, err
	}

	number, err := s.IDGen.Generate(ctx, idgen.KindInvoice)
	if err != nil {
		return nil, err
	}

	inv := &invoice.Invoice{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE),
		InvoiceNumber:  number,
		CustomerID:     sub.CustomerID,
		SubscriptionID: sub.ID,
		InvoiceStatus:  mode.InitialStatus(),
		InvoiceDate:    types.DateOnly(billingDate),
		DueDate:        types.DateOnly(billingDate).AddDate(0, 0, s.Config.Billing.GraceDays),
		BillingAddress: cust.Address,
		BaseModel:      types.GetDefaultBaseModel(ctx),
	}

	taxRate := s.Config.Billing.TaxRate()
	for _, schedule := range schedules {
		item := &invoice.LineItem{
			ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE_LINE_ITEM),
			InvoiceID:   inv.ID,
			Description: lineDescription(itemName, schedule, billingDate),
			Quantity:    decimal.NewFromInt(1),
			UnitPrice:   unitPrice,
			TaxRate:     taxRate,
			Amount:      unitPrice,
			PeriodStart: schedule.PeriodStart,
			PeriodEnd:   schedule.PeriodEnd,
			BaseModel:   types.GetDefaultBaseModel(ctx),
		}
		inv.LineItems = append(inv.LineItems, item)
	}

	inv.CalculateTotals()
	if err := inv.Validate(); err != nil {
		return nil, err
	}
	return inv, nil
}

// resolvePrice returns the unit price and the display name for line items.
// The subscription's own price wins; a subscription without one falls back to
// the product price.
func (s *invoiceService) resolvePrice(ctx context.Context, sub *subscription.Subscription) (decimal.Decimal, string, error) {
	if sub.HasOwnPrice() {
		name := sub.Name
		if name == "" {
			prod, err := s.ProductRepo.Get(ctx, sub.ProductID)
			if err != nil {
				return decimal.Zero, "", err
			}
			name = prod.Name
		}
		return sub.Price, name, nil
	}

	prod, err := s.ProductRepo.Get(ctx, sub.ProductID)
	if err != nil {
		return decimal.Zero, "", err
	}
	if !prod.HasUsablePrice() {
		return decimal.Zero, "", ierr.NewError("no usable price").
			WithHintf("Neither subscription %s nor product %s carries a positive price", sub.ID, prod.ID).
			WithReportableDetails(map[string]any{
				"subscription_id": sub.ID,
				"product_id":      prod.ID,
			}).
			Mark(ierr.ErrPriceResolution)
	}
	return prod.Price, prod.Name, nil
}

// lineDescription embeds the item name and the period range. Periods past
// due at billing time are flagged in the text only; the flag never changes
// totals.
func lineDescription(name string, schedule *dueschedule.DueSchedule, billingDate time.Time) string {
	desc := fmt.Sprintf("%s (%s - %s)",
		name,
		types.FormatDate(schedule.PeriodStart),
		types.FormatDate(schedule.PeriodEnd),
	)
	if schedule.DueDate.Before(types.DateOnly(billingDate)) {
		desc += " [overdue]"
	}
	return desc
}

func (s *invoiceService) FinalizeInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error) {
	inv, err := s.InvoiceRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := inv.InvoiceStatus.CanTransitionTo(types.InvoiceStatusActive); err != nil {
		return nil, err
	}

	inv.InvoiceStatus = types.InvoiceStatusActive
	inv.UpdatedAt = time.Now().UTC()
	inv.UpdatedBy = types.GetUserID(ctx)
	if err := s.InvoiceRepo.Update(ctx, inv); err != nil {
		return nil, err
	}
	return &dto.InvoiceResponse{Invoice: inv}, nil
}

func (s *invoiceService) CancelInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error) {
	inv, err := s.InvoiceRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := inv.InvoiceStatus.CanTransitionTo(types.InvoiceStatusCancelled); err != nil {
		return nil, err
	}

	items, err := s.OpenItemRepo.ListByInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if item.PaidAmount.IsPositive() {
			return nil, ierr.NewError("invoice has recorded payments").
				WithHintf("Invoice %s cannot be cancelled, open item %s carries payments", inv.InvoiceNumber, item.ItemNumber).
				WithReportableDetails(map[string]any{
					"invoice_id":   inv.ID,
					"open_item_id": item.ID,
					"paid_amount":  item.PaidAmount,
				}).
				Mark(ierr.ErrInvalidOperation)
		}
	}

	err = s.DB.WithTx(ctx, func(txCtx context.Context) error {
		for _, item := range items {
			if item.ItemStatus == types.OpenItemStatusCancelled {
				continue
			}
			if err := item.ItemStatus.CanTransitionTo(types.OpenItemStatusCancelled); err != nil {
				return err
			}
			item.ItemStatus = types.OpenItemStatusCancelled
			item.UpdatedAt = time.Now().UTC()
			item.UpdatedBy = types.GetUserID(txCtx)
			if err := s.OpenItemRepo.Update(txCtx, item); err != nil {
				return err
			}
		}

		inv.InvoiceStatus = types.InvoiceStatusCancelled
		inv.UpdatedAt = time.Now().UTC()
		inv.UpdatedBy = types.GetUserID(txCtx)
		return s.InvoiceRepo.Update(txCtx, inv)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("cancelled invoice",
		"invoice_id", inv.ID,
		"invoice_number", inv.InvoiceNumber,
		"open_items_cancelled", len(items),
	)
	return &dto.InvoiceResponse{Invoice: inv}, nil
}

func (s *invoiceService) GetInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error) {
	inv, err := s.InvoiceRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &dto.InvoiceResponse{Invoice: inv}, nil
}

func (s *invoiceService) ListInvoices(ctx context.Context, filter *types.InvoiceFilter) (*dto.ListInvoicesResponse, error) {
	invoices, err := s.InvoiceRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	resp := &dto.ListInvoicesResponse{
		Items: make([]*dto.InvoiceResponse, 0, len(invoices)),
		Total: len(invoices),
	}
	for _, inv := range invoices {
		resp.Items = append(resp.Items, &dto.InvoiceResponse{Invoice: inv})
	}
	return resp, nil
}
