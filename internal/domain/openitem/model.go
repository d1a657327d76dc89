package openitem

import (
	"time"

	ierr "github.com/billcycle/billcycle/internal/errors"
	"github.com/billcycle/billcycle/internal/types"
	"github.com/shopspring/decimal"
)

// OpenItem is a receivable tracking the amount owed and paid against one
// invoice. Its payment fields are mutated only by the receivables ledger.
type OpenItem struct {
	ID         string `db:"id" json:"id"`
	ItemNumber string `db:"item_number" json:"item_number"`
	InvoiceID  string `db:"invoice_id" json:"invoice_id"`
	CustomerID string `db:"customer_id" json:"customer_id"`

	Amount     decimal.Decimal `db:"amount" json:"amount"`
	PaidAmount decimal.Decimal `db:"paid_amount" json:"paid_amount"`
	DueDate    time.Time       `db:"due_date" json:"due_date"`

	ItemStatus types.OpenItemStatus `db:"item_status" json:"item_status"`

	ReminderCount  int        `db:"reminder_count" json:"reminder_count"`
	LastReminderAt *time.Time `db:"last_reminder_at" json:"last_reminder_at,omitempty"`

	// Metadata of the latest payment
	PaymentMethod    *types.PaymentMethod `db:"payment_method" json:"payment_method,omitempty"`
	PaymentReference *string              `db:"payment_reference" json:"payment_reference,omitempty"`

	types.BaseModel
}

// RemainingAmount returns the unpaid remainder.
func (o *OpenItem) RemainingAmount() decimal.Decimal {
	return o.Amount.Sub(o.PaidAmount)
}

// IsSettled reports whether the receivable is fully paid.
func (o *OpenItem) IsSettled() bool {
	return o.PaidAmount.Equal(o.Amount)
}

// ReminderLevel derives the dunning escalation from the reminder count,
// capped at the maximum level.
func (o *OpenItem) ReminderLevel() int {
	if o.ReminderCount > types.MaxReminderLevel {
		return types.MaxReminderLevel
	}
	return o.ReminderCount
}

// RecomputePaymentStatus derives the status the item must carry for its
// current paid amount: PAID when settled, PARTIALLY_PAID when anything has
// been paid, OPEN otherwise. OVERDUE promotion is a separate hygiene sweep
// and CANCELLED is never derived here.
func (o *OpenItem) RecomputePaymentStatus() types.OpenItemStatus {
	switch {
	case o.IsSettled():
		return types.OpenItemStatusPaid
	case o.PaidAmount.IsPositive():
		return types.OpenItemStatusPartiallyPaid
	default:
		return types.OpenItemStatusOpen
	}
}

// IsPastDue reports whether the due date has passed as of the given time.
func (o *OpenItem) IsPastDue(asOf time.Time) bool {
	return o.DueDate.Before(asOf)
}

func (o *OpenItem) Validate() error {
	if o.InvoiceID == "" {
		return ierr.NewError("invoice_id is required").
			WithHint("Open item must reference an invoice").
			Mark(ierr.ErrValidation)
	}
	if o.Amount.IsNegative() {
		return ierr.NewError("amount must be non negative").
			WithHint("Open item amount cannot be negative").
			Mark(ierr.ErrValidation)
	}
	if o.PaidAmount.IsNegative() {
		return ierr.NewError("paid_amount must be non negative").
			WithHint("Open item paid amount cannot be negative").
			Mark(ierr.ErrValidation)
	}
	if o.PaidAmount.GreaterThan(o.Amount) {
		return ierr.NewError("paid_amount exceeds amount").
			WithHint("Open item paid amount cannot exceed the amount owed").
			Mark(ierr.ErrValidation)
	}
	if o.DueDate.IsZero() {
		return ierr.NewError("due_date is required").
			WithHint("Open item must have a due date").
			Mark(ierr.ErrValidation)
	}
	return o.ItemStatus.Validate()
}
