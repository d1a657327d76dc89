package invoice

import (
	"time"

	"github.com/billcycle/billcycle/internal/domain/customer"
	ierr "github.com/billcycle/billcycle/internal/errors"
	"github.com/billcycle/billcycle/internal/types"
	"github.com/shopspring/decimal"
)

// Invoice represents the invoice domain model. Invoices are created
// exclusively by the assembler; totals are always derived from the line
// items and never hand-set.
type Invoice struct {
	ID             string  `db:"id" json:"id"`
	InvoiceNumber  string  `db:"invoice_number" json:"invoice_number"`
	CustomerID     string  `db:"customer_id" json:"customer_id"`
	SubscriptionID string  `db:"subscription_id" json:"subscription_id"`
	BatchID        *string `db:"batch_id" json:"batch_id,omitempty"`

	InvoiceStatus types.InvoiceStatus `db:"invoice_status" json:"invoice_status"`
	InvoiceDate   time.Time           `db:"invoice_date" json:"invoice_date"`
	DueDate       time.Time           `db:"due_date" json:"due_date"`

	// BillingAddress is snapshotted from the customer at assembly time.
	BillingAddress customer.Address `json:"billing_address"`

	Subtotal  decimal.Decimal `db:"subtotal" json:"subtotal"`
	TaxAmount decimal.Decimal `db:"tax_amount" json:"tax_amount"`
	Total     decimal.Decimal `db:"total" json:"total"`

	LineItems []*LineItem `json:"line_items,omitempty"`

	types.BaseModel
}

// LineItem is a single position on an invoice covering one billing period.
type LineItem struct {
	ID          string          `db:"id" json:"id"`
	InvoiceID   string          `db:"invoice_id" json:"invoice_id"`
	Description string          `db:"description" json:"description"`
	Quantity    decimal.Decimal `db:"quantity" json:"quantity"`
	UnitPrice   decimal.Decimal `db:"unit_price" json:"unit_price"`
	TaxRate     decimal.Decimal `db:"tax_rate" json:"tax_rate"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	PeriodStart time.Time       `db:"period_start" json:"period_start"`
	PeriodEnd   time.Time       `db:"period_end" json:"period_end"`
	types.BaseModel
}

// CalculateTotals recomputes subtotal, tax and total from the line items.
func (i *Invoice) CalculateTotals() {
	subtotal := decimal.Zero
	tax := decimal.Zero
	for _, item := range i.LineItems {
		subtotal = subtotal.Add(item.Amount)
		tax = tax.Add(item.Amount.Mul(item.TaxRate).Div(decimal.NewFromInt(100)))
	}
	i.Subtotal = subtotal.Round(2)
	i.TaxAmount = tax.Round(2)
	i.Total = i.Subtotal.Add(i.TaxAmount)
}

// IsMutable reports whether the invoice may still be changed.
func (i *Invoice) IsMutable() bool {
	return !i.InvoiceStatus.IsTerminal()
}

func (i *Invoice) Validate() error {
	if i.CustomerID == "" {
		return ierr.NewError("customer_id is required").
			WithHint("Invoice must reference a customer").
			Mark(ierr.ErrValidation)
	}
	if i.SubscriptionID == "" {
		return ierr.NewError("subscription_id is required").
			WithHint("Invoice must reference a subscription").
			Mark(ierr.ErrValidation)
	}
	if len(i.LineItems) == 0 {
		return ierr.NewError("invoice has no line items").
			WithHint("Invoice must contain at least one line item").
			Mark(ierr.ErrValidation)
	}
	if i.Subtotal.IsNegative() || i.TaxAmount.IsNegative() || i.Total.IsNegative() {
		return ierr.NewError("invoice totals must be non negative").
			WithHint("Invoice totals cannot be negative").
			Mark(ierr.ErrValidation)
	}
	for _, item := range i.LineItems {
		if err := item.Validate(); err != nil {
			return err
		}
	}
	return i.InvoiceStatus.Validate()
}

func (li *LineItem) Validate() error {
	if li.Description == "" {
		return ierr.NewError("line item description is required").
			WithHint("Invoice line item must have a description").
			Mark(ierr.ErrValidation)
	}
	if !li.Quantity.IsPositive() {
		return ierr.NewError("line item quantity must be positive").
			WithHint("Invoice line item quantity must be greater than zero").
			Mark(ierr.ErrValidation)
	}
	if li.UnitPrice.IsNegative() {
		return ierr.NewError("line item unit price must be non negative").
			WithHint("Invoice line item unit price cannot be negative").
			Mark(ierr.ErrValidation)
	}
	if li.PeriodEnd.Before(li.PeriodStart) {
		return ierr.NewError("line item period end before period start").
			WithHint("Invoice line item period end cannot precede its start").
			Mark(ierr.ErrValidation)
	}
	return nil
}
