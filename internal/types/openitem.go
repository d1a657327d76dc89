package types

import (
	"time"

	ierr "github.com/billcycle/billcycle/internal/errors"
	"github.com/samber/lo"
)

// OpenItemStatus is the status of a receivable
type OpenItemStatus string

const (
	// OpenItemStatusOpen indicates nothing has been paid yet
	OpenItemStatusOpen OpenItemStatus = "OPEN"
	// OpenItemStatusPartiallyPaid indicates a partial payment was recorded
	OpenItemStatusPartiallyPaid OpenItemStatus = "PARTIALLY_PAID"
	// OpenItemStatusPaid indicates the receivable is fully settled; terminal
	OpenItemStatusPaid OpenItemStatus = "PAID"
	// OpenItemStatusOverdue indicates the due date passed before settlement
	OpenItemStatusOverdue OpenItemStatus = "OVERDUE"
	// OpenItemStatusCancelled indicates the receivable was written off; terminal
	OpenItemStatusCancelled OpenItemStatus = "CANCELLED"
)

func (s OpenItemStatus) String() string {
	return string(s)
}

func (s OpenItemStatus) Validate() error {
	allowed := []OpenItemStatus{
		OpenItemStatusOpen,
		OpenItemStatusPartiallyPaid,
		OpenItemStatusPaid,
		OpenItemStatusOverdue,
		OpenItemStatusCancelled,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid open item status").
			WithHint("Invalid open item status").
			WithReportableDetails(map[string]any{
				"status":         s,
				"allowed_status": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// openItemStatusTransitions is the single allowed-transition table for
// receivables. PAID appears as a source only for payment reversals, which
// move the item back toward OPEN or PARTIALLY_PAID.
var openItemStatusTransitions = map[OpenItemStatus][]OpenItemStatus{
	OpenItemStatusOpen:          {OpenItemStatusPartiallyPaid, OpenItemStatusPaid, OpenItemStatusOverdue, OpenItemStatusCancelled},
	OpenItemStatusPartiallyPaid: {OpenItemStatusPaid, OpenItemStatusOverdue, OpenItemStatusOpen},
	OpenItemStatusOverdue:       {OpenItemStatusPartiallyPaid, OpenItemStatusPaid, OpenItemStatusOpen},
	OpenItemStatusPaid:          {OpenItemStatusPartiallyPaid, OpenItemStatusOpen},
	OpenItemStatusCancelled:     {},
}

// CanTransitionTo reports whether the status may move to the target status.
func (s OpenItemStatus) CanTransitionTo(target OpenItemStatus) error {
	if lo.Contains(openItemStatusTransitions[s], target) {
		return nil
	}
	return ierr.NewError("invalid open item status transition").
		WithHintf("Cannot transition open item from %s to %s", s, target).
		WithReportableDetails(map[string]any{
			"from": s,
			"to":   target,
		}).
		Mark(ierr.ErrInvalidOperation)
}

// IsRemindable reports whether a dunning reminder may be added in this status.
func (s OpenItemStatus) IsRemindable() bool {
	return s == OpenItemStatusOpen || s == OpenItemStatusPartiallyPaid || s == OpenItemStatusOverdue
}

// PaymentMethod identifies how a payment was made
type PaymentMethod string

const (
	PaymentMethodTransfer    PaymentMethod = "transfer"
	PaymentMethodDirectDebit PaymentMethod = "direct_debit"
	PaymentMethodCard        PaymentMethod = "card"
	PaymentMethodCash        PaymentMethod = "cash"
)

func (m PaymentMethod) String() string {
	return string(m)
}

func (m PaymentMethod) Validate() error {
	allowed := []PaymentMethod{
		PaymentMethodTransfer,
		PaymentMethodDirectDebit,
		PaymentMethodCard,
		PaymentMethodCash,
	}
	if !lo.Contains(allowed, m) {
		return ierr.NewError("invalid payment method").
			WithHint("Invalid payment method").
			WithReportableDetails(map[string]any{
				"payment_method": m,
				"allowed_values": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// MaxReminderLevel caps the dunning escalation derived from the reminder count.
const MaxReminderLevel = 3

// OpenItemFilter narrows open item lookups
type OpenItemFilter struct {
	InvoiceID  string           `json:"invoice_id,omitempty"`
	CustomerID string           `json:"customer_id,omitempty"`
	Statuses   []OpenItemStatus `json:"statuses,omitempty"`
	// DueBefore selects items whose due date is strictly before the given time
	DueBefore *time.Time `json:"due_before,omitempty"`
}
