package types

import (
	ierr "github.com/billcycle/billcycle/internal/errors"
	"github.com/samber/lo"
)

// InvoiceStatus represents the current state of an invoice in its lifecycle
type InvoiceStatus string

const (
	// InvoiceStatusDraft indicates the invoice may still be modified or deleted
	InvoiceStatusDraft InvoiceStatus = "DRAFT"
	// InvoiceStatusSent indicates the invoice was dispatched to the customer
	InvoiceStatusSent InvoiceStatus = "SENT"
	// InvoiceStatusActive indicates the invoice is finalized and ready for dispatch/payment
	InvoiceStatusActive InvoiceStatus = "ACTIVE"
	// InvoiceStatusPaid indicates all receivables of the invoice are settled; terminal
	InvoiceStatusPaid InvoiceStatus = "PAID"
	// InvoiceStatusPartiallyPaid indicates at least one partial payment was recorded
	InvoiceStatusPartiallyPaid InvoiceStatus = "PARTIALLY_PAID"
	// InvoiceStatusCancelled indicates the invoice was voided; terminal
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED"
)

func (s InvoiceStatus) String() string {
	return string(s)
}

func (s InvoiceStatus) Validate() error {
	allowed := []InvoiceStatus{
		InvoiceStatusDraft,
		InvoiceStatusSent,
		InvoiceStatusActive,
		InvoiceStatusPaid,
		InvoiceStatusPartiallyPaid,
		InvoiceStatusCancelled,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid invoice status").
			WithHint("Invalid invoice status").
			WithReportableDetails(map[string]any{
				"status":         s,
				"allowed_status": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// invoiceStatusTransitions is the single allowed-transition table for
// invoices. A PAID or CANCELLED invoice is immutable.
var invoiceStatusTransitions = map[InvoiceStatus][]InvoiceStatus{
	InvoiceStatusDraft:         {InvoiceStatusActive, InvoiceStatusSent, InvoiceStatusCancelled},
	InvoiceStatusActive:        {InvoiceStatusSent, InvoiceStatusPartiallyPaid, InvoiceStatusPaid, InvoiceStatusCancelled},
	InvoiceStatusSent:          {InvoiceStatusPartiallyPaid, InvoiceStatusPaid, InvoiceStatusCancelled},
	InvoiceStatusPartiallyPaid: {InvoiceStatusPaid},
	InvoiceStatusPaid:          {},
	InvoiceStatusCancelled:     {},
}

// CanTransitionTo reports whether the status may move to the target status.
func (s InvoiceStatus) CanTransitionTo(target InvoiceStatus) error {
	if lo.Contains(invoiceStatusTransitions[s], target) {
		return nil
	}
	return ierr.NewError("invalid invoice status transition").
		WithHintf("Cannot transition invoice from %s to %s", s, target).
		WithReportableDetails(map[string]any{
			"from": s,
			"to":   target,
		}).
		Mark(ierr.ErrInvalidOperation)
}

// IsTerminal reports whether the invoice may no longer be mutated.
func (s InvoiceStatus) IsTerminal() bool {
	return s == InvoiceStatusPaid || s == InvoiceStatusCancelled
}

// InvoiceMode determines the status an assembled invoice starts in
type InvoiceMode string

const (
	// InvoiceModeActive produces an invoice ready for dispatch
	InvoiceModeActive InvoiceMode = "active"
	// InvoiceModeDraft produces a draft invoice for review
	InvoiceModeDraft InvoiceMode = "draft"
)

func (m InvoiceMode) Validate() error {
	allowed := []InvoiceMode{InvoiceModeActive, InvoiceModeDraft}
	if !lo.Contains(allowed, m) {
		return ierr.NewError("invalid invoice mode").
			WithHint("Invalid invoice mode").
			WithReportableDetails(map[string]any{
				"mode":           m,
				"allowed_values": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// InitialStatus maps the assembly mode onto the invoice's starting status.
func (m InvoiceMode) InitialStatus() InvoiceStatus {
	if m == InvoiceModeDraft {
		return InvoiceStatusDraft
	}
	return InvoiceStatusActive
}

// InvoiceFilter narrows invoice lookups
type InvoiceFilter struct {
	CustomerID     string          `json:"customer_id,omitempty"`
	SubscriptionID string          `json:"subscription_id,omitempty"`
	BatchID        string          `json:"batch_id,omitempty"`
	InvoiceStatus  []InvoiceStatus `json:"invoice_status,omitempty"`
}
