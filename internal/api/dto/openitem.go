package dto

import (
	"github.com/billcycle/billcycle/internal/domain/openitem"
	ierr "github.com/billcycle/billcycle/internal/errors"
	"github.com/billcycle/billcycle/internal/types"
	"github.com/shopspring/decimal"
)

// RecordPaymentRequest records an incoming payment against an open item.
type RecordPaymentRequest struct {
	Amount    decimal.Decimal     `json:"amount" validate:"required"`
	Method    types.PaymentMethod `json:"method" validate:"required"`
	Reference string              `json:"reference"`
}

func (r *RecordPaymentRequest) Validate() error {
	if !r.Amount.IsPositive() {
		return ierr.NewError("payment amount must be positive").
			WithHint("Payment amount must be greater than zero").
			Mark(ierr.ErrValidation)
	}
	return r.Method.Validate()
}

// ReversePaymentRequest backs out a previously recorded payment.
type ReversePaymentRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"required"`
}

func (r *ReversePaymentRequest) Validate() error {
	if !r.Amount.IsPositive() {
		return ierr.NewError("reversal amount must be positive").
			WithHint("Reversal amount must be greater than zero").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// OpenItemResponse represents a receivable in API responses
type OpenItemResponse struct {
	*openitem.OpenItem
}

// ListOpenItemsResponse wraps a list of open items
type ListOpenItemsResponse struct {
	Items []*OpenItemResponse `json:"items"`
	Total int                 `json:"total"`
}
