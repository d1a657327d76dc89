package dto

import (
	"github.com/billcycle/billcycle/internal/domain/invoice"
)

// InvoiceResponse represents an invoice in API responses
type InvoiceResponse struct {
	*invoice.Invoice
}

// ListInvoicesResponse wraps a list of invoices
type ListInvoicesResponse struct {
	Items []*InvoiceResponse `json:"items"`
	Total int                `json:"total"`
}
