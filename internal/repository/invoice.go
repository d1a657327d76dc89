package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/billcycle/billcycle/internal/domain/customer"
	"github.com/billcycle/billcycle/internal/domain/invoice"
	"github.com/billcycle/billcycle/internal/postgres"
	"github.com/billcycle/billcycle/internal/types"
	"github.com/shopspring/decimal"
)

type invoiceRepository struct {
	db     postgres.IClient
	params Params
}

func NewInvoiceRepository(params Params) invoice.Repository {
	return &invoiceRepository{
		db:     params.DB,
		params: params,
	}
}

// invoiceRow flattens the billing address snapshot into the invoices table
// columns. The domain model nests the address; sqlx works on the flat shape.
type invoiceRow struct {
	ID             string  `db:"id"`
	InvoiceNumber  string  `db:"invoice_number"`
	CustomerID     string  `db:"customer_id"`
	SubscriptionID string  `db:"subscription_id"`
	BatchID        *string `db:"batch_id"`

	InvoiceStatus types.InvoiceStatus `db:"invoice_status"`
	InvoiceDate   time.Time           `db:"invoice_date"`
	DueDate       time.Time           `db:"due_date"`

	BillingStreet     string `db:"billing_street"`
	BillingCity       string `db:"billing_city"`
	BillingPostalCode string `db:"billing_postal_code"`
	BillingCountry    string `db:"billing_country"`

	Subtotal  decimal.Decimal `db:"subtotal"`
	TaxAmount decimal.Decimal `db:"tax_amount"`
	Total     decimal.Decimal `db:"total"`

	types.BaseModel
}

func toInvoiceRow(inv *invoice.Invoice) *invoiceRow {
	return &invoiceRow{
		ID:                inv.ID,
		InvoiceNumber:     inv.InvoiceNumber,
		CustomerID:        inv.CustomerID,
		SubscriptionID:    inv.SubscriptionID,
		BatchID:           inv.BatchID,
		InvoiceStatus:     inv.InvoiceStatus,
		InvoiceDate:       inv.InvoiceDate,
		DueDate:           inv.DueDate,
		BillingStreet:     inv.BillingAddress.Street,
		BillingCity:       inv.BillingAddress.City,
		BillingPostalCode: inv.BillingAddress.PostalCode,
		BillingCountry:    inv.BillingAddress.Country,
		Subtotal:          inv.Subtotal,
		TaxAmount:         inv.TaxAmount,
		Total:             inv.Total,
		BaseModel:         inv.BaseModel,
	}
}

func (row *invoiceRow) toDomain() *invoice.Invoice {
	return &invoice.Invoice{
		ID:             row.ID,
		InvoiceNumber:  row.InvoiceNumber,
		CustomerID:     row.CustomerID,
		SubscriptionID: row.SubscriptionID,
		BatchID:        row.BatchID,
		InvoiceStatus:  row.InvoiceStatus,
		InvoiceDate:    row.InvoiceDate,
		DueDate:        row.DueDate,
		BillingAddress: customer.Address{
			Street:     row.BillingStreet,
			City:       row.BillingCity,
			PostalCode: row.BillingPostalCode,
			Country:    row.BillingCountry,
		},
		Subtotal:  row.Subtotal,
		TaxAmount: row.TaxAmount,
		Total:     row.Total,
		BaseModel: row.BaseModel,
	}
}

const invoiceColumns = `id, invoice_number, customer_id, subscription_id, batch_id,
	invoice_status, invoice_date, due_date,
	billing_street, billing_city, billing_postal_code, billing_country,
	subtotal, tax_amount, total,
	tenant_id, status, created_at, updated_at, created_by, updated_by`

const lineItemColumns = `id, invoice_id, description, quantity, unit_price, tax_rate,
	amount, period_start, period_end,
	tenant_id, status, created_at, updated_at, created_by, updated_by`

func (r *invoiceRepository) CreateWithLineItems(ctx context.Context, inv *invoice.Invoice) error {
	return r.db.WithTx(ctx, func(txCtx context.Context) error {
		query := `
			INSERT INTO invoices (` + invoiceColumns + `)
			VALUES (:id, :invoice_number, :customer_id, :subscription_id, :batch_id,
				:invoice_status, :invoice_date, :due_date,
				:billing_street, :billing_city, :billing_postal_code, :billing_country,
				:subtotal, :tax_amount, :total,
				:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by)`

		if _, err := r.db.Querier(txCtx).NamedExecContext(txCtx, query, toInvoiceRow(inv)); err != nil {
			return dbError(err, "Failed to create invoice")
		}

		itemQuery := `
			INSERT INTO invoice_line_items (` + lineItemColumns + `)
			VALUES (:id, :invoice_id, :description, :quantity, :unit_price, :tax_rate,
				:amount, :period_start, :period_end,
				:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by)`

		for _, item := range inv.LineItems {
			if _, err := r.db.Querier(txCtx).NamedExecContext(txCtx, itemQuery, item); err != nil {
				return dbError(err, "Failed to create invoice line item")
			}
		}
		return nil
	})
}

func (r *invoiceRepository) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	var row invoiceRow
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1 AND status != 'deleted'`
	if err := r.db.Querier(ctx).GetContext(ctx, &row, query, id); err != nil {
		return nil, notFound(err, "invoice", id)
	}

	inv := row.toDomain()
	items := make([]*invoice.LineItem, 0)
	itemQuery := `SELECT ` + lineItemColumns + ` FROM invoice_line_items
		WHERE invoice_id = $1 AND status != 'deleted' ORDER BY period_start`
	if err := r.db.Querier(ctx).SelectContext(ctx, &items, itemQuery, id); err != nil {
		return nil, dbError(err, "Failed to load invoice line items")
	}
	inv.LineItems = items
	return inv, nil
}

func (r *invoiceRepository) Update(ctx context.Context, inv *invoice.Invoice) error {
	query := `
		UPDATE invoices SET
			invoice_status = :invoice_status,
			due_date = :due_date,
			batch_id = :batch_id,
			status = :status,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id`

	if _, err := r.db.Querier(ctx).NamedExecContext(ctx, query, toInvoiceRow(inv)); err != nil {
		return dbError(err, "Failed to update invoice")
	}
	return nil
}

func (r *invoiceRepository) List(ctx context.Context, filter *types.InvoiceFilter) ([]*invoice.Invoice, error) {
	conditions := []string{"status != 'deleted'"}
	args := make([]interface{}, 0)

	if filter != nil {
		if filter.CustomerID != "" {
			args = append(args, filter.CustomerID)
			conditions = append(conditions, fmt.Sprintf("customer_id = $%d", len(args)))
		}
		if filter.SubscriptionID != "" {
			args = append(args, filter.SubscriptionID)
			conditions = append(conditions, fmt.Sprintf("subscription_id = $%d", len(args)))
		}
		if filter.BatchID != "" {
			args = append(args, filter.BatchID)
			conditions = append(conditions, fmt.Sprintf("batch_id = $%d", len(args)))
		}
		if len(filter.InvoiceStatus) > 0 {
			placeholders := make([]string, 0, len(filter.InvoiceStatus))
			for _, status := range filter.InvoiceStatus {
				args = append(args, status)
				placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
			}
			conditions = append(conditions, fmt.Sprintf("invoice_status IN (%s)", strings.Join(placeholders, ", ")))
		}
	}

	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE ` +
		strings.Join(conditions, " AND ") + ` ORDER BY invoice_date, invoice_number`

	rows := make([]*invoiceRow, 0)
	if err := r.db.Querier(ctx).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, dbError(err, "Failed to list invoices")
	}

	invoices := make([]*invoice.Invoice, 0, len(rows))
	for _, row := range rows {
		invoices = append(invoices, row.toDomain())
	}
	return invoices, nil
}

func (r *invoiceRepository) ExistsByNumber(ctx context.Context, number string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM invoices WHERE invoice_number = $1)`
	if err := r.db.Querier(ctx).GetContext(ctx, &exists, query, number); err != nil {
		return false, dbError(err, "Failed to check invoice number")
	}
	return exists, nil
}
