package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/billcycle/billcycle/internal/domain/openitem"
	"github.com/billcycle/billcycle/internal/postgres"
	"github.com/billcycle/billcycle/internal/types"
)

type openItemRepository struct {
	db     postgres.IClient
	params Params
}

func NewOpenItemRepository(params Params) openitem.Repository {
	return &openItemRepository{
		db:     params.DB,
		params: params,
	}
}

const openItemColumns = `id, item_number, invoice_id, customer_id, amount, paid_amount,
	due_date, item_status, reminder_count, last_reminder_at,
	payment_method, payment_reference,
	tenant_id, status, created_at, updated_at, created_by, updated_by`

func (r *openItemRepository) Create(ctx context.Context, item *openitem.OpenItem) error {
	query := `
		INSERT INTO open_items (` + openItemColumns + `)
		VALUES (:id, :item_number, :invoice_id, :customer_id, :amount, :paid_amount,
			:due_date, :item_status, :reminder_count, :last_reminder_at,
			:payment_method, :payment_reference,
			:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by)`

	if _, err := r.db.Querier(ctx).NamedExecContext(ctx, query, item); err != nil {
		return dbError(err, "Failed to create open item")
	}
	return nil
}

func (r *openItemRepository) Get(ctx context.Context, id string) (*openitem.OpenItem, error) {
	var item openitem.OpenItem
	query := `SELECT ` + openItemColumns + ` FROM open_items WHERE id = $1 AND status != 'deleted'`
	if err := r.db.Querier(ctx).GetContext(ctx, &item, query, id); err != nil {
		return nil, notFound(err, "open item", id)
	}
	return &item, nil
}

func (r *openItemRepository) Update(ctx context.Context, item *openitem.OpenItem) error {
	query := `
		UPDATE open_items SET
			paid_amount = :paid_amount,
			item_status = :item_status,
			reminder_count = :reminder_count,
			last_reminder_at = :last_reminder_at,
			payment_method = :payment_method,
			payment_reference = :payment_reference,
			status = :status,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id`

	if _, err := r.db.Querier(ctx).NamedExecContext(ctx, query, item); err != nil {
		return dbError(err, "Failed to update open item")
	}
	return nil
}

func (r *openItemRepository) List(ctx context.Context, filter *types.OpenItemFilter) ([]*openitem.OpenItem, error) {
	conditions := []string{"status != 'deleted'"}
	args := make([]interface{}, 0)

	if filter != nil {
		if filter.InvoiceID != "" {
			args = append(args, filter.InvoiceID)
			conditions = append(conditions, fmt.Sprintf("invoice_id = $%d", len(args)))
		}
		if filter.CustomerID != "" {
			args = append(args, filter.CustomerID)
			conditions = append(conditions, fmt.Sprintf("customer_id = $%d", len(args)))
		}
		if len(filter.Statuses) > 0 {
			placeholders := make([]string, 0, len(filter.Statuses))
			for _, status := range filter.Statuses {
				args = append(args, status)
				placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
			}
			conditions = append(conditions, fmt.Sprintf("item_status IN (%s)", strings.Join(placeholders, ", ")))
		}
		if filter.DueBefore != nil {
			args = append(args, *filter.DueBefore)
			conditions = append(conditions, fmt.Sprintf("due_date < $%d", len(args)))
		}
	}

	query := `SELECT ` + openItemColumns + ` FROM open_items WHERE ` +
		strings.Join(conditions, " AND ") + ` ORDER BY due_date, item_number`

	items := make([]*openitem.OpenItem, 0)
	if err := r.db.Querier(ctx).SelectContext(ctx, &items, query, args...); err != nil {
		return nil, dbError(err, "Failed to list open items")
	}
	return items, nil
}

func (r *openItemRepository) ListByInvoice(ctx context.Context, invoiceID string) ([]*openitem.OpenItem, error) {
	return r.List(ctx, &types.OpenItemFilter{InvoiceID: invoiceID})
}

func (r *openItemRepository) ListDueBefore(ctx context.Context, asOf time.Time) ([]*openitem.OpenItem, error) {
	return r.List(ctx, &types.OpenItemFilter{
		Statuses: []types.OpenItemStatus{
			types.OpenItemStatusOpen,
			types.OpenItemStatusPartiallyPaid,
		},
		DueBefore: &asOf,
	})
}

func (r *openItemRepository) ExistsByNumber(ctx context.Context, number string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM open_items WHERE item_number = $1)`
	if err := r.db.Querier(ctx).GetContext(ctx, &exists, query, number); err != nil {
		return false, dbError(err, "Failed to check open item number")
	}
	return exists, nil
}
