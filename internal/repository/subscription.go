package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/billcycle/billcycle/internal/domain/subscription"
	"github.com/billcycle/billcycle/internal/postgres"
	"github.com/billcycle/billcycle/internal/types"
)

type subscriptionRepository struct {
	db     postgres.IClient
	params Params
}

func NewSubscriptionRepository(params Params) subscription.Repository {
	return &subscriptionRepository{
		db:     params.DB,
		params: params,
	}
}

const subscriptionColumns = `id, name, contract_id, customer_id, product_id, price,
	billing_cycle, start_date, end_date, subscription_status,
	tenant_id, status, created_at, updated_at, created_by, updated_by`

func (r *subscriptionRepository) Create(ctx context.Context, sub *subscription.Subscription) error {
	query := `
		INSERT INTO subscriptions (` + subscriptionColumns + `)
		VALUES (:id, :name, :contract_id, :customer_id, :product_id, :price,
			:billing_cycle, :start_date, :end_date, :subscription_status,
			:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by)`

	if _, err := r.db.Querier(ctx).NamedExecContext(ctx, query, sub); err != nil {
		return dbError(err, "Failed to create subscription")
	}
	return nil
}

func (r *subscriptionRepository) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	var sub subscription.Subscription
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1 AND status != 'deleted'`
	if err := r.db.Querier(ctx).GetContext(ctx, &sub, query, id); err != nil {
		return nil, notFound(err, "subscription", id)
	}
	return &sub, nil
}

func (r *subscriptionRepository) Update(ctx context.Context, sub *subscription.Subscription) error {
	query := `
		UPDATE subscriptions SET
			name = :name,
			price = :price,
			billing_cycle = :billing_cycle,
			end_date = :end_date,
			subscription_status = :subscription_status,
			status = :status,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id`

	if _, err := r.db.Querier(ctx).NamedExecContext(ctx, query, sub); err != nil {
		return dbError(err, "Failed to update subscription")
	}
	return nil
}

func (r *subscriptionRepository) List(ctx context.Context, filter *types.SubscriptionFilter) ([]*subscription.Subscription, error) {
	conditions := []string{"status != 'deleted'"}
	args := make([]interface{}, 0)

	if filter != nil {
		if filter.CustomerID != "" {
			args = append(args, filter.CustomerID)
			conditions = append(conditions, fmt.Sprintf("customer_id = $%d", len(args)))
		}
		if filter.ContractID != "" {
			args = append(args, filter.ContractID)
			conditions = append(conditions, fmt.Sprintf("contract_id = $%d", len(args)))
		}
		if len(filter.SubscriptionStatus) > 0 {
			placeholders := make([]string, 0, len(filter.SubscriptionStatus))
			for _, status := range filter.SubscriptionStatus {
				args = append(args, status)
				placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
			}
			conditions = append(conditions, fmt.Sprintf("subscription_status IN (%s)", strings.Join(placeholders, ", ")))
		}
	}

	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE ` +
		strings.Join(conditions, " AND ") + ` ORDER BY created_at`

	subs := make([]*subscription.Subscription, 0)
	if err := r.db.Querier(ctx).SelectContext(ctx, &subs, query, args...); err != nil {
		return nil, dbError(err, "Failed to list subscriptions")
	}
	return subs, nil
}
