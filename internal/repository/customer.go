package repository

import (
	"context"

	"github.com/billcycle/billcycle/internal/cache"
	"github.com/billcycle/billcycle/internal/domain/customer"
	"github.com/billcycle/billcycle/internal/postgres"
	"github.com/billcycle/billcycle/internal/types"
)

type customerRepository struct {
	db     postgres.IClient
	params Params
}

func NewCustomerRepository(params Params) customer.Repository {
	return &customerRepository{
		db:     params.DB,
		params: params,
	}
}

const customerColumns = `id, name, email, street, city, postal_code, country,
	tenant_id, status, created_at, updated_at, created_by, updated_by`

func (r *customerRepository) Create(ctx context.Context, c *customer.Customer) error {
	query := `
		INSERT INTO customers (` + customerColumns + `)
		VALUES (:id, :name, :email, :street, :city, :postal_code, :country,
			:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by)`

	if _, err := r.db.Querier(ctx).NamedExecContext(ctx, query, c); err != nil {
		return dbError(err, "Failed to create customer")
	}
	return nil
}

func (r *customerRepository) Get(ctx context.Context, id string) (*customer.Customer, error) {
	key := cache.GenerateKey(cache.PrefixCustomer, types.GetTenantID(ctx), id)
	if cached, ok := r.params.Cache.Get(ctx, key); ok {
		if c, ok := cached.(*customer.Customer); ok {
			return c, nil
		}
	}

	var c customer.Customer
	query := `SELECT ` + customerColumns + ` FROM customers WHERE id = $1 AND status != 'deleted'`
	if err := r.db.Querier(ctx).GetContext(ctx, &c, query, id); err != nil {
		return nil, notFound(err, "customer", id)
	}

	r.params.Cache.Set(ctx, key, &c, cache.DefaultExpiration)
	return &c, nil
}

func (r *customerRepository) Update(ctx context.Context, c *customer.Customer) error {
	query := `
		UPDATE customers SET
			name = :name,
			email = :email,
			street = :street,
			city = :city,
			postal_code = :postal_code,
			country = :country,
			status = :status,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id`

	if _, err := r.db.Querier(ctx).NamedExecContext(ctx, query, c); err != nil {
		return dbError(err, "Failed to update customer")
	}

	r.params.Cache.Delete(ctx, cache.GenerateKey(cache.PrefixCustomer, types.GetTenantID(ctx), c.ID))
	return nil
}

func (r *customerRepository) List(ctx context.Context) ([]*customer.Customer, error) {
	customers := make([]*customer.Customer, 0)
	query := `SELECT ` + customerColumns + ` FROM customers WHERE status != 'deleted' ORDER BY created_at`
	if err := r.db.Querier(ctx).SelectContext(ctx, &customers, query); err != nil {
		return nil, dbError(err, "Failed to list customers")
	}
	return customers, nil
}
