package repository

import (
	"context"

	"github.com/billcycle/billcycle/internal/cache"
	"github.com/billcycle/billcycle/internal/domain/product"
	"github.com/billcycle/billcycle/internal/postgres"
	"github.com/billcycle/billcycle/internal/types"
)

type productRepository struct {
	db     postgres.IClient
	params Params
}

func NewProductRepository(params Params) product.Repository {
	return &productRepository{
		db:     params.DB,
		params: params,
	}
}

const productColumns = `id, name, description, price,
	tenant_id, status, created_at, updated_at, created_by, updated_by`

func (r *productRepository) Create(ctx context.Context, p *product.Product) error {
	query := `
		INSERT INTO products (` + productColumns + `)
		VALUES (:id, :name, :description, :price,
			:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by)`

	if _, err := r.db.Querier(ctx).NamedExecContext(ctx, query, p); err != nil {
		return dbError(err, "Failed to create product")
	}
	return nil
}

func (r *productRepository) Get(ctx context.Context, id string) (*product.Product, error) {
	key := cache.GenerateKey(cache.PrefixProduct, types.GetTenantID(ctx), id)
	if cached, ok := r.params.Cache.Get(ctx, key); ok {
		if p, ok := cached.(*product.Product); ok {
			return p, nil
		}
	}

	var p product.Product
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1 AND status != 'deleted'`
	if err := r.db.Querier(ctx).GetContext(ctx, &p, query, id); err != nil {
		return nil, notFound(err, "product", id)
	}

	r.params.Cache.Set(ctx, key, &p, cache.DefaultExpiration)
	return &p, nil
}

func (r *productRepository) Update(ctx context.Context, p *product.Product) error {
	query := `
		UPDATE products SET
			name = :name,
			description = :description,
			price = :price,
			status = :status,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id`

	if _, err := r.db.Querier(ctx).NamedExecContext(ctx, query, p); err != nil {
		return dbError(err, "Failed to update product")
	}

	r.params.Cache.Delete(ctx, cache.GenerateKey(cache.PrefixProduct, types.GetTenantID(ctx), p.ID))
	return nil
}

func (r *productRepository) List(ctx context.Context) ([]*product.Product, error) {
	products := make([]*product.Product, 0)
	query := `SELECT ` + productColumns + ` FROM products WHERE status != 'deleted' ORDER BY created_at`
	if err := r.db.Querier(ctx).SelectContext(ctx, &products, query); err != nil {
		return nil, dbError(err, "Failed to list products")
	}
	return products, nil
}
