package repository

import (
	"context"

	"github.com/billcycle/billcycle/internal/domain/contract"
	"github.com/billcycle/billcycle/internal/postgres"
)

type contractRepository struct {
	db     postgres.IClient
	params Params
}

func NewContractRepository(params Params) contract.Repository {
	return &contractRepository{
		db:     params.DB,
		params: params,
	}
}

const contractColumns = `id, contract_number, customer_id, start_date, end_date,
	tenant_id, status, created_at, updated_at, created_by, updated_by`

func (r *contractRepository) Create(ctx context.Context, c *contract.Contract) error {
	query := `
		INSERT INTO contracts (` + contractColumns + `)
		VALUES (:id, :contract_number, :customer_id, :start_date, :end_date,
			:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by)`

	if _, err := r.db.Querier(ctx).NamedExecContext(ctx, query, c); err != nil {
		return dbError(err, "Failed to create contract")
	}
	return nil
}

func (r *contractRepository) Get(ctx context.Context, id string) (*contract.Contract, error) {
	var c contract.Contract
	query := `SELECT ` + contractColumns + ` FROM contracts WHERE id = $1 AND status != 'deleted'`
	if err := r.db.Querier(ctx).GetContext(ctx, &c, query, id); err != nil {
		return nil, notFound(err, "contract", id)
	}
	return &c, nil
}

func (r *contractRepository) ExistsByNumber(ctx context.Context, number string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM contracts WHERE contract_number = $1)`
	if err := r.db.Querier(ctx).GetContext(ctx, &exists, query, number); err != nil {
		return false, dbError(err, "Failed to check contract number")
	}
	return exists, nil
}
