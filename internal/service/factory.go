package service

import (
	"context"

	"github.com/billcycle/billcycle/internal/cache"
	"github.com/billcycle/billcycle/internal/config"
	"github.com/billcycle/billcycle/internal/domain/contract"
	"github.com/billcycle/billcycle/internal/domain/customer"
	"github.com/billcycle/billcycle/internal/domain/dueschedule"
	"github.com/billcycle/billcycle/internal/domain/invoice"
	"github.com/billcycle/billcycle/internal/domain/openitem"
	"github.com/billcycle/billcycle/internal/domain/product"
	"github.com/billcycle/billcycle/internal/domain/subscription"
	"github.com/billcycle/billcycle/internal/idgen"
	"github.com/billcycle/billcycle/internal/logger"
	"github.com/billcycle/billcycle/internal/postgres"
	"github.com/billcycle/billcycle/internal/publisher"
)

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration
	DB     postgres.IClient
	Cache  cache.Cache
	IDGen  idgen.Generator

	// Repositories
	CustomerRepo     customer.Repository
	ProductRepo      product.Repository
	ContractRepo     contract.Repository
	SubRepo          subscription.Repository
	DueScheduleRepo  dueschedule.Repository
	InvoiceRepo      invoice.Repository
	OpenItemRepo     openitem.Repository

	// Publishers
	EventPublisher publisher.EventPublisher
}

// NewServiceParams assembles the shared service dependencies for injection
func NewServiceParams(
	logger *logger.Logger,
	config *config.Configuration,
	db postgres.IClient,
	cache cache.Cache,
	idGen idgen.Generator,
	customerRepo customer.Repository,
	productRepo product.Repository,
	contractRepo contract.Repository,
	subRepo subscription.Repository,
	dueScheduleRepo dueschedule.Repository,
	invoiceRepo invoice.Repository,
	openItemRepo openitem.Repository,
	eventPublisher publisher.EventPublisher,
) ServiceParams {
	return ServiceParams{
		Logger:          logger,
		Config:          config,
		DB:              db,
		Cache:           cache,
		IDGen:           idGen,
		CustomerRepo:    customerRepo,
		ProductRepo:     productRepo,
		ContractRepo:    contractRepo,
		SubRepo:         subRepo,
		DueScheduleRepo: dueScheduleRepo,
		InvoiceRepo:     invoiceRepo,
		OpenItemRepo:    openItemRepo,
		EventPublisher:  eventPublisher,
	}
}

// NewNumberChecker builds the idgen collision checker over the repositories
// so generated numbers never leak into a series where they already exist.
func NewNumberChecker(
	dueScheduleRepo dueschedule.Repository,
	invoiceRepo invoice.Repository,
	openItemRepo openitem.Repository,
	contractRepo contract.Repository,
) idgen.Checker {
	return idgen.CheckerFunc(func(ctx context.Context, kind idgen.Kind, number string) (bool, error) {
		switch kind {
		case idgen.KindDueSchedule:
			return dueScheduleRepo.ExistsByNumber(ctx, number)
		case idgen.KindInvoice:
			return invoiceRepo.ExistsByNumber(ctx, number)
		case idgen.KindOpenItem:
			return openItemRepo.ExistsByNumber(ctx, number)
		case idgen.KindContract:
			return contractRepo.ExistsByNumber(ctx, number)
		default:
			return false, nil
		}
	})
}
