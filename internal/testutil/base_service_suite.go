package testutil

import (
	"context"
	"time"

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
	"github.com/billcycle/billcycle/internal/pubsub/memory"
	"github.com/billcycle/billcycle/internal/types"
	"github.com/billcycle/billcycle/internal/validator"
	"github.com/stretchr/testify/suite"
)

// Stores holds all the repository interfaces for testing
type Stores struct {
	CustomerRepo    customer.Repository
	ProductRepo     product.Repository
	ContractRepo    contract.Repository
	SubRepo         subscription.Repository
	DueScheduleRepo dueschedule.Repository
	InvoiceRepo     invoice.Repository
	OpenItemRepo    openitem.Repository
}

// BaseServiceTestSuite provides common functionality for all service test suites
type BaseServiceTestSuite struct {
	suite.Suite
	ctx       context.Context
	stores    Stores
	db        postgres.IClient
	logger    *logger.Logger
	config    *config.Configuration
	cache     cache.Cache
	idGen     idgen.Generator
	publisher publisher.EventPublisher
	now       time.Time
}

// SetupSuite is called once before running the tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	validator.NewValidator()

	s.config = config.GetDefaultConfig()

	var err error
	s.logger, err = logger.NewLogger(s.config)
	if err != nil {
		s.T().Fatalf("failed to create logger: %v", err)
	}
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.ctx = SetupContext()
	s.setupStores()
	s.now = time.Now().UTC()
}

// TearDownTest is called after each test
func (s *BaseServiceTestSuite) TearDownTest() {
	s.clearStores()
}

func (s *BaseServiceTestSuite) setupStores() {
	s.stores = Stores{
		CustomerRepo:    NewInMemoryCustomerStore(),
		ProductRepo:     NewInMemoryProductStore(),
		ContractRepo:    NewInMemoryContractStore(),
		SubRepo:         NewInMemorySubscriptionStore(),
		DueScheduleRepo: NewInMemoryDueScheduleStore(),
		InvoiceRepo:     NewInMemoryInvoiceStore(),
		OpenItemRepo:    NewInMemoryOpenItemStore(),
	}

	s.db = NewMockPostgresClient(s.logger)
	s.cache = cache.NewInMemoryCache()
	s.idGen = idgen.NewGenerator(idgen.CheckerFunc(func(ctx context.Context, kind idgen.Kind, number string) (bool, error) {
		switch kind {
		case idgen.KindDueSchedule:
			return s.stores.DueScheduleRepo.ExistsByNumber(ctx, number)
		case idgen.KindInvoice:
			return s.stores.InvoiceRepo.ExistsByNumber(ctx, number)
		case idgen.KindOpenItem:
			return s.stores.OpenItemRepo.ExistsByNumber(ctx, number)
		case idgen.KindContract:
			return s.stores.ContractRepo.ExistsByNumber(ctx, number)
		default:
			return false, nil
		}
	}))
	s.publisher = publisher.NewEventPublisher(memory.NewPubSub(s.logger), s.config, s.logger)
}

func (s *BaseServiceTestSuite) clearStores() {
	s.stores.CustomerRepo.(*InMemoryCustomerStore).Clear()
	s.stores.ProductRepo.(*InMemoryProductStore).Clear()
	s.stores.ContractRepo.(*InMemoryContractStore).Clear()
	s.stores.SubRepo.(*InMemorySubscriptionStore).Clear()
	s.stores.DueScheduleRepo.(*InMemoryDueScheduleStore).Clear()
	s.stores.InvoiceRepo.(*InMemoryInvoiceStore).Clear()
	s.stores.OpenItemRepo.(*InMemoryOpenItemStore).Clear()
	s.cache.Flush(s.ctx)
}

func (s *BaseServiceTestSuite) ClearStores() {
	s.clearStores()
}

// GetContext returns the test context
func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

// GetConfig returns the test configuration
func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

// GetStores returns all test repositories
func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

// GetDB returns the test database client
func (s *BaseServiceTestSuite) GetDB() postgres.IClient {
	return s.db
}

// GetLogger returns the test logger
func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

// GetCache returns the test cache
func (s *BaseServiceTestSuite) GetCache() cache.Cache {
	return s.cache
}

// GetIDGen returns the test identifier generator
func (s *BaseServiceTestSuite) GetIDGen() idgen.Generator {
	return s.idGen
}

// GetPublisher returns the test event publisher
func (s *BaseServiceTestSuite) GetPublisher() publisher.EventPublisher {
	return s.publisher
}

// GetNow returns the reference time captured at test setup
func (s *BaseServiceTestSuite) GetNow() time.Time {
	return s.now
}

// GetUUID returns a new unique identifier
func (s *BaseServiceTestSuite) GetUUID() string {
	return types.GenerateUUID()
}
