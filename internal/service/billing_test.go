package service

import (
	"testing"
	"time"

	"github.com/billcycle/billcycle/internal/domain/contract"
	"github.com/billcycle/billcycle/internal/domain/customer"
	"github.com/billcycle/billcycle/internal/domain/product"
	"github.com/billcycle/billcycle/internal/domain/subscription"
	"github.com/billcycle/billcycle/internal/testutil"
	"github.com/billcycle/billcycle/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type BillingServiceSuite struct {
	testutil.BaseServiceTestSuite
	service     BillingService
	scheduleSvc ScheduleService
	testData    struct {
		customer     *customer.Customer
		product      *product.Product
		contract     *contract.Contract
		subscription *subscription.Subscription
	}
}

func TestBillingService(t *testing.T) {
	suite.Run(t, new(BillingServiceSuite))
}

func (s *BillingServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	params := s.serviceParams()
	invoiceSvc := NewInvoiceService(params)
	openItemSvc := NewOpenItemService(params)
	s.service = NewBillingService(params, invoiceSvc, openItemSvc)
	s.scheduleSvc = NewScheduleService(params)
	s.setupTestData()
}

func (s *BillingServiceSuite) serviceParams() ServiceParams {
	return ServiceParams{
		Logger:          s.GetLogger(),
		Config:          s.GetConfig(),
		DB:              s.GetDB(),
		Cache:           s.GetCache(),
		IDGen:           s.GetIDGen(),
		CustomerRepo:    s.GetStores().CustomerRepo,
		ProductRepo:     s.GetStores().ProductRepo,
		ContractRepo:    s.GetStores().ContractRepo,
		SubRepo:         s.GetStores().SubRepo,
		DueScheduleRepo: s.GetStores().DueScheduleRepo,
		InvoiceRepo:     s.GetStores().InvoiceRepo,
		OpenItemRepo:    s.GetStores().OpenItemRepo,
		EventPublisher:  s.GetPublisher(),
	}
}

func (s *BillingServiceSuite) setupTestData() {
	s.testData.customer = &customer.Customer{
		ID:    types.GenerateUUIDWithPrefix(types.UUID_PREFIX_CUSTOMER),
		Name:  "Acme GmbH",
		Email: "billing@acme.test",
		Address: customer.Address{
			Street:     "Hauptstrasse 1",
			City:       "Berlin",
			PostalCode: "10115",
			Country:    "DE",
		},
		BaseModel: types.GetDefaultBaseModel(s.GetContext()),
	}
	s.NoError(s.GetStores().CustomerRepo.Create(s.GetContext(), s.testData.customer))

	s.testData.product = &product.Product{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PRODUCT),
		Name:      "Hosting Standard",
		Price:     decimal.NewFromInt(100),
		BaseModel: types.GetDefaultBaseModel(s.GetContext()),
	}
	s.NoError(s.GetStores().ProductRepo.Create(s.GetContext(), s.testData.product))

	s.testData.contract = &contract.Contract{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_CONTRACT),
		ContractNumber: "CTR-TEST1",
		CustomerID:     s.testData.customer.ID,
		StartDate:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		BaseModel:      types.GetDefaultBaseModel(s.GetContext()),
	}
	s.NoError(s.GetStores().ContractRepo.Create(s.GetContext(), s.testData.contract))

	s.testData.subscription = s.createSubscription(decimal.NewFromInt(100))
}

func (s *BillingServiceSuite) createSubscription(price decimal.Decimal) *subscription.Subscription {
	sub := &subscription.Subscription{
		ID:                 types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		Name:               "Hosting Standard",
		ContractID:         s.testData.contract.ID,
		CustomerID:         s.testData.customer.ID,
		ProductID:          s.testData.product.ID,
		Price:              price,
		BillingCycle:       types.BillingCycleMonthly,
		StartDate:          time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		SubscriptionStatus: types.SubscriptionStatusActive,
		BaseModel:          types.GetDefaultBaseModel(s.GetContext()),
	}
	s.NoError(s.GetStores().SubRepo.Create(s.GetContext(), sub))
	return sub
}

func (s *BillingServiceSuite) TestRunBillingBatchCreatesInvoice() {
	periods, err := s.scheduleSvc.GeneratePeriods(s.GetContext(), s.testData.subscription.ID, 1)
	s.NoError(err)
	s.Equal(time.Date(2024, 2, 14, 0, 0, 0, 0, time.UTC), periods[0].DueDate)

	cutoff := time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC)
	result, err := s.service.RunBillingBatch(s.GetContext(), cutoff)
	s.NoError(err)
	s.Equal(1, result.InvoicesCreated)
	s.Equal(1, result.PeriodsProcessed)
	s.Len(result.Failures, 0)
	s.NotEmpty(result.BatchID)

	invoices, err := s.GetStores().InvoiceRepo.List(s.GetContext(), &types.InvoiceFilter{
		SubscriptionID: s.testData.subscription.ID,
	})
	s.NoError(err)
	s.Len(invoices, 1)

	inv, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), invoices[0].ID)
	s.NoError(err)
	s.Len(inv.LineItems, 1)
	s.True(inv.LineItems[0].UnitPrice.Equal(decimal.NewFromInt(100)))
	s.True(inv.Subtotal.Equal(decimal.NewFromInt(100)))
	s.True(inv.TaxAmount.Equal(decimal.NewFromInt(19)))
	s.True(inv.Total.Equal(decimal.NewFromInt(119)))
	s.Equal(types.InvoiceStatusActive, inv.InvoiceStatus)
	s.Require().NotNil(inv.BatchID)
	s.Equal(result.BatchID, *inv.BatchID)
	s.Equal("Berlin", inv.BillingAddress.City)

	// The period is completed and references the invoice
	schedule, err := s.GetStores().DueScheduleRepo.Get(s.GetContext(), periods[0].ID)
	s.NoError(err)
	s.Equal(types.DueScheduleStatusCompleted, schedule.ScheduleStatus)
	s.True(schedule.Processed)
	s.Require().NotNil(schedule.InvoiceID)
	s.Equal(inv.ID, *schedule.InvoiceID)

	// One open item is derived from the invoice total
	items, err := s.GetStores().OpenItemRepo.ListByInvoice(s.GetContext(), inv.ID)
	s.NoError(err)
	s.Len(items, 1)
	s.True(items[0].Amount.Equal(decimal.NewFromInt(119)))
	s.True(items[0].PaidAmount.IsZero())
	s.Equal(types.OpenItemStatusOpen, items[0].ItemStatus)
	s.Equal(inv.DueDate, items[0].DueDate)
}

func (s *BillingServiceSuite) TestRunBillingBatchIsIdempotent() {
	_, err := s.scheduleSvc.GeneratePeriods(s.GetContext(), s.testData.subscription.ID, 1)
	s.NoError(err)

	cutoff := time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC)
	first, err := s.service.RunBillingBatch(s.GetContext(), cutoff)
	s.NoError(err)
	s.Equal(1, first.InvoicesCreated)

	second, err := s.service.RunBillingBatch(s.GetContext(), cutoff)
	s.NoError(err)
	s.Equal(0, second.InvoicesCreated)
	s.Equal(0, second.PeriodsProcessed)

	invoices, err := s.GetStores().InvoiceRepo.List(s.GetContext(), nil)
	s.NoError(err)
	s.Len(invoices, 1)
}

func (s *BillingServiceSuite) TestRunBillingBatchGroupsPeriodsPerSubscription() {
	_, err := s.scheduleSvc.GeneratePeriods(s.GetContext(), s.testData.subscription.ID, 2)
	s.NoError(err)

	// Both periods are due by mid March and land on one invoice
	cutoff := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	result, err := s.service.RunBillingBatch(s.GetContext(), cutoff)
	s.NoError(err)
	s.Equal(1, result.InvoicesCreated)
	s.Equal(2, result.PeriodsProcessed)

	invoices, err := s.GetStores().InvoiceRepo.List(s.GetContext(), nil)
	s.NoError(err)
	s.Len(invoices, 1)

	inv, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), invoices[0].ID)
	s.NoError(err)
	s.Len(inv.LineItems, 2)
	s.True(inv.Total.Equal(decimal.NewFromInt(238)))
}

func (s *BillingServiceSuite) TestRunBillingBatchSkipsUndue() {
	_, err := s.scheduleSvc.GeneratePeriods(s.GetContext(), s.testData.subscription.ID, 1)
	s.NoError(err)

	// Cutoff before the due date selects nothing
	cutoff := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	result, err := s.service.RunBillingBatch(s.GetContext(), cutoff)
	s.NoError(err)
	s.Equal(0, result.InvoicesCreated)
	s.Equal(0, result.PeriodsProcessed)
}

func (s *BillingServiceSuite) TestRunBillingBatchIsolatesFailures() {
	_, err := s.scheduleSvc.GeneratePeriods(s.GetContext(), s.testData.subscription.ID, 1)
	s.NoError(err)

	// A subscription with no price anywhere fails price resolution
	unpriceable := &product.Product{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PRODUCT),
		Name:      "Legacy Plan",
		Price:     decimal.Zero,
		BaseModel: types.GetDefaultBaseModel(s.GetContext()),
	}
	s.NoError(s.GetStores().ProductRepo.Create(s.GetContext(), unpriceable))

	broken := s.createSubscription(decimal.Zero)
	broken.ProductID = unpriceable.ID
	s.NoError(s.GetStores().SubRepo.Update(s.GetContext(), broken))
	_, err = s.scheduleSvc.GeneratePeriods(s.GetContext(), broken.ID, 1)
	s.NoError(err)

	cutoff := time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC)
	result, err := s.service.RunBillingBatch(s.GetContext(), cutoff)
	s.NoError(err)

	// The healthy subscription is billed despite the broken one
	s.Equal(1, result.InvoicesCreated)
	s.Len(result.Failures, 1)
	s.Equal(broken.ID, result.Failures[0].SubscriptionID)
	s.NotEmpty(result.Failures[0].Error)

	// The failed group's period stays billable
	schedules, err := s.GetStores().DueScheduleRepo.ListBySubscription(s.GetContext(), broken.ID)
	s.NoError(err)
	s.Len(schedules, 1)
	s.Equal(types.DueScheduleStatusActive, schedules[0].ScheduleStatus)
	s.False(schedules[0].Processed)
}

func (s *BillingServiceSuite) TestRunBillingBatchSkipsNonActivePeriods() {
	periods, err := s.scheduleSvc.GeneratePeriods(s.GetContext(), s.testData.subscription.ID, 1)
	s.NoError(err)

	_, err = s.scheduleSvc.PauseSchedule(s.GetContext(), periods[0].ID)
	s.NoError(err)

	cutoff := time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC)
	result, err := s.service.RunBillingBatch(s.GetContext(), cutoff)
	s.NoError(err)
	s.Equal(0, result.InvoicesCreated)
}

func (s *BillingServiceSuite) TestMarkOverdueOpenItems() {
	_, err := s.scheduleSvc.GeneratePeriods(s.GetContext(), s.testData.subscription.ID, 1)
	s.NoError(err)

	cutoff := time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC)
	_, err = s.service.RunBillingBatch(s.GetContext(), cutoff)
	s.NoError(err)

	// Before the open item due date nothing is promoted
	sweep, err := s.service.MarkOverdueOpenItems(s.GetContext(), cutoff)
	s.NoError(err)
	s.Equal(0, sweep.ItemsMarked)

	// Past the due date the item becomes OVERDUE
	sweep, err = s.service.MarkOverdueOpenItems(s.GetContext(), cutoff.AddDate(0, 2, 0))
	s.NoError(err)
	s.Equal(1, sweep.ItemsMarked)

	// The sweep is idempotent
	sweep, err = s.service.MarkOverdueOpenItems(s.GetContext(), cutoff.AddDate(0, 2, 0))
	s.NoError(err)
	s.Equal(0, sweep.ItemsMarked)
}
