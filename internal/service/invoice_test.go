package service

import (
	"testing"
	"time"

	"github.com/billcycle/billcycle/internal/api/dto"
	"github.com/billcycle/billcycle/internal/domain/customer"
	"github.com/billcycle/billcycle/internal/domain/dueschedule"
	"github.com/billcycle/billcycle/internal/domain/openitem"
	"github.com/billcycle/billcycle/internal/domain/product"
	"github.com/billcycle/billcycle/internal/domain/subscription"
	ierr "github.com/billcycle/billcycle/internal/errors"
	"github.com/billcycle/billcycle/internal/testutil"
	"github.com/billcycle/billcycle/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type InvoiceServiceSuite struct {
	testutil.BaseServiceTestSuite
	service  InvoiceService
	testData struct {
		customer     *customer.Customer
		product      *product.Product
		subscription *subscription.Subscription
		schedule     *dueschedule.DueSchedule
	}
}

func TestInvoiceService(t *testing.T) {
	suite.Run(t, new(InvoiceServiceSuite))
}

func (s *InvoiceServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewInvoiceService(s.serviceParams())
	s.setupTestData()
}

func (s *InvoiceServiceSuite) serviceParams() ServiceParams {
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

func (s *InvoiceServiceSuite) setupTestData() {
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
		Price:     decimal.NewFromInt(80),
		BaseModel: types.GetDefaultBaseModel(s.GetContext()),
	}
	s.NoError(s.GetStores().ProductRepo.Create(s.GetContext(), s.testData.product))

	s.testData.subscription = &subscription.Subscription{
		ID:                 types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		Name:               "Hosting Standard",
		CustomerID:         s.testData.customer.ID,
		ContractID:         types.GenerateUUIDWithPrefix(types.UUID_PREFIX_CONTRACT),
		ProductID:          s.testData.product.ID,
		Price:              decimal.NewFromInt(100),
		BillingCycle:       types.BillingCycleMonthly,
		StartDate:          time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		SubscriptionStatus: types.SubscriptionStatusActive,
		BaseModel:          types.GetDefaultBaseModel(s.GetContext()),
	}
	s.NoError(s.GetStores().SubRepo.Create(s.GetContext(), s.testData.subscription))

	s.testData.schedule = &dueschedule.DueSchedule{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_DUE_SCHEDULE),
		ScheduleNumber: "DS-TEST1",
		SubscriptionID: s.testData.subscription.ID,
		PeriodStart:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:      time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		DueDate:        time.Date(2024, 2, 14, 0, 0, 0, 0, time.UTC),
		ScheduleStatus: types.DueScheduleStatusActive,
		BaseModel:      types.GetDefaultBaseModel(s.GetContext()),
	}
	s.NoError(s.GetStores().DueScheduleRepo.Create(s.GetContext(), s.testData.schedule))
}

func (s *InvoiceServiceSuite) TestAssembleInvoiceFromSubscriptionPrice() {
	billingDate := time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC)
	inv, err := s.service.AssembleInvoice(s.GetContext(), s.testData.subscription,
		[]*dueschedule.DueSchedule{s.testData.schedule}, billingDate, types.InvoiceModeActive)
	s.NoError(err)

	s.Len(inv.LineItems, 1)
	item := inv.LineItems[0]
	s.True(item.UnitPrice.Equal(decimal.NewFromInt(100)))
	s.True(item.Quantity.Equal(decimal.NewFromInt(1)))
	s.True(item.TaxRate.Equal(decimal.NewFromInt(19)))
	s.Contains(item.Description, "Hosting Standard")
	s.Contains(item.Description, "2024-01-01")
	s.Contains(item.Description, "2024-01-31")

	s.True(inv.Subtotal.Equal(decimal.NewFromInt(100)))
	s.True(inv.TaxAmount.Equal(decimal.NewFromInt(19)))
	s.True(inv.Total.Equal(decimal.NewFromInt(119)))
	s.Equal(types.InvoiceStatusActive, inv.InvoiceStatus)
	s.Equal(billingDate.AddDate(0, 0, s.GetConfig().Billing.GraceDays), inv.DueDate)
	s.Equal("Berlin", inv.BillingAddress.City)
	s.NotEmpty(inv.InvoiceNumber)
}

func (s *InvoiceServiceSuite) TestAssembleInvoiceFallsBackToProductPrice() {
	s.testData.subscription.Price = decimal.Zero

	billingDate := time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC)
	inv, err := s.service.AssembleInvoice(s.GetContext(), s.testData.subscription,
		[]*dueschedule.DueSchedule{s.testData.schedule}, billingDate, types.InvoiceModeActive)
	s.NoError(err)
	s.True(inv.LineItems[0].UnitPrice.Equal(decimal.NewFromInt(80)))
}

func (s *InvoiceServiceSuite) TestAssembleInvoiceFailsWithoutPrice() {
	s.testData.subscription.Price = decimal.Zero
	s.testData.product.Price = decimal.Zero
	s.NoError(s.GetStores().ProductRepo.Update(s.GetContext(), s.testData.product))
	s.GetCache().Flush(s.GetContext())

	billingDate := time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC)
	_, err := s.service.AssembleInvoice(s.GetContext(), s.testData.subscription,
		[]*dueschedule.DueSchedule{s.testData.schedule}, billingDate, types.InvoiceModeActive)
	s.Error(err)
	s.True(ierr.IsPriceResolution(err))
}

func (s *InvoiceServiceSuite) TestAssembleInvoiceMarksOverduePeriods() {
	// Billing long after the due date flags the line, totals are unchanged
	billingDate := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	inv, err := s.service.AssembleInvoice(s.GetContext(), s.testData.subscription,
		[]*dueschedule.DueSchedule{s.testData.schedule}, billingDate, types.InvoiceModeActive)
	s.NoError(err)
	s.Contains(inv.LineItems[0].Description, "[overdue]")
	s.True(inv.Total.Equal(decimal.NewFromInt(119)))
}

func (s *InvoiceServiceSuite) TestAssembleInvoiceDraftMode() {
	billingDate := time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC)
	inv, err := s.service.AssembleInvoice(s.GetContext(), s.testData.subscription,
		[]*dueschedule.DueSchedule{s.testData.schedule}, billingDate, types.InvoiceModeDraft)
	s.NoError(err)
	s.Equal(types.InvoiceStatusDraft, inv.InvoiceStatus)
}

func (s *InvoiceServiceSuite) TestAssembleInvoiceRequiresPeriods() {
	billingDate := time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC)
	_, err := s.service.AssembleInvoice(s.GetContext(), s.testData.subscription,
		nil, billingDate, types.InvoiceModeActive)
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *InvoiceServiceSuite) TestFinalizeInvoice() {
	inv := s.assembleAndPersist(types.InvoiceModeDraft)

	finalized, err := s.service.FinalizeInvoice(s.GetContext(), inv.ID)
	s.NoError(err)
	s.Equal(types.InvoiceStatusActive, finalized.InvoiceStatus)

	// Finalizing twice is an invalid transition
	_, err = s.service.FinalizeInvoice(s.GetContext(), inv.ID)
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *InvoiceServiceSuite) TestCancelInvoiceCancelsOpenItems() {
	inv := s.assembleAndPersist(types.InvoiceModeActive)
	item := s.createOpenItem(inv.ID, decimal.Zero)

	cancelled, err := s.service.CancelInvoice(s.GetContext(), inv.ID)
	s.NoError(err)
	s.Equal(types.InvoiceStatusCancelled, cancelled.InvoiceStatus)

	got, err := s.GetStores().OpenItemRepo.Get(s.GetContext(), item)
	s.NoError(err)
	s.Equal(types.OpenItemStatusCancelled, got.ItemStatus)
}

func (s *InvoiceServiceSuite) TestCancelInvoiceRejectedWithPayments() {
	inv := s.assembleAndPersist(types.InvoiceModeActive)
	s.createOpenItem(inv.ID, decimal.NewFromInt(50))

	_, err := s.service.CancelInvoice(s.GetContext(), inv.ID)
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))

	got, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), inv.ID)
	s.NoError(err)
	s.Equal(types.InvoiceStatusActive, got.InvoiceStatus)
}

func (s *InvoiceServiceSuite) TestListInvoicesByStatus() {
	s.assembleAndPersist(types.InvoiceModeActive)
	s.assembleAndPersistForPeriod(types.InvoiceModeDraft,
		time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC))

	resp, err := s.service.ListInvoices(s.GetContext(), &types.InvoiceFilter{
		InvoiceStatus: []types.InvoiceStatus{types.InvoiceStatusDraft},
	})
	s.NoError(err)
	s.Equal(1, resp.Total)
	s.Equal(types.InvoiceStatusDraft, resp.Items[0].InvoiceStatus)
}

func (s *InvoiceServiceSuite) assembleAndPersist(mode types.InvoiceMode) *dto.InvoiceResponse {
	return s.assembleAndPersistForPeriod(mode,
		s.testData.schedule.PeriodStart, s.testData.schedule.PeriodEnd)
}

func (s *InvoiceServiceSuite) assembleAndPersistForPeriod(mode types.InvoiceMode, start, end time.Time) *dto.InvoiceResponse {
	schedule := &dueschedule.DueSchedule{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_DUE_SCHEDULE),
		ScheduleNumber: "DS-" + types.GenerateUUID(),
		SubscriptionID: s.testData.subscription.ID,
		PeriodStart:    start,
		PeriodEnd:      end,
		DueDate:        end.AddDate(0, 0, 14),
		ScheduleStatus: types.DueScheduleStatusActive,
		BaseModel:      types.GetDefaultBaseModel(s.GetContext()),
	}

	inv, err := s.service.AssembleInvoice(s.GetContext(), s.testData.subscription,
		[]*dueschedule.DueSchedule{schedule}, end.AddDate(0, 0, 15), mode)
	s.Require().NoError(err)
	s.Require().NoError(s.GetStores().InvoiceRepo.CreateWithLineItems(s.GetContext(), inv))
	return &dto.InvoiceResponse{Invoice: inv}
}

func (s *InvoiceServiceSuite) createOpenItem(invoiceID string, paid decimal.Decimal) string {
	status := types.OpenItemStatusOpen
	if paid.IsPositive() {
		status = types.OpenItemStatusPartiallyPaid
	}
	item := &openitem.OpenItem{
		ID:         types.GenerateUUIDWithPrefix(types.UUID_PREFIX_OPEN_ITEM),
		ItemNumber: "OI-" + types.GenerateUUID(),
		InvoiceID:  invoiceID,
		CustomerID: s.testData.customer.ID,
		Amount:     decimal.NewFromInt(119),
		PaidAmount: paid,
		DueDate:    time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		ItemStatus: status,
		BaseModel:  types.GetDefaultBaseModel(s.GetContext()),
	}
	s.Require().NoError(s.GetStores().OpenItemRepo.Create(s.GetContext(), item))
	return item.ID
}
