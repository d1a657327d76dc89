package service

import (
	"testing"
	"time"

	"github.com/billcycle/billcycle/internal/api/dto"
	"github.com/billcycle/billcycle/internal/domain/contract"
	"github.com/billcycle/billcycle/internal/domain/customer"
	"github.com/billcycle/billcycle/internal/domain/product"
	ierr "github.com/billcycle/billcycle/internal/errors"
	"github.com/billcycle/billcycle/internal/publisher"
	"github.com/billcycle/billcycle/internal/testutil"
	"github.com/billcycle/billcycle/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type SubscriptionServiceSuite struct {
	testutil.BaseServiceTestSuite
	service     SubscriptionService
	scheduleSvc ScheduleService
	testData    struct {
		customer *customer.Customer
		product  *product.Product
		contract *contract.Contract
	}
}

func TestSubscriptionService(t *testing.T) {
	suite.Run(t, new(SubscriptionServiceSuite))
}

func (s *SubscriptionServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	params := ServiceParams{
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
	s.scheduleSvc = NewScheduleService(params)
	s.service = NewSubscriptionService(params, s.scheduleSvc)
	s.setupTestData()
}

func (s *SubscriptionServiceSuite) setupTestData() {
	s.testData.customer = &customer.Customer{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_CUSTOMER),
		Name:      "Acme GmbH",
		Email:     "billing@acme.test",
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
}

func (s *SubscriptionServiceSuite) createRequest() dto.CreateSubscriptionRequest {
	return dto.CreateSubscriptionRequest{
		Name:         "Hosting Standard",
		CustomerID:   s.testData.customer.ID,
		ContractID:   s.testData.contract.ID,
		ProductID:    s.testData.product.ID,
		Price:        decimal.NewFromInt(100),
		BillingCycle: types.BillingCycleMonthly,
		StartDate:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (s *SubscriptionServiceSuite) TestCreateSubscriptionWithPeriods() {
	req := s.createRequest()
	req.PeriodCount = 3

	resp, err := s.service.CreateSubscription(s.GetContext(), req)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusActive, resp.SubscriptionStatus)

	schedules, err := s.GetStores().DueScheduleRepo.ListBySubscription(s.GetContext(), resp.ID)
	s.NoError(err)
	s.Len(schedules, 3)
}

func (s *SubscriptionServiceSuite) TestCreateSubscriptionRejectsUnknownCustomer() {
	req := s.createRequest()
	req.CustomerID = "cust_missing"

	_, err := s.service.CreateSubscription(s.GetContext(), req)
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *SubscriptionServiceSuite) TestRenewSubscriptionExtendsAndGenerates() {
	resp, err := s.service.CreateSubscription(s.GetContext(), s.createRequest())
	s.NoError(err)

	endDate := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
	renewed, err := s.service.RenewSubscription(s.GetContext(), resp.ID, dto.RenewSubscriptionRequest{
		EndDate:     &endDate,
		PeriodCount: 2,
	})
	s.NoError(err)
	s.Require().NotNil(renewed.EndDate)
	s.Equal(endDate, *renewed.EndDate)

	schedules, err := s.GetStores().DueScheduleRepo.ListBySubscription(s.GetContext(), resp.ID)
	s.NoError(err)
	s.Len(schedules, 2)
}

func (s *SubscriptionServiceSuite) TestCancelSubscriptionRetiresFuturePeriods() {
	req := s.createRequest()
	req.StartDate = types.DateOnly(s.GetNow()).AddDate(0, 1, 0)
	req.PeriodCount = 3

	resp, err := s.service.CreateSubscription(s.GetContext(), req)
	s.NoError(err)

	cancelled, err := s.service.CancelSubscription(s.GetContext(), resp.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusCancelled, cancelled.SubscriptionStatus)

	schedules, err := s.GetStores().DueScheduleRepo.ListBySubscription(s.GetContext(), resp.ID)
	s.NoError(err)
	for _, schedule := range schedules {
		s.Equal(types.DueScheduleStatusCancelled, schedule.ScheduleStatus)
	}

	// Cancelled is terminal
	_, err = s.service.ResumeSubscription(s.GetContext(), resp.ID)
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *SubscriptionServiceSuite) TestPauseAndResume() {
	resp, err := s.service.CreateSubscription(s.GetContext(), s.createRequest())
	s.NoError(err)

	paused, err := s.service.PauseSubscription(s.GetContext(), resp.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusPaused, paused.SubscriptionStatus)

	// Paused subscriptions generate no new periods
	_, err = s.scheduleSvc.GeneratePeriods(s.GetContext(), resp.ID, 1)
	s.Error(err)

	resumed, err := s.service.ResumeSubscription(s.GetContext(), resp.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusActive, resumed.SubscriptionStatus)
}

func (s *SubscriptionServiceSuite) TestExpireSubscription() {
	req := s.createRequest()
	endDate := types.DateOnly(s.GetNow()).AddDate(0, 0, -1)
	req.EndDate = &endDate

	resp, err := s.service.CreateSubscription(s.GetContext(), req)
	s.NoError(err)

	expired, err := s.service.ExpireSubscription(s.GetContext(), resp.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusExpired, expired.SubscriptionStatus)
}

func (s *SubscriptionServiceSuite) TestExpireSubscriptionRejectedBeforeEndDate() {
	req := s.createRequest()
	endDate := types.DateOnly(s.GetNow()).AddDate(1, 0, 0)
	req.EndDate = &endDate

	resp, err := s.service.CreateSubscription(s.GetContext(), req)
	s.NoError(err)

	_, err = s.service.ExpireSubscription(s.GetContext(), resp.ID)
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *SubscriptionServiceSuite) TestProcessLifecycleEventGeneratesPeriod() {
	resp, err := s.service.CreateSubscription(s.GetContext(), s.createRequest())
	s.NoError(err)

	err = s.scheduleSvc.ProcessLifecycleEvent(s.GetContext(), &publisher.SubscriptionEvent{
		ID:             types.GenerateUUID(),
		EventType:      types.SubscriptionEventCreated,
		SubscriptionID: resp.ID,
		TenantID:       types.GetTenantID(s.GetContext()),
		Timestamp:      s.GetNow(),
	})
	s.NoError(err)

	schedules, err := s.GetStores().DueScheduleRepo.ListBySubscription(s.GetContext(), resp.ID)
	s.NoError(err)
	s.Len(schedules, 1)
}
