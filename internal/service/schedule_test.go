package service

import (
	"testing"
	"time"

	"github.com/billcycle/billcycle/internal/api/dto"
	"github.com/billcycle/billcycle/internal/domain/contract"
	"github.com/billcycle/billcycle/internal/domain/customer"
	"github.com/billcycle/billcycle/internal/domain/dueschedule"
	"github.com/billcycle/billcycle/internal/domain/product"
	"github.com/billcycle/billcycle/internal/domain/subscription"
	ierr "github.com/billcycle/billcycle/internal/errors"
	"github.com/billcycle/billcycle/internal/testutil"
	"github.com/billcycle/billcycle/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type ScheduleServiceSuite struct {
	testutil.BaseServiceTestSuite
	service  ScheduleService
	testData struct {
		customer     *customer.Customer
		product      *product.Product
		contract     *contract.Contract
		subscription *subscription.Subscription
	}
}

func TestScheduleService(t *testing.T) {
	suite.Run(t, new(ScheduleServiceSuite))
}

func (s *ScheduleServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewScheduleService(s.serviceParams())
	s.setupTestData()
}

func (s *ScheduleServiceSuite) serviceParams() ServiceParams {
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

func (s *ScheduleServiceSuite) setupTestData() {
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

	s.testData.subscription = &subscription.Subscription{
		ID:                 types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		Name:               "Hosting Standard",
		ContractID:         s.testData.contract.ID,
		CustomerID:         s.testData.customer.ID,
		ProductID:          s.testData.product.ID,
		Price:              decimal.NewFromInt(100),
		BillingCycle:       types.BillingCycleMonthly,
		StartDate:          time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		SubscriptionStatus: types.SubscriptionStatusActive,
		BaseModel:          types.GetDefaultBaseModel(s.GetContext()),
	}
	s.NoError(s.GetStores().SubRepo.Create(s.GetContext(), s.testData.subscription))
}

func (s *ScheduleServiceSuite) TestGeneratePeriodsMonthly() {
	periods, err := s.service.GeneratePeriods(s.GetContext(), s.testData.subscription.ID, 3)
	s.NoError(err)
	s.Len(periods, 3)

	s.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), periods[0].PeriodStart)
	s.Equal(time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), periods[0].PeriodEnd)
	s.Equal(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), periods[1].PeriodStart)
	s.Equal(time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), periods[1].PeriodEnd)
	s.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), periods[2].PeriodStart)
	s.Equal(time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), periods[2].PeriodEnd)

	// Due date is period end plus the grace window
	for _, p := range periods {
		s.Equal(p.PeriodEnd.AddDate(0, 0, s.GetConfig().Billing.GraceDays), p.DueDate)
		s.Equal(types.DueScheduleStatusActive, p.ScheduleStatus)
		s.False(p.Processed)
		s.NotEmpty(p.ScheduleNumber)
	}
}

func (s *ScheduleServiceSuite) TestGeneratePeriodsContiguity() {
	first, err := s.service.GeneratePeriods(s.GetContext(), s.testData.subscription.ID, 2)
	s.NoError(err)
	s.Len(first, 2)

	// A second generation continues after the latest existing period
	second, err := s.service.GeneratePeriods(s.GetContext(), s.testData.subscription.ID, 2)
	s.NoError(err)
	s.Len(second, 2)

	all, err := s.service.ListSchedules(s.GetContext(), s.testData.subscription.ID)
	s.NoError(err)
	s.Len(all, 4)
	for i := 0; i < len(all)-1; i++ {
		s.Equal(all[i].PeriodEnd.AddDate(0, 0, 1), all[i+1].PeriodStart,
			"periods must be contiguous")
	}
}

func (s *ScheduleServiceSuite) TestGeneratePeriodsQuarterly() {
	s.testData.subscription.BillingCycle = types.BillingCycleQuarterly
	s.NoError(s.GetStores().SubRepo.Update(s.GetContext(), s.testData.subscription))

	periods, err := s.service.GeneratePeriods(s.GetContext(), s.testData.subscription.ID, 2)
	s.NoError(err)
	s.Len(periods, 2)
	s.Equal(time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), periods[0].PeriodEnd)
	s.Equal(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), periods[1].PeriodStart)
	s.Equal(time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC), periods[1].PeriodEnd)
}

func (s *ScheduleServiceSuite) TestGeneratePeriodsTruncatesAtEndDate() {
	endDate := time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC)
	s.testData.subscription.EndDate = &endDate
	s.NoError(s.GetStores().SubRepo.Update(s.GetContext(), s.testData.subscription))

	periods, err := s.service.GeneratePeriods(s.GetContext(), s.testData.subscription.ID, 5)
	s.NoError(err)
	s.Len(periods, 2)
	s.Equal(time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), periods[0].PeriodEnd)
	// Last period is cut at the subscription end date
	s.Equal(time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC), periods[1].PeriodEnd)
}

func (s *ScheduleServiceSuite) TestGeneratePeriodsRejectsNonBillable() {
	s.testData.subscription.SubscriptionStatus = types.SubscriptionStatusCancelled
	s.NoError(s.GetStores().SubRepo.Update(s.GetContext(), s.testData.subscription))

	_, err := s.service.GeneratePeriods(s.GetContext(), s.testData.subscription.ID, 1)
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *ScheduleServiceSuite) TestCreateScheduleRejectsOverlap() {
	existing, err := s.service.GeneratePeriods(s.GetContext(), s.testData.subscription.ID, 1)
	s.NoError(err)
	s.Len(existing, 1)

	_, err = s.service.CreateSchedule(s.GetContext(), dto.CreateDueScheduleRequest{
		SubscriptionID: s.testData.subscription.ID,
		PeriodStart:    time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		PeriodEnd:      time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC),
	})
	s.Error(err)
	s.True(ierr.IsValidation(err))
	// The error names the conflicting period
	s.Contains(ierr.Hint(err), existing[0].ScheduleNumber)
}

func (s *ScheduleServiceSuite) TestCreateScheduleAdjacentPeriodsAllowed() {
	_, err := s.service.CreateSchedule(s.GetContext(), dto.CreateDueScheduleRequest{
		SubscriptionID: s.testData.subscription.ID,
		PeriodStart:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:      time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
	})
	s.NoError(err)

	// Touching on adjacent days is not an overlap
	_, err = s.service.CreateSchedule(s.GetContext(), dto.CreateDueScheduleRequest{
		SubscriptionID: s.testData.subscription.ID,
		PeriodStart:    time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:      time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
	})
	s.NoError(err)
}

func (s *ScheduleServiceSuite) TestUpdateScheduleExcludesSelfFromOverlapCheck() {
	periods, err := s.service.GeneratePeriods(s.GetContext(), s.testData.subscription.ID, 1)
	s.NoError(err)

	newEnd := time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)
	updated, err := s.service.UpdateSchedule(s.GetContext(), periods[0].ID, dto.UpdateDueScheduleRequest{
		PeriodEnd: &newEnd,
	})
	s.NoError(err)
	s.Equal(newEnd, updated.PeriodEnd)
}

func (s *ScheduleServiceSuite) TestUpdateScheduleRejectsProcessed() {
	periods, err := s.service.GeneratePeriods(s.GetContext(), s.testData.subscription.ID, 1)
	s.NoError(err)

	schedule, err := s.GetStores().DueScheduleRepo.Get(s.GetContext(), periods[0].ID)
	s.NoError(err)
	schedule.Processed = true
	s.NoError(s.GetStores().DueScheduleRepo.Update(s.GetContext(), schedule))

	newEnd := time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)
	_, err = s.service.UpdateSchedule(s.GetContext(), periods[0].ID, dto.UpdateDueScheduleRequest{
		PeriodEnd: &newEnd,
	})
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *ScheduleServiceSuite) TestRepairGapsSynthesizesFiller() {
	_, err := s.service.CreateSchedule(s.GetContext(), dto.CreateDueScheduleRequest{
		SubscriptionID: s.testData.subscription.ID,
		PeriodStart:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:      time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
	})
	s.NoError(err)
	_, err = s.service.CreateSchedule(s.GetContext(), dto.CreateDueScheduleRequest{
		SubscriptionID: s.testData.subscription.ID,
		PeriodStart:    time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:      time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
	})
	s.NoError(err)

	result, err := s.service.RepairGaps(s.GetContext(), s.testData.subscription.ID)
	s.NoError(err)
	s.Len(result.Created, 1)
	s.Equal(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), result.Created[0].PeriodStart)
	s.Equal(time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), result.Created[0].PeriodEnd)

	// A second repair finds nothing left to fill
	again, err := s.service.RepairGaps(s.GetContext(), s.testData.subscription.ID)
	s.NoError(err)
	s.Len(again.Created, 0)
}

func (s *ScheduleServiceSuite) TestScheduleStatusTransitions() {
	periods, err := s.service.GeneratePeriods(s.GetContext(), s.testData.subscription.ID, 1)
	s.NoError(err)
	id := periods[0].ID

	paused, err := s.service.PauseSchedule(s.GetContext(), id)
	s.NoError(err)
	s.Equal(types.DueScheduleStatusPaused, paused.ScheduleStatus)

	resumed, err := s.service.ResumeSchedule(s.GetContext(), id)
	s.NoError(err)
	s.Equal(types.DueScheduleStatusActive, resumed.ScheduleStatus)

	// Suspension blocks the period until it is resumed or cancelled
	suspended, err := s.service.SuspendSchedule(s.GetContext(), id)
	s.NoError(err)
	s.Equal(types.DueScheduleStatusSuspended, suspended.ScheduleStatus)

	// Paused is not reachable from suspended
	_, err = s.service.PauseSchedule(s.GetContext(), id)
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))

	resumed, err = s.service.ResumeSchedule(s.GetContext(), id)
	s.NoError(err)
	s.Equal(types.DueScheduleStatusActive, resumed.ScheduleStatus)

	cancelled, err := s.service.CancelSchedule(s.GetContext(), id)
	s.NoError(err)
	s.Equal(types.DueScheduleStatusCancelled, cancelled.ScheduleStatus)

	// Cancelled is terminal
	_, err = s.service.ResumeSchedule(s.GetContext(), id)
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *ScheduleServiceSuite) TestRetireFuturePeriods() {
	periods, err := s.service.GeneratePeriods(s.GetContext(), s.testData.subscription.ID, 3)
	s.NoError(err)
	s.Len(periods, 3)

	retired, err := s.service.RetireFuturePeriods(s.GetContext(), s.testData.subscription.ID,
		time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	s.NoError(err)
	s.Equal(2, retired)

	// Retirement is idempotent
	retired, err = s.service.RetireFuturePeriods(s.GetContext(), s.testData.subscription.ID,
		time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	s.NoError(err)
	s.Equal(0, retired)
}

func (s *ScheduleServiceSuite) TestDeleteScheduleGuardsPaidInvoice() {
	periods, err := s.service.GeneratePeriods(s.GetContext(), s.testData.subscription.ID, 1)
	s.NoError(err)

	inv := s.postInvoiceForSchedule(periods[0].ID, types.InvoiceStatusPaid)
	s.NotNil(inv)

	err = s.service.DeleteSchedule(s.GetContext(), periods[0].ID)
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *ScheduleServiceSuite) postInvoiceForSchedule(scheduleID string, status types.InvoiceStatus) string {
	invoiceSvc := NewInvoiceService(s.serviceParams())

	schedule, err := s.GetStores().DueScheduleRepo.Get(s.GetContext(), scheduleID)
	s.NoError(err)

	inv, err := invoiceSvc.AssembleInvoice(s.GetContext(), s.testData.subscription,
		[]*dueschedule.DueSchedule{schedule}, schedule.DueDate, types.InvoiceModeActive)
	s.NoError(err)
	inv.InvoiceStatus = status
	s.NoError(s.GetStores().InvoiceRepo.CreateWithLineItems(s.GetContext(), inv))

	schedule.Processed = true
	schedule.InvoiceID = &inv.ID
	s.NoError(s.GetStores().DueScheduleRepo.Update(s.GetContext(), schedule))
	return inv.ID
}
