package service

import (
	"context"
	"time"

	"github.com/billcycle/billcycle/internal/api/dto"
	ierr "github.com/billcycle/billcycle/internal/errors"
	"github.com/billcycle/billcycle/internal/types"
	"github.com/billcycle/billcycle/internal/validator"
)

// SubscriptionService manages subscription lifecycle and publishes the
// resulting events. The period scheduler reacts to those events; period
// generation here is a convenience for callers that want periods up front.
type SubscriptionService interface {
	// CreateSubscription creates a subscription and optionally its first
	// run of billing periods
	CreateSubscription(ctx context.Context, req dto.CreateSubscriptionRequest) (*dto.SubscriptionResponse, error)

	// RenewSubscription extends the end date and generates further periods
	RenewSubscription(ctx context.Context, id string, req dto.RenewSubscriptionRequest) (*dto.SubscriptionResponse, error)

	// PauseSubscription and ResumeSubscription toggle billing eligibility
	PauseSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error)
	ResumeSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error)

	// CancelSubscription ends the commitment and retires future periods
	CancelSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error)

	// ExpireSubscription marks a subscription past its end date as expired
	ExpireSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error)

	// GetSubscription returns a single subscription
	GetSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error)

	// ListSubscriptions returns subscriptions matching the filter
	ListSubscriptions(ctx context.Context, filter *types.SubscriptionFilter) ([]*dto.SubscriptionResponse, error)
}

type subscriptionService struct {
	ServiceParams
	scheduleService ScheduleService
}

func NewSubscriptionService(params ServiceParams, scheduleService ScheduleService) SubscriptionService {
	return &subscriptionService{
		ServiceParams:   params,
		scheduleService: scheduleService,
	}
}

func (s *subscriptionService) CreateSubscription(ctx context.Context, req dto.CreateSubscriptionRequest) (*dto.SubscriptionResponse, error) {
	if err := validator.ValidateRequest(&req); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.CustomerRepo.Get(ctx, req.CustomerID); err != nil {
		return nil, err
	}
	if _, err := s.ProductRepo.Get(ctx, req.ProductID); err != nil {
		return nil, err
	}
	if _, err := s.ContractRepo.Get(ctx, req.ContractID); err != nil {
		return nil, err
	}

	sub := req.ToSubscription(types.GetDefaultBaseModel(ctx))
	if err := sub.Validate(); err != nil {
		return nil, err
	}
	if err := s.SubRepo.Create(ctx, sub); err != nil {
		return nil, err
	}

	if req.PeriodCount > 0 {
		if _, err := s.scheduleService.GeneratePeriods(ctx, sub.ID, req.PeriodCount); err != nil {
			return nil, err
		}
	}

	s.publishEvent(ctx, types.SubscriptionEventCreated, sub.ID)
	return &dto.SubscriptionResponse{Subscription: sub}, nil
}

func (s *subscriptionService) RenewSubscription(ctx context.Context, id string, req dto.RenewSubscriptionRequest) (*dto.SubscriptionResponse, error) {
	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sub.IsBillable() {
		return nil, ierr.NewError("subscription not renewable").
			WithHintf("Cannot renew a %s subscription", sub.SubscriptionStatus).
			Mark(ierr.ErrInvalidOperation)
	}

	if req.EndDate != nil {
		if req.EndDate.Before(sub.StartDate) {
			return nil, ierr.NewError("end_date before start_date").
				WithHint("Renewed end date cannot precede the subscription start date").
				Mark(ierr.ErrValidation)
		}
		sub.EndDate = req.EndDate
		sub.UpdatedAt = time.Now().UTC()
		sub.UpdatedBy = types.GetUserID(ctx)
		if err := s.SubRepo.Update(ctx, sub); err != nil {
			return nil, err
		}
	}

	if req.PeriodCount > 0 {
		if _, err := s.scheduleService.GeneratePeriods(ctx, sub.ID, req.PeriodCount); err != nil {
			return nil, err
		}
	}

	s.publishEvent(ctx, types.SubscriptionEventRenewed, sub.ID)
	return &dto.SubscriptionResponse{Subscription: sub}, nil
}

func (s *subscriptionService) PauseSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error) {
	return s.transition(ctx, id, types.SubscriptionStatusPaused, "")
}

func (s *subscriptionService) ResumeSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error) {
	return s.transition(ctx, id, types.SubscriptionStatusActive, "")
}

func (s *subscriptionService) CancelSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error) {
	resp, err := s.transition(ctx, id, types.SubscriptionStatusCancelled, types.SubscriptionEventCancelled)
	if err != nil {
		return nil, err
	}
	if _, err := s.scheduleService.RetireFuturePeriods(ctx, id, time.Now().UTC()); err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *subscriptionService) ExpireSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error) {
	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.EndDate == nil || sub.EndDate.After(time.Now().UTC()) {
		return nil, ierr.NewError("subscription not past its end date").
			WithHintf("Subscription %s has not reached its end date", sub.ID).
			Mark(ierr.ErrInvalidOperation)
	}

	resp, err := s.transition(ctx, id, types.SubscriptionStatusExpired, types.SubscriptionEventExpired)
	if err != nil {
		return nil, err
	}
	if _, err := s.scheduleService.RetireFuturePeriods(ctx, id, *sub.EndDate); err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *subscriptionService) transition(ctx context.Context, id string, target types.SubscriptionStatus, event types.SubscriptionEventType) (*dto.SubscriptionResponse, error) {
	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := sub.SubscriptionStatus.CanTransitionTo(target); err != nil {
		return nil, err
	}

	sub.SubscriptionStatus = target
	sub.UpdatedAt = time.Now().UTC()
	sub.UpdatedBy = types.GetUserID(ctx)
	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return nil, err
	}

	if event != "" {
		s.publishEvent(ctx, event, sub.ID)
	}
	return &dto.SubscriptionResponse{Subscription: sub}, nil
}

func (s *subscriptionService) GetSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error) {
	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &dto.SubscriptionResponse{Subscription: sub}, nil
}

func (s *subscriptionService) ListSubscriptions(ctx context.Context, filter *types.SubscriptionFilter) ([]*dto.SubscriptionResponse, error) {
	subs, err := s.SubRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	resp := make([]*dto.SubscriptionResponse, 0, len(subs))
	for _, sub := range subs {
		resp = append(resp, &dto.SubscriptionResponse{Subscription: sub})
	}
	return resp, nil
}

// publishEvent pushes a lifecycle event. Publishing failures are logged and
// never propagated into the triggering operation.
func (s *subscriptionService) publishEvent(ctx context.Context, eventType types.SubscriptionEventType, subscriptionID string) {
	if err := s.EventPublisher.Publish(ctx, eventType, subscriptionID); err != nil {
		s.Logger.Errorw("failed to publish subscription event",
			"event_type", eventType,
			"subscription_id", subscriptionID,
			"error", err,
		)
	}
}
