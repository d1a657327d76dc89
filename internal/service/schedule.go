package service

import (
	"context"
	"sort"
	"time"

	"github.com/billcycle/billcycle/internal/api/dto"
	"github.com/billcycle/billcycle/internal/domain/dueschedule"
	"github.com/billcycle/billcycle/internal/domain/subscription"
	ierr "github.com/billcycle/billcycle/internal/errors"
	"github.com/billcycle/billcycle/internal/idgen"
	"github.com/billcycle/billcycle/internal/publisher"
	"github.com/billcycle/billcycle/internal/types"
	"github.com/samber/lo"
)

// ScheduleService generates and maintains billing periods for subscriptions.
// Generated periods are contiguous and never overlap; every mutation runs
// through the same overlap validation.
type ScheduleService interface {
	// GeneratePeriods creates up to count new billing periods for the
	// subscription, continuing after the latest existing period. It stops
	// early when the subscription's end date is reached and truncates the
	// last period at that date.
	GeneratePeriods(ctx context.Context, subscriptionID string, count int) ([]*dto.DueScheduleResponse, error)

	// CreateSchedule creates a single period by hand
	CreateSchedule(ctx context.Context, req dto.CreateDueScheduleRequest) (*dto.DueScheduleResponse, error)

	// UpdateSchedule moves the boundaries of an existing period
	UpdateSchedule(ctx context.Context, id string, req dto.UpdateDueScheduleRequest) (*dto.DueScheduleResponse, error)

	// GetSchedule returns a single period
	GetSchedule(ctx context.Context, id string) (*dto.DueScheduleResponse, error)

	// ListSchedules returns all periods of a subscription ordered by period start
	ListSchedules(ctx context.Context, subscriptionID string) ([]*dto.DueScheduleResponse, error)

	// DeleteSchedule removes a period that never carried a paid invoice
	DeleteSchedule(ctx context.Context, id string) error

	// PauseSchedule, SuspendSchedule, ResumeSchedule and CancelSchedule run
	// single status transitions; resume returns both paused and suspended
	// periods to active
	PauseSchedule(ctx context.Context, id string) (*dto.DueScheduleResponse, error)
	SuspendSchedule(ctx context.Context, id string) (*dto.DueScheduleResponse, error)
	ResumeSchedule(ctx context.Context, id string) (*dto.DueScheduleResponse, error)
	CancelSchedule(ctx context.Context, id string) (*dto.DueScheduleResponse, error)

	// RepairGaps detects non-contiguous adjacent periods and synthesizes
	// filler periods to close each gap
	RepairGaps(ctx context.Context, subscriptionID string) (*dto.GapRepairResponse, error)

	// RetireFuturePeriods cancels all unprocessed periods starting after
	// the given date, used when a subscription is cancelled or expires
	RetireFuturePeriods(ctx context.Context, subscriptionID string, after time.Time) (int, error)

	// ProcessLifecycleEvent reacts to a subscription lifecycle event.
	// Handlers are idempotent: regeneration re-runs the overlap check and
	// retirement skips periods already terminal.
	ProcessLifecycleEvent(ctx context.Context, event *publisher.SubscriptionEvent) error
}

type scheduleService struct {
	ServiceParams
}

func NewScheduleService(params ServiceParams) ScheduleService {
	return &scheduleService{
		ServiceParams: params,
	}
}

func (s *scheduleService) GeneratePeriods(ctx context.Context, subscriptionID string, count int) ([]*dto.DueScheduleResponse, error) {
	if count <= 0 {
		return nil, ierr.NewError("period count must be positive").
			WithHint("Requested period count must be greater than zero").
			Mark(ierr.ErrValidation)
	}

	sub, err := s.SubRepo.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if !sub.IsBillable() {
		return nil, ierr.NewError("subscription not billable").
			WithHintf("Cannot generate periods for a %s subscription", sub.SubscriptionStatus).
			WithReportableDetails(map[string]any{
				"subscription_id": sub.ID,
				"status":          sub.SubscriptionStatus,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	existing, err := s.DueScheduleRepo.ListBySubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	start := nextPeriodStart(sub, existing)
	created := make([]*dueschedule.DueSchedule, 0, count)

	err = s.DB.WithTx(ctx, func(txCtx context.Context) error {
		for i := 0; i < count; i++ {
			// Stop once the subscription has ended
			if sub.EndDate != nil && start.After(*sub.EndDate) {
				break
			}

			end := sub.BillingCycle.PeriodEnd(start)
			if sub.EndDate != nil && end.After(*sub.EndDate) {
				// Truncate the last period at the subscription end date
				end = types.DateOnly(*sub.EndDate)
			}

			schedule, err := s.buildSchedule(txCtx, sub, start, end)
			if err != nil {
				return err
			}
			if err := s.validateNoOverlap(schedule, append(existing, created...), ""); err != nil {
				return err
			}

			created = append(created, schedule)
			start = types.NextDay(end)
		}

		if len(created) == 0 {
			return nil
		}
		return s.DueScheduleRepo.CreateBulk(txCtx, created)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("generated billing periods",
		"subscription_id", subscriptionID,
		"requested", count,
		"created", len(created),
	)

	return lo.Map(created, func(d *dueschedule.DueSchedule, _ int) *dto.DueScheduleResponse {
		return &dto.DueScheduleResponse{DueSchedule: d}
	}), nil
}

func (s *scheduleService) CreateSchedule(ctx context.Context, req dto.CreateDueScheduleRequest) (*dto.DueScheduleResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	sub, err := s.SubRepo.Get(ctx, req.SubscriptionID)
	if err != nil {
		return nil, err
	}

	schedule, err := s.buildSchedule(ctx, sub, types.DateOnly(req.PeriodStart), types.DateOnly(req.PeriodEnd))
	if err != nil {
		return nil, err
	}
	if req.DueDate != nil {
		schedule.DueDate = types.DateOnly(*req.DueDate)
	}
	if err := schedule.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.DueScheduleRepo.ListBySubscription(ctx, req.SubscriptionID)
	if err != nil {
		return nil, err
	}
	if err := s.validateNoOverlap(schedule, existing, ""); err != nil {
		return nil, err
	}

	if err := s.DueScheduleRepo.Create(ctx, schedule); err != nil {
		return nil, err
	}
	return &dto.DueScheduleResponse{DueSchedule: schedule}, nil
}

func (s *scheduleService) UpdateSchedule(ctx context.Context, id string, req dto.UpdateDueScheduleRequest) (*dto.DueScheduleResponse, error) {
	schedule, err := s.DueScheduleRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if schedule.Processed {
		return nil, ierr.NewError("schedule already invoiced").
			WithHintf("Due schedule %s has been invoiced and cannot be modified", schedule.ScheduleNumber).
			Mark(ierr.ErrInvalidOperation)
	}

	if req.PeriodStart != nil {
		schedule.PeriodStart = types.DateOnly(*req.PeriodStart)
	}
	if req.PeriodEnd != nil {
		schedule.PeriodEnd = types.DateOnly(*req.PeriodEnd)
	}
	if req.DueDate != nil {
		schedule.DueDate = types.DateOnly(*req.DueDate)
	}
	if err := schedule.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.DueScheduleRepo.ListBySubscription(ctx, schedule.SubscriptionID)
	if err != nil {
		return nil, err
	}
	// Exclude the schedule itself when updating
	if err := s.validateNoOverlap(schedule, existing, schedule.ID); err != nil {
		return nil, err
	}

	schedule.UpdatedAt = time.Now().UTC()
	schedule.UpdatedBy = types.GetUserID(ctx)
	if err := s.DueScheduleRepo.Update(ctx, schedule); err != nil {
		return nil, err
	}
	return &dto.DueScheduleResponse{DueSchedule: schedule}, nil
}

func (s *scheduleService) GetSchedule(ctx context.Context, id string) (*dto.DueScheduleResponse, error) {
	schedule, err := s.DueScheduleRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &dto.DueScheduleResponse{DueSchedule: schedule}, nil
}

func (s *scheduleService) ListSchedules(ctx context.Context, subscriptionID string) ([]*dto.DueScheduleResponse, error) {
	schedules, err := s.DueScheduleRepo.ListBySubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	sortSchedules(schedules)
	return lo.Map(schedules, func(d *dueschedule.DueSchedule, _ int) *dto.DueScheduleResponse {
		return &dto.DueScheduleResponse{DueSchedule: d}
	}), nil
}

func (s *scheduleService) DeleteSchedule(ctx context.Context, id string) error {
	schedule, err := s.DueScheduleRepo.Get(ctx, id)
	if err != nil {
		return err
	}

	// A schedule that carries a paid invoice is part of the books and must
	// never be deleted.
	if schedule.InvoiceID != nil {
		inv, err := s.InvoiceRepo.Get(ctx, *schedule.InvoiceID)
		if err != nil && !ierr.IsNotFound(err) {
			return err
		}
		if inv != nil && (inv.InvoiceStatus == types.InvoiceStatusPaid || inv.InvoiceStatus == types.InvoiceStatusPartiallyPaid) {
			return ierr.NewError("schedule carries a paid invoice").
				WithHintf("Due schedule %s references invoice %s with payments and cannot be deleted",
					schedule.ScheduleNumber, inv.InvoiceNumber).
				Mark(ierr.ErrInvalidOperation)
		}
	}

	return s.DueScheduleRepo.Delete(ctx, id)
}

func (s *scheduleService) PauseSchedule(ctx context.Context, id string) (*dto.DueScheduleResponse, error) {
	return s.transitionSchedule(ctx, id, types.DueScheduleStatusPaused)
}

func (s *scheduleService) SuspendSchedule(ctx context.Context, id string) (*dto.DueScheduleResponse, error) {
	return s.transitionSchedule(ctx, id, types.DueScheduleStatusSuspended)
}

func (s *scheduleService) ResumeSchedule(ctx context.Context, id string) (*dto.DueScheduleResponse, error) {
	return s.transitionSchedule(ctx, id, types.DueScheduleStatusActive)
}

func (s *scheduleService) CancelSchedule(ctx context.Context, id string) (*dto.DueScheduleResponse, error) {
	return s.transitionSchedule(ctx, id, types.DueScheduleStatusCancelled)
}

func (s *scheduleService) transitionSchedule(ctx context.Context, id string, target types.DueScheduleStatus) (*dto.DueScheduleResponse, error) {
	schedule, err := s.DueScheduleRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := schedule.ScheduleStatus.CanTransitionTo(target); err != nil {
		return nil, err
	}

	schedule.ScheduleStatus = target
	schedule.UpdatedAt = time.Now().UTC()
	schedule.UpdatedBy = types.GetUserID(ctx)
	if err := s.DueScheduleRepo.Update(ctx, schedule); err != nil {
		return nil, err
	}
	return &dto.DueScheduleResponse{DueSchedule: schedule}, nil
}

func (s *scheduleService) RepairGaps(ctx context.Context, subscriptionID string) (*dto.GapRepairResponse, error) {
	sub, err := s.SubRepo.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	existing, err := s.DueScheduleRepo.ListBySubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	sortSchedules(existing)

	created := make([]*dueschedule.DueSchedule, 0)
	err = s.DB.WithTx(ctx, func(txCtx context.Context) error {
		for i := 0; i < len(existing)-1; i++ {
			expectedNext := types.NextDay(existing[i].PeriodEnd)
			if expectedNext.Equal(existing[i+1].PeriodStart) {
				continue
			}

			gapEnd := existing[i+1].PeriodStart.AddDate(0, 0, -1)
			filler, err := s.buildSchedule(txCtx, sub, expectedNext, gapEnd)
			if err != nil {
				return err
			}
			if err := s.validateNoOverlap(filler, append(existing, created...), ""); err != nil {
				return err
			}
			created = append(created, filler)
		}

		if len(created) == 0 {
			return nil
		}
		return s.DueScheduleRepo.CreateBulk(txCtx, created)
	})
	if err != nil {
		return nil, err
	}

	if len(created) > 0 {
		s.Logger.Infow("repaired schedule gaps",
			"subscription_id", subscriptionID,
			"fillers_created", len(created),
		)
	}

	return &dto.GapRepairResponse{
		SubscriptionID: subscriptionID,
		Created: lo.Map(created, func(d *dueschedule.DueSchedule, _ int) *dto.DueScheduleResponse {
			return &dto.DueScheduleResponse{DueSchedule: d}
		}),
	}, nil
}

func (s *scheduleService) RetireFuturePeriods(ctx context.Context, subscriptionID string, after time.Time) (int, error) {
	schedules, err := s.DueScheduleRepo.ListBySubscription(ctx, subscriptionID)
	if err != nil {
		return 0, err
	}

	retired := 0
	err = s.DB.WithTx(ctx, func(txCtx context.Context) error {
		for _, schedule := range schedules {
			if schedule.Processed || !schedule.PeriodStart.After(after) {
				continue
			}
			// Skip periods already terminal so retirement is idempotent
			if schedule.ScheduleStatus.CanTransitionTo(types.DueScheduleStatusCancelled) != nil {
				continue
			}

			schedule.ScheduleStatus = types.DueScheduleStatusCancelled
			schedule.UpdatedAt = time.Now().UTC()
			schedule.UpdatedBy = types.GetUserID(txCtx)
			if err := s.DueScheduleRepo.Update(txCtx, schedule); err != nil {
				return err
			}
			retired++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if retired > 0 {
		s.Logger.Infow("retired future billing periods",
			"subscription_id", subscriptionID,
			"retired", retired,
		)
	}
	return retired, nil
}

func (s *scheduleService) ProcessLifecycleEvent(ctx context.Context, event *publisher.SubscriptionEvent) error {
	switch event.EventType {
	case types.SubscriptionEventCreated, types.SubscriptionEventRenewed:
		sub, err := s.SubRepo.Get(ctx, event.SubscriptionID)
		if err != nil {
			return err
		}
		if !sub.IsBillable() {
			return nil
		}
		_, err = s.GeneratePeriods(ctx, event.SubscriptionID, 1)
		return err
	case types.SubscriptionEventCancelled, types.SubscriptionEventExpired:
		_, err := s.RetireFuturePeriods(ctx, event.SubscriptionID, time.Now().UTC())
		return err
	default:
		s.Logger.Warnw("ignoring unknown subscription event",
			"event_type", event.EventType,
			"subscription_id", event.SubscriptionID,
		)
		return nil
	}
}

// buildSchedule assembles an unsaved schedule with a fresh number and the
// configured grace window applied to the due date.
func (s *scheduleService) buildSchedule(ctx context.Context, sub *subscription.Subscription, start, end time.Time) (*dueschedule.DueSchedule, error) {
	number, err := s.IDGen.Generate(ctx, idgen.KindDueSchedule)
	if err != nil {
		return nil, err
	}

	schedule := &dueschedule.DueSchedule{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_DUE_SCHEDULE),
		ScheduleNumber: number,
		SubscriptionID: sub.ID,
		PeriodStart:    types.DateOnly(start),
		PeriodEnd:      types.DateOnly(end),
		DueDate:        types.DateOnly(end).AddDate(0, 0, s.Config.Billing.GraceDays),
		ScheduleStatus: types.DueScheduleStatusActive,
		BaseModel:      types.GetDefaultBaseModel(ctx),
	}
	if err := schedule.Validate(); err != nil {
		return nil, err
	}
	return schedule, nil
}

// validateNoOverlap rejects a period intersecting any existing period of the
// same subscription. Cancelled periods do not block their date range;
// excludeID skips the schedule itself on updates.
func (s *scheduleService) validateNoOverlap(candidate *dueschedule.DueSchedule, existing []*dueschedule.DueSchedule, excludeID string) error {
	for _, other := range existing {
		if other.ID == excludeID || other.ID == candidate.ID {
			continue
		}
		if other.ScheduleStatus == types.DueScheduleStatusCancelled {
			continue
		}
		if other.OverlapsWith(candidate.PeriodStart, candidate.PeriodEnd) {
			return ierr.NewError("billing period overlap").
				WithHintf("Period %s to %s overlaps existing schedule %s",
					types.FormatDate(candidate.PeriodStart),
					types.FormatDate(candidate.PeriodEnd),
					other.ScheduleNumber).
				WithReportableDetails(map[string]any{
					"subscription_id":     candidate.SubscriptionID,
					"conflicting_number":  other.ScheduleNumber,
					"conflicting_start":   other.PeriodStart,
					"conflicting_end":     other.PeriodEnd,
				}).
				Mark(ierr.ErrValidation)
		}
	}
	return nil
}

// nextPeriodStart determines where generation continues: the day after the
// latest existing period end, or the subscription start date if no periods
// exist yet.
func nextPeriodStart(sub *subscription.Subscription, existing []*dueschedule.DueSchedule) time.Time {
	start := types.DateOnly(sub.StartDate)
	for _, schedule := range existing {
		if schedule.ScheduleStatus == types.DueScheduleStatusCancelled {
			continue
		}
		if candidate := types.NextDay(schedule.PeriodEnd); candidate.After(start) {
			start = candidate
		}
	}
	return start
}

func sortSchedules(schedules []*dueschedule.DueSchedule) {
	sort.Slice(schedules, func(i, j int) bool {
		return schedules[i].PeriodStart.Before(schedules[j].PeriodStart)
	})
}
