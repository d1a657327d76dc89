package dto

import (
	"time"

	"github.com/billcycle/billcycle/internal/domain/dueschedule"
	ierr "github.com/billcycle/billcycle/internal/errors"
)

// CreateDueScheduleRequest creates a single billing period by hand. The
// period runs through the same overlap validation as generated periods.
type CreateDueScheduleRequest struct {
	SubscriptionID string    `json:"subscription_id" validate:"required"`
	PeriodStart    time.Time `json:"period_start" validate:"required"`
	PeriodEnd      time.Time `json:"period_end" validate:"required"`
	// DueDate defaults to period end plus the configured grace window
	DueDate *time.Time `json:"due_date,omitempty"`
}

func (r *CreateDueScheduleRequest) Validate() error {
	if r.PeriodEnd.Before(r.PeriodStart) {
		return ierr.NewError("period end before period start").
			WithHint("Period end cannot precede period start").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// UpdateDueScheduleRequest moves the boundaries of an existing period.
type UpdateDueScheduleRequest struct {
	PeriodStart *time.Time `json:"period_start,omitempty"`
	PeriodEnd   *time.Time `json:"period_end,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

// DueScheduleResponse represents a billing period in API responses
type DueScheduleResponse struct {
	*dueschedule.DueSchedule
}

// GapRepairResponse reports the filler periods synthesized by a gap repair.
type GapRepairResponse struct {
	SubscriptionID string                 `json:"subscription_id"`
	Created        []*DueScheduleResponse `json:"created"`
}
