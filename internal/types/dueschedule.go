package types

import (
	"time"

	ierr "github.com/billcycle/billcycle/internal/errors"
	"github.com/samber/lo"
)

// DueScheduleStatus is the status of a single billing period
type DueScheduleStatus string

const (
	// DueScheduleStatusActive indicates the period is billable once its due date is reached
	DueScheduleStatusActive DueScheduleStatus = "ACTIVE"
	// DueScheduleStatusPaused indicates billing for the period is temporarily withheld
	DueScheduleStatusPaused DueScheduleStatus = "PAUSED"
	// DueScheduleStatusSuspended indicates the period is blocked pending clarification
	DueScheduleStatusSuspended DueScheduleStatus = "SUSPENDED"
	// DueScheduleStatusCompleted indicates the period has been invoiced; terminal
	DueScheduleStatusCompleted DueScheduleStatus = "COMPLETED"
	// DueScheduleStatusCancelled indicates the period was retired without invoicing; terminal
	DueScheduleStatusCancelled DueScheduleStatus = "CANCELLED"
)

func (s DueScheduleStatus) String() string {
	return string(s)
}

func (s DueScheduleStatus) Validate() error {
	allowed := []DueScheduleStatus{
		DueScheduleStatusActive,
		DueScheduleStatusPaused,
		DueScheduleStatusSuspended,
		DueScheduleStatusCompleted,
		DueScheduleStatusCancelled,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid due schedule status").
			WithHint("Invalid due schedule status").
			WithReportableDetails(map[string]any{
				"status":         s,
				"allowed_status": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// dueScheduleStatusTransitions is the single allowed-transition table for
// billing periods. Only the billing batch runner moves a period into
// COMPLETED.
var dueScheduleStatusTransitions = map[DueScheduleStatus][]DueScheduleStatus{
	DueScheduleStatusActive:    {DueScheduleStatusPaused, DueScheduleStatusSuspended, DueScheduleStatusCompleted, DueScheduleStatusCancelled},
	DueScheduleStatusPaused:    {DueScheduleStatusActive, DueScheduleStatusCancelled},
	DueScheduleStatusSuspended: {DueScheduleStatusActive, DueScheduleStatusCancelled},
	DueScheduleStatusCompleted: {},
	DueScheduleStatusCancelled: {},
}

// CanTransitionTo reports whether the status may move to the target status.
func (s DueScheduleStatus) CanTransitionTo(target DueScheduleStatus) error {
	if lo.Contains(dueScheduleStatusTransitions[s], target) {
		return nil
	}
	return ierr.NewError("invalid due schedule status transition").
		WithHintf("Cannot transition due schedule from %s to %s", s, target).
		WithReportableDetails(map[string]any{
			"from": s,
			"to":   target,
		}).
		Mark(ierr.ErrInvalidOperation)
}

// DueScheduleFilter narrows due schedule lookups
type DueScheduleFilter struct {
	SubscriptionID string              `json:"subscription_id,omitempty"`
	Statuses       []DueScheduleStatus `json:"statuses,omitempty"`
	// DueBefore selects schedules with due date at or before the given cutoff
	DueBefore *time.Time `json:"due_before,omitempty"`
	// Unprocessed excludes schedules already flagged as invoiced
	Unprocessed bool `json:"unprocessed,omitempty"`
}
