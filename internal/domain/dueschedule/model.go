package dueschedule

import (
	"time"

	ierr "github.com/billcycle/billcycle/internal/errors"
	"github.com/billcycle/billcycle/internal/types"
)

// DueSchedule is a single billing period for one subscription. It carries
// dates and status only; price is resolved at invoicing time from the
// subscription or product, so historical periods stay correct when prices
// change.
type DueSchedule struct {
	ID             string `db:"id" json:"id"`
	ScheduleNumber string `db:"schedule_number" json:"schedule_number"`
	SubscriptionID string `db:"subscription_id" json:"subscription_id"`

	PeriodStart time.Time `db:"period_start" json:"period_start"`
	PeriodEnd   time.Time `db:"period_end" json:"period_end"`
	DueDate     time.Time `db:"due_date" json:"due_date"`

	ScheduleStatus types.DueScheduleStatus `db:"schedule_status" json:"schedule_status"`

	// Processed guards idempotent invoicing: a processed schedule is never
	// selected for billing again.
	Processed bool    `db:"processed" json:"processed"`
	InvoiceID *string `db:"invoice_id" json:"invoice_id,omitempty"`

	types.BaseModel
}

// OverlapsWith reports whether two periods intersect. Periods touch-free on
// adjacent days do not overlap.
func (d *DueSchedule) OverlapsWith(start, end time.Time) bool {
	return !(d.PeriodEnd.Before(start) || d.PeriodStart.After(end))
}

// IsBillable reports whether the schedule qualifies for a billing run at the
// given cutoff date.
func (d *DueSchedule) IsBillable(cutoff time.Time) bool {
	return d.ScheduleStatus == types.DueScheduleStatusActive &&
		!d.Processed &&
		!d.DueDate.After(cutoff)
}

func (d *DueSchedule) Validate() error {
	if d.SubscriptionID == "" {
		return ierr.NewError("subscription_id is required").
			WithHint("Due schedule must reference a subscription").
			Mark(ierr.ErrValidation)
	}
	if d.PeriodStart.IsZero() || d.PeriodEnd.IsZero() {
		return ierr.NewError("period boundaries are required").
			WithHint("Due schedule must have a period start and end").
			Mark(ierr.ErrValidation)
	}
	if d.PeriodEnd.Before(d.PeriodStart) {
		return ierr.NewError("period end before period start").
			WithHintf("Period end %s precedes period start %s",
				types.FormatDate(d.PeriodEnd), types.FormatDate(d.PeriodStart)).
			Mark(ierr.ErrValidation)
	}
	if d.DueDate.IsZero() {
		return ierr.NewError("due_date is required").
			WithHint("Due schedule must have a due date").
			Mark(ierr.ErrValidation)
	}
	return d.ScheduleStatus.Validate()
}
