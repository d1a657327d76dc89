package types

import (
	"time"

	ierr "github.com/billcycle/billcycle/internal/errors"
	"github.com/samber/lo"
)

// BillingCycle is the recurrence unit governing the length of a billing period.
type BillingCycle string

const (
	BillingCycleMonthly    BillingCycle = "monthly"
	BillingCycleQuarterly  BillingCycle = "quarterly"
	BillingCycleSemiAnnual BillingCycle = "semi_annual"
	BillingCycleAnnual     BillingCycle = "annual"
)

func (c BillingCycle) String() string {
	return string(c)
}

func (c BillingCycle) Validate() error {
	allowed := []BillingCycle{
		BillingCycleMonthly,
		BillingCycleQuarterly,
		BillingCycleSemiAnnual,
		BillingCycleAnnual,
	}
	if !lo.Contains(allowed, c) {
		return ierr.NewError("invalid billing cycle").
			WithHint("Invalid billing cycle").
			WithReportableDetails(map[string]any{
				"billing_cycle":  c,
				"allowed_values": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// Months returns the cycle length in months.
func (c BillingCycle) Months() int {
	switch c {
	case BillingCycleQuarterly:
		return 3
	case BillingCycleSemiAnnual:
		return 6
	case BillingCycleAnnual:
		return 12
	default:
		return 1
	}
}

// PeriodEnd computes the inclusive end of a billing period that starts at the
// given date: start + cycle length - 1 day, with month-end clamping so a
// period starting Jan 31 on a monthly cycle ends Feb 27/28.
func (c BillingCycle) PeriodEnd(start time.Time) time.Time {
	return AddClampedDate(DateOnly(start), 0, c.Months(), 0).AddDate(0, 0, -1)
}
