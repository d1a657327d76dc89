package types

import (
	ierr "github.com/billcycle/billcycle/internal/errors"
	"github.com/samber/lo"
)

// SubscriptionStatus is the status of a recurring commitment
type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusPaused    SubscriptionStatus = "paused"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
)

func (s SubscriptionStatus) String() string {
	return string(s)
}

func (s SubscriptionStatus) Validate() error {
	allowed := []SubscriptionStatus{
		SubscriptionStatusActive,
		SubscriptionStatusPaused,
		SubscriptionStatusCancelled,
		SubscriptionStatusExpired,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid subscription status").
			WithHint("Invalid subscription status").
			WithReportableDetails(map[string]any{
				"status":         s,
				"allowed_status": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// subscriptionStatusTransitions is the single allowed-transition table for
// subscription statuses. All mutators consult this table instead of
// branching inline.
var subscriptionStatusTransitions = map[SubscriptionStatus][]SubscriptionStatus{
	SubscriptionStatusActive:    {SubscriptionStatusPaused, SubscriptionStatusCancelled, SubscriptionStatusExpired},
	SubscriptionStatusPaused:    {SubscriptionStatusActive, SubscriptionStatusCancelled, SubscriptionStatusExpired},
	SubscriptionStatusCancelled: {},
	SubscriptionStatusExpired:   {},
}

// CanTransitionTo reports whether the status may move to the target status.
func (s SubscriptionStatus) CanTransitionTo(target SubscriptionStatus) error {
	if lo.Contains(subscriptionStatusTransitions[s], target) {
		return nil
	}
	return ierr.NewError("invalid subscription status transition").
		WithHintf("Cannot transition subscription from %s to %s", s, target).
		WithReportableDetails(map[string]any{
			"from": s,
			"to":   target,
		}).
		Mark(ierr.ErrInvalidOperation)
}

// SubscriptionEventType identifies a subscription lifecycle event published
// to the outbound notification hook.
type SubscriptionEventType string

const (
	SubscriptionEventCreated   SubscriptionEventType = "subscription.created"
	SubscriptionEventRenewed   SubscriptionEventType = "subscription.renewed"
	SubscriptionEventCancelled SubscriptionEventType = "subscription.cancelled"
	SubscriptionEventExpired   SubscriptionEventType = "subscription.expired"
)

// SubscriptionFilter narrows subscription lookups
type SubscriptionFilter struct {
	CustomerID         string               `json:"customer_id,omitempty"`
	ContractID         string               `json:"contract_id,omitempty"`
	SubscriptionStatus []SubscriptionStatus `json:"subscription_status,omitempty"`
}
