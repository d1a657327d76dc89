package dto

import (
	"time"

	"github.com/billcycle/billcycle/internal/domain/subscription"
	ierr "github.com/billcycle/billcycle/internal/errors"
	"github.com/billcycle/billcycle/internal/types"
	"github.com/shopspring/decimal"
)

// CreateSubscriptionRequest creates a subscription together with its first
// run of billing periods.
type CreateSubscriptionRequest struct {
	Name         string             `json:"name" validate:"required"`
	CustomerID   string             `json:"customer_id" validate:"required"`
	ContractID   string             `json:"contract_id" validate:"required"`
	ProductID    string             `json:"product_id" validate:"required"`
	Price        decimal.Decimal    `json:"price"`
	BillingCycle types.BillingCycle `json:"billing_cycle" validate:"required"`
	StartDate    time.Time          `json:"start_date" validate:"required"`
	EndDate      *time.Time         `json:"end_date,omitempty"`
	// PeriodCount is the number of billing periods generated up front
	PeriodCount int `json:"period_count" validate:"min=0"`
}

func (r *CreateSubscriptionRequest) Validate() error {
	if err := r.BillingCycle.Validate(); err != nil {
		return err
	}
	if r.Price.IsNegative() {
		return ierr.NewError("price must be non negative").
			WithHint("Subscription price cannot be negative").
			Mark(ierr.ErrValidation)
	}
	if r.EndDate != nil && r.EndDate.Before(r.StartDate) {
		return ierr.NewError("end_date before start_date").
			WithHint("Subscription end date cannot precede its start date").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// ToSubscription builds the domain model from the request.
func (r *CreateSubscriptionRequest) ToSubscription(baseModel types.BaseModel) *subscription.Subscription {
	return &subscription.Subscription{
		ID:                 types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		Name:               r.Name,
		CustomerID:         r.CustomerID,
		ContractID:         r.ContractID,
		ProductID:          r.ProductID,
		Price:              r.Price,
		BillingCycle:       r.BillingCycle,
		StartDate:          types.DateOnly(r.StartDate),
		EndDate:            r.EndDate,
		SubscriptionStatus: types.SubscriptionStatusActive,
		BaseModel:          baseModel,
	}
}

// RenewSubscriptionRequest extends a subscription's end date.
type RenewSubscriptionRequest struct {
	EndDate *time.Time `json:"end_date,omitempty"`
	// PeriodCount is the number of additional billing periods to generate
	PeriodCount int `json:"period_count" validate:"min=0"`
}

// SubscriptionResponse represents a subscription in API responses
type SubscriptionResponse struct {
	*subscription.Subscription
}
