package subscription

import (
	"time"

	ierr "github.com/billcycle/billcycle/internal/errors"
	"github.com/billcycle/billcycle/internal/types"
	"github.com/shopspring/decimal"
)

// Subscription represents a recurring commitment. It is created by contract
// management; the billing engine reads it and only mutates its status
// through lifecycle transitions.
type Subscription struct {
	ID         string `db:"id" json:"id"`
	Name       string `db:"name" json:"name"`
	ContractID string `db:"contract_id" json:"contract_id"`
	CustomerID string `db:"customer_id" json:"customer_id"`
	ProductID  string `db:"product_id" json:"product_id"`

	// Price is the per-period price. A zero price means the linked
	// product's price applies at invoicing time.
	Price decimal.Decimal `db:"price" json:"price"`

	BillingCycle       types.BillingCycle       `db:"billing_cycle" json:"billing_cycle"`
	StartDate          time.Time                `db:"start_date" json:"start_date"`
	EndDate            *time.Time               `db:"end_date" json:"end_date,omitempty"`
	SubscriptionStatus types.SubscriptionStatus `db:"subscription_status" json:"subscription_status"`

	types.BaseModel
}

// HasOwnPrice reports whether the subscription carries a usable price of its own.
func (s *Subscription) HasOwnPrice() bool {
	return s.Price.IsPositive()
}

// IsBillable reports whether new billing periods may be generated.
func (s *Subscription) IsBillable() bool {
	return s.SubscriptionStatus == types.SubscriptionStatusActive
}

func (s *Subscription) Validate() error {
	if s.CustomerID == "" {
		return ierr.NewError("customer_id is required").
			WithHint("Subscription must reference a customer").
			Mark(ierr.ErrValidation)
	}
	if s.ProductID == "" {
		return ierr.NewError("product_id is required").
			WithHint("Subscription must reference a product").
			Mark(ierr.ErrValidation)
	}
	if s.Price.IsNegative() {
		return ierr.NewError("price must be non negative").
			WithHint("Subscription price cannot be negative").
			Mark(ierr.ErrValidation)
	}
	if err := s.BillingCycle.Validate(); err != nil {
		return err
	}
	if s.StartDate.IsZero() {
		return ierr.NewError("start_date is required").
			WithHint("Subscription must have a start date").
			Mark(ierr.ErrValidation)
	}
	if s.EndDate != nil && s.EndDate.Before(s.StartDate) {
		return ierr.NewError("end_date before start_date").
			WithHint("Subscription end date cannot precede its start date").
			Mark(ierr.ErrValidation)
	}
	return s.SubscriptionStatus.Validate()
}
