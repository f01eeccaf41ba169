package subscription

import (
	"time"

	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/types"
)

// Subscription ties a customer to a plan for a rolling billing period.
// Subscriptions are never deleted; cancellation is a status transition so
// billing history stays reconstructible.
type Subscription struct {
	ID                     string                   `db:"id" json:"id"`
	CustomerID             string                   `db:"customer_id" json:"customer_id"`
	PlanID                 string                   `db:"plan_id" json:"plan_id"`
	SubscriptionStatus     types.SubscriptionStatus `db:"subscription_status" json:"subscription_status"`
	Currency               string                   `db:"currency" json:"currency"`
	BillingCycle           types.BillingCycle       `db:"billing_cycle" json:"billing_cycle"`
	CurrentPeriodStart     time.Time                `db:"current_period_start" json:"current_period_start"`
	CurrentPeriodEnd       time.Time                `db:"current_period_end" json:"current_period_end"`
	ProviderSubscriptionID *string                  `db:"provider_subscription_id" json:"provider_subscription_id,omitempty"`
	CanceledAt             *time.Time               `db:"canceled_at" json:"canceled_at,omitempty"`
	Metadata               types.Metadata           `db:"metadata" json:"metadata,omitempty"`
	types.BaseModel
}

func (s *Subscription) Validate() error {
	if s.CustomerID == "" {
		return ierr.NewError("customer_id is required").
			Mark(ierr.ErrValidation)
	}
	if s.PlanID == "" {
		return ierr.NewError("plan_id is required").
			Mark(ierr.ErrValidation)
	}
	if err := s.SubscriptionStatus.Validate(); err != nil {
		return err
	}
	if err := s.BillingCycle.Validate(); err != nil {
		return err
	}
	if !s.CurrentPeriodEnd.After(s.CurrentPeriodStart) {
		return ierr.NewError("current_period_end must be after current_period_start").
			WithHint("Billing period must span a non-empty window").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// IsBillable reports whether the subscription should produce invoices
func (s *Subscription) IsBillable() bool {
	return s.SubscriptionStatus == types.SubscriptionStatusActive ||
		s.SubscriptionStatus == types.SubscriptionStatusPastDue
}

// AdvancePeriod rolls the current billing period forward one cycle
func (s *Subscription) AdvancePeriod() {
	duration := s.CurrentPeriodEnd.Sub(s.CurrentPeriodStart)
	switch s.BillingCycle {
	case types.BillingCycleMonthly:
		s.CurrentPeriodStart = s.CurrentPeriodEnd
		s.CurrentPeriodEnd = s.CurrentPeriodEnd.AddDate(0, 1, 0)
	case types.BillingCycleYearly:
		s.CurrentPeriodStart = s.CurrentPeriodEnd
		s.CurrentPeriodEnd = s.CurrentPeriodEnd.AddDate(1, 0, 0)
	default:
		s.CurrentPeriodStart = s.CurrentPeriodEnd
		s.CurrentPeriodEnd = s.CurrentPeriodEnd.Add(duration)
	}
}
