package dto

import (
	"context"
	"time"

	"github.com/meterline/meterline/internal/domain/subscription"
	"github.com/meterline/meterline/internal/types"
	"github.com/meterline/meterline/internal/validator"
)

type CreateSubscriptionRequest struct {
	CustomerID   string             `json:"customer_id" validate:"required"`
	PlanID       string             `json:"plan_id" validate:"required"`
	BillingCycle types.BillingCycle `json:"billing_cycle" validate:"required"`
	// StartDate defaults to now when omitted
	StartDate *time.Time        `json:"start_date,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type UpdateSubscriptionRequest struct {
	PlanID   *string           `json:"plan_id"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type SubscriptionResponse struct {
	*subscription.Subscription
}

// ListSubscriptionsResponse represents the response for listing subscriptions
type ListSubscriptionsResponse = types.ListResponse[*SubscriptionResponse]

func (r *CreateSubscriptionRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	return r.BillingCycle.Validate()
}

func (r *CreateSubscriptionRequest) ToSubscription(ctx context.Context, currency string) *subscription.Subscription {
	start := time.Now().UTC()
	if r.StartDate != nil {
		start = r.StartDate.UTC()
	}

	end := start.AddDate(0, 1, 0)
	if r.BillingCycle == types.BillingCycleYearly {
		end = start.AddDate(1, 0, 0)
	}

	return &subscription.Subscription{
		ID:                 types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		CustomerID:         r.CustomerID,
		PlanID:             r.PlanID,
		SubscriptionStatus: types.SubscriptionStatusActive,
		Currency:           currency,
		BillingCycle:       r.BillingCycle,
		CurrentPeriodStart: start,
		CurrentPeriodEnd:   end,
		Metadata:           r.Metadata,
		BaseModel:          types.GetDefaultBaseModel(ctx),
	}
}

func (r *UpdateSubscriptionRequest) Validate() error {
	return validator.ValidateRequest(r)
}
