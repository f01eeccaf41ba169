package dto

import (
	"context"
	"time"

	"github.com/meterline/meterline/internal/domain/usage"
	"github.com/meterline/meterline/internal/types"
	"github.com/meterline/meterline/internal/validator"
	"github.com/shopspring/decimal"
)

type RecordUsageRequest struct {
	SubscriptionID  string          `json:"subscription_id" validate:"required"`
	Metric          string          `json:"metric" validate:"required"`
	Quantity        decimal.Decimal `json:"quantity" validate:"required"`
	VendorCostCents decimal.Decimal `json:"vendor_cost_cents"`
	// EventTime defaults to now when omitted
	EventTime *time.Time        `json:"event_time,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type UsageEventResponse struct {
	*usage.Event
}

// UsageSummaryResponse is the aggregated unprocessed usage for a
// subscription period
type UsageSummaryResponse struct {
	SubscriptionID string              `json:"subscription_id"`
	PeriodStart    time.Time           `json:"period_start"`
	PeriodEnd      time.Time           `json:"period_end"`
	Metrics        []usage.MetricUsage `json:"metrics"`
}

func (r *RecordUsageRequest) Validate() error {
	return validator.ValidateRequest(r)
}

func (r *RecordUsageRequest) ToEvent(ctx context.Context) *usage.Event {
	eventTime := time.Now().UTC()
	if r.EventTime != nil {
		eventTime = r.EventTime.UTC()
	}

	return &usage.Event{
		ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_USAGE_EVENT),
		SubscriptionID:  r.SubscriptionID,
		Metric:          r.Metric,
		Quantity:        r.Quantity,
		VendorCostCents: r.VendorCostCents,
		EventTime:       eventTime,
		Metadata:        r.Metadata,
		BaseModel:       types.GetDefaultBaseModel(ctx),
	}
}
