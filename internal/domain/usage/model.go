package usage

import (
	"time"

	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/types"
	"github.com/shopspring/decimal"
)

// Event is an immutable metered-usage fact. It is written once by the usage
// ingestion path and flipped to processed exactly once, by exactly one
// invoice finalization.
type Event struct {
	ID              string          `db:"id" json:"id"`
	SubscriptionID  string          `db:"subscription_id" json:"subscription_id"`
	Metric          string          `db:"metric" json:"metric"`
	Quantity        decimal.Decimal `db:"quantity" json:"quantity"`
	VendorCostCents decimal.Decimal `db:"vendor_cost_cents" json:"vendor_cost_cents"`
	EventTime       time.Time       `db:"event_time" json:"event_time"`
	Processed       bool            `db:"processed" json:"processed"`
	// ProcessedInvoiceID records which finalization consumed the event
	ProcessedInvoiceID *string        `db:"processed_invoice_id" json:"processed_invoice_id,omitempty"`
	IdempotencyKey     *string        `db:"idempotency_key" json:"idempotency_key,omitempty"`
	Metadata           types.Metadata `db:"metadata" json:"metadata,omitempty"`
	types.BaseModel
}

func (e *Event) Validate() error {
	if e.SubscriptionID == "" {
		return ierr.NewError("subscription_id is required").
			Mark(ierr.ErrValidation)
	}
	if e.Metric == "" {
		return ierr.NewError("metric is required").
			Mark(ierr.ErrValidation)
	}
	if !e.Quantity.IsPositive() {
		return ierr.NewError("quantity must be positive").
			WithHint("Usage events must carry a positive quantity").
			WithReportableDetails(map[string]any{
				"quantity": e.Quantity.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	if e.VendorCostCents.IsNegative() {
		return ierr.NewError("vendor_cost_cents must be non-negative").
			Mark(ierr.ErrValidation)
	}
	if e.EventTime.IsZero() {
		return ierr.NewError("event_time is required").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// MetricUsage is the per-metric aggregate over unprocessed events in a
// billing window
type MetricUsage struct {
	Metric               string          `db:"metric" json:"metric"`
	TotalQuantity        decimal.Decimal `db:"total_quantity" json:"total_quantity"`
	TotalVendorCostCents decimal.Decimal `db:"total_vendor_cost_cents" json:"total_vendor_cost_cents"`
	EventCount           int             `db:"event_count" json:"event_count"`
}
