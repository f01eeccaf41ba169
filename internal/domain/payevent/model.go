package payevent

import (
	"encoding/json"
	"time"

	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/types"
	"github.com/shopspring/decimal"
)

// CanonicalPaymentEvent is the provider-agnostic normalized form of a
// payment webhook. Exactly one of the typed payloads is populated, matching
// Type. The raw provider body is carried along for triage.
type CanonicalPaymentEvent struct {
	ID              string                 `json:"id"`
	Type            types.PaymentEventType `json:"type"`
	Provider        types.PaymentProvider  `json:"provider"`
	ProviderEventID string                 `json:"provider_event_id"`
	Timestamp       time.Time              `json:"timestamp"`
	CorrelationID   string                 `json:"correlation_id"`
	TenantID        string                 `json:"tenant_id"`

	Payment *PaymentPayload `json:"payment,omitempty"`
	Refund  *RefundPayload  `json:"refund,omitempty"`
	Dispute *DisputePayload `json:"dispute,omitempty"`

	Raw json.RawMessage `json:"raw,omitempty"`
}

// PaymentPayload carries a payment success or failure
type PaymentPayload struct {
	ProviderPaymentID  string          `json:"provider_payment_id"`
	ProviderInvoiceID  string          `json:"provider_invoice_id"`
	ProviderCustomerID string          `json:"provider_customer_id,omitempty"`
	AmountCents        decimal.Decimal `json:"amount_cents"`
	Currency           string          `json:"currency"`
	FailureReason      string          `json:"failure_reason,omitempty"`
}

// RefundPayload carries a provider-initiated refund notification
type RefundPayload struct {
	ProviderRefundID  string          `json:"provider_refund_id"`
	ProviderPaymentID string          `json:"provider_payment_id"`
	ProviderInvoiceID string          `json:"provider_invoice_id,omitempty"`
	AmountCents       decimal.Decimal `json:"amount_cents"`
	Currency          string          `json:"currency"`
}

// DisputePayload carries chargeback opens and dispute resolutions
type DisputePayload struct {
	ProviderDisputeID string               `json:"provider_dispute_id"`
	ProviderPaymentID string               `json:"provider_payment_id"`
	ProviderInvoiceID string               `json:"provider_invoice_id,omitempty"`
	AmountCents       decimal.Decimal      `json:"amount_cents"`
	Currency          string               `json:"currency"`
	Outcome           types.DisputeOutcome `json:"outcome,omitempty"`
}

func (e *CanonicalPaymentEvent) Validate() error {
	if e.ProviderEventID == "" {
		return ierr.NewError("provider_event_id is required").
			Mark(ierr.ErrValidation)
	}
	if err := e.Provider.Validate(); err != nil {
		return err
	}

	switch e.Type {
	case types.PaymentEventTypePaymentSucceeded, types.PaymentEventTypePaymentFailed:
		if e.Payment == nil {
			return ierr.NewError("payment payload is required").
				WithHintf("%s events must carry a payment payload", e.Type).
				Mark(ierr.ErrValidation)
		}
	case types.PaymentEventTypeRefundSucceeded:
		if e.Refund == nil {
			return ierr.NewError("refund payload is required").
				Mark(ierr.ErrValidation)
		}
	case types.PaymentEventTypeChargebackOpened, types.PaymentEventTypeDisputeClosed:
		if e.Dispute == nil {
			return ierr.NewError("dispute payload is required").
				Mark(ierr.ErrValidation)
		}
	case types.PaymentEventTypeUnknown:
		// accepted for triage, nothing to validate
	default:
		return ierr.NewError("invalid payment event type").
			WithReportableDetails(map[string]any{
				"type": e.Type,
			}).
			Mark(ierr.ErrValidation)
	}

	return nil
}

// DedupKey is the idempotency scope key for webhook deliveries
func (e *CanonicalPaymentEvent) DedupKey() string {
	return string(e.Provider) + ":" + e.ProviderEventID
}
