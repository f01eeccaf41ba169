package types

import (
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/samber/lo"
)

// PaymentProvider identifies an external payment gateway
type PaymentProvider string

const (
	PaymentProviderStripe PaymentProvider = "stripe"
)

func (p PaymentProvider) String() string {
	return string(p)
}

func (p PaymentProvider) Validate() error {
	allowed := []PaymentProvider{
		PaymentProviderStripe,
	}
	if !lo.Contains(allowed, p) {
		return ierr.NewError("invalid payment provider").
			WithHint("Please provide a supported payment provider").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// PaymentEventType is the provider-agnostic type of a canonical payment event
type PaymentEventType string

const (
	PaymentEventTypePaymentSucceeded PaymentEventType = "payment.succeeded"
	PaymentEventTypePaymentFailed    PaymentEventType = "payment.failed"
	PaymentEventTypeRefundSucceeded  PaymentEventType = "refund.succeeded"
	PaymentEventTypeChargebackOpened PaymentEventType = "chargeback.opened"
	PaymentEventTypeDisputeClosed    PaymentEventType = "dispute.closed"
	// PaymentEventTypeUnknown is kept for provider event types we accept but
	// do not process; they are acknowledged and logged for triage
	PaymentEventTypeUnknown PaymentEventType = "unknown"
)

func (t PaymentEventType) String() string {
	return string(t)
}

// DisputeOutcome is the terminal outcome of a dispute
type DisputeOutcome string

const (
	DisputeOutcomeWon  DisputeOutcome = "won"
	DisputeOutcomeLost DisputeOutcome = "lost"
)

func (o DisputeOutcome) Validate() error {
	allowed := []DisputeOutcome{
		DisputeOutcomeWon,
		DisputeOutcomeLost,
	}
	if !lo.Contains(allowed, o) {
		return ierr.NewError("invalid dispute outcome").
			WithHint("Dispute outcome must be won or lost").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
