package stripe

import (
	"context"
	"encoding/json"
	"time"

	"github.com/meterline/meterline/internal/domain/payevent"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// Webhook payloads carry unexpanded references, so nested objects arrive as
// plain string IDs. The full stripe structs expect expanded objects there and
// would mis-parse, so decoding goes through these narrow views instead.
type webhookInvoice struct {
	ID            string `json:"id"`
	Customer      string `json:"customer"`
	PaymentIntent string `json:"payment_intent"`
	AmountPaid    int64  `json:"amount_paid"`
	AmountDue     int64  `json:"amount_due"`
	Currency      string `json:"currency"`
	Attempted     bool   `json:"attempted"`
	LastFinalizationError *struct {
		Message string `json:"message"`
	} `json:"last_finalization_error"`
}

type webhookCharge struct {
	ID            string `json:"id"`
	PaymentIntent string `json:"payment_intent"`
	Invoice       string `json:"invoice"`
	AmountRefunded int64 `json:"amount_refunded"`
	Currency      string `json:"currency"`
	FailureMessage string `json:"failure_message"`
	Refunds       struct {
		Data []struct {
			ID     string `json:"id"`
			Amount int64  `json:"amount"`
		} `json:"data"`
	} `json:"refunds"`
}

type webhookDispute struct {
	ID      string `json:"id"`
	Charge  string `json:"charge"`
	PaymentIntent string `json:"payment_intent"`
	Amount  int64  `json:"amount"`
	Currency string `json:"currency"`
	Status  string `json:"status"`
}

// VerifyWebhook checks the Stripe signature, rejects deliveries outside the
// replay window, and normalizes the event into the canonical form. Event
// types outside the billing surface come back as PaymentEventTypeUnknown so
// the ingress layer can ack and log them.
func (a *Adapter) VerifyWebhook(ctx context.Context, payload []byte, signature string) (*payevent.CanonicalPaymentEvent, error) {
	options := webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, a.webhookSecret, options)
	if err != nil {
		a.logger.Errorw("stripe webhook verification failed", "error", err)
		return nil, ierr.NewError("failed to verify webhook signature").
			WithHint("Invalid webhook signature or payload").
			Mark(ierr.ErrSignatureInvalid)
	}

	eventTime := time.Unix(event.Created, 0)
	if window := a.cfg.Webhook.ReplayWindow; window > 0 {
		if time.Since(eventTime) > window {
			return nil, ierr.NewError("webhook delivery is outside the replay window").
				WithReportableDetails(map[string]any{
					"event_id":      event.ID,
					"event_created": eventTime,
				}).
				Mark(ierr.ErrSignatureInvalid)
		}
	}

	canonical := &payevent.CanonicalPaymentEvent{
		ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT_EVENT),
		Provider:        types.PaymentProviderStripe,
		ProviderEventID: event.ID,
		Timestamp:       eventTime,
		CorrelationID:   types.GetCorrelationID(ctx),
		TenantID:        types.GetTenantID(ctx),
		Raw:             json.RawMessage(event.Data.Raw),
	}

	switch event.Type {
	case "invoice.payment_succeeded":
		return a.normalizeInvoicePayment(canonical, event, types.PaymentEventTypePaymentSucceeded)
	case "invoice.payment_failed":
		return a.normalizeInvoicePayment(canonical, event, types.PaymentEventTypePaymentFailed)
	case "charge.refunded":
		return a.normalizeRefund(canonical, event)
	case "charge.dispute.created":
		return a.normalizeDispute(canonical, event, types.PaymentEventTypeChargebackOpened)
	case "charge.dispute.closed":
		return a.normalizeDispute(canonical, event, types.PaymentEventTypeDisputeClosed)
	default:
		canonical.Type = types.PaymentEventTypeUnknown
		return canonical, nil
	}
}

func (a *Adapter) normalizeInvoicePayment(canonical *payevent.CanonicalPaymentEvent, event stripe.Event, eventType types.PaymentEventType) (*payevent.CanonicalPaymentEvent, error) {
	var inv webhookInvoice
	if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to parse Stripe invoice payload").
			Mark(ierr.ErrValidation)
	}

	canonical.Type = eventType
	canonical.Payment = &payevent.PaymentPayload{
		ProviderPaymentID:  inv.PaymentIntent,
		ProviderInvoiceID:  inv.ID,
		ProviderCustomerID: inv.Customer,
		Currency:           inv.Currency,
	}

	if eventType == types.PaymentEventTypePaymentSucceeded {
		canonical.Payment.AmountCents = decimal.NewFromInt(inv.AmountPaid)
	} else {
		canonical.Payment.AmountCents = decimal.NewFromInt(inv.AmountDue)
		if inv.LastFinalizationError != nil {
			canonical.Payment.FailureReason = inv.LastFinalizationError.Message
		}
	}

	return canonical, nil
}

func (a *Adapter) normalizeRefund(canonical *payevent.CanonicalPaymentEvent, event stripe.Event) (*payevent.CanonicalPaymentEvent, error) {
	var charge webhookCharge
	if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to parse Stripe charge payload").
			Mark(ierr.ErrValidation)
	}

	refund := &payevent.RefundPayload{
		ProviderPaymentID: charge.PaymentIntent,
		ProviderInvoiceID: charge.Invoice,
		AmountCents:       decimal.NewFromInt(charge.AmountRefunded),
		Currency:          charge.Currency,
	}
	// the most recent refund is first in the list
	if len(charge.Refunds.Data) > 0 {
		refund.ProviderRefundID = charge.Refunds.Data[0].ID
		refund.AmountCents = decimal.NewFromInt(charge.Refunds.Data[0].Amount)
	}

	canonical.Type = types.PaymentEventTypeRefundSucceeded
	canonical.Refund = refund
	return canonical, nil
}

func (a *Adapter) normalizeDispute(canonical *payevent.CanonicalPaymentEvent, event stripe.Event, eventType types.PaymentEventType) (*payevent.CanonicalPaymentEvent, error) {
	var dispute webhookDispute
	if err := json.Unmarshal(event.Data.Raw, &dispute); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to parse Stripe dispute payload").
			Mark(ierr.ErrValidation)
	}

	canonical.Type = eventType
	canonical.Dispute = &payevent.DisputePayload{
		ProviderDisputeID: dispute.ID,
		ProviderPaymentID: dispute.PaymentIntent,
		AmountCents:       decimal.NewFromInt(dispute.Amount),
		Currency:          dispute.Currency,
	}

	if eventType == types.PaymentEventTypeDisputeClosed {
		switch dispute.Status {
		case "won":
			canonical.Dispute.Outcome = types.DisputeOutcomeWon
		case "lost":
			canonical.Dispute.Outcome = types.DisputeOutcomeLost
		default:
			// withdrawn or warning_closed resolve in the merchant's favor
			canonical.Dispute.Outcome = types.DisputeOutcomeWon
		}
	}

	return canonical, nil
}
