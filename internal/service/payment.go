package service

import (
	"context"
	"fmt"
	"time"

	"github.com/meterline/meterline/internal/alert"
	"github.com/meterline/meterline/internal/domain/ledger"
	"github.com/meterline/meterline/internal/domain/payevent"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/types"
)

// PaymentService consumes canonical payment events and applies them to
// invoices and the ledger. Processing is idempotent per provider event id:
// ledger writes dedup on their natural key and status transitions are
// checked against the state machine.
type PaymentService interface {
	// ProcessEvent dispatches a verified canonical event by type
	ProcessEvent(ctx context.Context, event *payevent.CanonicalPaymentEvent) error
}

type paymentService struct {
	ServiceParams
	dispute DisputeService
}

func NewPaymentService(params ServiceParams) PaymentService {
	return &paymentService{
		ServiceParams: params,
		dispute:       NewDisputeService(params),
	}
}

func (s *paymentService) ProcessEvent(ctx context.Context, event *payevent.CanonicalPaymentEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}

	switch event.Type {
	case types.PaymentEventTypePaymentSucceeded:
		return s.handlePaymentSucceeded(ctx, event)
	case types.PaymentEventTypePaymentFailed:
		return s.handlePaymentFailed(ctx, event)
	case types.PaymentEventTypeRefundSucceeded:
		return s.dispute.HandleRefundSucceeded(ctx, event)
	case types.PaymentEventTypeChargebackOpened:
		return s.dispute.HandleChargebackOpened(ctx, event)
	case types.PaymentEventTypeDisputeClosed:
		return s.dispute.HandleDisputeClosed(ctx, event)
	default:
		s.Logger.Warnw("ignoring payment event of unhandled type",
			"event_type", event.Type,
			"provider_event_id", event.ProviderEventID,
		)
		return nil
	}
}

func (s *paymentService) handlePaymentSucceeded(ctx context.Context, event *payevent.CanonicalPaymentEvent) error {
	payment := event.Payment

	inv, err := s.InvoiceRepo.GetByProviderInvoiceID(ctx, payment.ProviderInvoiceID)
	if err != nil {
		if ierr.IsNotFound(err) {
			// never guess which invoice was paid
			s.Alerts.Raise(ctx, alert.Alert{
				Type:    alert.TypeReconciliation,
				Message: "payment received for unknown invoice",
				Details: map[string]any{
					"provider_invoice_id": payment.ProviderInvoiceID,
					"provider_event_id":   event.ProviderEventID,
					"amount_cents":        payment.AmountCents.String(),
				},
			})
			return nil
		}
		return err
	}

	if inv.InvoiceStatus == types.InvoiceStatusPaid {
		s.Logger.Infow("invoice already paid, ignoring duplicate payment event",
			"invoice_id", inv.ID,
			"provider_event_id", event.ProviderEventID,
		)
		return nil
	}
	if !inv.InvoiceStatus.CanTransitionTo(types.InvoiceStatusPaid) {
		return ierr.NewError("invoice cannot transition to paid").
			WithHintf("Payment received for a %s invoice", inv.InvoiceStatus).
			WithReportableDetails(map[string]any{
				"invoice_id": inv.ID,
				"status":     inv.InvoiceStatus,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	// record the payment even on mismatch, but surface the discrepancy
	if !payment.AmountCents.Equal(inv.TotalCents) {
		s.Alerts.Raise(ctx, alert.Alert{
			Type:    alert.TypeAmountDiscrepancy,
			Message: "payment amount does not match invoice total",
			Details: map[string]any{
				"invoice_id":       inv.ID,
				"invoice_total":    inv.TotalCents.String(),
				"payment_amount":   payment.AmountCents.String(),
				"provider_payment": payment.ProviderPaymentID,
			},
		})
	}

	ledgerSvc := NewLedgerService(s.ServiceParams)
	now := time.Now().UTC()

	return s.DB.WithTx(ctx, func(txCtx context.Context) error {
		if err := ledgerSvc.RecordCredit(txCtx, &ledger.Entry{
			CustomerID:  inv.CustomerID,
			InvoiceID:   &inv.ID,
			CreditCents: payment.AmountCents,
			Currency:    inv.Currency,
			RefType:     types.LedgerRefTypePayment,
			RefID:       payment.ProviderPaymentID,
			Description: fmt.Sprintf("payment for invoice %s", inv.InvoiceNumber),
		}); err != nil {
			return err
		}

		inv.InvoiceStatus = types.InvoiceStatusPaid
		inv.AmountPaid = inv.AmountPaid.Add(payment.AmountCents)
		inv.PaidAt = &now
		if inv.Metadata == nil {
			inv.Metadata = types.Metadata{}
		}
		inv.Metadata["provider_payment_id"] = payment.ProviderPaymentID
		return s.InvoiceRepo.Update(txCtx, inv)
	})
}

func (s *paymentService) handlePaymentFailed(ctx context.Context, event *payevent.CanonicalPaymentEvent) error {
	payment := event.Payment

	inv, err := s.InvoiceRepo.GetByProviderInvoiceID(ctx, payment.ProviderInvoiceID)
	if err != nil {
		if ierr.IsNotFound(err) {
			s.Alerts.Raise(ctx, alert.Alert{
				Type:    alert.TypeReconciliation,
				Message: "payment failure reported for unknown invoice",
				Details: map[string]any{
					"provider_invoice_id": payment.ProviderInvoiceID,
					"provider_event_id":   event.ProviderEventID,
				},
			})
			return nil
		}
		return err
	}

	// the invoice stays open so the provider can retry collection
	s.Logger.Warnw("payment failed, invoice remains open",
		"invoice_id", inv.ID,
		"customer_id", inv.CustomerID,
		"failure_reason", payment.FailureReason,
	)

	sub, err := s.SubRepo.Get(ctx, inv.SubscriptionID)
	if err != nil {
		return err
	}
	if sub.SubscriptionStatus == types.SubscriptionStatusActive {
		sub.SubscriptionStatus = types.SubscriptionStatusPastDue
		if err := s.SubRepo.Update(ctx, sub); err != nil {
			return err
		}
	}

	return nil
}
