package service

import (
	"context"
	"fmt"
	"time"

	"github.com/meterline/meterline/internal/alert"
	"github.com/meterline/meterline/internal/api/dto"
	"github.com/meterline/meterline/internal/domain/invoice"
	"github.com/meterline/meterline/internal/domain/ledger"
	"github.com/meterline/meterline/internal/domain/payevent"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/types"
	"github.com/shopspring/decimal"
)

// DisputeService handles chargebacks, dispute resolutions and refunds.
// Chargebacks reverse the payment and write the invoice off; a later win
// restores it. Refunds book a ledger credit and a negative refund line.
type DisputeService interface {
	// HandleChargebackOpened reverses the payment with a ledger debit and
	// transitions the invoice to uncollectible
	HandleChargebackOpened(ctx context.Context, event *payevent.CanonicalPaymentEvent) error

	// HandleDisputeClosed restores a won invoice to paid; a loss leaves the
	// write-off as-is
	HandleDisputeClosed(ctx context.Context, event *payevent.CanonicalPaymentEvent) error

	// HandleRefundSucceeded applies a provider-reported refund to the
	// matched invoice
	HandleRefundSucceeded(ctx context.Context, event *payevent.CanonicalPaymentEvent) error

	// IssueRefund initiates a full or partial refund through the gateway
	IssueRefund(ctx context.Context, req dto.IssueRefundRequest) (*dto.InvoiceResponse, error)
}

type disputeService struct {
	ServiceParams
}

func NewDisputeService(params ServiceParams) DisputeService {
	return &disputeService{
		ServiceParams: params,
	}
}

func (s *disputeService) HandleChargebackOpened(ctx context.Context, event *payevent.CanonicalPaymentEvent) error {
	dispute := event.Dispute

	inv, err := s.findDisputedInvoice(ctx, event)
	if err != nil || inv == nil {
		return err
	}

	if inv.InvoiceStatus == types.InvoiceStatusUncollectible {
		s.Logger.Infow("invoice already written off, ignoring duplicate chargeback",
			"invoice_id", inv.ID,
			"provider_event_id", event.ProviderEventID,
		)
		return nil
	}
	if !inv.InvoiceStatus.CanTransitionTo(types.InvoiceStatusUncollectible) {
		return ierr.NewError("invoice cannot be written off").
			WithHintf("Chargeback received for a %s invoice", inv.InvoiceStatus).
			Mark(ierr.ErrInvalidOperation)
	}

	ledgerSvc := NewLedgerService(s.ServiceParams)

	err = s.DB.WithTx(ctx, func(txCtx context.Context) error {
		if err := ledgerSvc.RecordDebit(txCtx, &ledger.Entry{
			CustomerID:  inv.CustomerID,
			InvoiceID:   &inv.ID,
			DebitCents:  dispute.AmountCents,
			Currency:    inv.Currency,
			RefType:     types.LedgerRefTypeChargeback,
			RefID:       dispute.ProviderDisputeID,
			Description: fmt.Sprintf("chargeback on invoice %s", inv.InvoiceNumber),
		}); err != nil {
			return err
		}

		inv.InvoiceStatus = types.InvoiceStatusUncollectible
		inv.AmountPaid = inv.AmountPaid.Sub(dispute.AmountCents)
		if inv.Metadata == nil {
			inv.Metadata = types.Metadata{}
		}
		inv.Metadata["provider_dispute_id"] = dispute.ProviderDisputeID
		return s.InvoiceRepo.Update(txCtx, inv)
	})
	if err != nil {
		return err
	}

	// signal the suspension collaborator: collection is paused until the
	// dispute resolves
	sub, err := s.SubRepo.Get(ctx, inv.SubscriptionID)
	if err != nil {
		return err
	}
	if sub.SubscriptionStatus == types.SubscriptionStatusActive ||
		sub.SubscriptionStatus == types.SubscriptionStatusPastDue {
		sub.SubscriptionStatus = types.SubscriptionStatusPaused
		if err := s.SubRepo.Update(ctx, sub); err != nil {
			return err
		}
		s.Logger.Warnw("subscription paused pending dispute",
			"subscription_id", sub.ID,
			"invoice_id", inv.ID,
		)
	}

	return nil
}

func (s *disputeService) HandleDisputeClosed(ctx context.Context, event *payevent.CanonicalPaymentEvent) error {
	dispute := event.Dispute

	inv, err := s.findDisputedInvoice(ctx, event)
	if err != nil || inv == nil {
		return err
	}

	if dispute.Outcome == types.DisputeOutcomeLost {
		s.Logger.Infow("dispute lost, write-off stands",
			"invoice_id", inv.ID,
			"provider_dispute_id", dispute.ProviderDisputeID,
		)
		return nil
	}

	if inv.InvoiceStatus == types.InvoiceStatusPaid {
		return nil
	}
	if !inv.InvoiceStatus.CanTransitionTo(types.InvoiceStatusPaid) {
		return ierr.NewError("invoice cannot be restored to paid").
			WithHintf("Dispute won for a %s invoice", inv.InvoiceStatus).
			Mark(ierr.ErrInvalidOperation)
	}

	ledgerSvc := NewLedgerService(s.ServiceParams)
	now := time.Now().UTC()

	return s.DB.WithTx(ctx, func(txCtx context.Context) error {
		if err := ledgerSvc.RecordCredit(txCtx, &ledger.Entry{
			CustomerID:  inv.CustomerID,
			InvoiceID:   &inv.ID,
			CreditCents: dispute.AmountCents,
			Currency:    inv.Currency,
			RefType:     types.LedgerRefTypeAdjustment,
			RefID:       dispute.ProviderDisputeID,
			Description: fmt.Sprintf("dispute won, invoice %s restored", inv.InvoiceNumber),
		}); err != nil {
			return err
		}

		inv.InvoiceStatus = types.InvoiceStatusPaid
		inv.AmountPaid = inv.AmountPaid.Add(dispute.AmountCents)
		inv.PaidAt = &now
		return s.InvoiceRepo.Update(txCtx, inv)
	})
}

func (s *disputeService) HandleRefundSucceeded(ctx context.Context, event *payevent.CanonicalPaymentEvent) error {
	refund := event.Refund

	inv, err := s.InvoiceRepo.GetByProviderInvoiceID(ctx, refund.ProviderInvoiceID)
	if err != nil {
		if ierr.IsNotFound(err) {
			s.Alerts.Raise(ctx, alert.Alert{
				Type:    alert.TypeReconciliation,
				Message: "refund reported for unknown invoice",
				Details: map[string]any{
					"provider_invoice_id": refund.ProviderInvoiceID,
					"provider_refund_id":  refund.ProviderRefundID,
				},
			})
			return nil
		}
		return err
	}

	return s.applyRefund(ctx, inv, refund.AmountCents, refund.ProviderRefundID)
}

func (s *disputeService) IssueRefund(ctx context.Context, req dto.IssueRefundRequest) (*dto.InvoiceResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	inv, err := s.InvoiceRepo.Get(ctx, req.InvoiceID)
	if err != nil {
		return nil, err
	}

	if inv.InvoiceStatus != types.InvoiceStatusPaid {
		return nil, ierr.NewError("only paid invoices can be refunded").
			WithHintf("Invoice is %s", inv.InvoiceStatus).
			Mark(ierr.ErrInvalidOperation)
	}
	if req.AmountCents.GreaterThan(inv.AmountPaid) {
		return nil, ierr.NewError("refund exceeds amount paid").
			WithReportableDetails(map[string]any{
				"amount_paid":   inv.AmountPaid.String(),
				"refund_amount": req.AmountCents.String(),
			}).
			Mark(ierr.ErrValidation)
	}

	providerPaymentID, ok := inv.Metadata["provider_payment_id"]
	if !ok || providerPaymentID == "" {
		return nil, ierr.NewError("invoice has no provider payment reference").
			WithHint("Cannot refund an invoice that was not paid through the gateway").
			Mark(ierr.ErrInvalidOperation)
	}

	refundID, err := s.Gateway.Refund(ctx, providerPaymentID, req.AmountCents)
	if err != nil {
		return nil, err
	}

	if err := s.applyRefund(ctx, inv, req.AmountCents, refundID); err != nil {
		return nil, err
	}

	return &dto.InvoiceResponse{Invoice: inv}, nil
}

// applyRefund books the ledger credit, appends the negative refund line and
// reduces the invoice total. A full refund voids the invoice.
func (s *disputeService) applyRefund(ctx context.Context, inv *invoice.Invoice, amount decimal.Decimal, providerRefundID string) error {
	full := amount.GreaterThanOrEqual(inv.TotalCents)

	ledgerSvc := NewLedgerService(s.ServiceParams)
	now := time.Now().UTC()

	return s.DB.WithTx(ctx, func(txCtx context.Context) error {
		// the credit records the cash returned; the paired adjustment debit
		// offsets it so the customer balance identity is unchanged by refunds
		if err := ledgerSvc.RecordCredit(txCtx, &ledger.Entry{
			CustomerID:  inv.CustomerID,
			InvoiceID:   &inv.ID,
			CreditCents: amount,
			Currency:    inv.Currency,
			RefType:     types.LedgerRefTypeRefund,
			RefID:       providerRefundID,
			Description: fmt.Sprintf("refund on invoice %s", inv.InvoiceNumber),
		}); err != nil {
			return err
		}
		if err := ledgerSvc.RecordDebit(txCtx, &ledger.Entry{
			CustomerID:  inv.CustomerID,
			InvoiceID:   &inv.ID,
			DebitCents:  amount,
			Currency:    inv.Currency,
			RefType:     types.LedgerRefTypeRefund,
			RefID:       providerRefundID,
			Description: fmt.Sprintf("refund offset for invoice %s", inv.InvoiceNumber),
		}); err != nil {
			return err
		}

		item := &invoice.LineItem{
			ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE_LINE_ITEM),
			InvoiceID:   inv.ID,
			Type:        types.LineItemTypeRefund,
			Description: fmt.Sprintf("refund %s", providerRefundID),
			Currency:    inv.Currency,
			Quantity:    decimal.NewFromInt(1),
			AmountCents: amount.Neg(),
			BaseModel:   types.GetDefaultBaseModel(txCtx),
		}
		if err := s.InvoiceRepo.AddLineItem(txCtx, item); err != nil {
			return err
		}
		inv.LineItems = append(inv.LineItems, item)

		inv.TotalCents = inv.TotalCents.Sub(amount)
		inv.AmountPaid = inv.AmountPaid.Sub(amount)
		if full {
			inv.InvoiceStatus = types.InvoiceStatusVoid
			inv.VoidedAt = &now
		}
		return s.InvoiceRepo.Update(txCtx, inv)
	})
}

// findDisputedInvoice resolves the invoice a dispute refers to, preferring
// the explicit invoice reference and falling back to the payment reference
// recorded at payment time
func (s *disputeService) findDisputedInvoice(ctx context.Context, event *payevent.CanonicalPaymentEvent) (*invoice.Invoice, error) {
	dispute := event.Dispute

	if dispute.ProviderInvoiceID != "" {
		inv, err := s.InvoiceRepo.GetByProviderInvoiceID(ctx, dispute.ProviderInvoiceID)
		if err == nil {
			return inv, nil
		}
		if !ierr.IsNotFound(err) {
			return nil, err
		}
	}

	if dispute.ProviderPaymentID != "" {
		inv, err := s.InvoiceRepo.GetByProviderPaymentID(ctx, dispute.ProviderPaymentID)
		if err == nil {
			return inv, nil
		}
		if !ierr.IsNotFound(err) {
			return nil, err
		}
	}

	s.Alerts.Raise(ctx, alert.Alert{
		Type:    alert.TypeReconciliation,
		Message: "dispute references no known invoice",
		Details: map[string]any{
			"provider_dispute_id": dispute.ProviderDisputeID,
			"provider_payment_id": dispute.ProviderPaymentID,
			"provider_event_id":   event.ProviderEventID,
		},
	})
	return nil, nil
}
