package service

import (
	"context"
	"fmt"
	"time"

	"github.com/meterline/meterline/internal/alert"
	"github.com/meterline/meterline/internal/api/dto"
	"github.com/meterline/meterline/internal/domain/invoice"
	"github.com/meterline/meterline/internal/domain/ledger"
	"github.com/meterline/meterline/internal/domain/subscription"
	"github.com/meterline/meterline/internal/domain/usage"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/idempotency"
	"github.com/meterline/meterline/internal/locker"
	"github.com/meterline/meterline/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// InvoiceService owns the invoice state machine
// (draft -> open -> paid/void/uncollectible) and is the only finalization
// path. Finalizing the same subscription period twice returns the existing
// invoice unchanged.
type InvoiceService interface {
	// FinalizeInvoice prices the period, persists the invoice with its
	// ledger debit atomically, marks the consumed usage processed and hands
	// the invoice to the gateway
	FinalizeInvoice(ctx context.Context, req dto.FinalizeInvoiceRequest) (*dto.InvoiceResponse, error)

	// RetryRemoteFinalize re-attempts only the gateway call for an open
	// invoice that has no provider reference. Valuation never re-runs.
	RetryRemoteFinalize(ctx context.Context, invoiceID string) (*dto.InvoiceResponse, error)

	// VoidInvoice voids an invoice and books the offsetting ledger credit
	VoidInvoice(ctx context.Context, invoiceID string) (*dto.InvoiceResponse, error)

	GetInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error)
	ListInvoices(ctx context.Context, filter *invoice.InvoiceFilter) (*dto.ListInvoicesResponse, error)
}

type invoiceService struct {
	ServiceParams
}

func NewInvoiceService(params ServiceParams) InvoiceService {
	return &invoiceService{
		ServiceParams: params,
	}
}

func (s *invoiceService) FinalizeInvoice(ctx context.Context, req dto.FinalizeInvoiceRequest) (*dto.InvoiceResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	sub, err := s.SubRepo.Get(ctx, req.SubscriptionID)
	if err != nil {
		return nil, err
	}
	if !sub.IsBillable() {
		return nil, ierr.NewError("subscription is not billable").
			WithHintf("Cannot finalize an invoice for a %s subscription", sub.SubscriptionStatus).
			Mark(ierr.ErrInvalidOperation)
	}

	periodStart := sub.CurrentPeriodStart
	periodEnd := sub.CurrentPeriodEnd
	if req.PeriodStart != nil {
		periodStart = req.PeriodStart.UTC()
	}
	if req.PeriodEnd != nil {
		periodEnd = req.PeriodEnd.UTC()
	}

	// serialize finalization per subscription period; distinct periods and
	// subscriptions proceed in parallel
	release := s.Locker.Lock(locker.PeriodKey(sub.ID, periodStart.Unix()))
	defer release()

	// natural-key idempotence: a finalized invoice for this period wins over
	// any duplicate trigger
	existing, err := s.InvoiceRepo.GetByPeriod(ctx, sub.ID, periodStart)
	if err != nil && !ierr.IsNotFound(err) {
		return nil, err
	}
	if existing != nil && existing.IsFinalized() {
		s.Logger.Infow("period already finalized, returning existing invoice",
			"invoice_id", existing.ID,
			"subscription_id", sub.ID,
			"period_start", periodStart,
		)
		return &dto.InvoiceResponse{Invoice: existing}, nil
	}

	scopeKey := idempotency.NewGenerator().GenerateKey(idempotency.ScopeInvoiceFinalize, map[string]interface{}{
		"subscription_id": sub.ID,
		"period_start":    periodStart.Unix(),
	})
	check, err := s.Idempotency.CheckAndReserve(ctx, scopeKey)
	if err != nil {
		return nil, err
	}
	if check.InFlight {
		return nil, ierr.NewError("finalization already in progress").
			WithHint("A concurrent finalization for this period is running").
			Mark(ierr.ErrInvalidOperation)
	}

	inv, err := s.finalizeLocked(ctx, sub, periodStart, periodEnd)
	if err != nil {
		s.Idempotency.Release(ctx, scopeKey)
		return nil, err
	}

	if err := s.Idempotency.StoreResult(ctx, scopeKey, 0, []byte(inv.ID)); err != nil {
		s.Logger.Errorw("failed to store finalization idempotency record",
			"error", err, "invoice_id", inv.ID)
	}

	// remote finalize happens after the local transaction commits; a gateway
	// failure leaves the invoice open with no provider reference and only
	// the remote call is retried later
	if err := s.pushRemote(ctx, inv); err != nil {
		s.Logger.Errorw("remote invoice finalize failed, retry path available",
			"error", err,
			"invoice_id", inv.ID,
		)
	}

	return &dto.InvoiceResponse{Invoice: inv}, nil
}

func (s *invoiceService) finalizeLocked(ctx context.Context, sub *subscription.Subscription, periodStart, periodEnd time.Time) (*invoice.Invoice, error) {
	p, err := s.PlanRepo.Get(ctx, sub.PlanID)
	if err != nil {
		return nil, err
	}

	events, err := s.UsageRepo.ListUnprocessed(ctx, sub.ID, periodStart, periodEnd)
	if err != nil {
		return nil, err
	}
	aggregated := usage.Aggregate(events)

	items, err := Valuate(sub, p, aggregated)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	inv := &invoice.Invoice{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE),
		InvoiceNumber:  types.GenerateShortIDWithPrefix(types.SHORT_ID_PREFIX_INVOICE),
		CustomerID:     sub.CustomerID,
		SubscriptionID: sub.ID,
		InvoiceStatus:  types.InvoiceStatusDraft,
		Currency:       p.Currency,
		AmountPaid:     decimal.Zero,
		PeriodStart:    periodStart,
		PeriodEnd:      periodEnd,
		BaseModel:      types.GetDefaultBaseModel(ctx),
	}

	total := decimal.Zero
	for _, item := range items {
		item.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE_LINE_ITEM)
		item.InvoiceID = inv.ID
		item.BaseModel = inv.BaseModel
		total = total.Add(item.AmountCents)
	}
	inv.TotalCents = total
	inv.LineItems = items

	if err := inv.Validate(); err != nil {
		return nil, err
	}

	ledgerSvc := NewLedgerService(s.ServiceParams)

	err = s.DB.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.InvoiceRepo.CreateWithLineItems(txCtx, inv); err != nil {
			return err
		}

		if err := ledgerSvc.RecordDebit(txCtx, &ledger.Entry{
			CustomerID:  inv.CustomerID,
			InvoiceID:   &inv.ID,
			DebitCents:  inv.TotalCents,
			Currency:    inv.Currency,
			RefType:     types.LedgerRefTypeInvoice,
			RefID:       inv.ID,
			Description: fmt.Sprintf("invoice %s", inv.InvoiceNumber),
		}); err != nil {
			return err
		}

		inv.InvoiceStatus = types.InvoiceStatusOpen
		inv.FinalizedAt = &now
		if err := s.InvoiceRepo.Update(txCtx, inv); err != nil {
			return err
		}

		eventIDs := lo.Map(events, func(e *usage.Event, _ int) string { return e.ID })
		if len(eventIDs) > 0 {
			if err := s.UsageRepo.MarkProcessed(txCtx, eventIDs, inv.ID); err != nil {
				return err
			}
		}

		return s.checkBalance(txCtx, inv.CustomerID)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("invoice finalized",
		"invoice_id", inv.ID,
		"invoice_number", inv.InvoiceNumber,
		"subscription_id", sub.ID,
		"total_cents", inv.TotalCents,
		"usage_events", len(events),
	)

	return inv, nil
}

// checkBalance verifies the customer's ledger balance equals the unpaid
// remainder of their open and uncollectible invoices. A mismatch aborts the
// enclosing transaction; discrepancies are surfaced, never auto-corrected.
func (s *invoiceService) checkBalance(ctx context.Context, customerID string) error {
	balance, err := s.LedgerRepo.GetBalance(ctx, customerID)
	if err != nil {
		return err
	}

	outstanding, err := s.InvoiceRepo.ListOutstandingByCustomer(ctx, customerID)
	if err != nil {
		return err
	}
	expected := decimal.Zero
	for _, inv := range outstanding {
		expected = expected.Add(inv.RemainingAmount())
	}

	if !balance.Equal(expected) {
		s.Alerts.Raise(ctx, alert.Alert{
			Type:    alert.TypeLedgerDiscrepancy,
			Message: "ledger balance does not match open invoice totals",
			Details: map[string]any{
				"customer_id":   customerID,
				"balance_cents": balance.String(),
				"open_total":    expected.String(),
			},
		})
		return ierr.NewError("ledger balance discrepancy detected").
			WithHint("Finalization aborted; no partial ledger entry was committed").
			WithReportableDetails(map[string]any{
				"customer_id":   customerID,
				"balance_cents": balance.String(),
				"open_total":    expected.String(),
			}).
			Mark(ierr.ErrLedgerDiscrepancy)
	}

	return nil
}

// pushRemote mirrors the finalized invoice to the gateway and records the
// provider reference
func (s *invoiceService) pushRemote(ctx context.Context, inv *invoice.Invoice) error {
	cust, err := s.CustomerRepo.Get(ctx, inv.CustomerID)
	if err != nil {
		return err
	}
	if cust.ProviderCustomerID == nil {
		return ierr.NewError("customer has no gateway identity").
			WithHint("Customer was never mirrored to the payment provider").
			Mark(ierr.ErrInvalidOperation)
	}

	providerInvoiceID, err := s.Gateway.CreateInvoice(ctx, inv, *cust.ProviderCustomerID)
	if err != nil {
		return err
	}
	if err := s.Gateway.FinalizeInvoice(ctx, providerInvoiceID); err != nil {
		return err
	}

	inv.ProviderInvoiceID = &providerInvoiceID
	return s.InvoiceRepo.Update(ctx, inv)
}

func (s *invoiceService) RetryRemoteFinalize(ctx context.Context, invoiceID string) (*dto.InvoiceResponse, error) {
	inv, err := s.InvoiceRepo.Get(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	if inv.InvoiceStatus != types.InvoiceStatusOpen {
		return nil, ierr.NewError("invoice is not open").
			WithHintf("Only open invoices can retry the remote finalize, got %s", inv.InvoiceStatus).
			Mark(ierr.ErrInvalidOperation)
	}
	if inv.ProviderInvoiceID != nil {
		return &dto.InvoiceResponse{Invoice: inv}, nil
	}

	if err := s.pushRemote(ctx, inv); err != nil {
		return nil, err
	}

	return &dto.InvoiceResponse{Invoice: inv}, nil
}

func (s *invoiceService) VoidInvoice(ctx context.Context, invoiceID string) (*dto.InvoiceResponse, error) {
	inv, err := s.InvoiceRepo.Get(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	if !inv.InvoiceStatus.CanTransitionTo(types.InvoiceStatusVoid) {
		return nil, ierr.NewError("invoice cannot be voided").
			WithHintf("Void is not allowed from %s", inv.InvoiceStatus).
			Mark(ierr.ErrInvalidOperation)
	}

	if inv.ProviderInvoiceID != nil {
		if err := s.Gateway.VoidInvoice(ctx, *inv.ProviderInvoiceID); err != nil {
			return nil, err
		}
	}

	ledgerSvc := NewLedgerService(s.ServiceParams)
	now := time.Now().UTC()

	err = s.DB.WithTx(ctx, func(txCtx context.Context) error {
		// offset whatever is still owed so the balance invariant holds once
		// the invoice leaves the open set
		if remaining := inv.RemainingAmount(); remaining.IsPositive() && inv.IsFinalized() {
			if err := ledgerSvc.RecordCredit(txCtx, &ledger.Entry{
				CustomerID:  inv.CustomerID,
				InvoiceID:   &inv.ID,
				CreditCents: remaining,
				Currency:    inv.Currency,
				RefType:     types.LedgerRefTypeAdjustment,
				RefID:       inv.ID,
				Description: fmt.Sprintf("void invoice %s", inv.InvoiceNumber),
			}); err != nil {
				return err
			}
		}

		inv.InvoiceStatus = types.InvoiceStatusVoid
		inv.VoidedAt = &now
		return s.InvoiceRepo.Update(txCtx, inv)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("invoice voided", "invoice_id", inv.ID)

	return &dto.InvoiceResponse{Invoice: inv}, nil
}

func (s *invoiceService) GetInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error) {
	inv, err := s.InvoiceRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &dto.InvoiceResponse{Invoice: inv}, nil
}

func (s *invoiceService) ListInvoices(ctx context.Context, filter *invoice.InvoiceFilter) (*dto.ListInvoicesResponse, error) {
	if filter == nil {
		filter = &invoice.InvoiceFilter{Filter: types.GetDefaultFilter()}
	}

	invoices, err := s.InvoiceRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := make([]*dto.InvoiceResponse, len(invoices))
	for i, inv := range invoices {
		items[i] = &dto.InvoiceResponse{Invoice: inv}
	}

	response := types.NewListResponse(items, len(items), filter.GetLimit(), filter.GetOffset())
	return &response, nil
}
