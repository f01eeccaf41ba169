package service

import (
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/meterline/meterline/internal/alert"
	"github.com/meterline/meterline/internal/api/dto"
	"github.com/meterline/meterline/internal/domain/customer"
	"github.com/meterline/meterline/internal/domain/invoice"
	"github.com/meterline/meterline/internal/domain/ledger"
	"github.com/meterline/meterline/internal/domain/payevent"
	"github.com/meterline/meterline/internal/domain/subscription"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/testutil"
	"github.com/meterline/meterline/internal/types"
)

type DisputeServiceSuite struct {
	testutil.BaseServiceTestSuite
	service  DisputeService
	testData struct {
		customer     *customer.Customer
		subscription *subscription.Subscription
		invoice      *invoice.Invoice
	}
}

func TestDisputeService(t *testing.T) {
	suite.Run(t, new(DisputeServiceSuite))
}

func (s *DisputeServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.setupService()
	s.setupTestData()
}

func (s *DisputeServiceSuite) params() ServiceParams {
	stores := s.GetStores()
	return ServiceParams{
		Logger:       s.GetLogger(),
		Config:       s.GetConfig(),
		DB:           s.GetDB(),
		CustomerRepo: stores.CustomerRepo,
		PlanRepo:     stores.PlanRepo,
		SubRepo:      stores.SubscriptionRepo,
		UsageRepo:    stores.UsageRepo,
		InvoiceRepo:  stores.InvoiceRepo,
		LedgerRepo:   stores.LedgerRepo,
		Gateway:      s.GetGateway(),
		Idempotency:  s.GetIdempotency(),
		Locker:       s.GetLocker(),
		Alerts:       s.GetAlerts(),
	}
}

func (s *DisputeServiceSuite) setupService() {
	s.service = NewDisputeService(s.params())
}

// setupTestData seeds a paid invoice with its debit and payment credit, so
// the customer balance starts at zero
func (s *DisputeServiceSuite) setupTestData() {
	ctx := s.GetContext()
	stores := s.GetStores()
	now := s.GetNow()

	s.testData.customer = &customer.Customer{
		ID:                 "cust_123",
		ExternalID:         "ext_cust_123",
		Provider:           types.PaymentProviderStripe,
		ProviderCustomerID: lo.ToPtr("cus_remote_123"),
		BaseModel:          types.GetDefaultBaseModel(ctx),
	}
	s.NoError(stores.CustomerRepo.Create(ctx, s.testData.customer))

	s.testData.subscription = &subscription.Subscription{
		ID:                 "subs_123",
		CustomerID:         s.testData.customer.ID,
		PlanID:             "plan_123",
		SubscriptionStatus: types.SubscriptionStatusActive,
		Currency:           "USD",
		BillingCycle:       types.BillingCycleMonthly,
		CurrentPeriodStart: now.AddDate(0, -1, 0),
		CurrentPeriodEnd:   now,
		BaseModel:          types.GetDefaultBaseModel(ctx),
	}
	s.NoError(stores.SubscriptionRepo.Create(ctx, s.testData.subscription))

	finalizedAt := now.Add(-2 * time.Hour)
	paidAt := now.Add(-time.Hour)
	s.testData.invoice = &invoice.Invoice{
		ID:                "inv_123",
		InvoiceNumber:     "INV-123",
		CustomerID:        s.testData.customer.ID,
		SubscriptionID:    s.testData.subscription.ID,
		InvoiceStatus:     types.InvoiceStatusPaid,
		Currency:          "USD",
		TotalCents:        decimal.NewFromInt(10_400),
		AmountPaid:        decimal.NewFromInt(10_400),
		PeriodStart:       now.AddDate(0, -1, 0),
		PeriodEnd:         now,
		ProviderInvoiceID: lo.ToPtr("in_remote_123"),
		FinalizedAt:       &finalizedAt,
		PaidAt:            &paidAt,
		Metadata:          types.Metadata{"provider_payment_id": "pay_123"},
		Version:           1,
		BaseModel:         types.GetDefaultBaseModel(ctx),
	}
	s.NoError(stores.InvoiceRepo.CreateWithLineItems(ctx, s.testData.invoice))

	ledgerSvc := NewLedgerService(s.params())
	s.NoError(ledgerSvc.RecordDebit(ctx, &ledger.Entry{
		CustomerID:  s.testData.customer.ID,
		InvoiceID:   &s.testData.invoice.ID,
		DebitCents:  decimal.NewFromInt(10_400),
		Currency:    "USD",
		RefType:     types.LedgerRefTypeInvoice,
		RefID:       s.testData.invoice.ID,
		Description: "invoice INV-123",
	}))
	s.NoError(ledgerSvc.RecordCredit(ctx, &ledger.Entry{
		CustomerID:  s.testData.customer.ID,
		InvoiceID:   &s.testData.invoice.ID,
		CreditCents: decimal.NewFromInt(10_400),
		Currency:    "USD",
		RefType:     types.LedgerRefTypePayment,
		RefID:       "pay_123",
		Description: "payment for invoice INV-123",
	}))
}

func (s *DisputeServiceSuite) chargebackEvent(eventID, disputeID string, amount int64) *payevent.CanonicalPaymentEvent {
	return &payevent.CanonicalPaymentEvent{
		ID:              types.GenerateUUID(),
		Type:            types.PaymentEventTypeChargebackOpened,
		Provider:        types.PaymentProviderStripe,
		ProviderEventID: eventID,
		Timestamp:       s.GetNow(),
		Dispute: &payevent.DisputePayload{
			ProviderDisputeID: disputeID,
			ProviderPaymentID: "pay_123",
			ProviderInvoiceID: "in_remote_123",
			AmountCents:       decimal.NewFromInt(amount),
			Currency:          "USD",
		},
	}
}

func (s *DisputeServiceSuite) TestChargebackOpened() {
	ctx := s.GetContext()

	s.NoError(s.service.HandleChargebackOpened(ctx, s.chargebackEvent("evt_cb_1", "dp_1", 10_400)))

	inv, err := s.GetStores().InvoiceRepo.Get(ctx, s.testData.invoice.ID)
	s.NoError(err)
	s.Equal(types.InvoiceStatusUncollectible, inv.InvoiceStatus)
	s.True(inv.AmountPaid.IsZero())
	s.Equal("dp_1", inv.Metadata["provider_dispute_id"])

	// the reversal debit puts the written-off amount back on the balance,
	// matching the uncollectible invoice's unpaid remainder
	balance, err := s.GetStores().LedgerRepo.GetBalance(ctx, s.testData.customer.ID)
	s.NoError(err)
	s.True(balance.Equal(decimal.NewFromInt(10_400)), "got %s", balance)

	// collection pauses until the dispute resolves
	sub, err := s.GetStores().SubscriptionRepo.Get(ctx, s.testData.subscription.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusPaused, sub.SubscriptionStatus)
}

func (s *DisputeServiceSuite) TestChargebackOpenedDuplicate() {
	ctx := s.GetContext()

	s.NoError(s.service.HandleChargebackOpened(ctx, s.chargebackEvent("evt_cb_1", "dp_1", 10_400)))
	s.NoError(s.service.HandleChargebackOpened(ctx, s.chargebackEvent("evt_cb_1_redeliver", "dp_1", 10_400)))

	entries, err := s.GetStores().LedgerRepo.ListByCustomer(ctx, s.testData.customer.ID, nil)
	s.NoError(err)
	// seed debit, seed credit, one chargeback debit
	s.Len(entries, 3)
}

func (s *DisputeServiceSuite) TestChargebackUnknownInvoice() {
	ctx := s.GetContext()

	event := s.chargebackEvent("evt_cb_1", "dp_1", 10_400)
	event.Dispute.ProviderInvoiceID = "in_unknown"
	event.Dispute.ProviderPaymentID = "pay_unknown"

	s.NoError(s.service.HandleChargebackOpened(ctx, event))
	s.Len(s.GetAlerts().AlertsOfType(alert.TypeReconciliation), 1)
}

func (s *DisputeServiceSuite) TestDisputeClosedWon() {
	ctx := s.GetContext()
	s.NoError(s.service.HandleChargebackOpened(ctx, s.chargebackEvent("evt_cb_1", "dp_1", 10_400)))

	event := s.chargebackEvent("evt_dc_1", "dp_1", 10_400)
	event.Type = types.PaymentEventTypeDisputeClosed
	event.Dispute.Outcome = types.DisputeOutcomeWon

	s.NoError(s.service.HandleDisputeClosed(ctx, event))

	inv, err := s.GetStores().InvoiceRepo.Get(ctx, s.testData.invoice.ID)
	s.NoError(err)
	s.Equal(types.InvoiceStatusPaid, inv.InvoiceStatus)
	s.True(inv.AmountPaid.Equal(decimal.NewFromInt(10_400)))

	balance, err := s.GetStores().LedgerRepo.GetBalance(ctx, s.testData.customer.ID)
	s.NoError(err)
	s.True(balance.IsZero(), "got %s", balance)
}

func (s *DisputeServiceSuite) TestDisputeClosedLost() {
	ctx := s.GetContext()
	s.NoError(s.service.HandleChargebackOpened(ctx, s.chargebackEvent("evt_cb_1", "dp_1", 10_400)))

	event := s.chargebackEvent("evt_dc_1", "dp_1", 10_400)
	event.Type = types.PaymentEventTypeDisputeClosed
	event.Dispute.Outcome = types.DisputeOutcomeLost

	// the write-off stands
	s.NoError(s.service.HandleDisputeClosed(ctx, event))

	inv, err := s.GetStores().InvoiceRepo.Get(ctx, s.testData.invoice.ID)
	s.NoError(err)
	s.Equal(types.InvoiceStatusUncollectible, inv.InvoiceStatus)
}

func (s *DisputeServiceSuite) TestIssueRefundPartial() {
	ctx := s.GetContext()

	resp, err := s.service.IssueRefund(ctx, dto.IssueRefundRequest{
		InvoiceID:   s.testData.invoice.ID,
		AmountCents: decimal.NewFromInt(2_000),
		Reason:      "goodwill",
	})
	s.NoError(err)
	s.Equal(types.InvoiceStatusPaid, resp.InvoiceStatus)
	s.True(resp.TotalCents.Equal(decimal.NewFromInt(8_400)))
	s.True(resp.AmountPaid.Equal(decimal.NewFromInt(8_400)))

	// the gateway was asked for the refund against the original payment
	s.Len(s.GetGateway().Refunds, 1)
	s.Equal("pay_123", s.GetGateway().Refunds[0].ProviderPaymentID)

	// paired refund entries leave the balance identity untouched
	balance, err := s.GetStores().LedgerRepo.GetBalance(ctx, s.testData.customer.ID)
	s.NoError(err)
	s.True(balance.IsZero(), "got %s", balance)

	entries, err := s.GetStores().LedgerRepo.ListByCustomer(ctx, s.testData.customer.ID, nil)
	s.NoError(err)
	s.Len(entries, 4)
	s.Equal(types.LedgerRefTypeRefund, entries[2].RefType)
	s.Equal(types.LedgerRefTypeRefund, entries[3].RefType)
	s.Equal(entries[2].RefID, entries[3].RefID)

	// a negative refund line documents it on the invoice
	inv, err := s.GetStores().InvoiceRepo.Get(ctx, s.testData.invoice.ID)
	s.NoError(err)
	last := inv.LineItems[len(inv.LineItems)-1]
	s.Equal(types.LineItemTypeRefund, last.Type)
	s.True(last.AmountCents.Equal(decimal.NewFromInt(-2_000)))
}

func (s *DisputeServiceSuite) TestIssueRefundFullVoidsInvoice() {
	ctx := s.GetContext()

	resp, err := s.service.IssueRefund(ctx, dto.IssueRefundRequest{
		InvoiceID:   s.testData.invoice.ID,
		AmountCents: decimal.NewFromInt(10_400),
	})
	s.NoError(err)
	s.Equal(types.InvoiceStatusVoid, resp.InvoiceStatus)
	s.True(resp.TotalCents.IsZero())
	s.NotNil(resp.VoidedAt)
}

func (s *DisputeServiceSuite) TestIssueRefundRequiresPaidInvoice() {
	ctx := s.GetContext()

	inv, err := s.GetStores().InvoiceRepo.Get(ctx, s.testData.invoice.ID)
	s.NoError(err)
	inv.InvoiceStatus = types.InvoiceStatusUncollectible
	s.NoError(s.GetStores().InvoiceRepo.Update(ctx, inv))

	_, err = s.service.IssueRefund(ctx, dto.IssueRefundRequest{
		InvoiceID:   s.testData.invoice.ID,
		AmountCents: decimal.NewFromInt(1_000),
	})
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *DisputeServiceSuite) TestIssueRefundExceedingPaidRejected() {
	_, err := s.service.IssueRefund(s.GetContext(), dto.IssueRefundRequest{
		InvoiceID:   s.testData.invoice.ID,
		AmountCents: decimal.NewFromInt(20_000),
	})
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *DisputeServiceSuite) TestRefundSucceededEventUnknownInvoice() {
	event := &payevent.CanonicalPaymentEvent{
		ID:              types.GenerateUUID(),
		Type:            types.PaymentEventTypeRefundSucceeded,
		Provider:        types.PaymentProviderStripe,
		ProviderEventID: "evt_rf_1",
		Timestamp:       s.GetNow(),
		Refund: &payevent.RefundPayload{
			ProviderRefundID:  "re_1",
			ProviderPaymentID: "pay_unknown",
			ProviderInvoiceID: "in_unknown",
			AmountCents:       decimal.NewFromInt(500),
			Currency:          "USD",
		},
	}
	s.NoError(s.service.HandleRefundSucceeded(s.GetContext(), event))
	s.Len(s.GetAlerts().AlertsOfType(alert.TypeReconciliation), 1)
}
