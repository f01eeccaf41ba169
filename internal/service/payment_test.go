package service

import (
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/meterline/meterline/internal/alert"
	"github.com/meterline/meterline/internal/domain/customer"
	"github.com/meterline/meterline/internal/domain/invoice"
	"github.com/meterline/meterline/internal/domain/ledger"
	"github.com/meterline/meterline/internal/domain/payevent"
	"github.com/meterline/meterline/internal/domain/subscription"
	"github.com/meterline/meterline/internal/testutil"
	"github.com/meterline/meterline/internal/types"
)

type PaymentServiceSuite struct {
	testutil.BaseServiceTestSuite
	service  PaymentService
	testData struct {
		customer     *customer.Customer
		subscription *subscription.Subscription
		invoice      *invoice.Invoice
	}
}

func TestPaymentService(t *testing.T) {
	suite.Run(t, new(PaymentServiceSuite))
}

func (s *PaymentServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.setupService()
	s.setupTestData()
}

func (s *PaymentServiceSuite) setupService() {
	stores := s.GetStores()
	s.service = NewPaymentService(ServiceParams{
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
	})
}

func (s *PaymentServiceSuite) setupTestData() {
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

	// an open invoice with its ledger debit already booked, as finalization
	// leaves it
	finalizedAt := now.Add(-time.Hour)
	s.testData.invoice = &invoice.Invoice{
		ID:                "inv_123",
		InvoiceNumber:     "INV-123",
		CustomerID:        s.testData.customer.ID,
		SubscriptionID:    s.testData.subscription.ID,
		InvoiceStatus:     types.InvoiceStatusOpen,
		Currency:          "USD",
		TotalCents:        decimal.NewFromInt(10_400),
		AmountPaid:        decimal.Zero,
		PeriodStart:       now.AddDate(0, -1, 0),
		PeriodEnd:         now,
		ProviderInvoiceID: lo.ToPtr("in_remote_123"),
		FinalizedAt:       &finalizedAt,
		Version:           1,
		BaseModel:         types.GetDefaultBaseModel(ctx),
	}
	s.NoError(stores.InvoiceRepo.CreateWithLineItems(ctx, s.testData.invoice))

	ledgerSvc := NewLedgerService(ServiceParams{
		Logger:      s.GetLogger(),
		Config:      s.GetConfig(),
		DB:          s.GetDB(),
		LedgerRepo:  stores.LedgerRepo,
		InvoiceRepo: stores.InvoiceRepo,
		Locker:      s.GetLocker(),
		Alerts:      s.GetAlerts(),
	})
	s.NoError(ledgerSvc.RecordDebit(ctx, &ledger.Entry{
		CustomerID:  s.testData.customer.ID,
		InvoiceID:   &s.testData.invoice.ID,
		DebitCents:  s.testData.invoice.TotalCents,
		Currency:    s.testData.invoice.Currency,
		RefType:     types.LedgerRefTypeInvoice,
		RefID:       s.testData.invoice.ID,
		Description: "invoice INV-123",
	}))
}

func (s *PaymentServiceSuite) paymentSucceededEvent(eventID, paymentID string, amount int64) *payevent.CanonicalPaymentEvent {
	return &payevent.CanonicalPaymentEvent{
		ID:              types.GenerateUUID(),
		Type:            types.PaymentEventTypePaymentSucceeded,
		Provider:        types.PaymentProviderStripe,
		ProviderEventID: eventID,
		Timestamp:       s.GetNow(),
		Payment: &payevent.PaymentPayload{
			ProviderPaymentID: paymentID,
			ProviderInvoiceID: "in_remote_123",
			AmountCents:       decimal.NewFromInt(amount),
			Currency:          "USD",
		},
	}
}

func (s *PaymentServiceSuite) TestPaymentSucceeded() {
	ctx := s.GetContext()

	err := s.service.ProcessEvent(ctx, s.paymentSucceededEvent("evt_1", "pay_1", 10_400))
	s.NoError(err)

	inv, err := s.GetStores().InvoiceRepo.Get(ctx, s.testData.invoice.ID)
	s.NoError(err)
	s.Equal(types.InvoiceStatusPaid, inv.InvoiceStatus)
	s.True(inv.AmountPaid.Equal(decimal.NewFromInt(10_400)))
	s.NotNil(inv.PaidAt)
	s.Equal("pay_1", inv.Metadata["provider_payment_id"])

	// the payment credit zeroes the customer balance
	balance, err := s.GetStores().LedgerRepo.GetBalance(ctx, s.testData.customer.ID)
	s.NoError(err)
	s.True(balance.IsZero(), "expected zero balance, got %s", balance)
}

func (s *PaymentServiceSuite) TestPaymentSucceededDuplicateEvent() {
	ctx := s.GetContext()

	s.NoError(s.service.ProcessEvent(ctx, s.paymentSucceededEvent("evt_1", "pay_1", 10_400)))
	// the provider redelivered the same payment
	s.NoError(s.service.ProcessEvent(ctx, s.paymentSucceededEvent("evt_1_redeliver", "pay_1", 10_400)))

	entries, err := s.GetStores().LedgerRepo.ListByCustomer(ctx, s.testData.customer.ID, nil)
	s.NoError(err)
	// the initial debit plus exactly one payment credit
	s.Len(entries, 2)
}

func (s *PaymentServiceSuite) TestPaymentForUnknownInvoice() {
	ctx := s.GetContext()

	event := s.paymentSucceededEvent("evt_1", "pay_1", 10_400)
	event.Payment.ProviderInvoiceID = "in_unknown"

	// unmatched payments are surfaced, never guessed at
	s.NoError(s.service.ProcessEvent(ctx, event))

	alerts := s.GetAlerts().AlertsOfType(alert.TypeReconciliation)
	s.Len(alerts, 1)

	inv, err := s.GetStores().InvoiceRepo.Get(ctx, s.testData.invoice.ID)
	s.NoError(err)
	s.Equal(types.InvoiceStatusOpen, inv.InvoiceStatus)
}

func (s *PaymentServiceSuite) TestPaymentAmountMismatch() {
	ctx := s.GetContext()

	s.NoError(s.service.ProcessEvent(ctx, s.paymentSucceededEvent("evt_1", "pay_1", 9_000)))

	// the payment is recorded anyway and the discrepancy is surfaced
	alerts := s.GetAlerts().AlertsOfType(alert.TypeAmountDiscrepancy)
	s.Len(alerts, 1)

	inv, err := s.GetStores().InvoiceRepo.Get(ctx, s.testData.invoice.ID)
	s.NoError(err)
	s.Equal(types.InvoiceStatusPaid, inv.InvoiceStatus)
	s.True(inv.AmountPaid.Equal(decimal.NewFromInt(9_000)))
}

func (s *PaymentServiceSuite) TestPaymentFailed() {
	ctx := s.GetContext()

	event := &payevent.CanonicalPaymentEvent{
		ID:              types.GenerateUUID(),
		Type:            types.PaymentEventTypePaymentFailed,
		Provider:        types.PaymentProviderStripe,
		ProviderEventID: "evt_fail_1",
		Timestamp:       s.GetNow(),
		Payment: &payevent.PaymentPayload{
			ProviderPaymentID: "pay_1",
			ProviderInvoiceID: "in_remote_123",
			AmountCents:       decimal.NewFromInt(10_400),
			Currency:          "USD",
			FailureReason:     "card_declined",
		},
	}
	s.NoError(s.service.ProcessEvent(ctx, event))

	// the invoice stays open for provider-side retry
	inv, err := s.GetStores().InvoiceRepo.Get(ctx, s.testData.invoice.ID)
	s.NoError(err)
	s.Equal(types.InvoiceStatusOpen, inv.InvoiceStatus)

	sub, err := s.GetStores().SubscriptionRepo.Get(ctx, s.testData.subscription.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusPastDue, sub.SubscriptionStatus)
}

func (s *PaymentServiceSuite) TestUnknownEventTypeIgnored() {
	event := &payevent.CanonicalPaymentEvent{
		ID:              types.GenerateUUID(),
		Type:            types.PaymentEventTypeUnknown,
		Provider:        types.PaymentProviderStripe,
		ProviderEventID: "evt_odd_1",
		Timestamp:       s.GetNow(),
	}
	s.NoError(s.service.ProcessEvent(s.GetContext(), event))
}
