package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/meterline/meterline/internal/domain/customer"
	"github.com/meterline/meterline/internal/domain/ledger"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/testutil"
	"github.com/meterline/meterline/internal/types"
)

type LedgerServiceSuite struct {
	testutil.BaseServiceTestSuite
	service  LedgerService
	testData struct {
		customer *customer.Customer
	}
}

func TestLedgerService(t *testing.T) {
	suite.Run(t, new(LedgerServiceSuite))
}

func (s *LedgerServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	stores := s.GetStores()
	s.service = NewLedgerService(ServiceParams{
		Logger:       s.GetLogger(),
		Config:       s.GetConfig(),
		DB:           s.GetDB(),
		CustomerRepo: stores.CustomerRepo,
		InvoiceRepo:  stores.InvoiceRepo,
		LedgerRepo:   stores.LedgerRepo,
		Locker:       s.GetLocker(),
		Alerts:       s.GetAlerts(),
	})

	s.testData.customer = &customer.Customer{
		ID:         "cust_123",
		ExternalID: "ext_cust_123",
		Provider:   types.PaymentProviderStripe,
		BaseModel:  types.GetDefaultBaseModel(s.GetContext()),
	}
	s.NoError(stores.CustomerRepo.Create(s.GetContext(), s.testData.customer))
}

func (s *LedgerServiceSuite) debit(refID string, amount int64) *ledger.Entry {
	return &ledger.Entry{
		CustomerID: s.testData.customer.ID,
		DebitCents: decimal.NewFromInt(amount),
		Currency:   "USD",
		RefType:    types.LedgerRefTypeInvoice,
		RefID:      refID,
	}
}

func (s *LedgerServiceSuite) credit(refID string, amount int64) *ledger.Entry {
	return &ledger.Entry{
		CustomerID:  s.testData.customer.ID,
		CreditCents: decimal.NewFromInt(amount),
		Currency:    "USD",
		RefType:     types.LedgerRefTypePayment,
		RefID:       refID,
	}
}

func (s *LedgerServiceSuite) TestBalanceIsDebitsMinusCredits() {
	ctx := s.GetContext()

	s.NoError(s.service.RecordDebit(ctx, s.debit("inv_1", 10_000)))
	s.NoError(s.service.RecordDebit(ctx, s.debit("inv_2", 5_000)))
	s.NoError(s.service.RecordCredit(ctx, s.credit("pay_1", 10_000)))

	balance, err := s.service.GetBalance(ctx, s.testData.customer.ID)
	s.NoError(err)
	s.True(balance.BalanceCents.Equal(decimal.NewFromInt(5_000)),
		"got %s", balance.BalanceCents)
}

func (s *LedgerServiceSuite) TestRecordDebitDeduplicates() {
	ctx := s.GetContext()

	s.NoError(s.service.RecordDebit(ctx, s.debit("inv_1", 10_000)))
	// same source transaction replayed
	s.NoError(s.service.RecordDebit(ctx, s.debit("inv_1", 10_000)))

	entries, err := s.service.ListEntries(ctx, s.testData.customer.ID, nil)
	s.NoError(err)
	s.Len(entries.Items, 1)
}

func (s *LedgerServiceSuite) TestDebitAndCreditShareRef() {
	ctx := s.GetContext()

	// the natural key includes the entry type, so a debit and a credit may
	// reference the same source transaction
	s.NoError(s.service.RecordDebit(ctx, &ledger.Entry{
		CustomerID: s.testData.customer.ID,
		DebitCents: decimal.NewFromInt(2_000),
		Currency:   "USD",
		RefType:    types.LedgerRefTypeRefund,
		RefID:      "re_1",
	}))
	s.NoError(s.service.RecordCredit(ctx, &ledger.Entry{
		CustomerID:  s.testData.customer.ID,
		CreditCents: decimal.NewFromInt(2_000),
		Currency:    "USD",
		RefType:     types.LedgerRefTypeRefund,
		RefID:       "re_1",
	}))

	entries, err := s.service.ListEntries(ctx, s.testData.customer.ID, nil)
	s.NoError(err)
	s.Len(entries.Items, 2)

	balance, err := s.service.GetBalance(ctx, s.testData.customer.ID)
	s.NoError(err)
	s.True(balance.BalanceCents.IsZero())
}

func (s *LedgerServiceSuite) TestRecordDebitRequiresPositiveAmount() {
	err := s.service.RecordDebit(s.GetContext(), s.debit("inv_1", 0))
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *LedgerServiceSuite) TestRecordDebitRequiresRef() {
	entry := s.debit("", 1_000)
	err := s.service.RecordDebit(s.GetContext(), entry)
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *LedgerServiceSuite) TestGetBalanceUnknownCustomer() {
	_, err := s.service.GetBalance(s.GetContext(), "cust_missing")
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *LedgerServiceSuite) TestListEntriesOldestFirst() {
	ctx := s.GetContext()

	s.NoError(s.service.RecordDebit(ctx, s.debit("inv_1", 1_000)))
	s.NoError(s.service.RecordCredit(ctx, s.credit("pay_1", 1_000)))
	s.NoError(s.service.RecordDebit(ctx, s.debit("inv_2", 2_000)))

	entries, err := s.service.ListEntries(ctx, s.testData.customer.ID, nil)
	s.NoError(err)
	s.Len(entries.Items, 3)
	s.Equal("inv_1", entries.Items[0].RefID)
	s.Equal("pay_1", entries.Items[1].RefID)
	s.Equal("inv_2", entries.Items[2].RefID)
}
