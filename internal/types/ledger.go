package types

import (
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/samber/lo"
)

// LedgerEntryType distinguishes the two sides of a ledger entry.
// Exactly one of debit/credit is non-zero on any entry.
type LedgerEntryType string

const (
	LedgerEntryTypeDebit  LedgerEntryType = "debit"
	LedgerEntryTypeCredit LedgerEntryType = "credit"
)

func (t LedgerEntryType) String() string {
	return string(t)
}

func (t LedgerEntryType) Validate() error {
	allowed := []LedgerEntryType{
		LedgerEntryTypeDebit,
		LedgerEntryTypeCredit,
	}
	if !lo.Contains(allowed, t) {
		return ierr.NewError("invalid ledger entry type").
			WithHint("Please provide a valid ledger entry type").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// LedgerRefType identifies the source transaction a ledger entry reverses
// or books. Together with the ref id it forms the natural key that makes
// ledger writes replay-safe.
type LedgerRefType string

const (
	LedgerRefTypeInvoice    LedgerRefType = "invoice"
	LedgerRefTypePayment    LedgerRefType = "payment"
	LedgerRefTypeRefund     LedgerRefType = "refund"
	LedgerRefTypeAdjustment LedgerRefType = "adjustment"
	LedgerRefTypeChargeback LedgerRefType = "chargeback"
)

func (t LedgerRefType) String() string {
	return string(t)
}

func (t LedgerRefType) Validate() error {
	allowed := []LedgerRefType{
		LedgerRefTypeInvoice,
		LedgerRefTypePayment,
		LedgerRefTypeRefund,
		LedgerRefTypeAdjustment,
		LedgerRefTypeChargeback,
	}
	if !lo.Contains(allowed, t) {
		return ierr.NewError("invalid ledger ref type").
			WithHint("Please provide a valid ledger ref type").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
