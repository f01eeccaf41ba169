package ledger

import (
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/types"
	"github.com/shopspring/decimal"
)

// Entry is an append-only ledger record. Entries are immutable once written;
// no update or delete path exists anywhere in the codebase. Exactly one of
// DebitCents/CreditCents is non-zero.
//
// (RefType, RefID, EntryType) is a natural key: replaying the same source
// transaction can never book a second entry.
type Entry struct {
	ID          string                `db:"id" json:"id"`
	CustomerID  string                `db:"customer_id" json:"customer_id"`
	InvoiceID   *string               `db:"invoice_id" json:"invoice_id,omitempty"`
	EntryType   types.LedgerEntryType `db:"entry_type" json:"entry_type"`
	DebitCents  decimal.Decimal       `db:"debit_cents" json:"debit_cents"`
	CreditCents decimal.Decimal       `db:"credit_cents" json:"credit_cents"`
	Currency    string                `db:"currency" json:"currency"`
	RefType     types.LedgerRefType   `db:"ref_type" json:"ref_type"`
	RefID       string                `db:"ref_id" json:"ref_id"`
	Description string                `db:"description" json:"description,omitempty"`
	Metadata    types.Metadata        `db:"metadata" json:"metadata,omitempty"`
	types.BaseModel
}

func (e *Entry) Validate() error {
	if e.CustomerID == "" {
		return ierr.NewError("customer_id is required").
			Mark(ierr.ErrValidation)
	}
	if err := e.EntryType.Validate(); err != nil {
		return err
	}
	if err := e.RefType.Validate(); err != nil {
		return err
	}
	if e.RefID == "" {
		return ierr.NewError("ref_id is required").
			WithHint("Ledger entries must reference their source transaction").
			Mark(ierr.ErrValidation)
	}

	switch e.EntryType {
	case types.LedgerEntryTypeDebit:
		if !e.DebitCents.IsPositive() || !e.CreditCents.IsZero() {
			return ierr.NewError("debit entry must have positive debit_cents and zero credit_cents").
				WithReportableDetails(map[string]any{
					"debit_cents":  e.DebitCents.String(),
					"credit_cents": e.CreditCents.String(),
				}).
				Mark(ierr.ErrValidation)
		}
	case types.LedgerEntryTypeCredit:
		if !e.CreditCents.IsPositive() || !e.DebitCents.IsZero() {
			return ierr.NewError("credit entry must have positive credit_cents and zero debit_cents").
				WithReportableDetails(map[string]any{
					"debit_cents":  e.DebitCents.String(),
					"credit_cents": e.CreditCents.String(),
				}).
				Mark(ierr.ErrValidation)
		}
	}

	return nil
}

// Amount returns the signed balance contribution of the entry
// (debits positive, credits negative)
func (e *Entry) Amount() decimal.Decimal {
	return e.DebitCents.Sub(e.CreditCents)
}
