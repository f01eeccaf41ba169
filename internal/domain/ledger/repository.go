package ledger

import (
	"context"

	"github.com/meterline/meterline/internal/types"
	"github.com/shopspring/decimal"
)

// Repository defines the interface for ledger persistence.
//
// The interface deliberately exposes no Update or Delete: the ledger is a
// write-once log and immutability is enforced here at the type level before
// any storage-level rule gets a say.
type Repository interface {
	// Insert appends a new entry. Inserting a second entry with the same
	// (ref_type, ref_id, entry_type) natural key fails with an
	// already-exists error.
	Insert(ctx context.Context, entry *Entry) error

	// Get retrieves a single entry by ID
	Get(ctx context.Context, id string) (*Entry, error)

	// GetBalance returns sum(debit_cents) - sum(credit_cents) over all
	// entries for the customer
	GetBalance(ctx context.Context, customerID string) (decimal.Decimal, error)

	// ExistsByRef reports whether an entry for the natural key already exists
	ExistsByRef(ctx context.Context, refType types.LedgerRefType, refID string, entryType types.LedgerEntryType) (bool, error)

	// ListByCustomer returns all entries for a customer, oldest first
	ListByCustomer(ctx context.Context, customerID string, filter *types.Filter) ([]*Entry, error)
}
