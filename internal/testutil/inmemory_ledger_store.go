package testutil

import (
	"context"
	"fmt"
	"sort"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/meterline/meterline/internal/domain/ledger"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/types"
)

// InMemoryLedgerStore implements ledger.Repository. Like the production
// store it exposes no update or delete path.
type InMemoryLedgerStore struct {
	*InMemoryStore[*ledger.Entry]
}

func NewInMemoryLedgerStore() *InMemoryLedgerStore {
	return &InMemoryLedgerStore{
		InMemoryStore: NewInMemoryStore[*ledger.Entry](),
	}
}

func copyLedgerEntry(e *ledger.Entry) *ledger.Entry {
	if e == nil {
		return nil
	}

	out := *e
	out.Metadata = lo.Assign(types.Metadata{}, e.Metadata)
	if e.InvoiceID != nil {
		out.InvoiceID = lo.ToPtr(*e.InvoiceID)
	}
	return &out
}

func refKey(refType types.LedgerRefType, refID string, entryType types.LedgerEntryType) string {
	return fmt.Sprintf("%s:%s:%s", refType, refID, entryType)
}

func (s *InMemoryLedgerStore) Insert(ctx context.Context, e *ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.items {
		if refKey(existing.RefType, existing.RefID, existing.EntryType) == refKey(e.RefType, e.RefID, e.EntryType) {
			return ierr.NewError("ledger entry already exists").
				WithHint("An entry for this source transaction is already booked").
				Mark(ierr.ErrAlreadyExists)
		}
	}

	if _, exists := s.items[e.ID]; exists {
		return ierr.NewError("ledger entry already exists").
			Mark(ierr.ErrAlreadyExists)
	}

	s.items[e.ID] = copyLedgerEntry(e)
	return nil
}

func (s *InMemoryLedgerStore) Get(ctx context.Context, id string) (*ledger.Entry, error) {
	e, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Ledger entry with ID %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	return copyLedgerEntry(e), nil
}

func (s *InMemoryLedgerStore) GetBalance(ctx context.Context, customerID string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	balance := decimal.Zero
	for _, e := range s.items {
		if e.CustomerID == customerID {
			balance = balance.Add(e.Amount())
		}
	}
	return balance, nil
}

func (s *InMemoryLedgerStore) ExistsByRef(ctx context.Context, refType types.LedgerRefType, refID string, entryType types.LedgerEntryType) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.items {
		if e.RefType == refType && e.RefID == refID && e.EntryType == entryType {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemoryLedgerStore) ListByCustomer(ctx context.Context, customerID string, filter *types.Filter) ([]*ledger.Entry, error) {
	filterFn := func(ctx context.Context, e *ledger.Entry, _ interface{}) bool {
		return e.CustomerID == customerID
	}

	items, err := s.InMemoryStore.List(ctx, filter, filterFn, nil)
	if err != nil {
		return nil, err
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})

	return lo.Map(items, func(e *ledger.Entry, _ int) *ledger.Entry {
		return copyLedgerEntry(e)
	}), nil
}
