package testutil

import (
	"context"
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/meterline/meterline/internal/domain/invoice"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/types"
)

// InMemoryInvoiceStore implements invoice.Repository
type InMemoryInvoiceStore struct {
	*InMemoryStore[*invoice.Invoice]
}

func NewInMemoryInvoiceStore() *InMemoryInvoiceStore {
	return &InMemoryInvoiceStore{
		InMemoryStore: NewInMemoryStore[*invoice.Invoice](),
	}
}

func copyInvoice(inv *invoice.Invoice) *invoice.Invoice {
	if inv == nil {
		return nil
	}

	out := *inv
	out.Metadata = lo.Assign(types.Metadata{}, inv.Metadata)
	if inv.ProviderInvoiceID != nil {
		out.ProviderInvoiceID = lo.ToPtr(*inv.ProviderInvoiceID)
	}
	if inv.IdempotencyKey != nil {
		out.IdempotencyKey = lo.ToPtr(*inv.IdempotencyKey)
	}
	if inv.FinalizedAt != nil {
		out.FinalizedAt = lo.ToPtr(*inv.FinalizedAt)
	}
	if inv.PaidAt != nil {
		out.PaidAt = lo.ToPtr(*inv.PaidAt)
	}
	if inv.VoidedAt != nil {
		out.VoidedAt = lo.ToPtr(*inv.VoidedAt)
	}
	out.LineItems = lo.Map(inv.LineItems, func(item *invoice.LineItem, _ int) *invoice.LineItem {
		copied := *item
		copied.Metadata = lo.Assign(types.Metadata{}, item.Metadata)
		if item.OriginalAmountCents != nil {
			copied.OriginalAmountCents = lo.ToPtr(*item.OriginalAmountCents)
		}
		return &copied
	})
	return &out
}

func (s *InMemoryInvoiceStore) CreateWithLineItems(ctx context.Context, inv *invoice.Invoice) error {
	return s.InMemoryStore.Create(ctx, inv.ID, copyInvoice(inv))
}

func (s *InMemoryInvoiceStore) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	inv, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Invoice with ID %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	return copyInvoice(inv), nil
}

func (s *InMemoryInvoiceStore) GetByPeriod(ctx context.Context, subscriptionID string, periodStart time.Time) (*invoice.Invoice, error) {
	filterFn := func(ctx context.Context, inv *invoice.Invoice, _ interface{}) bool {
		return inv.SubscriptionID == subscriptionID &&
			inv.PeriodStart.Equal(periodStart) &&
			inv.InvoiceStatus != types.InvoiceStatusVoid
	}

	invoices, err := s.InMemoryStore.List(ctx, nil, filterFn, nil)
	if err != nil {
		return nil, err
	}
	if len(invoices) == 0 {
		return nil, ierr.NewError("invoice not found").
			WithHint("No invoice covers this billing period").
			Mark(ierr.ErrNotFound)
	}

	sort.Slice(invoices, func(i, j int) bool {
		return invoices[i].CreatedAt.After(invoices[j].CreatedAt)
	})
	return copyInvoice(invoices[0]), nil
}

func (s *InMemoryInvoiceStore) GetByProviderInvoiceID(ctx context.Context, providerInvoiceID string) (*invoice.Invoice, error) {
	filterFn := func(ctx context.Context, inv *invoice.Invoice, _ interface{}) bool {
		return inv.ProviderInvoiceID != nil && *inv.ProviderInvoiceID == providerInvoiceID
	}

	invoices, err := s.InMemoryStore.List(ctx, nil, filterFn, nil)
	if err != nil {
		return nil, err
	}
	if len(invoices) == 0 {
		return nil, ierr.NewError("invoice not found").
			WithHintf("No invoice is mapped to provider invoice %s", providerInvoiceID).
			Mark(ierr.ErrNotFound)
	}
	return copyInvoice(invoices[0]), nil
}

func (s *InMemoryInvoiceStore) GetByProviderPaymentID(ctx context.Context, providerPaymentID string) (*invoice.Invoice, error) {
	filterFn := func(ctx context.Context, inv *invoice.Invoice, _ interface{}) bool {
		return inv.Metadata["provider_payment_id"] == providerPaymentID
	}

	invoices, err := s.InMemoryStore.List(ctx, nil, filterFn, nil)
	if err != nil {
		return nil, err
	}
	if len(invoices) == 0 {
		return nil, ierr.NewError("invoice not found").
			WithHintf("No invoice is mapped to provider payment %s", providerPaymentID).
			Mark(ierr.ErrNotFound)
	}
	return copyInvoice(invoices[0]), nil
}

func (s *InMemoryInvoiceStore) Update(ctx context.Context, inv *invoice.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.items[inv.ID]
	if !exists {
		return ierr.NewError("invoice not found").
			Mark(ierr.ErrNotFound)
	}
	if existing.Version != inv.Version {
		return ierr.NewError("invoice was modified concurrently").
			WithHint("The invoice changed under this update; retry with fresh state").
			Mark(ierr.ErrNotFound)
	}

	copied := copyInvoice(inv)
	copied.Version++
	copied.LineItems = existing.LineItems
	s.items[inv.ID] = copied
	inv.Version++
	return nil
}

func (s *InMemoryInvoiceStore) AddLineItem(ctx context.Context, item *invoice.LineItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, exists := s.items[item.InvoiceID]
	if !exists {
		return ierr.NewError("invoice not found").
			Mark(ierr.ErrNotFound)
	}

	copied := *item
	inv.LineItems = append(inv.LineItems, &copied)
	return nil
}

func (s *InMemoryInvoiceStore) List(ctx context.Context, filter *invoice.InvoiceFilter) ([]*invoice.Invoice, error) {
	filterFn := func(ctx context.Context, inv *invoice.Invoice, raw interface{}) bool {
		f, _ := raw.(*invoice.InvoiceFilter)
		if f == nil {
			return true
		}
		if f.CustomerID != "" && inv.CustomerID != f.CustomerID {
			return false
		}
		if f.SubscriptionID != "" && inv.SubscriptionID != f.SubscriptionID {
			return false
		}
		if f.InvoiceStatus != "" && inv.InvoiceStatus != f.InvoiceStatus {
			return false
		}
		return true
	}

	sortFn := func(i, j *invoice.Invoice) bool {
		return i.CreatedAt.After(j.CreatedAt)
	}

	items, err := s.InMemoryStore.List(ctx, filter, filterFn, sortFn)
	if err != nil {
		return nil, err
	}

	return lo.Map(items, func(inv *invoice.Invoice, _ int) *invoice.Invoice {
		return copyInvoice(inv)
	}), nil
}

func (s *InMemoryInvoiceStore) ListFinalizedInWindow(ctx context.Context, start, end time.Time) ([]*invoice.Invoice, error) {
	filterFn := func(ctx context.Context, inv *invoice.Invoice, _ interface{}) bool {
		return inv.FinalizedAt != nil &&
			!inv.FinalizedAt.Before(start) &&
			inv.FinalizedAt.Before(end)
	}

	items, err := s.InMemoryStore.List(ctx, nil, filterFn, nil)
	if err != nil {
		return nil, err
	}

	return lo.Map(items, func(inv *invoice.Invoice, _ int) *invoice.Invoice {
		return copyInvoice(inv)
	}), nil
}

func (s *InMemoryInvoiceStore) ListOutstandingByCustomer(ctx context.Context, customerID string) ([]*invoice.Invoice, error) {
	filterFn := func(ctx context.Context, inv *invoice.Invoice, _ interface{}) bool {
		return inv.CustomerID == customerID &&
			(inv.InvoiceStatus == types.InvoiceStatusOpen ||
				inv.InvoiceStatus == types.InvoiceStatusUncollectible)
	}

	items, err := s.InMemoryStore.List(ctx, nil, filterFn, nil)
	if err != nil {
		return nil, err
	}

	return lo.Map(items, func(inv *invoice.Invoice, _ int) *invoice.Invoice {
		return copyInvoice(inv)
	}), nil
}
