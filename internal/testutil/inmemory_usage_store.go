package testutil

import (
	"context"
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/meterline/meterline/internal/domain/usage"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/types"
)

// InMemoryUsageStore implements usage.Repository
type InMemoryUsageStore struct {
	*InMemoryStore[*usage.Event]
}

func NewInMemoryUsageStore() *InMemoryUsageStore {
	return &InMemoryUsageStore{
		InMemoryStore: NewInMemoryStore[*usage.Event](),
	}
}

func copyUsageEvent(e *usage.Event) *usage.Event {
	if e == nil {
		return nil
	}

	out := *e
	out.Metadata = lo.Assign(types.Metadata{}, e.Metadata)
	if e.ProcessedInvoiceID != nil {
		out.ProcessedInvoiceID = lo.ToPtr(*e.ProcessedInvoiceID)
	}
	if e.IdempotencyKey != nil {
		out.IdempotencyKey = lo.ToPtr(*e.IdempotencyKey)
	}
	return &out
}

func (s *InMemoryUsageStore) Insert(ctx context.Context, e *usage.Event) error {
	return s.InMemoryStore.Create(ctx, e.ID, copyUsageEvent(e))
}

func (s *InMemoryUsageStore) Get(ctx context.Context, id string) (*usage.Event, error) {
	e, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Usage event with ID %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	return copyUsageEvent(e), nil
}

func (s *InMemoryUsageStore) ListUnprocessed(ctx context.Context, subscriptionID string, periodStart, periodEnd time.Time) ([]*usage.Event, error) {
	filterFn := func(ctx context.Context, e *usage.Event, _ interface{}) bool {
		return e.SubscriptionID == subscriptionID &&
			!e.Processed &&
			!e.EventTime.Before(periodStart) &&
			e.EventTime.Before(periodEnd)
	}

	items, err := s.InMemoryStore.List(ctx, nil, filterFn, nil)
	if err != nil {
		return nil, err
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].EventTime.Before(items[j].EventTime)
	})

	return lo.Map(items, func(e *usage.Event, _ int) *usage.Event {
		return copyUsageEvent(e)
	}), nil
}

func (s *InMemoryUsageStore) AggregateUnprocessed(ctx context.Context, subscriptionID string, periodStart, periodEnd time.Time) ([]usage.MetricUsage, error) {
	events, err := s.ListUnprocessed(ctx, subscriptionID, periodStart, periodEnd)
	if err != nil {
		return nil, err
	}
	return usage.Aggregate(events), nil
}

func (s *InMemoryUsageStore) MarkProcessed(ctx context.Context, eventIDs []string, invoiceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range eventIDs {
		e, exists := s.items[id]
		if !exists || e.Processed {
			continue
		}
		e.Processed = true
		e.ProcessedInvoiceID = lo.ToPtr(invoiceID)
	}
	return nil
}
