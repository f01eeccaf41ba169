package usage

import (
	"context"
	"time"
)

// Repository defines the interface for usage event data access.
// Events are append-only facts; the only mutation is the processed flip,
// which carries the consuming invoice id.
type Repository interface {
	Insert(ctx context.Context, event *Event) error
	Get(ctx context.Context, id string) (*Event, error)

	// ListUnprocessed returns unprocessed events whose event_time falls in
	// [periodStart, periodEnd) for the subscription
	ListUnprocessed(ctx context.Context, subscriptionID string, periodStart, periodEnd time.Time) ([]*Event, error)

	// AggregateUnprocessed groups unprocessed events in the window by metric,
	// summing quantity and vendor cost. Pure read.
	AggregateUnprocessed(ctx context.Context, subscriptionID string, periodStart, periodEnd time.Time) ([]MetricUsage, error)

	// MarkProcessed flips the given events to processed, recording the
	// consuming invoice. Already-processed events are not re-flipped.
	MarkProcessed(ctx context.Context, eventIDs []string, invoiceID string) error
}
