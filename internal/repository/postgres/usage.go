package postgres

import (
	"context"
	"time"

	"github.com/lib/pq"
	"github.com/meterline/meterline/internal/domain/usage"
	"github.com/meterline/meterline/internal/logger"
	"github.com/meterline/meterline/internal/postgres"
)

type usageRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

func NewUsageRepository(client postgres.IClient, logger *logger.Logger) usage.Repository {
	return &usageRepository{client: client, logger: logger}
}

const usageColumns = `id, subscription_id, metric, quantity, vendor_cost_cents,
	event_time, processed, processed_invoice_id, idempotency_key, metadata,
	tenant_id, status, created_at, updated_at, created_by, updated_by`

func (r *usageRepository) Insert(ctx context.Context, e *usage.Event) error {
	query := `
		INSERT INTO usage_events (` + usageColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err := r.client.Querier(ctx).ExecContext(ctx, query,
		e.ID, e.SubscriptionID, e.Metric, e.Quantity, e.VendorCostCents,
		e.EventTime, e.Processed, e.ProcessedInvoiceID, e.IdempotencyKey, e.Metadata,
		e.TenantID, e.Status, e.CreatedAt, e.UpdatedAt, e.CreatedBy, e.UpdatedBy,
	)
	if err != nil {
		return wrapWrite(err, "usage event")
	}
	return nil
}

func (r *usageRepository) Get(ctx context.Context, id string) (*usage.Event, error) {
	query := `SELECT ` + usageColumns + ` FROM usage_events WHERE id = $1`

	var e usage.Event
	if err := r.client.Querier(ctx).GetContext(ctx, &e, query, id); err != nil {
		return nil, wrapNotFound(err, "usage event", id)
	}
	return &e, nil
}

func (r *usageRepository) ListUnprocessed(ctx context.Context, subscriptionID string, periodStart, periodEnd time.Time) ([]*usage.Event, error) {
	query := `SELECT ` + usageColumns + `
		FROM usage_events
		WHERE subscription_id = $1
			AND processed = false
			AND event_time >= $2 AND event_time < $3
		ORDER BY event_time ASC`

	events := []*usage.Event{}
	if err := r.client.Querier(ctx).SelectContext(ctx, &events, query,
		subscriptionID, periodStart, periodEnd); err != nil {
		return nil, wrapWrite(err, "usage event")
	}
	return events, nil
}

func (r *usageRepository) AggregateUnprocessed(ctx context.Context, subscriptionID string, periodStart, periodEnd time.Time) ([]usage.MetricUsage, error) {
	query := `
		SELECT metric,
			SUM(quantity) AS total_quantity,
			SUM(vendor_cost_cents) AS total_vendor_cost_cents,
			COUNT(*) AS event_count
		FROM usage_events
		WHERE subscription_id = $1
			AND processed = false
			AND event_time >= $2 AND event_time < $3
		GROUP BY metric
		ORDER BY metric ASC`

	aggregates := []usage.MetricUsage{}
	if err := r.client.Querier(ctx).SelectContext(ctx, &aggregates, query,
		subscriptionID, periodStart, periodEnd); err != nil {
		return nil, wrapWrite(err, "usage event")
	}
	return aggregates, nil
}

func (r *usageRepository) MarkProcessed(ctx context.Context, eventIDs []string, invoiceID string) error {
	query := `
		UPDATE usage_events
		SET processed = true, processed_invoice_id = $2, updated_at = $3
		WHERE id = ANY($1) AND processed = false`

	_, err := r.client.Querier(ctx).ExecContext(ctx, query,
		pq.Array(eventIDs), invoiceID, time.Now().UTC())
	if err != nil {
		return wrapWrite(err, "usage event")
	}
	return nil
}
