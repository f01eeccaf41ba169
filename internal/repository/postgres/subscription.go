package postgres

import (
	"context"
	"time"

	"github.com/meterline/meterline/internal/domain/subscription"
	"github.com/meterline/meterline/internal/logger"
	"github.com/meterline/meterline/internal/postgres"
	"github.com/meterline/meterline/internal/types"
)

type subscriptionRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

func NewSubscriptionRepository(client postgres.IClient, logger *logger.Logger) subscription.Repository {
	return &subscriptionRepository{client: client, logger: logger}
}

const subscriptionColumns = `id, customer_id, plan_id, subscription_status, currency,
	billing_cycle, current_period_start, current_period_end,
	provider_subscription_id, canceled_at, metadata,
	tenant_id, status, created_at, updated_at, created_by, updated_by`

func (r *subscriptionRepository) Create(ctx context.Context, s *subscription.Subscription) error {
	query := `
		INSERT INTO subscriptions (` + subscriptionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err := r.client.Querier(ctx).ExecContext(ctx, query,
		s.ID, s.CustomerID, s.PlanID, s.SubscriptionStatus, s.Currency,
		s.BillingCycle, s.CurrentPeriodStart, s.CurrentPeriodEnd,
		s.ProviderSubscriptionID, s.CanceledAt, s.Metadata,
		s.TenantID, s.Status, s.CreatedAt, s.UpdatedAt, s.CreatedBy, s.UpdatedBy,
	)
	if err != nil {
		return wrapWrite(err, "subscription")
	}
	return nil
}

func (r *subscriptionRepository) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1`

	var s subscription.Subscription
	if err := r.client.Querier(ctx).GetContext(ctx, &s, query, id); err != nil {
		return nil, wrapNotFound(err, "subscription", id)
	}
	return &s, nil
}

func (r *subscriptionRepository) GetByProviderSubscriptionID(ctx context.Context, providerSubscriptionID string) (*subscription.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + `
		FROM subscriptions WHERE provider_subscription_id = $1`

	var s subscription.Subscription
	if err := r.client.Querier(ctx).GetContext(ctx, &s, query, providerSubscriptionID); err != nil {
		return nil, wrapNotFound(err, "subscription", providerSubscriptionID)
	}
	return &s, nil
}

func (r *subscriptionRepository) List(ctx context.Context, filter *types.Filter) ([]*subscription.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + `
		FROM subscriptions
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	subs := []*subscription.Subscription{}
	if err := r.client.Querier(ctx).SelectContext(ctx, &subs, query,
		filter.GetLimit(), filter.GetOffset()); err != nil {
		return nil, wrapWrite(err, "subscription")
	}
	return subs, nil
}

func (r *subscriptionRepository) ListByCustomer(ctx context.Context, customerID string) ([]*subscription.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + `
		FROM subscriptions WHERE customer_id = $1
		ORDER BY created_at DESC`

	subs := []*subscription.Subscription{}
	if err := r.client.Querier(ctx).SelectContext(ctx, &subs, query, customerID); err != nil {
		return nil, wrapWrite(err, "subscription")
	}
	return subs, nil
}

func (r *subscriptionRepository) Update(ctx context.Context, s *subscription.Subscription) error {
	s.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE subscriptions
		SET plan_id = $2, subscription_status = $3,
			current_period_start = $4, current_period_end = $5,
			provider_subscription_id = $6, canceled_at = $7, metadata = $8,
			updated_at = $9, updated_by = $10
		WHERE id = $1`

	result, err := r.client.Querier(ctx).ExecContext(ctx, query,
		s.ID, s.PlanID, s.SubscriptionStatus,
		s.CurrentPeriodStart, s.CurrentPeriodEnd,
		s.ProviderSubscriptionID, s.CanceledAt, s.Metadata,
		s.UpdatedAt, s.UpdatedBy,
	)
	if err != nil {
		return wrapWrite(err, "subscription")
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return wrapNotFound(errNoRows, "subscription", s.ID)
	}
	return nil
}
