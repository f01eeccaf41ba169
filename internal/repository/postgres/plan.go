package postgres

import (
	"context"
	"time"

	"github.com/meterline/meterline/internal/domain/plan"
	"github.com/meterline/meterline/internal/logger"
	"github.com/meterline/meterline/internal/postgres"
	"github.com/meterline/meterline/internal/types"
)

type planRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

func NewPlanRepository(client postgres.IClient, logger *logger.Logger) plan.Repository {
	return &planRepository{client: client, logger: logger}
}

const planColumns = `id, name, description, currency, base_price_cents,
	included_allowances, overage_rules, caps, metadata,
	tenant_id, status, created_at, updated_at, created_by, updated_by`

func (r *planRepository) Create(ctx context.Context, p *plan.Plan) error {
	query := `
		INSERT INTO plans (` + planColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := r.client.Querier(ctx).ExecContext(ctx, query,
		p.ID, p.Name, p.Description, p.Currency, p.BasePriceCents,
		p.IncludedAllowances, p.OverageRules, p.Caps, p.Metadata,
		p.TenantID, p.Status, p.CreatedAt, p.UpdatedAt, p.CreatedBy, p.UpdatedBy,
	)
	if err != nil {
		return wrapWrite(err, "plan")
	}
	return nil
}

func (r *planRepository) Get(ctx context.Context, id string) (*plan.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE id = $1 AND status != $2`

	var p plan.Plan
	if err := r.client.Querier(ctx).GetContext(ctx, &p, query, id, types.StatusDeleted); err != nil {
		return nil, wrapNotFound(err, "plan", id)
	}
	return &p, nil
}

func (r *planRepository) List(ctx context.Context, filter *types.Filter) ([]*plan.Plan, error) {
	query := `SELECT ` + planColumns + `
		FROM plans WHERE status != $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	plans := []*plan.Plan{}
	if err := r.client.Querier(ctx).SelectContext(ctx, &plans, query,
		types.StatusDeleted, filter.GetLimit(), filter.GetOffset()); err != nil {
		return nil, wrapWrite(err, "plan")
	}
	return plans, nil
}

func (r *planRepository) Update(ctx context.Context, p *plan.Plan) error {
	p.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE plans
		SET name = $2, description = $3, base_price_cents = $4,
			included_allowances = $5, overage_rules = $6, caps = $7, metadata = $8,
			status = $9, updated_at = $10, updated_by = $11
		WHERE id = $1`

	result, err := r.client.Querier(ctx).ExecContext(ctx, query,
		p.ID, p.Name, p.Description, p.BasePriceCents,
		p.IncludedAllowances, p.OverageRules, p.Caps, p.Metadata,
		p.Status, p.UpdatedAt, p.UpdatedBy,
	)
	if err != nil {
		return wrapWrite(err, "plan")
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return wrapNotFound(errNoRows, "plan", p.ID)
	}
	return nil
}
