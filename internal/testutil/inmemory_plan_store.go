package testutil

import (
	"context"

	"github.com/samber/lo"

	"github.com/meterline/meterline/internal/domain/plan"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/types"
)

// InMemoryPlanStore implements plan.Repository
type InMemoryPlanStore struct {
	*InMemoryStore[*plan.Plan]
}

func NewInMemoryPlanStore() *InMemoryPlanStore {
	return &InMemoryPlanStore{
		InMemoryStore: NewInMemoryStore[*plan.Plan](),
	}
}

func copyPlan(p *plan.Plan) *plan.Plan {
	if p == nil {
		return nil
	}

	out := *p
	out.IncludedAllowances = lo.Assign(plan.AllowanceMap{}, p.IncludedAllowances)
	out.OverageRules = lo.Assign(plan.OverageRuleMap{}, p.OverageRules)
	out.Metadata = lo.Assign(types.Metadata{}, p.Metadata)
	if p.Caps != nil {
		caps := *p.Caps
		out.Caps = &caps
	}
	return &out
}

func (s *InMemoryPlanStore) Create(ctx context.Context, p *plan.Plan) error {
	return s.InMemoryStore.Create(ctx, p.ID, copyPlan(p))
}

func (s *InMemoryPlanStore) Get(ctx context.Context, id string) (*plan.Plan, error) {
	p, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Plan with ID %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	return copyPlan(p), nil
}

func (s *InMemoryPlanStore) List(ctx context.Context, filter *types.Filter) ([]*plan.Plan, error) {
	sortFn := func(i, j *plan.Plan) bool {
		return i.CreatedAt.After(j.CreatedAt)
	}

	items, err := s.InMemoryStore.List(ctx, filter, nil, sortFn)
	if err != nil {
		return nil, err
	}

	return lo.Map(items, func(p *plan.Plan, _ int) *plan.Plan {
		return copyPlan(p)
	}), nil
}

func (s *InMemoryPlanStore) Update(ctx context.Context, p *plan.Plan) error {
	return s.InMemoryStore.Update(ctx, p.ID, copyPlan(p))
}
