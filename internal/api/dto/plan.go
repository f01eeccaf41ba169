package dto

import (
	"context"

	"github.com/meterline/meterline/internal/domain/plan"
	"github.com/meterline/meterline/internal/types"
	"github.com/meterline/meterline/internal/validator"
	"github.com/shopspring/decimal"
)

type CreatePlanRequest struct {
	Name               string                    `json:"name" validate:"required"`
	Description        string                    `json:"description"`
	Currency           string                    `json:"currency" validate:"required,len=3"`
	BasePriceCents     decimal.Decimal           `json:"base_price_cents"`
	IncludedAllowances map[string]decimal.Decimal `json:"included_allowances,omitempty"`
	OverageRules       map[string]plan.OverageRule `json:"overage_rules,omitempty"`
	Caps               *plan.Caps                `json:"caps,omitempty"`
	Metadata           map[string]string         `json:"metadata,omitempty"`
}

type UpdatePlanRequest struct {
	Name        *string           `json:"name"`
	Description *string           `json:"description"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type PlanResponse struct {
	*plan.Plan
}

// ListPlansResponse represents the response for listing plans
type ListPlansResponse = types.ListResponse[*PlanResponse]

func (r *CreatePlanRequest) Validate() error {
	return validator.ValidateRequest(r)
}

func (r *CreatePlanRequest) ToPlan(ctx context.Context) *plan.Plan {
	return &plan.Plan{
		ID:                 types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PLAN),
		Name:               r.Name,
		Description:        r.Description,
		Currency:           r.Currency,
		BasePriceCents:     r.BasePriceCents,
		IncludedAllowances: r.IncludedAllowances,
		OverageRules:       r.OverageRules,
		Caps:               r.Caps,
		Metadata:           r.Metadata,
		BaseModel:          types.GetDefaultBaseModel(ctx),
	}
}

func (r *UpdatePlanRequest) Validate() error {
	return validator.ValidateRequest(r)
}
