package plan

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/types"
	"github.com/shopspring/decimal"
)

// Plan defines the pricing configuration for a subscription: a base price,
// per-metric included allowances, per-metric overage rules and optional
// floor/ceiling caps on total usage charges per period.
type Plan struct {
	ID             string          `db:"id" json:"id"`
	Name           string          `db:"name" json:"name"`
	Description    string          `db:"description" json:"description,omitempty"`
	Currency       string          `db:"currency" json:"currency"`
	BasePriceCents decimal.Decimal `db:"base_price_cents" json:"base_price_cents"`
	// IncludedAllowances is the per-metric quantity included free each period
	IncludedAllowances AllowanceMap `db:"included_allowances" json:"included_allowances"`
	// OverageRules maps metric keys to their pricing variant
	OverageRules OverageRuleMap `db:"overage_rules" json:"overage_rules"`
	Caps         *Caps          `db:"caps" json:"caps,omitempty"`
	Metadata     types.Metadata `db:"metadata" json:"metadata,omitempty"`
	types.BaseModel
}

// OverageRule is a closed tagged variant over pricing configuration.
// Exactly the payload matching Mode must be set.
type OverageRule struct {
	Mode      types.PricingMode `json:"mode"`
	CostPlus  *CostPlusRule     `json:"cost_plus,omitempty"`
	FixedRate *FixedRateRule    `json:"fixed_rate,omitempty"`
	Tiered    *TieredRule       `json:"tiered,omitempty"`
}

// CostPlusRule prices overage at vendor cost times (1 + markup percent)
// plus a fixed markup, rounded up to whole cents.
type CostPlusRule struct {
	MarkupPercent    decimal.Decimal `json:"markup_percent"`
	MarkupFixedCents decimal.Decimal `json:"markup_fixed_cents"`
}

// FixedRateRule prices every billable unit at a flat per-unit rate in cents.
type FixedRateRule struct {
	RateCents decimal.Decimal `json:"rate_cents"`
}

// TieredRule consumes billable quantity against ordered tiers greedily from
// the lowest tier upward. A nil UpTo marks the unbounded final tier.
type TieredRule struct {
	Tiers []Tier `json:"tiers"`
}

type Tier struct {
	UpTo      *uint64         `json:"up_to,omitempty"`
	RateCents decimal.Decimal `json:"rate_cents"`
}

// GetTierUpTo returns the tier bound for sorting, treating nil as unbounded
func (t Tier) GetTierUpTo() uint64 {
	if t.UpTo == nil {
		return ^uint64(0)
	}
	return *t.UpTo
}

// Caps bounds the total usage charge per billing period. Both bounds are in
// cents and optional.
type Caps struct {
	MinUsageCents *decimal.Decimal `json:"min_usage_cents,omitempty"`
	MaxUsageCents *decimal.Decimal `json:"max_usage_cents,omitempty"`
}

func (p *Plan) Validate() error {
	if p.BasePriceCents.IsNegative() {
		return ierr.NewError("base_price_cents must be non-negative").
			WithHint("Base price cannot be negative").
			Mark(ierr.ErrValidation)
	}
	if p.Currency == "" {
		return ierr.NewError("currency is required").
			WithHint("Plan currency cannot be empty").
			Mark(ierr.ErrValidation)
	}
	for metric, rule := range p.OverageRules {
		if err := rule.Validate(); err != nil {
			return ierr.WithError(err).
				WithHintf("Invalid overage rule for metric %s", metric).
				Mark(ierr.ErrValidation)
		}
	}
	if p.Caps != nil {
		if err := p.Caps.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (r OverageRule) Validate() error {
	if err := r.Mode.Validate(); err != nil {
		return err
	}
	switch r.Mode {
	case types.PricingModeCostPlus:
		if r.CostPlus == nil {
			return ierr.NewError("cost_plus payload is required").
				WithHint("cost_plus pricing requires markup configuration").
				Mark(ierr.ErrValidation)
		}
		if r.CostPlus.MarkupPercent.IsNegative() {
			return ierr.NewError("markup_percent must be non-negative").
				Mark(ierr.ErrValidation)
		}
	case types.PricingModeFixedRate:
		if r.FixedRate == nil {
			return ierr.NewError("fixed_rate payload is required").
				WithHint("fixed_rate pricing requires a per-unit rate").
				Mark(ierr.ErrValidation)
		}
		if r.FixedRate.RateCents.IsNegative() {
			return ierr.NewError("rate_cents must be non-negative").
				Mark(ierr.ErrValidation)
		}
	case types.PricingModeTiered:
		if r.Tiered == nil || len(r.Tiered.Tiers) == 0 {
			return ierr.NewError("tiered payload requires at least one tier").
				WithHint("tiered pricing requires a tier table").
				Mark(ierr.ErrValidation)
		}
		// only the final tier may be unbounded
		for i, tier := range r.Tiered.Tiers {
			if tier.UpTo == nil && i != len(r.Tiered.Tiers)-1 {
				return ierr.NewError("only the last tier may be unbounded").
					Mark(ierr.ErrValidation)
			}
			if tier.RateCents.IsNegative() {
				return ierr.NewError("tier rate_cents must be non-negative").
					Mark(ierr.ErrValidation)
			}
		}
	}
	return nil
}

func (c *Caps) Validate() error {
	if c.MinUsageCents != nil && c.MinUsageCents.IsNegative() {
		return ierr.NewError("min_usage_cents must be non-negative").
			Mark(ierr.ErrValidation)
	}
	if c.MaxUsageCents != nil && c.MaxUsageCents.IsNegative() {
		return ierr.NewError("max_usage_cents must be non-negative").
			Mark(ierr.ErrValidation)
	}
	if c.MinUsageCents != nil && c.MaxUsageCents != nil &&
		c.MinUsageCents.GreaterThan(*c.MaxUsageCents) {
		return ierr.NewError("min_usage_cents cannot exceed max_usage_cents").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// AllowanceMap is a JSONB map of metric key to included free quantity
type AllowanceMap map[string]decimal.Decimal

func (m *AllowanceMap) Scan(value interface{}) error {
	return scanJSON(value, m)
}

func (m AllowanceMap) Value() (driver.Value, error) {
	if m == nil {
		return json.Marshal(AllowanceMap{})
	}
	return json.Marshal(m)
}

// OverageRuleMap is a JSONB map of metric key to overage rule
type OverageRuleMap map[string]OverageRule

func (m *OverageRuleMap) Scan(value interface{}) error {
	return scanJSON(value, m)
}

func (m OverageRuleMap) Value() (driver.Value, error) {
	if m == nil {
		return json.Marshal(OverageRuleMap{})
	}
	return json.Marshal(m)
}

func (c *Caps) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	return scanJSON(value, c)
}

func (c Caps) Value() (driver.Value, error) {
	return json.Marshal(c)
}

func scanJSON(value interface{}, target interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("failed to unmarshal JSONB value: %v", value)
	}
	return json.Unmarshal(bytes, target)
}
