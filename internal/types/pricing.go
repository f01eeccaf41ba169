package types

import (
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/samber/lo"
)

// PricingMode is a closed tagged-variant selector for overage pricing.
// Each mode has a dedicated payload on plan.OverageRule and one pure
// valuation function; dispatch is an exhaustive switch, never reflection.
type PricingMode string

const (
	// PricingModeCostPlus prices overage at the vendor's cost plus a
	// percentage markup and an optional fixed markup
	PricingModeCostPlus PricingMode = "cost_plus"
	// PricingModeFixedRate prices every billable unit at a flat per-unit rate
	PricingModeFixedRate PricingMode = "fixed_rate"
	// PricingModeTiered consumes billable quantity against ordered tiers,
	// cheapest-threshold first, accumulating per-tier charges
	PricingModeTiered PricingMode = "tiered"
)

func (m PricingMode) String() string {
	return string(m)
}

func (m PricingMode) Validate() error {
	allowed := []PricingMode{
		PricingModeCostPlus,
		PricingModeFixedRate,
		PricingModeTiered,
	}
	if !lo.Contains(allowed, m) {
		return ierr.NewError("invalid pricing mode").
			WithHint("Please provide a valid pricing mode").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
