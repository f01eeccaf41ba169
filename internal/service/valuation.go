package service

import (
	"fmt"
	"sort"

	"github.com/meterline/meterline/internal/domain/invoice"
	"github.com/meterline/meterline/internal/domain/plan"
	"github.com/meterline/meterline/internal/domain/subscription"
	"github.com/meterline/meterline/internal/domain/usage"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/types"
	"github.com/shopspring/decimal"
)

var (
	decimalOne     = decimal.NewFromInt(1)
	decimalHundred = decimal.NewFromInt(100)
)

// Valuate prices a billing period. It always emits one subscription line at
// the plan's base price, then one usage line per metric with billable
// overage, priced by the metric's overage rule, then applies the plan's
// usage caps.
//
// The function is pure and deterministic: identical inputs produce identical
// line items, which makes re-valuation during retries safe. Line items carry
// no IDs here; the finalizer assigns them when persisting.
func Valuate(sub *subscription.Subscription, p *plan.Plan, aggregated []usage.MetricUsage) ([]*invoice.LineItem, error) {
	items := []*invoice.LineItem{
		{
			Type:           types.LineItemTypeSubscription,
			Description:    fmt.Sprintf("%s base fee", p.Name),
			Currency:       p.Currency,
			Quantity:       decimalOne,
			UnitPriceCents: p.BasePriceCents,
			AmountCents:    p.BasePriceCents,
		},
	}

	// map iteration order is random; sort for determinism
	sorted := make([]usage.MetricUsage, len(aggregated))
	copy(sorted, aggregated)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Metric < sorted[j].Metric
	})

	for _, mu := range sorted {
		allowance := p.IncludedAllowances[mu.Metric]
		billable := mu.TotalQuantity.Sub(allowance)
		if !billable.IsPositive() {
			continue
		}

		rule, ok := p.OverageRules[mu.Metric]
		if !ok {
			// usage on a metric the plan does not price is free
			continue
		}

		item, err := priceOverage(mu, billable, rule, p.Currency)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	if p.Caps != nil {
		items = applyCaps(items, p.Caps, p.Currency)
	}

	return items, nil
}

func priceOverage(mu usage.MetricUsage, billable decimal.Decimal, rule plan.OverageRule, currency string) (*invoice.LineItem, error) {
	var amount decimal.Decimal

	switch rule.Mode {
	case types.PricingModeCostPlus:
		// the overage's share of vendor cost, marked up and rounded up to
		// whole cents
		share := mu.TotalVendorCostCents.Mul(billable).Div(mu.TotalQuantity)
		markup := decimalOne.Add(rule.CostPlus.MarkupPercent.Div(decimalHundred))
		amount = share.Mul(markup).Add(rule.CostPlus.MarkupFixedCents).Ceil()

	case types.PricingModeFixedRate:
		amount = rule.FixedRate.RateCents.Mul(billable).Ceil()

	case types.PricingModeTiered:
		amount = priceTiered(billable, rule.Tiered.Tiers)

	default:
		return nil, ierr.NewError("unsupported pricing mode").
			WithReportableDetails(map[string]any{
				"metric": mu.Metric,
				"mode":   rule.Mode,
			}).
			Mark(ierr.ErrValidation)
	}

	return &invoice.LineItem{
		Type:           types.LineItemTypeUsage,
		Description:    fmt.Sprintf("%s overage", mu.Metric),
		Metric:         mu.Metric,
		Currency:       currency,
		Quantity:       billable,
		UnitPriceCents: amount.Div(billable).Ceil(),
		AmountCents:    amount,
	}, nil
}

// priceTiered consumes billable quantity against the ordered tiers greedily
// from the lowest upward. The summed slab charge is authoritative; the
// displayed unit price is derived from it.
func priceTiered(billable decimal.Decimal, tiers []plan.Tier) decimal.Decimal {
	sorted := make([]plan.Tier, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].GetTierUpTo() < sorted[j].GetTierUpTo()
	})

	total := decimal.Zero
	remaining := billable
	prevBound := decimal.Zero

	for _, tier := range sorted {
		if !remaining.IsPositive() {
			break
		}

		capacity := decimal.NewFromUint64(tier.GetTierUpTo()).Sub(prevBound)
		if tier.UpTo == nil {
			capacity = remaining
		}

		consumed := decimal.Min(remaining, capacity)
		total = total.Add(tier.RateCents.Mul(consumed))
		remaining = remaining.Sub(consumed)
		prevBound = decimal.NewFromUint64(tier.GetTierUpTo())
	}

	return total.Ceil()
}

// applyCaps enforces the plan's floor and ceiling on the usage subtotal.
// Above the ceiling, every usage line is scaled by max/actual with per-line
// round-up, then the largest line absorbs any rounding excess so the subtotal
// lands exactly on the cap. Below the floor, a single adjustment line makes
// up the shortfall.
func applyCaps(items []*invoice.LineItem, caps *plan.Caps, currency string) []*invoice.LineItem {
	subtotal := decimal.Zero
	for _, item := range items {
		if item.Type == types.LineItemTypeUsage {
			subtotal = subtotal.Add(item.AmountCents)
		}
	}

	if caps.MaxUsageCents != nil && subtotal.GreaterThan(*caps.MaxUsageCents) {
		factor := caps.MaxUsageCents.Div(subtotal)
		scaled := decimal.Zero
		var largest *invoice.LineItem
		for _, item := range items {
			if item.Type != types.LineItemTypeUsage {
				continue
			}
			original := item.AmountCents
			item.OriginalAmountCents = &original
			item.AmountCents = original.Mul(factor).Ceil()
			item.Capped = true
			scaled = scaled.Add(item.AmountCents)
			if largest == nil || item.AmountCents.GreaterThan(largest.AmountCents) {
				largest = item
			}
		}
		// per-line round-up can push the subtotal past the cap by up to one
		// cent per line; take the excess back from the largest line
		if excess := scaled.Sub(*caps.MaxUsageCents); excess.IsPositive() && largest != nil {
			largest.AmountCents = largest.AmountCents.Sub(excess)
		}
	}

	if caps.MinUsageCents != nil && subtotal.LessThan(*caps.MinUsageCents) {
		shortfall := caps.MinUsageCents.Sub(subtotal)
		items = append(items, &invoice.LineItem{
			Type:           types.LineItemTypeAdjustment,
			Description:    "minimum usage commitment",
			Currency:       currency,
			Quantity:       decimalOne,
			UnitPriceCents: shortfall,
			AmountCents:    shortfall,
		})
	}

	return items
}
