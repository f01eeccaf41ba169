package service

import (
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meterline/meterline/internal/domain/plan"
	"github.com/meterline/meterline/internal/domain/subscription"
	"github.com/meterline/meterline/internal/domain/usage"
	"github.com/meterline/meterline/internal/types"
)

func valuationSubscription() *subscription.Subscription {
	now := time.Now().UTC()
	return &subscription.Subscription{
		ID:                 "subs_test",
		CustomerID:         "cust_test",
		PlanID:             "plan_test",
		SubscriptionStatus: types.SubscriptionStatusActive,
		Currency:           "USD",
		BillingCycle:       types.BillingCycleMonthly,
		CurrentPeriodStart: now.AddDate(0, -1, 0),
		CurrentPeriodEnd:   now,
	}
}

func TestValuateBaseFeeOnly(t *testing.T) {
	p := &plan.Plan{
		ID:             "plan_test",
		Name:           "Starter",
		Currency:       "USD",
		BasePriceCents: decimal.NewFromInt(9900),
	}

	items, err := Valuate(valuationSubscription(), p, nil)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, types.LineItemTypeSubscription, items[0].Type)
	assert.True(t, items[0].AmountCents.Equal(decimal.NewFromInt(9900)))
}

func TestValuateCostPlus(t *testing.T) {
	p := &plan.Plan{
		ID:             "plan_test",
		Name:           "LLM Plan",
		Currency:       "USD",
		BasePriceCents: decimal.NewFromInt(9900),
		IncludedAllowances: plan.AllowanceMap{
			"llm_tokens": decimal.NewFromInt(1_000_000),
		},
		OverageRules: plan.OverageRuleMap{
			"llm_tokens": {
				Mode: types.PricingModeCostPlus,
				CostPlus: &plan.CostPlusRule{
					MarkupPercent:    decimal.NewFromInt(25),
					MarkupFixedCents: decimal.Zero,
				},
			},
		},
	}
	aggregated := []usage.MetricUsage{
		{
			Metric:               "llm_tokens",
			TotalQuantity:        decimal.NewFromInt(1_500_000),
			TotalVendorCostCents: decimal.NewFromInt(1200),
			EventCount:           3,
		},
	}

	items, err := Valuate(valuationSubscription(), p, aggregated)
	require.NoError(t, err)
	require.Len(t, items, 2)

	// overage share of vendor cost is 1200 * 500k/1.5M = 400, marked up 25%
	overage := items[1]
	assert.Equal(t, types.LineItemTypeUsage, overage.Type)
	assert.True(t, overage.AmountCents.Equal(decimal.NewFromInt(500)),
		"expected 500, got %s", overage.AmountCents)

	total := items[0].AmountCents.Add(overage.AmountCents)
	assert.True(t, total.Equal(decimal.NewFromInt(10400)),
		"expected 10400, got %s", total)
}

func TestValuateFixedRate(t *testing.T) {
	p := &plan.Plan{
		ID:       "plan_test",
		Name:     "API Plan",
		Currency: "USD",
		IncludedAllowances: plan.AllowanceMap{
			"api_calls": decimal.NewFromInt(1000),
		},
		OverageRules: plan.OverageRuleMap{
			"api_calls": {
				Mode: types.PricingModeFixedRate,
				FixedRate: &plan.FixedRateRule{
					RateCents: decimal.NewFromFloat(0.5),
				},
			},
		},
	}
	aggregated := []usage.MetricUsage{
		{Metric: "api_calls", TotalQuantity: decimal.NewFromInt(2001), EventCount: 1},
	}

	items, err := Valuate(valuationSubscription(), p, aggregated)
	require.NoError(t, err)
	require.Len(t, items, 2)

	// 1001 billable at 0.5 rounds 500.5 up to 501
	assert.True(t, items[1].AmountCents.Equal(decimal.NewFromInt(501)),
		"expected 501, got %s", items[1].AmountCents)
}

func TestValuateTieredSlabs(t *testing.T) {
	p := &plan.Plan{
		ID:       "plan_test",
		Name:     "Tiered Plan",
		Currency: "USD",
		OverageRules: plan.OverageRuleMap{
			"requests": {
				Mode: types.PricingModeTiered,
				Tiered: &plan.TieredRule{
					Tiers: []plan.Tier{
						{UpTo: lo.ToPtr(uint64(5_000_000)), RateCents: decimal.NewFromFloat(0.01)},
						{UpTo: lo.ToPtr(uint64(10_000_000)), RateCents: decimal.NewFromFloat(0.005)},
						{RateCents: decimal.NewFromFloat(0.0025)},
					},
				},
			},
		},
	}
	aggregated := []usage.MetricUsage{
		{Metric: "requests", TotalQuantity: decimal.NewFromInt(12_000_000), EventCount: 12},
	}

	items, err := Valuate(valuationSubscription(), p, aggregated)
	require.NoError(t, err)
	require.Len(t, items, 2)

	// 5M in the first slab, 5M in the second, 2M in the unbounded tail:
	// 50,000 + 25,000 + 5,000
	assert.True(t, items[1].AmountCents.Equal(decimal.NewFromInt(80_000)),
		"expected 80000, got %s", items[1].AmountCents)
}

func TestValuateMaxCapScalesUsageLines(t *testing.T) {
	p := &plan.Plan{
		ID:       "plan_test",
		Name:     "Capped Plan",
		Currency: "USD",
		OverageRules: plan.OverageRuleMap{
			"compute": {
				Mode:      types.PricingModeFixedRate,
				FixedRate: &plan.FixedRateRule{RateCents: decimal.NewFromInt(1)},
			},
			"storage": {
				Mode:      types.PricingModeFixedRate,
				FixedRate: &plan.FixedRateRule{RateCents: decimal.NewFromInt(1)},
			},
		},
		Caps: &plan.Caps{
			MaxUsageCents: lo.ToPtr(decimal.NewFromInt(50_000)),
		},
	}
	aggregated := []usage.MetricUsage{
		{Metric: "compute", TotalQuantity: decimal.NewFromInt(35_000), EventCount: 1},
		{Metric: "storage", TotalQuantity: decimal.NewFromInt(25_000), EventCount: 1},
	}

	items, err := Valuate(valuationSubscription(), p, aggregated)
	require.NoError(t, err)
	require.Len(t, items, 3)

	subtotal := decimal.Zero
	for _, item := range items {
		if item.Type != types.LineItemTypeUsage {
			continue
		}
		assert.True(t, item.Capped)
		require.NotNil(t, item.OriginalAmountCents)
		assert.True(t, item.AmountCents.LessThan(*item.OriginalAmountCents))
		subtotal = subtotal.Add(item.AmountCents)
	}

	// the subtotal lands exactly on the cap; per-line round-up excess is
	// absorbed by the largest line
	assert.True(t, subtotal.Equal(decimal.NewFromInt(50_000)),
		"expected subtotal 50000, got %s", subtotal)
}

func TestValuateMaxCapNotTriggeredAtOrBelowCap(t *testing.T) {
	p := &plan.Plan{
		ID:       "plan_test",
		Name:     "Capped Plan",
		Currency: "USD",
		OverageRules: plan.OverageRuleMap{
			"compute": {
				Mode:      types.PricingModeFixedRate,
				FixedRate: &plan.FixedRateRule{RateCents: decimal.NewFromInt(1)},
			},
		},
		Caps: &plan.Caps{
			MaxUsageCents: lo.ToPtr(decimal.NewFromInt(50_000)),
		},
	}
	aggregated := []usage.MetricUsage{
		{Metric: "compute", TotalQuantity: decimal.NewFromInt(50_000), EventCount: 1},
	}

	items, err := Valuate(valuationSubscription(), p, aggregated)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.False(t, items[1].Capped)
	assert.Nil(t, items[1].OriginalAmountCents)
}

func TestValuateMinCapAddsAdjustment(t *testing.T) {
	p := &plan.Plan{
		ID:       "plan_test",
		Name:     "Committed Plan",
		Currency: "USD",
		OverageRules: plan.OverageRuleMap{
			"compute": {
				Mode:      types.PricingModeFixedRate,
				FixedRate: &plan.FixedRateRule{RateCents: decimal.NewFromInt(1)},
			},
		},
		Caps: &plan.Caps{
			MinUsageCents: lo.ToPtr(decimal.NewFromInt(10_000)),
		},
	}
	aggregated := []usage.MetricUsage{
		{Metric: "compute", TotalQuantity: decimal.NewFromInt(4_000), EventCount: 1},
	}

	items, err := Valuate(valuationSubscription(), p, aggregated)
	require.NoError(t, err)
	require.Len(t, items, 3)

	adjustment := items[2]
	assert.Equal(t, types.LineItemTypeAdjustment, adjustment.Type)
	assert.True(t, adjustment.AmountCents.Equal(decimal.NewFromInt(6_000)),
		"expected 6000, got %s", adjustment.AmountCents)
}

func TestValuateAllowanceCoversAllUsage(t *testing.T) {
	p := &plan.Plan{
		ID:       "plan_test",
		Name:     "Generous Plan",
		Currency: "USD",
		IncludedAllowances: plan.AllowanceMap{
			"api_calls": decimal.NewFromInt(10_000),
		},
		OverageRules: plan.OverageRuleMap{
			"api_calls": {
				Mode:      types.PricingModeFixedRate,
				FixedRate: &plan.FixedRateRule{RateCents: decimal.NewFromInt(1)},
			},
		},
	}
	aggregated := []usage.MetricUsage{
		{Metric: "api_calls", TotalQuantity: decimal.NewFromInt(9_999), EventCount: 1},
	}

	items, err := Valuate(valuationSubscription(), p, aggregated)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, types.LineItemTypeSubscription, items[0].Type)
}

func TestValuateDeterministic(t *testing.T) {
	p := &plan.Plan{
		ID:             "plan_test",
		Name:           "Mixed Plan",
		Currency:       "USD",
		BasePriceCents: decimal.NewFromInt(5000),
		OverageRules: plan.OverageRuleMap{
			"alpha": {
				Mode:      types.PricingModeFixedRate,
				FixedRate: &plan.FixedRateRule{RateCents: decimal.NewFromFloat(0.25)},
			},
			"beta": {
				Mode: types.PricingModeCostPlus,
				CostPlus: &plan.CostPlusRule{
					MarkupPercent:    decimal.NewFromInt(10),
					MarkupFixedCents: decimal.NewFromInt(50),
				},
			},
		},
	}
	aggregated := []usage.MetricUsage{
		{Metric: "beta", TotalQuantity: decimal.NewFromInt(300), TotalVendorCostCents: decimal.NewFromInt(900), EventCount: 2},
		{Metric: "alpha", TotalQuantity: decimal.NewFromInt(1234), EventCount: 5},
	}

	first, err := Valuate(valuationSubscription(), p, aggregated)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := Valuate(valuationSubscription(), p, aggregated)
		require.NoError(t, err)
		require.Len(t, again, len(first))
		for j := range first {
			assert.Equal(t, first[j].Metric, again[j].Metric)
			assert.True(t, first[j].AmountCents.Equal(again[j].AmountCents))
		}
	}

	// metrics are emitted in sorted order regardless of input order
	assert.Equal(t, "alpha", first[1].Metric)
	assert.Equal(t, "beta", first[2].Metric)
}
