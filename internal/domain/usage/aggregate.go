package usage

import "sort"

// Aggregate groups events by metric, summing quantity and vendor cost.
// Results are ordered by metric key so downstream valuation is deterministic.
func Aggregate(events []*Event) []MetricUsage {
	byMetric := make(map[string]*MetricUsage)
	for _, e := range events {
		mu, ok := byMetric[e.Metric]
		if !ok {
			mu = &MetricUsage{Metric: e.Metric}
			byMetric[e.Metric] = mu
		}
		mu.TotalQuantity = mu.TotalQuantity.Add(e.Quantity)
		mu.TotalVendorCostCents = mu.TotalVendorCostCents.Add(e.VendorCostCents)
		mu.EventCount++
	}

	result := make([]MetricUsage, 0, len(byMetric))
	for _, mu := range byMetric {
		result = append(result, *mu)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Metric < result[j].Metric
	})
	return result
}
