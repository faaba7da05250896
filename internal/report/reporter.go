// Package report turns evaluated test results into advisory text. Nothing
// downstream branches on these strings.
package report

import (
	"fmt"

	"github.com/splitlab/splitlab/internal/store"
)

// Thresholds for qualitative insight statements, in percent.
const (
	lowCTR            = 1.0
	strongCTR         = 5.0
	lowConversionRate = 2.0
	strongConversion  = 10.0

	// revenueSpreadRatio flags variants whose revenue spread exceeds this
	// share of the lowest-earning arm.
	revenueSpreadRatio = 0.5
)

// Generate produces recommendations and insights for an evaluated test.
func Generate(t *store.Test, result *store.TestResult) (recommendations, insights []string) {
	recommendations = recommend(t, result)
	insights = observe(t, result)
	return recommendations, insights
}

func recommend(t *store.Test, result *store.TestResult) []string {
	var recs []string

	winner := result.Winner
	control := t.Control()

	switch {
	case winner.Significant && winner.VariantID != control.ID && winner.Uplift > 0:
		name := variantName(t, winner.VariantID)
		recs = append(recs, fmt.Sprintf(
			"Implement %q — expected uplift of %.1f%% in %s at %.1f%% confidence.",
			name, winner.Uplift, t.PrimaryMetric, winner.Confidence))
	case winner.Significant && winner.VariantID != control.ID:
		// Statistically different but worse than control.
		recs = append(recs, fmt.Sprintf(
			"Keep the control %q — %q differs significantly but underperforms it on %s.",
			control.Name, variantName(t, winner.VariantID), t.PrimaryMetric))
	default:
		recs = append(recs,
			"Continue the test — the observed difference is not statistically significant yet.")
	}

	if !sampleGateMet(t) {
		recs = append(recs, fmt.Sprintf(
			"Sample size is below the configured minimum of %d; treat these results as directional.",
			t.MinimumSampleSize))
	}

	return recs
}

func observe(t *store.Test, result *store.TestResult) []string {
	var insights []string

	n := float64(len(result.Comparison))
	if n == 0 {
		return insights
	}

	var sumCTR, sumConv float64
	minRevenue, maxRevenue := -1.0, 0.0
	for _, c := range result.Comparison {
		sumCTR += c.Metrics.CTR
		sumConv += c.Metrics.ConversionRate
		r := c.Metrics.Revenue
		if r > maxRevenue {
			maxRevenue = r
		}
		if r > 0 && (minRevenue < 0 || r < minRevenue) {
			minRevenue = r
		}
	}

	avgCTR := sumCTR / n
	avgConv := sumConv / n

	switch {
	case avgCTR > 0 && avgCTR < lowCTR:
		insights = append(insights, fmt.Sprintf(
			"Average click-through rate is low (%.2f%%); the creative may need a refresh.", avgCTR))
	case avgCTR >= strongCTR:
		insights = append(insights, fmt.Sprintf(
			"Average click-through rate is strong (%.2f%%) across all variants.", avgCTR))
	}

	switch {
	case avgConv > 0 && avgConv < lowConversionRate:
		insights = append(insights, fmt.Sprintf(
			"Average conversion rate is low (%.2f%%); the offer or landing flow may be the bottleneck.", avgConv))
	case avgConv >= strongConversion:
		insights = append(insights, fmt.Sprintf(
			"Average conversion rate is strong (%.2f%%) across all variants.", avgConv))
	}

	if minRevenue > 0 && maxRevenue-minRevenue > revenueSpreadRatio*minRevenue {
		insights = append(insights, fmt.Sprintf(
			"Revenue varies widely across variants (%.0f%% spread over the lowest-earning arm).",
			(maxRevenue-minRevenue)/minRevenue*100))
	}

	return insights
}

func variantName(t *store.Test, id string) string {
	if v := t.VariantByID(id); v != nil {
		return v.Name
	}
	return id
}

func sampleGateMet(t *store.Test) bool {
	var total uint64
	for i := range t.Variants {
		total += t.Variants[i].Metrics.SampleSize
	}
	return total >= uint64(t.MinimumSampleSize)
}
