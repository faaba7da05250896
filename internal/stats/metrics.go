package stats

import (
	"math"

	"github.com/splitlab/splitlab/internal/store"
)

// Derive recomputes every derived field of m from its raw counters. Zero
// denominators yield zero rates, never NaN. The Confidence field is owned by
// the significance engine and left untouched.
func Derive(m store.VariantMetrics) store.VariantMetrics {
	m.CTR = 0
	m.ConversionRate = 0
	m.CPA = 0
	m.ROAS = 0
	m.EngagementRate = 0
	m.ConfidenceInterval = nil

	if m.Impressions > 0 {
		m.CTR = float64(m.Clicks) / float64(m.Impressions) * 100
		m.EngagementRate = float64(m.Clicks+m.Conversions) / float64(m.Impressions) * 100
	}
	if m.Clicks > 0 {
		m.ConversionRate = float64(m.Conversions) / float64(m.Clicks) * 100
	}
	if m.Conversions > 0 {
		m.CPA = m.Cost / float64(m.Conversions)
	}
	if m.Cost > 0 {
		m.ROAS = m.Revenue / m.Cost
	}

	if m.SampleSize > 0 {
		lower, upper := WaldInterval(m.ConversionRate/100, m.SampleSize, 0.95)
		m.ConfidenceInterval = &store.ConfidenceInterval{Lower: lower, Upper: upper}
	}

	return m
}

// WaldInterval calculates the normal-approximation confidence interval for a
// binomial proportion p observed over n samples, clamped to [0, 1].
func WaldInterval(p float64, n uint64, confidence float64) (lower, upper float64) {
	if n == 0 {
		return 0, 0
	}

	z := ZScore(confidence)
	se := math.Sqrt(p * (1 - p) / float64(n))

	lower = p - z*se
	upper = p + z*se

	if lower < 0 {
		lower = 0
	}
	if upper > 1 {
		upper = 1
	}

	return lower, upper
}

// MetricValue reads one metric off a variant's (derived) metrics. The switch
// is exhaustive over store.Metric; unknown metrics are a programming error
// upstream because ParseMetric rejects them at the boundary.
func MetricValue(m store.VariantMetrics, metric store.Metric) float64 {
	switch metric {
	case store.MetricImpressions:
		return float64(m.Impressions)
	case store.MetricClicks:
		return float64(m.Clicks)
	case store.MetricConversions:
		return float64(m.Conversions)
	case store.MetricRevenue:
		return m.Revenue
	case store.MetricCTR:
		return m.CTR
	case store.MetricConversionRate:
		return m.ConversionRate
	case store.MetricCPA:
		return m.CPA
	case store.MetricROAS:
		return m.ROAS
	case store.MetricEngagementRate:
		return m.EngagementRate
	}
	panic("stats: unhandled metric " + string(metric))
}

// numeratorCount returns the event count that acts as the primary-metric
// numerator in the two-proportion z-test. Monetary metrics fall back to
// conversion counts, the closest countable success event.
func numeratorCount(m store.VariantMetrics, metric store.Metric) uint64 {
	switch metric {
	case store.MetricCTR, store.MetricClicks:
		return m.Clicks
	case store.MetricConversionRate, store.MetricConversions:
		return m.Conversions
	case store.MetricEngagementRate:
		return m.Clicks + m.Conversions
	case store.MetricImpressions:
		return m.Impressions
	case store.MetricRevenue, store.MetricCPA, store.MetricROAS:
		return m.Conversions
	}
	panic("stats: unhandled metric " + string(metric))
}
