package stats_test

import (
	"math"
	"testing"

	"github.com/splitlab/splitlab/internal/stats"
	"github.com/splitlab/splitlab/internal/store"
)

func TestDerive_BasicRates(t *testing.T) {
	m := stats.Derive(store.VariantMetrics{
		Impressions: 1000,
		Clicks:      100,
		Conversions: 10,
		Revenue:     500,
		Cost:        200,
		SampleSize:  1000,
	})

	if m.CTR != 10 {
		t.Errorf("ctr = %f, want 10", m.CTR)
	}
	if m.ConversionRate != 10 {
		t.Errorf("conversion rate = %f, want 10", m.ConversionRate)
	}
	if m.CPA != 20 {
		t.Errorf("cpa = %f, want 20", m.CPA)
	}
	if m.ROAS != 2.5 {
		t.Errorf("roas = %f, want 2.5", m.ROAS)
	}
	if m.EngagementRate != 11 {
		t.Errorf("engagement rate = %f, want 11", m.EngagementRate)
	}
}

func TestDerive_ZeroDenominators(t *testing.T) {
	m := stats.Derive(store.VariantMetrics{})

	for name, v := range map[string]float64{
		"ctr":             m.CTR,
		"conversion rate": m.ConversionRate,
		"cpa":             m.CPA,
		"roas":            m.ROAS,
		"engagement rate": m.EngagementRate,
	} {
		if v != 0 {
			t.Errorf("%s = %f, want 0 with no data", name, v)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("%s is not finite", name)
		}
	}

	if m.ConfidenceInterval != nil {
		t.Error("expected no confidence interval without samples")
	}
}

func TestDerive_ZeroClicksZeroConversionRate(t *testing.T) {
	// Impressions without clicks must give a 0 conversion rate, never NaN.
	m := stats.Derive(store.VariantMetrics{Impressions: 500, SampleSize: 500})

	if m.ConversionRate != 0 {
		t.Errorf("conversion rate = %f, want 0 when clicks == 0", m.ConversionRate)
	}
	if math.IsNaN(m.ConversionRate) {
		t.Error("conversion rate is NaN")
	}
}

func TestDerive_RecomputesStaleValues(t *testing.T) {
	// Derived fields are cache: garbage in them must be overwritten.
	m := stats.Derive(store.VariantMetrics{
		Impressions:    100,
		Clicks:         10,
		CTR:            99,
		ConversionRate: 99,
		SampleSize:     100,
	})

	if m.CTR != 10 {
		t.Errorf("ctr = %f, want recomputed 10", m.CTR)
	}
	if m.ConversionRate != 0 {
		t.Errorf("conversion rate = %f, want recomputed 0", m.ConversionRate)
	}
}

func TestWaldInterval_BracketsProportion(t *testing.T) {
	lower, upper := stats.WaldInterval(0.1, 1000, 0.95)

	if lower >= 0.1 || upper <= 0.1 {
		t.Errorf("interval [%f, %f] does not bracket 0.1", lower, upper)
	}
	if lower < 0 || upper > 1 {
		t.Errorf("interval [%f, %f] out of bounds", lower, upper)
	}

	// z=1.96, se=sqrt(0.1*0.9/1000)=0.009487
	wantSpread := 1.96 * math.Sqrt(0.1*0.9/1000)
	if math.Abs((upper-lower)/2-wantSpread) > 1e-9 {
		t.Errorf("half-width = %f, want %f", (upper-lower)/2, wantSpread)
	}
}

func TestWaldInterval_Clamped(t *testing.T) {
	lower, _ := stats.WaldInterval(0.001, 50, 0.95)
	if lower != 0 {
		t.Errorf("lower = %f, want clamped to 0", lower)
	}

	_, upper := stats.WaldInterval(0.999, 50, 0.95)
	if upper != 1 {
		t.Errorf("upper = %f, want clamped to 1", upper)
	}
}

func TestWaldInterval_NoSamples(t *testing.T) {
	lower, upper := stats.WaldInterval(0.5, 0, 0.95)
	if lower != 0 || upper != 0 {
		t.Errorf("interval [%f, %f], want [0, 0] with no samples", lower, upper)
	}
}

func TestMetricValue_AllMetrics(t *testing.T) {
	m := store.VariantMetrics{
		Impressions:    1000,
		Clicks:         100,
		Conversions:    10,
		Revenue:        500,
		CTR:            10,
		ConversionRate: 10,
		CPA:            20,
		ROAS:           2.5,
		EngagementRate: 11,
	}

	cases := map[store.Metric]float64{
		store.MetricImpressions:    1000,
		store.MetricClicks:         100,
		store.MetricConversions:    10,
		store.MetricRevenue:        500,
		store.MetricCTR:            10,
		store.MetricConversionRate: 10,
		store.MetricCPA:            20,
		store.MetricROAS:           2.5,
		store.MetricEngagementRate: 11,
	}

	for metric, want := range cases {
		if got := stats.MetricValue(m, metric); got != want {
			t.Errorf("MetricValue(%s) = %f, want %f", metric, got, want)
		}
	}
}
