package stats

import (
	"math"
	"time"

	"github.com/splitlab/splitlab/internal/store"
)

// ZTest performs a two-proportion z-test between a control and a variant.
// Counts are the primary-metric numerators, n the sample sizes. Returns 0
// when either arm has no samples or the pooled standard error collapses.
func ZTest(controlCount, controlN, variantCount, variantN uint64) float64 {
	if controlN == 0 || variantN == 0 {
		return 0
	}

	pControl := float64(controlCount) / float64(controlN)
	pVariant := float64(variantCount) / float64(variantN)

	// Pooled proportion under the null hypothesis (pControl = pVariant)
	pooled := float64(controlCount+variantCount) / float64(controlN+variantN)

	se := math.Sqrt(pooled * (1 - pooled) * (1/float64(controlN) + 1/float64(variantN)))
	if se == 0 {
		return 0
	}

	return (pVariant - pControl) / se
}

// Uplift is the relative improvement of variant over control, in percent.
// A zero control value yields 0 rather than a division blow-up.
func Uplift(control, variant float64) float64 {
	if control == 0 {
		return 0
	}
	return (variant - control) / control * 100
}

// Evaluate compares every variant of the test against its control
// (variants[0]) on the primary metric and assembles a TestResult. Variant
// metrics must already be derived; Evaluate only reads them.
//
// The winner starts as the control at 50% confidence and is replaced by any
// variant whose confidence strictly exceeds the current winner's, so ties
// keep the earlier variant.
func Evaluate(test *store.Test) *store.TestResult {
	control := test.Control()
	primary := test.PrimaryMetric

	winner := store.WinnerSummary{
		VariantID:  control.ID,
		Confidence: 50,
	}
	winnerPValue := 0.5

	comparison := make([]store.VariantComparison, 0, len(test.Variants))
	for i := range test.Variants {
		v := &test.Variants[i]
		m := v.Metrics

		if i == 0 {
			m.Confidence = 50
		} else {
			z := ZTest(
				numeratorCount(control.Metrics, primary), control.Metrics.SampleSize,
				numeratorCount(m, primary), m.SampleSize,
			)
			pValue := TwoTailedPValue(z)
			confidence := (1 - pValue) * 100
			m.Confidence = confidence

			if confidence > winner.Confidence {
				winner = store.WinnerSummary{
					VariantID:   v.ID,
					Confidence:  confidence,
					Uplift:      Uplift(MetricValue(control.Metrics, primary), MetricValue(m, primary)),
					Significant: pValue < test.SignificanceLevel,
				}
				winnerPValue = pValue
			}
		}

		perf := store.Performance{Primary: MetricValue(m, primary)}
		if len(test.SecondaryMetrics) > 0 {
			perf.Secondary = make(map[store.Metric]float64, len(test.SecondaryMetrics))
			for _, sm := range test.SecondaryMetrics {
				perf.Secondary[sm] = MetricValue(m, sm)
			}
		}

		comparison = append(comparison, store.VariantComparison{
			VariantID:   v.ID,
			Metrics:     m,
			Performance: perf,
		})
	}

	return &store.TestResult{
		Winner: winner,
		Significance: store.SignificanceSummary{
			PValue:        winnerPValue,
			IsSignificant: winner.Significant,
			Confidence:    winner.Confidence,
		},
		Comparison:  comparison,
		EvaluatedAt: time.Now().UTC(),
	}
}
