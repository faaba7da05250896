package engine

import (
	"math"
	"sync/atomic"

	"github.com/splitlab/splitlab/internal/store"
)

// counterSet holds one variant's live raw counters. Increments are lock-free
// so concurrent recorders on the same variant never serialize, and counters
// for different variants share nothing.
type counterSet struct {
	impressions atomic.Uint64
	clicks      atomic.Uint64
	conversions atomic.Uint64
	sampleSize  atomic.Uint64
	revenueBits atomic.Uint64 // float64 bits, updated via CAS
	costBits    atomic.Uint64
}

func addFloat(bits *atomic.Uint64, delta float64) {
	for {
		old := bits.Load()
		next := math.Float64bits(math.Float64frombits(old) + delta)
		if bits.CompareAndSwap(old, next) {
			return
		}
	}
}

func (c *counterSet) addRevenue(v float64) { addFloat(&c.revenueBits, v) }
func (c *counterSet) addCost(v float64)    { addFloat(&c.costBits, v) }

// snapshot returns a point-in-time copy of the raw counters. Readers never
// block writers; a snapshot taken mid-burst is simply slightly stale.
func (c *counterSet) snapshot() store.VariantMetrics {
	return store.VariantMetrics{
		Impressions: c.impressions.Load(),
		Clicks:      c.clicks.Load(),
		Conversions: c.conversions.Load(),
		Revenue:     math.Float64frombits(c.revenueBits.Load()),
		Cost:        math.Float64frombits(c.costBits.Load()),
		SampleSize:  c.sampleSize.Load(),
	}
}

func (c *counterSet) reset() {
	c.impressions.Store(0)
	c.clicks.Store(0)
	c.conversions.Store(0)
	c.sampleSize.Store(0)
	c.revenueBits.Store(0)
	c.costBits.Store(0)
}

// hydrate seeds the counters from event-log totals after a restart. The
// sample size is recomputed from the test's sample source.
func (c *counterSet) hydrate(t store.VariantTotals, source store.SampleSource) {
	c.impressions.Store(t.Impressions)
	c.clicks.Store(t.Clicks)
	c.conversions.Store(t.Conversions)
	c.revenueBits.Store(math.Float64bits(t.Revenue))
	c.costBits.Store(math.Float64bits(t.Cost))

	switch source {
	case store.SampleByClicks:
		c.sampleSize.Store(t.Clicks)
	default:
		c.sampleSize.Store(t.Impressions)
	}
}
