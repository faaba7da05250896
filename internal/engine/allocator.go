package engine

import (
	"context"
	"hash/fnv"

	"github.com/splitlab/splitlab/internal/store"
)

// Allocate resolves which variant a traffic unit (session/user key) belongs
// to on a running test. The mapping is a pure function of test ID, unit ID
// and the declared traffic splits, so the same unit always lands on the same
// variant for the life of the test.
func (e *Engine) Allocate(ctx context.Context, testID, unitID string) (*store.Variant, error) {
	st, err := e.state(ctx, testID)
	if err != nil {
		return nil, err
	}

	st.mu.RLock()
	defer st.mu.RUnlock()

	if st.test.Status != store.StatusRunning {
		return nil, &InvalidStateError{Op: "allocate traffic on", Status: st.test.Status}
	}

	v := pickVariant(st.test.Variants, bucket(testID, unitID))

	// Return the variant definition only; metrics belong to GetTest reads.
	out := *v
	out.Metrics = store.VariantMetrics{}
	return &out, nil
}

// bucket hashes a unit into [0, 100). Seeding with the test ID keeps the
// same unit independent across tests.
func bucket(testID, unitID string) float64 {
	h := fnv.New64a()
	h.Write([]byte(testID))
	h.Write([]byte{0})
	h.Write([]byte(unitID))
	return float64(h.Sum64()%100000) / 1000
}

// pickVariant walks cumulative traffic-split ranges in declaration order,
// e.g. A:[0,50) B:[50,100). The final variant absorbs any floating-point
// tail so a valid split set can never leave a unit unassigned.
func pickVariant(variants []store.Variant, point float64) *store.Variant {
	cumulative := 0.0
	for i := range variants {
		cumulative += variants[i].TrafficSplit
		if point < cumulative {
			return &variants[i]
		}
	}
	return &variants[len(variants)-1]
}
