package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/splitlab/splitlab/internal/report"
	"github.com/splitlab/splitlab/internal/stats"
	"github.com/splitlab/splitlab/internal/store"
)

// DefaultSignificanceLevel is the p-value threshold used when a spec does
// not set one.
const DefaultSignificanceLevel = 0.05

// ErrInsufficientData is returned when results are requested for a running
// test that has not reached its minimum sample size.
var ErrInsufficientData = errors.New("not enough samples to evaluate results")

// Engine drives the experiment lifecycle: creation, traffic allocation,
// event ingestion and result evaluation. Durable state lives behind the
// injected Store; live counters are kept in memory and rebuilt from the
// store's event log after a restart.
type Engine struct {
	store    store.Store
	log      *slog.Logger
	validate *validator.Validate

	mu    sync.Mutex
	tests map[string]*testState
}

// testState is the per-test runtime state. Its lock makes lifecycle
// transitions mutually exclusive with each other; recorders and readers take
// the shared side, so the RUNNING re-check cannot interleave with a
// transition in flight. Transitions on different tests never contend.
type testState struct {
	mu       sync.RWMutex
	test     *store.Test
	counters map[string]*counterSet // keyed by variant ID
}

func newTestState(test *store.Test) *testState {
	st := &testState{
		test:     test,
		counters: make(map[string]*counterSet, len(test.Variants)),
	}
	for i := range test.Variants {
		st.counters[test.Variants[i].ID] = &counterSet{}
	}
	return st
}

func New(s store.Store, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		store:    s,
		log:      log,
		validate: validator.New(),
		tests:    make(map[string]*testState),
	}
}

// state returns the live state for a test, loading it from the store on
// first touch. Counters of a running test are hydrated from the event log.
func (e *Engine) state(ctx context.Context, id string) (*testState, error) {
	e.mu.Lock()
	st, ok := e.tests[id]
	e.mu.Unlock()
	if ok {
		return st, nil
	}

	test, err := e.store.GetTest(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load test %s: %w", id, err)
	}

	st = newTestState(test)
	if test.Status == store.StatusRunning {
		totals, err := e.store.TotalsByVariant(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("hydrate counters for test %s: %w", id, err)
		}
		for _, t := range totals {
			if cs, ok := st.counters[t.VariantID]; ok {
				cs.hydrate(t, test.SampleSource)
			}
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if existing, ok := e.tests[id]; ok {
		return existing, nil
	}
	e.tests[id] = st
	return st, nil
}

// CreateTest validates the spec and persists a new test in DRAFT. A failed
// validation reports every violation and persists nothing.
func (e *Engine) CreateTest(ctx context.Context, spec TestSpec) (*store.Test, error) {
	if spec.SignificanceLevel == 0 {
		spec.SignificanceLevel = DefaultSignificanceLevel
	}
	if spec.SampleSource == "" {
		spec.SampleSource = store.SampleByImpressions
	}
	if err := e.validateSpec(&spec); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	test := &store.Test{
		ID:                uuid.NewString(),
		CampaignID:        spec.CampaignID,
		Name:              spec.Name,
		Description:       spec.Description,
		Status:            store.StatusDraft,
		Variants:          make([]store.Variant, len(spec.Variants)),
		PrimaryMetric:     spec.PrimaryMetric,
		SecondaryMetrics:  spec.SecondaryMetrics,
		SignificanceLevel: spec.SignificanceLevel,
		MinimumSampleSize: spec.MinimumSampleSize,
		SampleSource:      spec.SampleSource,
		TargetAudience:    spec.TargetAudience,
		CreatedAt:         now,
		CreatedBy:         spec.CreatedBy,
		UpdatedAt:         now,
	}
	for i, vs := range spec.Variants {
		test.Variants[i] = store.Variant{
			ID:           uuid.NewString(),
			Name:         vs.Name,
			Description:  vs.Description,
			Type:         vs.Type,
			Content:      vs.Content,
			TrafficSplit: vs.TrafficSplit,
		}
	}

	if err := e.store.CreateTest(ctx, test); err != nil {
		return nil, fmt.Errorf("persist test: %w", err)
	}

	e.mu.Lock()
	e.tests[test.ID] = newTestState(test.Clone())
	e.mu.Unlock()

	e.log.Info("test created",
		"test_id", test.ID,
		"campaign_id", test.CampaignID,
		"variants", len(test.Variants))
	return test, nil
}

// StartTest transitions DRAFT → RUNNING, zeroing all variant metrics.
func (e *Engine) StartTest(ctx context.Context, testID string) (*store.Test, error) {
	st, err := e.state(ctx, testID)
	if err != nil {
		return nil, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.test.Status != store.StatusDraft {
		return nil, &InvalidStateError{Op: "start", Status: st.test.Status}
	}

	now := time.Now().UTC()
	updated := st.test.Clone()
	for i := range updated.Variants {
		updated.Variants[i].Metrics = store.VariantMetrics{}
	}
	updated.Status = store.StatusRunning
	updated.StartDate = &now
	updated.UpdatedAt = now

	if err := e.store.UpdateTest(ctx, updated); err != nil {
		return nil, fmt.Errorf("persist test %s: %w", testID, err)
	}

	st.test = updated
	for _, cs := range st.counters {
		cs.reset()
	}

	e.log.Info("test started", "test_id", testID)
	return updated.Clone(), nil
}

// PauseTest transitions RUNNING → PAUSED, snapshotting counters and, when
// the sample gate is met, the evaluated results.
func (e *Engine) PauseTest(ctx context.Context, testID string) (*store.Test, error) {
	st, err := e.state(ctx, testID)
	if err != nil {
		return nil, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.test.Status != store.StatusRunning {
		return nil, &InvalidStateError{Op: "pause", Status: st.test.Status}
	}

	now := time.Now().UTC()
	updated := st.test.Clone()
	snapshotMetrics(st, updated)
	if sampleGateMet(updated) {
		evaluate(updated)
	}
	updated.Status = store.StatusPaused
	updated.EndDate = &now
	updated.UpdatedAt = now

	if err := e.store.UpdateTest(ctx, updated); err != nil {
		return nil, fmt.Errorf("persist test %s: %w", testID, err)
	}
	st.test = updated

	e.log.Info("test paused", "test_id", testID, "has_results", updated.Results != nil)
	return updated.Clone(), nil
}

// CompleteTest transitions RUNNING or PAUSED → COMPLETED. Results are always
// evaluated, regardless of the sample gate, and frozen from here on.
func (e *Engine) CompleteTest(ctx context.Context, testID string) (*store.Test, error) {
	st, err := e.state(ctx, testID)
	if err != nil {
		return nil, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.test.Status != store.StatusRunning && st.test.Status != store.StatusPaused {
		return nil, &InvalidStateError{Op: "complete", Status: st.test.Status}
	}

	now := time.Now().UTC()
	updated := st.test.Clone()
	snapshotMetrics(st, updated)
	evaluate(updated)
	updated.Status = store.StatusCompleted
	if updated.EndDate == nil {
		updated.EndDate = &now
	}
	updated.UpdatedAt = now

	if err := e.store.UpdateTest(ctx, updated); err != nil {
		return nil, fmt.Errorf("persist test %s: %w", testID, err)
	}
	st.test = updated

	e.log.Info("test completed",
		"test_id", testID,
		"winner", updated.Results.Winner.VariantID,
		"significant", updated.Results.Winner.Significant)
	return updated.Clone(), nil
}

// RecordEvent applies one event to a variant's live counters and appends it
// to the durable event log. The RUNNING check shares the transition lock, so
// a completing test can never silently absorb a late event.
func (e *Engine) RecordEvent(ctx context.Context, testID, variantID string, eventType store.EventType, value float64) error {
	if _, err := store.ParseEventType(string(eventType)); err != nil {
		return fmt.Errorf("record event: %w", err)
	}

	st, err := e.state(ctx, testID)
	if err != nil {
		return err
	}

	st.mu.RLock()
	defer st.mu.RUnlock()

	if st.test.Status != store.StatusRunning {
		return &InvalidStateError{Op: "record event on", Status: st.test.Status}
	}

	cs, ok := st.counters[variantID]
	if !ok {
		return fmt.Errorf("variant %s on test %s: %w", variantID, testID, store.ErrNotFound)
	}

	if err := e.store.AppendEvent(ctx, &store.Event{
		TestID:    testID,
		VariantID: variantID,
		Type:      eventType,
		Value:     value,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		return fmt.Errorf("append event: %w", err)
	}

	switch eventType {
	case store.EventImpression:
		cs.impressions.Add(1)
	case store.EventClick:
		cs.clicks.Add(1)
	case store.EventConversion:
		cs.conversions.Add(1)
		if value != 0 {
			cs.addRevenue(value)
		}
	case store.EventRevenue:
		cs.addRevenue(value)
	}

	if sampleEvent(st.test.SampleSource) == eventType {
		cs.sampleSize.Add(1)
	}

	e.log.Debug("event recorded",
		"test_id", testID,
		"variant_id", variantID,
		"type", string(eventType))
	return nil
}

// RecordSpend attributes acquisition cost to a variant. Spend is not a
// recordable event type; it exists so cpa and roas have a real denominator.
func (e *Engine) RecordSpend(ctx context.Context, testID, variantID string, amount float64) error {
	st, err := e.state(ctx, testID)
	if err != nil {
		return err
	}

	st.mu.RLock()
	defer st.mu.RUnlock()

	if st.test.Status != store.StatusRunning {
		return &InvalidStateError{Op: "record spend on", Status: st.test.Status}
	}

	cs, ok := st.counters[variantID]
	if !ok {
		return fmt.Errorf("variant %s on test %s: %w", variantID, testID, store.ErrNotFound)
	}

	if err := e.store.AppendEvent(ctx, &store.Event{
		TestID:    testID,
		VariantID: variantID,
		Type:      store.EventSpend,
		Value:     amount,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		return fmt.Errorf("append event: %w", err)
	}

	cs.addCost(amount)
	return nil
}

// GetTest returns a point-in-time view of the test with live counters
// overlaid and derived metrics recomputed.
func (e *Engine) GetTest(ctx context.Context, testID string) (*store.Test, error) {
	st, err := e.state(ctx, testID)
	if err != nil {
		return nil, err
	}

	st.mu.RLock()
	defer st.mu.RUnlock()
	return view(st), nil
}

// ListTests returns all tests, optionally filtered by campaign. Tests with
// live state get current counters; cold tests get their stored snapshot.
func (e *Engine) ListTests(ctx context.Context, campaignID string) ([]*store.Test, error) {
	tests, err := e.store.ListTests(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list tests: %w", err)
	}

	for i, t := range tests {
		e.mu.Lock()
		st, ok := e.tests[t.ID]
		e.mu.Unlock()
		if ok {
			st.mu.RLock()
			tests[i] = view(st)
			st.mu.RUnlock()
		} else {
			refreshDerived(t)
		}
	}
	return tests, nil
}

// EvaluateTest computes results on demand. On a RUNNING test past its sample
// gate it stores and returns a provisional result; PAUSED and COMPLETED
// tests return their snapshot unchanged.
func (e *Engine) EvaluateTest(ctx context.Context, testID string) (*store.TestResult, error) {
	st, err := e.state(ctx, testID)
	if err != nil {
		return nil, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	switch st.test.Status {
	case store.StatusPaused, store.StatusCompleted:
		if st.test.Results == nil {
			return nil, ErrInsufficientData
		}
		return st.test.Clone().Results, nil
	case store.StatusRunning:
		// evaluated below
	default:
		return nil, &InvalidStateError{Op: "evaluate", Status: st.test.Status}
	}

	updated := st.test.Clone()
	snapshotMetrics(st, updated)
	if !sampleGateMet(updated) {
		return nil, ErrInsufficientData
	}
	evaluate(updated)
	updated.UpdatedAt = time.Now().UTC()

	if err := e.store.UpdateTest(ctx, updated); err != nil {
		return nil, fmt.Errorf("persist test %s: %w", testID, err)
	}
	st.test = updated

	return updated.Clone().Results, nil
}

// snapshotMetrics copies the live counters into the test's variant metrics
// and recomputes the derived fields.
func snapshotMetrics(st *testState, t *store.Test) {
	for i := range t.Variants {
		v := &t.Variants[i]
		raw := st.counters[v.ID].snapshot()
		raw.Confidence = v.Metrics.Confidence
		v.Metrics = stats.Derive(raw)
	}
}

// evaluate runs the significance engine and the reporter, writing the result
// and per-variant confidences into t.
func evaluate(t *store.Test) {
	result := stats.Evaluate(t)
	result.Recommendations, result.Insights = report.Generate(t, result)
	for _, c := range result.Comparison {
		if v := t.VariantByID(c.VariantID); v != nil {
			v.Metrics.Confidence = c.Metrics.Confidence
		}
	}
	t.Results = result
}

func sampleGateMet(t *store.Test) bool {
	var total uint64
	for i := range t.Variants {
		total += t.Variants[i].Metrics.SampleSize
	}
	return total >= uint64(t.MinimumSampleSize)
}

func sampleEvent(source store.SampleSource) store.EventType {
	if source == store.SampleByClicks {
		return store.EventClick
	}
	return store.EventImpression
}

// view clones the test and overlays live counters on a running test.
func view(st *testState) *store.Test {
	t := st.test.Clone()
	if t.Status == store.StatusRunning {
		snapshotMetrics(st, t)
	} else {
		refreshDerived(t)
	}
	return t
}

// refreshDerived recomputes derived metrics from stored raw counters,
// keeping the last evaluated confidence.
func refreshDerived(t *store.Test) {
	for i := range t.Variants {
		t.Variants[i].Metrics = stats.Derive(t.Variants[i].Metrics)
	}
}
