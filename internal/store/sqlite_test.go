package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/splitlab/splitlab/internal/store"
)

func openStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleTest(id, campaignID string) *store.Test {
	now := time.Now().UTC().Truncate(time.Second)
	return &store.Test{
		ID:                id,
		CampaignID:        campaignID,
		Name:              "homepage hero",
		Description:       "hero image vs product grid",
		Status:            store.StatusDraft,
		PrimaryMetric:     store.MetricConversionRate,
		SecondaryMetrics:  []store.Metric{store.MetricCTR, store.MetricRevenue},
		SignificanceLevel: 0.05,
		MinimumSampleSize: 1000,
		SampleSource:      store.SampleByImpressions,
		Variants: []store.Variant{
			{ID: id + "-a", Name: "Control", Type: store.VariantCreative, TrafficSplit: 50},
			{ID: id + "-b", Name: "Grid", Type: store.VariantCreative, TrafficSplit: 50},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCreateAndGetTest(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	want := sampleTest("tst-1", "cmp-1")
	if err := s.CreateTest(ctx, want); err != nil {
		t.Fatalf("failed to create test: %v", err)
	}

	got, err := s.GetTest(ctx, "tst-1")
	if err != nil {
		t.Fatalf("failed to get test: %v", err)
	}

	if got.Name != want.Name {
		t.Errorf("name = %q, want %q", got.Name, want.Name)
	}
	if got.Status != store.StatusDraft {
		t.Errorf("status = %s, want draft", got.Status)
	}
	if got.PrimaryMetric != store.MetricConversionRate {
		t.Errorf("primary metric = %s", got.PrimaryMetric)
	}
	if len(got.SecondaryMetrics) != 2 {
		t.Errorf("secondary metrics = %v, want 2 entries", got.SecondaryMetrics)
	}
	if len(got.Variants) != 2 {
		t.Fatalf("variants = %d, want 2", len(got.Variants))
	}
	if got.Variants[0].ID != "tst-1-a" || got.Variants[1].TrafficSplit != 50 {
		t.Errorf("variants did not round-trip: %+v", got.Variants)
	}
	if got.Results != nil {
		t.Error("fresh test must have no results")
	}
	if got.StartDate != nil || got.EndDate != nil {
		t.Error("fresh test must have no start or end date")
	}
}

func TestGetTest_NotFound(t *testing.T) {
	s := openStore(t)

	_, err := s.GetTest(context.Background(), "missing")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListTests_CampaignFilter(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	for i, campaign := range []string{"cmp-1", "cmp-1", "cmp-2"} {
		test := sampleTest(string(rune('a'+i)), campaign)
		if err := s.CreateTest(ctx, test); err != nil {
			t.Fatalf("failed to create test: %v", err)
		}
	}

	all, err := s.ListTests(ctx, "")
	if err != nil {
		t.Fatalf("failed to list tests: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("unfiltered list has %d tests, want 3", len(all))
	}

	filtered, err := s.ListTests(ctx, "cmp-1")
	if err != nil {
		t.Fatalf("failed to list tests: %v", err)
	}
	if len(filtered) != 2 {
		t.Errorf("filtered list has %d tests, want 2", len(filtered))
	}
	for _, test := range filtered {
		if test.CampaignID != "cmp-1" {
			t.Errorf("filter leaked campaign %s", test.CampaignID)
		}
	}
}

func TestUpdateTest(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	test := sampleTest("tst-1", "cmp-1")
	if err := s.CreateTest(ctx, test); err != nil {
		t.Fatalf("failed to create test: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	test.Status = store.StatusRunning
	test.StartDate = &now
	test.Variants[0].Metrics.Impressions = 500
	if err := s.UpdateTest(ctx, test); err != nil {
		t.Fatalf("failed to update test: %v", err)
	}

	got, err := s.GetTest(ctx, "tst-1")
	if err != nil {
		t.Fatalf("failed to get test: %v", err)
	}
	if got.Status != store.StatusRunning {
		t.Errorf("status = %s, want running", got.Status)
	}
	if got.StartDate == nil || !got.StartDate.Equal(now) {
		t.Errorf("start date = %v, want %v", got.StartDate, now)
	}
	if got.Variants[0].Metrics.Impressions != 500 {
		t.Errorf("impressions = %d, want 500", got.Variants[0].Metrics.Impressions)
	}
}

func TestUpdateTest_PersistsResults(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	test := sampleTest("tst-1", "cmp-1")
	if err := s.CreateTest(ctx, test); err != nil {
		t.Fatalf("failed to create test: %v", err)
	}

	test.Status = store.StatusCompleted
	test.Results = &store.TestResult{
		Winner: store.WinnerSummary{
			VariantID:   "tst-1-b",
			Confidence:  97.5,
			Uplift:      42,
			Significant: true,
		},
		Significance: store.SignificanceSummary{PValue: 0.01, IsSignificant: true, Confidence: 99},
		Recommendations: []string{
			"Implement the winning variant",
		},
		EvaluatedAt: time.Now().UTC().Truncate(time.Second),
	}
	if err := s.UpdateTest(ctx, test); err != nil {
		t.Fatalf("failed to update test: %v", err)
	}

	got, err := s.GetTest(ctx, "tst-1")
	if err != nil {
		t.Fatalf("failed to get test: %v", err)
	}
	if got.Results == nil {
		t.Fatal("results did not persist")
	}
	if got.Results.Winner.VariantID != "tst-1-b" {
		t.Errorf("winner = %s, want tst-1-b", got.Results.Winner.VariantID)
	}
	if !got.Results.Significance.IsSignificant {
		t.Error("significance flag did not persist")
	}
	if len(got.Results.Recommendations) != 1 {
		t.Errorf("recommendations = %v", got.Results.Recommendations)
	}
}

func TestUpdateTest_NotFound(t *testing.T) {
	s := openStore(t)

	err := s.UpdateTest(context.Background(), sampleTest("ghost", "cmp-1"))
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteTest(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	test := sampleTest("tst-1", "cmp-1")
	if err := s.CreateTest(ctx, test); err != nil {
		t.Fatalf("failed to create test: %v", err)
	}
	appendEvents(t, s, "tst-1", "tst-1-a", store.EventImpression, 3)

	if err := s.DeleteTest(ctx, "tst-1"); err != nil {
		t.Fatalf("failed to delete test: %v", err)
	}

	if _, err := s.GetTest(ctx, "tst-1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	events, err := s.Events(ctx, "tst-1")
	if err != nil {
		t.Fatalf("failed to get events: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("delete left %d orphaned events", len(events))
	}

	if err := s.DeleteTest(ctx, "tst-1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound on double delete, got %v", err)
	}
}

func appendEvents(t *testing.T, s store.Store, testID, variantID string, eventType store.EventType, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		err := s.AppendEvent(context.Background(), &store.Event{
			TestID:    testID,
			VariantID: variantID,
			Type:      eventType,
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("failed to append event: %v", err)
		}
	}
}

func TestEvents_OrderedByInsertion(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	test := sampleTest("tst-1", "cmp-1")
	if err := s.CreateTest(ctx, test); err != nil {
		t.Fatalf("failed to create test: %v", err)
	}

	types := []store.EventType{store.EventImpression, store.EventClick, store.EventConversion}
	for _, typ := range types {
		appendEvents(t, s, "tst-1", "tst-1-a", typ, 1)
	}

	events, err := s.Events(ctx, "tst-1")
	if err != nil {
		t.Fatalf("failed to get events: %v", err)
	}
	if len(events) != len(types) {
		t.Fatalf("got %d events, want %d", len(events), len(types))
	}
	for i, e := range events {
		if e.Type != types[i] {
			t.Errorf("event %d has type %s, want %s", i, e.Type, types[i])
		}
		if e.ID == 0 {
			t.Errorf("event %d has no ID", i)
		}
	}
}

func TestTotalsByVariant(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	test := sampleTest("tst-1", "cmp-1")
	if err := s.CreateTest(ctx, test); err != nil {
		t.Fatalf("failed to create test: %v", err)
	}

	appendEvents(t, s, "tst-1", "tst-1-a", store.EventImpression, 10)
	appendEvents(t, s, "tst-1", "tst-1-a", store.EventClick, 4)
	appendEvents(t, s, "tst-1", "tst-1-b", store.EventImpression, 7)

	// Conversions carry order value; revenue and spend are standalone sums.
	for _, ev := range []*store.Event{
		{TestID: "tst-1", VariantID: "tst-1-a", Type: store.EventConversion, Value: 30},
		{TestID: "tst-1", VariantID: "tst-1-a", Type: store.EventRevenue, Value: 12.5},
		{TestID: "tst-1", VariantID: "tst-1-a", Type: store.EventSpend, Value: 20},
	} {
		ev.CreatedAt = time.Now().UTC()
		if err := s.AppendEvent(ctx, ev); err != nil {
			t.Fatalf("failed to append event: %v", err)
		}
	}

	totals, err := s.TotalsByVariant(ctx, "tst-1")
	if err != nil {
		t.Fatalf("failed to get totals: %v", err)
	}
	if len(totals) != 2 {
		t.Fatalf("got totals for %d variants, want 2", len(totals))
	}

	byID := make(map[string]store.VariantTotals)
	for _, tot := range totals {
		byID[tot.VariantID] = tot
	}

	a := byID["tst-1-a"]
	if a.Impressions != 10 || a.Clicks != 4 || a.Conversions != 1 {
		t.Errorf("variant a counts = %+v", a)
	}
	if a.Revenue != 42.5 {
		t.Errorf("variant a revenue = %f, want 42.5", a.Revenue)
	}
	if a.Cost != 20 {
		t.Errorf("variant a cost = %f, want 20", a.Cost)
	}

	b := byID["tst-1-b"]
	if b.Impressions != 7 || b.Clicks != 0 || b.Revenue != 0 {
		t.Errorf("variant b totals = %+v", b)
	}
}

func TestTotalsByVariant_NoEvents(t *testing.T) {
	s := openStore(t)

	totals, err := s.TotalsByVariant(context.Background(), "tst-1")
	if err != nil {
		t.Fatalf("failed to get totals: %v", err)
	}
	if len(totals) != 0 {
		t.Errorf("expected no totals, got %+v", totals)
	}
}
