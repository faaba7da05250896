package store

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is a Store backed by in-process maps. It is the test double
// for the engine and also serves the "memory" driver for throwaway servers.
type MemoryStore struct {
	mu     sync.RWMutex
	tests  map[string]*Test
	events map[string][]*Event // keyed by test ID
	nextID int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tests:  make(map[string]*Test),
		events: make(map[string][]*Event),
	}
}

func (m *MemoryStore) Close() error {
	return nil
}

func (m *MemoryStore) CreateTest(ctx context.Context, test *Test) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tests[test.ID]; ok {
		return fmt.Errorf("test %s already exists", test.ID)
	}
	m.tests[test.ID] = test.Clone()
	return nil
}

func (m *MemoryStore) GetTest(ctx context.Context, id string) (*Test, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	test, ok := m.tests[id]
	if !ok {
		return nil, ErrNotFound
	}
	return test.Clone(), nil
}

func (m *MemoryStore) ListTests(ctx context.Context, campaignID string) ([]*Test, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var tests []*Test
	for _, t := range m.tests {
		if campaignID != "" && t.CampaignID != campaignID {
			continue
		}
		tests = append(tests, t.Clone())
	}
	return tests, nil
}

func (m *MemoryStore) UpdateTest(ctx context.Context, test *Test) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tests[test.ID]; !ok {
		return ErrNotFound
	}
	clone := test.Clone()
	clone.UpdatedAt = time.Now()
	m.tests[test.ID] = clone
	return nil
}

func (m *MemoryStore) DeleteTest(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tests[id]; !ok {
		return ErrNotFound
	}
	delete(m.tests, id)
	delete(m.events, id)
	return nil
}

func (m *MemoryStore) AppendEvent(ctx context.Context, ev *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	clone := *ev
	clone.ID = m.nextID
	m.events[ev.TestID] = append(m.events[ev.TestID], &clone)
	return nil
}

func (m *MemoryStore) Events(ctx context.Context, testID string) ([]*Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]*Event, 0, len(m.events[testID]))
	for _, e := range m.events[testID] {
		clone := *e
		events = append(events, &clone)
	}
	return events, nil
}

func (m *MemoryStore) TotalsByVariant(ctx context.Context, testID string) ([]VariantTotals, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byVariant := make(map[string]*VariantTotals)
	var order []string
	for _, e := range m.events[testID] {
		t, ok := byVariant[e.VariantID]
		if !ok {
			t = &VariantTotals{VariantID: e.VariantID}
			byVariant[e.VariantID] = t
			order = append(order, e.VariantID)
		}
		switch e.Type {
		case EventImpression:
			t.Impressions++
		case EventClick:
			t.Clicks++
		case EventConversion:
			t.Conversions++
			t.Revenue += e.Value
		case EventRevenue:
			t.Revenue += e.Value
		case EventSpend:
			t.Cost += e.Value
		}
	}

	totals := make([]VariantTotals, 0, len(order))
	for _, id := range order {
		totals = append(totals, *byVariant[id])
	}
	return totals, nil
}

