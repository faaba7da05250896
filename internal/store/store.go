package store

import "context"

// Store is the persistence boundary for the experimentation engine. The
// engine is constructed against this interface; production uses SQLiteStore,
// tests use MemoryStore.
type Store interface {
	// Test operations
	CreateTest(ctx context.Context, test *Test) error
	GetTest(ctx context.Context, id string) (*Test, error)
	ListTests(ctx context.Context, campaignID string) ([]*Test, error)
	UpdateTest(ctx context.Context, test *Test) error
	DeleteTest(ctx context.Context, id string) error

	// Event log operations
	AppendEvent(ctx context.Context, ev *Event) error
	Events(ctx context.Context, testID string) ([]*Event, error)
	TotalsByVariant(ctx context.Context, testID string) ([]VariantTotals, error)

	// Lifecycle
	Close() error
}
