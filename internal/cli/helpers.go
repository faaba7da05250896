package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/splitlab/splitlab/internal/engine"
	"github.com/splitlab/splitlab/internal/store"
)

// withEngine opens the database, builds an engine around it, executes the
// function, and handles cleanup.
func withEngine(fn func(ctx context.Context, eng *engine.Engine) error) error {
	s, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer s.Close()

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	return fn(context.Background(), engine.New(s, log))
}

// withStore opens the database and executes the function against the raw
// store, for operations below the engine (export, delete).
func withStore(fn func(ctx context.Context, s *store.SQLiteStore) error) error {
	s, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer s.Close()

	return fn(context.Background(), s)
}
