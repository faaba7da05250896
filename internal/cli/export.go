package cli

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/splitlab/splitlab/internal/store"
)

var exportFormat string

var exportCmd = &cobra.Command{
	Use:   "export <test-id>",
	Short: "Export raw event data",
	Long: `Export the raw event log in CSV or JSON format.

Examples:
  splitlab export tst-1 --format csv > tst-1-events.csv
  splitlab export tst-1 --format json > tst-1-events.json`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "csv", "output format (csv or json)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	id := args[0]

	if exportFormat != "csv" && exportFormat != "json" {
		return fmt.Errorf("invalid format: must be 'csv' or 'json'")
	}

	return withStore(func(ctx context.Context, s *store.SQLiteStore) error {
		// Verify test exists
		if _, err := s.GetTest(ctx, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("test '%s' not found", id)
			}
			return fmt.Errorf("failed to get test: %w", err)
		}

		events, err := s.Events(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to get events: %w", err)
		}

		if exportFormat == "csv" {
			return exportCSV(events)
		}
		return exportJSON(events)
	})
}

func exportCSV(events []*store.Event) error {
	w := csv.NewWriter(os.Stdout)
	defer w.Flush()

	// Write header
	if err := w.Write([]string{"timestamp", "variant_id", "event_type", "value"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	// Write rows
	for _, e := range events {
		row := []string{
			strconv.FormatInt(e.CreatedAt.Unix(), 10),
			e.VariantID,
			string(e.Type),
			strconv.FormatFloat(e.Value, 'f', -1, 64),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	return nil
}

type jsonExport struct {
	Events []jsonEvent `json:"events"`
}

type jsonEvent struct {
	Timestamp int64   `json:"timestamp"`
	VariantID string  `json:"variant_id"`
	EventType string  `json:"event_type"`
	Value     float64 `json:"value"`
}

func exportJSON(events []*store.Event) error {
	export := jsonExport{
		Events: make([]jsonEvent, len(events)),
	}

	for i, e := range events {
		export.Events[i] = jsonEvent{
			Timestamp: e.CreatedAt.Unix(),
			VariantID: e.VariantID,
			EventType: string(e.Type),
			Value:     e.Value,
		}
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}
