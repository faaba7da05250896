package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/splitlab/splitlab/internal/engine"
	"github.com/splitlab/splitlab/internal/store"
)

func init() {
	rootCmd.AddCommand(newRecordCmd())
}

// newRecordCmd injects events by hand, mostly for smoke-testing a test
// before wiring real platform callbacks at it.
func newRecordCmd() *cobra.Command {
	var (
		variantID string
		eventType string
		value     float64
		count     int
		spend     float64
	)

	cmd := &cobra.Command{
		Use:   "record <test-id>",
		Short: "Record events against a running test",
		Long: `Record one or more events against a variant of a running test.

Examples:
  splitlab record tst-1 --variant var-a --type impression --count 100
  splitlab record tst-1 --variant var-a --type conversion --value 49.99
  splitlab record tst-1 --variant var-a --spend 25.00`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			testID := args[0]

			if spend == 0 && eventType == "" {
				return fmt.Errorf("need --type or --spend")
			}

			return withEngine(func(ctx context.Context, eng *engine.Engine) error {
				if spend != 0 {
					if err := eng.RecordSpend(ctx, testID, variantID, spend); err != nil {
						return fmt.Errorf("failed to record spend: %w", err)
					}
					fmt.Printf("Recorded %.2f spend on variant %s\n", spend, variantID)
					return nil
				}

				et, err := store.ParseEventType(eventType)
				if err != nil {
					return err
				}

				for i := 0; i < count; i++ {
					if err := eng.RecordEvent(ctx, testID, variantID, et, value); err != nil {
						return fmt.Errorf("failed to record event: %w", err)
					}
				}
				fmt.Printf("Recorded %d %s event(s) on variant %s\n", count, et, variantID)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&variantID, "variant", "v", "", "variant ID (required)")
	cmd.Flags().StringVarP(&eventType, "type", "t", "", "event type: impression, click, conversion, revenue")
	cmd.Flags().Float64Var(&value, "value", 0, "monetary value for conversion/revenue events")
	cmd.Flags().IntVarP(&count, "count", "n", 1, "repeat the event this many times")
	cmd.Flags().Float64Var(&spend, "spend", 0, "record acquisition spend instead of an event")
	cmd.MarkFlagRequired("variant")

	return cmd
}
