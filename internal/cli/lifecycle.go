package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/splitlab/splitlab/internal/engine"
)

func init() {
	rootCmd.AddCommand(newStartCmd(), newPauseCmd(), newCompleteCmd())
}

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start <test-id>",
		Short: "Start a DRAFT test",
		Long:  `Start a test: variant metrics are zeroed and event recording begins.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, eng *engine.Engine) error {
				test, err := eng.StartTest(ctx, args[0])
				if err != nil {
					return fmt.Errorf("failed to start test: %w", err)
				}
				fmt.Printf("Test '%s' is now RUNNING (started %s)\n",
					test.Name, test.StartDate.Format("2006-01-02 15:04:05"))
				return nil
			})
		},
	}
}

func newPauseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pause <test-id>",
		Short: "Pause a RUNNING test",
		Long:  `Pause a test: event recording stops and current results are snapshotted.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, eng *engine.Engine) error {
				test, err := eng.PauseTest(ctx, args[0])
				if err != nil {
					return fmt.Errorf("failed to pause test: %w", err)
				}
				fmt.Printf("Test '%s' is now PAUSED\n", test.Name)
				if test.Results == nil {
					fmt.Println("No results snapshot - minimum sample size not reached.")
				}
				return nil
			})
		},
	}
}

func newCompleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "complete <test-id>",
		Short: "Complete a test and finalize its results",
		Long: `Complete a test. Results are computed regardless of the sample-size
gate, frozen, and no further events are accepted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, eng *engine.Engine) error {
				test, err := eng.CompleteTest(ctx, args[0])
				if err != nil {
					return fmt.Errorf("failed to complete test: %w", err)
				}

				winner := test.Results.Winner
				winnerName := winner.VariantID
				if v := test.VariantByID(winner.VariantID); v != nil {
					winnerName = v.Name
				}

				fmt.Printf("Test '%s' is now COMPLETED\n", test.Name)
				if winner.Significant {
					fmt.Printf("Winner: \"%s\" (%.1f%% confidence, %.1f%% uplift in %s)\n",
						winnerName, winner.Confidence, winner.Uplift, test.PrimaryMetric)
				} else if winner.VariantID == test.Control().ID {
					fmt.Println("No challenger beat the control with statistical significance.")
				} else {
					fmt.Printf("Leading variant \"%s\" did not reach significance (%.1f%% confidence)\n",
						winnerName, winner.Confidence)
				}
				return nil
			})
		},
	}
}
