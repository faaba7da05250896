package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/splitlab/splitlab/internal/engine"
	"github.com/splitlab/splitlab/internal/store"
)

var resultsCmd = &cobra.Command{
	Use:   "results <test-id>",
	Short: "Show detailed results for a test",
	Long:  `Show per-variant metrics, confidence intervals, and the current winner determination.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runResults,
}

func init() {
	rootCmd.AddCommand(resultsCmd)
}

func runResults(cmd *cobra.Command, args []string) error {
	id := args[0]

	return withEngine(func(ctx context.Context, eng *engine.Engine) error {
		test, err := eng.GetTest(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("test '%s' not found", id)
			}
			return fmt.Errorf("failed to get test: %w", err)
		}

		// Print header
		fmt.Printf("TEST: %s (%s)\n", test.Name, test.ID)
		fmt.Printf("CAMPAIGN: %s\n", test.CampaignID)
		fmt.Printf("STATUS: %s\n", strings.ToUpper(string(test.Status)))
		fmt.Printf("PRIMARY METRIC: %s\n", test.PrimaryMetric)
		fmt.Printf("CREATED: %s\n", test.CreatedAt.Format("2006-01-02"))
		fmt.Println()

		// Print table
		fmt.Println("VARIANT           SPLIT   IMPRESSIONS  CLICKS   CONV    RATE     95% CI")
		fmt.Println(strings.Repeat("─", 76))

		for i, v := range test.Variants {
			indicator := ""
			if i == 0 {
				indicator = " (control)"
			}
			if test.Results != nil && v.ID == test.Results.Winner.VariantID && i != 0 {
				indicator = " ← WINNER"
			}

			ciStr := "N/A"
			if v.Metrics.ConfidenceInterval != nil {
				ciStr = fmt.Sprintf("[%.1f%%, %.1f%%]",
					v.Metrics.ConfidenceInterval.Lower*100,
					v.Metrics.ConfidenceInterval.Upper*100)
			}

			// Truncate name if too long
			name := v.Name
			if len(name) > 16 {
				name = name[:13] + "..."
			}

			fmt.Printf("%-16s  %5.1f%%  %-11d  %-7d  %-6d  %-7s  %s%s\n",
				name,
				v.TrafficSplit,
				v.Metrics.Impressions,
				v.Metrics.Clicks,
				v.Metrics.Conversions,
				formatPercent(v.Metrics.ConversionRate),
				ciStr,
				indicator,
			)
		}

		fmt.Println()

		result := test.Results
		if result == nil {
			result, err = eng.EvaluateTest(ctx, id)
			if errors.Is(err, engine.ErrInsufficientData) {
				fmt.Println("Not enough data yet to determine a winner.")
				return nil
			}
			var stateErr *engine.InvalidStateError
			if errors.As(err, &stateErr) {
				fmt.Println("No results yet - start the test and record events first.")
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to evaluate test: %w", err)
			}
		}

		winnerName := result.Winner.VariantID
		if v := test.VariantByID(result.Winner.VariantID); v != nil {
			winnerName = v.Name
		}

		if result.Winner.Significant {
			fmt.Printf("Statistical significance: %.1f%% confident \"%s\" is the winner (p=%.4f, uplift %.1f%%)\n",
				result.Winner.Confidence, winnerName, result.Significance.PValue, result.Winner.Uplift)
		} else {
			fmt.Printf("Statistical significance: not significant yet (leading: \"%s\" at %.1f%% confidence)\n",
				winnerName, result.Winner.Confidence)
		}

		if len(result.Recommendations) > 0 {
			fmt.Println()
			fmt.Println("RECOMMENDATIONS")
			for _, r := range result.Recommendations {
				fmt.Printf("  - %s\n", r)
			}
		}
		if len(result.Insights) > 0 {
			fmt.Println()
			fmt.Println("INSIGHTS")
			for _, in := range result.Insights {
				fmt.Printf("  - %s\n", in)
			}
		}

		return nil
	})
}

func formatPercent(rate float64) string {
	if rate == 0 {
		return "0%"
	}
	return fmt.Sprintf("%.2f%%", rate)
}
