package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/splitlab/splitlab/internal/engine"
)

var listCampaign string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tests",
	Long:  `List A/B tests with their status and headline counters.`,
	RunE:  runList,
}

func init() {
	listCmd.Flags().StringVar(&listCampaign, "campaign", "", "only tests for this campaign")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	return withEngine(func(ctx context.Context, eng *engine.Engine) error {
		tests, err := eng.ListTests(ctx, listCampaign)
		if err != nil {
			return fmt.Errorf("failed to list tests: %w", err)
		}

		if len(tests) == 0 {
			fmt.Println("No tests yet.")
			fmt.Println()
			fmt.Println("Create one with:")
			fmt.Println("  splitlab create hero --campaign <id> --variants \"A:50,B:50\"")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tCAMPAIGN\tSTATUS\tVARIANTS\tIMPRESSIONS\tCONVERSIONS\tCREATED")

		for _, test := range tests {
			var impressions, conversions uint64
			for _, v := range test.Variants {
				impressions += v.Metrics.Impressions
				conversions += v.Metrics.Conversions
			}

			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
				shortID(test.ID),
				test.Name,
				test.CampaignID,
				strings.ToUpper(string(test.Status)),
				len(test.Variants),
				formatNumber(int(impressions)),
				formatNumber(int(conversions)),
				test.CreatedAt.Format("2006-01-02"),
			)
		}

		w.Flush()
		return nil
	})
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatNumber(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1000000 {
		return fmt.Sprintf("%d,%03d", n/1000, n%1000)
	}
	return fmt.Sprintf("%d,%03d,%03d", n/1000000, (n/1000)%1000, n%1000)
}
