package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/splitlab/splitlab/internal/engine"
	"github.com/splitlab/splitlab/internal/store"
)

func init() {
	rootCmd.AddCommand(newCreateCmd())
}

func newCreateCmd() *cobra.Command {
	var (
		campaignID    string
		variants      string
		primaryMetric string
		secondary     string
		significance  float64
		minSamples    int
		sampleSource  string
		audience      string
		createdBy     string
		interactive   bool
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new A/B test (DRAFT)",
		Long: `Create a new A/B test in DRAFT state. Variants are given as
name:split[:type] tuples; splits must sum to 100.

Examples:
  splitlab create hero --campaign cmp-42 --variants "Control:50,Punchy:50" --primary conversion_rate
  splitlab create offer --campaign cmp-42 --variants "Base:34:offer,Deal:33:offer,Bundle:33:offer" --primary ctr
  splitlab create hero --campaign cmp-42 --interactive`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec := engine.TestSpec{
				CampaignID:        campaignID,
				Name:              args[0],
				PrimaryMetric:     store.Metric(primaryMetric),
				SignificanceLevel: significance,
				MinimumSampleSize: minSamples,
				SampleSource:      store.SampleSource(sampleSource),
				TargetAudience:    audience,
				CreatedBy:         createdBy,
			}
			for _, m := range splitNonEmpty(secondary) {
				spec.SecondaryMetrics = append(spec.SecondaryMetrics, store.Metric(m))
			}

			var err error
			if interactive {
				spec.Variants, err = promptVariants()
			} else {
				spec.Variants, err = parseVariants(variants)
			}
			if err != nil {
				return err
			}

			return withEngine(func(ctx context.Context, eng *engine.Engine) error {
				test, err := eng.CreateTest(ctx, spec)
				if err != nil {
					return fmt.Errorf("failed to create test: %w", err)
				}

				fmt.Printf("Created test '%s' (%s) with %d variants:\n", test.Name, test.ID, len(test.Variants))
				for i, v := range test.Variants {
					role := ""
					if i == 0 {
						role = " (control)"
					}
					fmt.Printf("  %s: %s %.1f%%%s\n", v.ID, v.Name, v.TrafficSplit, role)
				}
				fmt.Printf("Primary metric: %s\n", test.PrimaryMetric)
				fmt.Println("Run 'splitlab start' to begin collecting events.")
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&campaignID, "campaign", "", "campaign this test belongs to (required)")
	cmd.Flags().StringVarP(&variants, "variants", "v", "", "comma-separated name:split[:type] tuples")
	cmd.Flags().StringVar(&primaryMetric, "primary", "conversion_rate", "primary metric for winner determination")
	cmd.Flags().StringVar(&secondary, "secondary", "", "comma-separated secondary metrics")
	cmd.Flags().Float64Var(&significance, "significance", 0, "significance level (default 0.05)")
	cmd.Flags().IntVar(&minSamples, "min-samples", 0, "minimum total sample size before results are computed")
	cmd.Flags().StringVar(&sampleSource, "sample-source", "", "event counted as sample size: impressions or clicks")
	cmd.Flags().StringVar(&audience, "audience", "", "opaque target audience descriptor")
	cmd.Flags().StringVar(&createdBy, "by", "", "creator identifier")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "prompt for variants instead of --variants")
	cmd.MarkFlagRequired("campaign")

	return cmd
}

// parseVariants decodes "name:split[:type]" tuples. The first tuple is the
// control.
func parseVariants(s string) ([]engine.VariantSpec, error) {
	if s == "" {
		return nil, fmt.Errorf("need --variants or --interactive. Example: --variants \"A:50,B:50\"")
	}

	var specs []engine.VariantSpec
	for _, tuple := range strings.Split(s, ",") {
		parts := strings.Split(strings.TrimSpace(tuple), ":")
		if len(parts) < 2 || len(parts) > 3 {
			return nil, fmt.Errorf("invalid variant %q: expected name:split[:type]", tuple)
		}

		split, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid traffic split in %q: %w", tuple, err)
		}

		variantType := store.VariantCreative
		if len(parts) == 3 {
			variantType = store.VariantType(parts[2])
		}

		specs = append(specs, engine.VariantSpec{
			Name:         parts[0],
			Type:         variantType,
			TrafficSplit: split,
		})
	}
	return specs, nil
}

// promptVariants walks the user through variant setup.
func promptVariants() ([]engine.VariantSpec, error) {
	countPrompt := promptui.Prompt{
		Label:   "Number of variants",
		Default: "2",
		Validate: func(s string) error {
			n, err := strconv.Atoi(s)
			if err != nil || n < 2 {
				return fmt.Errorf("need a number >= 2")
			}
			return nil
		},
	}
	countStr, err := countPrompt.Run()
	if err != nil {
		if err == promptui.ErrInterrupt {
			os.Exit(0)
		}
		return nil, err
	}
	count, _ := strconv.Atoi(countStr)

	types := []string{
		string(store.VariantCreative),
		string(store.VariantCopy),
		string(store.VariantOffer),
		string(store.VariantTargeting),
	}

	var specs []engine.VariantSpec
	for i := 0; i < count; i++ {
		label := fmt.Sprintf("Variant %d name", i+1)
		if i == 0 {
			label += " (control)"
		}
		namePrompt := promptui.Prompt{Label: label}
		name, err := namePrompt.Run()
		if err != nil {
			return nil, err
		}

		typePrompt := promptui.Select{Label: "Variant type", Items: types, Size: 4}
		_, variantType, err := typePrompt.Run()
		if err != nil {
			return nil, err
		}

		splitPrompt := promptui.Prompt{
			Label:   "Traffic split %",
			Default: fmt.Sprintf("%.1f", 100/float64(count)),
		}
		splitStr, err := splitPrompt.Run()
		if err != nil {
			return nil, err
		}
		split, err := strconv.ParseFloat(splitStr, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid traffic split: %w", err)
		}

		specs = append(specs, engine.VariantSpec{
			Name:         name,
			Type:         store.VariantType(variantType),
			TrafficSplit: split,
		})
	}
	return specs, nil
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
