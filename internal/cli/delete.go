package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/splitlab/splitlab/internal/store"
)

func init() {
	rootCmd.AddCommand(newDeleteCmd())
}

// newDeleteCmd removes a test and its event log. The engine itself never
// deletes anything; this is the operator-level escape hatch.
func newDeleteCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <test-id>",
		Short: "Delete a test and its events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]

			return withStore(func(ctx context.Context, s *store.SQLiteStore) error {
				test, err := s.GetTest(ctx, id)
				if err != nil {
					if errors.Is(err, store.ErrNotFound) {
						return fmt.Errorf("test '%s' not found", id)
					}
					return fmt.Errorf("failed to get test: %w", err)
				}

				if test.Status == store.StatusRunning && !force {
					return fmt.Errorf("test '%s' is running; pause or complete it first, or use --force", test.Name)
				}

				if err := s.DeleteTest(ctx, id); err != nil {
					return fmt.Errorf("failed to delete test: %w", err)
				}

				fmt.Printf("Deleted test '%s' and its event log\n", test.Name)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "delete even if the test is running")
	return cmd
}
