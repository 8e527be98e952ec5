package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/fscore-cli/internal/model"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage the instrument catalog",
}

var catalogSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Replace the stored catalog with the provider's current instrument list",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "catalog")
		if err != nil {
			return err
		}
		defer env.Close()

		return recordRun(ctx, env.Store, model.RunKindCatalog, func(ctx context.Context) (map[string]any, error) {
			res, err := env.synchronizer().Sync(ctx)
			if err != nil {
				return nil, err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "catalog: %d received, %d written, %d skipped\n",
				res.Received, res.Written, res.Skipped)
			return map[string]any{
				"received": res.Received,
				"written":  res.Written,
				"skipped":  res.Skipped,
			}, nil
		})
	},
}

func init() {
	catalogCmd.AddCommand(catalogSyncCmd)
	rootCmd.AddCommand(catalogCmd)
}
