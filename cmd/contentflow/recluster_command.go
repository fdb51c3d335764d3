package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newReclusterCommand(ctx *commandContext) *cobra.Command {
	var workspace string
	var limit int

	cmd := &cobra.Command{
		Use:   "recluster",
		Short: "Re-examine high priority clusters and merge converging ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := requireWorkspace(workspace)
			if err != nil {
				return err
			}
			app, err := ctx.application()
			if err != nil {
				return err
			}
			defer ctx.close()

			if limit <= 0 {
				limit = app.cfg.Clustering.ReclusterBatchSize
			}
			summary, err := app.engine.ProcessClusters(cmd.Context(), ws, limit)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Examined: %d\nMerged: %d\nReset: %d\n", summary.Examined, summary.Merged, summary.Reset)
			return nil
		},
	}

	cmd.Flags().StringVarP(&workspace, "workspace", "w", "", "Workspace identifier")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum clusters to examine (0 uses clustering.recluster_batch_size)")
	return cmd
}
