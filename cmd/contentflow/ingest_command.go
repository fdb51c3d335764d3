package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"contentflow/internal/ingest"
	"contentflow/internal/workflow"
)

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var workspace, workflowID, file string
	var force bool

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Extract content items from a JSON-lines file",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := requireWorkspace(workspace)
			if err != nil {
				return err
			}
			if strings.TrimSpace(file) == "" {
				return fmt.Errorf("--file is required")
			}
			app, err := ctx.application()
			if err != nil {
				return err
			}
			defer ctx.close()

			wf, err := app.workflows.Get(workflowID)
			if err != nil {
				return err
			}
			summary, err := ingest.New(app.store, app.metrics, app.logger).IngestFile(cmd.Context(), file, ws, wf, force)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Records: %d\nInserted: %d\nDuplicates: %d\nReplaced: %d\nEmpty: %d\n",
				summary.Records, summary.Inserted, summary.Duplicates, summary.Replaced, summary.Empty)
			return err
		},
	}

	cmd.Flags().StringVarP(&workspace, "workspace", "w", "", "Workspace identifier")
	cmd.Flags().StringVar(&workflowID, "workflow", workflow.ClusterWorkflowID, "Workflow the items are created for")
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON-lines file of raw records")
	cmd.Flags().BoolVar(&force, "force", false, "Replace existing items even when they have not failed")
	return cmd
}
