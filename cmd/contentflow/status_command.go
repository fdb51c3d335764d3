package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var workspace string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show item states, clusters, and recent runs for a workspace",
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

			out := cmd.OutOrStdout()
			var rows [][]string
			for _, id := range app.workflows.IDs() {
				wf, err := app.workflows.Get(id)
				if err != nil {
					return err
				}
				counts, err := app.store.StateCounts(cmd.Context(), ws, wf.Definition().Kind)
				if err != nil {
					return err
				}
				for _, state := range wf.Definition().States {
					if n := counts[state]; n > 0 {
						rows = append(rows, []string{id, state, strconv.Itoa(n)})
					}
				}
			}
			if len(rows) == 0 {
				fmt.Fprintf(out, "No items in workspace %s\n", ws)
			} else {
				fmt.Fprintln(out, renderTable([]string{"Workflow", "State", "Items"}, rows, []columnAlignment{alignLeft, alignLeft, alignRight}))
			}

			clusters, err := app.store.ListClusters(cmd.Context(), ws, 0)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Clusters: %d\n", len(clusters))

			runs, err := app.store.ListRuns(cmd.Context(), ws, 5)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				return nil
			}
			runRows := make([][]string, 0, len(runs))
			for _, run := range runs {
				finished := ""
				if !run.FinishedAt.IsZero() {
					finished = run.FinishedAt.Local().Format(time.DateTime)
				}
				runRows = append(runRows, []string{
					truncate(run.ID, 8),
					run.Workflow,
					string(run.Status),
					strconv.Itoa(run.Processed),
					strconv.Itoa(run.Errors),
					finished,
					truncate(strings.TrimSpace(run.ErrorMessage), 40),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Run", "Workflow", "Status", "Processed", "Errors", "Finished", "Error"},
				runRows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVarP(&workspace, "workspace", "w", "", "Workspace identifier")
	return cmd
}
