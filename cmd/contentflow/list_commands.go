package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"contentflow/internal/store"
)

func newItemsCommand(ctx *commandContext) *cobra.Command {
	itemsCmd := &cobra.Command{
		Use:   "items",
		Short: "Inspect content items",
	}
	itemsCmd.AddCommand(newItemsListCommand(ctx))
	return itemsCmd
}

func newItemsListCommand(ctx *commandContext) *cobra.Command {
	var workspace, workflowID string
	var states []string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List content items",
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

			items, err := app.store.ListItems(cmd.Context(), store.ItemFilter{
				WorkspaceID: ws,
				Kind:        workflowID,
				States:      states,
				Limit:       limit,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintln(out, "No items found")
				return nil
			}
			rows := make([][]string, 0, len(items))
			for _, item := range items {
				cluster := ""
				if item.Clustered() {
					cluster = strconv.FormatInt(item.ClusterID, 10)
				}
				rows = append(rows, []string{
					strconv.FormatInt(item.ID, 10),
					item.State.Kind,
					item.State.CurrentState,
					strconv.Itoa(item.State.TransitionNum),
					cluster,
					item.SourceField,
					truncate(item.Content, 48),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Workflow", "State", "Attempts", "Cluster", "Field", "Content"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVarP(&workspace, "workspace", "w", "", "Workspace identifier")
	cmd.Flags().StringVar(&workflowID, "workflow", "", "Only items of this workflow")
	cmd.Flags().StringSliceVar(&states, "state", nil, "Only items in these states (repeatable)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum items to list")
	return cmd
}

func newClustersCommand(ctx *commandContext) *cobra.Command {
	clustersCmd := &cobra.Command{
		Use:   "clusters",
		Short: "Inspect content clusters",
	}
	clustersCmd.AddCommand(newClustersListCommand(ctx))
	return clustersCmd
}

func newClustersListCommand(ctx *commandContext) *cobra.Command {
	var workspace string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List clusters, largest first",
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

			clusters, err := app.store.ListClusters(cmd.Context(), ws, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(clusters) == 0 {
				fmt.Fprintln(out, "No clusters found")
				return nil
			}
			rows := make([][]string, 0, len(clusters))
			for _, c := range clusters {
				rows = append(rows, []string{
					strconv.FormatInt(c.ID, 10),
					strconv.Itoa(c.NumItems),
					strconv.Itoa(c.NumItemsAdded),
					strconv.Itoa(c.NumItemsUnique),
					strconv.FormatInt(c.ExemplarItemID, 10),
					strconv.FormatFloat(c.StressScore, 'f', 1, 64),
					strconv.FormatFloat(c.PriorityScore, 'f', 1, 64),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Items", "Added", "Unique", "Exemplar", "Stress", "Priority"},
				rows,
				[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().StringVarP(&workspace, "workspace", "w", "", "Workspace identifier")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum clusters to list")
	return cmd
}
