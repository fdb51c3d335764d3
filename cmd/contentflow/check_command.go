package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"contentflow/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify directories, database, and model service are usable",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg)

			database := preflight.Result{Name: "Database", Passed: true, Detail: cfg.DatabasePath()}
			if app, err := ctx.application(); err != nil {
				database = preflight.Result{Name: "Database", Detail: err.Error()}
			} else {
				defer ctx.close()
				if err := app.store.Ping(cmd.Context()); err != nil {
					database = preflight.Result{Name: "Database", Detail: err.Error()}
				}
			}
			results = append(results, database)

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, r := range results {
				kind := statusOK
				if !r.Passed {
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
			}
			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d check(s) failed", len(failed))
			}
			return nil
		},
	}
}
