package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"contentflow/internal/logging"
	"contentflow/internal/metrics"
	"contentflow/internal/preflight"
	"contentflow/internal/processor"
	"contentflow/internal/workflow"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var workspace, workflowID, metricsBind string
	var maxIterations int

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Drive workspace items through a workflow until drained",
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

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if failed := preflight.Failed(preflight.RunAll(runCtx, app.cfg)); len(failed) > 0 {
				return fmt.Errorf("preflight failed: %s: %s", failed[0].Name, failed[0].Detail)
			}

			bind := strings.TrimSpace(metricsBind)
			if bind == "" && app.cfg.Metrics.Enabled {
				bind = app.cfg.Metrics.Bind
			}
			if bind != "" {
				srv := metrics.NewServer(bind, app.metrics)
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						app.logger.Warn("metrics server stopped", logging.Error(err), logging.String("bind", bind))
					}
				}()
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
					defer cancel()
					_ = srv.Shutdown(shutdownCtx)
				}()
			}

			proc := processor.New(app.store, app.workflows, processor.OptionsFromConfig(app.cfg), app.metrics, app.logger)
			summary, runErr := proc.Run(runCtx, ws, workflowID, maxIterations)
			if summary.RunID == "" {
				return runErr
			}

			out := cmd.OutOrStdout()
			status := "completed"
			if runErr != nil {
				status = "failed"
			}
			fmt.Fprintf(out, "Run %s %s\n", summary.RunID, status)
			fmt.Fprintf(out, "Iterations: %d\nProcessed: %d\nErrors: %d\nSkipped: %d\nForce failed: %d\nDuration: %s\n",
				summary.Iterations, summary.Processed, summary.Errors, summary.Skipped, summary.ForceFailed,
				summary.Duration.Round(time.Millisecond))
			return runErr
		},
	}

	cmd.Flags().StringVarP(&workspace, "workspace", "w", "", "Workspace identifier")
	cmd.Flags().StringVar(&workflowID, "workflow", workflow.ClusterWorkflowID, "Workflow to run")
	cmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "Hard stop after this many iterations (0 uses processor.max_iterations)")
	cmd.Flags().StringVar(&metricsBind, "metrics-bind", "", "Serve prometheus metrics on this address while running")
	return cmd
}
