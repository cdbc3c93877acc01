package main

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"castsync/internal/config"
	"castsync/internal/logging"
	"castsync/internal/preflight"
	"castsync/internal/queue"
	"castsync/internal/workflow"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var once bool
	var skipChecks bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process queued items",
		Long:  "Process queued items one at a time. Without --once the worker keeps polling until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			return ctx.withDB(cmd.Context(), func(cfg *config.Config, db *sql.DB) error {
				if !skipChecks {
					if failed := preflight.Failed(preflight.RunAll(cmd.Context(), cfg)); len(failed) > 0 {
						return fmt.Errorf("preflight checks failed: %s", preflight.Summarize(failed))
					}
				}
				deps, err := workflow.NewDependencies(cfg, db, logger)
				if err != nil {
					return err
				}
				manager := workflow.NewManager(cfg, queue.NewStore(db), deps.Processor(), logger)

				if once {
					count, err := manager.Drain(cmd.Context())
					if err != nil {
						return err
					}
					printRunSummary(cmd, manager.Status(cmd.Context()), count)
					return nil
				}

				logger.Info("worker started",
					logging.String(logging.FieldEventType, "worker_start"),
					logging.String("database", cfg.DatabasePath()),
				)
				if err := manager.Run(cmd.Context()); err != nil {
					return err
				}
				logger.Info("worker stopped", logging.String(logging.FieldEventType, "worker_stop"))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "Process every ready item and exit")
	cmd.Flags().BoolVar(&skipChecks, "skip-checks", false, "Start without probing upstream services")
	return cmd
}

func printRunSummary(cmd *cobra.Command, status workflow.StatusSummary, processed int) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Processed %d items\n", processed)
	if rows := buildQueueStatusRows(status.QueueStats); len(rows) > 0 {
		fmt.Fprint(out, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
	}
	if status.LastError != "" {
		fmt.Fprintf(out, "Last error: %s\n", status.LastError)
	}
}
