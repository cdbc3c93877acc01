package main

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"castsync/internal/config"
	"castsync/internal/reconcile"
	"castsync/internal/workflow"
)

func newReconcileCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "reconcile <media-item-id>",
		Short: "Reconcile one item's cast immediately",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			return ctx.withDB(cmd.Context(), func(cfg *config.Config, db *sql.DB) error {
				if !dryRun {
					lock := flock.New(cfg.LockPath())
					locked, err := lock.TryLock()
					if err != nil {
						return fmt.Errorf("acquire worker lock: %w", err)
					}
					if !locked {
						return fmt.Errorf("%w; stop it or use --dry-run", workflow.ErrWorkerLocked)
					}
					defer lock.Unlock() //nolint:errcheck
				}

				deps, err := workflow.NewDependencies(cfg, db, logger)
				if err != nil {
					return err
				}
				report, err := deps.Processor().Process(cmd.Context(), args[0], workflow.Options{DryRun: dryRun})
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s (%d)\n", report.Item.Name, report.Item.ProductionYear)
				fmt.Fprint(out, renderTable(
					[]string{"#", "Name", "Alt name", "Character", "Source", "Match"},
					buildCastRows(report.Result.Cast),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				))
				stats := report.Result.Stats
				fmt.Fprintf(out, "Cast %d, added %d, translated %d, dropped %d, truncated %d\n",
					len(report.Cast), report.Added(), stats.Translated, stats.Dropped, stats.Truncated)
				switch {
				case dryRun:
					fmt.Fprintf(out, "Dry run: changes %s, %d identity updates not saved\n", pendingWord(report.Changed), len(report.Result.Writes))
				case report.Written:
					fmt.Fprintln(out, "Cast written back to the media server")
				default:
					fmt.Fprintln(out, "Cast unchanged; nothing written")
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the reconciled cast without saving or writing back")
	return cmd
}

func buildCastRows(cast []reconcile.Entry) [][]string {
	rows := make([][]string, 0, len(cast))
	for _, e := range cast {
		source := string(e.Origin)
		if e.NewlyAdded {
			source += " (new)"
		}
		rows = append(rows, []string{
			strconv.Itoa(e.Order + 1),
			e.Name,
			e.AltName,
			truncate(e.Character, 32),
			source,
			strings.ReplaceAll(e.MatchedBy, "_", " "),
		})
	}
	return rows
}

func pendingWord(changed bool) string {
	if changed {
		return "pending"
	}
	return "none"
}
