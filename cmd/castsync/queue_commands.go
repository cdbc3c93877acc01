package main

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"castsync/internal/config"
	"castsync/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the work queue",
	}

	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))

	return queueCmd
}

func withQueue(ctx *commandContext, cmd *cobra.Command, fn func(*queue.Store) error) error {
	return ctx.withDB(cmd.Context(), func(_ *config.Config, db *sql.DB) error {
		return fn(queue.NewStore(db))
	})
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue status summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withQueue(ctx, cmd, func(store *queue.Store) error {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				rows := buildQueueStatusRows(stats)
				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}
}

func buildQueueStatusRows(stats map[queue.Status]int) [][]string {
	var rows [][]string
	for _, status := range queue.AllStatuses() {
		if count := stats[status]; count > 0 {
			rows = append(rows, []string{string(status), strconv.Itoa(count)})
		}
	}
	return rows
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatuses(listStatuses)
			if err != nil {
				return err
			}
			return withQueue(ctx, cmd, func(store *queue.Store) error {
				items, err := store.List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(items) == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}
				fmt.Fprint(out, renderTable(
					[]string{"ID", "Item", "Title", "Status", "Tries", "Cast", "Updated", "Error"},
					buildQueueListRows(items, shouldColorize(out)),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by queue status (repeatable)")
	return cmd
}

func buildQueueListRows(items []*queue.Item, colorize bool) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		cast := "-"
		if item.Status == queue.StatusCompleted {
			cast = fmt.Sprintf("%d (+%d)", item.CastCount, item.AddedCount)
		}
		message := item.ErrorMessage
		if item.Status == queue.StatusDeferred && item.NextAttemptAt != nil {
			message = fmt.Sprintf("retry %s: %s", humanize.Time(*item.NextAttemptAt), message)
		}
		rows = append(rows, []string{
			strconv.FormatInt(item.ID, 10),
			item.MediaItemID,
			truncate(item.Title, 32),
			renderStatus(item.Status, colorize),
			strconv.Itoa(item.Attempts),
			cast,
			humanize.Time(item.UpdatedAt),
			truncate(message, 60),
		})
	}
	return rows
}

func parseStatuses(values []string) ([]queue.Status, error) {
	var out []queue.Status
	for _, raw := range values {
		for _, part := range strings.Split(raw, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			status, ok := queue.ParseStatus(part)
			if !ok {
				return nil, fmt.Errorf("unknown status %q", strings.TrimSpace(part))
			}
			out = append(out, status)
		}
	}
	return out, nil
}

func parseItemIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid item id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [id...]",
		Short: "Move failed and review items back to pending",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseItemIDs(args)
			if err != nil {
				return err
			}
			return withQueue(ctx, cmd, func(store *queue.Store) error {
				updated, err := store.RetryFailed(cmd.Context(), ids...)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if updated == 0 {
					fmt.Fprintln(out, "No failed items to retry")
					return nil
				}
				fmt.Fprintf(out, "Retrying %d items\n", updated)
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var clearStatuses []string
	var clearAll bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove queue items (completed by default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if clearAll && len(clearStatuses) > 0 {
				return errors.New("specify only one of --all or --status")
			}
			statuses, err := parseStatuses(clearStatuses)
			if err != nil {
				return err
			}
			return withQueue(ctx, cmd, func(store *queue.Store) error {
				var removed int64
				var err error
				if clearAll {
					removed, err = store.ClearAll(cmd.Context())
				} else {
					removed, err = store.Clear(cmd.Context(), statuses...)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d queue items\n", removed)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&clearStatuses, "status", "s", nil, "Remove items in these statuses")
	cmd.Flags().BoolVar(&clearAll, "all", false, "Remove every item")
	return cmd
}
