package main

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"castsync/internal/config"
	"castsync/internal/queue"
)

func newEnqueueCommand(ctx *commandContext) *cobra.Command {
	var title string

	cmd := &cobra.Command{
		Use:   "enqueue <media-item-id>...",
		Short: "Queue media items for reconciliation",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withDB(cmd.Context(), func(_ *config.Config, db *sql.DB) error {
				store := queue.NewStore(db)
				out := cmd.OutOrStdout()
				for _, id := range args {
					item, created, err := store.Enqueue(cmd.Context(), id, title)
					if err != nil {
						return fmt.Errorf("enqueue %s: %w", id, err)
					}
					if created {
						fmt.Fprintf(out, "Queued %s as item %d\n", id, item.ID)
					} else {
						fmt.Fprintf(out, "%s already queued as item %d (%s)\n", id, item.ID, item.Status)
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Display title stored with the item")
	return cmd
}
