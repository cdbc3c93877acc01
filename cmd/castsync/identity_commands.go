package main

import (
	"database/sql"
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"castsync/internal/config"
	"castsync/internal/identity"
	"castsync/internal/logging"
)

func newIdentityCommand(ctx *commandContext) *cobra.Command {
	identityCmd := &cobra.Command{
		Use:   "identity",
		Short: "Inspect the person identity store",
	}

	identityCmd.AddCommand(newIdentityListCommand(ctx))
	identityCmd.AddCommand(newIdentityShowCommand(ctx))
	identityCmd.AddCommand(newIdentityConflictsCommand(ctx))

	return identityCmd
}

func withIdentities(ctx *commandContext, cmd *cobra.Command, fn func(*identity.Store) error) error {
	return ctx.withDB(cmd.Context(), func(_ *config.Config, db *sql.DB) error {
		return fn(identity.NewStore(db, logging.NewNop()))
	})
}

func newIdentityListCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recently updated identities",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withIdentities(ctx, cmd, func(store *identity.Store) error {
				records, err := store.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				total, err := store.Count(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(records) == 0 {
					fmt.Fprintln(out, "No identities stored")
					return nil
				}
				fmt.Fprint(out, renderTable(
					[]string{"ID", "Name", "Regional name", "Local", "Metadata", "National", "Regional", "Updated"},
					buildIdentityRows(records),
					[]columnAlignment{alignRight},
				))
				fmt.Fprintf(out, "Showing %d of %s identities\n", len(records), humanize.Comma(int64(total)))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum rows to show (0 for all)")
	return cmd
}

func buildIdentityRows(records []identity.Record) [][]string {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			strconv.FormatInt(rec.ID, 10),
			rec.DisplayName,
			rec.RegionalName,
			dash(rec.LocalID),
			dash(rec.MetadataID),
			dash(rec.NationalID),
			dash(rec.RegionalID),
			humanize.Time(rec.UpdatedAt),
		})
	}
	return rows
}

func newIdentityShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show the identity holding any local, metadata, national, or regional id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withIdentities(ctx, cmd, func(store *identity.Store) error {
				rec, err := store.Lookup(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if rec == nil {
					return fmt.Errorf("no identity holds id %q", args[0])
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Identity %d\n", rec.ID)
				fmt.Fprintf(out, "  Name:          %s\n", rec.DisplayName)
				fmt.Fprintf(out, "  Regional name: %s\n", dash(rec.RegionalName))
				fmt.Fprintf(out, "  Local id:      %s\n", dash(rec.LocalID))
				fmt.Fprintf(out, "  Metadata id:   %s\n", dash(rec.MetadataID))
				fmt.Fprintf(out, "  National id:   %s\n", dash(rec.NationalID))
				fmt.Fprintf(out, "  Regional id:   %s\n", dash(rec.RegionalID))
				fmt.Fprintf(out, "  Created:       %s\n", humanize.Time(rec.CreatedAt))
				fmt.Fprintf(out, "  Updated:       %s\n", humanize.Time(rec.UpdatedAt))
				return nil
			})
		},
	}
}

func newIdentityConflictsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "conflicts",
		Short: "List ids claimed by more than one person",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withIdentities(ctx, cmd, func(store *identity.Store) error {
				conflicts, err := store.Conflicts(cmd.Context(), limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(conflicts) == 0 {
					fmt.Fprintln(out, "No identity conflicts recorded")
					return nil
				}
				rows := make([][]string, 0, len(conflicts))
				for _, c := range conflicts {
					rows = append(rows, []string{
						string(c.Field),
						c.Value,
						dash(c.ExistingLocalID),
						dash(c.IncomingLocalID),
						c.DisplayName,
						humanize.Time(c.CreatedAt),
					})
				}
				fmt.Fprint(out, renderTable(
					[]string{"Field", "Value", "Existing", "Incoming", "Name", "Seen"},
					rows, nil,
				))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum rows to show (0 for all)")
	return cmd
}

func dash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}
