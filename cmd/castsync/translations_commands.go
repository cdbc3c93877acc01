package main

import (
	"database/sql"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"castsync/internal/config"
	"castsync/internal/translation"
)

func newTranslationsCommand(ctx *commandContext) *cobra.Command {
	translationsCmd := &cobra.Command{
		Use:   "translations",
		Short: "Inspect the persistent translation cache",
	}

	translationsCmd.AddCommand(newTranslationsListCommand(ctx))
	translationsCmd.AddCommand(newTranslationsClearCommand(ctx))

	return translationsCmd
}

func withTranslations(ctx *commandContext, cmd *cobra.Command, fn func(*translation.SQLiteCache) error) error {
	return ctx.withDB(cmd.Context(), func(_ *config.Config, db *sql.DB) error {
		return fn(translation.NewSQLiteCache(db))
	})
}

func newTranslationsListCommand(ctx *commandContext) *cobra.Command {
	var filter string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached translations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTranslations(ctx, cmd, func(cache *translation.SQLiteCache) error {
				entries, err := cache.List(cmd.Context(), filter, limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(entries) == 0 {
					fmt.Fprintln(out, "No cached translations")
					return nil
				}
				rows := make([][]string, 0, len(entries))
				for _, e := range entries {
					rows = append(rows, []string{
						truncate(e.Original, 40),
						truncate(e.Translated, 40),
						dash(e.Engine),
						humanize.Time(e.UpdatedAt),
					})
				}
				fmt.Fprint(out, renderTable([]string{"Original", "Translated", "Engine", "Updated"}, rows, nil))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&filter, "filter", "f", "", "Only show entries whose original or translation contains this text")
	cmd.Flags().IntVarP(&limit, "limit", "n", 100, "Maximum rows to show (0 for all)")
	return cmd
}

func newTranslationsClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear [original...]",
		Short: "Remove cached translations (all when no text is given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTranslations(ctx, cmd, func(cache *translation.SQLiteCache) error {
				out := cmd.OutOrStdout()
				if len(args) == 0 {
					removed, err := cache.Clear(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Cleared %d cached translations\n", removed)
					return nil
				}
				removed := 0
				for _, original := range args {
					ok, err := cache.Remove(cmd.Context(), original)
					if err != nil {
						return err
					}
					if ok {
						removed++
					}
				}
				fmt.Fprintf(out, "Cleared %d cached translations\n", removed)
				return nil
			})
		},
	}
}
