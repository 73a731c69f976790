package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vango-go/vai-interview/pkg/store"
)

func newMigrateCmd(stdout io.Writer) *cobra.Command {
	var databaseURL string
	cmd := &cobra.Command{
		Use:       "migrate [up|down|status]",
		Short:     "Apply, roll back or list the Postgres schema migrations",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{string(store.MigrateUp), string(store.MigrateDown), string(store.MigrateStatus)},
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := store.MigrateUp
			if len(args) == 1 {
				dir = store.MigrationDirection(args[0])
			}
			if databaseURL == "" {
				databaseURL = strings.TrimSpace(os.Getenv("INTERVIEW_DATABASE_URL"))
			}
			if databaseURL == "" {
				return fmt.Errorf("--database-url or INTERVIEW_DATABASE_URL is required")
			}

			pg, err := store.OpenPostgres(cmd.Context(), databaseURL)
			if err != nil {
				return err
			}
			defer pg.Close()

			reports, err := pg.Migrate(cmd.Context(), dir)
			if err != nil {
				return err
			}
			return printMigrations(stdout, dir, reports)
		},
	}
	cmd.Flags().StringVar(&databaseURL, "database-url", "", "Postgres DSN (default $INTERVIEW_DATABASE_URL)")
	return cmd
}

func printMigrations(w io.Writer, dir store.MigrationDirection, reports []store.MigrationReport) error {
	if len(reports) == 0 {
		_, err := fmt.Fprintf(w, "migrate %s: nothing to do\n", dir)
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tSTATE\tPATH")
	for _, r := range reports {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", r.Version, r.State, r.Path)
	}
	return tw.Flush()
}
