package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/warp/benefit-engine/store/postgres"
)

func newMigrateCmd() *cobra.Command {
	var dsn string
	cmd := &cobra.Command{
		Use:       "migrate up|down",
		Short:     "Apply or roll back postgres migrations",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if dsn == "" {
				dsn = os.Getenv("PG_DSN")
			}
			if dsn == "" {
				return fmt.Errorf("--dsn or PG_DSN is required")
			}
			var err error
			if args[0] == "up" {
				err = postgres.Migrate(dsn)
			} else {
				err = postgres.MigrateDown(dsn)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migration %s completed\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&dsn, "dsn", "", "postgres DSN (defaults to PG_DSN)")
	return cmd
}
