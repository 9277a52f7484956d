package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/warp/benefit-engine/benefit"
	"github.com/warp/benefit-engine/catalog"
	"github.com/warp/benefit-engine/config"
	"github.com/warp/benefit-engine/generic"
	"github.com/warp/benefit-engine/store"
)

func newSeedCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load a catalog file into the configured store",
		Long: `Upsert the periods of a catalog file and insert the employees and expense
types the store does not have yet. The store is chosen by STORE_DRIVER.
Periods already closed stay closed and existing employees keep their ceiling.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			c, err := catalog.LoadFile(path)
			if err != nil {
				return err
			}

			logger := slog.New(slog.NewTextHandler(io.Discard, nil))
			st, closeStore, err := store.Open(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer closeStore()

			svc := benefit.NewClaimService(st, generic.SystemClock{Location: cfg.Location()}, benefit.WithLogger(logger))
			res, err := catalog.Seed(cmd.Context(), svc, c)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d periods, %d employees, %d expense types (%d already present)\n",
				res.Periods, res.Employees, res.ExpenseTypes, res.Skipped)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "catalog", "catalog.yaml", "catalog file")
	return cmd
}
