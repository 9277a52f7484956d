/*
benefitctl - Operator CLI for the benefit engine

COMMANDS:
  migrate up|down          Apply or roll back postgres migrations
  seed                     Load a catalog file into the configured store
  resolve                  Show which period a claim made at --at lands in
  allocate                 Show the split of a request against a ceiling

resolve and allocate are pure: they read the catalog or flags and never
touch a store.

SEE ALSO:
  - catalog/catalog.go: Catalog file format
  - benefit/resolver.go, benefit/allocator.go: The decisions printed here
*/
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "benefitctl",
		Short:         "Operate the benefit engine",
		Long:          `Run migrations, seed catalogs and preview period resolution and ceiling allocation.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newMigrateCmd(), newSeedCmd(), newResolveCmd(), newAllocateCmd())
	return root
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
