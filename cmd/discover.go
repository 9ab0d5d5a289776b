package cmd

import (
	"fmt"
	"strings"

	"github.com/chairdump/chairdump/internal/catalog"
	"github.com/chairdump/chairdump/internal/discovery"

	"github.com/spf13/cobra"
)

// discoverCmd checks what the mirror actually publishes per table.
var discoverCmd = &cobra.Command{
	Use:   "discover [table]",
	Short: "List which daily dump files the mirror publishes",
	Long: `Fetches the remote directory listing for each table and reports how
many daily files exist and the earliest and latest published dates. Useful
before 'run' to avoid requesting a range the mirror does not cover.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := getLogger()
		cfg := getConfig()

		tables := catalog.DefaultTables
		if len(args) > 0 {
			t := strings.ToLower(args[0])
			if !catalog.KnownTable(t) {
				return fmt.Errorf("%w: %q (known: %v)", catalog.ErrUnknownTable, t, catalog.DefaultTables)
			}
			tables = []string{t}
		}

		fmt.Printf("%-14s | %-8s | %-12s | %-12s\n", "Table", "Files", "Earliest", "Latest")
		fmt.Println(strings.Repeat("-", 54))
		for _, table := range tables {
			av, err := discovery.Check(cmd.Context(), nil, cfg.BaseURL, table, logger)
			if err != nil {
				logger.Error("discovery failed", "table", table, "error", err)
				fmt.Printf("%-14s | error: %v\n", table, err)
				continue
			}
			earliest, latest := "-", "-"
			if av.Count > 0 {
				earliest = catalog.FormatDate(av.Earliest)
				latest = catalog.FormatDate(av.Latest)
			}
			fmt.Printf("%-14s | %-8d | %-12s | %-12s\n", av.Table, av.Count, earliest, latest)
		}
		return nil
	},
}
