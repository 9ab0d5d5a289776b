package cmd

import (
	"fmt"
	"strings"

	"github.com/chairdump/chairdump/internal/catalog"
	"github.com/chairdump/chairdump/internal/db"
	"github.com/chairdump/chairdump/internal/state"

	"github.com/spf13/cobra"
)

var (
	stateLimit       int
	stateFilterEvent string
)

// stateCmd shows the persisted run configuration and the event history.
var stateCmd = &cobra.Command{
	Use:   "state [table]",
	Short: "View the persisted run state and the event log history",
	Long: `Shows the last configured run (the state offered to --resume) and
queries the DuckDB event log for per-file history. Pass a table name to
filter the history; use flags to filter by event type and limit output.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := getLogger()
		cfg := getConfig()

		tableFilter := ""
		if len(args) > 0 {
			t := strings.ToLower(args[0])
			if !catalog.KnownTable(t) {
				return fmt.Errorf("%w: %q (known: %v)", catalog.ErrUnknownTable, t, catalog.DefaultTables)
			}
			tableFilter = t
		}

		persisted := state.Load(cfg.OutputDir)
		if persisted.IsZero() {
			fmt.Println("No persisted run state.")
		} else {
			fmt.Printf("Last configured run: %s .. %s, tables %v, remove_gz=%v\n\n",
				persisted.StartDate, persisted.EndDate, persisted.Tables, persisted.RemoveGz)
		}

		summary, err := db.RunSummary(cmd.Context(), getDB())
		if err != nil {
			logger.Error("Failed to summarise event log", "error", err)
			return err
		}
		if len(summary) > 0 {
			fmt.Print("Event totals:")
			for _, ev := range []string{"download_end", "extract_end", "skip", "error"} {
				if n, ok := summary[ev]; ok {
					fmt.Printf("  %s=%d", ev, n)
				}
			}
			fmt.Print("\n\n")
		}

		if err := db.DisplayHistory(cmd.Context(), getDB(), tableFilter, stateFilterEvent, stateLimit); err != nil {
			logger.Error("Failed to display state history", "error", err)
			return err
		}
		return nil
	},
}

func init() {
	stateCmd.Flags().IntVarP(&stateLimit, "limit", "n", 50, "Limit the number of log records displayed")
	stateCmd.Flags().StringVarP(&stateFilterEvent, "event", "e", "", "Filter records by event type (e.g. download_end, skip, error)")
}
