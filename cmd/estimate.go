package cmd

import (
	"fmt"

	"github.com/chairdump/chairdump/internal/catalog"

	"github.com/spf13/cobra"
)

var (
	estimateStart  string
	estimateEnd    string
	estimateTables []string
)

// estimateCmd sizes a date range before the user commits to a long fetch.
var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Estimate the download size for a date range and table set",
	Long: `Computes a rough compressed and uncompressed size for the selected
range from per-table daily volume constants. This is a planning aid, not a
measurement; actual sizes vary by day.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		compressedGB, uncompressedGB, err := catalog.Estimate(estimateStart, estimateEnd, estimateTables)
		if err != nil {
			return err
		}

		items := 0
		if start, e1 := catalog.ParseDate(estimateStart); e1 == nil {
			if end, e2 := catalog.ParseDate(estimateEnd); e2 == nil {
				items = len(catalog.BuildWorkItems(start, end, estimateTables))
			}
		}

		fmt.Printf("Range:        %s .. %s\n", estimateStart, estimateEnd)
		fmt.Printf("Tables:       %v\n", estimateTables)
		fmt.Printf("Files:        %d\n", items)
		fmt.Printf("Compressed:   %.2f GB\n", compressedGB)
		fmt.Printf("Uncompressed: %.2f GB\n", uncompressedGB)
		return nil
	},
}

func init() {
	estimateCmd.Flags().StringVar(&estimateStart, "start", "", "Start date (YYYY-MM-DD, inclusive)")
	estimateCmd.Flags().StringVar(&estimateEnd, "end", "", "End date (YYYY-MM-DD, inclusive)")
	estimateCmd.Flags().StringSliceVar(&estimateTables, "tables", catalog.DefaultTables, "Tables to include")
	estimateCmd.MarkFlagRequired("start")
	estimateCmd.MarkFlagRequired("end")
}
