package cmd

import (
	"fmt"

	"github.com/chairdump/chairdump/internal/convert"

	"github.com/spf13/cobra"
)

// convertCmd turns extracted TSVs into Parquet files.
var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert extracted TSV dumps to Parquet",
	Long: `Converts every TSV under {output-dir}/extracted into a
Snappy-compressed Parquet file under {output-dir}/parquet, mirroring the
table subdirectories. Files already converted are skipped. Use --workers
to control parallelism.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := getLogger()
		cfg := getConfig()

		res, err := convert.Run(cmd.Context(), cfg, logger)
		fmt.Printf("converted: %d\nskipped:   %d\nfailed:    %d\n", res.Converted, res.Skipped, res.Failed)
		if err != nil {
			return fmt.Errorf("convert completed with errors: %w", err)
		}
		return nil
	},
}
