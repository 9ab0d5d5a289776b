package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/chairdump/chairdump/internal/app"
	"github.com/chairdump/chairdump/internal/catalog"
	"github.com/chairdump/chairdump/internal/db"
	"github.com/chairdump/chairdump/internal/engine"
	"github.com/chairdump/chairdump/internal/state"

	"github.com/spf13/cobra"
)

var (
	runStart  string
	runEnd    string
	runTables []string
	keepGz    bool
	runResume bool
	noTUI     bool
)

// runCmd performs the fetch-and-extract workflow.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch and extract dump files for a date range",
	Long: `Downloads every (table, day) dump file in the range to
{output-dir}/raw, extracts it to {output-dir}/extracted, and by default
deletes the compressed artifact after a successful extraction.

Already-extracted files are skipped, so re-running the same range resumes
where the previous run stopped. Days the mirror has not published are
skipped without error. With --resume, the range and table set are taken
from the persisted state of the last run instead of flags.

The interactive view supports p (pause), r (resume) and c (cancel); with
--no-tui the run logs progress and responds to SIGINT by cancelling.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := getLogger()
		cfg := getConfig()

		var runCfg engine.RunConfig
		if runResume {
			persisted := state.Load(cfg.OutputDir)
			if persisted.IsZero() {
				return fmt.Errorf("nothing to resume: no state file in %s", cfg.OutputDir)
			}
			start, end, err := persisted.Range()
			if err != nil {
				return fmt.Errorf("persisted state has invalid dates: %w", err)
			}
			runCfg = engine.RunConfig{
				OutputDir: cfg.OutputDir,
				Start:     start,
				End:       end,
				Tables:    persisted.Tables,
				RemoveGz:  persisted.RemoveGz,
				BaseURL:   cfg.BaseURL,
			}
			logger.Info("resuming previous run",
				"start", persisted.StartDate, "end", persisted.EndDate, "tables", persisted.Tables)
		} else {
			if runStart == "" || runEnd == "" {
				return fmt.Errorf("--start and --end are required (or use --resume)")
			}
			start, err := catalog.ParseDate(runStart)
			if err != nil {
				return err
			}
			end, err := catalog.ParseDate(runEnd)
			if err != nil {
				return err
			}
			for _, t := range runTables {
				if !catalog.KnownTable(t) {
					return fmt.Errorf("%w: %q (known: %v)", catalog.ErrUnknownTable, t, catalog.DefaultTables)
				}
			}
			runCfg = engine.RunConfig{
				OutputDir: cfg.OutputDir,
				Start:     start,
				End:       end,
				Tables:    runTables,
				RemoveGz:  !keepGz,
				BaseURL:   cfg.BaseURL,
			}
		}

		// Persist the configuration before the loop starts so a crashed
		// or cancelled run can be offered for resumption.
		persisted := state.State{
			OutputDir: runCfg.OutputDir,
			StartDate: catalog.FormatDate(runCfg.Start),
			EndDate:   catalog.FormatDate(runCfg.End),
			Tables:    runCfg.Tables,
			RemoveGz:  runCfg.RemoveGz,
		}
		if err := persisted.Save(); err != nil {
			return fmt.Errorf("persist run state: %w", err)
		}

		eng := engine.New(runCfg, nil, db.NewRecorder(getDB()), logger)

		if noTUI {
			return runHeadless(cmd.Context(), eng)
		}
		return runWithTUI(cmd.Context(), eng)
	},
}

func runWithTUI(ctx context.Context, eng *engine.Engine) error {
	model := app.NewModel(eng)

	type runResult struct {
		stats engine.Stats
		err   error
	}
	resultChan := make(chan runResult, 1)
	go func() {
		stats, err := eng.Run(ctx)
		resultChan <- runResult{stats: stats, err: err}
	}()

	p := tea.NewProgram(model)
	if _, err := p.Run(); err != nil {
		eng.Cancel()
		<-resultChan
		return fmt.Errorf("ui failed: %w", err)
	}

	// The TUI exiting before the engine finished means the user quit;
	// treat it as a cancel and wait for the loop to unwind.
	eng.Cancel()
	res := <-resultChan
	if res.err != nil {
		return res.err
	}
	printStats(res.stats)
	return nil
}

func runHeadless(ctx context.Context, eng *engine.Engine) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		eng.Cancel()
	}()

	// Drain events so the engine never stalls; the slog output from the
	// engine itself is the progress surface here.
	go func() {
		for range eng.Events() {
		}
	}()

	stats, err := eng.Run(ctx)
	if err != nil {
		return err
	}
	printStats(stats)
	return nil
}

func printStats(stats engine.Stats) {
	fmt.Printf("\ntotal:      %d\n", stats.Total)
	fmt.Printf("successful: %d\n", stats.Successful)
	fmt.Printf("skipped:    %d\n", stats.Skipped)
	fmt.Printf("failed:     %d\n", stats.Failed)
	fmt.Printf("downloaded: %.1f MB\n", float64(stats.DownloadedBytes)/1024/1024)

	if stats.Failed > 0 {
		fmt.Println("\nSome fetches failed; see the log or 'chairdump state --event error' for details.")
	} else if stats.Successful == 0 && stats.Skipped > 0 {
		fmt.Println("\nNothing new downloaded: files were already present or not published for this range.")
	}
}

func init() {
	runCmd.Flags().StringVar(&runStart, "start", "", "Start date (YYYY-MM-DD, inclusive)")
	runCmd.Flags().StringVar(&runEnd, "end", "", "End date (YYYY-MM-DD, inclusive)")
	runCmd.Flags().StringSliceVar(&runTables, "tables", catalog.DefaultTables, "Tables to fetch, in processing order")
	runCmd.Flags().BoolVar(&keepGz, "keep-gz", false, "Keep the compressed artifact after extraction")
	runCmd.Flags().BoolVar(&runResume, "resume", false, "Resume the last configured run from the persisted state")
	runCmd.Flags().BoolVar(&noTUI, "no-tui", false, "Disable the interactive progress view")
}
