package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/ppiankov/srs/internal/isotime"
	"github.com/ppiankov/srs/internal/report"
	"github.com/ppiankov/srs/internal/schedule"
	"github.com/ppiankov/srs/internal/source"
	"github.com/ppiankov/srs/internal/worker"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	skipIDs    []string
	runTimeout time.Duration
	reportPath string
	jsonOut    bool
	dryRun     bool
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [scraper-id...]",
	Short: "Run due scrapers and store their records",
	Long: `Run scrapers on a worker pool and replace each one's stored records:
- With no arguments, every registered scraper that is due runs
- Naming scrapers runs exactly those, whatever their schedule
- Each run is expanded into canonical records and saved in one transaction
- Rows that fail validation are logged; the rest of the run is still saved

Example:
  srs run
  srs run campaigns.example --db ratings.sqlite
  srs run --skip slow_source --workers 8 --report run.md
  srs run --db ratings.sqlite --db-url https://example.com/ratings.sqlite`,
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringSliceVar(&skipIDs, "skip", nil, "scraper ids to skip")
	runCmd.Flags().Int("workers", 0, "number of scrapers to run at once")
	runCmd.Flags().Bool("ignore-robots", false, "fetch URLs even when robots.txt disallows them")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 30*time.Minute, "total timeout for the batch")
	runCmd.Flags().StringVar(&reportPath, "report", "", "write a run summary (.json or .md)")
	runCmd.Flags().BoolVar(&jsonOut, "json", false, "print the run summary as JSON instead of a table")
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "expand records without saving them")
	runCmd.Flags().String("db-url", "", "download the sqlite database from this URL if it does not exist yet")

	_ = viper.BindPFlag("concurrency.workers", runCmd.Flags().Lookup("workers"))
	_ = viper.BindPFlag("http.ignore_robots", runCmd.Flags().Lookup("ignore-robots"))
	_ = viper.BindPFlag("database.url", runCmd.Flags().Lookup("db-url"))
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	judge, err := newJudge(cfg, log)
	if err != nil {
		return err
	}
	fetcher := newFetcher(cfg, log)
	reg, err := source.Build(cfg.Scrapers, fetcher, judge, log)
	if err != nil {
		return fmt.Errorf("load scrapers: %w", err)
	}
	scrapers, err := reg.Select(args)
	if err != nil {
		return err
	}
	if len(scrapers) == 0 {
		return fmt.Errorf("no scrapers found (looked in %s and the config sources)", cfg.Scrapers.Dir)
	}

	if err := seedDatabase(ctx, cfg.Database, fetcher, log); err != nil {
		return err
	}
	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	policy, err := schedule.NewPolicy(cfg.Schedule, st, isotime.SystemClock)
	if err != nil {
		return err
	}
	policy.Whitelist = args
	policy.Blacklist = skipIDs

	var saver worker.Saver = st
	if dryRun {
		saver = nil
	}

	if !quiet {
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "  Scrapers:  %d\n", len(scrapers))
		fmt.Fprintf(os.Stderr, "  Workers:   %d\n", cfg.Concurrency.Workers)
		fmt.Fprintf(os.Stderr, "  Database:  %s (%s)\n", cfg.Database.DSN, cfg.Database.Driver)
		fmt.Fprintf(os.Stderr, "  Timeout:   %v\n", runTimeout)
		if dryRun {
			fmt.Fprintf(os.Stderr, "  Dry run:   records are not saved\n")
		}
		fmt.Fprintf(os.Stderr, "\n")
	}

	started := time.Now()
	runner := worker.NewBatchRunner(saver, policy, cfg.Concurrency.Workers, isotime.SystemClock, log)
	outcomes, runErr := runner.Run(ctx, scrapers)

	var counts report.CountFunc
	if !dryRun {
		counts = st.Counts
	}
	summary := report.Build(ctx, outcomes, counts, started, time.Now())

	if jsonOut {
		err = report.RenderJSON(cmd.OutOrStdout(), summary)
	} else {
		err = report.RenderMarkdown(cmd.OutOrStdout(), summary)
	}
	if err != nil {
		return fmt.Errorf("render summary: %w", err)
	}
	if reportPath != "" {
		if err := report.WriteFile(reportPath, summary); err != nil {
			return err
		}
		log.Infof("wrote run summary to %s", reportPath)
	}

	var batchErr *worker.BatchError
	if errors.As(runErr, &batchErr) {
		return fmt.Errorf("%d of %d scrapers failed: %w", len(batchErr.Failed), len(scrapers), runErr)
	}
	return runErr
}
