package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ppiankov/srs/internal/isotime"
	"github.com/ppiankov/srs/internal/report"
	"github.com/ppiankov/srs/internal/schedule"
	"github.com/ppiankov/srs/internal/source"
	"github.com/spf13/cobra"
)

const storeTimeout = time.Minute

var lastScrapedCmd = &cobra.Command{
	Use:   "last-scraped <scraper-id>",
	Short: "Print when a scraper last ran",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()

		st, err := openStore(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		last, ok, err := st.LastScraped(ctx, args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("scraper %s has never run", args[0])
		}
		fmt.Fprintln(cmd.OutOrStdout(), isotime.Format(last))
		return nil
	},
}

var deleteRunCmd = &cobra.Command{
	Use:   "delete-run <scraper-id...>",
	Short: "Delete every stored record of the given scrapers",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()

		st, err := openStore(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		for _, id := range args {
			if err := st.DeleteRun(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted %s\n", id)
		}
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List scrapers and whether they are due",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()

		reg, err := source.Build(cfg.Scrapers, newFetcher(cfg, log), nil, log)
		if err != nil {
			return fmt.Errorf("load scrapers: %w", err)
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

		rows := [][]string{{"Scraper", "Last scraped", "Due", "Reason"}}
		for _, id := range reg.IDs() {
			last := "never"
			if t, ok, err := st.LastScraped(ctx, id); err != nil {
				return err
			} else if ok {
				last = isotime.Format(t)
			}
			d, err := policy.ShouldRun(ctx, id)
			if err != nil {
				return err
			}
			rows = append(rows, []string{id, last, strconv.FormatBool(d.Run), d.Reason})
		}

		for _, line := range report.Table(rows) {
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(lastScrapedCmd)
	rootCmd.AddCommand(deleteRunCmd)
	rootCmd.AddCommand(listCmd)
}
