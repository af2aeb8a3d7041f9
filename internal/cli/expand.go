package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ppiankov/srs/internal/harness"
	"github.com/ppiankov/srs/internal/isotime"
	"github.com/ppiankov/srs/internal/model"
	"github.com/ppiankov/srs/internal/source"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	expandID      string
	expandJSON    bool
	expandSave    bool
	expandInfer   bool
	expandTimeout time.Duration
)

// expandCmd represents the expand command
var expandCmd = &cobra.Command{
	Use:   "expand <file|url>",
	Short: "Expand one record file into canonical records",
	Long: `Expand reads the rows of a single scraper file or URL and prints
the canonical records they normalize into, grouped by table.

Rows that fail validation are reported on stderr. Nothing is stored
unless --save is given.

Example:
  srs expand scrapers/campaigns.example.yaml
  srs expand https://example.org/ratings.json --id campaigns.example --json
  srs expand rows.jsonl --infer --save`,
	Args: cobra.ExactArgs(1),
	RunE: runExpand,
}

func init() {
	rootCmd.AddCommand(expandCmd)

	expandCmd.Flags().StringVar(&expandID, "id", "", "scraper id (default: file name, or URL host)")
	expandCmd.Flags().BoolVar(&expandJSON, "json", false, "print JSON instead of YAML")
	expandCmd.Flags().BoolVar(&expandSave, "save", false, "replace the scraper's stored run with the result")
	expandCmd.Flags().BoolVar(&expandInfer, "infer", false, "fill missing claim and rating judgments")
	expandCmd.Flags().DurationVar(&expandTimeout, "timeout", 2*time.Minute, "timeout for fetching and saving")
}

func runExpand(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), expandTimeout)
	defer cancel()

	s, err := scraperFor(args[0], expandID, cfg, log)
	if err != nil {
		return err
	}
	if expandInfer {
		judge, err := newJudge(cfg, log)
		if err != nil {
			return err
		}
		s = source.NewEnricher(s, source.EnricherOptions{
			InferJudgments:  true,
			DefaultJudgment: model.JudgmentGood,
			Judge:           judge,
			Log:             log,
		})
	}

	result, err := harness.Run(ctx, s, harness.Options{Clock: isotime.SystemClock, Log: log})
	if err != nil {
		return err
	}

	if err := writeRecords(cmd.OutOrStdout(), result.Accumulator, expandJSON); err != nil {
		return err
	}

	if expandSave {
		st, err := openStore(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()
		if err := st.SaveRun(ctx, s.ID(), result.Accumulator); err != nil {
			return fmt.Errorf("save %s: %w", s.ID(), err)
		}
		fmt.Fprintf(os.Stderr, "✓ Saved %d records for %s\n", result.Accumulator.Total(), s.ID())
	}

	if result.Failed() {
		return fmt.Errorf("%d of %d rows rejected", len(result.Rejected), len(result.Rejected)+result.Accepted)
	}
	return nil
}

// scraperFor builds a URL scraper for http(s) arguments and a file scraper otherwise
func scraperFor(arg, id string, cfg *model.Config, log logrus.FieldLogger) (source.Scraper, error) {
	if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") {
		if id == "" {
			u, err := url.Parse(arg)
			if err != nil {
				return nil, fmt.Errorf("invalid URL %q: %w", arg, err)
			}
			id = u.Hostname()
		}
		s, err := source.NewHTTPScraper(id, arg, newFetcher(cfg, log))
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	s, err := source.NewFileScraper(id, arg)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// writeRecords prints canonical records grouped by table
func writeRecords(w io.Writer, acc *harness.Accumulator, asJSON bool) error {
	out := make(map[string][]model.Record)
	for _, table := range acc.Tables() {
		for _, e := range acc.Entries(table) {
			out[table] = append(out[table], e.Record)
		}
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode records: %w", err)
	}
	return enc.Close()
}
