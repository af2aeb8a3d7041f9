package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/ppiankov/srs/internal/cache"
	"github.com/ppiankov/srs/internal/claim"
	"github.com/ppiankov/srs/internal/logging"
	"github.com/ppiankov/srs/internal/model"
	"github.com/ppiankov/srs/internal/scrape"
	"github.com/ppiankov/srs/internal/store"
	"github.com/ppiankov/srs/internal/worker"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// version is set at build time with -ldflags "-X .../internal/cli.version=..."
var version = "v0.1.0"

var (
	cfgFile string
	verbose bool
	quiet   bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "srs",
	Short: "srs - scraper record normalization harness",
	Long: `srs runs data-collection scrapers and normalizes what they emit
(companies, brands, categories, claims and ratings) into canonical,
deduplicated records stored per scraper run.

Each scraper's rows are expanded, cleaned, validated and merged in memory,
then replace that scraper's previous run in the database.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "srs %s\n", version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: $HOME/.srs/config.yaml)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	flags.BoolVarP(&quiet, "quiet", "q", false, "only log warnings and errors")
	flags.String("log-file", "", "also write logs to this file")
	flags.String("driver", "", "database driver (sqlite, postgres)")
	flags.String("db", "", "database DSN (sqlite file path or postgres connection string)")
	flags.String("scrapers-dir", "", "directory of scraper record files")

	// Bind flags to viper
	_ = viper.BindPFlag("verbose", flags.Lookup("verbose"))
	_ = viper.BindPFlag("log.file", flags.Lookup("log-file"))
	_ = viper.BindPFlag("database.driver", flags.Lookup("driver"))
	_ = viper.BindPFlag("database.dsn", flags.Lookup("db"))
	_ = viper.BindPFlag("scrapers.dir", flags.Lookup("scrapers-dir"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if err := setDefaults(model.DefaultConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "Error setting config defaults: %v\n", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}
		viper.AddConfigPath(home + "/.srs")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// SRS_DATABASE_DSN overrides database.dsn and so on
	viper.SetEnvPrefix("SRS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	_ = viper.BindEnv("llm.api_key", "SRS_LLM_API_KEY", "OPENAI_API_KEY")

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// setDefaults registers every default key with viper so environment
// variables can override keys no config file mentions
func setDefaults(cfg *model.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return err
	}
	for k, v := range m {
		viper.SetDefault(k, v)
	}
	return nil
}

// loadConfig merges defaults, config file, environment and flags
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *model.Config) (*logrus.Logger, error) {
	return logging.New(logging.Options{
		Level:   cfg.Log.Level,
		File:    cfg.Log.File,
		Verbose: verbose,
		Quiet:   quiet,
	})
}

// setup loads the config and builds the logger every command needs
func setup() (*model.Config, *logrus.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func openStore(ctx context.Context, cfg *model.Config, log logrus.FieldLogger) (*store.Store, error) {
	s, err := store.Open(ctx, cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return s, nil
}

type downloader interface {
	Download(ctx context.Context, rawURL, dest string) error
}

// seedDatabase downloads the sqlite file from db.URL unless it already exists
func seedDatabase(ctx context.Context, db model.DatabaseConfig, d downloader, log logrus.FieldLogger) error {
	if db.URL == "" {
		return nil
	}
	if db.Driver != "sqlite" {
		log.Warnf("database.url ignored for driver %s", db.Driver)
		return nil
	}
	if _, err := os.Stat(db.DSN); err == nil {
		log.Debugf("database %s exists, not downloading", db.DSN)
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat database: %w", err)
	}
	if err := d.Download(ctx, db.URL, db.DSN); err != nil {
		return fmt.Errorf("download database: %w", err)
	}
	return nil
}

// newFetcher builds the robots-aware fetcher with its cache and per-domain limiter
func newFetcher(cfg *model.Config, log logrus.FieldLogger) *scrape.Fetcher {
	return scrape.NewFetcher(cfg.HTTP,
		scrape.WithCache(cache.New(cfg.Cache)),
		scrape.WithLimiter(worker.NewLimiterFromConfig(cfg.RateLimiting)),
		scrape.WithLogger(log),
	)
}

// newJudge returns nil when no LLM provider is configured
func newJudge(cfg *model.Config, log logrus.FieldLogger) (claim.Judge, error) {
	judge, err := claim.NewJudge(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("claim judge: %w", err)
	}
	if judge != nil {
		log.Debugf("claim judge: %s/%s", judge.Name(), cfg.LLM.Model)
	}
	return judge, nil
}
