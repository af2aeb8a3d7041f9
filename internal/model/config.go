package model

import (
	"errors"
	"fmt"
	"net/url"
	"runtime"
	"strings"
	"time"
)

// Configuration validation errors
var (
	ErrUnknownDriver      = errors.New("database.driver must be one of: sqlite, postgres")
	ErrMissingDSN         = errors.New("database.dsn is required")
	ErrInvalidWorkers     = errors.New("concurrency.workers must be at least 1")
	ErrInvalidTimeout     = errors.New("http.timeout must be positive")
	ErrInvalidLogLevel    = errors.New("log.level must be one of: debug, info, warn, error")
	ErrSourceMissingID    = errors.New("scrapers.sources[].id is required")
	ErrSourceMissingInput = errors.New("scrapers.sources[] needs exactly one of file or url")
	ErrInvalidProxy       = errors.New("http proxy must be an absolute URL or \"none\"")
)

// Config is the complete harness configuration
type Config struct {
	Database     DatabaseConfig    `yaml:"database" mapstructure:"database"`
	HTTP         HTTPConfig        `yaml:"http" mapstructure:"http"`
	Cache        CacheConfig       `yaml:"cache" mapstructure:"cache"`
	RateLimiting RateLimitConfig   `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Concurrency  ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Schedule     ScheduleConfig    `yaml:"schedule" mapstructure:"schedule"`
	Scrapers     ScrapersConfig    `yaml:"scrapers" mapstructure:"scrapers"`
	LLM          LLMConfig         `yaml:"llm" mapstructure:"llm"`
	Log          LogConfig         `yaml:"log" mapstructure:"log"`
}

// DatabaseConfig selects the persistence backend
type DatabaseConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"`     // sqlite or postgres
	DSN    string `yaml:"dsn" mapstructure:"dsn"`           // file path for sqlite, connection string for postgres
	URL    string `yaml:"url,omitempty" mapstructure:"url"` // sqlite file to download when dsn does not exist yet
}

// HTTPConfig controls the fetcher used by remote scrapers
type HTTPConfig struct {
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent    string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	IgnoreRobots bool          `yaml:"ignore_robots" mapstructure:"ignore_robots"`
	HTTPProxy    string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"` // "none" bypasses the environment proxy
	HTTPSProxy   string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
}

// CacheConfig controls caching of fetched documents
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// RateLimitConfig is applied per domain
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// ConcurrencyConfig controls how many scrapers run at once
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// ScheduleConfig decides which scrapers are due
type ScheduleConfig struct {
	// DefaultFrequency is the minimum interval between runs; zero means always run
	DefaultFrequency time.Duration            `yaml:"default_frequency" mapstructure:"default_frequency"`
	Frequency        map[string]time.Duration `yaml:"frequency,omitempty" mapstructure:"frequency"`
	// LastChanged forces a run when code or data changed after the last scrape (ISO-8601)
	LastChanged map[string]string `yaml:"last_changed,omitempty" mapstructure:"last_changed"`
}

// ScrapersConfig lists where scrapers come from
type ScrapersConfig struct {
	Dir     string         `yaml:"dir" mapstructure:"dir"`
	Sources []SourceConfig `yaml:"sources,omitempty" mapstructure:"sources"`
}

// SourceConfig describes one configured scraper
type SourceConfig struct {
	ID   string `yaml:"id" mapstructure:"id"`
	File string `yaml:"file,omitempty" mapstructure:"file"`
	URL  string `yaml:"url,omitempty" mapstructure:"url"`

	// InferJudgments fills missing claim/rating judgments from text and grades
	InferJudgments bool `yaml:"infer_judgments" mapstructure:"infer_judgments"`
	// DefaultJudgment is used for claims no rule matches (good, mixed, bad)
	DefaultJudgment string              `yaml:"default_judgment,omitempty" mapstructure:"default_judgment"`
	Clarifications  []ClarificationRule `yaml:"clarifications,omitempty" mapstructure:"clarifications"`
}

// ClarificationRule adds Suffix after the first match of Pattern in a claim
type ClarificationRule struct {
	Pattern string `yaml:"pattern" mapstructure:"pattern"`
	Suffix  string `yaml:"suffix" mapstructure:"suffix"`
}

// LLMConfig enables the optional model-backed claim judge
type LLMConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider"` // "" (disabled) or openai
	Model    string `yaml:"model" mapstructure:"model"`
	APIKey   string `yaml:"-" mapstructure:"api_key"`
	BaseURL  string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout  int    `yaml:"timeout" mapstructure:"timeout"` // seconds
}

// LogConfig controls logging output
type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
	File  string `yaml:"file,omitempty" mapstructure:"file"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "data.sqlite",
		},
		HTTP: HTTPConfig{
			Timeout:      30 * time.Second,
			UserAgent:    "srs/0.1 (+https://github.com/ppiankov/srs)",
			MaxBodyBytes: 10_000_000,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       ".srs-cache",
			MemoryTTL: 15 * time.Minute,
			DiskTTL:   24 * time.Hour,
		},
		RateLimiting: RateLimitConfig{
			RequestsPerSecond: 2,
			BurstSize:         5,
		},
		Concurrency: ConcurrencyConfig{
			Workers: runtime.NumCPU(),
		},
		Scrapers: ScrapersConfig{
			Dir: "scrapers",
		},
		LLM: LLMConfig{
			Timeout: 30,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate checks the configuration for obvious mistakes
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return ErrUnknownDriver
	}
	if c.Database.DSN == "" {
		return ErrMissingDSN
	}
	if c.Concurrency.Workers < 1 {
		return ErrInvalidWorkers
	}
	if c.HTTP.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	for _, p := range []string{c.HTTP.HTTPProxy, c.HTTP.HTTPSProxy} {
		if _, _, err := ParseProxy(p); err != nil {
			return err
		}
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return ErrInvalidLogLevel
	}
	for i, src := range c.Scrapers.Sources {
		if src.ID == "" {
			return fmt.Errorf("%w (index %d)", ErrSourceMissingID, i)
		}
		if (src.File == "") == (src.URL == "") {
			return fmt.Errorf("%w (source %s)", ErrSourceMissingInput, src.ID)
		}
	}
	return nil
}

// ParseProxy reads a proxy setting. Empty means unset and yields a nil URL;
// "none" means connect directly.
func ParseProxy(s string) (u *url.URL, direct bool, err error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "":
		return nil, false, nil
	case "none":
		return nil, true, nil
	}
	u, err = url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, false, fmt.Errorf("%w: %q", ErrInvalidProxy, s)
	}
	return u, false, nil
}
