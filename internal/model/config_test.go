package model

import (
	"errors"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   error
	}{
		{"defaults", func(*Config) {}, nil},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, ErrUnknownDriver},
		{"missing dsn", func(c *Config) { c.Database.DSN = "" }, ErrMissingDSN},
		{"no workers", func(c *Config) { c.Concurrency.Workers = 0 }, ErrInvalidWorkers},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, ErrInvalidLogLevel},
		{"proxy none", func(c *Config) { c.HTTP.HTTPProxy = "none" }, nil},
		{"proxy url", func(c *Config) { c.HTTP.HTTPSProxy = "http://proxy:3128" }, nil},
		{"proxy without scheme", func(c *Config) { c.HTTP.HTTPSProxy = "proxy:3128" }, ErrInvalidProxy},
		{"source without input", func(c *Config) {
			c.Scrapers.Sources = []SourceConfig{{ID: "x"}}
		}, ErrSourceMissingInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.want == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseProxy(t *testing.T) {
	u, direct, err := ParseProxy("  http://proxy:3128 ")
	if err != nil || direct || u.Host != "proxy:3128" {
		t.Errorf("ParseProxy(url) = %v, %v, %v", u, direct, err)
	}
	u, direct, err = ParseProxy("None")
	if err != nil || !direct || u != nil {
		t.Errorf("ParseProxy(none) = %v, %v, %v", u, direct, err)
	}
	u, direct, err = ParseProxy("")
	if err != nil || direct || u != nil {
		t.Errorf("ParseProxy(empty) = %v, %v, %v", u, direct, err)
	}
}
