package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ppiankov/srs/internal/harness"
	"github.com/ppiankov/srs/internal/logging"
	"github.com/ppiankov/srs/internal/model"
	"gopkg.in/yaml.v3"
)

func TestInputTexts(t *testing.T) {
	got, err := inputTexts([]string{"a", "b"}, nil)
	if err != nil || len(got) != 2 {
		t.Fatalf("args: got %v, %v", got, err)
	}

	got, err = inputTexts(nil, strings.NewReader("first claim\n\n  second claim  \n"))
	if err != nil {
		t.Fatalf("stdin: %v", err)
	}
	if len(got) != 2 || got[0] != "first claim" || got[1] != "second claim" {
		t.Errorf("stdin: got %q", got)
	}
}

func TestWriteRecords(t *testing.T) {
	acc := harness.NewAccumulator("example")
	exp := harness.NewExpander(acc, nil)
	if err := exp.Add(model.TableBrand, model.Record{"company": "Acme", "brand": "Widget"}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	var buf bytes.Buffer
	if err := writeRecords(&buf, acc, false); err != nil {
		t.Fatalf("writeRecords: %v", err)
	}

	var out map[string][]map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("output is not YAML: %v\n%s", err, buf.String())
	}
	if len(out["company"]) != 1 || out["brand"][0]["brand"] != "Widget" {
		t.Errorf("records = %v", out)
	}

	buf.Reset()
	if err := writeRecords(&buf, acc, true); err != nil {
		t.Fatalf("writeRecords json: %v", err)
	}
	if !strings.Contains(buf.String(), `"brand": "Widget"`) {
		t.Errorf("json output = %s", buf.String())
	}
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "srs", "config.yaml")

	if err := writeDefaultConfig(path); err != nil {
		t.Fatalf("writeDefaultConfig: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var cfg model.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("written config does not parse: %v", err)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Scrapers.Dir != "scrapers" {
		t.Errorf("config = %+v", cfg)
	}

	if err := writeDefaultConfig(path); err == nil {
		t.Error("expected error when the file exists")
	}
}

func TestScraperFor(t *testing.T) {
	cfg := model.DefaultConfig()

	s, err := scraperFor("scrapers/campaigns.example.yaml", "", cfg, nil)
	if err != nil {
		t.Fatalf("file: %v", err)
	}
	if s.ID() != "campaigns.example" {
		t.Errorf("file id = %q", s.ID())
	}

	s, err = scraperFor("https://ratings.example.org/all.json", "", cfg, nil)
	if err != nil {
		t.Fatalf("url: %v", err)
	}
	if s.ID() != "ratings.example.org" {
		t.Errorf("url id = %q", s.ID())
	}

	if _, err := scraperFor("rows.csv", "", cfg, nil); err == nil {
		t.Error("expected error for unsupported file type")
	}
}

func TestGradeCommand(t *testing.T) {
	var buf bytes.Buffer
	gradeCmd.SetOut(&buf)
	defer gradeCmd.SetOut(nil)

	if err := gradeCmd.RunE(gradeCmd, []string{"A", "c+", "F"}); err != nil {
		t.Fatalf("grade: %v", err)
	}
	want := "A\tgood\t1\nc+\tmixed\t0\nF\tbad\t-1\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

type fakeDownloader struct {
	calls []string
	err   error
}

func (d *fakeDownloader) Download(ctx context.Context, rawURL, dest string) error {
	d.calls = append(d.calls, rawURL+" -> "+dest)
	if d.err != nil {
		return d.err
	}
	return os.WriteFile(dest, []byte("SQLite format 3"), 0o644)
}

func TestSeedDatabase(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "existing.sqlite")
	if err := os.WriteFile(existing, []byte("keep"), 0o644); err != nil {
		t.Fatal(err)
	}
	const url = "https://example.com/ratings.sqlite"

	tests := []struct {
		name      string
		db        model.DatabaseConfig
		err       error
		wantCalls int
		wantErr   bool
	}{
		{"no url", model.DatabaseConfig{Driver: "sqlite", DSN: filepath.Join(dir, "a.sqlite")}, nil, 0, false},
		{"missing file", model.DatabaseConfig{Driver: "sqlite", DSN: filepath.Join(dir, "b.sqlite"), URL: url}, nil, 1, false},
		{"file exists", model.DatabaseConfig{Driver: "sqlite", DSN: existing, URL: url}, nil, 0, false},
		{"postgres", model.DatabaseConfig{Driver: "postgres", DSN: "postgres://localhost/srs", URL: url}, nil, 0, false},
		{"download fails", model.DatabaseConfig{Driver: "sqlite", DSN: filepath.Join(dir, "c.sqlite"), URL: url}, errors.New("boom"), 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &fakeDownloader{err: tt.err}
			err := seedDatabase(context.Background(), tt.db, d, logging.Discard())
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if len(d.calls) != tt.wantCalls {
				t.Errorf("downloads = %v, want %d", d.calls, tt.wantCalls)
			}
		})
	}

	data, _ := os.ReadFile(existing)
	if string(data) != "keep" {
		t.Errorf("existing database was overwritten: %q", data)
	}
}
