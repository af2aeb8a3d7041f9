package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/ppiankov/srs/internal/harness"
	"github.com/ppiankov/srs/internal/model"
	"github.com/ppiankov/srs/internal/worker"
)

type rowsProducer struct {
	id   string
	rows []model.Row
}

func (p *rowsProducer) ID() string { return p.id }

func (p *rowsProducer) Scrape(ctx context.Context, emit harness.EmitFunc) error {
	for _, row := range p.rows {
		if err := emit(row.Table, row.Record); err != nil {
			return err
		}
	}
	return nil
}

var (
	started  = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	finished = started.Add(90 * time.Second)
)

func run(t *testing.T, id string, rows ...model.Row) *harness.RunResult {
	t.Helper()
	res, err := harness.Run(context.Background(), &rowsProducer{id: id, rows: rows}, harness.Options{
		Clock: func() time.Time { return started },
	})
	if err != nil {
		t.Fatalf("harness.Run: %v", err)
	}
	return res
}

func sampleOutcomes(t *testing.T) []*worker.RunOutcome {
	ok := run(t, "good_source",
		model.Row{Table: "brand", Record: model.Record{"company": "Acme", "brand": "Widget"}},
	)
	bad := run(t, "bad_source",
		model.Row{Table: "company", Record: model.Record{"company": "Acme", "website_url": "acme"}},
		model.Row{Table: "company", Record: model.Record{"company": "Other"}},
	)
	return []*worker.RunOutcome{
		{ID: "good_source", Reason: "due", Result: ok},
		{ID: "bad_source", Reason: "due", Result: bad},
		{ID: "later", Skipped: true, Reason: "scraped 1h ago"},
		{ID: "broken", Error: errors.New("scrape broken: connection refused")},
	}
}

func TestBuild(t *testing.T) {
	r := Build(context.Background(), sampleOutcomes(t), nil, started, finished)

	if len(r.Scrapers) != 4 {
		t.Fatalf("scrapers = %d, want 4", len(r.Scrapers))
	}

	want := []model.RunStatus{model.RunOK, model.RunFailed, model.RunSkipped, model.RunFailed}
	for i, s := range r.Scrapers {
		if s.Status != want[i] {
			t.Errorf("%s status = %s, want %s", s.ID, s.Status, want[i])
		}
	}

	good := r.Scrapers[0]
	if good.Accepted != 1 || good.Rows["company"] != 1 || good.Rows["brand"] != 1 || good.Rows["scraper"] != 1 {
		t.Errorf("good_source = %+v", good)
	}

	bad := r.Scrapers[1]
	if bad.Rejected != 1 || len(bad.Errors) != 1 {
		t.Errorf("bad_source = %+v", bad)
	}
	if !strings.Contains(bad.Errors[0], "website_url") {
		t.Errorf("error should name the field: %s", bad.Errors[0])
	}

	if got := r.Failed(); len(got) != 2 || got[0] != "bad_source" || got[1] != "broken" {
		t.Errorf("Failed() = %v", got)
	}
}

func TestBuild_StoredCounts(t *testing.T) {
	var asked []string
	counts := func(ctx context.Context, runID string) (map[string]int, error) {
		asked = append(asked, runID)
		return map[string]int{"brand": 7}, nil
	}

	r := Build(context.Background(), sampleOutcomes(t), counts, started, finished)

	if len(asked) != 2 {
		t.Errorf("counts asked for %v, want only the runs that completed", asked)
	}
	if r.Scrapers[0].Rows["brand"] != 7 {
		t.Errorf("rows = %v, want stored counts", r.Scrapers[0].Rows)
	}
}

func TestRenderJSON(t *testing.T) {
	r := Build(context.Background(), sampleOutcomes(t), nil, started, finished)

	var buf bytes.Buffer
	if err := RenderJSON(&buf, r); err != nil {
		t.Fatalf("RenderJSON: %v", err)
	}

	var decoded model.BatchReport
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if len(decoded.Scrapers) != 4 || decoded.Scrapers[2].Status != model.RunSkipped {
		t.Errorf("decoded = %+v", decoded)
	}
	if !strings.Contains(buf.String(), `"started_at": "2024-05-01T10:00:00Z"`) {
		t.Errorf("missing started_at:\n%s", buf.String())
	}
}

func TestRenderMarkdown(t *testing.T) {
	r := Build(context.Background(), sampleOutcomes(t), nil, started, finished)

	var buf bytes.Buffer
	if err := RenderMarkdown(&buf, r); err != nil {
		t.Fatalf("RenderMarkdown: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"- Scrapers: 1 ok, 2 failed, 1 skipped",
		"| Scraper     | Status  |",
		"brand=1 company=1 scraper=1",
		"## bad_source",
		"## broken",
		"connection refused",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "## good_source") {
		t.Error("scrapers without errors should not get an error section")
	}
}

func TestTable_WideRunes(t *testing.T) {
	lines := Table([][]string{
		{"Name", "N"},
		{"日本語", "1"},
		{"ab", "22"},
	})

	if len(lines) != 4 {
		t.Fatalf("lines = %d, want 4", len(lines))
	}
	width := runewidth.StringWidth(lines[0])
	for _, line := range lines[1:] {
		if w := runewidth.StringWidth(line); w != width {
			t.Errorf("line %q has width %d, want %d", line, w, width)
		}
	}
	if lines[1] != "| ------ | --- |" {
		t.Errorf("separator = %q", lines[1])
	}
}

func TestTable_EscapesPipes(t *testing.T) {
	lines := Table([][]string{{"A"}, {"x|y"}})
	if lines[2] != `| x\|y |` {
		t.Errorf("row = %q", lines[2])
	}
}

func TestWriteFile(t *testing.T) {
	r := Build(context.Background(), sampleOutcomes(t), nil, started, finished)
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "out", "run.json")
	if err := WriteFile(jsonPath, r); err != nil {
		t.Fatalf("WriteFile json: %v", err)
	}
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatal(err)
	}
	if !json.Valid(data) {
		t.Error("json report is not valid JSON")
	}

	mdPath := filepath.Join(dir, "run.md")
	if err := WriteFile(mdPath, r); err != nil {
		t.Fatalf("WriteFile md: %v", err)
	}
	data, err = os.ReadFile(mdPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "# Scraper run") {
		t.Errorf("markdown report = %q", data)
	}
}
