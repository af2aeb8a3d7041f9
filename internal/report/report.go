// Package report summarizes batch runs as JSON or as a Markdown table.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ppiankov/srs/internal/model"
	"github.com/ppiankov/srs/internal/worker"
)

// CountFunc returns stored row counts per table for one run
type CountFunc func(ctx context.Context, runID string) (map[string]int, error)

// Build turns batch outcomes into a report. counts may be nil, in which
// case row counts come from each run's accumulator instead of the store.
func Build(ctx context.Context, outcomes []*worker.RunOutcome, counts CountFunc, started, finished time.Time) *model.BatchReport {
	r := &model.BatchReport{
		StartedAt:  started,
		FinishedAt: finished,
		Scrapers:   make([]model.ScraperReport, 0, len(outcomes)),
	}

	for _, o := range outcomes {
		s := model.ScraperReport{ID: o.ID, Reason: o.Reason, Status: model.RunOK}

		switch {
		case o.Skipped:
			s.Status = model.RunSkipped
		case o.GetError() != nil:
			s.Status = model.RunFailed
		}

		if res := o.Result; res != nil {
			s.Accepted = res.Accepted
			s.Rejected = len(res.Rejected)
			for _, rej := range res.Rejected {
				s.Errors = append(s.Errors, rej.Error())
			}
			s.Rows = make(map[string]int)
			for _, table := range res.Accumulator.Tables() {
				s.Rows[table] = res.Accumulator.Len(table)
			}
		}
		if o.Error != nil {
			s.Errors = append(s.Errors, o.Error.Error())
		}

		if counts != nil && !o.Skipped && o.Error == nil {
			if stored, err := counts(ctx, o.ID); err == nil {
				s.Rows = stored
			}
		}

		r.Scrapers = append(r.Scrapers, s)
	}
	return r
}

// RenderJSON writes the report as indented JSON
func RenderJSON(w io.Writer, r *model.BatchReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

// WriteFile renders the report to path, choosing JSON for .json and
// Markdown for anything else
func WriteFile(path string, r *model.BatchReport) (err error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close report: %w", closeErr)
		}
	}()

	if filepath.Ext(path) == ".json" {
		return RenderJSON(f, r)
	}
	return RenderMarkdown(f, r)
}
