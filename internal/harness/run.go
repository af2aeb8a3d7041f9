package harness

import (
	"context"
	"fmt"

	"github.com/ppiankov/srs/internal/isotime"
	"github.com/ppiankov/srs/internal/model"
	"github.com/sirupsen/logrus"
)

// EmitFunc receives one (table, record) pair from a scraper. A non-nil
// return tells the scraper to stop.
type EmitFunc func(table string, rec model.Record) error

// Producer is a data-collection routine
type Producer interface {
	// ID is the run identifier all of the producer's records are tagged with
	ID() string
	// Scrape emits the producer's rows
	Scrape(ctx context.Context, emit EmitFunc) error
}

// RecordError is a source record that was rejected during a run
type RecordError struct {
	Index int
	Table string
	Err   error
}

func (e RecordError) Error() string {
	return fmt.Sprintf("record %d (%s): %v", e.Index, e.Table, e.Err)
}

// RunResult is the outcome of running one producer
type RunResult struct {
	ScraperID   string
	Accumulator *Accumulator
	Accepted    int
	Rejected    []RecordError
}

// Failed reports whether any record was rejected
func (r *RunResult) Failed() bool {
	return len(r.Rejected) > 0
}

// Options configures Run
type Options struct {
	Clock isotime.Clock
	Log   logrus.FieldLogger
}

// ResolveTable maps a table name emitted by a scraper to a canonical table.
// Scrapers often leave off the scraper_ prefix.
func ResolveTable(name string) (string, error) {
	if _, ok := model.LookupTable(name); ok {
		return name, nil
	}
	if _, ok := model.LookupTable(model.TablePrefix + name); ok {
		return model.TablePrefix + name, nil
	}
	return "", &UnsupportedTableError{Table: name}
}

// Run collects every row a producer emits into a fresh accumulator. A bad
// record is logged and skipped; the rest of the run continues. A producer
// error aborts the run. On success the accumulator also holds a scraper
// row stamped with last_scraped.
func Run(ctx context.Context, p Producer, opts Options) (*RunResult, error) {
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("scraper", p.ID())

	acc := NewAccumulator(p.ID())
	exp := NewExpander(acc, log)
	result := &RunResult{ScraperID: p.ID(), Accumulator: acc}

	index := 0
	emit := func(table string, rec model.Record) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		i := index
		index++

		resolved, err := ResolveTable(table)
		if err == nil {
			err = exp.Add(resolved, rec)
		}
		if err != nil {
			log.WithField("table", table).Warnf("rejected record %d: %v", i, err)
			result.Rejected = append(result.Rejected, RecordError{Index: i, Table: table, Err: err})
			return nil
		}
		result.Accepted++
		return nil
	}

	if err := p.Scrape(ctx, emit); err != nil {
		return nil, fmt.Errorf("scrape %s: %w", p.ID(), err)
	}

	// add the time this scraper ran
	stamp := model.Record{"last_scraped": isotime.Now(opts.Clock)}
	if err := exp.Add(model.TableScraper, stamp); err != nil {
		return nil, fmt.Errorf("record last_scraped: %w", err)
	}

	log.Infof("collected %d records (%d canonical, %d rejected)",
		result.Accepted, acc.Total(), len(result.Rejected))
	return result, nil
}
