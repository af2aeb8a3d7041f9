package worker

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ppiankov/srs/internal/harness"
	"github.com/ppiankov/srs/internal/isotime"
	"github.com/ppiankov/srs/internal/logging"
	"github.com/ppiankov/srs/internal/schedule"
	"github.com/sirupsen/logrus"
)

// Saver persists one run's canonical records, replacing the previous run
type Saver interface {
	SaveRun(ctx context.Context, runID string, acc *harness.Accumulator) error
}

// Scheduler decides whether a scraper is due
type Scheduler interface {
	ShouldRun(ctx context.Context, id string) (schedule.Decision, error)
}

// RunJob runs and saves one scraper
type RunJob struct {
	Producer harness.Producer
	runner   *BatchRunner
}

// Execute runs the job
func (j *RunJob) Execute(ctx context.Context) Result {
	return j.runner.runOne(ctx, j.Producer)
}

// RunOutcome is the result of one scraper in a batch
type RunOutcome struct {
	ID      string
	Skipped bool
	Reason  string
	Result  *harness.RunResult
	Error   error
}

// GetError returns the error that failed the run, including rejected records
func (o *RunOutcome) GetError() error {
	if o.Error != nil {
		return o.Error
	}
	if o.Result != nil && o.Result.Failed() {
		return fmt.Errorf("%d records rejected", len(o.Result.Rejected))
	}
	return nil
}

// BatchError lists the scrapers that failed once every scraper was tried
type BatchError struct {
	Failed []string
	Errors map[string]error
}

func (e *BatchError) Error() string {
	return "failed to scrape: " + strings.Join(e.Failed, ", ")
}

// BatchRunner runs scrapers on a worker pool. Each run gets its own
// accumulator; one failing scraper never stops the others.
type BatchRunner struct {
	saver   Saver
	policy  Scheduler
	workers int
	clock   isotime.Clock
	log     logrus.FieldLogger
}

// NewBatchRunner creates a runner. policy may be nil to run everything.
func NewBatchRunner(saver Saver, policy Scheduler, workers int, clock isotime.Clock, log logrus.FieldLogger) *BatchRunner {
	if log == nil {
		log = logging.Discard()
	}
	return &BatchRunner{
		saver:   saver,
		policy:  policy,
		workers: workers,
		clock:   clock,
		log:     log,
	}
}

// Run executes every due producer and returns one outcome per producer, in
// the order given. The error is a *BatchError if any scraper failed.
func (b *BatchRunner) Run(ctx context.Context, producers []harness.Producer) ([]*RunOutcome, error) {
	jobs := make([]Job, len(producers))
	for i, p := range producers {
		jobs[i] = &RunJob{Producer: p, runner: b}
	}

	byID := make(map[string]*RunOutcome, len(producers))
	for _, res := range RunAll(ctx, b.workers, jobs) {
		o := res.(*RunOutcome)
		byID[o.ID] = o
	}

	outcomes := make([]*RunOutcome, 0, len(producers))
	batchErr := &BatchError{Errors: make(map[string]error)}
	for _, p := range producers {
		o, ok := byID[p.ID()]
		if !ok {
			o = &RunOutcome{ID: p.ID(), Error: fmt.Errorf("not run: %w", context.Cause(ctx))}
		}
		outcomes = append(outcomes, o)
		if err := o.GetError(); err != nil {
			batchErr.Failed = append(batchErr.Failed, o.ID)
			batchErr.Errors[o.ID] = err
		}
	}

	if len(batchErr.Failed) > 0 {
		sort.Strings(batchErr.Failed)
		return outcomes, batchErr
	}
	return outcomes, nil
}

func (b *BatchRunner) runOne(ctx context.Context, p harness.Producer) *RunOutcome {
	id := p.ID()
	log := b.log.WithField("scraper", id)
	out := &RunOutcome{ID: id}

	if b.policy != nil {
		d, err := b.policy.ShouldRun(ctx, id)
		if err != nil {
			out.Error = err
			return out
		}
		if !d.Run {
			log.Infof("skipping scraper: %s", d.Reason)
			out.Skipped, out.Reason = true, d.Reason
			return out
		}
		out.Reason = d.Reason
	}

	log.Info("launching scraper")
	result, err := harness.Run(ctx, p, harness.Options{Clock: b.clock, Log: log})
	if err != nil {
		log.Errorf("scraper failed: %v", err)
		out.Error = err
		return out
	}
	out.Result = result

	if b.saver != nil {
		if err := b.saver.SaveRun(ctx, id, result.Accumulator); err != nil {
			log.Errorf("save failed: %v", err)
			out.Error = fmt.Errorf("save %s: %w", id, err)
		}
	}
	return out
}
