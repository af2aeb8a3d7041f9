// Package schedule decides which scrapers are due to run.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/ppiankov/srs/internal/isotime"
	"github.com/ppiankov/srs/internal/model"
)

// LastScraper looks up when a scraper last ran. ok is false if it never has.
type LastScraper interface {
	LastScraped(ctx context.Context, scraperID string) (t time.Time, ok bool, err error)
}

// Decision is the outcome of ShouldRun
type Decision struct {
	Run    bool
	Reason string
}

// Policy implements the run rules, in order of precedence: an explicit
// whitelist, then the blacklist, then the run frequency, which a newer
// last-changed time overrides.
type Policy struct {
	Whitelist        []string
	Blacklist        []string
	DefaultFrequency time.Duration
	Frequency        map[string]time.Duration
	LastChanged      map[string]time.Time

	store LastScraper
	clock isotime.Clock
}

// NewPolicy builds a policy from the schedule config section
func NewPolicy(cfg model.ScheduleConfig, store LastScraper, clock isotime.Clock) (*Policy, error) {
	changed := make(map[string]time.Time, len(cfg.LastChanged))
	for id, s := range cfg.LastChanged {
		t, err := isotime.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("schedule.last_changed[%s]: %w", id, err)
		}
		changed[id] = t
	}
	if clock == nil {
		clock = isotime.SystemClock
	}
	return &Policy{
		DefaultFrequency: cfg.DefaultFrequency,
		Frequency:        cfg.Frequency,
		LastChanged:      changed,
		store:            store,
		clock:            clock,
	}, nil
}

// ShouldRun decides whether the scraper id is due
func (p *Policy) ShouldRun(ctx context.Context, id string) (Decision, error) {
	if len(p.Whitelist) > 0 {
		if contains(p.Whitelist, id) {
			return Decision{Run: true, Reason: "requested"}, nil
		}
		return Decision{Reason: "not requested"}, nil
	}

	if contains(p.Blacklist, id) {
		return Decision{Reason: "skipped"}, nil
	}

	freq, ok := p.Frequency[id]
	if !ok {
		freq = p.DefaultFrequency
	}
	if freq <= 0 || p.store == nil {
		return Decision{Run: true, Reason: "no frequency"}, nil
	}

	last, ok, err := p.store.LastScraped(ctx, id)
	if err != nil {
		return Decision{}, fmt.Errorf("last scraped %s: %w", id, err)
	}
	if !ok {
		return Decision{Run: true, Reason: "never scraped"}, nil
	}

	if changed, ok := p.LastChanged[id]; ok && changed.After(last) {
		return Decision{Run: true, Reason: "changed since last scrape"}, nil
	}

	next := last.Add(freq)
	if next.Before(p.clock()) {
		return Decision{Run: true, Reason: fmt.Sprintf("last scraped %s", isotime.Format(last))}, nil
	}
	return Decision{Reason: fmt.Sprintf("not due until %s", isotime.Format(next))}, nil
}

func contains(ids []string, id string) bool {
	for _, s := range ids {
		if s == id {
			return true
		}
	}
	return false
}
