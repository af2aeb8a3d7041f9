package model

import "time"

// RunStatus is the outcome of one scraper in a batch
type RunStatus string

const (
	RunOK      RunStatus = "ok"
	RunFailed  RunStatus = "failed"
	RunSkipped RunStatus = "skipped"
)

// BatchReport summarizes a batch of scraper runs
type BatchReport struct {
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Scrapers   []ScraperReport `json:"scrapers"`
}

// ScraperReport summarizes one scraper's run
type ScraperReport struct {
	ID       string         `json:"id"`
	Status   RunStatus      `json:"status"`
	Reason   string         `json:"reason,omitempty"` // why it ran or was skipped
	Accepted int            `json:"accepted"`         // source rows expanded
	Rejected int            `json:"rejected"`         // source rows that failed validation
	Rows     map[string]int `json:"rows,omitempty"`   // canonical rows per table
	Errors   []string       `json:"errors,omitempty"` // rejected rows and run errors
}

// Failed returns the ids of failed scrapers
func (r *BatchReport) Failed() []string {
	var ids []string
	for _, s := range r.Scrapers {
		if s.Status == RunFailed {
			ids = append(ids, s.ID)
		}
	}
	return ids
}

// Count returns how many scrapers ended with status
func (r *BatchReport) Count(status RunStatus) int {
	n := 0
	for _, s := range r.Scrapers {
		if s.Status == status {
			n++
		}
	}
	return n
}
