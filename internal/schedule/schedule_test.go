package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ppiankov/srs/internal/model"
)

type fakeStore map[string]time.Time

func (f fakeStore) LastScraped(ctx context.Context, id string) (time.Time, bool, error) {
	t, ok := f[id]
	return t, ok, nil
}

type failingStore struct{}

func (failingStore) LastScraped(ctx context.Context, id string) (time.Time, bool, error) {
	return time.Time{}, false, errors.New("db locked")
}

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

func TestShouldRun(t *testing.T) {
	store := fakeStore{
		"recent":  now.Add(-time.Hour),
		"stale":   now.Add(-48 * time.Hour),
		"changed": now.Add(-time.Hour),
		"custom":  now.Add(-3 * time.Hour),
	}
	cfg := model.ScheduleConfig{
		DefaultFrequency: 24 * time.Hour,
		Frequency:        map[string]time.Duration{"custom": 2 * time.Hour},
		LastChanged:      map[string]string{"changed": "2024-06-01T11:30:00Z"},
	}

	tests := []struct {
		name      string
		whitelist []string
		blacklist []string
		id        string
		want      bool
	}{
		{"never scraped", nil, nil, "new", true},
		{"recently scraped", nil, nil, "recent", false},
		{"stale", nil, nil, "stale", true},
		{"changed after last scrape", nil, nil, "changed", true},
		{"custom frequency", nil, nil, "custom", true},
		{"blacklisted", nil, []string{"stale"}, "stale", false},
		{"whitelist forces", []string{"recent"}, nil, "recent", true},
		{"whitelist excludes", []string{"recent"}, nil, "stale", false},
		{"whitelist beats blacklist", []string{"stale"}, []string{"stale"}, "stale", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPolicy(cfg, store, clock)
			if err != nil {
				t.Fatalf("NewPolicy: %v", err)
			}
			p.Whitelist = tt.whitelist
			p.Blacklist = tt.blacklist

			d, err := p.ShouldRun(context.Background(), tt.id)
			if err != nil {
				t.Fatalf("ShouldRun: %v", err)
			}
			if d.Run != tt.want {
				t.Errorf("ShouldRun(%s) = %v (%s), want %v", tt.id, d.Run, d.Reason, tt.want)
			}
			if d.Reason == "" {
				t.Error("expected a reason")
			}
		})
	}
}

func TestShouldRun_NoFrequency(t *testing.T) {
	p, _ := NewPolicy(model.ScheduleConfig{}, failingStore{}, clock)
	d, err := p.ShouldRun(context.Background(), "anything")
	if err != nil || !d.Run {
		t.Errorf("no frequency should always run without a lookup, got %v %v", d, err)
	}
}

func TestShouldRun_StoreError(t *testing.T) {
	p, _ := NewPolicy(model.ScheduleConfig{DefaultFrequency: time.Hour}, failingStore{}, clock)
	if _, err := p.ShouldRun(context.Background(), "x"); err == nil {
		t.Error("expected lookup error")
	}
}

func TestNewPolicy_BadLastChanged(t *testing.T) {
	cfg := model.ScheduleConfig{LastChanged: map[string]string{"x": "last tuesday"}}
	if _, err := NewPolicy(cfg, nil, nil); err == nil {
		t.Error("expected parse error")
	}
}
