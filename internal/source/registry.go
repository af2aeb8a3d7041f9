package source

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/ppiankov/srs/internal/claim"
	"github.com/ppiankov/srs/internal/model"
	"github.com/sirupsen/logrus"
)

// ErrUnknownScraper is returned by Select for ids nobody registered
var ErrUnknownScraper = errors.New("unknown scraper")

// Registry indexes scrapers by id
type Registry struct {
	scrapers map[string]Scraper
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{scrapers: make(map[string]Scraper)}
}

// Add registers s, replacing any scraper with the same id
func (r *Registry) Add(s Scraper) {
	r.scrapers[s.ID()] = s
}

// Get looks up a scraper by id
func (r *Registry) Get(id string) (Scraper, bool) {
	s, ok := r.scrapers[id]
	return s, ok
}

// IDs returns every registered id, sorted
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.scrapers))
	for id := range r.scrapers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Select returns the scrapers for ids in the order given, or all of them
// sorted by id when ids is empty
func (r *Registry) Select(ids []string) ([]Scraper, error) {
	if len(ids) == 0 {
		ids = r.IDs()
	}
	out := make([]Scraper, 0, len(ids))
	for _, id := range ids {
		s, ok := r.scrapers[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownScraper, id)
		}
		out = append(out, s)
	}
	return out, nil
}

// Build registers the record files found in the scrapers dir, then the
// configured sources, which win on id clashes
func Build(cfg model.ScrapersConfig, fetcher Fetcher, judge claim.Judge, log logrus.FieldLogger) (*Registry, error) {
	reg := NewRegistry()

	if cfg.Dir != "" {
		found, err := Discover(cfg.Dir)
		switch {
		case err == nil:
			for _, s := range found {
				reg.Add(s)
			}
		case errors.Is(err, os.ErrNotExist):
			if log != nil {
				log.Debugf("scrapers dir %s does not exist", cfg.Dir)
			}
		default:
			return nil, err
		}
	}

	for _, src := range cfg.Sources {
		s, err := fromConfig(src, fetcher, judge, log)
		if err != nil {
			return nil, err
		}
		reg.Add(s)
	}
	return reg, nil
}

func fromConfig(src model.SourceConfig, fetcher Fetcher, judge claim.Judge, log logrus.FieldLogger) (Scraper, error) {
	var (
		s   Scraper
		err error
	)
	switch {
	case src.File != "":
		s, err = NewFileScraper(src.ID, src.File)
	case src.URL != "":
		if fetcher == nil {
			return nil, fmt.Errorf("scraper %s: no fetcher for URL sources", src.ID)
		}
		s, err = NewHTTPScraper(src.ID, src.URL, fetcher)
	default:
		return nil, fmt.Errorf("%w (source %s)", model.ErrSourceMissingInput, src.ID)
	}
	if err != nil {
		return nil, err
	}

	if !src.InferJudgments && len(src.Clarifications) == 0 {
		return s, nil
	}

	rules, err := claim.CompileClarifications(src.Clarifications)
	if err != nil {
		return nil, fmt.Errorf("scraper %s: %w", src.ID, err)
	}
	def := model.JudgmentGood
	if src.DefaultJudgment != "" {
		if def, err = model.ParseJudgment(src.DefaultJudgment); err != nil {
			return nil, fmt.Errorf("scraper %s: default_judgment: %w", src.ID, err)
		}
	}
	return NewEnricher(s, EnricherOptions{
		Clarifications:  rules,
		InferJudgments:  src.InferJudgments,
		DefaultJudgment: def,
		Judge:           judge,
		Log:             log,
	}), nil
}
