package source

import (
	"context"

	"github.com/ppiankov/srs/internal/claim"
	"github.com/ppiankov/srs/internal/harness"
	"github.com/ppiankov/srs/internal/logging"
	"github.com/ppiankov/srs/internal/model"
	"github.com/ppiankov/srs/internal/rating"
	"github.com/sirupsen/logrus"
)

// Enricher post-processes another scraper's rows: it clarifies claim text
// and fills in judgments the source left out
type Enricher struct {
	inner          Scraper
	clarifications []claim.Clarification
	infer          bool
	def            model.Judgment
	judge          claim.Judge
	log            logrus.FieldLogger
}

// EnricherOptions configures an Enricher
type EnricherOptions struct {
	Clarifications []claim.Clarification
	// InferJudgments fills missing judgments of claims from their text and
	// of ratings from their grade
	InferJudgments  bool
	DefaultJudgment model.Judgment
	// Judge is consulted for claims no text rule matches; may be nil
	Judge claim.Judge
	Log   logrus.FieldLogger
}

// NewEnricher wraps inner
func NewEnricher(inner Scraper, opts EnricherOptions) *Enricher {
	log := opts.Log
	if log == nil {
		log = logging.Discard()
	}
	return &Enricher{
		inner:          inner,
		clarifications: opts.Clarifications,
		infer:          opts.InferJudgments,
		def:            opts.DefaultJudgment,
		judge:          opts.Judge,
		log:            log,
	}
}

func (e *Enricher) ID() string { return e.inner.ID() }

// Scrape runs the wrapped scraper, enriching each row on the way through
func (e *Enricher) Scrape(ctx context.Context, emit EmitFunc) error {
	return e.inner.Scrape(ctx, func(table string, rec model.Record) error {
		return emit(table, e.enrich(ctx, table, rec))
	})
}

func (e *Enricher) enrich(ctx context.Context, table string, rec model.Record) model.Record {
	resolved, err := harness.ResolveTable(table)
	if err != nil {
		return rec
	}

	switch resolved {
	case model.TableClaim:
		text, ok := rec["claim"].(string)
		if !ok || text == "" {
			return rec
		}
		out := rec.Clone()
		if len(e.clarifications) > 0 {
			text = claim.Clarify(text, e.clarifications)
			out["claim"] = text
		}
		if e.infer && !out.Has("judgment") {
			j, err := claim.ClassifyWithJudge(ctx, text, e.def, e.judge)
			if err != nil {
				e.log.WithField("scraper", e.ID()).Warnf("judge failed, using %s: %v", j, err)
			}
			out["judgment"] = int(j)
		}
		return out

	case model.TableRating:
		if !e.infer || rec.Has("judgment") {
			return rec
		}
		grade, ok := rec["grade"].(string)
		if !ok || grade == "" {
			return rec
		}
		j, err := rating.GradeToJudgment(grade)
		if err != nil {
			return rec
		}
		out := rec.Clone()
		out["judgment"] = int(j)
		return out
	}
	return rec
}
