package normalizer

import (
	"context"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/biomarker-engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/biomarker-engine/pkg/types/biomarker"
)

// Rejection reasons produced by the resolution tiers.
const (
	ReasonNotRecognized = "biomarker not recognized"
	ReasonAmbiguous     = "ambiguous: multiple possible matches"
)

// Resolution is the outcome of resolving one name.  Exactly one field is set.
type Resolution struct {
	Match     *biomarker.MatchResult       `json:"match,omitempty"`
	Rejection *biomarker.RejectedBiomarker `json:"rejection,omitempty"`
}

// Matched reports whether the name resolved.
func (r Resolution) Matched() bool { return r.Match != nil }

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithClock overrides the time source used to date duplicate conflicts.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// Engine resolves names against one specification.  It is immutable after
// NewEngine and safe for concurrent use.
type Engine struct {
	spec    *biomarker.Specification
	index   *ReferenceIndex
	matcher *FuzzyMatcher
	cfg     EngineConfig
	logger  logging.Logger
	now     func() time.Time

	insufficientReason string
}

// NewEngine validates cfg, indexes spec and returns a ready engine.
func NewEngine(spec *biomarker.Specification, cfg EngineConfig, logger logging.Logger, opts ...EngineOption) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	idx, err := NewReferenceIndex(spec)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		spec:    spec,
		index:   idx,
		matcher: NewFuzzyMatcher(idx, cfg.CandidateThreshold, cfg.MinQueryLength),
		cfg:     cfg,
		logger:  logging.OrNop(logger).Named("normalizer"),
		now:     time.Now,
		insufficientReason: fmt.Sprintf("insufficient similarity (< %d%%)",
			int(math.Round(cfg.AcceptanceThreshold*100))),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.logger.Info("reference index built",
		logging.String("version", spec.Version),
		logging.Int("biomarkers", idx.Len()),
		logging.Int("keys", idx.KeyCount()))
	return e, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() EngineConfig { return e.cfg }

// Index exposes the reference index for read-only lookups.
func (e *Engine) Index() *ReferenceIndex { return e.index }

// Resolve runs the exact, synonym and fuzzy tiers in order.  The name is not
// length-checked here; Validate does that before resolving.
func (e *Engine) Resolve(originalName string) Resolution {
	key := Normalize(originalName)

	if c, ok := e.index.LookupExact(key); ok {
		return Resolution{Match: matchFrom(originalName, c, biomarker.ExactConfidence, biomarker.MatchExact)}
	}
	if c, ok := e.index.LookupSynonym(key); ok {
		return Resolution{Match: matchFrom(originalName, c, biomarker.SynonymConfidence, biomarker.MatchSynonym)}
	}

	candidates := e.matcher.Search(key)
	switch len(candidates) {
	case 0:
		relaxed := e.matcher.SearchRelaxed(key, e.cfg.NotFoundSuggestions)
		best := 0.0
		if len(relaxed) > 0 {
			best = relaxed[0].Score
		}
		return Resolution{Rejection: &biomarker.RejectedBiomarker{
			OriginalName: originalName,
			Reason:       ReasonNotRecognized,
			Suggestions:  names(relaxed, len(relaxed)),
			Similarity:   best,
		}}
	case 1:
		c := candidates[0]
		if c.Score >= e.cfg.AcceptanceThreshold {
			return Resolution{Match: matchFrom(originalName, c.Biomarker, c.Score, biomarker.MatchFuzzy)}
		}
		return Resolution{Rejection: &biomarker.RejectedBiomarker{
			OriginalName: originalName,
			Reason:       e.insufficientReason,
			Suggestions:  []string{c.Biomarker.StandardName},
			Similarity:   c.Score,
		}}
	default:
		return Resolution{Rejection: &biomarker.RejectedBiomarker{
			OriginalName: originalName,
			Reason:       ReasonAmbiguous,
			Suggestions:  names(candidates, e.cfg.AmbiguousSuggestions),
			Similarity:   candidates[0].Score,
		}}
	}
}

// ResolveBatch resolves names concurrently and returns results in input order.
func (e *Engine) ResolveBatch(ctx context.Context, inputs []string) ([]Resolution, error) {
	out := make([]Resolution, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.BatchConcurrency)
	for i, name := range inputs {
		i, name := i, name
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = e.Resolve(name)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	// gctx is always done once Wait returns; only the caller's ctx matters here.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// HeuristicCategory returns the specification category of name by exact or
// synonym match.
func (e *Engine) HeuristicCategory(name string) (string, bool) {
	key := Normalize(name)
	if c, ok := e.index.LookupExact(key); ok {
		return c.Category, true
	}
	if c, ok := e.index.LookupSynonym(key); ok {
		return c.Category, true
	}
	return "", false
}

// SpecificationStats summarizes the loaded specification.
func (e *Engine) SpecificationStats() biomarker.SpecificationStats {
	synonyms := 0
	for _, b := range e.spec.Biomarkers {
		synonyms += len(b.Synonyms)
	}
	cats := e.index.Categories()
	return biomarker.SpecificationStats{
		Version:         e.spec.Version,
		UpdatedAt:       e.spec.UpdatedAt,
		TotalBiomarkers: e.index.Len(),
		TotalCategories: len(cats),
		TotalSynonyms:   synonyms,
		Categories:      cats,
	}
}

// Specification returns the specification the engine was built from.
func (e *Engine) Specification() *biomarker.Specification { return e.spec }

func matchFrom(original string, c *biomarker.CanonicalBiomarker, confidence float64, mt biomarker.MatchType) *biomarker.MatchResult {
	return &biomarker.MatchResult{
		OriginalName:   original,
		NormalizedName: c.StandardName,
		Category:       c.Category,
		Unit:           c.Unit,
		Synonyms:       append([]string{}, c.Synonyms...),
		Confidence:     confidence,
		MatchType:      mt,
	}
}
