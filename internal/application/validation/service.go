// Package validation provides the application service behind the HTTP API,
// the CLI and the Kafka worker.  It owns the current normalization engine and
// the classification cache.
package validation

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/turtacn/biomarker-engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/biomarker-engine/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/biomarker-engine/internal/intelligence/normalizer"
	"github.com/turtacn/biomarker-engine/pkg/errors"
	"github.com/turtacn/biomarker-engine/pkg/types/biomarker"
)

// ErrNotReady is returned while no specification has been loaded.
var ErrNotReady = errors.New(errors.ErrCodeEngineNotReady, "no biomarker specification loaded")

// Service defines the validation application operations.
type Service interface {
	Validate(ctx context.Context, input *ValidateInput) (*biomarker.ValidationResult, error)
	Resolve(ctx context.Context, name string) (normalizer.Resolution, error)
	ResolveBatch(ctx context.Context, names []string) ([]normalizer.Resolution, error)
	GetCategory(ctx context.Context, name, fallback string) string
	GetCategoryWithSource(ctx context.Context, name, fallback string) normalizer.CategoryResult
	SpecificationStats(ctx context.Context) (*biomarker.SpecificationStats, error)
	CacheStats() normalizer.CacheStats
	ClearCache()
	Reload(ctx context.Context, spec *biomarker.Specification) error
	Ready() bool
}

// ValidateInput contains a submission and the channel it arrived on.
type ValidateInput struct {
	Payload biomarker.Payload
	// Source labels metrics: "http", "cli" or "kafka".
	Source string
}

// Option customizes the service.
type Option func(*serviceImpl)

// WithOverrides backs the classification cache with an override store.
func WithOverrides(o normalizer.OverrideLookup) Option {
	return func(s *serviceImpl) { s.overrides = o }
}

// WithMetrics records service metrics into m.
func WithMetrics(m *prometheus.AppMetrics) Option {
	return func(s *serviceImpl) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithEngineOptions passes opts to every engine the service builds.
func WithEngineOptions(opts ...normalizer.EngineOption) Option {
	return func(s *serviceImpl) { s.engineOpts = append(s.engineOpts, opts...) }
}

type serviceImpl struct {
	cfg        normalizer.EngineConfig
	engine     atomic.Pointer[normalizer.Engine]
	classifier *normalizer.Classifier
	overrides  normalizer.OverrideLookup
	engineOpts []normalizer.EngineOption
	metrics    *prometheus.AppMetrics
	logger     logging.Logger
}

// NewService builds the service.  A nil spec yields a service that is not
// ready until Reload succeeds; engine operations fail with ErrNotReady in the
// meantime while category lookups keep working from overrides and the
// static table.
func NewService(spec *biomarker.Specification, cfg normalizer.EngineConfig, logger logging.Logger, opts ...Option) (Service, error) {
	s := &serviceImpl{
		cfg:     cfg,
		metrics: prometheus.NewNoopAppMetrics(),
		logger:  logging.OrNop(logger).Named("validation"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var heuristic normalizer.HeuristicSource
	if spec != nil {
		engine, err := normalizer.NewEngine(spec, cfg, s.logger, s.engineOpts...)
		if err != nil {
			prometheus.RecordSpecReload(s.metrics, spec.Version, 0, err)
			return nil, err
		}
		s.engine.Store(engine)
		heuristic = engine
		prometheus.RecordSpecReload(s.metrics, spec.Version, engine.Index().Len(), nil)
	}

	classifierOpts := []normalizer.ClassifierOption{
		normalizer.WithCacheObserver(func(hit bool) { prometheus.RecordCacheAccess(s.metrics, hit) }),
	}
	if s.overrides != nil {
		classifierOpts = append(classifierOpts, normalizer.WithOverrides(s.overrides))
	}
	classifier, err := normalizer.NewClassifier(heuristic, cfg.CacheSize, s.logger, classifierOpts...)
	if err != nil {
		return nil, err
	}
	s.classifier = classifier
	return s, nil
}

func (s *serviceImpl) current() (*normalizer.Engine, error) {
	e := s.engine.Load()
	if e == nil {
		return nil, ErrNotReady
	}
	return e, nil
}

func (s *serviceImpl) Validate(ctx context.Context, input *ValidateInput) (*biomarker.ValidationResult, error) {
	if input == nil {
		return nil, errors.InvalidParam("validation input is required")
	}
	engine, err := s.current()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	res := engine.Validate(input.Payload)

	reasons := make(map[string]int)
	for _, r := range res.RejectedBiomarkers {
		reasons[normalizer.ReasonClass(r.Reason)]++
	}
	prometheus.RecordValidation(s.metrics, prometheus.ValidationOutcome{
		Source:  sourceLabel(input.Source),
		Entries: res.Stats.Total,
		Success: res.Success,
		MatchTypes: map[string]int{
			string(biomarker.MatchExact):   res.Stats.ExactMatches,
			string(biomarker.MatchSynonym): res.Stats.SynonymMatches,
			string(biomarker.MatchFuzzy):   res.Stats.FuzzyMatches,
		},
		Reasons:    reasons,
		Duplicates: len(res.Duplicates),
		Duration:   time.Since(start),
	})

	s.logger.Debug("submission validated",
		logging.String("exam_id", input.Payload.ExamID),
		logging.String("source", sourceLabel(input.Source)),
		logging.Int("processed", res.Stats.Processed),
		logging.Int("rejected", res.Stats.Rejected),
		logging.Bool("success", res.Success))
	return res, nil
}

func (s *serviceImpl) Resolve(_ context.Context, name string) (normalizer.Resolution, error) {
	engine, err := s.current()
	if err != nil {
		return normalizer.Resolution{}, err
	}
	r := engine.ResolveName(name)
	s.recordResolution(r)
	return r, nil
}

func (s *serviceImpl) ResolveBatch(ctx context.Context, names []string) ([]normalizer.Resolution, error) {
	engine, err := s.current()
	if err != nil {
		return nil, err
	}
	valid := make([]string, 0, len(names))
	slots := make([]int, 0, len(names))
	out := make([]normalizer.Resolution, len(names))
	for i, name := range names {
		if reason := engine.CheckName(name); reason != "" {
			out[i] = normalizer.Resolution{Rejection: &biomarker.RejectedBiomarker{
				OriginalName: name,
				Reason:       reason,
				Suggestions:  []string{},
			}}
			continue
		}
		valid = append(valid, name)
		slots = append(slots, i)
	}

	resolved, err := engine.ResolveBatch(ctx, valid)
	if err != nil {
		return nil, err
	}
	for j, r := range resolved {
		out[slots[j]] = r
	}
	for _, r := range out {
		s.recordResolution(r)
	}
	return out, nil
}

func (s *serviceImpl) recordResolution(r normalizer.Resolution) {
	if r.Match != nil {
		prometheus.RecordResolution(s.metrics, string(r.Match.MatchType), "")
		return
	}
	prometheus.RecordResolution(s.metrics, "", normalizer.ReasonClass(r.Rejection.Reason))
}

func (s *serviceImpl) GetCategory(ctx context.Context, name, fallback string) string {
	return s.GetCategoryWithSource(ctx, name, fallback).Category
}

func (s *serviceImpl) GetCategoryWithSource(ctx context.Context, name, fallback string) normalizer.CategoryResult {
	r := s.classifier.GetCategoryWithSource(ctx, name, fallback)
	prometheus.RecordCategoryLookup(s.metrics, string(r.Source))
	return r
}

func (s *serviceImpl) SpecificationStats(_ context.Context) (*biomarker.SpecificationStats, error) {
	engine, err := s.current()
	if err != nil {
		return nil, err
	}
	stats := engine.SpecificationStats()
	return &stats, nil
}

func (s *serviceImpl) CacheStats() normalizer.CacheStats {
	stats := s.classifier.Stats()
	s.metrics.CategoryCacheSize.WithLabelValues("classification").Set(float64(stats.Size))
	return stats
}

func (s *serviceImpl) ClearCache() {
	s.classifier.Clear()
	s.metrics.CategoryCacheSize.WithLabelValues("classification").Set(0)
}

// Reload builds an engine from spec.  On failure the running engine keeps
// serving and the error is returned.
func (s *serviceImpl) Reload(_ context.Context, spec *biomarker.Specification) error {
	if spec == nil {
		return errors.New(errors.ErrCodeSpecificationEmpty, "specification is required")
	}
	engine, err := normalizer.NewEngine(spec, s.cfg, s.logger, s.engineOpts...)
	if err != nil {
		prometheus.RecordSpecReload(s.metrics, spec.Version, 0, err)
		s.logger.Error("specification reload rejected", logging.String("version", spec.Version), logging.Err(err))
		return err
	}

	previous := s.engine.Swap(engine)
	s.classifier.Rebind(engine)
	s.metrics.CategoryCacheSize.WithLabelValues("classification").Set(0)
	prometheus.RecordSpecReload(s.metrics, spec.Version, engine.Index().Len(), nil)

	fields := []logging.Field{
		logging.String("version", spec.Version),
		logging.Int("biomarkers", engine.Index().Len()),
	}
	if previous != nil {
		fields = append(fields, logging.String("previous_version", previous.Specification().Version))
	}
	s.logger.Info("specification reloaded", fields...)
	return nil
}

func (s *serviceImpl) Ready() bool { return s.engine.Load() != nil }

func sourceLabel(source string) string {
	if source == "" {
		return "unknown"
	}
	return source
}
