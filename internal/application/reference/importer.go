package reference

import (
	"context"

	"github.com/turtacn/biomarker-engine/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/biomarker-engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/biomarker-engine/pkg/types/biomarker"
)

// SpecWriter persists a specification into the override tables.
type SpecWriter interface {
	Import(ctx context.Context, spec *biomarker.Specification) (*repositories.ImportSummary, error)
}

// CacheInvalidator drops cached override lookups.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) (int64, error)
}

// Locker serializes imports across processes.
type Locker interface {
	Lock(ctx context.Context) error
	Unlock(ctx context.Context) error
}

// ImporterOption customizes an Importer.
type ImporterOption func(*Importer)

// WithLock holds l for the duration of every import.
func WithLock(l Locker) ImporterOption {
	return func(i *Importer) { i.lock = l }
}

// WithCacheInvalidator clears c after a successful import.
func WithCacheInvalidator(c CacheInvalidator) ImporterOption {
	return func(i *Importer) { i.cache = c }
}

// WithOnImported runs fn after a successful import, e.g. to clear the
// in-process classification cache.
func WithOnImported(fn func()) ImporterOption {
	return func(i *Importer) { i.onImported = fn }
}

// Importer writes a specification to the override store and invalidates
// whatever cached the old content.
type Importer struct {
	writer     SpecWriter
	lock       Locker
	cache      CacheInvalidator
	onImported func()
	logger     logging.Logger
}

// NewImporter returns an Importer writing through w.
func NewImporter(w SpecWriter, log logging.Logger, opts ...ImporterOption) *Importer {
	i := &Importer{writer: w, logger: logging.OrNop(log).Named("spec_import")}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Import replaces the override tables with spec.
func (i *Importer) Import(ctx context.Context, spec *biomarker.Specification) (*repositories.ImportSummary, error) {
	if i.lock != nil {
		if err := i.lock.Lock(ctx); err != nil {
			return nil, err
		}
		defer func() {
			if err := i.lock.Unlock(context.WithoutCancel(ctx)); err != nil {
				i.logger.Warn("import lock release failed", logging.Err(err))
			}
		}()
	}

	summary, err := i.writer.Import(ctx, spec)
	if err != nil {
		return nil, err
	}

	if i.cache != nil {
		if _, err := i.cache.Invalidate(ctx); err != nil {
			// stale entries expire with the cache TTL
			i.logger.Warn("override cache invalidation failed", logging.Err(err))
		}
	}
	if i.onImported != nil {
		i.onImported()
	}

	i.logger.Info("specification imported",
		logging.String("version", summary.Version),
		logging.Int("categories", summary.Categories),
		logging.Int("overrides", summary.Overrides),
		logging.Int("variations", summary.Variations))
	return summary, nil
}
