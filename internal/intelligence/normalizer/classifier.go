package normalizer

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/turtacn/biomarker-engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/biomarker-engine/pkg/errors"
	"github.com/turtacn/biomarker-engine/pkg/types/biomarker"
)

// OverrideLookup supplies admin-entered categories and label variations.
// A miss is (zero, false, nil); an error means the store could not answer.
type OverrideLookup interface {
	GetOverride(ctx context.Context, name string) (string, bool, error)
	GetVariation(ctx context.Context, raw string) (*biomarker.Variation, bool, error)
}

// HeuristicSource answers the last classification tier.  *Engine implements it.
type HeuristicSource interface {
	HeuristicCategory(name string) (string, bool)
}

// TableLookupFunc answers the static-table tier.
type TableLookupFunc func(name string) (TableEntry, bool)

// CacheObserver is notified of every cache hit or miss.
type CacheObserver func(hit bool)

// CategoryResult is a classification and where it came from.
type CategoryResult struct {
	Category string                   `json:"category"`
	Source   biomarker.CategorySource `json:"source"`
}

// CacheStats is a snapshot of classifier cache usage.
type CacheStats struct {
	Size        int     `json:"size"`
	Capacity    int     `json:"capacity"`
	Utilization float64 `json:"utilization"`
	Hits        uint64  `json:"hits"`
	Misses      uint64  `json:"misses"`
	HitRate     float64 `json:"hit_rate"`
}

// ClassifierOption customizes a Classifier.
type ClassifierOption func(*Classifier)

// WithOverrides installs the admin override collaborator.
func WithOverrides(o OverrideLookup) ClassifierOption {
	return func(c *Classifier) { c.overrides = o }
}

// WithTableLookup replaces the static-table tier.  A nil fn disables it.
func WithTableLookup(fn TableLookupFunc) ClassifierOption {
	return func(c *Classifier) { c.table = fn }
}

// WithCacheObserver reports hits and misses, typically to metrics.
func WithCacheObserver(fn CacheObserver) ClassifierOption {
	return func(c *Classifier) { c.observer = fn }
}

// Classifier answers category-only queries through four tiers: override,
// static table, caller fallback, specification heuristic.  Answers are
// memoized in a bounded LRU keyed by name and fallback.
type Classifier struct {
	mu        sync.RWMutex
	heuristic HeuristicSource

	overrides OverrideLookup
	table     TableLookupFunc
	observer  CacheObserver
	logger    logging.Logger

	cache    *lru.Cache[string, CategoryResult]
	capacity int
	group    singleflight.Group
	// fillMu orders cache fills against Clear.
	fillMu   sync.Mutex

	hits       atomic.Uint64
	misses     atomic.Uint64
	generation atomic.Uint64
}

// NewClassifier builds a classifier with a cache of capacity entries.
func NewClassifier(heuristic HeuristicSource, capacity int, logger logging.Logger, opts ...ClassifierOption) (*Classifier, error) {
	if capacity < 1 {
		return nil, errors.New(errors.ErrCodeEngineConfig, "classifier cache capacity must be positive")
	}
	cache, err := lru.New[string, CategoryResult](capacity)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeEngineConfig, "create classifier cache")
	}
	c := &Classifier{
		heuristic: heuristic,
		table:     LookupTable,
		logger:    logging.OrNop(logger).Named("classifier"),
		cache:     cache,
		capacity:  capacity,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// GetCategory returns the category key of name.
func (c *Classifier) GetCategory(ctx context.Context, name, fallback string) string {
	return c.GetCategoryWithSource(ctx, name, fallback).Category
}

// GetCategoryWithSource returns the category key of name and the tier that
// produced it.
func (c *Classifier) GetCategoryWithSource(ctx context.Context, name, fallback string) CategoryResult {
	key := cacheKey(name, fallback)
	if r, ok := c.cache.Get(key); ok {
		c.hits.Add(1)
		c.observe(true)
		return r
	}
	c.misses.Add(1)
	c.observe(false)

	// Callers arriving after a Clear never join a computation started before it.
	gen := c.generation.Load()
	flightKey := strconv.FormatUint(gen, 10) + "\x00" + key
	v, _, _ := c.group.Do(flightKey, func() (interface{}, error) {
		r, cacheable := c.classify(ctx, name, fallback)
		if cacheable {
			c.fillMu.Lock()
			if gen == c.generation.Load() {
				c.cache.Add(key, r)
			}
			c.fillMu.Unlock()
		}
		return r, nil
	})
	return v.(CategoryResult)
}

func (c *Classifier) classify(ctx context.Context, name, fallback string) (CategoryResult, bool) {
	category, found, healthy := c.lookupOverride(ctx, name)
	if found {
		return CategoryResult{Category: NormalizeCategory(category), Source: biomarker.SourceOverride}, true
	}

	if c.table != nil {
		if e, ok := c.table(name); ok && e.Category != "" {
			return CategoryResult{Category: NormalizeCategory(e.Category), Source: biomarker.SourceNormalizationTable}, healthy
		}
	}

	if fallback != "" {
		return CategoryResult{Category: NormalizeCategory(fallback), Source: biomarker.SourceDatabase}, healthy
	}

	c.mu.RLock()
	h := c.heuristic
	c.mu.RUnlock()
	if h != nil {
		if cat, ok := h.HeuristicCategory(name); ok {
			return CategoryResult{Category: NormalizeCategory(cat), Source: biomarker.SourceHeuristic}, healthy
		}
	}
	return CategoryResult{Category: biomarker.CategoryOther, Source: biomarker.SourceHeuristic}, healthy
}

// lookupOverride tries the override of name, then a variation of name (its
// own category, else the override of its standard name).  healthy is false
// when any store call failed, so the answer is not memoized.
func (c *Classifier) lookupOverride(ctx context.Context, name string) (category string, found, healthy bool) {
	if c.overrides == nil {
		return "", false, true
	}
	healthy = true

	cat, ok, err := c.overrides.GetOverride(ctx, name)
	switch {
	case err != nil:
		healthy = false
		c.logger.Warn("override lookup failed", logging.String("name", name), logging.Err(err))
	case ok && cat != "":
		return cat, true, true
	}

	v, ok, err := c.overrides.GetVariation(ctx, name)
	if err != nil {
		c.logger.Warn("variation lookup failed", logging.String("name", name), logging.Err(err))
		return "", false, false
	}
	if !ok || v == nil {
		return "", false, healthy
	}
	if v.Category != "" {
		return v.Category, true, healthy
	}
	if v.StandardName == "" || v.StandardName == name {
		return "", false, healthy
	}

	cat, ok, err = c.overrides.GetOverride(ctx, v.StandardName)
	if err != nil {
		c.logger.Warn("override lookup failed", logging.String("name", v.StandardName), logging.Err(err))
		return "", false, false
	}
	if ok && cat != "" {
		return cat, true, healthy
	}
	return "", false, healthy
}

// Rebind swaps the heuristic source and clears the cache.
func (c *Classifier) Rebind(h HeuristicSource) {
	c.mu.Lock()
	c.heuristic = h
	c.mu.Unlock()
	c.Clear()
}

// Clear empties the cache and resets the counters.
func (c *Classifier) Clear() {
	c.fillMu.Lock()
	c.generation.Add(1)
	n := c.cache.Len()
	c.cache.Purge()
	c.fillMu.Unlock()
	c.hits.Store(0)
	c.misses.Store(0)
	c.logger.Info("classification cache cleared", logging.Int("evicted", n))
}

// Stats returns a snapshot of cache usage.
func (c *Classifier) Stats() CacheStats {
	hits, misses := c.hits.Load(), c.misses.Load()
	size := c.cache.Len()
	s := CacheStats{
		Size:        size,
		Capacity:    c.capacity,
		Utilization: float64(size) / float64(c.capacity),
		Hits:        hits,
		Misses:      misses,
	}
	if total := hits + misses; total > 0 {
		s.HitRate = float64(hits) / float64(total)
	}
	return s
}

func (c *Classifier) observe(hit bool) {
	if c.observer != nil {
		c.observer(hit)
	}
}

func cacheKey(name, fallback string) string {
	return name + "\x00" + fallback
}
