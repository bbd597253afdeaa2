package normalizer

import (
	"fmt"

	"github.com/turtacn/biomarker-engine/pkg/errors"
)

// EngineConfig tunes matching and validation.
type EngineConfig struct {
	// AcceptanceThreshold is the minimum similarity for a fuzzy match to be accepted.
	AcceptanceThreshold float64 `mapstructure:"acceptance_threshold" yaml:"acceptance_threshold" json:"acceptance_threshold"`

	// CandidateThreshold admits fuzzy candidates into the ranking.  It is at
	// most AcceptanceThreshold so near misses can be reported as suggestions.
	CandidateThreshold float64 `mapstructure:"candidate_threshold" yaml:"candidate_threshold" json:"candidate_threshold"`

	// MinQueryLength is the shortest normalized query the fuzzy tier will search.
	MinQueryLength int `mapstructure:"min_query_length" yaml:"min_query_length" json:"min_query_length"`

	MinNameLength int `mapstructure:"min_name_length" yaml:"min_name_length" json:"min_name_length"`
	MaxNameLength int `mapstructure:"max_name_length" yaml:"max_name_length" json:"max_name_length"`

	NotFoundSuggestions  int `mapstructure:"not_found_suggestions" yaml:"not_found_suggestions" json:"not_found_suggestions"`
	AmbiguousSuggestions int `mapstructure:"ambiguous_suggestions" yaml:"ambiguous_suggestions" json:"ambiguous_suggestions"`

	BatchConcurrency int `mapstructure:"batch_concurrency" yaml:"batch_concurrency" json:"batch_concurrency"`

	// CacheSize bounds the classification cache.
	CacheSize int `mapstructure:"cache_size" yaml:"cache_size" json:"cache_size"`
}

// DefaultEngineConfig returns production defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		AcceptanceThreshold:  0.85,
		CandidateThreshold:   0.80,
		MinQueryLength:       3,
		MinNameLength:        2,
		MaxNameLength:        150,
		NotFoundSuggestions:  3,
		AmbiguousSuggestions: 5,
		BatchConcurrency:     8,
		CacheSize:            500,
	}
}

// Validate checks ranges and cross-field constraints.
func (c EngineConfig) Validate() error {
	invalid := func(format string, args ...interface{}) error {
		return errors.New(errors.ErrCodeEngineConfig, "invalid engine configuration").
			WithDetail(fmt.Sprintf(format, args...))
	}
	switch {
	case c.AcceptanceThreshold <= 0 || c.AcceptanceThreshold > 1:
		return invalid("acceptance_threshold %.3f must be in (0, 1]", c.AcceptanceThreshold)
	case c.CandidateThreshold <= 0 || c.CandidateThreshold > c.AcceptanceThreshold:
		return invalid("candidate_threshold %.3f must be in (0, acceptance_threshold]", c.CandidateThreshold)
	case c.MinQueryLength < 1:
		return invalid("min_query_length must be positive")
	case c.MinNameLength < 1:
		return invalid("min_name_length must be positive")
	case c.MaxNameLength < c.MinNameLength:
		return invalid("max_name_length %d is below min_name_length %d", c.MaxNameLength, c.MinNameLength)
	case c.NotFoundSuggestions < 0 || c.AmbiguousSuggestions < 0:
		return invalid("suggestion limits must not be negative")
	case c.BatchConcurrency < 1:
		return invalid("batch_concurrency must be positive")
	case c.CacheSize < 1:
		return invalid("cache_size must be positive")
	}
	return nil
}
