package config

import (
	"time"

	"github.com/turtacn/biomarker-engine/internal/intelligence/normalizer"
)

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultServerHost = "0.0.0.0"
	DefaultServerPort = 8080
	DefaultServerMode = "release"

	DefaultReferenceSource       = "file"
	DefaultReferencePath         = "configs/biomarker-specification.json"
	DefaultReferencePollInterval = time.Minute

	DefaultDBPort         = 5432
	DefaultDBName         = "bioengine"
	DefaultDBMaxOpenConns = 10

	DefaultRedisTTL       = 10 * time.Minute
	DefaultRedisKeyPrefix = "bioengine:"

	DefaultKafkaBroker     = "localhost:9092"
	DefaultKafkaGroupID    = "bioengine-validator"

	DefaultInputTopic      = "bio.exam.extracted"
	DefaultOutputTopic     = "bio.exam.validated"
	DefaultDeadLetterTopic = "bio.exam.deadletter"
	DefaultKafkaMaxRetries = 3

	DefaultMetricsEnabled   = true
	DefaultMetricsNamespace = "bioengine"
	DefaultMetricsPath      = "/metrics"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns a complete configuration with every default applied,
// including the boolean defaults ApplyDefaults cannot tell from "off".
func Default() *Config {
	cfg := &Config{}
	cfg.Metrics.Enabled = DefaultMetricsEnabled
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills every zero-value field in cfg with its default.  Values
// already set, by file or environment, are left alone.  Call it after
// unmarshalling and before Validate.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────────
	if cfg.Server.Host == "" {
		cfg.Server.Host = DefaultServerHost
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Server.MaxBodySize == 0 {
		cfg.Server.MaxBodySize = 4 << 20
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	// ── Engine ────────────────────────────────────────────────────────────────
	// Each field defaults independently so a file may tune one threshold only.
	def := normalizer.DefaultEngineConfig()
	e := &cfg.Engine
	if e.AcceptanceThreshold == 0 {
		e.AcceptanceThreshold = def.AcceptanceThreshold
	}
	if e.CandidateThreshold == 0 {
		e.CandidateThreshold = def.CandidateThreshold
	}
	if e.MinQueryLength == 0 {
		e.MinQueryLength = def.MinQueryLength
	}
	if e.MinNameLength == 0 {
		e.MinNameLength = def.MinNameLength
	}
	if e.MaxNameLength == 0 {
		e.MaxNameLength = def.MaxNameLength
	}
	if e.NotFoundSuggestions == 0 {
		e.NotFoundSuggestions = def.NotFoundSuggestions
	}
	if e.AmbiguousSuggestions == 0 {
		e.AmbiguousSuggestions = def.AmbiguousSuggestions
	}
	if e.BatchConcurrency == 0 {
		e.BatchConcurrency = def.BatchConcurrency
	}
	if e.CacheSize == 0 {
		e.CacheSize = def.CacheSize
	}

	// ── Reference ─────────────────────────────────────────────────────────────
	if cfg.Reference.Source == "" {
		cfg.Reference.Source = DefaultReferenceSource
	}
	if cfg.Reference.Source == "file" && cfg.Reference.Path == "" {
		cfg.Reference.Path = DefaultReferencePath
	}
	if cfg.Reference.PollInterval == 0 {
		cfg.Reference.PollInterval = DefaultReferencePollInterval
	}

	// ── Database ──────────────────────────────────────────────────────────────
	if cfg.Database.Port == 0 {
		cfg.Database.Port = DefaultDBPort
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = DefaultDBName
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = DefaultDBMaxOpenConns
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = cfg.Database.MaxOpenConns / 2
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 30 * time.Minute
	}

	// ── Redis ─────────────────────────────────────────────────────────────────
	// DB 0 is both the default and a valid explicit value, so it is left alone.
	if cfg.Redis.TTL == 0 {
		cfg.Redis.TTL = DefaultRedisTTL
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}
	if cfg.Redis.PoolSize == 0 {
		cfg.Redis.PoolSize = 10
	}
	if cfg.Redis.DialTimeout == 0 {
		cfg.Redis.DialTimeout = 5 * time.Second
	}

	// ── Kafka ─────────────────────────────────────────────────────────────────
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = DefaultKafkaGroupID
	}
	if cfg.Kafka.InputTopic == "" {
		cfg.Kafka.InputTopic = DefaultInputTopic
	}
	if cfg.Kafka.OutputTopic == "" {
		cfg.Kafka.OutputTopic = DefaultOutputTopic
	}
	if cfg.Kafka.DeadLetterTopic == "" {
		cfg.Kafka.DeadLetterTopic = DefaultDeadLetterTopic
	}
	if cfg.Kafka.MaxRetries == 0 {
		cfg.Kafka.MaxRetries = DefaultKafkaMaxRetries
	}
	if cfg.Kafka.RetryBackoff == 0 {
		cfg.Kafka.RetryBackoff = 500 * time.Millisecond
	}
	if cfg.Kafka.BatchTimeout == 0 {
		cfg.Kafka.BatchTimeout = 50 * time.Millisecond
	}

	// ── Metrics ───────────────────────────────────────────────────────────────
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
}
