package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/biomarker-engine/internal/config"
)

// validConfig returns a defaulted Config with a database configured.
func validConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Database.Host = "localhost"
	cfg.Database.User = "bio"
	config.ApplyDefaults(cfg)
	return cfg
}

func TestConfig_Validate_ValidConfig(t *testing.T) {
	t.Parallel()
	assert.NoError(t, validConfig().Validate())
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		mutate  func(*config.Config)
		wantKey string
	}{
		{"port too low", func(c *config.Config) { c.Server.Port = -1 }, "server.port"},
		{"port too high", func(c *config.Config) { c.Server.Port = 65536 }, "server.port"},
		{"bad mode", func(c *config.Config) { c.Server.Mode = "prod" }, "server.mode"},
		{"bad log level", func(c *config.Config) { c.Log.Level = "trace" }, "log.level"},
		{"bad log format", func(c *config.Config) { c.Log.Format = "xml" }, "log.format"},
		{"bad engine", func(c *config.Config) { c.Engine.CandidateThreshold = 0.99 }, "engine"},
		{"bad source", func(c *config.Config) { c.Reference.Source = "http" }, "reference.source"},
		{"file without path", func(c *config.Config) { c.Reference.Path = "" }, "reference.path"},
		{"minio without object", func(c *config.Config) { c.Reference.Source = "minio" }, "reference.object"},
		{"minio without bucket", func(c *config.Config) {
			c.Reference.Source = "minio"
			c.Reference.Object = "spec.json"
		}, "minio.bucket"},
		{"database user", func(c *config.Config) { c.Database.User = "" }, "database.user"},
		{"database name", func(c *config.Config) { c.Database.DBName = "" }, "database.db_name"},
		{"negative redis db", func(c *config.Config) { c.Redis.DB = -1 }, "redis.db"},
		{"no brokers", func(c *config.Config) { c.Kafka.Brokers = nil }, "kafka.brokers"},
		{"no group", func(c *config.Config) { c.Kafka.GroupID = "" }, "kafka.group_id"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantKey)
		})
	}
}

func TestConfig_Validate_DatabaseOptional(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Database.Host = ""
	cfg.Database.User = ""
	assert.NoError(t, cfg.Validate())
}
