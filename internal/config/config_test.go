package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wholesale.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaults_Validate(t *testing.T) {
	require.NoError(t, Validate(Defaults()))
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
store: memory
workers: 3
rate: 250
retry:
  backoff:
    enabled: true
    initial: 2ms
    max: 50ms
report:
  style: table
  percentiles: [50, 99.9]
log:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, 250.0, cfg.Rate)
	assert.True(t, cfg.Retry.Backoff.Enabled)
	assert.Equal(t, 2*time.Millisecond, cfg.Retry.Backoff.Initial)
	assert.Equal(t, 50*time.Millisecond, cfg.Retry.Backoff.Max)
	assert.Equal(t, []float64{50, 99.9}, cfg.Report.Percentiles)
	assert.Equal(t, "wholesale.db", cfg.Database, "unset keys keep their default")
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_UnknownKey(t *testing.T) {
	path := writeConfig(t, "store: memory\nworkerz: 3\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workerz")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate_Violations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		path   string
	}{
		{"unknown store", func(c *Config) { c.Store = "postgres" }, "store"},
		{"zero workers", func(c *Config) { c.Workers = 0 }, "workers"},
		{"negative rate", func(c *Config) { c.Rate = -1 }, "rate"},
		{"bad report style", func(c *Config) { c.Report.Style = "xml" }, "report.style"},
		{"percentile above 100", func(c *Config) { c.Report.Percentiles = []float64{101} }, "report.percentiles.0"},
		{"bad log level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
		{"bad output format", func(c *Config) { c.Output.Format = "yaml" }, "output.format"},
		{"cassandra without hosts", func(c *Config) { c.Store = "cassandra" }, "cassandra.hosts"},
		{"sqlite without database", func(c *Config) { c.Database = "" }, "database"},
		{"backoff max below initial", func(c *Config) { c.Retry.Backoff.Max = 0 }, "retry.backoff.max"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)

			err := Validate(cfg)
			require.Error(t, err)
			var ce *Error
			require.ErrorAs(t, err, &ce)
			assert.Contains(t, ce.Path, tt.path)
		})
	}
}

func TestValidate_CassandraWithHosts(t *testing.T) {
	cfg := Defaults()
	cfg.Store = "cassandra"
	cfg.Cassandra.Hosts = []string{"127.0.0.1"}
	assert.NoError(t, Validate(cfg))
}

func TestConfig_SlogLevel(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, "INFO", cfg.SlogLevel().String())
	cfg.Log.Level = "debug"
	assert.Equal(t, "DEBUG", cfg.SlogLevel().String())
}
