package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"
)

//go:embed config.cue
var schemaSource string

// Config is the full runtime configuration. Field names follow the YAML
// keys; durations accept Go duration strings such as "250ms".
type Config struct {
	Store     string          `yaml:"store" json:"store"`
	Database  string          `yaml:"database" json:"database"`
	Cassandra CassandraConfig `yaml:"cassandra" json:"cassandra"`
	Workers   int             `yaml:"workers" json:"workers"`
	Rate      float64         `yaml:"rate" json:"rate"`
	Retry     RetryConfig     `yaml:"retry" json:"retry"`
	Report    ReportConfig    `yaml:"report" json:"report"`
	Log       LogConfig       `yaml:"log" json:"log"`
	Metrics   MetricsConfig   `yaml:"metrics" json:"metrics"`
	Output    OutputConfig    `yaml:"output" json:"output"`
}

// CassandraConfig locates the Cassandra cluster.
type CassandraConfig struct {
	Hosts       []string      `yaml:"hosts" json:"hosts"`
	Keyspace    string        `yaml:"keyspace" json:"keyspace"`
	Consistency string        `yaml:"consistency" json:"consistency"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
}

// RetryConfig tunes the optimistic-update retry loop.
type RetryConfig struct {
	Backoff BackoffConfig `yaml:"backoff" json:"backoff"`
}

// BackoffConfig enables capped exponential waits between conflicting
// attempts. Retries are unbounded either way.
type BackoffConfig struct {
	Enabled bool          `yaml:"enabled" json:"enabled"`
	Initial time.Duration `yaml:"initial" json:"initial"`
	Max     time.Duration `yaml:"max" json:"max"`
}

// ReportConfig controls the end-of-run report.
type ReportConfig struct {
	Style       string    `yaml:"style" json:"style"`
	Percentiles []float64 `yaml:"percentiles" json:"percentiles"`
	RawOutput   string    `yaml:"raw_output" json:"raw_output"`
}

// LogConfig controls diagnostic logging on stderr.
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// OutputConfig selects the per-transaction block format.
type OutputConfig struct {
	Format string `yaml:"format" json:"format"`
}

// Defaults returns the configuration used when no file is given.
func Defaults() Config {
	return Config{
		Store:    "sqlite",
		Database: "wholesale.db",
		Cassandra: CassandraConfig{
			Hosts:       []string{},
			Keyspace:    "wholesale",
			Consistency: "QUORUM",
			Timeout:     10 * time.Second,
		},
		Workers: runtime.NumCPU(),
		Retry: RetryConfig{Backoff: BackoffConfig{
			Initial: time.Millisecond,
			Max:     100 * time.Millisecond,
		}},
		Report: ReportConfig{
			Style:       "plain",
			Percentiles: []float64{50, 90, 95, 99},
		},
		Log:    LogConfig{Level: "info", Format: "text"},
		Output: OutputConfig{Format: "text"},
	}
}

// Load reads the YAML file at path over Defaults and validates the result.
// An empty path validates and returns the defaults.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := Decode(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("%s: %w", path, err)
		}
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Decode strictly decodes YAML into cfg: unknown keys are errors.
func Decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// Error is a schema violation.
type Error struct {
	Path    string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("invalid config %s (schema %s:%d): %s", e.Path, e.Pos.Filename(), e.Pos.Line(), e.Message)
	}
	return fmt.Sprintf("invalid config %s: %s", e.Path, e.Message)
}

// Validate checks cfg against the embedded CUE schema.
func Validate(cfg Config) error {
	if cfg.Cassandra.Hosts == nil {
		cfg.Cassandra.Hosts = []string{}
	}
	if cfg.Report.Percentiles == nil {
		cfg.Report.Percentiles = []float64{}
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("config.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	v := def.Unify(ctx.Encode(cfg))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(err)
	}
	return nil
}

// formatCUEError reduces a CUE error list to its first error, keeping the
// offending path and schema position.
func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	e := &Error{
		Path:    strings.Join(first.Path(), "."),
		Message: first.Error(),
	}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		e.Pos = positions[0]
	}
	return e
}

// SlogLevel maps Log.Level to a slog level.
func (c Config) SlogLevel() slog.Level {
	switch c.Log.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
