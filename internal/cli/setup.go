package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/wholesale/internal/cassandra"
	"github.com/roach88/wholesale/internal/config"
	"github.com/roach88/wholesale/internal/fixture"
	"github.com/roach88/wholesale/internal/kv"
	"github.com/roach88/wholesale/internal/store"
)

// StoreOptions are the store-selection flags shared by run and load.
type StoreOptions struct {
	Store    string
	Database string
}

func (o *StoreOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Store, "store", "", "row store backend (sqlite|memory|cassandra)")
	cmd.Flags().StringVar(&o.Database, "db", "", "path to SQLite database")
}

// apply copies explicitly set flags over cfg.
func (o *StoreOptions) apply(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("store") {
		cfg.Store = o.Store
	}
	if cmd.Flags().Changed("db") {
		cfg.Database = o.Database
	}
}

// loadConfig reads the --config file, lets override adjust the result and
// validates the final configuration.
func loadConfig(root *RootOptions, cmd *cobra.Command, override func(*config.Config)) (config.Config, error) {
	cfg := config.Defaults()
	if root.Config != "" {
		loaded, err := config.Load(root.Config)
		if err != nil {
			return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
		}
		cfg = loaded
	}
	if cmd.Flags().Changed("format") {
		cfg.Output.Format = root.Format
	}
	if override != nil {
		override(&cfg)
	}
	if err := config.Validate(cfg); err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	return cfg, nil
}

// newLogger builds the diagnostic logger. --verbose forces debug level.
func newLogger(w io.Writer, cfg config.Config, verbose bool) *slog.Logger {
	level := cfg.SlogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	hopts := &slog.HandlerOptions{Level: level}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, hopts))
	}
	return slog.New(slog.NewTextHandler(w, hopts))
}

// openStore opens the configured backend. The returned close function is
// never nil.
func openStore(cfg config.Config) (kv.Store, func() error, error) {
	switch cfg.Store {
	case "memory":
		return kv.NewMemStore(), func() error { return nil }, nil
	case "cassandra":
		s, err := cassandra.Open(cassandra.Options{
			Hosts:       cfg.Cassandra.Hosts,
			Keyspace:    cfg.Cassandra.Keyspace,
			Consistency: cfg.Cassandra.Consistency,
			Timeout:     cfg.Cassandra.Timeout,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		s, err := store.Open(cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
}

// seedFixture applies the fixture at path to s.
func seedFixture(ctx context.Context, s kv.Store, path string) (int, error) {
	f, err := fixture.Load(path)
	if err != nil {
		return 0, err
	}
	n, err := f.Apply(ctx, s)
	if err != nil {
		return n, fmt.Errorf("apply fixture: %w", err)
	}
	return n, nil
}
