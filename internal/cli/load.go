package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/wholesale/internal/config"
)

// LoadOptions holds flags for the load command.
type LoadOptions struct {
	*RootOptions
	StoreOptions
}

// LoadResult reports what a load wrote.
type LoadResult struct {
	Fixture string `json:"fixture"`
	Store   string `json:"store"`
	Rows    int    `json:"rows"`
}

func (r LoadResult) String() string {
	return fmt.Sprintf("Loaded %d rows from %s into %s store", r.Rows, r.Fixture, r.Store)
}

// NewLoadCommand creates the load command.
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoadOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "load <fixture.yaml>",
		Short: "Seed the row store from a YAML fixture",
		Long: `Seed the configured row store with warehouses, districts, customers,
items and stock from a YAML fixture. Existing rows at the same keys are
overwritten.

Examples:
  wholesale load --db ./wholesale.db ./seed.yaml
  wholesale load --config ./wholesale.yaml ./seed.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(opts, args[0], cmd)
		},
	}

	opts.StoreOptions.addFlags(cmd)

	return cmd
}

func runLoad(opts *LoadOptions, path string, cmd *cobra.Command) error {
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	cfg, err := loadConfig(opts.RootOptions, cmd, func(c *config.Config) { opts.StoreOptions.apply(cmd, c) })
	if err != nil {
		return err
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg, opts.Verbose)

	st, closeStore, err := openStore(cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open store", err)
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Error("error closing store", "error", err)
		}
	}()

	n, err := seedFixture(cmd.Context(), st, path)
	if err != nil {
		_ = out.Error("E_LOAD", err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load fixture", err)
	}
	logger.Debug("fixture loaded", slog.String("path", path), slog.Int("rows", n))

	return out.Success(LoadResult{Fixture: path, Store: cfg.Store, Rows: n})
}
