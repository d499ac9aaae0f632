package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/roach88/wholesale/internal/config"
	"github.com/roach88/wholesale/internal/engine"
	"github.com/roach88/wholesale/internal/script"
	"github.com/roach88/wholesale/internal/stats"
	"github.com/roach88/wholesale/internal/txn"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	StoreOptions
	Fixture     string
	Workers     int
	Rate        float64
	ReportStyle string
	MetricsAddr string

	// RunIDs and Clock override the run identifier and wall clock (for
	// testing). Nil selects UUIDv7 run IDs and the system clock.
	RunIDs engine.RunIDGenerator
	Clock  engine.WallClock
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run [script]",
		Short: "Execute a transaction script",
		Long: `Execute a transaction script against the configured row store.

The script is read from the given file, or from stdin when omitted. Every
transaction prints a summary block; a failed transaction is reported as
skipped and the run continues. The end-of-run report lists per-kind
latency percentiles.

Examples:
  wholesale run --db ./wholesale.db ./xact/1.txt
  wholesale run --store memory --fixture ./seed.yaml < ./xact/1.txt
  wholesale run --config ./wholesale.yaml --report-style table --metrics-addr :9102 ./xact/1.txt`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScript(opts, args, cmd)
		},
	}

	opts.StoreOptions.addFlags(cmd)
	cmd.Flags().StringVar(&opts.Fixture, "fixture", "", "seed the store from a YAML fixture before running")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "sub-operation pool size (default: number of CPUs)")
	cmd.Flags().Float64Var(&opts.Rate, "rate", 0, "maximum transactions per second (0 = unlimited)")
	cmd.Flags().StringVar(&opts.ReportStyle, "report-style", "", "end-of-run report style (plain|table|json)")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	return cmd
}

func (o *RunOptions) apply(cmd *cobra.Command, cfg *config.Config) {
	o.StoreOptions.apply(cmd, cfg)
	if cmd.Flags().Changed("workers") {
		cfg.Workers = o.Workers
	}
	if cmd.Flags().Changed("rate") {
		cfg.Rate = o.Rate
	}
	if cmd.Flags().Changed("report-style") {
		cfg.Report.Style = o.ReportStyle
	}
	if cmd.Flags().Changed("metrics-addr") {
		cfg.Metrics.Addr = o.MetricsAddr
	}
}

func runScript(opts *RunOptions, args []string, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions, cmd, func(c *config.Config) { opts.apply(cmd, c) })
	if err != nil {
		return err
	}

	logger := newLogger(cmd.ErrOrStderr(), cfg, opts.Verbose)
	slog.SetDefault(logger)

	var in io.Reader = cmd.InOrStdin()
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open script", err)
		}
		defer f.Close()
		in = f
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("opening store", "store", cfg.Store, "database", cfg.Database)
	st, closeStore, err := openStore(cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open store", err)
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Error("error closing store", "error", err)
		}
	}()

	if opts.Fixture != "" {
		n, err := seedFixture(ctx, st, opts.Fixture)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to seed store", err)
		}
		logger.Info("fixture applied", "path", opts.Fixture, "rows", n)
	}

	var updaterOpts []engine.UpdaterOption
	if cfg.Retry.Backoff.Enabled {
		updaterOpts = append(updaterOpts, engine.WithBackoff(cfg.Retry.Backoff.Initial, cfg.Retry.Backoff.Max))
	}

	var raw *stats.Raw
	aggOpts := []stats.Option{stats.WithPercentiles(cfg.Report.Percentiles...)}
	if cfg.Report.RawOutput != "" {
		raw = stats.NewRaw()
		aggOpts = append(aggOpts, stats.WithRaw(raw))
	}
	agg := stats.NewAggregator(aggOpts...)
	samplers := []engine.Sampler{agg}

	if cfg.Metrics.Addr != "" {
		m := stats.NewMetrics()
		samplers = append(samplers, m)
		updaterOpts = append(updaterOpts, engine.WithConflictObserver(m))
		go func() {
			if err := m.Serve(ctx, cfg.Metrics.Addr); err != nil {
				logger.Error("metrics endpoint failed", "error", err)
			}
		}()
	}

	deps := txn.Deps{
		Store:   st,
		Updater: engine.NewUpdater(st, updaterOpts...),
		Pool:    engine.NewPool(cfg.Workers),
		Clock:   opts.Clock,
	}

	driverOpts := []engine.DriverOption{
		engine.WithOutput(cmd.OutOrStdout()),
		engine.WithFormat(cfg.Output.Format),
		engine.WithSampler(samplers...),
		engine.WithLogger(logger),
	}
	if cfg.Rate > 0 {
		driverOpts = append(driverOpts, engine.WithRateLimit(rate.NewLimiter(rate.Limit(cfg.Rate), 1)))
	}
	if opts.RunIDs != nil {
		driverOpts = append(driverOpts, engine.WithRunIDGenerator(opts.RunIDs))
	}
	if opts.Clock != nil {
		driverOpts = append(driverOpts, engine.WithWallClock(opts.Clock))
	}

	driver, err := engine.NewDriver(txn.Handlers(deps), driverOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create driver", err)
	}

	summary, runErr := driver.Run(ctx, script.NewReader(in))

	// The report covers whatever ran, even when the run was interrupted.
	report := agg.Report(summary)
	if err := report.Render(cmd.OutOrStdout(), cfg.Report.Style); err != nil {
		return WrapExitError(ExitFailure, "failed to write report", err)
	}
	if raw != nil {
		if err := writeRaw(cfg.Report.RawOutput, raw); err != nil {
			return WrapExitError(ExitFailure, "failed to write raw samples", err)
		}
		logger.Info("raw samples written", "path", cfg.Report.RawOutput, "samples", raw.Len())
	}

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			logger.Info("run interrupted", "processed", summary.Processed)
			return nil
		}
		return WrapExitError(ExitFailure, "run aborted", runErr)
	}
	return nil
}

func writeRaw(path string, raw *stats.Raw) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if err := raw.WriteCSV(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
