package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/roach88/wholesale/internal/script"
)

// Output formats for per-transaction blocks.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// blockRule frames each per-transaction text block.
const blockRule = "======================================================================"

// Result is what a handler produces: a kind-specific summary that renders
// itself as text and marshals itself as JSON.
type Result interface {
	Render(w io.Writer) error
}

// Handler executes one transaction kind. Handlers are created once at
// startup, hold only shared handles (store, updater, pool, clock) and keep
// no state between calls. Concurrency happens only inside Execute.
type Handler interface {
	Kind() script.Kind
	Execute(ctx context.Context, rec script.Record) (Result, error)
}

// Sampler receives one latency sample per executed transaction, including
// failed ones. Samplers are called only from the dispatch goroutine.
type Sampler interface {
	Observe(kind script.Kind, elapsed time.Duration, err error)
}

// Summary is the run state the dispatch loop owns and returns.
type Summary struct {
	RunID string

	// Processed counts records dispatched to a handler.
	Processed int64

	// Skipped counts processed records whose handler failed.
	Skipped int64

	// Malformed counts records that were never dispatched: unknown tags,
	// bad parameters, kinds without a handler.
	Malformed int64

	Started time.Time
	Elapsed time.Duration
}

// Driver is the script dispatcher.
//
// Records are processed strictly one at a time in input order; record N+1
// is not read until record N's handler has returned. A failing transaction
// is logged, counted as skipped and the run continues.
type Driver struct {
	handlers map[script.Kind]Handler
	out      io.Writer
	format   string
	limiter  *rate.Limiter
	samplers []Sampler
	clock    WallClock
	seq      *Clock
	runIDs   RunIDGenerator
	logger   *slog.Logger
}

// DriverOption configures a Driver.
type DriverOption func(*Driver)

// WithOutput sets where per-transaction blocks are written (default io.Discard).
func WithOutput(w io.Writer) DriverOption {
	return func(d *Driver) { d.out = w }
}

// WithFormat selects FormatText (default) or FormatJSON blocks.
func WithFormat(format string) DriverOption {
	return func(d *Driver) { d.format = format }
}

// WithRateLimit throttles dispatch to the limiter's rate.
func WithRateLimit(l *rate.Limiter) DriverOption {
	return func(d *Driver) { d.limiter = l }
}

// WithSampler adds latency samplers.
func WithSampler(s ...Sampler) DriverOption {
	return func(d *Driver) { d.samplers = append(d.samplers, s...) }
}

// WithWallClock overrides the clock used for latency measurement.
func WithWallClock(c WallClock) DriverOption {
	return func(d *Driver) { d.clock = c }
}

// WithRunIDGenerator overrides the run ID source (default UUIDv7).
func WithRunIDGenerator(g RunIDGenerator) DriverOption {
	return func(d *Driver) { d.runIDs = g }
}

// WithLogger overrides slog.Default().
func WithLogger(l *slog.Logger) DriverOption {
	return func(d *Driver) { d.logger = l }
}

// NewDriver creates a Driver dispatching to handlers by kind.
// Two handlers for the same kind are a configuration error.
func NewDriver(handlers []Handler, opts ...DriverOption) (*Driver, error) {
	d := &Driver{
		handlers: make(map[script.Kind]Handler, len(handlers)),
		out:      io.Discard,
		format:   FormatText,
		clock:    SystemClock{},
		seq:      NewClock(),
		runIDs:   UUIDv7Generator{},
		logger:   slog.Default(),
	}
	for _, h := range handlers {
		if _, dup := d.handlers[h.Kind()]; dup {
			return nil, fmt.Errorf("duplicate handler for kind %s", h.Kind())
		}
		d.handlers[h.Kind()] = h
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.format != FormatText && d.format != FormatJSON {
		return nil, fmt.Errorf("invalid output format %q", d.format)
	}
	return d, nil
}

// Run dispatches every record from r and returns the run summary.
//
// Malformed records are logged and counted but never executed. Handler
// failures are logged, rendered as skipped and counted. Run returns an
// error only when the script cannot be read, output cannot be written or
// ctx is cancelled; the summary is valid in every case.
func (d *Driver) Run(ctx context.Context, r *script.Reader) (Summary, error) {
	sum := Summary{RunID: d.runIDs.Generate(), Started: d.clock.Now()}
	d.logger.Info("run starting", "run_id", sum.RunID)

	err := d.loop(ctx, r, &sum)
	sum.Elapsed = d.clock.Now().Sub(sum.Started)

	d.logger.Info("run finished",
		"run_id", sum.RunID,
		"processed", sum.Processed,
		"skipped", sum.Skipped,
		"malformed", sum.Malformed,
		"elapsed", sum.Elapsed,
	)
	return sum, err
}

func (d *Driver) loop(ctx context.Context, r *script.Reader, sum *Summary) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		var me *script.MalformedError
		if errors.As(err, &me) {
			sum.Malformed++
			d.logger.Warn("skipping malformed record",
				"line", me.Line,
				"tag", me.Tag,
				"reason", me.Reason,
			)
			continue
		}
		if err != nil {
			return err
		}

		h, ok := d.handlers[rec.Kind]
		if !ok {
			sum.Malformed++
			d.logger.Warn("skipping record without handler",
				"line", rec.Line,
				"kind", rec.Kind.String(),
				"code", ErrCodeUnknownKind,
			)
			continue
		}

		if err := d.dispatch(ctx, h, rec, sum); err != nil {
			return err
		}
	}
}

// dispatch executes one record and emits its block.
func (d *Driver) dispatch(ctx context.Context, h Handler, rec script.Record, sum *Summary) error {
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	sum.Processed++
	seq := d.seq.Next()

	start := d.clock.Now()
	res, err := execute(ctx, h, rec)
	elapsed := d.clock.Now().Sub(start)

	if err != nil {
		sum.Skipped++
		d.logger.Error("transaction skipped",
			"seq", seq,
			"kind", rec.Kind.String(),
			"line", rec.Line,
			"code", CodeOf(err),
			"error", err,
		)
	}
	for _, s := range d.samplers {
		s.Observe(rec.Kind, elapsed, err)
	}

	if err := d.emit(seq, rec.Kind, elapsed, res, err); err != nil {
		return fmt.Errorf("write transaction %d output: %w", seq, err)
	}
	return nil
}

// execute runs the handler, converting a panic into a failure so one bad
// transaction cannot end the run.
func execute(ctx context.Context, h Handler, rec script.Record) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("handler %s panicked: %v", rec.Kind, r)
		}
	}()
	return h.Execute(ctx, rec)
}

// jsonBlock is the JSON form of one transaction's output.
type jsonBlock struct {
	Seq       int64      `json:"seq"`
	Kind      string     `json:"kind"`
	Type      string     `json:"type"`
	ElapsedMS int64      `json:"elapsed_ms"`
	Status    string     `json:"status"`
	Result    Result     `json:"result,omitempty"`
	Error     *jsonError `json:"error,omitempty"`
}

type jsonError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func (d *Driver) emit(seq int64, kind script.Kind, elapsed time.Duration, res Result, txErr error) error {
	if d.format == FormatJSON {
		block := jsonBlock{
			Seq:       seq,
			Kind:      kind.Tag(),
			Type:      kind.String(),
			ElapsedMS: elapsed.Milliseconds(),
			Status:    "ok",
			Result:    res,
		}
		if txErr != nil {
			block.Status = "skipped"
			block.Result = nil
			block.Error = &jsonError{Code: CodeOf(txErr), Message: txErr.Error()}
		}
		return json.NewEncoder(d.out).Encode(block)
	}

	if _, err := fmt.Fprintf(d.out, "%s\nTransaction ID: %d | Type: %s\n", blockRule, seq, kind); err != nil {
		return err
	}
	if txErr != nil {
		if _, err := fmt.Fprintf(d.out, "Error: %v\nTransaction Skipped!\n", txErr); err != nil {
			return err
		}
	} else if res != nil {
		if err := res.Render(d.out); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(d.out, "Time taken: %d ms\n%s\n", elapsed.Milliseconds(), blockRule)
	return err
}
