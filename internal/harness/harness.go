package harness

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/wholesale/internal/engine"
	"github.com/roach88/wholesale/internal/fixture"
	"github.com/roach88/wholesale/internal/kv"
	"github.com/roach88/wholesale/internal/script"
	"github.com/roach88/wholesale/internal/store"
	"github.com/roach88/wholesale/internal/testutil"
	"github.com/roach88/wholesale/internal/txn"
)

// poolSize bounds fan-out inside scenarios.
const poolSize = 4

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Deterministic helpers ensure reproducible results.
//
// Execution flow:
// 1. Create fresh in-memory database
// 2. Apply the fixture and inline seed rows
// 3. Run the script through the driver with every handler registered
// 4. Check the expected counters and evaluate assertions
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	if err := seed(ctx, st, scenario); err != nil {
		return nil, fmt.Errorf("failed to seed store: %w", err)
	}

	deps := txn.Deps{
		Store:   st,
		Updater: engine.NewUpdater(st),
		Pool:    engine.NewPool(poolSize),
		Clock:   testutil.NewFixedClock(),
	}
	format := scenario.Format
	if format == "" {
		format = engine.FormatText
	}

	var out bytes.Buffer
	driver, err := engine.NewDriver(txn.Handlers(deps),
		engine.WithOutput(&out),
		engine.WithFormat(format),
		engine.WithWallClock(testutil.NewDeterministicClock(time.Millisecond)),
		engine.WithRunIDGenerator(testutil.NewFixedRunID(scenario.RunID)),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create driver: %w", err)
	}

	summary, err := driver.Run(ctx, script.NewReader(strings.NewReader(scenario.Script)))
	if err != nil {
		return nil, fmt.Errorf("failed to run script: %w", err)
	}

	result := NewResult()
	result.Summary = summary
	result.Output = out.String()

	checkCounters(scenario.Expect, summary, result)

	actx := &AssertionContext{
		Store:  st,
		Output: result.Output,
		Ctx:    ctx,
	}
	for _, msg := range EvaluateAssertions(scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

// seed applies the scenario's fixture file, then its inline rows.
func seed(ctx context.Context, s kv.Store, scenario *Scenario) error {
	if scenario.Fixture != "" {
		f, err := fixture.Load(scenario.Fixture)
		if err != nil {
			return err
		}
		if _, err := f.Apply(ctx, s); err != nil {
			return err
		}
	}
	inline := fixture.Fixture{Rows: scenario.Rows}
	_, err := inline.Apply(ctx, s)
	return err
}

func checkCounters(expect *ExpectClause, got engine.Summary, result *Result) {
	if expect == nil {
		return
	}
	check := func(name string, want *int64, actual int64) {
		if want != nil && *want != actual {
			result.AddError(fmt.Sprintf("expect %s: want %d, got %d", name, *want, actual))
		}
	}
	check("processed", expect.Processed, got.Processed)
	check("skipped", expect.Skipped, got.Skipped)
	check("malformed", expect.Malformed, got.Malformed)
}
