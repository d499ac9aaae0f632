package harness

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/wholesale/internal/fixture"
	"github.com/roach88/wholesale/internal/kv"
	"github.com/roach88/wholesale/internal/row"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("Assertion failed: %s\n  Expected: %s\n  Actual: %s", e.Type, e.Expected, e.Actual)
}

// AssertionContext provides what assertions inspect.
type AssertionContext struct {
	Store  kv.Store
	Output string
	Ctx    context.Context
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertFinalState:
			err = assertFinalState(actx, a)
		case AssertRowAbsent:
			err = assertRowAbsent(actx, a)
		case AssertOutputContains:
			err = assertOutputContains(actx, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

// assertFinalState checks the row has every expected field (subset match).
func assertFinalState(actx *AssertionContext, a Assertion) error {
	key := row.NewKey(a.Table, a.Key...)
	actual, err := actx.Store.ReadRow(actx.Ctx, key)
	if kv.IsNotFound(err) {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row %s", key),
			Actual:   "row does not exist",
		}
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}

	names := make([]string, 0, len(a.Expect))
	for name := range a.Expect {
		names = append(names, name)
	}
	sort.Strings(names)

	var mismatches []string
	for _, name := range names {
		node := a.Expect[name]
		want, err := fixture.ScalarValue(&node)
		if err != nil {
			return fmt.Errorf("expect %s: %w", name, err)
		}
		if !valuesMatch(actual, name, want) {
			mismatches = append(mismatches, fmt.Sprintf("%s: want %s, got %s", name, describe(want), describe(actual.Get(name))))
		}
	}
	if len(mismatches) > 0 {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row %s to match", key),
			Actual:   strings.Join(mismatches, "; "),
		}
	}
	return nil
}

// valuesMatch compares canonically, then numerically so "5" matches a
// stored "5.00".
func valuesMatch(actual row.Fields, name string, want row.Value) bool {
	if row.Equal(actual.Get(name), want) {
		return true
	}
	w := row.Fields{name: want}
	wd, err := w.Decimal(name)
	if err != nil {
		return false
	}
	ad, err := actual.Decimal(name)
	if err != nil {
		return false
	}
	return ad.Cmp(wd) == 0
}

func describe(v row.Value) string {
	b, err := row.MarshalValue(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// assertRowAbsent checks no row exists at the key.
func assertRowAbsent(actx *AssertionContext, a Assertion) error {
	key := row.NewKey(a.Table, a.Key...)
	_, err := actx.Store.ReadRow(actx.Ctx, key)
	if kv.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}
	return &AssertionError{
		Type:     AssertRowAbsent,
		Expected: fmt.Sprintf("no row at %s", key),
		Actual:   "row exists",
	}
}

// assertOutputContains checks the console output contains the text.
func assertOutputContains(actx *AssertionContext, a Assertion) error {
	if strings.Contains(actx.Output, a.Text) {
		return nil
	}
	return &AssertionError{
		Type:     AssertOutputContains,
		Expected: fmt.Sprintf("output containing %q", a.Text),
		Actual:   "not found in output",
	}
}
