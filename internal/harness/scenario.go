package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/wholesale/internal/engine"
	"github.com/roach88/wholesale/internal/fixture"
)

// Scenario defines one end-to-end run.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Fixture is an optional seed fixture path. Relative paths are
	// resolved against the scenario file's directory.
	Fixture string `yaml:"fixture,omitempty"`

	// Rows are seed rows applied after Fixture.
	Rows []fixture.Row `yaml:"rows,omitempty"`

	// Script is the command script fed to the driver.
	Script string `yaml:"script"`

	// Format is the per-transaction output format, text by default.
	Format string `yaml:"format,omitempty"`

	// Expect checks the run counters.
	Expect *ExpectClause `yaml:"expect,omitempty"`

	// Assertions validate the final state and output.
	Assertions []Assertion `yaml:"assertions"`

	// RunID fixes the run identifier. Defaults to "test-run-default".
	RunID string `yaml:"run_id,omitempty"`
}

// ExpectClause specifies the expected run counters. Nil fields are not
// checked.
type ExpectClause struct {
	Processed *int64 `yaml:"processed,omitempty"`
	Skipped   *int64 `yaml:"skipped,omitempty"`
	Malformed *int64 `yaml:"malformed,omitempty"`
}

// Assertion validates final state or output.
type Assertion struct {
	// Type specifies the assertion type:
	// - "final_state": the row at Table/Key has every field in Expect
	// - "row_absent": no row exists at Table/Key
	// - "output_contains": the console output contains Text
	Type string `yaml:"type"`

	// Table and Key address a row (final_state, row_absent).
	Table string  `yaml:"table,omitempty"`
	Key   []int64 `yaml:"key,omitempty"`

	// Expect contains expected field values (final_state).
	// Subset match: only listed fields are compared.
	Expect map[string]yaml.Node `yaml:"expect,omitempty"`

	// Text is the expected output fragment (output_contains).
	Text string `yaml:"text,omitempty"`
}

// Assertion type constants.
const (
	AssertFinalState     = "final_state"
	AssertRowAbsent      = "row_absent"
	AssertOutputContains = "output_contains"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Fixture != "" && !filepath.IsAbs(scenario.Fixture) {
		scenario.Fixture = filepath.Join(filepath.Dir(path), scenario.Fixture)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Script == "" {
		return fmt.Errorf("script is required")
	}

	if s.Format != "" && s.Format != engine.FormatText && s.Format != engine.FormatJSON {
		return fmt.Errorf("format must be %q or %q, got %q", engine.FormatText, engine.FormatJSON, s.Format)
	}

	if s.Fixture != "" {
		if _, err := os.Stat(s.Fixture); os.IsNotExist(err) {
			return fmt.Errorf("fixture file not found: %s", s.Fixture)
		}
	}

	seed := fixture.Fixture{Rows: s.Rows}
	if err := seed.Validate(); err != nil {
		return err
	}

	if s.Expect == nil && len(s.Assertions) == 0 {
		return fmt.Errorf("expect or assertions is required")
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertFinalState, AssertRowAbsent:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: %s requires table", index, a.Type)
		}
		if len(a.Key) == 0 {
			return fmt.Errorf("assertions[%d]: %s requires key", index, a.Type)
		}
		if a.Type == AssertFinalState && len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: final_state requires expect", index)
		}
	case AssertOutputContains:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: output_contains requires text", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown type %q", index, a.Type)
	}
	return nil
}
