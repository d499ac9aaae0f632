package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	scenariosDir = "../harness/testdata/scenarios"
	goldenDir    = "../harness/testdata/golden"
)

func TestTestCommand_AllScenariosPass(t *testing.T) {
	out, err := execute(t, "", "test", "--golden-dir", goldenDir, scenariosDir)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ new_order_payment")
	assert.Contains(t, out, "✓ delivery_status")
	assert.Contains(t, out, "✓ failures")
	assert.Contains(t, out, "Test Summary: 3 passed, 0 failed, 3 total")
}

func TestTestCommand_SingleFileWithFilterIgnored(t *testing.T) {
	out, err := execute(t, "", "test", "--golden-dir", goldenDir, "--filter", "nomatch",
		filepath.Join(scenariosDir, "failures.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "1 passed")
}

func TestTestCommand_Filter(t *testing.T) {
	out, err := execute(t, "", "test", "--golden-dir", goldenDir, "--filter", "deliv*", scenariosDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
}

func TestTestCommand_GoldenMismatch(t *testing.T) {
	dir := t.TempDir()
	golden := filepath.Join(dir, "golden")
	require.NoError(t, os.MkdirAll(golden, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(golden, "failures.golden"), []byte("stale\n"), 0644))

	out, err := execute(t, "", "test", "--golden-dir", golden, filepath.Join(scenariosDir, "failures.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ failures")
	assert.Contains(t, out, "does not match")
}

func TestTestCommand_UpdateWritesGolden(t *testing.T) {
	golden := filepath.Join(t.TempDir(), "golden")

	_, err := execute(t, "", "test", "--update", "--golden-dir", golden, filepath.Join(scenariosDir, "delivery_status.yaml"))
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(golden, "delivery_status.golden"))
	require.NoError(t, err)
	want, err := os.ReadFile(filepath.Join(goldenDir, "delivery_status.golden"))
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))
}

func TestTestCommand_FailingScenarioJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wrong.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`name: wrong
description: expects the wrong counters
script: |
  P,1,1,1,5.00
expect:
  processed: 1
  skipped: 0
`), 0644))

	out, err := execute(t, "", "test", "--format", "json", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, 1, resp.Data.Failed)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Contains(t, resp.Data.Scenarios[0].Errors, "expect skipped: want 0, got 1")
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
}

func TestTestCommand_NoScenarios(t *testing.T) {
	out, err := execute(t, "", "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTestCommand_PathNotFound(t *testing.T) {
	_, err := execute(t, "", "test", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenario path not found")
}
