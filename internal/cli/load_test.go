package cli

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/wholesale/internal/row"
	"github.com/roach88/wholesale/internal/store"
)

func TestLoadCommand_SeedsSQLite(t *testing.T) {
	db := filepath.Join(t.TempDir(), "seed.db")

	out, err := execute(t, "", "load", "--db", db, smallFixture)
	require.NoError(t, err)
	assert.Equal(t, "Loaded 7 rows from "+smallFixture+" into sqlite store\n", out)

	s, err := store.Open(db)
	require.NoError(t, err)
	defer s.Close()

	stock, err := s.ReadRow(context.Background(), row.NewKey("stock", 1, 20))
	require.NoError(t, err)
	q, err := stock.Int("s_quantity")
	require.NoError(t, err)
	assert.Equal(t, int64(8), q)
}

func TestLoadCommand_JSON(t *testing.T) {
	out, err := execute(t, "", "load", "--store", "memory", "--format", "json", smallFixture)
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   LoadResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, LoadResult{Fixture: smallFixture, Store: "memory", Rows: 7}, resp.Data)
}

func TestLoadCommand_InvalidFixture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rows:\n  - table: item\n    fields: {i_name: x}\n"), 0644))

	out, err := execute(t, "", "load", "--store", "memory", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E_LOAD]")
	assert.Contains(t, out, "key is required")
}

func TestLoadCommand_MissingArg(t *testing.T) {
	_, err := execute(t, "", "load")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}
