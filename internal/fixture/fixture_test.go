package fixture

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/wholesale/internal/kv"
	"github.com/roach88/wholesale/internal/row"
)

const sample = `
rows:
  - table: warehouse
    key: [1]
    fields:
      w_name: Main
      w_tax: "0.0500"
      w_ytd: "300000.00"
  - table: customer
    key: [1, 1, 7]
    fields:
      c_last: BARBARBAR
      c_since: 2024-01-02T03:04:05Z
      c_payment_cnt: 1
      c_good: true
  - table: order
    key: [1, 1, 3000]
    fields:
      o_carrier_id: ~
`

func TestParseAndApply(t *testing.T) {
	f, err := Parse([]byte(sample))
	require.NoError(t, err)
	require.Len(t, f.Rows, 3)

	s := kv.NewMemStore()
	n, err := f.Apply(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, s.Len())

	w, err := s.ReadRow(context.Background(), row.NewKey("warehouse", 1))
	require.NoError(t, err)
	tax, err := w.Decimal("w_tax")
	require.NoError(t, err)
	assert.Equal(t, "0.0500", tax.String())

	c, err := s.ReadRow(context.Background(), row.NewKey("customer", 1, 1, 7))
	require.NoError(t, err)
	since, ok, err := c.Time("c_since")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), since)
	assert.Equal(t, row.Int(1), c["c_payment_cnt"])
	assert.Equal(t, row.Bool(true), c["c_good"])

	o, err := s.ReadRow(context.Background(), row.NewKey("order", 1, 1, 3000))
	require.NoError(t, err)
	assert.True(t, o.IsNull("o_carrier_id"))
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown key", "rowz: []\n", "rowz"},
		{"missing key", "rows:\n  - table: item\n    fields: {i_name: x}\n", "key is required"},
		{"negative key", "rows:\n  - table: item\n    key: [-1]\n", "negative"},
		{"float value", "rows:\n  - table: item\n    key: [1]\n    fields: {i_price: 1.5}\n", "floats are not allowed"},
		{"nested value", "rows:\n  - table: item\n    key: [1]\n    fields: {i_data: [1, 2]}\n", "only scalar values"},
		{"bad table", "rows:\n  - table: a/b\n    key: [1]\n", "invalid table name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	f, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, f.Rows, 3)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
