package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/wholesale/internal/kv"
	"github.com/roach88/wholesale/internal/kv/kvtest"
	"github.com/roach88/wholesale/internal/row"
)

func TestStore_Contract(t *testing.T) {
	kvtest.Run(t, func(t *testing.T) kv.Store { return createTestStore(t) })
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err, "database file was not created")
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()
	key := row.NewKey("warehouse", 1)

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Write(ctx, key, row.Fields{"w_name": row.String("north")}))
	require.NoError(t, s.Close())

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		require.NoError(t, err, "Open() iteration %d", i)
		got, err := s.ReadRow(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, row.String("north"), got["w_name"])
		s.Close()
	}
}

func TestOpen_InMemory(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Write(ctx, row.NewKey("item", 1), row.Fields{"i_name": row.String("widget")}))
	got, err := s.ReadRow(ctx, row.NewKey("item", 1))
	require.NoError(t, err)
	assert.Equal(t, row.String("widget"), got["i_name"])
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)
	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("synchronous", "1"))
	assert.NoError(t, s.verifyPragma("busy_timeout", "5000"))
}

func TestConditionalWrite_NoLostUpdates(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	key := row.NewKey("district", 1, 1)

	require.NoError(t, s.Write(ctx, key, row.Fields{"d_next_o_id": row.Int(1)}))

	const callers = 10
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				cur, err := s.ReadRow(ctx, key)
				if !assert.NoError(t, err) {
					return
				}
				next, _ := cur.Int("d_next_o_id")
				ok, err := s.ConditionalWrite(ctx, key, row.Fields{"d_next_o_id": row.Int(next + 1)}, "d_next_o_id", cur.Get("d_next_o_id"))
				if !assert.NoError(t, err) || ok {
					return
				}
			}
		}()
	}
	wg.Wait()

	got, err := s.ReadRow(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, row.Int(1+callers), got["d_next_o_id"], "exactly one applied write per caller")
}

func TestWrite_RejectsInvalidKey(t *testing.T) {
	s := createTestStore(t)
	err := s.Write(context.Background(), row.NewKey("bad/table", 1), row.Fields{})
	assert.Error(t, err)
}
