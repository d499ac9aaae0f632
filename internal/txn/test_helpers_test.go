package txn

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/wholesale/internal/engine"
	"github.com/roach88/wholesale/internal/kv"
	"github.com/roach88/wholesale/internal/row"
	"github.com/roach88/wholesale/internal/script"
	"github.com/roach88/wholesale/internal/testutil"
)

// firstOrderID is the next-order counter every seeded district starts at.
const firstOrderID = 3001

// testEnv is a seeded in-memory store with one handler per kind.
type testEnv struct {
	store    *kv.MemStore
	handlers map[script.Kind]engine.Handler
}

// newTestEnv seeds two warehouses:
//
//	warehouse 1: districts 1..10, customers (1,1,1) (1,1,2) (1,2,1)
//	warehouse 2: district 1, customer (2,1,1)
//	items 10 (10.00), 20 (2.50), 30 (1.25)
//	stock (1,10)=50 (1,20)=8 (1,30)=20 (2,10)=30 (2,30)=40
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	s := kv.NewMemStore()
	seedRows(t, s)

	deps := Deps{
		Store:   s,
		Updater: engine.NewUpdater(s),
		Pool:    engine.NewPool(4),
		Clock:   testutil.NewFixedClock(),
	}
	env := &testEnv{store: s, handlers: make(map[script.Kind]engine.Handler)}
	for _, h := range Handlers(deps) {
		env.handlers[h.Kind()] = h
	}
	return env
}

func seedRows(t *testing.T, s kv.Store) {
	t.Helper()
	ctx := context.Background()
	put := func(key row.Key, f row.Fields) {
		require.NoError(t, s.Write(ctx, key, f))
	}

	for w, tax := range map[int64]string{1: "0.05", 2: "0.07"} {
		put(WarehouseKey(w), row.Fields{
			WName: row.String("W" + strconv.FormatInt(w, 10)), WStreet1: row.String("1 Main"), WStreet2: row.String("Unit 2"),
			WCity: row.String("Springfield"), WState: row.String("IL"), WZip: row.String("62701"),
			WTax: row.MustDecimal(tax), WYTD: row.MustDecimal("300000.00"),
		})
	}
	districts := []struct{ w, d int64 }{{2, 1}}
	for d := int64(1); d <= DistrictsPerWarehouse; d++ {
		districts = append(districts, struct{ w, d int64 }{1, d})
	}
	for _, wd := range districts {
		put(DistrictKey(wd.w, wd.d), row.Fields{
			DName: row.String("D" + strconv.FormatInt(wd.d, 10)), DStreet1: row.String("2 Elm"), DStreet2: row.String(""),
			DCity: row.String("Shelbyville"), DState: row.String("IL"), DZip: row.String("62565"),
			DTax: row.MustDecimal("0.10"), DYTD: row.MustDecimal("30000.00"), DNextOrder: row.Int(firstOrderID),
		})
	}
	customers := []struct {
		w, d, c int64
		last    string
		balance string
	}{
		{1, 1, 1, "BARBARBAR", "-10.00"},
		{1, 1, 2, "OUGHTPRI", "250.00"},
		{1, 2, 1, "ABLEABLE", "99.50"},
		{2, 1, 1, "CALLYCALLY", "250.00"},
	}
	for _, c := range customers {
		put(CustomerKey(c.w, c.d, c.c), row.Fields{
			CFirst: row.String("First"), CMiddle: row.String("OE"), CLast: row.String(c.last),
			CStreet1: row.String("3 Oak"), CStreet2: row.String(""), CCity: row.String("Ogdenville"),
			CState: row.String("IL"), CZip: row.String("61000"), CPhone: row.String("555-0100"),
			CSince: row.TimeValue(testutil.Epoch), CCredit: row.String("GC"), CCreditLim: row.MustDecimal("50000.00"),
			CDiscount: row.MustDecimal("0.1"), CBalance: row.MustDecimal(c.balance),
			CYTDPayment: row.MustDecimal("10.00"), CPaymentCnt: row.Int(1), CDeliveryCnt: row.Int(0),
			CData: row.String(""),
		})
	}
	for i, price := range map[int64]string{10: "10.00", 20: "2.50", 30: "1.25"} {
		put(ItemKey(i), row.Fields{
			IName: row.String("item-" + strconv.FormatInt(i, 10)), IPrice: row.MustDecimal(price),
			IImage: row.Int(i), IData: row.String(""),
		})
	}
	stock := []struct{ w, i, q int64 }{{1, 10, 50}, {1, 20, 8}, {1, 30, 20}, {2, 10, 30}, {2, 30, 40}}
	for _, st := range stock {
		put(StockKey(st.w, st.i), row.Fields{
			SQuantity: row.Int(st.q), SYTD: row.MustDecimal("0"), SOrderCnt: row.Int(0),
			SRemoteCnt: row.Int(0), SData: row.String(""),
		})
	}
}

// exec runs one record through the handler for its kind.
func (e *testEnv) exec(t *testing.T, rec script.Record) (engine.Result, error) {
	t.Helper()
	h, ok := e.handlers[rec.Kind]
	require.True(t, ok, "no handler for %s", rec.Kind)
	return h.Execute(context.Background(), rec)
}

// read returns the row at key, failing the test if it is missing.
func (e *testEnv) read(t *testing.T, key row.Key) row.Fields {
	t.Helper()
	f, err := e.store.ReadRow(context.Background(), key)
	require.NoError(t, err)
	return f
}

func (e *testEnv) readInt(t *testing.T, key row.Key, field string) int64 {
	t.Helper()
	n, err := e.read(t, key).Int(field)
	require.NoError(t, err)
	return n
}

func (e *testEnv) readDecimal(t *testing.T, key row.Key, field string) string {
	t.Helper()
	d, err := e.read(t, key).Decimal(field)
	require.NoError(t, err)
	return d.String()
}

// newOrder builds a NewOrder record; each line is {item, supplier, qty}.
func newOrder(c, w, d int64, lines ...[3]int64) script.Record {
	rec := script.Record{
		Kind:   script.NewOrder,
		Params: []string{itoa(c), itoa(w), itoa(d), itoa(int64(len(lines)))},
	}
	for _, l := range lines {
		rec.Lines = append(rec.Lines, []string{itoa(l[0]), itoa(l[1]), itoa(l[2])})
	}
	return rec
}

func record(kind script.Kind, params ...string) script.Record {
	return script.Record{Kind: kind, Params: params}
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }
