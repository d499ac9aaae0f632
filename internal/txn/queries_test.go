package txn

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/wholesale/internal/engine"
	"github.com/roach88/wholesale/internal/row"
	"github.com/roach88/wholesale/internal/script"
)

// placeQueryOrders creates three orders in district (1,1):
//
//	3001 customer 1: item 10 ×5
//	3002 customer 2: item 20 ×2
//	3003 customer 1: item 30 ×4, item 10 ×4
func placeQueryOrders(t *testing.T, env *testEnv) {
	t.Helper()
	for _, rec := range []script.Record{
		newOrder(1, 1, 1, [3]int64{10, 1, 5}),
		newOrder(2, 1, 1, [3]int64{20, 1, 2}),
		newOrder(1, 1, 1, [3]int64{30, 1, 4}, [3]int64{10, 1, 4}),
	} {
		_, err := env.exec(t, rec)
		require.NoError(t, err)
	}
}

func TestOrderStatusHandler_ReportsLastOrder(t *testing.T) {
	env := newTestEnv(t)
	placeQueryOrders(t, env)

	res, err := env.exec(t, record(script.OrderStatus, "1", "1", "1"))
	require.NoError(t, err)
	os := res.(*OrderStatusResult)

	assert.Equal(t, "BARBARBAR", os.Name.Last)
	require.NotNil(t, os.Order)
	assert.Equal(t, int64(firstOrderID+2), os.Order.OrderID)
	assert.Nil(t, os.Order.Carrier)
	require.Len(t, os.Order.Lines, 2)
	assert.Equal(t, int64(30), os.Order.Lines[0].ItemID)
	assert.Equal(t, "5.00", os.Order.Lines[0].Amount.String())
	assert.Nil(t, os.Order.Lines[0].DeliveryDate)

	var buf bytes.Buffer
	require.NoError(t, os.Render(&buf))
	assert.Contains(t, buf.String(), "Last Order: 3003 | Entry Date: 2024-01-02T03:04:05Z | Carrier: null")
}

func TestOrderStatusHandler_CustomerWithoutOrders(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.exec(t, record(script.OrderStatus, "1", "2", "1"))
	require.NoError(t, err)
	assert.Nil(t, res.(*OrderStatusResult).Order)

	_, err = env.exec(t, record(script.OrderStatus, "1", "2", "9"))
	assert.True(t, engine.IsNotFound(err))
}

func TestStockLevelHandler_CountsLowStock(t *testing.T) {
	env := newTestEnv(t)
	placeQueryOrders(t, env)
	// Stock after the orders: item 10 = 41, item 20 = 106, item 30 = 16.

	tests := []struct {
		threshold, last string
		want            int
	}{
		{"20", "3", 1},
		{"50", "3", 2},
		{"200", "1", 2},
		{"10", "3", 0},
		{"50", "100", 2},
	}
	for _, tt := range tests {
		res, err := env.exec(t, record(script.StockLevel, "1", "1", tt.threshold, tt.last))
		require.NoError(t, err)
		assert.Equal(t, tt.want, res.(*StockLevelResult).LowStock, "T=%s L=%s", tt.threshold, tt.last)
	}
}

func TestPopularItemHandler(t *testing.T) {
	env := newTestEnv(t)
	placeQueryOrders(t, env)

	res, err := env.exec(t, record(script.PopularItem, "1", "1", "3"))
	require.NoError(t, err)
	pr := res.(*PopularItemResult)

	require.Len(t, pr.Orders, 3)
	assert.Equal(t, []PopularLine{{ItemID: 10, Name: "item-10", Quantity: 5}}, pr.Orders[0].Items)
	assert.Equal(t, []PopularLine{
		{ItemID: 30, Name: "item-30", Quantity: 4},
		{ItemID: 10, Name: "item-10", Quantity: 4},
	}, pr.Orders[2].Items, "ties keep line order")

	require.Len(t, pr.Shares, 3)
	assert.Equal(t, int64(10), pr.Shares[0].ItemID)
	assert.Equal(t, "66.67", pr.Shares[0].Percent.String())
	assert.Equal(t, "33.33", pr.Shares[1].Percent.String())

	var buf bytes.Buffer
	require.NoError(t, pr.Render(&buf))
	assert.Contains(t, buf.String(), "Item: item-10 | Orders: 66.67%")
}

func TestTopBalanceHandler_RanksWithKeyOrderTies(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.exec(t, record(script.TopBalance))
	require.NoError(t, err)
	tb := res.(*TopBalanceResult)

	require.Len(t, tb.Customers, 4)
	got := make([]CustomerRef, len(tb.Customers))
	for i, c := range tb.Customers {
		got[i] = c.Customer
	}
	assert.Equal(t, []CustomerRef{
		{Warehouse: 1, District: 1, Customer: 2},
		{Warehouse: 2, District: 1, Customer: 1},
		{Warehouse: 1, District: 2, Customer: 1},
		{Warehouse: 1, District: 1, Customer: 1},
	}, got)
	assert.Equal(t, "W2", tb.Customers[1].WarehouseName)
	assert.Equal(t, "D2", tb.Customers[2].DistrictName)
}

func TestTopBalanceHandler_KeepsTen(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for c := int64(10); c < 22; c++ {
		require.NoError(t, env.store.Write(ctx, CustomerKey(1, 3, c), row.Fields{
			CFirst: row.String("F"), CMiddle: row.String("M"), CLast: row.String("L" + itoa(c)),
			CBalance: row.DecimalFromInt(1000 + c),
		}))
	}

	res, err := env.exec(t, record(script.TopBalance))
	require.NoError(t, err)
	tb := res.(*TopBalanceResult)

	require.Len(t, tb.Customers, TopBalanceLimit)
	assert.Equal(t, int64(21), tb.Customers[0].Customer.Customer)
	assert.Equal(t, int64(12), tb.Customers[9].Customer.Customer)
}

func TestRelatedCustomerHandler(t *testing.T) {
	env := newTestEnv(t)
	placeQueryOrders(t, env)

	// Shares only item 10 with customer (1,1,1).
	_, err := env.exec(t, newOrder(1, 2, 1, [3]int64{10, 2, 1}))
	require.NoError(t, err)

	res, err := env.exec(t, record(script.RelatedCustomer, "1", "1", "1"))
	require.NoError(t, err)
	assert.Empty(t, res.(*RelatedCustomerResult).Related)

	// Shares items 10 and 30 with order 3003.
	_, err = env.exec(t, newOrder(1, 2, 1, [3]int64{10, 2, 1}, [3]int64{30, 2, 1}))
	require.NoError(t, err)

	res, err = env.exec(t, record(script.RelatedCustomer, "1", "1", "1"))
	require.NoError(t, err)
	assert.Equal(t, []CustomerRef{{Warehouse: 2, District: 1, Customer: 1}}, res.(*RelatedCustomerResult).Related)

	// Customers of the same warehouse are never related.
	res, err = env.exec(t, record(script.RelatedCustomer, "1", "1", "2"))
	require.NoError(t, err)
	assert.Empty(t, res.(*RelatedCustomerResult).Related)
}
