package txn

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/roach88/wholesale/internal/engine"
	"github.com/roach88/wholesale/internal/row"
	"github.com/roach88/wholesale/internal/script"
)

// Stock replenishment rule applied when an order would leave a stock row
// short.
const (
	ReplenishThreshold = 10
	ReplenishAmount    = 100
)

// Replenish returns the stock quantity to persist after ordering ordered
// units from a row holding quantity: the plain difference, topped up by
// ReplenishAmount when it falls below ReplenishThreshold.
func Replenish(quantity, ordered int64) int64 {
	adjusted := quantity - ordered
	if adjusted < ReplenishThreshold {
		adjusted += ReplenishAmount
	}
	return adjusted
}

// OrderLineItem is one requested line of a NewOrder record.
type OrderLineItem struct {
	ItemID          int64
	SupplyWarehouse int64
	Quantity        int64
}

// AllLocal reports whether every line is supplied by the home warehouse.
// An order without lines is all-local.
func AllLocal(home int64, lines []OrderLineItem) bool {
	for _, l := range lines {
		if l.SupplyWarehouse != home {
			return false
		}
	}
	return true
}

// OrderTotal is sum(amounts) × (1 + districtTax) × (1 + warehouseTax) ×
// (1 − discount).
func OrderTotal(amounts []row.Decimal, districtTax, warehouseTax, discount row.Decimal) row.Decimal {
	sum := row.DecimalFromInt(0)
	for _, a := range amounts {
		sum = sum.Add(a)
	}
	one := row.DecimalFromInt(1)
	return sum.
		Mul(one.Add(districtTax)).
		Mul(one.Add(warehouseTax)).
		Mul(one.Sub(discount))
}

// NewOrderLine is the per-line part of a NewOrder result.
type NewOrderLine struct {
	ItemID          int64       `json:"item_id"`
	ItemName        string      `json:"item_name"`
	SupplyWarehouse int64       `json:"supply_warehouse"`
	Quantity        int64       `json:"quantity"`
	Amount          row.Decimal `json:"amount"`
	StockQuantity   int64       `json:"stock_quantity"`
}

// NewOrderResult summarises a placed order.
type NewOrderResult struct {
	Customer     CustomerRef    `json:"customer"`
	CustomerLast string         `json:"customer_last"`
	Credit       string         `json:"credit"`
	Discount     row.Decimal    `json:"discount"`
	WarehouseTax row.Decimal    `json:"warehouse_tax"`
	DistrictTax  row.Decimal    `json:"district_tax"`
	OrderID      int64          `json:"order_id"`
	EntryDate    time.Time      `json:"entry_date"`
	ItemCount    int            `json:"item_count"`
	AllLocal     bool           `json:"all_local"`
	Total        row.Decimal    `json:"total"`
	Lines        []NewOrderLine `json:"lines"`
}

// Render writes the order summary.
func (r *NewOrderResult) Render(w io.Writer) error {
	p := &printer{w: w}
	p.printf("Customer: %s %s | Credit: %s | Discount: %s\n", r.Customer, r.CustomerLast, r.Credit, r.Discount)
	p.printf("Warehouse Tax: %s | District Tax: %s\n", r.WarehouseTax, r.DistrictTax)
	p.printf("Order: %d | Entry Date: %s | All Local: %t\n", r.OrderID, formatTime(&r.EntryDate), r.AllLocal)
	p.printf("Items: %d | Total Amount: %s\n", r.ItemCount, money(r.Total))
	for i, l := range r.Lines {
		p.printf("  %d. Item %d (%s) | Supplier: %d | Quantity: %d | Amount: %s | Stock: %d\n",
			i+1, l.ItemID, l.ItemName, l.SupplyWarehouse, l.Quantity, money(l.Amount), l.StockQuantity)
	}
	return p.err
}

// NewOrderHandler places an order: it allocates an order id, writes the
// order header, updates stock and writes one order line per item in
// parallel, then prices the order.
type NewOrderHandler struct {
	deps Deps
}

// Kind implements engine.Handler.
func (h *NewOrderHandler) Kind() script.Kind { return script.NewOrder }

// Execute implements engine.Handler.
func (h *NewOrderHandler) Execute(ctx context.Context, rec script.Record) (engine.Result, error) {
	ids, err := intParams(rec, "customer", "warehouse", "district")
	if err != nil {
		return nil, err
	}
	c, w, d := ids[0], ids[1], ids[2]

	lines, err := parseOrderLines(rec)
	if err != nil {
		return nil, err
	}

	orderID, districtTax, err := h.allocateOrderID(ctx, w, d)
	if err != nil {
		return nil, fmt.Errorf("allocate order id: %w", err)
	}

	allLocal := AllLocal(w, lines)
	entry := h.deps.Clock.Now().UTC()
	header := row.Fields{
		OCustomer:  row.Int(c),
		OEntryDate: row.TimeValue(entry),
		OCarrier:   row.Null{},
		OLineCount: row.Int(len(lines)),
		OAllLocal:  row.Bool(allLocal),
	}
	if err := h.deps.Store.Write(ctx, OrderKey(w, d, orderID), header); err != nil {
		return nil, fmt.Errorf("write order %d: %w", orderID, err)
	}

	outcomes := engine.FanOut(ctx, h.deps.Pool, len(lines), func(ctx context.Context, i int) (NewOrderLine, error) {
		return h.placeLine(ctx, w, d, orderID, int64(i+1), lines[i])
	})
	if err := engine.FirstError(outcomes); err != nil {
		return nil, err
	}
	placed := engine.Values(outcomes)

	warehouse, err := readRow(ctx, h.deps.Store, WarehouseKey(w))
	if err != nil {
		return nil, err
	}
	customer, err := readRow(ctx, h.deps.Store, CustomerKey(w, d, c))
	if err != nil {
		return nil, err
	}

	wr := &fieldReader{f: warehouse}
	warehouseTax := wr.decimal(WTax)
	cr := &fieldReader{f: customer}
	res := &NewOrderResult{
		Customer:     CustomerRef{Warehouse: w, District: d, Customer: c},
		CustomerLast: cr.text(CLast),
		Credit:       cr.text(CCredit),
		Discount:     cr.decimal(CDiscount),
		WarehouseTax: warehouseTax,
		DistrictTax:  districtTax,
		OrderID:      orderID,
		EntryDate:    entry,
		ItemCount:    len(lines),
		AllLocal:     allLocal,
		Lines:        placed,
	}
	if wr.err != nil {
		return nil, wr.err
	}
	if cr.err != nil {
		return nil, cr.err
	}

	amounts := make([]row.Decimal, len(placed))
	for i, l := range placed {
		amounts[i] = l.Amount
	}
	res.Total = OrderTotal(amounts, districtTax, warehouseTax, res.Discount)
	return res, nil
}

func parseOrderLines(rec script.Record) ([]OrderLineItem, error) {
	lines := make([]OrderLineItem, len(rec.Lines))
	for i := range rec.Lines {
		var vals [3]int64
		for j := range vals {
			n, err := rec.LineInt(i, j)
			if err != nil {
				return nil, &engine.TxnError{Code: engine.ErrCodeInvalidInput, Message: "order line", Err: err}
			}
			if n <= 0 {
				return nil, engine.InvalidInput("order line %d: field %d must be positive, got %d", i+1, j+1, n)
			}
			vals[j] = n
		}
		lines[i] = OrderLineItem{ItemID: vals[0], SupplyWarehouse: vals[1], Quantity: vals[2]}
	}
	return lines, nil
}

// allocateOrderID increments the district's next-order counter and returns
// the pre-increment value with the district tax read alongside it.
func (h *NewOrderHandler) allocateOrderID(ctx context.Context, w, d int64) (int64, row.Decimal, error) {
	upd, err := h.deps.Updater.Apply(ctx, DistrictKey(w, d), DNextOrder, func(cur row.Fields) (row.Fields, error) {
		next, err := cur.Int(DNextOrder)
		if err != nil {
			return nil, err
		}
		return row.Fields{DNextOrder: row.Int(next + 1)}, nil
	})
	if err != nil {
		return 0, row.Decimal{}, err
	}
	r := &fieldReader{f: upd.Read}
	id := r.int(DNextOrder)
	tax := r.decimal(DTax)
	return id, tax, r.err
}

// placeLine updates the supplying stock row, prices the item and writes
// order line n.
func (h *NewOrderHandler) placeLine(ctx context.Context, w, d, orderID, n int64, l OrderLineItem) (NewOrderLine, error) {
	remote := l.SupplyWarehouse != w
	upd, err := h.deps.Updater.Apply(ctx, StockKey(l.SupplyWarehouse, l.ItemID), SOrderCnt, func(cur row.Fields) (row.Fields, error) {
		r := &fieldReader{f: cur}
		quantity := r.int(SQuantity)
		ytd := r.decimal(SYTD)
		orders := r.int(SOrderCnt)
		remotes := r.int(SRemoteCnt)
		if r.err != nil {
			return nil, r.err
		}
		next := row.Fields{
			SQuantity: row.Int(Replenish(quantity, l.Quantity)),
			SYTD:      ytd.Add(row.DecimalFromInt(l.Quantity)),
			SOrderCnt: row.Int(orders + 1),
		}
		if remote {
			next[SRemoteCnt] = row.Int(remotes + 1)
		}
		return next, nil
	})
	if err != nil {
		return NewOrderLine{}, fmt.Errorf("update stock of item %d: %w", l.ItemID, err)
	}
	before, err := upd.Read.Int(SQuantity)
	if err != nil {
		return NewOrderLine{}, err
	}

	item, err := readRow(ctx, h.deps.Store, ItemKey(l.ItemID))
	if err != nil {
		return NewOrderLine{}, err
	}
	ir := &fieldReader{f: item}
	name := ir.text(IName)
	price := ir.decimal(IPrice)
	if ir.err != nil {
		return NewOrderLine{}, ir.err
	}
	amount := price.Mul(row.DecimalFromInt(l.Quantity))

	line := row.Fields{
		OLItem:         row.Int(l.ItemID),
		OLSupplyW:      row.Int(l.SupplyWarehouse),
		OLQuantity:     row.Int(l.Quantity),
		OLAmount:       amount,
		OLDeliveryDate: row.Null{},
		OLDistInfo:     row.String(fmt.Sprintf("S_DIST_%d", d)),
	}
	if err := h.deps.Store.Write(ctx, OrderLineKey(w, d, orderID, n), line); err != nil {
		return NewOrderLine{}, fmt.Errorf("write order line %d: %w", n, err)
	}

	return NewOrderLine{
		ItemID:          l.ItemID,
		ItemName:        name,
		SupplyWarehouse: l.SupplyWarehouse,
		Quantity:        l.Quantity,
		Amount:          amount,
		StockQuantity:   before,
	}, nil
}
