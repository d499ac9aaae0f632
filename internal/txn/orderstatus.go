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

// StatusLine is one line of the customer's last order.
type StatusLine struct {
	ItemID          int64       `json:"item_id"`
	SupplyWarehouse int64       `json:"supply_warehouse"`
	Quantity        int64       `json:"quantity"`
	Amount          row.Decimal `json:"amount"`
	DeliveryDate    *time.Time  `json:"delivery_date"`
}

// LastOrder is the customer's most recent order.
type LastOrder struct {
	OrderID   int64        `json:"order_id"`
	EntryDate *time.Time   `json:"entry_date"`
	Carrier   *int64       `json:"carrier"`
	Lines     []StatusLine `json:"lines"`
}

// OrderStatusResult reports a customer's balance and last order.
type OrderStatusResult struct {
	Customer CustomerRef `json:"customer"`
	Name     Name        `json:"name"`
	Balance  row.Decimal `json:"balance"`
	Order    *LastOrder  `json:"last_order"`
}

// Render writes the order status.
func (r *OrderStatusResult) Render(w io.Writer) error {
	p := &printer{w: w}
	p.printf("Customer: %s %s | Balance: %s\n", r.Customer, r.Name, money(r.Balance))
	if r.Order == nil {
		p.printf("No orders\n")
		return p.err
	}
	p.printf("Last Order: %d | Entry Date: %s | Carrier: %s\n",
		r.Order.OrderID, formatTime(r.Order.EntryDate), formatOptionalInt(r.Order.Carrier))
	for _, l := range r.Order.Lines {
		p.printf("  Item %d | Supplier: %d | Quantity: %d | Amount: %s | Delivered: %s\n",
			l.ItemID, l.SupplyWarehouse, l.Quantity, money(l.Amount), formatTime(l.DeliveryDate))
	}
	return p.err
}

// OrderStatusHandler reports a customer's last order.
type OrderStatusHandler struct {
	deps Deps
}

// Kind implements engine.Handler.
func (h *OrderStatusHandler) Kind() script.Kind { return script.OrderStatus }

// Execute implements engine.Handler.
func (h *OrderStatusHandler) Execute(ctx context.Context, rec script.Record) (engine.Result, error) {
	ids, err := intParams(rec, "warehouse", "district", "customer")
	if err != nil {
		return nil, err
	}
	w, d, c := ids[0], ids[1], ids[2]

	customer, err := readRow(ctx, h.deps.Store, CustomerKey(w, d, c))
	if err != nil {
		return nil, err
	}
	cr := &fieldReader{f: customer}
	res := &OrderStatusResult{
		Customer: CustomerRef{Warehouse: w, District: d, Customer: c},
		Name:     cr.name(),
		Balance:  cr.decimal(CBalance),
	}
	if cr.err != nil {
		return nil, cr.err
	}

	var lastID int64
	var last row.Fields
	err = h.deps.Store.Scan(ctx, row.NewKey(TableOrder, w, d), func(key row.Key, f row.Fields) error {
		owner, err := f.Int(OCustomer)
		if err != nil {
			return err
		}
		if owner == c {
			lastID, last = key.Parts[2], f
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan orders of %d/%d: %w", w, d, err)
	}
	if last == nil {
		return res, nil
	}

	or := &fieldReader{f: last}
	res.Order = &LastOrder{
		OrderID:   lastID,
		EntryDate: or.time(OEntryDate),
		Carrier:   or.optionalInt(OCarrier),
	}
	if or.err != nil {
		return nil, or.err
	}

	lines, err := scanOrderLines(ctx, h.deps.Store, w, d, lastID)
	if err != nil {
		return nil, fmt.Errorf("scan lines of order %d: %w", lastID, err)
	}
	for _, f := range lines {
		lr := &fieldReader{f: f}
		l := StatusLine{
			ItemID:          lr.int(OLItem),
			SupplyWarehouse: lr.int(OLSupplyW),
			Quantity:        lr.int(OLQuantity),
			Amount:          lr.decimal(OLAmount),
			DeliveryDate:    lr.time(OLDeliveryDate),
		}
		if lr.err != nil {
			return nil, lr.err
		}
		res.Order.Lines = append(res.Order.Lines, l)
	}
	return res, nil
}
