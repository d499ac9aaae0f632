package txn

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/roach88/wholesale/internal/engine"
	"github.com/roach88/wholesale/internal/kv"
	"github.com/roach88/wholesale/internal/row"
	"github.com/roach88/wholesale/internal/script"
)

// PopularLine is an item ordered in an order's largest quantity.
type PopularLine struct {
	ItemID   int64  `json:"item_id"`
	Name     string `json:"name"`
	Quantity int64  `json:"quantity"`
}

// PopularOrder lists one order's most popular items.
type PopularOrder struct {
	OrderID   int64         `json:"order_id"`
	EntryDate *time.Time    `json:"entry_date"`
	Customer  Name          `json:"customer"`
	Items     []PopularLine `json:"items"`
}

// ItemShare is the percentage of examined orders containing an item.
type ItemShare struct {
	ItemID  int64       `json:"item_id"`
	Name    string      `json:"name"`
	Percent row.Decimal `json:"percent"`
}

// PopularItemResult reports the popular items of a district's last orders.
type PopularItemResult struct {
	Warehouse  int64          `json:"warehouse"`
	District   int64          `json:"district"`
	LastOrders int64          `json:"last_orders"`
	Orders     []PopularOrder `json:"orders"`
	Shares     []ItemShare    `json:"shares"`
}

// Render writes the popular items.
func (r *PopularItemResult) Render(w io.Writer) error {
	p := &printer{w: w}
	p.printf("Warehouse: %d | District: %d | Last Orders: %d\n", r.Warehouse, r.District, r.LastOrders)
	for _, o := range r.Orders {
		p.printf("Order: %d | Entry Date: %s | Customer: %s\n", o.OrderID, formatTime(o.EntryDate), o.Customer)
		for _, it := range o.Items {
			p.printf("  Item: %s | Quantity: %d\n", it.Name, it.Quantity)
		}
	}
	for _, s := range r.Shares {
		p.printf("Item: %s | Orders: %s%%\n", s.Name, s.Percent)
	}
	return p.err
}

// PopularItemHandler finds, for each of a district's last L orders, the
// items ordered in the largest quantity.
type PopularItemHandler struct {
	deps Deps
}

// Kind implements engine.Handler.
func (h *PopularItemHandler) Kind() script.Kind { return script.PopularItem }

// Execute implements engine.Handler.
func (h *PopularItemHandler) Execute(ctx context.Context, rec script.Record) (engine.Result, error) {
	ids, err := intParams(rec, "warehouse", "district", "last orders")
	if err != nil {
		return nil, err
	}
	w, d, last := ids[0], ids[1], ids[2]

	from, next, err := recentOrderRange(ctx, h.deps, w, d, last)
	if err != nil {
		return nil, err
	}

	res := &PopularItemResult{Warehouse: w, District: d, LastOrders: last}
	var itemSets []map[int64]bool
	var popular []PopularLine
	seen := make(map[int64]bool)
	for o := from; o < next; o++ {
		order, err := h.deps.Store.ReadRow(ctx, OrderKey(w, d, o))
		if kv.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read order %d: %w", o, err)
		}
		po, items, err := h.examine(ctx, w, d, o, order)
		if err != nil {
			return nil, err
		}
		res.Orders = append(res.Orders, po)
		itemSets = append(itemSets, items)
		for _, it := range po.Items {
			if !seen[it.ItemID] {
				seen[it.ItemID] = true
				popular = append(popular, it)
			}
		}
	}

	for _, it := range popular {
		res.Shares = append(res.Shares, ItemShare{
			ItemID:  it.ItemID,
			Name:    it.Name,
			Percent: sharePercent(it.ItemID, itemSets),
		})
	}
	return res, nil
}

// examine returns order o's popular lines and the set of items it contains.
func (h *PopularItemHandler) examine(ctx context.Context, w, d, o int64, order row.Fields) (PopularOrder, map[int64]bool, error) {
	or := &fieldReader{f: order}
	entry := or.time(OEntryDate)
	c := or.int(OCustomer)
	if or.err != nil {
		return PopularOrder{}, nil, or.err
	}
	customer, err := readRow(ctx, h.deps.Store, CustomerKey(w, d, c))
	if err != nil {
		return PopularOrder{}, nil, err
	}
	cr := &fieldReader{f: customer}
	po := PopularOrder{OrderID: o, EntryDate: entry, Customer: cr.name()}
	if cr.err != nil {
		return PopularOrder{}, nil, cr.err
	}

	lines, err := scanOrderLines(ctx, h.deps.Store, w, d, o)
	if err != nil {
		return PopularOrder{}, nil, fmt.Errorf("scan lines of order %d: %w", o, err)
	}
	items := make(map[int64]bool, len(lines))
	var top int64
	var best []PopularLine
	for _, f := range lines {
		lr := &fieldReader{f: f}
		item := lr.int(OLItem)
		qty := lr.int(OLQuantity)
		if lr.err != nil {
			return PopularOrder{}, nil, lr.err
		}
		items[item] = true
		switch {
		case qty > top:
			top = qty
			best = []PopularLine{{ItemID: item, Quantity: qty}}
		case qty == top:
			best = append(best, PopularLine{ItemID: item, Quantity: qty})
		}
	}
	for i := range best {
		it, err := readRow(ctx, h.deps.Store, ItemKey(best[i].ItemID))
		if err != nil {
			return PopularOrder{}, nil, err
		}
		if best[i].Name, err = it.Text(IName); err != nil {
			return PopularOrder{}, nil, err
		}
	}
	po.Items = best
	return po, items, nil
}

// sharePercent is the percentage of sets containing item, to two places.
func sharePercent(item int64, sets []map[int64]bool) row.Decimal {
	if len(sets) == 0 {
		return row.DecimalFromInt(0)
	}
	var n int64
	for _, s := range sets {
		if s[item] {
			n++
		}
	}
	return row.DecimalFromInt(n * 100).Quo(row.DecimalFromInt(int64(len(sets)))).Round(2)
}
