package txn

import (
	"context"
	"fmt"
	"io"

	"github.com/roach88/wholesale/internal/engine"
	"github.com/roach88/wholesale/internal/script"
)

// StockLevelResult counts recently ordered items that are low in stock.
type StockLevelResult struct {
	Warehouse  int64 `json:"warehouse"`
	District   int64 `json:"district"`
	Threshold  int64 `json:"threshold"`
	LastOrders int64 `json:"last_orders"`
	LowStock   int   `json:"low_stock"`
}

// Render writes the stock level.
func (r *StockLevelResult) Render(w io.Writer) error {
	p := &printer{w: w}
	p.printf("Warehouse: %d | District: %d | Threshold: %d | Last Orders: %d\n",
		r.Warehouse, r.District, r.Threshold, r.LastOrders)
	p.printf("Items below threshold: %d\n", r.LowStock)
	return p.err
}

// StockLevelHandler counts the distinct items of a district's last L orders
// whose stock at the warehouse is below a threshold.
type StockLevelHandler struct {
	deps Deps
}

// Kind implements engine.Handler.
func (h *StockLevelHandler) Kind() script.Kind { return script.StockLevel }

// Execute implements engine.Handler.
func (h *StockLevelHandler) Execute(ctx context.Context, rec script.Record) (engine.Result, error) {
	ids, err := intParams(rec, "warehouse", "district", "threshold", "last orders")
	if err != nil {
		return nil, err
	}
	w, d, threshold, last := ids[0], ids[1], ids[2], ids[3]

	items, err := recentItems(ctx, h.deps, w, d, last)
	if err != nil {
		return nil, err
	}

	low := 0
	for _, item := range items {
		stock, err := readRow(ctx, h.deps.Store, StockKey(w, item))
		if err != nil {
			return nil, err
		}
		q, err := stock.Int(SQuantity)
		if err != nil {
			return nil, err
		}
		if q < threshold {
			low++
		}
	}
	return &StockLevelResult{Warehouse: w, District: d, Threshold: threshold, LastOrders: last, LowStock: low}, nil
}

// recentOrderRange returns the half-open id range [from, next) of the last
// n orders of (w, d).
func recentOrderRange(ctx context.Context, deps Deps, w, d, n int64) (from, next int64, err error) {
	district, err := readRow(ctx, deps.Store, DistrictKey(w, d))
	if err != nil {
		return 0, 0, err
	}
	next, err = district.Int(DNextOrder)
	if err != nil {
		return 0, 0, err
	}
	from = max(next-n, 1)
	return from, next, nil
}

// recentItems returns the distinct items ordered in the last n orders of
// (w, d), in first-seen order.
func recentItems(ctx context.Context, deps Deps, w, d, n int64) ([]int64, error) {
	from, next, err := recentOrderRange(ctx, deps, w, d, n)
	if err != nil {
		return nil, err
	}
	seen := make(map[int64]bool)
	var items []int64
	for o := from; o < next; o++ {
		lines, err := scanOrderLines(ctx, deps.Store, w, d, o)
		if err != nil {
			return nil, fmt.Errorf("scan lines of order %d: %w", o, err)
		}
		for _, l := range lines {
			item, err := l.Int(OLItem)
			if err != nil {
				return nil, err
			}
			if !seen[item] {
				seen[item] = true
				items = append(items, item)
			}
		}
	}
	return items, nil
}
