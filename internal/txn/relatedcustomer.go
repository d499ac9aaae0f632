package txn

import (
	"context"
	"fmt"
	"io"

	"github.com/roach88/wholesale/internal/engine"
	"github.com/roach88/wholesale/internal/row"
	"github.com/roach88/wholesale/internal/script"
)

// RelatedThreshold is how many distinct items two orders must share for
// their customers to be related.
const RelatedThreshold = 2

// RelatedCustomerResult lists customers related to the given one.
type RelatedCustomerResult struct {
	Customer CustomerRef   `json:"customer"`
	Related  []CustomerRef `json:"related"`
}

// Render writes the related customers.
func (r *RelatedCustomerResult) Render(w io.Writer) error {
	p := &printer{w: w}
	p.printf("Customer: %s\n", r.Customer)
	if len(r.Related) == 0 {
		p.printf("No related customers\n")
	}
	for _, c := range r.Related {
		p.printf("  Related: %s\n", c)
	}
	return p.err
}

// RelatedCustomerHandler finds customers of other warehouses who placed an
// order sharing at least RelatedThreshold items with one of the given
// customer's orders.
type RelatedCustomerHandler struct {
	deps Deps
}

// Kind implements engine.Handler.
func (h *RelatedCustomerHandler) Kind() script.Kind { return script.RelatedCustomer }

// Execute implements engine.Handler.
func (h *RelatedCustomerHandler) Execute(ctx context.Context, rec script.Record) (engine.Result, error) {
	ids, err := intParams(rec, "warehouse", "district", "customer")
	if err != nil {
		return nil, err
	}
	w, d, c := ids[0], ids[1], ids[2]
	if _, err := readRow(ctx, h.deps.Store, CustomerKey(w, d, c)); err != nil {
		return nil, err
	}

	targets, err := h.customerItemSets(ctx, w, d, c)
	if err != nil {
		return nil, err
	}
	res := &RelatedCustomerResult{Customer: CustomerRef{Warehouse: w, District: d, Customer: c}}
	if len(targets) == 0 {
		return res, nil
	}

	var warehouses []int64
	err = h.deps.Store.Scan(ctx, row.NewKey(TableWarehouse), func(key row.Key, _ row.Fields) error {
		if key.Parts[0] != w {
			warehouses = append(warehouses, key.Parts[0])
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan warehouses: %w", err)
	}

	// Warehouses are visited in id order and each one's matches are
	// sorted, so the concatenation is sorted.
	for _, other := range warehouses {
		related, err := h.relatedIn(ctx, other, targets)
		if err != nil {
			return nil, err
		}
		res.Related = append(res.Related, related...)
	}
	return res, nil
}

// customerItemSets returns the item set of every order placed by (w, d, c).
func (h *RelatedCustomerHandler) customerItemSets(ctx context.Context, w, d, c int64) ([]map[int64]bool, error) {
	var orders []int64
	err := h.deps.Store.Scan(ctx, row.NewKey(TableOrder, w, d), func(key row.Key, f row.Fields) error {
		owner, err := f.Int(OCustomer)
		if err != nil {
			return err
		}
		if owner == c {
			orders = append(orders, key.Parts[2])
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan orders of %d/%d: %w", w, d, err)
	}

	sets := make([]map[int64]bool, 0, len(orders))
	for _, o := range orders {
		lines, err := scanOrderLines(ctx, h.deps.Store, w, d, o)
		if err != nil {
			return nil, fmt.Errorf("scan lines of order %d: %w", o, err)
		}
		set := make(map[int64]bool, len(lines))
		for _, l := range lines {
			item, err := l.Int(OLItem)
			if err != nil {
				return nil, err
			}
			set[item] = true
		}
		sets = append(sets, set)
	}
	return sets, nil
}

// relatedIn scans every order line of warehouse w and returns, sorted by
// (district, customer), the customers owning an order related to targets.
func (h *RelatedCustomerHandler) relatedIn(ctx context.Context, w int64, targets []map[int64]bool) ([]CustomerRef, error) {
	var matches [][2]int64
	var cur [2]int64
	items := make(map[int64]bool)
	flush := func() {
		if len(items) >= RelatedThreshold && sharesItems(items, targets) {
			matches = append(matches, cur)
		}
		clear(items)
	}

	err := h.deps.Store.Scan(ctx, row.NewKey(TableOrderLine, w), func(key row.Key, f row.Fields) error {
		order := [2]int64{key.Parts[1], key.Parts[2]}
		if order != cur {
			flush()
			cur = order
		}
		item, err := f.Int(OLItem)
		if err != nil {
			return err
		}
		items[item] = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan order lines of warehouse %d: %w", w, err)
	}
	flush()

	seen := make(map[CustomerRef]bool)
	var related []CustomerRef
	for _, m := range matches {
		order, err := readRow(ctx, h.deps.Store, OrderKey(w, m[0], m[1]))
		if err != nil {
			return nil, err
		}
		c, err := order.Int(OCustomer)
		if err != nil {
			return nil, err
		}
		ref := CustomerRef{Warehouse: w, District: m[0], Customer: c}
		if !seen[ref] {
			seen[ref] = true
			related = append(related, ref)
		}
	}
	sortRefs(related)
	return related, nil
}

// sharesItems reports whether items has at least RelatedThreshold items in
// common with any target set.
func sharesItems(items map[int64]bool, targets []map[int64]bool) bool {
	for _, t := range targets {
		n := 0
		for item := range items {
			if t[item] {
				n++
				if n >= RelatedThreshold {
					return true
				}
			}
		}
	}
	return false
}
