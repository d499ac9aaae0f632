package txn

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/roach88/wholesale/internal/engine"
	"github.com/roach88/wholesale/internal/row"
	"github.com/roach88/wholesale/internal/script"
)

// TopBalanceLimit is how many customers TopBalance reports.
const TopBalanceLimit = 10

// BalanceEntry is one ranked customer.
type BalanceEntry struct {
	Customer      CustomerRef `json:"customer"`
	Name          Name        `json:"name"`
	Balance       row.Decimal `json:"balance"`
	WarehouseName string      `json:"warehouse_name"`
	DistrictName  string      `json:"district_name"`
}

// TopBalanceResult ranks customers by balance, largest first.
type TopBalanceResult struct {
	Customers []BalanceEntry `json:"customers"`
}

// Render writes the ranking.
func (r *TopBalanceResult) Render(w io.Writer) error {
	p := &printer{w: w}
	for i, c := range r.Customers {
		p.printf("%d. %s | Balance: %s | Warehouse: %s | District: %s\n",
			i+1, c.Name, money(c.Balance), c.WarehouseName, c.DistrictName)
	}
	return p.err
}

// TopBalanceHandler ranks every customer by balance.
type TopBalanceHandler struct {
	deps Deps
}

// Kind implements engine.Handler.
func (h *TopBalanceHandler) Kind() script.Kind { return script.TopBalance }

// Execute implements engine.Handler.
func (h *TopBalanceHandler) Execute(ctx context.Context, _ script.Record) (engine.Result, error) {
	top := make([]BalanceEntry, 0, TopBalanceLimit+1)
	err := h.deps.Store.Scan(ctx, row.NewKey(TableCustomer), func(key row.Key, f row.Fields) error {
		balance, err := f.Decimal(CBalance)
		if err != nil {
			return err
		}
		// Customers arrive in key order, so inserting after equal balances
		// breaks ties by key.
		at := len(top)
		for at > 0 && top[at-1].Balance.Cmp(balance) < 0 {
			at--
		}
		if at >= TopBalanceLimit {
			return nil
		}
		r := &fieldReader{f: f}
		entry := BalanceEntry{
			Customer: CustomerRef{Warehouse: key.Parts[0], District: key.Parts[1], Customer: key.Parts[2]},
			Name:     r.name(),
			Balance:  balance,
		}
		if r.err != nil {
			return r.err
		}
		top = slices.Insert(top, at, entry)
		if len(top) > TopBalanceLimit {
			top = top[:TopBalanceLimit]
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan customers: %w", err)
	}

	for i := range top {
		c := top[i].Customer
		warehouse, err := readRow(ctx, h.deps.Store, WarehouseKey(c.Warehouse))
		if err != nil {
			return nil, err
		}
		district, err := readRow(ctx, h.deps.Store, DistrictKey(c.Warehouse, c.District))
		if err != nil {
			return nil, err
		}
		if top[i].WarehouseName, err = warehouse.Text(WName); err != nil {
			return nil, err
		}
		if top[i].DistrictName, err = district.Text(DName); err != nil {
			return nil, err
		}
	}
	return &TopBalanceResult{Customers: top}, nil
}
