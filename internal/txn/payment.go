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

// PaymentResult summarises a customer payment.
type PaymentResult struct {
	Customer         CustomerRef `json:"customer"`
	Name             Name        `json:"name"`
	Address          Address     `json:"address"`
	Phone            string      `json:"phone"`
	Since            *time.Time  `json:"since"`
	Credit           string      `json:"credit"`
	CreditLimit      row.Decimal `json:"credit_limit"`
	Discount         row.Decimal `json:"discount"`
	Balance          row.Decimal `json:"balance"`
	WarehouseAddress Address     `json:"warehouse_address"`
	DistrictAddress  Address     `json:"district_address"`
	Payment          row.Decimal `json:"payment"`
}

// Render writes the payment summary.
func (r *PaymentResult) Render(w io.Writer) error {
	p := &printer{w: w}
	p.printf("Customer: %s %s\n", r.Customer, r.Name)
	p.printf("Address: %s | Phone: %s | Since: %s\n", r.Address, r.Phone, formatTime(r.Since))
	p.printf("Credit: %s | Credit Limit: %s | Discount: %s | Balance: %s\n",
		r.Credit, money(r.CreditLimit), r.Discount, money(r.Balance))
	p.printf("Warehouse: %s\n", r.WarehouseAddress)
	p.printf("District: %s\n", r.DistrictAddress)
	p.printf("Payment: %s\n", money(r.Payment))
	return p.err
}

// PaymentHandler credits a payment to the warehouse and district totals and
// debits it from the customer's balance, one optimistic update per row.
type PaymentHandler struct {
	deps Deps
}

// Kind implements engine.Handler.
func (h *PaymentHandler) Kind() script.Kind { return script.Payment }

// Execute implements engine.Handler.
func (h *PaymentHandler) Execute(ctx context.Context, rec script.Record) (engine.Result, error) {
	ids, err := intParams(rec, "warehouse", "district", "customer")
	if err != nil {
		return nil, err
	}
	w, d, c := ids[0], ids[1], ids[2]
	amount, err := rec.Decimal(3)
	if err != nil {
		return nil, &engine.TxnError{Code: engine.ErrCodeInvalidInput, Message: "payment", Err: err}
	}
	if amount.Sign() <= 0 {
		return nil, engine.InvalidInput("payment must be positive, got %s", amount)
	}

	warehouse, err := h.deps.Updater.Apply(ctx, WarehouseKey(w), WYTD, addTo(WYTD, amount))
	if err != nil {
		return nil, fmt.Errorf("update warehouse %d: %w", w, err)
	}
	district, err := h.deps.Updater.Apply(ctx, DistrictKey(w, d), DYTD, addTo(DYTD, amount))
	if err != nil {
		return nil, fmt.Errorf("update district %d/%d: %w", w, d, err)
	}
	customer, err := h.deps.Updater.Apply(ctx, CustomerKey(w, d, c), CPaymentCnt, func(cur row.Fields) (row.Fields, error) {
		r := &fieldReader{f: cur}
		balance := r.decimal(CBalance)
		ytd := r.decimal(CYTDPayment)
		count := r.int(CPaymentCnt)
		if r.err != nil {
			return nil, r.err
		}
		return row.Fields{
			CBalance:    balance.Sub(amount),
			CYTDPayment: ytd.Add(amount),
			CPaymentCnt: row.Int(count + 1),
		}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("update customer %d/%d/%d: %w", w, d, c, err)
	}

	cr := &fieldReader{f: customer.Read.Merge(customer.Written)}
	wr := &fieldReader{f: warehouse.Read}
	dr := &fieldReader{f: district.Read}
	res := &PaymentResult{
		Customer:         CustomerRef{Warehouse: w, District: d, Customer: c},
		Name:             cr.name(),
		Address:          cr.address("c_"),
		Phone:            cr.text(CPhone),
		Since:            cr.time(CSince),
		Credit:           cr.text(CCredit),
		CreditLimit:      cr.decimal(CCreditLim),
		Discount:         cr.decimal(CDiscount),
		Balance:          cr.decimal(CBalance),
		WarehouseAddress: wr.address("w_"),
		DistrictAddress:  dr.address("d_"),
		Payment:          amount,
	}
	for _, r := range []*fieldReader{cr, wr, dr} {
		if r.err != nil {
			return nil, r.err
		}
	}
	return res, nil
}

// addTo returns a compute step adding amount to a decimal field, which is
// also the guard.
func addTo(field string, amount row.Decimal) engine.ComputeFunc {
	return func(cur row.Fields) (row.Fields, error) {
		v, err := cur.Decimal(field)
		if err != nil {
			return nil, err
		}
		return row.Fields{field: v.Add(amount)}, nil
	}
}
