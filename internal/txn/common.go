package txn

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/roach88/wholesale/internal/engine"
	"github.com/roach88/wholesale/internal/kv"
	"github.com/roach88/wholesale/internal/row"
	"github.com/roach88/wholesale/internal/script"
)

// Deps are the shared handles every handler is built from. Handlers keep
// nothing else between calls.
type Deps struct {
	Store   kv.Store
	Updater *engine.Updater
	Pool    *engine.Pool
	Clock   engine.WallClock
}

// Handlers returns one handler per transaction kind.
func Handlers(d Deps) []engine.Handler {
	if d.Clock == nil {
		d.Clock = engine.SystemClock{}
	}
	return []engine.Handler{
		&NewOrderHandler{deps: d},
		&PaymentHandler{deps: d},
		&DeliveryHandler{deps: d},
		&OrderStatusHandler{deps: d},
		&StockLevelHandler{deps: d},
		&PopularItemHandler{deps: d},
		&TopBalanceHandler{deps: d},
		&RelatedCustomerHandler{deps: d},
	}
}

// CustomerRef identifies a customer by its composite key.
type CustomerRef struct {
	Warehouse int64 `json:"warehouse"`
	District  int64 `json:"district"`
	Customer  int64 `json:"customer"`
}

func (c CustomerRef) String() string {
	return fmt.Sprintf("(%d, %d, %d)", c.Warehouse, c.District, c.Customer)
}

// Name is a customer's full name.
type Name struct {
	First  string `json:"first"`
	Middle string `json:"middle"`
	Last   string `json:"last"`
}

func (n Name) String() string {
	return n.First + " " + n.Middle + " " + n.Last
}

// Address is a warehouse, district or customer street address.
type Address struct {
	Street1 string `json:"street_1"`
	Street2 string `json:"street_2"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
}

func (a Address) String() string {
	return fmt.Sprintf("%s, %s, %s, %s, %s", a.Street1, a.Street2, a.City, a.State, a.Zip)
}

// readRow reads key, reporting a missing row as a NOT_FOUND TxnError.
func readRow(ctx context.Context, s kv.Store, key row.Key) (row.Fields, error) {
	f, err := s.ReadRow(ctx, key)
	if kv.IsNotFound(err) {
		return nil, &engine.TxnError{Code: engine.ErrCodeNotFound, Message: key.String() + " does not exist", Err: err}
	}
	return f, err
}

// intParams parses every parameter of rec as a positive integer.
func intParams(rec script.Record, names ...string) ([]int64, error) {
	out := make([]int64, len(names))
	for i, name := range names {
		n, err := rec.Int(i)
		if err != nil {
			return nil, &engine.TxnError{Code: engine.ErrCodeInvalidInput, Message: name, Err: err}
		}
		if n <= 0 {
			return nil, engine.InvalidInput("%s must be positive, got %d", name, n)
		}
		out[i] = n
	}
	return out, nil
}

// fieldReader collects the first error from a run of typed field reads so
// handlers can read a row's fields without checking each one.
type fieldReader struct {
	f   row.Fields
	err error
}

func (r *fieldReader) int(name string) int64 {
	if r.err != nil {
		return 0
	}
	v, err := r.f.Int(name)
	r.err = err
	return v
}

func (r *fieldReader) decimal(name string) row.Decimal {
	if r.err != nil {
		return row.Decimal{}
	}
	v, err := r.f.Decimal(name)
	r.err = err
	return v
}

func (r *fieldReader) text(name string) string {
	if r.err != nil {
		return ""
	}
	v, err := r.f.Text(name)
	r.err = err
	return v
}

func (r *fieldReader) time(name string) *time.Time {
	if r.err != nil {
		return nil
	}
	v, ok, err := r.f.Time(name)
	r.err = err
	if !ok {
		return nil
	}
	return &v
}

func (r *fieldReader) optionalInt(name string) *int64 {
	if r.err != nil || r.f.IsNull(name) {
		return nil
	}
	v := r.int(name)
	return &v
}

func (r *fieldReader) address(prefix string) Address {
	return Address{
		Street1: r.text(prefix + "street_1"),
		Street2: r.text(prefix + "street_2"),
		City:    r.text(prefix + "city"),
		State:   r.text(prefix + "state"),
		Zip:     r.text(prefix + "zip"),
	}
}

func (r *fieldReader) name() Name {
	return Name{First: r.text(CFirst), Middle: r.text(CMiddle), Last: r.text(CLast)}
}

// printer accumulates the first write error while rendering.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

// money formats an amount with two fractional digits.
func money(d row.Decimal) string {
	return d.Round(2).String()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "null"
	}
	return t.UTC().Format(time.RFC3339)
}

func formatOptionalInt(n *int64) string {
	if n == nil {
		return "null"
	}
	return fmt.Sprintf("%d", *n)
}

// scanOrderLines returns the lines of order (w, d, o) in line order.
func scanOrderLines(ctx context.Context, s kv.Store, w, d, o int64) ([]row.Fields, error) {
	var lines []row.Fields
	err := s.Scan(ctx, row.NewKey(TableOrderLine, w, d, o), func(_ row.Key, f row.Fields) error {
		lines = append(lines, f)
		return nil
	})
	return lines, err
}

// sortRefs orders customers by (warehouse, district, customer).
func sortRefs(refs []CustomerRef) {
	slices.SortFunc(refs, func(a, b CustomerRef) int {
		if c := cmp.Compare(a.Warehouse, b.Warehouse); c != 0 {
			return c
		}
		if c := cmp.Compare(a.District, b.District); c != 0 {
			return c
		}
		return cmp.Compare(a.Customer, b.Customer)
	})
}
