package txn

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/wholesale/internal/engine"
	"github.com/roach88/wholesale/internal/kv"
	"github.com/roach88/wholesale/internal/row"
	"github.com/roach88/wholesale/internal/script"
)

// errCarrierTaken aborts a carrier update when another deliverer set the
// carrier between the scan and the read.
var errCarrierTaken = errors.New("order already has a carrier")

// DistrictDelivery reports what one district's delivery did. OrderID is
// zero when the district had no undelivered order.
type DistrictDelivery struct {
	District int64       `json:"district"`
	OrderID  int64       `json:"order_id,omitempty"`
	Customer int64       `json:"customer,omitempty"`
	Amount   row.Decimal `json:"amount"`
}

// DeliveryResult lists each district's delivery in district order.
type DeliveryResult struct {
	Warehouse int64              `json:"warehouse"`
	Carrier   int64              `json:"carrier"`
	Districts []DistrictDelivery `json:"districts"`
}

// Render writes the delivery summary.
func (r *DeliveryResult) Render(w io.Writer) error {
	p := &printer{w: w}
	p.printf("Warehouse: %d | Carrier: %d\n", r.Warehouse, r.Carrier)
	for _, d := range r.Districts {
		if d.OrderID == 0 {
			p.printf("  District %d: no undelivered order\n", d.District)
			continue
		}
		p.printf("  District %d: order %d delivered to customer %d | Amount: %s\n",
			d.District, d.OrderID, d.Customer, money(d.Amount))
	}
	return p.err
}

// DeliveryHandler delivers the oldest undelivered order of every district
// of a warehouse. Districts are processed in parallel.
type DeliveryHandler struct {
	deps Deps
}

// Kind implements engine.Handler.
func (h *DeliveryHandler) Kind() script.Kind { return script.Delivery }

// Execute implements engine.Handler.
func (h *DeliveryHandler) Execute(ctx context.Context, rec script.Record) (engine.Result, error) {
	ids, err := intParams(rec, "warehouse", "carrier")
	if err != nil {
		return nil, err
	}
	w, carrier := ids[0], ids[1]

	outcomes := engine.FanOut(ctx, h.deps.Pool, DistrictsPerWarehouse, func(ctx context.Context, i int) (DistrictDelivery, error) {
		return h.deliverDistrict(ctx, w, int64(i+1), carrier)
	})
	if err := engine.FirstError(outcomes); err != nil {
		return nil, err
	}
	return &DeliveryResult{Warehouse: w, Carrier: carrier, Districts: engine.Values(outcomes)}, nil
}

// deliverDistrict claims the oldest undelivered order of (w, d) by setting
// its carrier, stamps its lines and bills the customer. When another
// deliverer claims the order first it moves on to the next one.
func (h *DeliveryHandler) deliverDistrict(ctx context.Context, w, d, carrier int64) (DistrictDelivery, error) {
	after := int64(0)
	for {
		orderID, err := h.oldestUndelivered(ctx, w, d, after)
		if err != nil {
			return DistrictDelivery{}, err
		}
		if orderID == 0 {
			return DistrictDelivery{District: d, Amount: row.DecimalFromInt(0)}, nil
		}

		claim, err := h.deps.Updater.Apply(ctx, OrderKey(w, d, orderID), OCarrier, func(cur row.Fields) (row.Fields, error) {
			if !cur.IsNull(OCarrier) {
				return nil, errCarrierTaken
			}
			return row.Fields{OCarrier: row.Int(carrier)}, nil
		})
		if errors.Is(err, errCarrierTaken) {
			after = orderID
			continue
		}
		if err != nil {
			return DistrictDelivery{}, fmt.Errorf("claim order %d: %w", orderID, err)
		}

		r := &fieldReader{f: claim.Read}
		customer := r.int(OCustomer)
		lineCount := r.int(OLineCount)
		if r.err != nil {
			return DistrictDelivery{}, r.err
		}

		now := row.TimeValue(h.deps.Clock.Now())
		total := row.DecimalFromInt(0)
		for n := int64(1); n <= lineCount; n++ {
			upd, err := h.deps.Updater.Apply(ctx, OrderLineKey(w, d, orderID, n), OLDeliveryDate, func(cur row.Fields) (row.Fields, error) {
				if !cur.IsNull(OLDeliveryDate) {
					return row.Fields{}, nil
				}
				return row.Fields{OLDeliveryDate: now}, nil
			})
			if err != nil {
				return DistrictDelivery{}, fmt.Errorf("stamp order line %d/%d: %w", orderID, n, err)
			}
			amount, err := upd.Read.Decimal(OLAmount)
			if err != nil {
				return DistrictDelivery{}, err
			}
			total = total.Add(amount)
		}

		_, err = h.deps.Updater.Apply(ctx, CustomerKey(w, d, customer), CDeliveryCnt, func(cur row.Fields) (row.Fields, error) {
			cr := &fieldReader{f: cur}
			balance := cr.decimal(CBalance)
			count := cr.int(CDeliveryCnt)
			if cr.err != nil {
				return nil, cr.err
			}
			return row.Fields{
				CBalance:     balance.Add(total),
				CDeliveryCnt: row.Int(count + 1),
			}, nil
		})
		if err != nil {
			return DistrictDelivery{}, fmt.Errorf("bill customer %d: %w", customer, err)
		}
		return DistrictDelivery{District: d, OrderID: orderID, Customer: customer, Amount: total}, nil
	}
}

// oldestUndelivered returns the smallest order id of (w, d) above after
// whose carrier is Null, or 0 when there is none.
func (h *DeliveryHandler) oldestUndelivered(ctx context.Context, w, d, after int64) (int64, error) {
	var found int64
	err := h.deps.Store.Scan(ctx, row.NewKey(TableOrder, w, d), func(key row.Key, f row.Fields) error {
		o := key.Parts[2]
		if o <= after || !f.IsNull(OCarrier) {
			return nil
		}
		found = o
		return kv.ErrStopScan
	})
	if err != nil {
		return 0, fmt.Errorf("scan orders of %d/%d: %w", w, d, err)
	}
	return found, nil
}
