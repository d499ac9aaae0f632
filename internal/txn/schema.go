package txn

import "github.com/roach88/wholesale/internal/row"

// DistrictsPerWarehouse is fixed by the workload.
const DistrictsPerWarehouse = 10

// Logical table names.
const (
	TableWarehouse = "warehouse"
	TableDistrict  = "district"
	TableCustomer  = "customer"
	TableOrder     = "order"
	TableOrderLine = "order_line"
	TableItem      = "item"
	TableStock     = "stock"
)

// Warehouse fields.
const (
	WName    = "w_name"
	WStreet1 = "w_street_1"
	WStreet2 = "w_street_2"
	WCity    = "w_city"
	WState   = "w_state"
	WZip     = "w_zip"
	WTax     = "w_tax"
	WYTD     = "w_ytd"
)

// District fields.
const (
	DName      = "d_name"
	DStreet1   = "d_street_1"
	DStreet2   = "d_street_2"
	DCity      = "d_city"
	DState     = "d_state"
	DZip       = "d_zip"
	DTax       = "d_tax"
	DYTD       = "d_ytd"
	DNextOrder = "d_next_o_id"
)

// Customer fields.
const (
	CFirst       = "c_first"
	CMiddle      = "c_middle"
	CLast        = "c_last"
	CStreet1     = "c_street_1"
	CStreet2     = "c_street_2"
	CCity        = "c_city"
	CState       = "c_state"
	CZip         = "c_zip"
	CPhone       = "c_phone"
	CSince       = "c_since"
	CCredit      = "c_credit"
	CCreditLim   = "c_credit_lim"
	CDiscount    = "c_discount"
	CBalance     = "c_balance"
	CYTDPayment  = "c_ytd_payment"
	CPaymentCnt  = "c_payment_cnt"
	CDeliveryCnt = "c_delivery_cnt"
	CData        = "c_data"
)

// Order fields.
const (
	OCustomer  = "o_c_id"
	OEntryDate = "o_entry_d"
	OCarrier   = "o_carrier_id"
	OLineCount = "o_ol_cnt"
	OAllLocal  = "o_all_local"
)

// Order line fields.
const (
	OLItem         = "ol_i_id"
	OLSupplyW      = "ol_supply_w_id"
	OLQuantity     = "ol_quantity"
	OLAmount       = "ol_amount"
	OLDeliveryDate = "ol_delivery_d"
	OLDistInfo     = "ol_dist_info"
)

// Item fields.
const (
	IName  = "i_name"
	IPrice = "i_price"
	IImage = "i_im_id"
	IData  = "i_data"
)

// Stock fields.
const (
	SQuantity  = "s_quantity"
	SYTD       = "s_ytd"
	SOrderCnt  = "s_order_cnt"
	SRemoteCnt = "s_remote_cnt"
	SData      = "s_data"
)

// WarehouseKey addresses warehouse w.
func WarehouseKey(w int64) row.Key { return row.NewKey(TableWarehouse, w) }

// DistrictKey addresses district d of warehouse w.
func DistrictKey(w, d int64) row.Key { return row.NewKey(TableDistrict, w, d) }

// CustomerKey addresses customer c of district (w, d).
func CustomerKey(w, d, c int64) row.Key { return row.NewKey(TableCustomer, w, d, c) }

// OrderKey addresses order o of district (w, d).
func OrderKey(w, d, o int64) row.Key { return row.NewKey(TableOrder, w, d, o) }

// OrderLineKey addresses line n of order (w, d, o).
func OrderLineKey(w, d, o, n int64) row.Key { return row.NewKey(TableOrderLine, w, d, o, n) }

// ItemKey addresses catalog item i.
func ItemKey(i int64) row.Key { return row.NewKey(TableItem, i) }

// StockKey addresses the stock of item i at warehouse w.
func StockKey(w, i int64) row.Key { return row.NewKey(TableStock, w, i) }
