package script

// Kind is the one-character discriminant at the start of a record.
type Kind byte

// The closed set of transaction kinds.
const (
	NewOrder        Kind = 'N'
	Payment         Kind = 'P'
	Delivery        Kind = 'D'
	OrderStatus     Kind = 'O'
	StockLevel      Kind = 'S'
	PopularItem     Kind = 'I'
	TopBalance      Kind = 'T'
	RelatedCustomer Kind = 'R'
)

// kindInfo holds the display name and the number of parameters after the tag.
var kindInfo = map[Kind]struct {
	name   string
	params int
}{
	NewOrder:        {"New Order", 4},
	Payment:         {"Payment", 4},
	Delivery:        {"Delivery", 2},
	OrderStatus:     {"Order Status", 3},
	StockLevel:      {"Stock Level", 4},
	PopularItem:     {"Popular Item", 3},
	TopBalance:      {"Top Balance", 0},
	RelatedCustomer: {"Related Customer", 3},
}

// Kinds returns every kind in script-tag order.
func Kinds() []Kind {
	return []Kind{NewOrder, Payment, Delivery, OrderStatus, StockLevel, PopularItem, TopBalance, RelatedCustomer}
}

// ParseKind returns the kind for a tag, or false if the tag is unknown.
func ParseKind(tag string) (Kind, bool) {
	if len(tag) != 1 {
		return 0, false
	}
	k := Kind(tag[0])
	_, ok := kindInfo[k]
	return k, ok
}

// String returns the display name, e.g. "New Order".
func (k Kind) String() string {
	if info, ok := kindInfo[k]; ok {
		return info.name
	}
	return "Unknown(" + string(rune(k)) + ")"
}

// Tag returns the one-character discriminant.
func (k Kind) Tag() string {
	return string(rune(k))
}

// Params returns the number of parameters a record of this kind carries
// after its tag.
func (k Kind) Params() int {
	return kindInfo[k].params
}
