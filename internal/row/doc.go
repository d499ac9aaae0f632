// Package row defines the data model every store speaks: a Key naming one
// row, and Fields holding its scalar Values.
//
// Values form a sealed set (Null, String, Int, Bool, Decimal). Money, tax
// rates and discounts are Decimals backed by cockroachdb/apd, so totals
// are exact and never pass through float64.
//
// # Canonical encoding
//
// Rows are persisted as canonical JSON (MarshalFields): sorted keys,
// NFC-normalised strings, no HTML escaping, decimals as strings. Equality
// of values, and therefore the guard comparison in conditional writes, is
// defined on this encoding (see Equal).
//
// # Keys
//
// Key.String zero-pads every identifier part, so the encoded keys of a
// table sort in identifier order and Key.Range yields a contiguous interval
// for prefix scans on any ordered store.
package row
