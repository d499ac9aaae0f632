// Package script decodes the driver's input: a sequence of comma-separated
// records whose first field is a one-character transaction tag
// (N, P, D, O, S, I, T, R).
//
// A NewOrder header (N,c_id,w_id,d_id,count) is followed by exactly count
// detail lines "item_id,supply_w_id,quantity", which the Reader consumes
// into the same Record. Every parameter is validated as numeric at decode
// time; a record that fails is reported as a *MalformedError and decoding
// continues with the next record.
package script
