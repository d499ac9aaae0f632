// Package store provides a SQLite-backed kv.Store.
//
// Every business row lives in one table keyed by (tbl, key), with the row
// content held as canonical JSON (see package row). ConditionalWrite reads
// the row, compares the guard field and updates it inside one transaction;
// because the pool is limited to a single connection, concurrent callers
// on the same key are serialised and no update is lost.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package store
