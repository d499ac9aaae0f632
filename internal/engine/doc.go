// Package engine runs transaction scripts against a kv.Store.
//
// It provides the three mechanisms every transaction is built from:
//
//   - Updater: the optimistic read-compute-conditional-write loop. A row's
//     guard field (a counter the write always changes) is re-read on every
//     attempt and used as the write's expectation, so concurrent updates
//     to the same row are never lost. Contention retries without limit;
//     compute errors abort immediately.
//   - Pool and FanOut: a process-wide bounded pool that runs a handler's
//     independent sub-operations concurrently and returns every item's
//     outcome in input order.
//   - Driver: the single-threaded dispatcher. It decodes records with
//     package script, routes each to the Handler for its kind, times it,
//     writes a per-transaction block and keeps the processed, skipped and
//     malformed counts in the Summary it returns.
//
// # Error Handling
//
// A failed transaction never stops a run. Its error is classified by
// CodeOf, logged with its sequence number and kind, rendered as
// "Transaction Skipped!" and counted. Row updates applied before the
// failure stay applied; there is no rollback.
package engine
