// Package stats turns per-transaction latency samples into an end-of-run
// report and, optionally, Prometheus metrics.
//
// The Aggregator keeps one HdrHistogram per transaction kind plus one for
// the whole run. It is fed by the driver's single dispatch goroutine and
// does no locking. Metrics are safe for concurrent use and also count
// optimistic-update conflicts, which happen on fan-out goroutines.
package stats
