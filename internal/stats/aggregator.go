package stats

import (
	"time"

	hdrhistogram "github.com/HdrHistogram/hdrhistogram-go"

	"github.com/roach88/wholesale/internal/engine"
	"github.com/roach88/wholesale/internal/script"
)

// DefaultPercentiles are reported when none are configured.
var DefaultPercentiles = []float64{50, 90, 95, 99}

// Histogram bounds in microseconds: 1µs to one day, 3 significant digits.
const (
	minLatencyUs = 1
	maxLatencyUs = 24 * 60 * 60 * 1000 * 1000
	sigFigs      = 3
)

// histogram is one latency distribution plus its failure count.
type histogram struct {
	hist   *hdrhistogram.Histogram
	failed int64
}

func newHistogram() *histogram {
	return &histogram{hist: hdrhistogram.New(minLatencyUs, maxLatencyUs, sigFigs)}
}

func (h *histogram) record(elapsed time.Duration, err error) {
	us := min(elapsed.Microseconds(), maxLatencyUs)
	// Out-of-range values are clamped above, so RecordValue cannot fail.
	_ = h.hist.RecordValue(max(us, 0))
	if err != nil {
		h.failed++
	}
}

// Aggregator collects latency samples. It is not safe for concurrent use.
type Aggregator struct {
	percentiles []float64
	kinds       map[script.Kind]*histogram
	all         *histogram
	raw         *Raw
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithPercentiles sets the percentiles reported per kind.
func WithPercentiles(p ...float64) Option {
	return func(a *Aggregator) {
		if len(p) > 0 {
			a.percentiles = p
		}
	}
}

// WithRaw also records every sample into r.
func WithRaw(r *Raw) Option {
	return func(a *Aggregator) {
		a.raw = r
	}
}

// NewAggregator creates an empty Aggregator.
func NewAggregator(opts ...Option) *Aggregator {
	a := &Aggregator{
		percentiles: DefaultPercentiles,
		kinds:       make(map[script.Kind]*histogram),
		all:         newHistogram(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

var _ engine.Sampler = (*Aggregator)(nil)

// Observe implements engine.Sampler. Failed transactions are sampled too.
func (a *Aggregator) Observe(kind script.Kind, elapsed time.Duration, err error) {
	h, ok := a.kinds[kind]
	if !ok {
		h = newHistogram()
		a.kinds[kind] = h
	}
	h.record(elapsed, err)
	a.all.record(elapsed, err)
	if a.raw != nil {
		a.raw.add(kind, elapsed, err)
	}
}

// Count returns how many samples were observed for kind.
func (a *Aggregator) Count(kind script.Kind) int64 {
	if h, ok := a.kinds[kind]; ok {
		return h.hist.TotalCount()
	}
	return 0
}

// Report combines the run summary with the collected distributions. Kinds
// appear in script-tag order; kinds never seen are omitted.
func (a *Aggregator) Report(sum engine.Summary) Report {
	r := Report{
		RunID:       sum.RunID,
		Processed:   sum.Processed,
		Skipped:     sum.Skipped,
		Malformed:   sum.Malformed,
		Seconds:     sum.Elapsed.Seconds(),
		Percentiles: a.percentiles,
	}
	if r.Seconds > 0 {
		r.Throughput = float64(sum.Processed) / r.Seconds
	}
	for _, k := range script.Kinds() {
		if h, ok := a.kinds[k]; ok {
			r.Kinds = append(r.Kinds, a.kindStats(k.String(), h))
		}
	}
	r.All = a.kindStats("ALL", a.all)
	return r
}

func (a *Aggregator) kindStats(name string, h *histogram) KindStats {
	ks := KindStats{
		Kind:   name,
		Count:  h.hist.TotalCount(),
		Failed: h.failed,
	}
	if ks.Count == 0 {
		return ks
	}
	ks.MeanMs = h.hist.Mean() / 1000
	ks.MinMs = float64(h.hist.Min()) / 1000
	ks.MaxMs = float64(h.hist.Max()) / 1000
	for _, p := range a.percentiles {
		ks.Percentiles = append(ks.Percentiles, Percentile{
			Percentile: p,
			Ms:         float64(h.hist.ValueAtPercentile(p)) / 1000,
		})
	}
	return ks
}
