package stats

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/roach88/wholesale/internal/script"
)

type rawSample struct {
	seq       int64
	kind      script.Kind
	latencyUs int64
	failed    bool
}

// Raw keeps every sample for CSV export.
type Raw struct {
	samples []rawSample
}

// NewRaw creates an empty sample log.
func NewRaw() *Raw {
	return &Raw{}
}

func (r *Raw) add(kind script.Kind, elapsed time.Duration, err error) {
	r.samples = append(r.samples, rawSample{
		seq:       int64(len(r.samples) + 1),
		kind:      kind,
		latencyUs: elapsed.Microseconds(),
		failed:    err != nil,
	})
}

// Len returns the number of samples.
func (r *Raw) Len() int {
	return len(r.samples)
}

// WriteCSV writes one row per sample in observation order under the header
// seq,operation,status,latency_us.
func (r *Raw) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"seq", "operation", "status", "latency_us"}); err != nil {
		return err
	}
	for _, s := range r.samples {
		status := "ok"
		if s.failed {
			status = "skipped"
		}
		rec := []string{
			strconv.FormatInt(s.seq, 10),
			s.kind.String(),
			status,
			strconv.FormatInt(s.latencyUs, 10),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
