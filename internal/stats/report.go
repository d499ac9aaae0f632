package stats

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Report styles.
const (
	StylePlain = "plain"
	StyleTable = "table"
	StyleJSON  = "json"
)

// Percentile is one latency percentile in milliseconds.
type Percentile struct {
	Percentile float64 `json:"percentile"`
	Ms         float64 `json:"ms"`
}

// KindStats is the latency distribution of one transaction kind.
type KindStats struct {
	Kind        string       `json:"kind"`
	Count       int64        `json:"count"`
	Failed      int64        `json:"failed"`
	MeanMs      float64      `json:"mean_ms"`
	MinMs       float64      `json:"min_ms"`
	MaxMs       float64      `json:"max_ms"`
	Percentiles []Percentile `json:"percentiles"`
}

// Report is the end-of-run summary.
type Report struct {
	RunID       string      `json:"run_id"`
	Processed   int64       `json:"processed"`
	Skipped     int64       `json:"skipped"`
	Malformed   int64       `json:"malformed"`
	Seconds     float64     `json:"seconds"`
	Throughput  float64     `json:"throughput"`
	Percentiles []float64   `json:"-"`
	Kinds       []KindStats `json:"kinds"`
	All         KindStats   `json:"all"`
}

// ValidStyle reports whether style names a report style.
func ValidStyle(style string) bool {
	switch style {
	case StylePlain, StyleTable, StyleJSON:
		return true
	}
	return false
}

// Render writes the report in the given style.
func (r Report) Render(w io.Writer, style string) error {
	switch style {
	case StylePlain, "":
		return r.renderPlain(w)
	case StyleTable:
		return r.renderTable(w)
	case StyleJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	default:
		return fmt.Errorf("unsupported report style %q", style)
	}
}

func (r Report) renderPlain(w io.Writer) error {
	p := message.NewPrinter(language.English)
	var b strings.Builder
	p.Fprintf(&b, "Run ID: %s\n", r.RunID)
	p.Fprintf(&b, "Transactions processed: %d\n", r.Processed)
	p.Fprintf(&b, "Transactions skipped: %d\n", r.Skipped)
	p.Fprintf(&b, "Records malformed: %d\n", r.Malformed)
	p.Fprintf(&b, "Elapsed: %.3f s\n", r.Seconds)
	p.Fprintf(&b, "Throughput: %.2f txn/s\n", r.Throughput)

	header := r.header()
	for _, row := range r.rows() {
		args := make([]string, len(header)-1)
		for i, h := range header[1:] {
			args[i] = h + ": " + row[i+1]
		}
		fmt.Fprintf(&b, "%-16s - %s\n", row[0], strings.Join(args, ", "))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func (r Report) renderTable(w io.Writer) error {
	p := message.NewPrinter(language.English)
	if _, err := p.Fprintf(w, "Run ID: %s | Processed: %d | Skipped: %d | Malformed: %d | Elapsed: %.3f s | Throughput: %.2f txn/s\n",
		r.RunID, r.Processed, r.Skipped, r.Malformed, r.Seconds, r.Throughput); err != nil {
		return err
	}
	tb := tablewriter.NewWriter(w)
	tb.SetHeader(r.header())
	tb.AppendBulk(r.rows())
	tb.Render()
	return nil
}

func (r Report) header() []string {
	h := []string{"Kind", "Count", "Failed", "Mean(ms)", "Min(ms)", "Max(ms)"}
	for _, p := range r.Percentiles {
		h = append(h, "P"+strconv.FormatFloat(p, 'f', -1, 64)+"(ms)")
	}
	return h
}

func (r Report) rows() [][]string {
	kinds := make([]KindStats, 0, len(r.Kinds)+1)
	kinds = append(kinds, r.Kinds...)
	kinds = append(kinds, r.All)

	rows := make([][]string, 0, len(kinds))
	for _, k := range kinds {
		row := []string{
			k.Kind,
			strconv.FormatInt(k.Count, 10),
			strconv.FormatInt(k.Failed, 10),
			formatMs(k.MeanMs),
			formatMs(k.MinMs),
			formatMs(k.MaxMs),
		}
		for i := range r.Percentiles {
			v := 0.0
			if i < len(k.Percentiles) {
				v = k.Percentiles[i].Ms
			}
			row = append(row, formatMs(v))
		}
		rows = append(rows, row)
	}
	return rows
}

func formatMs(ms float64) string {
	return strconv.FormatFloat(ms, 'f', 3, 64)
}
