package prometheus

import (
	"bufio"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/MrEthical07/sessiongate"
	"github.com/MrEthical07/sessiongate/metrics/export/internaldefs"
)

// Source is what the exporter reads per scrape. *sessiongate.Engine
// implements it.
type Source interface {
	MetricsSnapshot() sessiongate.MetricsSnapshot
	AuditDropped() uint64
}

// Exporter renders the engine counters in the Prometheus text format.
type Exporter struct {
	source Source
}

// New returns an exporter reading from source.
func New(source Source) *Exporter {
	return &Exporter{source: source}
}

// Handler serves the exposition on every request.
func (p *Exporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_ = p.Write(w)
	})
}

// Render returns the exposition as a string.
func (p *Exporter) Render() string {
	var b strings.Builder
	_ = p.Write(&b)
	return b.String()
}

// Write renders the exposition to w. Disabled metrics with no dropped
// audit events render nothing.
func (p *Exporter) Write(w io.Writer) error {
	if p == nil || p.source == nil {
		return nil
	}

	snap := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snap.Counters) == 0 && len(snap.Histograms) == 0 && dropped == 0 {
		return nil
	}

	bw := bufio.NewWriter(w)
	for _, def := range internaldefs.CounterDefs {
		writeCounter(bw, def.Name, def.Help, snap.Counters[def.ID])
	}
	for _, def := range internaldefs.HistogramDefs {
		writeHistogram(bw, def.Name, def.Help, internaldefs.Cumulative(snap.Histograms[def.ID]))
	}
	writeCounter(bw, internaldefs.AuditDroppedName, internaldefs.AuditDroppedHelp, dropped)
	return bw.Flush()
}

func writeHeader(w *bufio.Writer, name, help, kind string) {
	w.WriteString("# HELP " + name + " " + escapeHelp(help) + "\n")
	w.WriteString("# TYPE " + name + " " + kind + "\n")
}

func writeCounter(w *bufio.Writer, name, help string, value uint64) {
	writeHeader(w, name, help, "counter")
	w.WriteString(name + " " + strconv.FormatUint(value, 10) + "\n")
}

func writeHistogram(w *bufio.Writer, name, help string, cumulative [internaldefs.BucketCount]uint64) {
	writeHeader(w, name, help, "histogram")
	for i, le := range internaldefs.HistogramBounds {
		w.WriteString(name + `_bucket{le="` + le + `"} ` + strconv.FormatUint(cumulative[i], 10) + "\n")
	}
	w.WriteString(name + "_count " + strconv.FormatUint(cumulative[internaldefs.BucketCount-1], 10) + "\n")
	// Snapshots carry bucket counts only.
	w.WriteString(name + "_sum 0\n")
}

func escapeHelp(help string) string {
	help = strings.ReplaceAll(help, `\`, `\\`)
	return strings.ReplaceAll(help, "\n", `\n`)
}
