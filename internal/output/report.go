/*
PURPOSE:
  Renders an Analysis as the human-readable performance report.

REQUIREMENTS:
  User-specified:
  - Global summary first: date range, elapsed minutes, per-minute rates,
    anomaly counts, mean bandwidth.
  - Then per category: incomplete entries, mean runtime, counts, results,
    longest running and most duplicated operations.
  - Finally the lowest bandwidth observed.

  Implementation-discovered:
  - Styling comes from a renderer bound to the destination writer, so
    pipes and files get plain text.

ARCHITECTURE INTEGRATION:
  - Called by: internal/cli (analyze --format text)
  - Consumes: internal/model.Analysis

ERROR HANDLING:
  - The first write error is kept and returned; later writes are skipped.
*/

package output

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mfrisbey/scripts/internal/model"
	"github.com/mfrisbey/scripts/internal/stats"
)

const rule = "------------------------------------"
const banner = "************************************"

var (
	colorCyan   = lipgloss.AdaptiveColor{Light: "30", Dark: "45"}
	colorDim    = lipgloss.AdaptiveColor{Light: "242", Dark: "240"}
	colorYellow = lipgloss.AdaptiveColor{Light: "136", Dark: "220"}
)

type reportWriter struct {
	w   io.Writer
	err error

	title   lipgloss.Style
	heading lipgloss.Style
	dim     lipgloss.Style
	warn    lipgloss.Style
}

func newReportWriter(w io.Writer) *reportWriter {
	r := lipgloss.NewRenderer(w)
	return &reportWriter{
		w:       w,
		title:   r.NewStyle().Bold(true).Foreground(colorCyan),
		heading: r.NewStyle().Bold(true),
		dim:     r.NewStyle().Foreground(colorDim),
		warn:    r.NewStyle().Bold(true).Foreground(colorYellow),
	}
}

func (rw *reportWriter) printf(format string, args ...any) {
	if rw.err != nil {
		return
	}
	_, rw.err = fmt.Fprintf(rw.w, format, args...)
}

func (rw *reportWriter) line(s string) {
	rw.printf("%s\n", s)
}

func (rw *reportWriter) section(title string) {
	rw.line("")
	rw.line(rw.dim.Render(banner))
	rw.line(rw.title.Render(title))
	rw.line(rw.dim.Render(banner))
}

func (rw *reportWriter) subsection(title string) {
	rw.line("")
	rw.line(rw.heading.Render(title))
	rw.line(rw.dim.Render(rule))
}

// WriteReport renders a to w.
func WriteReport(w io.Writer, a *model.Analysis) error {
	rw := newReportWriter(w)

	for _, name := range a.Missing {
		rw.line(rw.warn.Render(fmt.Sprintf("******** %s not found ********", name)))
	}

	rw.section("SUMMARY")
	if a.HasRange {
		rw.printf("date range: %s - %s\n", formatTime(a.First), formatTime(a.Last))
	} else {
		rw.line("date range: N/A")
	}
	rw.printf("elapsed minutes: %d\n", a.ElapsedMinutes())
	rw.printf("total smb commands: %d\n", a.SMB.Total)
	rw.printf("smb commands per minute: %s\n", perMinute(a, a.SMB.Total))
	rw.printf("total smb commands without begin: %d\n", a.SMB.Startless)
	rw.printf("total smb notifications sent: %d\n", a.SMB.Notifications)
	if a.SMB.Degraded > 0 {
		rw.printf("total smb commands with malformed payload: %d\n", a.SMB.Degraded)
	}
	rw.printf("total http requests: %d\n", a.HTTP.Total)
	rw.printf("http requests per minute: %s\n", perMinute(a, a.HTTP.Total))
	rw.printf("total http requests without begin: %d\n", a.HTTP.Startless)
	rw.printf("total http requests with unknown format: %d\n", a.HTTP.Unknown)
	bandwidth := "N/A"
	if a.Bandwidth.Available {
		bandwidth = fmt.Sprintf("%d KB/s", a.Bandwidth.MeanKBps)
	}
	rw.printf("average bandwidth: %s\n", bandwidth)
	rw.printf("   (%d occurrences greater than %d bytes sampled)\n", a.Bandwidth.Samples, a.Bandwidth.Threshold)

	writeCategory(rw, &a.SMB, a.TopCount)
	writeCategory(rw, &a.HTTP, a.TopCount)

	rw.subsection("LOWEST BANDWIDTH OBSERVED")
	for _, r := range a.Bandwidth.Lowest {
		op := r.Operation
		rw.printf("%s %s %s %s %d KB/sec\n", op.ID, formatTime(op.End), op.Description, op.Path, stats.ToKBps(r.Metric))
	}

	return rw.err
}

func writeCategory(rw *reportWriter, s *model.CategorySummary, topCount int) {
	rw.section(s.Name + " SUMMARY DATA")

	rw.subsection("INCOMPLETE " + s.Name + "S")
	for _, p := range s.Incomplete {
		rw.printf("%s %s %s\n", p.ID, p.Description, p.Path)
	}

	rw.subsection("AVG " + s.Name + " RUNTIME")
	for _, l := range s.ByMean {
		rw.printf("%s %dms%s\n", l.Label, l.MeanMs, percentiles(l.Percentiles))
	}

	rw.subsection(s.Name + " COUNTS")
	for _, l := range s.ByCount {
		rw.printf("%s %d\n", l.Label, l.Count)
	}

	rw.subsection(s.Name + " RESULT COUNTS")
	for _, c := range s.Results {
		rw.printf("%s %d\n", c.Key, c.Count)
	}

	rw.subsection(fmt.Sprintf("TOP %d %sS WITH LONGEST RUNTIME", len(s.Longest), s.Name))
	for _, r := range s.Longest {
		op := r.Operation
		rw.printf("%s %s %s %sms\n", op.ID, op.Description, op.Path, formatMs(r.Metric))
	}

	rw.subsection(fmt.Sprintf("TOP %d DUPLICATED %sS", topCount, s.Name))
	for _, c := range s.Duplicates {
		rw.printf("%s %d\n", c.Key, c.Count)
	}
}

func perMinute(a *model.Analysis, total int) string {
	n, ok := a.PerMinute(total)
	if !ok {
		return "N/A"
	}
	return fmt.Sprintf("%d", n)
}

func percentiles(p map[string]float64) string {
	if len(p) == 0 {
		return ""
	}
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) < len(keys[j])
		}
		return keys[i] < keys[j]
	})
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%sms", k, formatMs(p[k])))
	}
	return " (" + strings.Join(parts, " ") + ")"
}

func formatMs(ms float64) string {
	return fmt.Sprintf("%.0f", ms)
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC1123Z)
}
