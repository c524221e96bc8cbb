/*
PURPOSE:
  Defines the core data structures shared by the parser, the correlators
  and the report writers.

REQUIREMENTS:
  User-specified:
  - A parsed log line keeps timestamp, level, subsystem, context, id and message.
  - A completed operation carries id, description, path, status and runtime.

  Implementation-discovered:
  - Summaries are plain data so the JSON report can encode them directly.
  - Runtimes stay time.Duration internally; milliseconds are derived.

ARCHITECTURE INTEGRATION:
  - Used by: internal/logline, internal/stats, internal/engine, internal/output, internal/probe
  - Shared across boundaries.

ERROR HANDLING:
  - None (pure data structs).

IMPLEMENTATION RULES:
  - Keep structs simple and public.
  - No behaviour beyond small derived-value helpers.

RELATED FILES:
  - internal/output/report.go
  - internal/output/json.go

MAINTENANCE:
  - Update the report writers when adding summary fields.
*/

package model

import (
	"math"
	"time"
)

// Category names used for stream selection, CSV export and report sections.
const (
	CategorySMB  = "SMB COMMAND"
	CategoryHTTP = "HTTP REQUEST"
)

// Direction is the begin/end marker carried by a trace line.
type Direction int

const (
	DirectionUnknown Direction = iota
	DirectionOutbound
	DirectionInbound
)

// String returns the arrow the direction was parsed from.
func (d Direction) String() string {
	switch d {
	case DirectionOutbound:
		return "->"
	case DirectionInbound:
		return "<-"
	default:
		return "?"
	}
}

// LogRecord is one parsed line of either trace. Immutable once parsed.
type LogRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Subsystem string    `json:"subsystem"`
	Context   string    `json:"context"`
	ID        string    `json:"id"`
	Message   string    `json:"message"`
}

// Pending is a begin record waiting in a correlator's table for its end.
type Pending struct {
	Record      LogRecord
	Description string
	Path        string
}

// Operation is a matched begin/end pair.
type Operation struct {
	Category    string        `json:"category"`
	ID          string        `json:"id"`
	Description string        `json:"description"`
	Path        string        `json:"path"`
	Status      string        `json:"status"`
	Start       time.Time     `json:"start"`
	End         time.Time     `json:"end"`
	Runtime     time.Duration `json:"runtime"`
}

// RuntimeMs returns the runtime in (fractional) milliseconds.
func (o Operation) RuntimeMs() float64 {
	return float64(o.Runtime) / float64(time.Millisecond)
}

// Incomplete is a begin record still pending at end of run.
type Incomplete struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Path        string    `json:"path"`
	Start       time.Time `json:"start"`
}

// LabelStat is the latency summary of one operation label.
type LabelStat struct {
	Label       string             `json:"label"`
	Count       int                `json:"count"`
	MeanMs      int64              `json:"mean_ms"`
	Percentiles map[string]float64 `json:"percentiles_ms,omitempty"`
}

// CountStat is one row of a histogram.
type CountStat struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Ranked is an operation retained by a top-K tracker with the metric it was ranked by.
type Ranked struct {
	Operation Operation `json:"operation"`
	Metric    float64   `json:"metric"`
}

// CategorySummary holds everything reported for one traced category.
type CategorySummary struct {
	Name          string       `json:"name"`
	Lines         int          `json:"lines"`
	Total         int          `json:"total"`
	Startless     int          `json:"startless"`
	Notifications int          `json:"notifications"`
	Unknown       int          `json:"unknown_format"`
	Degraded      int          `json:"degraded_payloads"`
	Incomplete    []Incomplete `json:"incomplete"`
	ByMean        []LabelStat  `json:"by_mean"`
	ByCount       []LabelStat  `json:"by_count"`
	Results       []CountStat  `json:"results"`
	Longest       []Ranked     `json:"longest"`
	Duplicates    []CountStat  `json:"duplicates"`
}

// BandwidthSummary reports the throughput samples of large transfers.
// Rates in Lowest are bytes per millisecond.
type BandwidthSummary struct {
	Samples   int      `json:"samples"`
	Available bool     `json:"available"`
	MeanKBps  int64    `json:"mean_kbps"`
	Threshold int64    `json:"threshold_bytes"`
	Lowest    []Ranked `json:"lowest"`
}

// Analysis is the result of one run over both traces.
type Analysis struct {
	RunID     string           `json:"run_id"`
	TopCount  int              `json:"top_count"`
	First     time.Time        `json:"first"`
	Last      time.Time        `json:"last"`
	HasRange  bool             `json:"has_range"`
	Missing   []string         `json:"missing_streams,omitempty"`
	SMB       CategorySummary  `json:"smb"`
	HTTP      CategorySummary  `json:"http"`
	Bandwidth BandwidthSummary `json:"bandwidth"`
}

// ElapsedMinutes is the rounded number of minutes between the first and last record.
func (a *Analysis) ElapsedMinutes() int64 {
	if !a.HasRange {
		return 0
	}
	return int64(math.Round(a.Last.Sub(a.First).Minutes()))
}

// PerMinute returns total/elapsed minutes rounded, or false when no whole minute elapsed.
func (a *Analysis) PerMinute(total int) (int64, bool) {
	minutes := a.ElapsedMinutes()
	if minutes <= 0 {
		return 0, false
	}
	return int64(math.Round(float64(total) / float64(minutes))), true
}

// ProbeResult is the outcome of one bandwidth probe download.
type ProbeResult struct {
	Flavor     string        `json:"flavor"`
	StatusCode int           `json:"status_code"`
	Bytes      int64         `json:"bytes"`
	Elapsed    time.Duration `json:"elapsed"`
	File       string        `json:"file"`
	Error      string        `json:"error,omitempty"`
}

// RateKBps mirrors the probe's rate formula: round(bytes/ms), scaled to KB/s.
func (r ProbeResult) RateKBps() int64 {
	ms := r.Elapsed.Milliseconds()
	if ms <= 0 {
		return 0
	}
	perMs := math.Round(float64(r.Bytes) / float64(ms))
	return int64(math.Round(perMs * 1000 / 1024))
}
