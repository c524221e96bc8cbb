/*
PURPOSE:
  Correlates HTTP request begin/end lines by id. Aggregates like the SMB
  correlator and samples the bandwidth of large transfers.

REQUIREMENTS:
  User-specified:
  - Lines with neither arrow are counted as unknown format.
  - Bandwidth is sampled only for known sizes at or above the threshold,
    outside JSON listings.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine/runner.go
  - Uses: internal/logline, internal/stats

RELATED FILES:
  - internal/engine/smb.go
*/

package engine

import (
	"github.com/mfrisbey/scripts/internal/config"
	"github.com/mfrisbey/scripts/internal/logline"
	"github.com/mfrisbey/scripts/internal/model"
	"github.com/mfrisbey/scripts/internal/output"
	"github.com/mfrisbey/scripts/internal/stats"
)

// HTTPCorrelator joins HTTP request begin/end lines by id. Besides the SMB
// aggregates it samples the bandwidth of large binary transfers.
type HTTPCorrelator struct {
	cfg  *config.Config
	sink OperationSink

	pending   map[string]model.Pending
	runtimes  *stats.RuntimeAccumulator
	results   *stats.Counter
	longest   *stats.TopK[model.Operation]
	byPath    *stats.Counter
	bandwidth *stats.BandwidthSampler

	lines     int
	total     int
	startless int
	unknown   int
}

// NewHTTPCorrelator creates a correlator configured by cfg. sink may be nil.
func NewHTTPCorrelator(cfg *config.Config, policy stats.Policy, sink OperationSink) *HTTPCorrelator {
	return &HTTPCorrelator{
		cfg:       cfg,
		sink:      sink,
		pending:   make(map[string]model.Pending),
		runtimes:  stats.NewRuntimeAccumulator(cfg.Percentiles),
		results:   stats.NewCounter(),
		longest:   stats.NewTopK[model.Operation](cfg.TopCount, stats.Highest, policy),
		byPath:    stats.NewCounter(),
		bandwidth: stats.NewBandwidthSampler(cfg.RateSizeThreshold, cfg.JSONListingMarker, cfg.TopCount, policy),
	}
}

// Process handles one parsed line of the request trace.
func (c *HTTPCorrelator) Process(rec model.LogRecord) {
	c.lines++
	req, ok := logline.ParseHTTPRequest(rec.Message)
	if !ok {
		return
	}
	path := logline.FriendlyPath(req.URL, c.cfg.APIPrefix)

	switch req.Direction {
	case model.DirectionOutbound:
		c.total++
		c.pending[rec.ID] = model.Pending{Record: rec, Description: req.Method, Path: path}
		c.byPath.Inc(req.Method + ":" + path)

	case model.DirectionInbound:
		transfer := logline.ParseTransfer(path)
		if transfer.Kind != logline.TransferAbsent {
			path = transfer.Path
		}

		status := resultKey(req.StatusCode)
		begin, ok := c.pending[rec.ID]
		if !ok {
			c.total++
			c.startless++
			c.results.Inc(status)
			return
		}

		op := model.Operation{
			Category:    model.CategoryHTTP,
			ID:          rec.ID,
			Description: req.Method,
			Path:        path,
			Status:      status,
			Start:       begin.Record.Timestamp,
			End:         rec.Timestamp,
			Runtime:     rec.Timestamp.Sub(begin.Record.Timestamp),
		}
		c.runtimes.Add(op.Description, op.Runtime)
		c.longest.Add(op, op.RuntimeMs())
		c.results.Inc(op.Status)
		delete(c.pending, rec.ID)

		if transfer.Kind == logline.TransferSizeKnown {
			if rate, ok := c.bandwidth.Offer(op, transfer.Size); ok {
				output.Logger.Debug("Bandwidth sampled", "id", op.ID, "path", op.Path, "bytes", transfer.Size, "bytes_per_ms", rate)
			}
		}
		emit(c.sink, op)

	default:
		c.unknown++
	}
}

// Pending returns the number of requests still waiting for a response.
func (c *HTTPCorrelator) Pending() int {
	return len(c.pending)
}

// Bandwidth returns the bandwidth summary.
func (c *HTTPCorrelator) Bandwidth() model.BandwidthSummary {
	return c.bandwidth.Summary()
}

// Summary snapshots the aggregates for reporting.
func (c *HTTPCorrelator) Summary() model.CategorySummary {
	return model.CategorySummary{
		Name:       model.CategoryHTTP,
		Lines:      c.lines,
		Total:      c.total,
		Startless:  c.startless,
		Unknown:    c.unknown,
		Incomplete: incomplete(c.pending),
		ByMean:     c.runtimes.ByMean(),
		ByCount:    c.runtimes.ByCount(),
		Results:    c.results.Sorted(),
		Longest:    ranked(c.longest.Sorted()),
		Duplicates: c.byPath.Top(c.cfg.TopCount),
	}
}
