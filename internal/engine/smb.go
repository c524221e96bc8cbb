/*
PURPOSE:
  Correlates SMB command begin/end lines by id and aggregates runtimes,
  results, longest commands and duplicated command/path pairs.

REQUIREMENTS:
  User-specified:
  - Responses without a begin are startless, except server notifications.
  - Only outbound commands and startless responses count toward the total.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine/runner.go (single consumer goroutine)
  - Uses: internal/logline, internal/stats

IMPLEMENTATION RULES:
  - Not safe for concurrent use; the runner owns it.
*/

package engine

import (
	"github.com/mfrisbey/scripts/internal/config"
	"github.com/mfrisbey/scripts/internal/logline"
	"github.com/mfrisbey/scripts/internal/model"
	"github.com/mfrisbey/scripts/internal/output"
	"github.com/mfrisbey/scripts/internal/stats"
)

// SMBCorrelator joins SMB command begin/end lines by id and folds each
// completed command into its aggregates. Not safe for concurrent use.
type SMBCorrelator struct {
	cfg    *config.Config
	parser logline.SMBParser
	sink   OperationSink

	// pending holds at most one begin per id; a repeated begin overwrites.
	pending  map[string]model.Pending
	runtimes *stats.RuntimeAccumulator
	results  *stats.Counter
	longest  *stats.TopK[model.Operation]
	byPath   *stats.Counter

	lines         int
	degraded      int
	total         int
	startless     int
	notifications int
}

// NewSMBCorrelator creates a correlator configured by cfg. sink may be nil.
func NewSMBCorrelator(cfg *config.Config, policy stats.Policy, sink OperationSink) *SMBCorrelator {
	return &SMBCorrelator{
		cfg:      cfg,
		sink:     sink,
		pending:  make(map[string]model.Pending),
		runtimes: stats.NewRuntimeAccumulator(cfg.Percentiles),
		results:  stats.NewCounter(),
		longest:  stats.NewTopK[model.Operation](cfg.TopCount, stats.Highest, policy),
		byPath:   stats.NewCounter(),
	}
}

// Process handles one parsed line of the command trace.
func (c *SMBCorrelator) Process(rec model.LogRecord) {
	c.lines++
	cmd, ok := c.parser.Parse(rec.Message)
	if !ok {
		return
	}
	if cmd.Degraded {
		c.degraded++
		output.Logger.Debug("SMB payload degraded", "id", rec.ID, "message", rec.Message)
	}

	if cmd.Direction == model.DirectionOutbound {
		c.total++
		c.pending[rec.ID] = model.Pending{Record: rec, Description: cmd.Name, Path: cmd.FileName}
		c.byPath.Inc(cmd.Name + ":" + cmd.FileName)
		return
	}

	begin, ok := c.pending[rec.ID]
	if !ok {
		if c.cfg.IsNotification(cmd.Name) {
			c.notifications++
			return
		}
		c.total++
		c.startless++
		c.results.Inc(resultKey(cmd.Status))
		return
	}

	op := model.Operation{
		Category:    model.CategorySMB,
		ID:          rec.ID,
		Description: cmd.Name,
		Path:        cmd.FileName,
		Status:      resultKey(cmd.Status),
		Start:       begin.Record.Timestamp,
		End:         rec.Timestamp,
		Runtime:     rec.Timestamp.Sub(begin.Record.Timestamp),
	}
	c.runtimes.Add(op.Description, op.Runtime)
	c.longest.Add(op, op.RuntimeMs())
	c.results.Inc(op.Status)
	delete(c.pending, rec.ID)
	emit(c.sink, op)
}

// Pending returns the number of begins still waiting for an end.
func (c *SMBCorrelator) Pending() int {
	return len(c.pending)
}

// Summary snapshots the aggregates for reporting.
func (c *SMBCorrelator) Summary() model.CategorySummary {
	return model.CategorySummary{
		Name:          model.CategorySMB,
		Lines:         c.lines,
		Total:         c.total,
		Startless:     c.startless,
		Notifications: c.notifications,
		Degraded:      c.degraded,
		Incomplete:    incomplete(c.pending),
		ByMean:        c.runtimes.ByMean(),
		ByCount:       c.runtimes.ByCount(),
		Results:       c.results.Sorted(),
		Longest:       ranked(c.longest.Sorted()),
		Duplicates:    c.byPath.Top(c.cfg.TopCount),
	}
}
