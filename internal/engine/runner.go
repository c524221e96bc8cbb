/*
PURPOSE:
  High-level runner that reads both traces to completion and assembles
  one Analysis from the two correlators.

REQUIREMENTS:
  User-specified:
  - Process the SMB command trace and the HTTP request trace independently.
  - A missing trace must not stop the run; report whatever was read.
  - One forward pass per file, no second pass.

  Implementation-discovered:
  - Files are read concurrently but every line is handled by a single
    consumer goroutine, so correlator state needs no locks.
  - The first/last timestamps span both traces.

ARCHITECTURE INTEGRATION:
  - Called by: internal/cli
  - Uses: internal/logline, internal/engine correlators, internal/output

ERROR HANDLING:
  - Logs missing or unreadable traces and continues (resilience).
  - Lines over maxLineSize are skipped and counted; the rest of the trace
    is still read.
  - Only configuration errors are returned.

IMPLEMENTATION RULES:
  - remaining starts at the number of sources.
  - Every source sends exactly one done event, success or failure.
  - The consumer stops when remaining reaches zero.

USAGE:
  analysis, err := engine.Analyze(cfg, "/path/to/logs", nil)

RELATED FILES:
  - internal/engine/smb.go
  - internal/engine/http.go
  - internal/engine/source.go
*/

package engine

import (
	"bufio"
	"errors"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mfrisbey/scripts/internal/config"
	"github.com/mfrisbey/scripts/internal/logline"
	"github.com/mfrisbey/scripts/internal/model"
	"github.com/mfrisbey/scripts/internal/output"
	"github.com/mfrisbey/scripts/internal/stats"
)

// maxLineSize bounds a single trace line.
const maxLineSize = 1024 * 1024

// OperationSink receives every completed operation as it is matched.
type OperationSink interface {
	Write(op model.Operation) error
}

// Correlator consumes the parsed lines of one trace.
type Correlator interface {
	Process(rec model.LogRecord)
	Summary() model.CategorySummary
}

// Source is one trace to read.
type Source struct {
	Name     string
	Category string
	Open     func() (io.ReadCloser, error)
}

// FileSource returns a Source that resolves name in dir when opened.
func FileSource(dir, name, category string) Source {
	return Source{
		Name:     name,
		Category: category,
		Open: func() (io.ReadCloser, error) {
			path, err := ResolveLog(dir, name)
			if err != nil {
				return nil, err
			}
			return OpenLog(path)
		},
	}
}

type event struct {
	source  int
	line    string
	done    bool
	lines   int
	skipped int
	err     error
}

// Analyze reads the configured traces from dir.
func Analyze(cfg *config.Config, dir string, sink OperationSink) (*model.Analysis, error) {
	sources := []Source{
		FileSource(dir, cfg.SMBLog, model.CategorySMB),
		FileSource(dir, cfg.HTTPLog, model.CategoryHTTP),
	}
	return Run(cfg, sources, sink)
}

// Run reads every source to completion and returns the combined analysis.
func Run(cfg *config.Config, sources []Source, sink OperationSink) (*model.Analysis, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	policy, err := stats.ParsePolicy(cfg.TopKPolicy)
	if err != nil {
		return nil, err
	}

	smb := NewSMBCorrelator(cfg, policy, sink)
	httpc := NewHTTPCorrelator(cfg, policy, sink)
	correlators := map[string]Correlator{
		model.CategorySMB:  smb,
		model.CategoryHTTP: httpc,
	}

	analysis := &model.Analysis{
		RunID:    uuid.NewString(),
		TopCount: cfg.TopCount,
	}
	output.Logger.Debug("Starting analysis", "run_id", analysis.RunID, "sources", len(sources))

	events := make(chan event, 256)
	for i, src := range sources {
		go readSource(i, src, events)
	}

	remaining := len(sources)
	for remaining > 0 {
		ev := <-events
		src := sources[ev.source]
		if ev.done {
			remaining--
			switch {
			case errors.Is(ev.err, ErrStreamMissing):
				output.Logger.Warn("Log not found", "log", src.Name, "error", ev.err)
				analysis.Missing = append(analysis.Missing, src.Name)
			case ev.err != nil:
				output.Logger.Error("Failed reading log", "log", src.Name, "lines", ev.lines, "error", ev.err)
			default:
				output.Logger.Info("Finished log", "log", src.Name, "lines", ev.lines)
			}
			if ev.skipped > 0 {
				output.Logger.Warn("Skipped oversized lines", "log", src.Name, "count", ev.skipped, "max_bytes", maxLineSize)
			}
			continue
		}

		rec, ok := logline.ParseEnvelope(ev.line)
		if !ok {
			continue
		}
		c, ok := correlators[src.Category]
		if !ok {
			continue
		}
		observe(analysis, rec.Timestamp)
		c.Process(rec)
	}

	analysis.SMB = smb.Summary()
	analysis.HTTP = httpc.Summary()
	analysis.Bandwidth = httpc.Bandwidth()
	return analysis, nil
}

// readSource streams src's lines to events and always finishes with one done event.
// Lines longer than maxLineSize are skipped and counted; reading continues after them.
func readSource(index int, src Source, events chan<- event) {
	rc, err := src.Open()
	if err != nil {
		events <- event{source: index, done: true, err: err}
		return
	}
	defer rc.Close()

	reader := bufio.NewReaderSize(rc, 64*1024)
	lines, skipped := 0, 0
	for {
		raw, tooLong, err := readLine(reader, maxLineSize)
		if len(raw) > 0 || tooLong {
			lines++
		}
		switch {
		case tooLong:
			skipped++
		case len(raw) > 0:
			events <- event{source: index, line: strings.TrimRight(string(raw), "\r\n")}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			events <- event{source: index, done: true, lines: lines, skipped: skipped, err: err}
			return
		}
	}
	events <- event{source: index, done: true, lines: lines, skipped: skipped}
}

// readLine returns the next line including its terminator. When the line
// exceeds limit, the rest of it is consumed and tooLong is set instead.
func readLine(r *bufio.Reader, limit int) (line []byte, tooLong bool, err error) {
	for {
		frag, readErr := r.ReadSlice('\n')
		if !tooLong {
			if len(line)+len(frag) > limit {
				tooLong, line = true, nil
			} else {
				line = append(line, frag...)
			}
		}
		if readErr == bufio.ErrBufferFull {
			continue
		}
		return line, tooLong, readErr
	}
}

func observe(a *model.Analysis, ts time.Time) {
	if !a.HasRange {
		a.First, a.Last, a.HasRange = ts, ts, true
		return
	}
	if ts.Before(a.First) {
		a.First = ts
	}
	if ts.After(a.Last) {
		a.Last = ts
	}
}

func emit(sink OperationSink, op model.Operation) {
	if sink == nil {
		return
	}
	if err := sink.Write(op); err != nil {
		output.Logger.Error("Failed to export operation", "id", op.ID, "error", err)
	}
}

// resultKey keeps responses without a status visible in the result counts.
func resultKey(status string) string {
	if status == "" {
		return logline.NoStatus
	}
	return status
}

func incomplete(pending map[string]model.Pending) []model.Incomplete {
	out := make([]model.Incomplete, 0, len(pending))
	for id, p := range pending {
		out = append(out, model.Incomplete{
			ID:          id,
			Description: p.Description,
			Path:        p.Path,
			Start:       p.Record.Timestamp,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func ranked(entries []stats.Entry[model.Operation]) []model.Ranked {
	out := make([]model.Ranked, 0, len(entries))
	for _, e := range entries {
		out = append(out, model.Ranked{Operation: e.Item, Metric: e.Metric})
	}
	return out
}
