/*
PURPOSE:
  Exports every completed operation to a CSV file as it is matched.
  Ensures data integrity by flushing writes immediately.

REQUIREMENTS:
  User-specified:
  - Output individual operations for spreadsheet analysis.

  Implementation-discovered:
  - Operations are ephemeral inside the engine; the export is the only
    place they survive the run.
  - Overwrites an existing file.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine (as an OperationSink)
  - Consumes: internal/model.Operation

ERROR HANDLING:
  - Returns error on file creation or write failure.

IMPLEMENTATION RULES:
  - Use encoding/csv.
  - Flush() after every write (critical for crash resilience).
  - Use Mutex so both correlators may share one writer.

USAGE:
  w, err := output.NewCSVWriter("operations.csv")
  w.Write(op)
  w.Close()

MAINTENANCE:
  - Update Write() mapping when Operation struct changes.
*/

package output

import (
	"encoding/csv"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/mfrisbey/scripts/internal/model"
)

// CSVWriter handles writing operations to a CSV file.
type CSVWriter struct {
	file   *os.File
	writer *csv.Writer
	mu     sync.Mutex
}

// NewCSVWriter creates a new CSVWriter.
// It overwrites the file if it exists.
func NewCSVWriter(path string) (*CSVWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	w := csv.NewWriter(f)

	header := []string{
		"category", "id", "description", "path", "status",
		"start", "end", "runtime_ms",
	}
	if err := w.Write(header); err != nil {
		f.Close()
		return nil, err
	}
	w.Flush()

	return &CSVWriter{
		file:   f,
		writer: w,
	}, nil
}

// Write writes a single operation to the CSV file.
// It is thread-safe.
func (cw *CSVWriter) Write(op model.Operation) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	record := []string{
		op.Category,
		op.ID,
		op.Description,
		op.Path,
		op.Status,
		op.Start.Format(time.RFC3339Nano),
		op.End.Format(time.RFC3339Nano),
		strconv.FormatFloat(op.RuntimeMs(), 'f', -1, 64),
	}

	if err := cw.writer.Write(record); err != nil {
		return err
	}
	cw.writer.Flush()
	return cw.writer.Error()
}

// Close closes the underlying file.
func (cw *CSVWriter) Close() error {
	cw.writer.Flush()
	return cw.file.Close()
}
