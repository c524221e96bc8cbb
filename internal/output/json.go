/*
PURPOSE:
  Writes the analysis as a single indented JSON document.
  Optimized for machine parsing and jq-style post-processing.

REQUIREMENTS:
  User-specified:
  - JSON output for easier parsing.

ARCHITECTURE INTEGRATION:
  - Called by: internal/cli (analyze --format json)
  - Consumes: internal/model.Analysis

ERROR HANDLING:
  - Returns error on write failure.

IMPLEMENTATION RULES:
  - Use encoding/json.NewEncoder.
  - One document per run; not meant for concurrent writers.
*/

package output

import (
	"encoding/json"
	"io"

	"github.com/mfrisbey/scripts/internal/model"
)

// JSONWriter writes analyses as JSON.
type JSONWriter struct {
	encoder *json.Encoder
}

// NewJSONWriter creates a new JSONWriter on w.
func NewJSONWriter(w io.Writer) *JSONWriter {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return &JSONWriter{encoder: enc}
}

// Write encodes one analysis.
func (jw *JSONWriter) Write(a *model.Analysis) error {
	return jw.encoder.Encode(a)
}
