/*
PURPOSE:
  Splits one raw trace line into its common envelope:
  timestamp, level, subsystem, context, id and free-text message.

REQUIREMENTS:
  User-specified:
  - Lines that do not have the envelope shape are dropped without error.
  - The timestamp is the only source of ordering.

  Implementation-discovered:
  - The second token is a literal "-" separator.
  - Tokens never contain spaces; the message is everything after the id.
  - A line whose timestamp does not parse is treated as unparseable:
    no runtime could be derived from it.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine (runner)
  - Produces: model.LogRecord

ERROR HANDLING:
  - Returns ok=false, never an error.

RELATED FILES:
  - internal/logline/smb.go
  - internal/logline/http.go
*/

package logline

import (
	"strings"
	"time"

	"github.com/mfrisbey/scripts/internal/model"
)

// timestampLayouts are tried in order. Layouts without a zone are read as local time.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp parses the envelope's first field.
func ParseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseEnvelope parses a line of the form
//
//	<timestamp> - <level> <subsystem> <context> <id> <message>
//
// and reports false when the line does not have that shape.
func ParseEnvelope(line string) (model.LogRecord, bool) {
	line = strings.TrimRight(line, "\r\n")

	var fields [6]string
	rest := line
	for i := range fields {
		tok, after, ok := cutToken(rest)
		if !ok {
			return model.LogRecord{}, false
		}
		fields[i] = tok
		rest = after
	}
	if fields[1] != "-" || rest == "" {
		return model.LogRecord{}, false
	}

	ts, ok := ParseTimestamp(fields[0])
	if !ok {
		return model.LogRecord{}, false
	}

	return model.LogRecord{
		Timestamp: ts,
		Level:     fields[2],
		Subsystem: fields[3],
		Context:   fields[4],
		ID:        fields[5],
		Message:   rest,
	}, true
}

// cutToken splits a non-empty, space-free token off the front of s.
// The token must be followed by a single space.
func cutToken(s string) (tok, rest string, ok bool) {
	i := strings.IndexByte(s, ' ')
	if i <= 0 {
		return "", "", false
	}
	return s[:i], s[i+1:], true
}
