/*
PURPOSE:
  Parses the message tail of SMB command trace lines: direction arrow,
  optional status and the JSON command payload.

REQUIREMENTS:
  User-specified:
  - Missing fileName defaults to a "no path" sentinel.

  Implementation-discovered:
  - A missing or broken payload still yields a record, flagged Degraded.

ERROR HANDLING:
  - No errors. ok=false only when there is no leading arrow.
*/

package logline

import (
	"strings"

	"github.com/mfrisbey/scripts/internal/model"
	"github.com/valyala/fastjson"
)

const (
	// NoPath stands in for commands that carry no fileName.
	NoPath = "<no path>"
	// UnknownCommand stands in for commands whose payload names no command.
	UnknownCommand = "<unknown>"
)

// SMBCommand is the message tail of one SMB trace line:
//
//	<arrow> [status ]{"commandName":...,"fileName":...}
type SMBCommand struct {
	Direction model.Direction
	Status    string
	Name      string
	FileName  string
	// Degraded is set when the JSON payload was missing or did not parse.
	Degraded bool
}

// SMBParser parses SMB command messages. It reuses one fastjson.Parser and
// is therefore not safe for concurrent use.
type SMBParser struct {
	json fastjson.Parser
}

// Parse reports false when the message has no leading arrow.
func (p *SMBParser) Parse(message string) (SMBCommand, bool) {
	arrowEnd := strings.IndexFunc(message, func(r rune) bool {
		return r != '-' && r != '<' && r != '>'
	})
	if arrowEnd <= 0 || message[arrowEnd] != ' ' {
		return SMBCommand{}, false
	}
	arrow := message[:arrowEnd]
	rest := message[arrowEnd+1:]
	if rest == "" {
		return SMBCommand{}, false
	}

	cmd := SMBCommand{
		Direction: smbDirection(arrow),
		Name:      UnknownCommand,
		FileName:  NoPath,
	}

	brace := strings.IndexByte(rest, '{')
	if brace < 0 {
		cmd.Status = strings.TrimSpace(rest)
		cmd.Degraded = true
		return cmd, true
	}
	cmd.Status = strings.TrimSpace(rest[:brace])

	v, err := p.json.Parse(rest[brace:])
	if err != nil {
		cmd.Degraded = true
		return cmd, true
	}
	if name := v.GetStringBytes("commandName"); len(name) > 0 {
		cmd.Name = string(name)
	}
	if file := v.GetStringBytes("fileName"); len(file) > 0 {
		cmd.FileName = string(file)
	}
	return cmd, true
}

// smbDirection treats anything but a request arrow as a response.
func smbDirection(arrow string) model.Direction {
	switch arrow {
	case "->":
		return model.DirectionOutbound
	case "<-":
		return model.DirectionInbound
	default:
		return model.DirectionUnknown
	}
}
