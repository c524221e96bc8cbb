/*
PURPOSE:
  Parses the message tail of HTTP request trace lines: method, optional
  status code, URL, and the bracketed transfer metadata of responses.

REQUIREMENTS:
  User-specified:
  - The URL is percent-decoded and trimmed to the part after the API prefix.
  - Responses may carry "[..][..][<size>b][..]" or "[..][..]" metadata.

  Implementation-discovered:
  - Decoding leaves reserved escapes (%2F, %3F, %23, ...) encoded, so an
    escaped query never looks like a JSON listing.
  - Metadata groups may themselves contain brackets; the longest possible
    path wins, then the longest leading groups.

ERROR HANDLING:
  - No errors. Undecodable URLs are used as-is; unmatched metadata leaves
    the path unmodified (TransferAbsent).

RELATED FILES:
  - internal/engine/http.go
*/

package logline

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/mfrisbey/scripts/internal/model"
)

// NoStatus stands in for responses that carry no status code.
const NoStatus = "<no status>"

// HTTPRequest is the message tail of one HTTP trace line:
//
//	<source> <arrow> [<status> ]<method> <url...>
type HTTPRequest struct {
	Source     string
	Direction  model.Direction
	StatusCode string
	Method     string
	URL        string
}

// ParseHTTPRequest reports false when the message lacks a source, arrow,
// method or URL. A numeric token after the arrow is a status code only when
// a method and URL still follow it.
func ParseHTTPRequest(message string) (HTTPRequest, bool) {
	source, rest, ok := cutToken(message)
	if !ok {
		return HTTPRequest{}, false
	}
	arrow, rest, ok := cutToken(rest)
	if !ok {
		return HTTPRequest{}, false
	}

	req := HTTPRequest{Source: source, Direction: httpDirection(arrow)}

	first, afterFirst, ok := cutToken(rest)
	if !ok {
		return HTTPRequest{}, false
	}
	if isDigits(first) {
		if method, u, ok := cutToken(afterFirst); ok && u != "" {
			req.StatusCode = first
			req.Method = method
			req.URL = u
			return req, true
		}
	}
	if afterFirst == "" {
		return HTTPRequest{}, false
	}
	req.Method = first
	req.URL = afterFirst
	return req, true
}

// FriendlyPath percent-decodes rawURL and, when it contains prefix, keeps
// only what follows the prefix. Undecodable URLs are used as-is.
func FriendlyPath(rawURL, prefix string) string {
	path := rawURL
	if decoded, ok := decodeURI(rawURL); ok {
		path = decoded
	}
	if prefix == "" {
		return path
	}
	if i := strings.Index(path, prefix); i >= 0 {
		path = path[i+len(prefix):]
	}
	return path
}

// uriReserved are the characters whose escapes decodeURI keeps.
const uriReserved = ";/?:@&=+$,#"

// decodeURI decodes %XX escapes except those of reserved characters.
// It fails on malformed escapes and on results that are not valid UTF-8.
func decodeURI(s string) (string, bool) {
	if strings.IndexByte(s, '%') < 0 {
		return s, true
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '%' {
			b.WriteByte(s[i])
			continue
		}
		if i+2 >= len(s) {
			return "", false
		}
		hi, ok1 := unhex(s[i+1])
		lo, ok2 := unhex(s[i+2])
		if !ok1 || !ok2 {
			return "", false
		}
		c := hi<<4 | lo
		if c < utf8.RuneSelf && strings.IndexByte(uriReserved, c) >= 0 {
			b.WriteString(s[i : i+3])
		} else {
			b.WriteByte(c)
		}
		i += 2
	}
	out := b.String()
	if !utf8.ValidString(out) {
		return "", false
	}
	return out, true
}

func unhex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// TransferKind tells what the bracketed metadata of a response revealed.
type TransferKind int

const (
	// TransferAbsent: no metadata suffix, the path is unmodified.
	TransferAbsent TransferKind = iota
	// TransferSizeUnknown: metadata present but it carries no byte count.
	TransferSizeUnknown
	// TransferSizeKnown: metadata carries a byte count in Size.
	TransferSizeKnown
)

func (k TransferKind) String() string {
	switch k {
	case TransferSizeUnknown:
		return "size-unknown"
	case TransferSizeKnown:
		return "size-known"
	default:
		return "absent"
	}
}

// Transfer is the result of splitting a response path from its metadata.
type Transfer struct {
	Kind   TransferKind
	Path   string
	Size   int64
	Fields []string
}

// ParseTransfer splits the trailing metadata off a response path. It first
// tries "<path> [..][..][<size>b][..]" and then "<path> [..][..]". A size
// that is not a plain byte count still strips the metadata but leaves the
// transfer as TransferSizeUnknown.
func ParseTransfer(path string) Transfer {
	if head, groups, ok := splitMetadata(path, sizedShape); ok {
		t := Transfer{Kind: TransferSizeUnknown, Path: head, Fields: groups}
		digits := strings.TrimSuffix(groups[2], "b")
		if isDigits(digits) {
			if n, err := strconv.ParseInt(digits, 10, 64); err == nil {
				t.Kind = TransferSizeKnown
				t.Size = n
			}
		}
		return t
	}
	if head, groups, ok := splitMetadata(path, plainShape); ok {
		return Transfer{Kind: TransferSizeUnknown, Path: head, Fields: groups}
	}
	return Transfer{Kind: TransferAbsent, Path: path}
}

// groupRule accepts the body of one bracketed group.
type groupRule func(string) bool

func anyGroup(s string) bool { return s != "" }

func sizeGroup(s string) bool { return len(s) > 1 && strings.HasSuffix(s, "b") }

var (
	sizedShape = []groupRule{anyGroup, anyGroup, sizeGroup, anyGroup}
	plainShape = []groupRule{anyGroup, anyGroup}
)

// splitMetadata matches "<head><space>[g1][g2]...[gn]" where each group
// satisfies its rule. Heads and groups may contain brackets; the longest
// head wins, then the longest leading groups.
func splitMetadata(path string, shape []groupRule) (string, []string, bool) {
	if !strings.HasSuffix(path, "]") {
		return "", nil, false
	}
	for i := len(path) - 3; i >= 1; i-- {
		if !isSpace(path[i]) || path[i+1] != '[' {
			continue
		}
		if groups, ok := splitGroups(path[i+2:len(path)-1], shape); ok {
			return path[:i], groups, true
		}
	}
	return "", nil, false
}

// splitGroups splits s on "][" into len(shape) groups.
func splitGroups(s string, shape []groupRule) ([]string, bool) {
	if len(shape) == 1 {
		return []string{s}, shape[0](s)
	}
	for j := strings.LastIndex(s, "]["); j >= 0; j = strings.LastIndex(s[:j], "][") {
		first := s[:j]
		if !shape[0](first) {
			continue
		}
		if rest, ok := splitGroups(s[j+2:], shape[1:]); ok {
			return append([]string{first}, rest...), true
		}
	}
	return nil, false
}

func httpDirection(arrow string) model.Direction {
	switch arrow {
	case "->":
		return model.DirectionOutbound
	case "<-":
		return model.DirectionInbound
	default:
		return model.DirectionUnknown
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}
