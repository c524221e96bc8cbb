package logline

import (
	"testing"
	"time"

	"github.com/mfrisbey/scripts/internal/model"
)

func TestParseEnvelope(t *testing.T) {
	rec, ok := ParseEnvelope(`2016-05-12T10:00:00.050Z - INFO LOG CTX id1 <- OK {"commandName":"read","fileName":"/a/b"}`)
	if !ok {
		t.Fatalf("expected envelope to parse")
	}
	want := time.Date(2016, 5, 12, 10, 0, 0, 50*int(time.Millisecond), time.UTC)
	if !rec.Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", rec.Timestamp, want)
	}
	if rec.Level != "INFO" || rec.Subsystem != "LOG" || rec.Context != "CTX" || rec.ID != "id1" {
		t.Errorf("unexpected fields: %+v", rec)
	}
	if rec.Message != `<- OK {"commandName":"read","fileName":"/a/b"}` {
		t.Errorf("message = %q", rec.Message)
	}
}

func TestParseEnvelopeRejects(t *testing.T) {
	cases := map[string]string{
		"empty":            "",
		"no separator":     "2016-05-12T10:00:00Z INFO LOG CTX id1 -> x",
		"missing message":  "2016-05-12T10:00:00Z - INFO LOG CTX id1",
		"empty message":    "2016-05-12T10:00:00Z - INFO LOG CTX id1 ",
		"bad timestamp":    "yesterday - INFO LOG CTX id1 -> x",
		"too few fields":   "2016-05-12T10:00:00Z - INFO id1",
		"free text banner": "Starting the log at some point",
	}
	for name, line := range cases {
		if _, ok := ParseEnvelope(line); ok {
			t.Errorf("%s: expected no record for %q", name, line)
		}
	}
}

func TestParseTimestampLayouts(t *testing.T) {
	for _, s := range []string{
		"2016-05-12T10:00:00Z",
		"2016-05-12T10:00:00.123Z",
		"2016-05-12T10:00:00.123+02:00",
		"2016-05-12T10:00:00.123",
		"2016-05-12",
	} {
		if _, ok := ParseTimestamp(s); !ok {
			t.Errorf("expected %q to parse", s)
		}
	}
}

func TestSMBParse(t *testing.T) {
	var p SMBParser

	cmd, ok := p.Parse(`-> {"commandName":"read","fileName":"/a/b"}`)
	if !ok {
		t.Fatalf("expected outbound command to parse")
	}
	if cmd.Direction != model.DirectionOutbound || cmd.Name != "read" || cmd.FileName != "/a/b" || cmd.Status != "" || cmd.Degraded {
		t.Errorf("unexpected outbound command: %+v", cmd)
	}

	cmd, ok = p.Parse(`<- STATUS_SUCCESS {"commandName":"close"}`)
	if !ok {
		t.Fatalf("expected inbound command to parse")
	}
	if cmd.Direction != model.DirectionInbound || cmd.Status != "STATUS_SUCCESS" || cmd.FileName != NoPath {
		t.Errorf("unexpected inbound command: %+v", cmd)
	}

	cmd, ok = p.Parse(`<> ODD {"commandName":"x"}`)
	if !ok || cmd.Direction != model.DirectionUnknown {
		t.Errorf("expected unknown direction, got %+v ok=%v", cmd, ok)
	}
}

func TestSMBParseDegraded(t *testing.T) {
	var p SMBParser

	cmd, ok := p.Parse(`<- OK {"commandName":`)
	if !ok {
		t.Fatalf("expected degraded record, not a rejection")
	}
	if !cmd.Degraded || cmd.Name != UnknownCommand || cmd.FileName != NoPath || cmd.Status != "OK" {
		t.Errorf("unexpected degraded command: %+v", cmd)
	}

	cmd, ok = p.Parse(`<- OK no payload`)
	if !ok || !cmd.Degraded || cmd.Status != "OK no payload" {
		t.Errorf("unexpected payload-less command: %+v ok=%v", cmd, ok)
	}

	for _, msg := range []string{"", "->", "hello world", "->{}"} {
		if _, ok := p.Parse(msg); ok {
			t.Errorf("expected %q to be rejected", msg)
		}
	}
}

func TestParseHTTPRequest(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    HTTPRequest
	}{
		{
			name:    "request",
			message: "HTTP -> GET /api/assets/a%20b.jpg",
			want:    HTTPRequest{Source: "HTTP", Direction: model.DirectionOutbound, Method: "GET", URL: "/api/assets/a%20b.jpg"},
		},
		{
			name:    "response with status",
			message: "HTTP <- 200 GET /api/assets/a.jpg [x][y][2048b][z]",
			want:    HTTPRequest{Source: "HTTP", Direction: model.DirectionInbound, StatusCode: "200", Method: "GET", URL: "/api/assets/a.jpg [x][y][2048b][z]"},
		},
		{
			name:    "numeric method fallback",
			message: "HTTP <- 200 /only",
			want:    HTTPRequest{Source: "HTTP", Direction: model.DirectionInbound, Method: "200", URL: "/only"},
		},
		{
			name:    "unknown arrow",
			message: "HTTP ?? GET /x",
			want:    HTTPRequest{Source: "HTTP", Direction: model.DirectionUnknown, Method: "GET", URL: "/x"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseHTTPRequest(tt.message)
			if !ok {
				t.Fatalf("expected %q to parse", tt.message)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}

	for _, msg := range []string{"", "HTTP", "HTTP ->", "HTTP -> GET"} {
		if _, ok := ParseHTTPRequest(msg); ok {
			t.Errorf("expected %q to be rejected", msg)
		}
	}
}

func TestFriendlyPath(t *testing.T) {
	tests := []struct {
		raw, prefix, want string
	}{
		{"/content/dam/api/assets/folder/a%20b.jpg", "/api/assets", "/folder/a b.jpg"},
		{"/other/a%20b.jpg", "/api/assets", "/other/a b.jpg"},
		{"/api/assets/bad%zz", "/api/assets", "/bad%zz"},
		{"/api/assets/x", "", "/api/assets/x"},
		{"/api/assets/folder.json%3Flimit=50", "/api/assets", "/folder.json%3Flimit=50"},
		{"/api/assets/a%2Fb%23c%C3%A9", "/api/assets", "/a%2Fb%23cé"},
		{"/api/assets/bad%C3", "/api/assets", "/bad%C3"},
	}
	for _, tt := range tests {
		if got := FriendlyPath(tt.raw, tt.prefix); got != tt.want {
			t.Errorf("FriendlyPath(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestParseTransfer(t *testing.T) {
	tests := []struct {
		name string
		path string
		kind TransferKind
		want string
		size int64
	}{
		{"size known", "/a/b.bin [1][2][1048576b][3]", TransferSizeKnown, "/a/b.bin", 1048576},
		{"two groups", "/a/b.bin [1][2]", TransferSizeUnknown, "/a/b.bin", 0},
		{"three groups", "/a/b.bin [1][2][3]", TransferSizeUnknown, "/a/b.bin", 0},
		{"non numeric size", "/a/b.bin [1][2][bigb][3]", TransferSizeUnknown, "/a/b.bin", 0},
		{"no metadata", "/a/b.bin", TransferAbsent, "/a/b.bin", 0},
		{"single group", "/a/b.bin [1]", TransferAbsent, "/a/b.bin [1]", 0},
		{"no whitespace", "/a/b.bin[1][2]", TransferAbsent, "/a/b.bin[1][2]", 0},
		{"brackets inside groups", "/a [x] y[a][b]", TransferSizeUnknown, "/a", 0},
		{"five groups", "/a/b.bin [1][2][3][100b][4]", TransferSizeKnown, "/a/b.bin", 100},
		{"size group needs a count", "/a/b.bin [1][2][b][3]", TransferSizeUnknown, "/a/b.bin", 0},
		{"empty group", "/a/b.bin [1][]", TransferAbsent, "/a/b.bin [1][]", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseTransfer(tt.path)
			if got.Kind != tt.kind || got.Path != tt.want || got.Size != tt.size {
				t.Errorf("got %s %q %d, want %s %q %d", got.Kind, got.Path, got.Size, tt.kind, tt.want, tt.size)
			}
		})
	}
}
