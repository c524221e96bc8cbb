package engine

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/mfrisbey/scripts/internal/config"
	"github.com/mfrisbey/scripts/internal/logline"
	"github.com/mfrisbey/scripts/internal/model"
	"github.com/mfrisbey/scripts/internal/stats"
)

var base = time.Date(2016, 5, 12, 10, 0, 0, 0, time.UTC)

// line formats one trace line offset ms from base.
func line(ms int, id, message string) string {
	ts := base.Add(time.Duration(ms) * time.Millisecond).Format("2006-01-02T15:04:05.000Z07:00")
	return fmt.Sprintf("%s - INFO LOG CTX %s %s", ts, id, message)
}

func record(t *testing.T, s string) model.LogRecord {
	t.Helper()
	rec, ok := logline.ParseEnvelope(s)
	if !ok {
		t.Fatalf("test line did not parse: %q", s)
	}
	return rec
}

type memorySink struct {
	ops []model.Operation
}

func (m *memorySink) Write(op model.Operation) error {
	m.ops = append(m.ops, op)
	return nil
}

func stringSource(name, category string, lines ...string) Source {
	return Source{
		Name:     name,
		Category: category,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(strings.Join(lines, "\n") + "\n")), nil
		},
	}
}

func missingSource(name, category string) Source {
	return Source{
		Name:     name,
		Category: category,
		Open: func() (io.ReadCloser, error) {
			return nil, fmt.Errorf("%w: %s", ErrStreamMissing, name)
		},
	}
}

func TestSMBMatchedPair(t *testing.T) {
	sink := &memorySink{}
	c := NewSMBCorrelator(config.DefaultConfig(), stats.PolicyBestDelta, sink)
	c.Process(record(t, line(0, "id1", `-> {"commandName":"read","fileName":"/a/b"}`)))
	c.Process(record(t, line(50, "id1", `<- OK {"commandName":"read","fileName":"/a/b"}`)))

	if len(sink.ops) != 1 {
		t.Fatalf("expected one completed operation, got %d", len(sink.ops))
	}
	op := sink.ops[0]
	if op.Description != "read" || op.Status != "OK" || op.Runtime != 50*time.Millisecond || op.Path != "/a/b" {
		t.Errorf("unexpected operation: %+v", op)
	}

	s := c.Summary()
	if s.Total != 1 || s.Startless != 0 || len(s.Incomplete) != 0 || c.Pending() != 0 {
		t.Errorf("unexpected summary counters: %+v", s)
	}
	if len(s.Results) != 1 || s.Results[0] != (model.CountStat{Key: "OK", Count: 1}) {
		t.Errorf("results = %+v", s.Results)
	}
	if len(s.ByMean) != 1 || s.ByMean[0].MeanMs != 50 || s.ByMean[0].Count != 1 {
		t.Errorf("by mean = %+v", s.ByMean)
	}
	if len(s.Longest) != 1 || s.Longest[0].Metric != 50 {
		t.Errorf("longest = %+v", s.Longest)
	}
	if len(s.Duplicates) != 1 || s.Duplicates[0].Key != "read:/a/b" {
		t.Errorf("duplicates = %+v", s.Duplicates)
	}
}

func TestSMBNotificationAndStartless(t *testing.T) {
	c := NewSMBCorrelator(config.DefaultConfig(), stats.PolicyBestDelta, nil)
	c.Process(record(t, line(0, "n1", `<- OK {"commandName":"change_notify","fileName":"/dir"}`)))
	c.Process(record(t, line(1, "n2", `<- OK {"commandName":"nt_transact_notify_change"}`)))
	c.Process(record(t, line(2, "s1", `<- DENIED {"commandName":"read","fileName":"/x"}`)))

	s := c.Summary()
	if s.Notifications != 2 {
		t.Errorf("notifications = %d, want 2", s.Notifications)
	}
	if s.Startless != 1 || s.Total != 1 {
		t.Errorf("startless = %d total = %d, want 1 and 1", s.Startless, s.Total)
	}
	if len(s.Results) != 1 || s.Results[0].Key != "DENIED" {
		t.Errorf("startless status not counted: %+v", s.Results)
	}
}

func TestSMBIncompleteAndDegraded(t *testing.T) {
	c := NewSMBCorrelator(config.DefaultConfig(), stats.PolicyBestDelta, nil)
	c.Process(record(t, line(0, "a", `-> {"commandName":"open"}`)))
	c.Process(record(t, line(5, "b", `-> {"commandName":`)))

	s := c.Summary()
	if len(s.Incomplete) != 2 {
		t.Fatalf("incomplete = %+v", s.Incomplete)
	}
	if s.Incomplete[0].ID != "a" || s.Incomplete[0].Path != logline.NoPath {
		t.Errorf("first incomplete = %+v", s.Incomplete[0])
	}
	if s.Incomplete[1].Description != logline.UnknownCommand || s.Degraded != 1 {
		t.Errorf("degraded payload not recorded: %+v degraded=%d", s.Incomplete[1], s.Degraded)
	}
}

func TestHTTPDuplicateBeginOverwrites(t *testing.T) {
	sink := &memorySink{}
	c := NewHTTPCorrelator(config.DefaultConfig(), stats.PolicyBestDelta, sink)
	c.Process(record(t, line(0, "r1", "HTTP -> GET /api/assets/first.jpg")))
	c.Process(record(t, line(100, "r1", "HTTP -> GET /api/assets/second.jpg")))
	c.Process(record(t, line(130, "r1", "HTTP <- 200 GET /api/assets/second.jpg [a][b]")))
	c.Process(record(t, line(140, "r1", "HTTP <- 200 GET /api/assets/second.jpg [a][b]")))

	if len(sink.ops) != 1 {
		t.Fatalf("expected one completion, got %d", len(sink.ops))
	}
	if sink.ops[0].Runtime != 30*time.Millisecond || sink.ops[0].Path != "/second.jpg" {
		t.Errorf("completion not computed from the second begin: %+v", sink.ops[0])
	}
	s := c.Summary()
	if s.Total != 3 || s.Startless != 1 {
		t.Errorf("total = %d startless = %d, want 3 and 1", s.Total, s.Startless)
	}
}

func TestHTTPBandwidthSampling(t *testing.T) {
	cfg := config.DefaultConfig()
	c := NewHTTPCorrelator(cfg, stats.PolicyBestDelta, nil)

	// 2 MiB in 1000ms: sampled.
	c.Process(record(t, line(0, "big", "HTTP -> GET /api/assets/big.bin")))
	c.Process(record(t, line(1000, "big", "HTTP <- 200 GET /api/assets/big.bin [x][y][2097152b][z]")))
	// below threshold.
	c.Process(record(t, line(0, "small", "HTTP -> GET /api/assets/small.bin")))
	c.Process(record(t, line(10, "small", "HTTP <- 200 GET /api/assets/small.bin [x][y][1024b][z]")))
	// listing marker.
	c.Process(record(t, line(0, "list", "HTTP -> GET /api/assets/folder.json?limit=50")))
	c.Process(record(t, line(10, "list", "HTTP <- 200 GET /api/assets/folder.json?limit=50 [x][y][4194304b][z]")))
	// no size available.
	c.Process(record(t, line(0, "nosize", "HTTP -> GET /api/assets/nosize.bin")))
	c.Process(record(t, line(10, "nosize", "HTTP <- 200 GET /api/assets/nosize.bin [x][y]")))

	bw := c.Bandwidth()
	if bw.Samples != 1 || !bw.Available {
		t.Fatalf("bandwidth = %+v, want exactly one sample", bw)
	}
	// round(2097152/1000) = 2097 B/ms -> round(2097*1000/1024) = 2048 KB/s
	if bw.MeanKBps != 2048 {
		t.Errorf("mean = %d KB/s, want 2048", bw.MeanKBps)
	}
	if len(bw.Lowest) != 1 || bw.Lowest[0].Operation.Path != "/big.bin" || bw.Lowest[0].Metric != 2097 {
		t.Errorf("lowest = %+v", bw.Lowest)
	}
}

func TestHTTPEscapedQueryIsNotListing(t *testing.T) {
	c := NewHTTPCorrelator(config.DefaultConfig(), stats.PolicyBestDelta, nil)
	c.Process(record(t, line(0, "q", "HTTP -> GET /api/assets/folder.json%3Flimit=50")))
	c.Process(record(t, line(1000, "q", "HTTP <- 200 GET /api/assets/folder.json%3Flimit=50 [x][y][2097152b][z]")))

	bw := c.Bandwidth()
	if bw.Samples != 1 || bw.Lowest[0].Operation.Path != "/folder.json%3Flimit=50" {
		t.Errorf("bandwidth = %+v", bw)
	}
}

func TestHTTPResponseWithoutStatus(t *testing.T) {
	sink := &memorySink{}
	c := NewHTTPCorrelator(config.DefaultConfig(), stats.PolicyBestDelta, sink)
	c.Process(record(t, line(0, "a", "HTTP -> GET /api/assets/a")))
	c.Process(record(t, line(5, "a", "HTTP <- GET /api/assets/a [x][y]")))
	c.Process(record(t, line(6, "b", "HTTP <- GET /api/assets/b [x][y]")))

	s := c.Summary()
	if len(s.Results) != 1 || s.Results[0] != (model.CountStat{Key: logline.NoStatus, Count: 2}) {
		t.Errorf("results = %+v", s.Results)
	}
	if len(sink.ops) != 1 || sink.ops[0].Status != logline.NoStatus {
		t.Errorf("ops = %+v", sink.ops)
	}
}

func TestHTTPNoSamplesUnavailable(t *testing.T) {
	c := NewHTTPCorrelator(config.DefaultConfig(), stats.PolicyBestDelta, nil)
	bw := c.Bandwidth()
	if bw.Available || bw.Samples != 0 || bw.MeanKBps != 0 {
		t.Errorf("empty bandwidth = %+v", bw)
	}
}

func TestHTTPUnknownFormat(t *testing.T) {
	c := NewHTTPCorrelator(config.DefaultConfig(), stats.PolicyBestDelta, nil)
	c.Process(record(t, line(0, "u", "HTTP ~~ GET /x")))
	c.Process(record(t, line(0, "v", "garbage")))
	s := c.Summary()
	if s.Unknown != 1 || s.Total != 0 || s.Lines != 2 {
		t.Errorf("unknown = %d total = %d lines = %d", s.Unknown, s.Total, s.Lines)
	}
}

func TestRunJoinsBothStreams(t *testing.T) {
	smbLines := []string{
		"banner line that does not parse",
		line(0, "c1", `-> {"commandName":"read","fileName":"/a"}`),
		line(60_000, "c1", `<- OK {"commandName":"read","fileName":"/a"}`),
	}
	httpLines := []string{
		line(-60_000, "h1", "HTTP -> GET /api/assets/a"),
		line(120_000, "h1", "HTTP <- 404 GET /api/assets/a [x][y]"),
	}
	sink := &memorySink{}
	a, err := Run(config.DefaultConfig(), []Source{
		stringSource("smb", model.CategorySMB, smbLines...),
		stringSource("http", model.CategoryHTTP, httpLines...),
	}, sink)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if a.RunID == "" {
		t.Errorf("missing run id")
	}
	if !a.First.Equal(base.Add(-time.Minute)) || !a.Last.Equal(base.Add(2*time.Minute)) {
		t.Errorf("range = %v - %v", a.First, a.Last)
	}
	if a.ElapsedMinutes() != 3 {
		t.Errorf("elapsed = %d, want 3", a.ElapsedMinutes())
	}
	if a.SMB.Total != 1 || a.HTTP.Total != 1 || len(sink.ops) != 2 {
		t.Errorf("smb total %d http total %d ops %d", a.SMB.Total, a.HTTP.Total, len(sink.ops))
	}
	if a.SMB.Lines != 2 {
		t.Errorf("unparseable line reached the correlator: lines = %d", a.SMB.Lines)
	}
}

func TestRunSkipsOversizedLine(t *testing.T) {
	smbLines := []string{
		line(0, "a", `-> {"commandName":"read","fileName":"/a"}`),
		strings.Repeat("x", 2*maxLineSize),
		line(50, "a", `<- OK {"commandName":"read","fileName":"/a"}`),
		line(60, "b", `-> {"commandName":"write","fileName":"/b"}`),
	}
	sink := &memorySink{}
	a, err := Run(config.DefaultConfig(), []Source{
		stringSource("smb", model.CategorySMB, smbLines...),
	}, sink)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if a.SMB.Total != 2 || len(sink.ops) != 1 {
		t.Fatalf("total %d ops %d, want 2 and 1", a.SMB.Total, len(sink.ops))
	}
	if sink.ops[0].Description != "read" || sink.ops[0].Runtime != 50*time.Millisecond {
		t.Errorf("op = %+v", sink.ops[0])
	}
	if len(a.SMB.Incomplete) != 1 || a.SMB.Incomplete[0].ID != "b" {
		t.Errorf("incomplete = %+v", a.SMB.Incomplete)
	}
}

func TestReadLineLimit(t *testing.T) {
	input := "short\n" + strings.Repeat("y", 100) + "\nlast"
	r := bufio.NewReaderSize(strings.NewReader(input), 16)

	got, tooLong, err := readLine(r, 32)
	if string(got) != "short\n" || tooLong || err != nil {
		t.Fatalf("first line = %q %v %v", got, tooLong, err)
	}
	got, tooLong, err = readLine(r, 32)
	if got != nil || !tooLong || err != nil {
		t.Fatalf("long line = %q %v %v", got, tooLong, err)
	}
	got, tooLong, err = readLine(r, 32)
	if string(got) != "last" || tooLong || err != io.EOF {
		t.Fatalf("last line = %q %v %v", got, tooLong, err)
	}
}

func TestRunMissingStream(t *testing.T) {
	a, err := Run(config.DefaultConfig(), []Source{
		missingSource("smb-cmd.log", model.CategorySMB),
		stringSource("http", model.CategoryHTTP, line(0, "h", "HTTP -> GET /a")),
	}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(a.Missing) != 1 || a.Missing[0] != "smb-cmd.log" {
		t.Errorf("missing = %v", a.Missing)
	}
	if a.HTTP.Total != 1 || len(a.HTTP.Incomplete) != 1 {
		t.Errorf("http stream not processed: %+v", a.HTTP)
	}
}

func TestRunNoStreams(t *testing.T) {
	a, err := Analyze(config.DefaultConfig(), t.TempDir(), nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(a.Missing) != 2 || a.HasRange || a.Bandwidth.Available {
		t.Errorf("unexpected analysis for empty dir: %+v", a)
	}
	if _, ok := a.PerMinute(a.SMB.Total); ok {
		t.Errorf("per-minute rate reported without elapsed time")
	}
}

func TestRunInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.TopCount = 0
	if _, err := Run(cfg, nil, nil); !errors.Is(err, config.ErrInvalid) {
		t.Errorf("Run with invalid config = %v", err)
	}
}

func TestAnalyzeCompressedLogs(t *testing.T) {
	dir := t.TempDir()
	smb := strings.Join([]string{
		line(0, "c1", `-> {"commandName":"close","fileName":"/f"}`),
		line(5, "c1", `<- OK {"commandName":"close","fileName":"/f"}`),
	}, "\n") + "\n"
	http := strings.Join([]string{
		line(0, "h1", "HTTP -> PUT /api/assets/f"),
		line(7, "h1", "HTTP <- 201 PUT /api/assets/f [x][y]"),
	}, "\n") + "\n"

	var zbuf bytes.Buffer
	zw, err := zstd.NewWriter(&zbuf)
	if err != nil {
		t.Fatalf("zstd writer: %v", err)
	}
	zw.Write([]byte(smb))
	zw.Close()
	if err := os.WriteFile(filepath.Join(dir, "smb-cmd.log.zst"), zbuf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	var gbuf bytes.Buffer
	gw := gzip.NewWriter(&gbuf)
	gw.Write([]byte(http))
	gw.Close()
	if err := os.WriteFile(filepath.Join(dir, "smb-request.log.gz"), gbuf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	a, err := Analyze(config.DefaultConfig(), dir, nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(a.Missing) != 0 {
		t.Fatalf("compressed logs not found: %v", a.Missing)
	}
	if len(a.SMB.ByMean) != 1 || a.SMB.ByMean[0].MeanMs != 5 {
		t.Errorf("smb by mean = %+v", a.SMB.ByMean)
	}
	if len(a.HTTP.ByMean) != 1 || a.HTTP.ByMean[0].MeanMs != 7 || a.HTTP.Results[0].Key != "201" {
		t.Errorf("http summary = %+v", a.HTTP)
	}
}

func TestResolveLogPrefersPlain(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"smb-cmd.log", "smb-cmd.log.gz"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	path, err := ResolveLog(dir, "smb-cmd.log")
	if err != nil || filepath.Base(path) != "smb-cmd.log" {
		t.Errorf("ResolveLog = %q, %v", path, err)
	}
	if _, err := ResolveLog(dir, "absent.log"); !errors.Is(err, ErrStreamMissing) {
		t.Errorf("ResolveLog(absent) = %v", err)
	}
}
