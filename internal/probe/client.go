/*
PURPOSE:
  Bandwidth probe: downloads one asset several ways and reports the
  throughput of each, to compare against the rates seen in the traces.

REQUIREMENTS:
  User-specified:
  - Authenticate with a login token cookie.
  - Report response code, bytes, elapsed time and KB/s per flavor.
  - Keep each downloaded body on disk as <flavor>_<filename>.

  Implementation-discovered:
  - Flavors: Go http.Client, a bare http.Transport round trip, and the
    curl binary when installed.
  - Flavors run one after another so they do not share the link.

ARCHITECTURE INTEGRATION:
  - Called by: internal/cli (probe)
  - Uses: internal/config, internal/model, internal/output

ERROR HANDLING:
  - A failing flavor is recorded in its result; the next flavor still runs.
  - The client flavor retries connection errors up to MaxRetries.

IMPLEMENTATION RULES:
  - Use net/http.
  - Enforce timeouts.

USAGE:
  p := probe.New(cfg)
  results := p.Run(ctx, url, token)

RELATED FILES:
  - internal/config/config.go
  - internal/model/types.go
*/

package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mfrisbey/scripts/internal/config"
	"github.com/mfrisbey/scripts/internal/model"
	"github.com/mfrisbey/scripts/internal/output"
)

// Flavor names.
const (
	FlavorClient    = "client"
	FlavorTransport = "transport"
	FlavorCurl      = "curl"
)

// ErrCurlMissing is recorded when the curl flavor cannot run.
var ErrCurlMissing = errors.New("curl not installed")

// Prober downloads an asset and measures throughput.
type Prober struct {
	Config    *config.Probe
	Client    *http.Client
	Transport *http.Transport
	// CurlPath is looked up on first use when empty.
	CurlPath string
}

// New creates a new Prober.
func New(cfg *config.Config) *Prober {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	// Compressed bodies would skew the byte count.
	transport.DisableCompression = true

	return &Prober{
		Config:    &cfg.Probe,
		Transport: transport,
		Client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Probe.Timeout,
		},
	}
}

// Run executes every flavor in order.
func (p *Prober) Run(ctx context.Context, rawURL, token string) []model.ProbeResult {
	flavors := []struct {
		name string
		fn   func(context.Context, string, string) (model.ProbeResult, error)
	}{
		{FlavorClient, p.ViaClient},
		{FlavorTransport, p.ViaTransport},
		{FlavorCurl, p.ViaCurl},
	}

	results := make([]model.ProbeResult, 0, len(flavors))
	for _, f := range flavors {
		output.Logger.Info("Probing", "flavor", f.name, "url", rawURL)
		res, err := f.fn(ctx, rawURL, token)
		res.Flavor = f.name
		if err != nil {
			res.Error = err.Error()
			output.Logger.Error("Probe failed", "flavor", f.name, "error", err)
		} else {
			output.Logger.Info("Probe finished", "flavor", f.name, "bytes", res.Bytes, "elapsed", res.Elapsed, "kbps", res.RateKBps())
		}
		results = append(results, res)
	}
	return results
}

// ViaClient downloads with the http.Client, retrying connection errors.
func (p *Prober) ViaClient(ctx context.Context, rawURL, token string) (model.ProbeResult, error) {
	attempts := p.Config.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return model.ProbeResult{}, ctx.Err()
			case <-time.After(p.Config.RetryDelay):
			}
			output.Logger.Info("Retrying download...", "attempt", i+1)
		}

		req, err := p.newRequest(ctx, rawURL, token)
		if err != nil {
			return model.ProbeResult{}, err
		}
		resp, err := p.Client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("network/connection error: %w", err)
			continue
		}
		return p.save(FlavorClient, rawURL, resp)
	}
	return model.ProbeResult{}, lastErr
}

// ViaTransport downloads with a single round trip, no redirects or retries.
func (p *Prober) ViaTransport(ctx context.Context, rawURL, token string) (model.ProbeResult, error) {
	req, err := p.newRequest(ctx, rawURL, token)
	if err != nil {
		return model.ProbeResult{}, err
	}
	if p.Config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(req.Context(), p.Config.Timeout)
		defer cancel()
		req = req.WithContext(ctx)
	}
	resp, err := p.Transport.RoundTrip(req)
	if err != nil {
		return model.ProbeResult{}, fmt.Errorf("round trip failed: %w", err)
	}
	return p.save(FlavorTransport, rawURL, resp)
}

// ViaCurl shells out to curl.
func (p *Prober) ViaCurl(ctx context.Context, rawURL, token string) (model.ProbeResult, error) {
	curl := p.CurlPath
	if curl == "" {
		found, err := exec.LookPath("curl")
		if err != nil {
			return model.ProbeResult{}, ErrCurlMissing
		}
		curl = found
	}

	file := p.target(FlavorCurl, rawURL)
	args := []string{
		"--silent", "--show-error",
		"-H", "Cookie: login-token=" + token,
		"-o", file,
		"-w", "%{http_code}",
	}
	if p.Config.Timeout > 0 {
		args = append(args, "--max-time", strconv.Itoa(int(p.Config.Timeout.Seconds())))
	}
	args = append(args, rawURL)

	start := time.Now()
	out, err := exec.CommandContext(ctx, curl, args...).Output()
	elapsed := time.Since(start)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return model.ProbeResult{}, fmt.Errorf("curl failed: %w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return model.ProbeResult{}, fmt.Errorf("curl failed: %w", err)
	}

	res := model.ProbeResult{Elapsed: elapsed, File: file}
	res.StatusCode, _ = strconv.Atoi(strings.TrimSpace(string(out)))
	if info, err := os.Stat(file); err == nil {
		res.Bytes = info.Size()
	}
	return res, nil
}

func (p *Prober) newRequest(ctx context.Context, rawURL, token string) (*http.Request, error) {
	trace := &httptrace.ClientTrace{
		GotConn: func(info httptrace.GotConnInfo) {
			output.Logger.Debug("Network: Connected", "remote", info.Conn.RemoteAddr(), "reused", info.Reused)
		},
		GotFirstResponseByte: func() {
			output.Logger.Debug("Network: First Byte Received")
		},
	}
	req, err := http.NewRequestWithContext(httptrace.WithClientTrace(ctx, trace), http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Cookie", "login-token="+token)
	return req, nil
}

// save streams the body to disk. Timing starts once headers have arrived.
func (p *Prober) save(flavor, rawURL string, resp *http.Response) (model.ProbeResult, error) {
	defer resp.Body.Close()
	output.Logger.Info("Response", "flavor", flavor, "status", resp.StatusCode)

	file := p.target(flavor, rawURL)
	f, err := os.Create(file)
	if err != nil {
		return model.ProbeResult{}, fmt.Errorf("failed to create %s: %w", file, err)
	}
	defer f.Close()

	start := time.Now()
	n, err := io.Copy(f, resp.Body)
	res := model.ProbeResult{
		StatusCode: resp.StatusCode,
		Bytes:      n,
		Elapsed:    time.Since(start),
		File:       file,
	}
	if err != nil {
		return res, fmt.Errorf("download interrupted after %d bytes: %w", n, err)
	}
	return res, nil
}

func (p *Prober) target(flavor, rawURL string) string {
	return filepath.Join(p.Config.OutputDir, flavor+"_"+FileName(rawURL))
}

// FileName derives the local file name from the last URL path segment.
func FileName(rawURL string) string {
	name := ""
	if u, err := url.Parse(rawURL); err == nil {
		name = path.Base(u.Path)
	}
	if name == "" || name == "." || name == "/" {
		return "download"
	}
	return name
}
