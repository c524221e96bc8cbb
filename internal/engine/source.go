/*
PURPOSE:
  Locates a trace in the log directory and opens it, decompressing
  rotated .zst and .gz copies on the fly.

ERROR HANDLING:
  - A trace with no candidate file returns ErrStreamMissing.
*/

package engine

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// ErrStreamMissing is returned when no file exists for a configured log name.
var ErrStreamMissing = errors.New("log not found")

// compressedSuffixes are tried after the plain name, in order.
var compressedSuffixes = []string{".zst", ".gz"}

// ResolveLog finds name inside dir, also accepting a compressed copy.
func ResolveLog(dir, name string) (string, error) {
	candidates := []string{filepath.Join(dir, name)}
	for _, suffix := range compressedSuffixes {
		candidates = append(candidates, filepath.Join(dir, name+suffix))
	}
	for _, path := range candidates {
		info, err := os.Stat(path)
		if err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrStreamMissing, filepath.Join(dir, name))
}

// OpenLog opens path, decompressing .zst and .gz files transparently.
func OpenLog(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrStreamMissing, path)
		}
		return nil, err
	}

	switch {
	case strings.HasSuffix(path, ".zst"):
		dec, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to open zstd stream %s: %w", path, err)
		}
		return &zstdReadCloser{dec: dec, file: f}, nil
	case strings.HasSuffix(path, ".gz"):
		zr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to open gzip stream %s: %w", path, err)
		}
		return &gzipReadCloser{Reader: zr, file: f}, nil
	default:
		return f, nil
	}
}

type zstdReadCloser struct {
	dec  *zstd.Decoder
	file *os.File
}

func (z *zstdReadCloser) Read(p []byte) (int, error) {
	return z.dec.Read(p)
}

func (z *zstdReadCloser) Close() error {
	z.dec.Close()
	return z.file.Close()
}

type gzipReadCloser struct {
	*gzip.Reader
	file *os.File
}

func (g *gzipReadCloser) Close() error {
	err := g.Reader.Close()
	if cerr := g.file.Close(); err == nil {
		err = cerr
	}
	return err
}
