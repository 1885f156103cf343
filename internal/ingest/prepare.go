package ingest

import (
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
)

// gzipMagic is the two-byte header of a gzip stream.
var gzipMagic = []byte{0x1f, 0x8b}

// Prepare returns a path whose byte offsets are stable for resolution. A
// gzip-compressed source is streamed into a temporary file first, because
// offsets into the compressed stream would be useless for seeking; plain
// files pass through untouched. The returned cleanup func removes the
// temporary file and must be called once the pass (including resolution) is
// done.
func Prepare(path string) (string, func() error, error) {
	noop := func() error { return nil }

	f, err := os.Open(path)
	if err != nil {
		return "", noop, fmt.Errorf("opening input: %w", err)
	}
	defer f.Close()

	header := make([]byte, 2)
	n, err := io.ReadFull(f, header)
	if err != nil && n < 2 {
		// Too short to be gzip; treat as plain.
		return path, noop, nil
	}
	if header[0] != gzipMagic[0] || header[1] != gzipMagic[1] {
		return path, noop, nil
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", noop, fmt.Errorf("rewinding input: %w", err)
	}

	gz, err := gzip.NewReader(f)
	if err != nil {
		return "", noop, fmt.Errorf("opening gzip stream: %w", err)
	}
	defer gz.Close()

	tmp, err := os.CreateTemp("", "streamtop-*.txt")
	if err != nil {
		return "", noop, fmt.Errorf("creating temp file: %w", err)
	}
	cleanup := func() error { return os.Remove(tmp.Name()) }

	if _, err := io.Copy(tmp, gz); err != nil {
		tmp.Close()
		cleanup()
		return "", noop, fmt.Errorf("decompressing input: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", noop, fmt.Errorf("closing temp file: %w", err)
	}
	return tmp.Name(), cleanup, nil
}
