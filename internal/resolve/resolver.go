// Package resolve maps byte offsets back to the lines of text that produced
// them. Ingestion retains only (score, offset) pairs; once the top entries
// are known, this package seeks into the source file and reads each line on
// demand, so the text is never held in memory during the pass.
package resolve

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	pkgerrors "github.com/BobTheBot988/streamtop/pkg/errors"
)

// Resolver reads lines from a single source file by byte offset, reusing one
// handle and read buffer across calls. It is a scoped resource: callers must
// Close it when done.
type Resolver struct {
	file *os.File
	size int64
	br   *bufio.Reader

	// validateUTF8 rejects lines whose bytes are not valid UTF-8.
	validateUTF8 bool
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithoutValidation disables UTF-8 validation of resolved lines, for sources
// carrying opaque byte payloads.
func WithoutValidation() Option {
	return func(r *Resolver) { r.validateUTF8 = false }
}

// Open creates a Resolver for the file at path.
func Open(path string, opts ...Option) (*Resolver, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening source file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat source file: %w", err)
	}
	r := &Resolver{
		file:         f,
		size:         info.Size(),
		br:           bufio.NewReader(f),
		validateUTF8: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// LineAt seeks to offset and reads forward to the next line terminator or
// end of file, returning the decoded line with its terminator stripped.
func (r *Resolver) LineAt(offset int64) (string, error) {
	if offset < 0 || offset >= r.size {
		return "", fmt.Errorf("offset %d in file of %d bytes: %w",
			offset, r.size, pkgerrors.ErrOffsetOutOfRange)
	}
	if _, err := r.file.Seek(offset, io.SeekStart); err != nil {
		return "", fmt.Errorf("seeking to offset %d: %w", offset, err)
	}
	r.br.Reset(r.file)
	line, err := r.br.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("reading line at offset %d: %w", offset, err)
	}
	line = strings.TrimRight(line, "\r\n")
	if r.validateUTF8 && !utf8.ValidString(line) {
		return "", fmt.Errorf("line at offset %d: %w", offset, pkgerrors.ErrInvalidText)
	}
	return line, nil
}

// Size returns the source file's length in bytes.
func (r *Resolver) Size() int64 { return r.size }

// Close releases the underlying file handle.
func (r *Resolver) Close() error {
	return r.file.Close()
}

// LineAt resolves a single offset in the file at path, opening and closing
// the file around the read.
func LineAt(path string, offset int64) (string, error) {
	r, err := Open(path)
	if err != nil {
		return "", err
	}
	defer r.Close()
	return r.LineAt(offset)
}

// LineIter lazily resolves a fixed sequence of offsets, one line per call to
// Next, in the order the offsets were supplied. The iterator is finite and
// non-restartable. The file handle is acquired on the first Next and released
// on exhaustion, on the first error, or on Close, whichever comes first.
//
// Callers wanting fewer backward seeks can sort the offsets ascending before
// building the iterator; the iterator itself never reorders them.
type LineIter struct {
	path    string
	opts    []Option
	offsets []int64

	r      *Resolver
	pos    int
	line   string
	err    error
	closed bool
}

// Lines returns an iterator over the lines at the given offsets in the file
// at path.
func Lines(path string, offsets []int64, opts ...Option) *LineIter {
	return &LineIter{path: path, opts: opts, offsets: offsets}
}

// Next advances to the next offset, resolving its line. It returns false when
// the offsets are exhausted or a resolution fails; check Err afterwards.
func (it *LineIter) Next() bool {
	if it.closed || it.err != nil || it.pos >= len(it.offsets) {
		it.release()
		return false
	}
	if it.r == nil {
		r, err := Open(it.path, it.opts...)
		if err != nil {
			it.err = err
			return false
		}
		it.r = r
	}
	line, err := it.r.LineAt(it.offsets[it.pos])
	if err != nil {
		it.err = err
		it.release()
		return false
	}
	it.pos++
	it.line = line
	return true
}

// Line returns the line resolved by the last successful Next.
func (it *LineIter) Line() string { return it.line }

// Err returns the first error encountered, if any.
func (it *LineIter) Err() error { return it.err }

// Close releases the underlying file handle. It is safe to call at any
// point, including after exhaustion, and is idempotent.
func (it *LineIter) Close() error {
	it.closed = true
	return it.release()
}

func (it *LineIter) release() error {
	if it.r == nil {
		return nil
	}
	err := it.r.Close()
	it.r = nil
	return err
}

// All resolves every offset eagerly and returns the lines in input order.
func All(path string, offsets []int64, opts ...Option) ([]string, error) {
	it := Lines(path, offsets, opts...)
	defer it.Close()
	lines := make([]string, 0, len(offsets))
	for it.Next() {
		lines = append(lines, it.Line())
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// IsOutOfRange reports whether err is an out-of-range offset error.
func IsOutOfRange(err error) bool {
	return errors.Is(err, pkgerrors.ErrOffsetOutOfRange)
}

// IsInvalidText reports whether err is a text validation error.
func IsInvalidText(err error) bool {
	return errors.Is(err, pkgerrors.ErrInvalidText)
}
