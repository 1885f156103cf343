// Package ingest runs the single forward pass over a scored text stream:
// scan lines while tracking byte offsets, parse each record's score, feed
// (score, offset) into a bounded heap, then resolve the surviving offsets
// back to text. The stream itself is never held in memory.
package ingest

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"

	pkgerrors "github.com/BobTheBot988/streamtop/pkg/errors"
)

// Scanner reads payload/score records from a stream, tracking the byte
// offset at which each record's line starts.
type Scanner struct {
	br     *bufio.Reader
	offset int64

	score     float64
	lineStart int64
	skipped   int64
	err       error
}

// NewScanner wraps a reader positioned at offset zero of the source.
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{br: bufio.NewReaderSize(r, 256*1024)}
}

// Scan advances to the next well-formed record, skipping and counting
// malformed lines. It returns false at end of stream or on a read error;
// check Err afterwards.
func (s *Scanner) Scan() bool {
	if s.err != nil {
		return false
	}
	for {
		s.lineStart = s.offset
		line, err := s.br.ReadBytes('\n')
		s.offset += int64(len(line))
		if len(line) > 0 {
			score, perr := ParseRecord(line)
			if perr == nil {
				s.score = score
				return true
			}
			s.skipped++
		}
		if err == io.EOF {
			return false
		}
		if err != nil {
			s.err = fmt.Errorf("reading input: %w", err)
			return false
		}
	}
}

// Score returns the score of the last scanned record.
func (s *Scanner) Score() float64 { return s.score }

// Offset returns the byte offset of the start of the last scanned record.
func (s *Scanner) Offset() int64 { return s.lineStart }

// Skipped returns how many malformed lines were passed over so far.
func (s *Scanner) Skipped() int64 { return s.skipped }

// Err returns the first read error encountered, if any.
func (s *Scanner) Err() error { return s.err }

// ParseRecord extracts the score from a `payload score` line: the line is
// split on the first space and the remainder parsed as a float. The payload
// portion is never materialised here; it is recovered later by offset.
func ParseRecord(line []byte) (float64, error) {
	line = bytes.TrimRight(line, "\r\n")
	i := bytes.IndexByte(line, ' ')
	if i < 0 || i == len(line)-1 {
		return 0, fmt.Errorf("no score field: %w", pkgerrors.ErrMalformedRecord)
	}
	score, err := strconv.ParseFloat(string(bytes.TrimSpace(line[i+1:])), 64)
	if err != nil {
		return 0, fmt.Errorf("parsing score %q: %w", line[i+1:], pkgerrors.ErrMalformedRecord)
	}
	return score, nil
}
