// Package errors defines the sentinel errors shared across streamtop.
// Call sites wrap them with fmt.Errorf("...: %w", ...) and callers match
// with errors.Is.
package errors

import "errors"

var (
	// ErrInvalidCapacity is returned when constructing a heap with a
	// capacity of zero or less.
	ErrInvalidCapacity = errors.New("heap capacity must be positive")

	// ErrInvalidArgument is returned for an out-of-domain argument, such as
	// a negative extraction count.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrEmptyHeap is returned when popping from an empty heap.
	ErrEmptyHeap = errors.New("heap is empty")

	// ErrOffsetOutOfRange is returned when a resolution offset is negative
	// or beyond the end of the source.
	ErrOffsetOutOfRange = errors.New("offset out of range")

	// ErrInvalidText is returned when the bytes at a resolved offset are
	// not valid UTF-8.
	ErrInvalidText = errors.New("resolved bytes are not valid text")

	// ErrMalformedRecord is returned for an input line that does not split
	// into a payload and a parseable score.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrSourceUnavailable is returned when a streaming source cannot be
	// reached after the configured retries.
	ErrSourceUnavailable = errors.New("source unavailable")
)
