package topk

import (
	"container/heap"

	pkgerrors "github.com/BobTheBot988/streamtop/pkg/errors"
)

// NLargest returns the min(k, h.Len()) highest-scoring retained entries in
// descending score order. Equal scores keep the FIFO tie-break: the
// earlier-inserted entry is the smaller one, so it appears later in the
// descending result.
//
// Extraction works on a copy of the heap's buffer; the heap itself is
// unchanged, so repeated calls with the same k return identical results.
func NLargest(h *Heap, k int) ([]Entry, error) {
	if k < 0 {
		return nil, pkgerrors.ErrInvalidArgument
	}
	if k > h.Len() {
		k = h.Len()
	}
	if k == 0 {
		return []Entry{}, nil
	}

	scratch := make(entryHeap, len(h.entries))
	copy(scratch, h.entries)

	// Drain the copy in ascending order, discarding everything below the
	// requested count, then fill the result back to front.
	for len(scratch) > k {
		heap.Pop(&scratch)
	}
	result := make([]Entry, k)
	for i := k - 1; i >= 0; i-- {
		result[i] = heap.Pop(&scratch).(Entry)
	}
	return result, nil
}

// Merge combines extractions from several independently-filled heaps into a
// single global top-k. This is the composition pattern for multi-producer
// use: each worker fills its own heap, then the extractions are merged here.
func Merge(k int, extractions ...[]Entry) ([]Entry, error) {
	if k < 0 {
		return nil, pkgerrors.ErrInvalidArgument
	}
	total := 0
	for _, ext := range extractions {
		total += len(ext)
	}
	capacity := k
	if capacity > total {
		capacity = total
	}
	if capacity == 0 {
		return []Entry{}, nil
	}

	merged, err := New(capacity)
	if err != nil {
		return nil, err
	}
	for _, ext := range extractions {
		for _, e := range ext {
			merged.Push(e.Score, e.Payload)
		}
	}
	return NLargest(merged, k)
}
