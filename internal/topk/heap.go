// Package topk maintains the K highest-scoring entries of an unbounded
// stream in a fixed-capacity min-heap. The heap keeps the smallest retained
// score at the root so each new record needs a single comparison to decide
// whether it can displace anything.
package topk

import (
	"container/heap"

	pkgerrors "github.com/BobTheBot988/streamtop/pkg/errors"
)

// Entry is the unit stored in the heap: a score and an opaque 64-bit payload.
// For file ingestion the payload is the byte offset of the record's line; for
// stream ingestion it is the broker's message offset.
type Entry struct {
	Score   float64
	Payload int64

	// seq is the insertion sequence number. Among equal scores the earlier
	// insertion orders as strictly smaller, which makes eviction and
	// extraction deterministic for identical input sequences.
	seq uint64
}

// Heap is a fixed-capacity min-heap over Entry scores. Once full, pushing a
// record that does not beat the current minimum is a no-op, so across a whole
// stream the heap retains exactly the capacity highest-scoring entries.
//
// A Heap is not safe for concurrent mutation. Use one heap per producer and
// merge extractions with Merge.
type Heap struct {
	entries entryHeap
	cap     int
	nextSeq uint64
}

// New creates a heap that retains the capacity highest-scoring entries.
func New(capacity int) (*Heap, error) {
	if capacity <= 0 {
		return nil, pkgerrors.ErrInvalidCapacity
	}
	return &Heap{
		entries: make(entryHeap, 0, capacity),
		cap:     capacity,
	}, nil
}

// Push offers a record to the heap. While the heap has room the entry is
// always retained. Once full, an entry whose score does not exceed the
// current minimum is discarded; otherwise it replaces the minimum.
// Push reports whether the entry was retained.
func (h *Heap) Push(score float64, payload int64) bool {
	e := Entry{Score: score, Payload: payload, seq: h.nextSeq}
	h.nextSeq++
	if len(h.entries) < h.cap {
		heap.Push(&h.entries, e)
		return true
	}
	if score <= h.entries[0].Score {
		return false
	}
	h.entries[0] = e
	heap.Fix(&h.entries, 0)
	return true
}

// Pop removes and returns the smallest-scoring retained entry. Repeated
// calls drain the heap in ascending order.
func (h *Heap) Pop() (Entry, error) {
	if len(h.entries) == 0 {
		return Entry{}, pkgerrors.ErrEmptyHeap
	}
	return heap.Pop(&h.entries).(Entry), nil
}

// PushPop offers a record and returns whichever entry the heap gives up: the
// new entry itself when it does not beat the current minimum, or the old
// minimum when it does. The heap's size never changes, so on a full heap this
// is a push followed by a pop of the evicted entry, with no intermediate
// state observable.
func (h *Heap) PushPop(score float64, payload int64) Entry {
	e := Entry{Score: score, Payload: payload, seq: h.nextSeq}
	h.nextSeq++
	if len(h.entries) == 0 || score <= h.entries[0].Score {
		return e
	}
	evicted := h.entries[0]
	h.entries[0] = e
	heap.Fix(&h.entries, 0)
	return evicted
}

// Min returns the smallest retained entry without removing it.
func (h *Heap) Min() (Entry, error) {
	if len(h.entries) == 0 {
		return Entry{}, pkgerrors.ErrEmptyHeap
	}
	return h.entries[0], nil
}

// Len returns the number of retained entries.
func (h *Heap) Len() int { return len(h.entries) }

// Cap returns the fixed capacity set at construction.
func (h *Heap) Cap() int { return h.cap }

// Reset empties the heap so it can be reused for another ingestion pass.
// Capacity is unchanged; the tie-break sequence restarts.
func (h *Heap) Reset() {
	h.entries = h.entries[:0]
	h.nextSeq = 0
}

// entryHeap implements container/heap ordered by score ascending, with the
// insertion sequence breaking ties so the earliest insertion sits closest to
// the root.
type entryHeap []Entry

func (eh entryHeap) Len() int { return len(eh) }

func (eh entryHeap) Less(i, j int) bool {
	if eh[i].Score != eh[j].Score {
		return eh[i].Score < eh[j].Score
	}
	return eh[i].seq < eh[j].seq
}

func (eh entryHeap) Swap(i, j int) { eh[i], eh[j] = eh[j], eh[i] }

func (eh *entryHeap) Push(x any) {
	*eh = append(*eh, x.(Entry))
}

func (eh *entryHeap) Pop() any {
	old := *eh
	n := len(old)
	x := old[n-1]
	*eh = old[:n-1]
	return x
}
