package topk

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"testing"

	pkgerrors "github.com/BobTheBot988/streamtop/pkg/errors"
)

func checkHeapInvariant(t *testing.T, h *Heap) {
	t.Helper()
	for i := 1; i < len(h.entries); i++ {
		parent := (i - 1) / 2
		if h.entries[parent].Score > h.entries[i].Score {
			t.Fatalf("heap property violated: entry[%d].Score=%v > entry[%d].Score=%v",
				parent, h.entries[parent].Score, i, h.entries[i].Score)
		}
	}
}

func TestNew_InvalidCapacity(t *testing.T) {
	for _, capacity := range []int{0, -1, -100} {
		if _, err := New(capacity); !errors.Is(err, pkgerrors.ErrInvalidCapacity) {
			t.Errorf("New(%d) error = %v, want ErrInvalidCapacity", capacity, err)
		}
	}
}

func TestPush_BelowCapacity(t *testing.T) {
	h, err := New(10)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 5; i++ {
		if !h.Push(float64(i), int64(i*10)) {
			t.Errorf("Push(%d) below capacity should retain", i)
		}
		checkHeapInvariant(t, h)
	}
	if h.Len() != 5 {
		t.Errorf("Len = %d, want 5", h.Len())
	}
	if h.Cap() != 10 {
		t.Errorf("Cap = %d, want 10", h.Cap())
	}
}

func TestPush_FullHeapEviction(t *testing.T) {
	h, _ := New(3)
	h.Push(0.5, 1)
	h.Push(0.3, 2)
	h.Push(0.7, 3)

	// Does not beat the minimum: discarded, no state change.
	if h.Push(0.2, 4) {
		t.Error("Push below minimum on full heap should report discard")
	}
	if h.Len() != 3 {
		t.Errorf("Len after discard = %d, want 3", h.Len())
	}
	root, _ := h.Min()
	if root.Score != 0.3 {
		t.Errorf("root score after discard = %v, want 0.3", root.Score)
	}

	// Equal to the minimum: also discarded.
	if h.Push(0.3, 5) {
		t.Error("Push equal to minimum on full heap should report discard")
	}

	// Beats the minimum: evicts it.
	if !h.Push(0.9, 6) {
		t.Error("Push above minimum should retain")
	}
	checkHeapInvariant(t, h)
	root, _ = h.Min()
	if root.Score != 0.5 {
		t.Errorf("root score after eviction = %v, want 0.5", root.Score)
	}
}

func TestPush_SizeNeverExceedsCapacity(t *testing.T) {
	h, _ := New(7)
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 1000; i++ {
		h.Push(rng.Float64(), int64(i))
		if h.Len() > h.Cap() {
			t.Fatalf("size %d exceeds capacity %d after %d pushes", h.Len(), h.Cap(), i+1)
		}
		checkHeapInvariant(t, h)
	}
}

func TestPop(t *testing.T) {
	h, _ := New(4)
	for _, score := range []float64{0.4, 0.1, 0.3, 0.2} {
		h.Push(score, int64(score * 100))
	}

	// Drains in ascending score order.
	want := []float64{0.1, 0.2, 0.3, 0.4}
	for i, w := range want {
		e, err := h.Pop()
		if err != nil {
			t.Fatalf("Pop %d: %v", i, err)
		}
		if e.Score != w {
			t.Errorf("Pop %d score = %v, want %v", i, e.Score, w)
		}
		checkHeapInvariant(t, h)
	}
	if _, err := h.Pop(); !errors.Is(err, pkgerrors.ErrEmptyHeap) {
		t.Errorf("Pop on empty heap error = %v, want ErrEmptyHeap", err)
	}
}

func TestPop_FreshHeapEmpty(t *testing.T) {
	h, _ := New(5)
	if _, err := h.Pop(); !errors.Is(err, pkgerrors.ErrEmptyHeap) {
		t.Errorf("Pop error = %v, want ErrEmptyHeap", err)
	}
	if _, err := h.Min(); !errors.Is(err, pkgerrors.ErrEmptyHeap) {
		t.Errorf("Min error = %v, want ErrEmptyHeap", err)
	}
}

func TestPushPop_Equivalence(t *testing.T) {
	build := func() *Heap {
		h, _ := New(3)
		h.Push(0.5, 1)
		h.Push(0.3, 2)
		h.Push(0.7, 3)
		return h
	}

	t.Run("does_not_qualify", func(t *testing.T) {
		h := build()
		evicted := h.PushPop(0.1, 99)
		if evicted.Score != 0.1 || evicted.Payload != 99 {
			t.Errorf("evicted = %+v, want the offered entry back", evicted)
		}
		if h.Len() != 3 {
			t.Errorf("Len = %d, want 3", h.Len())
		}
	})

	t.Run("replaces_root", func(t *testing.T) {
		h := build()
		evicted := h.PushPop(0.9, 99)
		if evicted.Score != 0.3 || evicted.Payload != 2 {
			t.Errorf("evicted = %+v, want the old root (0.3, 2)", evicted)
		}
		checkHeapInvariant(t, h)
		if h.Len() != 3 {
			t.Errorf("Len = %d, want 3", h.Len())
		}
		// Same final state as push-then-pop of the evicted entry.
		got := drainScores(t, h)
		want := []float64{0.5, 0.7, 0.9}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("state after PushPop = %v, want %v", got, want)
				break
			}
		}
	})

	t.Run("equal_to_root_not_admitted", func(t *testing.T) {
		h := build()
		evicted := h.PushPop(0.3, 99)
		if evicted.Payload != 99 {
			t.Errorf("evicted payload = %d, want 99 (offered entry)", evicted.Payload)
		}
	})
}

func TestTieBreak_FIFO(t *testing.T) {
	h, _ := New(4)
	h.Push(0.5, 10)
	h.Push(0.5, 20)
	h.Push(0.5, 30)
	h.Push(0.5, 40)

	// Equal scores drain in insertion order: earlier is smaller.
	wantPayloads := []int64{10, 20, 30, 40}
	for i, want := range wantPayloads {
		e, err := h.Pop()
		if err != nil {
			t.Fatalf("Pop %d: %v", i, err)
		}
		if e.Payload != want {
			t.Errorf("Pop %d payload = %d, want %d", i, e.Payload, want)
		}
	}
}

func TestReset(t *testing.T) {
	h, _ := New(3)
	h.Push(0.5, 1)
	h.Push(0.9, 2)
	h.Reset()
	if h.Len() != 0 {
		t.Errorf("Len after Reset = %d, want 0", h.Len())
	}
	if h.Cap() != 3 {
		t.Errorf("Cap after Reset = %d, want 3", h.Cap())
	}

	// Tie-break sequence restarts, so a rerun of the same input drains
	// identically.
	h.Push(0.5, 7)
	h.Push(0.5, 8)
	e, _ := h.Pop()
	if e.Payload != 7 {
		t.Errorf("payload after reset = %d, want 7", e.Payload)
	}
}

func TestHeap_RetainsTrueTopC(t *testing.T) {
	const capacity = 50
	const n = 5000
	h, _ := New(capacity)
	rng := rand.New(rand.NewSource(7))
	scores := make([]float64, n)
	for i := range scores {
		scores[i] = rng.NormFloat64()
		h.Push(scores[i], int64(i))
	}

	sort.Sort(sort.Reverse(sort.Float64Slice(scores)))
	wantMin := scores[capacity-1]
	root, _ := h.Min()
	if root.Score != wantMin {
		t.Errorf("retained minimum = %v, want %v", root.Score, wantMin)
	}
}

func drainScores(t *testing.T, h *Heap) []float64 {
	t.Helper()
	var out []float64
	for h.Len() > 0 {
		e, err := h.Pop()
		if err != nil {
			t.Fatalf("drain: %v", err)
		}
		out = append(out, e.Score)
	}
	return out
}

func BenchmarkPush(b *testing.B) {
	for _, capacity := range []int{100, 10_000, 100_000} {
		b.Run(fmt.Sprintf("cap_%d", capacity), func(b *testing.B) {
			h, _ := New(capacity)
			rng := rand.New(rand.NewSource(1))
			scores := make([]float64, b.N)
			for i := range scores {
				scores[i] = rng.Float64()
			}
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				h.Push(scores[i], int64(i))
			}
		})
	}
}
