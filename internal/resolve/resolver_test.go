package resolve

import (
	"os"
	"path/filepath"
	"testing"
)

// writeFixture writes lines (with trailing newlines) and returns the path
// plus the byte offset at which each line starts.
func writeFixture(t *testing.T, lines []string) (string, []int64) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "records.txt")
	var data []byte
	offsets := make([]int64, len(lines))
	for i, line := range lines {
		offsets[i] = int64(len(data))
		data = append(data, line...)
		data = append(data, '\n')
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path, offsets
}

func TestLineAt_RoundTrip(t *testing.T) {
	path, offsets := writeFixture(t, []string{"alpha", "beta", "gamma"})

	for i, want := range []string{"alpha", "beta", "gamma"} {
		got, err := LineAt(path, offsets[i])
		if err != nil {
			t.Fatalf("LineAt(%d): %v", offsets[i], err)
		}
		if got != want {
			t.Errorf("LineAt(%d) = %q, want %q", offsets[i], got, want)
		}
	}
}

func TestLineAt_MidLineReadsToTerminator(t *testing.T) {
	path, offsets := writeFixture(t, []string{"hello world", "next"})

	// Offset into the middle of a line reads forward to the newline.
	got, err := LineAt(path, offsets[0]+6)
	if err != nil {
		t.Fatalf("LineAt: %v", err)
	}
	if got != "world" {
		t.Errorf("LineAt mid-line = %q, want %q", got, "world")
	}
}

func TestLineAt_LastLineWithoutNewline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.txt")
	if err := os.WriteFile(path, []byte("first\nlast"), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	got, err := LineAt(path, 6)
	if err != nil {
		t.Fatalf("LineAt: %v", err)
	}
	if got != "last" {
		t.Errorf("LineAt = %q, want %q", got, "last")
	}
}

func TestLineAt_OffsetOutOfRange(t *testing.T) {
	path, _ := writeFixture(t, []string{"only"})

	for _, offset := range []int64{-1, 5, 1000} {
		if _, err := LineAt(path, offset); !IsOutOfRange(err) {
			t.Errorf("LineAt(%d) error = %v, want out-of-range", offset, err)
		}
	}
}

func TestLineAt_InvalidText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.txt")
	if err := os.WriteFile(path, []byte{0xff, 0xfe, 0xfd, '\n'}, 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	if _, err := LineAt(path, 0); !IsInvalidText(err) {
		t.Errorf("LineAt error = %v, want invalid-text", err)
	}

	// Validation off: the raw bytes come back.
	r, err := Open(path, WithoutValidation())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()
	got, err := r.LineAt(0)
	if err != nil {
		t.Fatalf("LineAt without validation: %v", err)
	}
	if got != string([]byte{0xff, 0xfe, 0xfd}) {
		t.Errorf("LineAt = %q, want raw bytes", got)
	}
}

func TestResolver_ReuseAcrossCalls(t *testing.T) {
	path, offsets := writeFixture(t, []string{"one", "two", "three"})
	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	// Backward seeks work; the read buffer resets per call.
	order := []int{2, 0, 1, 0}
	want := []string{"three", "one", "two", "one"}
	for i, idx := range order {
		got, err := r.LineAt(offsets[idx])
		if err != nil {
			t.Fatalf("LineAt call %d: %v", i, err)
		}
		if got != want[i] {
			t.Errorf("call %d = %q, want %q", i, got, want[i])
		}
	}
}

func TestLines_PreservesInputOrder(t *testing.T) {
	path, offsets := writeFixture(t, []string{"alpha", "beta"})

	it := Lines(path, []int64{offsets[1], offsets[0]})
	defer it.Close()

	var got []string
	for it.Next() {
		got = append(got, it.Line())
	}
	if err := it.Err(); err != nil {
		t.Fatalf("iterator error: %v", err)
	}
	want := []string{"beta", "alpha"}
	if len(got) != len(want) {
		t.Fatalf("got %d lines, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestLines_EarlyCloseReleasesHandle(t *testing.T) {
	path, offsets := writeFixture(t, []string{"a", "b", "c"})

	it := Lines(path, offsets)
	if !it.Next() {
		t.Fatalf("first Next failed: %v", it.Err())
	}
	if err := it.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if it.Next() {
		t.Error("Next after Close should return false")
	}
	// Idempotent.
	if err := it.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestLines_ErrorStopsIteration(t *testing.T) {
	path, offsets := writeFixture(t, []string{"a", "b"})

	it := Lines(path, []int64{offsets[0], 9999, offsets[1]})
	defer it.Close()

	var got []string
	for it.Next() {
		got = append(got, it.Line())
	}
	if len(got) != 1 {
		t.Fatalf("resolved %d lines before error, want 1", len(got))
	}
	if !IsOutOfRange(it.Err()) {
		t.Errorf("Err = %v, want out-of-range", it.Err())
	}
}

func TestLines_NonRestartable(t *testing.T) {
	path, offsets := writeFixture(t, []string{"a"})

	it := Lines(path, offsets)
	for it.Next() {
	}
	if it.Err() != nil {
		t.Fatalf("iterator error: %v", it.Err())
	}
	if it.Next() {
		t.Error("exhausted iterator restarted")
	}
}

func TestAll(t *testing.T) {
	path, offsets := writeFixture(t, []string{"x", "y", "z"})
	got, err := All(path, []int64{offsets[2], offsets[0]})
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(got) != 2 || got[0] != "z" || got[1] != "x" {
		t.Errorf("All = %v, want [z x]", got)
	}
}

func TestLines_EmptyOffsets(t *testing.T) {
	path, _ := writeFixture(t, []string{"a"})
	it := Lines(path, nil)
	if it.Next() {
		t.Error("Next on empty offset list should return false")
	}
	if it.Err() != nil {
		t.Errorf("Err = %v, want nil", it.Err())
	}
}
