package ingest

import (
	"errors"
	"strings"
	"testing"

	pkgerrors "github.com/BobTheBot988/streamtop/pkg/errors"
)

func TestParseRecord(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    float64
		wantErr bool
	}{
		{"plain", "password123 0.25", 0.25, false},
		{"scientific", "hunter2 1.5e-7", 1.5e-7, false},
		{"payload_with_crlf", "qwerty 0.5\r\n", 0.5, false},
		{"negative_score", "abc -3.5", -3.5, false},
		{"no_space", "payloadonly", 0, true},
		{"trailing_space_only", "payload ", 0, true},
		{"non_numeric_score", "payload abc", 0, true},
		{"empty", "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRecord([]byte(tt.line))
			if tt.wantErr {
				if !errors.Is(err, pkgerrors.ErrMalformedRecord) {
					t.Errorf("ParseRecord(%q) error = %v, want ErrMalformedRecord", tt.line, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRecord(%q): %v", tt.line, err)
			}
			if got != tt.want {
				t.Errorf("ParseRecord(%q) = %v, want %v", tt.line, got, tt.want)
			}
		})
	}
}

func TestParseRecord_PayloadWithSpaces(t *testing.T) {
	// Only the first space splits; everything after it must be the score.
	if _, err := ParseRecord([]byte("two words 0.5")); err == nil {
		t.Error("payload containing a space should not parse")
	}
}

func TestScanner_OffsetsAndScores(t *testing.T) {
	input := "aaa 0.1\nbb 0.2\nc 0.3\n"
	s := NewScanner(strings.NewReader(input))

	type rec struct {
		score  float64
		offset int64
	}
	var got []rec
	for s.Scan() {
		got = append(got, rec{s.Score(), s.Offset()})
	}
	if err := s.Err(); err != nil {
		t.Fatalf("scanner error: %v", err)
	}

	want := []rec{{0.1, 0}, {0.2, 8}, {0.3, 15}}
	if len(got) != len(want) {
		t.Fatalf("scanned %d records, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("record %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestScanner_SkipsMalformed(t *testing.T) {
	input := "good 0.1\nmalformed\nalso bad\ngood2 0.2\n"
	s := NewScanner(strings.NewReader(input))

	var scores []float64
	for s.Scan() {
		scores = append(scores, s.Score())
	}
	if err := s.Err(); err != nil {
		t.Fatalf("scanner error: %v", err)
	}
	if len(scores) != 2 || scores[0] != 0.1 || scores[1] != 0.2 {
		t.Errorf("scores = %v, want [0.1 0.2]", scores)
	}
	if s.Skipped() != 2 {
		t.Errorf("Skipped = %d, want 2", s.Skipped())
	}
}

func TestScanner_LastLineWithoutNewline(t *testing.T) {
	s := NewScanner(strings.NewReader("a 0.1\nb 0.2"))
	var n int
	for s.Scan() {
		n++
	}
	if s.Err() != nil {
		t.Fatalf("scanner error: %v", s.Err())
	}
	if n != 2 {
		t.Errorf("scanned %d records, want 2", n)
	}
}

func TestScanner_Empty(t *testing.T) {
	s := NewScanner(strings.NewReader(""))
	if s.Scan() {
		t.Error("Scan on empty input should return false")
	}
	if s.Err() != nil {
		t.Errorf("Err = %v, want nil", s.Err())
	}
}
