package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/BobTheBot988/streamtop/internal/resolve"
	"github.com/BobTheBot988/streamtop/internal/topk"
	"github.com/BobTheBot988/streamtop/pkg/config"
	"github.com/BobTheBot988/streamtop/pkg/logger"
	"github.com/BobTheBot988/streamtop/pkg/metrics"
)

// ctxCheckEvery is how many records pass between context cancellation
// checks during the scan loop.
const ctxCheckEvery = 1 << 16

// RankedLine is one reported result: the rank, score, source byte offset,
// and the recovered line of text.
type RankedLine struct {
	Rank   int     `json:"rank"`
	Score  float64 `json:"score"`
	Offset int64   `json:"offset"`
	Line   string  `json:"line"`
	Source string  `json:"source,omitempty"`
}

// Ranker runs complete ranking passes over scored text files.
type Ranker struct {
	cfg     config.RankerConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewRanker creates a Ranker. m may be nil when no metrics are collected.
func NewRanker(cfg config.RankerConfig, m *metrics.Metrics) *Ranker {
	return &Ranker{
		cfg:     cfg,
		metrics: m,
		logger:  logger.Component("ranker"),
	}
}

// RankFile runs one pass over the file at path (gzip or plain) and returns
// the top-K lines in descending score order.
func (r *Ranker) RankFile(ctx context.Context, path string) ([]RankedLine, error) {
	start := time.Now()

	prepared, cleanup, err := Prepare(path)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	h, err := topk.New(r.cfg.Capacity)
	if err != nil {
		return nil, err
	}
	if err := r.fill(ctx, h, prepared); err != nil {
		return nil, err
	}

	entries, err := topk.NLargest(h, r.cfg.TopK)
	if err != nil {
		return nil, err
	}

	results, err := r.resolveEntries(prepared, path, entries)
	if err != nil {
		return nil, err
	}

	elapsed := time.Since(start)
	if r.metrics != nil {
		r.metrics.PassDuration.Observe(elapsed.Seconds())
	}
	r.logger.Info("ranking pass complete",
		"source", path,
		"retained", h.Len(),
		"results", len(results),
		"elapsed", elapsed,
	)
	return results, nil
}

// fill scans the prepared file and pushes every record into the heap.
func (r *Ranker) fill(ctx context.Context, h *topk.Heap, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening prepared input: %w", err)
	}
	defer f.Close()

	s := NewScanner(f)
	var scanned, retained int64
	for s.Scan() {
		scanned++
		if h.Push(s.Score(), s.Offset()) {
			retained++
		}
		if scanned%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("ingestion cancelled: %w", err)
			}
		}
	}
	if err := s.Err(); err != nil {
		return err
	}

	if r.metrics != nil {
		r.metrics.RecordsScanned.Add(float64(scanned))
		r.metrics.RecordsMalformed.Add(float64(s.Skipped()))
		r.metrics.RecordsRetained.Add(float64(retained))
		r.metrics.RecordsDiscarded.Add(float64(scanned - retained))
		r.metrics.HeapSize.Set(float64(h.Len()))
	}
	r.logger.Debug("scan complete",
		"scanned", scanned,
		"malformed", s.Skipped(),
		"retained", retained,
	)
	return nil
}

// resolveEntries recovers the text for each extracted entry, preserving the
// extraction (descending score) order.
func (r *Ranker) resolveEntries(prepared, source string, entries []topk.Entry) ([]RankedLine, error) {
	offsets := make([]int64, len(entries))
	for i, e := range entries {
		offsets[i] = e.Payload
	}

	var opts []resolve.Option
	if !r.cfg.ValidateUTF8 {
		opts = append(opts, resolve.WithoutValidation())
	}

	it := resolve.Lines(prepared, offsets, opts...)
	defer it.Close()

	results := make([]RankedLine, 0, len(entries))
	for it.Next() {
		i := len(results)
		results = append(results, RankedLine{
			Rank:   i + 1,
			Score:  entries[i].Score,
			Offset: entries[i].Payload,
			Line:   it.Line(),
			Source: source,
		})
	}
	if err := it.Err(); err != nil {
		if r.metrics != nil {
			r.metrics.ResolveErrors.WithLabelValues(resolveErrKind(err)).Inc()
		}
		return nil, fmt.Errorf("resolving ranked lines: %w", err)
	}
	if r.metrics != nil {
		r.metrics.LinesResolved.Add(float64(len(results)))
	}
	return results, nil
}

func resolveErrKind(err error) string {
	switch {
	case resolve.IsOutOfRange(err):
		return "seek"
	case resolve.IsInvalidText(err):
		return "decode"
	default:
		return "io"
	}
}
