package ingest

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"
)

// RankFiles runs an independent ranking pass per input file concurrently and
// merges the per-file results into a single global top-K. Each worker owns
// its own heap, so the single-producer contract of topk.Heap holds; merging
// happens only after every extraction is complete.
func (r *Ranker) RankFiles(ctx context.Context, paths []string) ([]RankedLine, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no input files")
	}
	if len(paths) == 1 {
		return r.RankFile(ctx, paths[0])
	}

	perFile := make([][]RankedLine, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			results, err := r.RankFile(ctx, path)
			if err != nil {
				return fmt.Errorf("ranking %s: %w", path, err)
			}
			perFile[i] = results
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return mergeRanked(perFile, r.cfg.TopK), nil
}

// mergeRanked flattens per-file results and keeps the k best globally.
// Score ties order deterministically by source then offset.
func mergeRanked(perFile [][]RankedLine, k int) []RankedLine {
	var all []RankedLine
	for _, results := range perFile {
		all = append(all, results...)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Score != all[j].Score {
			return all[i].Score > all[j].Score
		}
		if all[i].Source != all[j].Source {
			return all[i].Source < all[j].Source
		}
		return all[i].Offset < all[j].Offset
	})
	if len(all) > k {
		all = all[:k]
	}
	for i := range all {
		all[i].Rank = i + 1
	}
	return all
}
