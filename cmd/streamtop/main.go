// Command streamtop ranks the top-K highest-scoring lines of one or more
// scored text files (plain or gzip) in a single bounded-memory pass and
// prints the recovered lines.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/BobTheBot988/streamtop/internal/cache"
	"github.com/BobTheBot988/streamtop/internal/ingest"
	"github.com/BobTheBot988/streamtop/internal/sink"
	"github.com/BobTheBot988/streamtop/pkg/config"
	"github.com/BobTheBot988/streamtop/pkg/logger"
	"github.com/BobTheBot988/streamtop/pkg/postgres"
	pkgredis "github.com/BobTheBot988/streamtop/pkg/redis"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	k := flag.Int("k", 0, "number of results to report (overrides config)")
	capacity := flag.Int("capacity", 0, "candidates retained during the pass (overrides config)")
	asJSON := flag.Bool("json", false, "emit results as JSON")
	useCache := flag.Bool("cache", false, "cache results in redis")
	useSink := flag.Bool("sink", false, "persist results to postgres")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: streamtop [flags] <file> [<file>...]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *k > 0 {
		cfg.Ranker.TopK = *k
	}
	if *capacity > 0 {
		cfg.Ranker.Capacity = *capacity
	}
	if cfg.Ranker.TopK > cfg.Ranker.Capacity {
		cfg.Ranker.Capacity = cfg.Ranker.TopK
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ranker := ingest.NewRanker(cfg.Ranker, nil)
	paths := flag.Args()

	var resultCache *cache.ResultCache
	if *useCache {
		redisClient, err := pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, result caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			resultCache = cache.New(redisClient, cfg.Redis)
		}
	}

	var results []ingest.RankedLine
	var fromCache bool
	if resultCache != nil && len(paths) == 1 {
		results, fromCache, err = resultCache.GetOrCompute(ctx, paths[0], cfg.Ranker.TopK, func() ([]ingest.RankedLine, error) {
			return ranker.RankFile(ctx, paths[0])
		})
	} else {
		results, err = ranker.RankFiles(ctx, paths)
	}
	if err != nil {
		slog.Error("ranking failed", "error", err)
		os.Exit(1)
	}
	if fromCache {
		slog.Info("served from cache", "source", paths[0])
	}

	if *useSink {
		pgClient, err := postgres.New(cfg.Postgres)
		if err != nil {
			slog.Warn("postgres unavailable, results not persisted", "error", err)
		} else {
			defer pgClient.Close()
			s := sink.New(pgClient)
			if err := s.EnsureSchema(ctx); err != nil {
				slog.Error("schema setup failed", "error", err)
			} else if _, err := s.SaveRun(ctx, sourceLabel(paths), results); err != nil {
				slog.Error("persisting results failed", "error", err)
			}
		}
	}

	if err := printResults(os.Stdout, results, *asJSON); err != nil {
		slog.Error("writing results failed", "error", err)
		os.Exit(1)
	}
}

func sourceLabel(paths []string) string {
	if len(paths) == 1 {
		return paths[0]
	}
	return fmt.Sprintf("%s (+%d more)", paths[0], len(paths)-1)
}

func printResults(w *os.File, results []ingest.RankedLine, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	for _, r := range results {
		if _, err := fmt.Fprintf(w, "%6d  %14.6g  %s\n", r.Rank, r.Score, r.Line); err != nil {
			return err
		}
	}
	return nil
}
