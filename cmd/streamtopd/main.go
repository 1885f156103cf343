// Command streamtopd maintains a live top-K over a Kafka partition of
// scored records. It retains only (score, message offset) pairs, resolves
// the winners back to message text by offset on each report tick, and
// exposes Prometheus metrics and a readiness probe.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"

	"github.com/BobTheBot988/streamtop/internal/source"
	"github.com/BobTheBot988/streamtop/internal/topk"
	"github.com/BobTheBot988/streamtop/pkg/config"
	"github.com/BobTheBot988/streamtop/pkg/health"
	"github.com/BobTheBot988/streamtop/pkg/logger"
	"github.com/BobTheBot988/streamtop/pkg/metrics"
	"github.com/BobTheBot988/streamtop/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting streamtopd",
		"topic", cfg.Kafka.Topic,
		"partition", cfg.Kafka.Partition,
		"capacity", cfg.Ranker.Capacity,
		"top_k", cfg.Ranker.TopK,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)

	if err := resilience.Retry(ctx, "kafka-connect", resilience.RetryConfig{MaxAttempts: 5}, func() error {
		return probeKafka(ctx, cfg.Kafka)
	}); err != nil {
		slog.Error("kafka unreachable", "error", err)
		os.Exit(1)
	}

	h, err := topk.New(cfg.Ranker.Capacity)
	if err != nil {
		slog.Error("failed to create heap", "error", err)
		os.Exit(1)
	}

	// One producer mutates the heap; the snapshot loop reads it. The mutex
	// is the external serialization the heap requires.
	var mu sync.Mutex

	checker := health.NewChecker()
	checker.Register("kafka", func(ctx context.Context) health.ComponentHealth {
		if err := probeKafka(ctx, cfg.Kafka); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("heap", func(ctx context.Context) health.ComponentHealth {
		mu.Lock()
		n, c := h.Len(), h.Cap()
		mu.Unlock()
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d/%d retained", n, c)}
	})

	var shutdownMetrics func(context.Context) error
	if cfg.Metrics.Enabled {
		shutdownMetrics = metrics.StartServer(cfg.Metrics.Port, map[string]http.Handler{
			"/readyz": checker.ReadyHandler(),
		})
	}

	src := source.NewScoreSource(cfg.Kafka, m)
	defer src.Close()
	resolver := source.NewMessageResolver(cfg.Kafka)
	defer resolver.Close()

	errCh := make(chan error, 1)
	go func() {
		errCh <- src.Run(ctx, func(score float64, offset int64) bool {
			mu.Lock()
			retained := h.Push(score, offset)
			m.HeapSize.Set(float64(h.Len()))
			mu.Unlock()
			return retained
		})
	}()

	ticker := time.NewTicker(cfg.Ranker.ReportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("shutting down")
			if shutdownMetrics != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				shutdownMetrics(shutdownCtx)
			}
			return
		case err := <-errCh:
			if err != nil {
				slog.Error("source failed", "error", err)
				os.Exit(1)
			}
			return
		case <-ticker.C:
			report(ctx, h, &mu, resolver, cfg.Ranker.TopK, m)
		}
	}
}

// report extracts the current top-K under the lock, then resolves and logs
// the leaders without holding it.
func report(ctx context.Context, h *topk.Heap, mu *sync.Mutex, resolver *source.MessageResolver, k int, m *metrics.Metrics) {
	mu.Lock()
	entries, err := topk.NLargest(h, k)
	mu.Unlock()
	if err != nil {
		slog.Error("extraction failed", "error", err)
		return
	}
	if len(entries) == 0 {
		slog.Info("snapshot empty, no records retained yet")
		return
	}

	// Resolving every entry each tick would hammer the broker; the log
	// shows the leaders and the full set stays queryable via extraction.
	const logTop = 5
	n := min(logTop, len(entries))
	offsets := make([]int64, n)
	for i := 0; i < n; i++ {
		offsets[i] = entries[i].Payload
	}
	lines, err := resolver.MessagesAt(ctx, offsets)
	if err != nil {
		m.ResolveErrors.WithLabelValues("io").Inc()
		slog.Error("resolving snapshot failed", "error", err)
		return
	}
	m.LinesResolved.Add(float64(len(lines)))

	for i, line := range lines {
		slog.Info("top entry",
			"rank", i+1,
			"score", entries[i].Score,
			"offset", entries[i].Payload,
			"record", line,
		)
	}
	slog.Info("snapshot complete", "retained", len(entries))
}

// probeKafka verifies the partition leader is reachable.
func probeKafka(ctx context.Context, cfg config.KafkaConfig) error {
	if len(cfg.Brokers) == 0 {
		return fmt.Errorf("no kafka brokers configured")
	}
	dialer := &kafka.Dialer{Timeout: 5 * time.Second}
	conn, err := dialer.DialLeader(ctx, "tcp", cfg.Brokers[0], cfg.Topic, cfg.Partition)
	if err != nil {
		return fmt.Errorf("dialing partition leader: %w", err)
	}
	return conn.Close()
}
