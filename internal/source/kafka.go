// Package source feeds scored records from a Kafka partition into a bounded
// heap. The retained payload is the broker's message offset, the stream
// analogue of a file byte offset: the winning records' text is re-fetched by
// offset after the fact instead of being held in memory.
package source

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/BobTheBot988/streamtop/internal/ingest"
	"github.com/BobTheBot988/streamtop/pkg/config"
	"github.com/BobTheBot988/streamtop/pkg/logger"
	"github.com/BobTheBot988/streamtop/pkg/metrics"
)

// ScoreSource consumes `payload score` records from one topic partition and
// pushes (score, message offset) into a heap.
type ScoreSource struct {
	reader  *kafka.Reader
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewScoreSource creates a consumer for the configured topic partition,
// starting from the earliest retained message.
func NewScoreSource(cfg config.KafkaConfig, m *metrics.Metrics) *ScoreSource {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		Partition:   cfg.Partition,
		MinBytes:    1e3,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})
	return &ScoreSource{
		reader:  r,
		metrics: m,
		logger:  logger.Component("kafka-source").With("topic", cfg.Topic, "partition", cfg.Partition),
	}
}

// Run consumes until ctx is cancelled, handing each well-formed record to
// push. The heap itself stays single-producer: push is the caller's
// serialization point when a snapshot loop runs alongside.
func (s *ScoreSource) Run(ctx context.Context, push func(score float64, offset int64) bool) error {
	s.logger.Info("source started")
	for {
		msg, err := s.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				s.logger.Info("source stopping", "reason", ctx.Err())
				return nil
			}
			return fmt.Errorf("reading from kafka: %w", err)
		}
		score, err := ingest.ParseRecord(msg.Value)
		if err != nil {
			if s.metrics != nil {
				s.metrics.RecordsMalformed.Inc()
			}
			s.logger.Debug("skipping malformed record", "offset", msg.Offset, "error", err)
			continue
		}
		retained := push(score, msg.Offset)
		if s.metrics != nil {
			s.metrics.RecordsScanned.Inc()
			if retained {
				s.metrics.RecordsRetained.Inc()
			} else {
				s.metrics.RecordsDiscarded.Inc()
			}
		}
	}
}

// Close closes the underlying Kafka reader.
func (s *ScoreSource) Close() error {
	return s.reader.Close()
}

// MessageResolver re-fetches message text by partition offset. It is the
// stream counterpart of resolve.Resolver: a scoped resource reused across
// lookups and released by Close.
type MessageResolver struct {
	reader *kafka.Reader
	logger *slog.Logger
}

// NewMessageResolver creates a resolver over the configured topic partition.
func NewMessageResolver(cfg config.KafkaConfig) *MessageResolver {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   cfg.Brokers,
		Topic:     cfg.Topic,
		Partition: cfg.Partition,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	return &MessageResolver{
		reader: r,
		logger: logger.Component("kafka-resolver").With("topic", cfg.Topic, "partition", cfg.Partition),
	}
}

// MessageAt seeks the partition to offset and returns that message's value
// as text.
func (r *MessageResolver) MessageAt(ctx context.Context, offset int64) (string, error) {
	if err := r.reader.SetOffset(offset); err != nil {
		return "", fmt.Errorf("seeking to offset %d: %w", offset, err)
	}
	msg, err := r.reader.ReadMessage(ctx)
	if err != nil {
		return "", fmt.Errorf("fetching message at offset %d: %w", offset, err)
	}
	return string(msg.Value), nil
}

// MessagesAt resolves each offset in input order.
func (r *MessageResolver) MessagesAt(ctx context.Context, offsets []int64) ([]string, error) {
	lines := make([]string, 0, len(offsets))
	for _, off := range offsets {
		line, err := r.MessageAt(ctx, off)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// Close closes the underlying Kafka reader.
func (r *MessageResolver) Close() error {
	return r.reader.Close()
}
