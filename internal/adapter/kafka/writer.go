// Package kafka publishes normalized alert records to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/disaster-alert-service/internal/config"
	"github.com/couchcryptid/disaster-alert-service/internal/domain"
)

// Writer produces record messages to a Kafka topic.
// It implements pipeline.RecordPublisher.
type Writer struct {
	writer *kafkago.Writer
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured record topic.
func NewWriter(cfg *config.Config, clock clockwork.Clock, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Writer{writer: w, clock: clock, logger: logger}
}

// Publish serializes the records of one feed and writes them in a single
// WriteMessages call. Records sharing a dedup key land on the same partition.
func (w *Writer) Publish(ctx context.Context, feed domain.FeedType, records []domain.AlertRecord) error {
	if len(records) == 0 {
		return nil
	}
	publishedAt := w.clock.Now()
	msgs := make([]kafkago.Message, len(records))
	for i := range records {
		msg, err := serializeToMessage(records[i], publishedAt)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %s records: %w", feed, err)
	}
	w.logger.Debug("records published", "feed", feed, "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an AlertRecord into a Kafka message keyed by its
// dedup key, or by feed type when the record has none.
func serializeToMessage(rec domain.AlertRecord, publishedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize alert record: %w", err)
	}
	key := rec.DedupKey
	if key == "" {
		key = string(rec.FeedType)
	}
	return kafkago.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "feed_type", Value: []byte(rec.FeedType)},
			{Key: "published_at", Value: []byte(publishedAt.UTC().Format(time.RFC3339))},
		},
	}, nil
}
