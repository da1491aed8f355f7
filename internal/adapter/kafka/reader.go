// Package kafka adapts the ingest topic to the engine's extractor interface.
package kafka

import (
	"context"
	"errors"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/ancjainil/Crisis-management/internal/config"
	"github.com/ancjainil/Crisis-management/internal/domain"
)

// Reader consumes raw hazard/resource reports from the configured topic.
// It implements engine.BatchExtractor.
type Reader struct {
	reader *kafkago.Reader
	logger *slog.Logger
}

// NewReader creates a Kafka consumer for the reports topic.
func NewReader(cfg *config.Config, logger *slog.Logger) *Reader {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		GroupID:  cfg.KafkaGroupID,
		Topic:    cfg.KafkaReportsTopic,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  500 * time.Millisecond,
	})
	return &Reader{reader: r, logger: logger}
}

// ExtractBatch reads up to batchSize messages. The first fetch blocks until
// a message arrives or the context is cancelled; the rest of the batch is
// drained opportunistically with a short deadline so a quiet topic never
// stalls a partially filled batch.
func (r *Reader) ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawReport, error) {
	first, err := r.reader.FetchMessage(ctx)
	if err != nil {
		return nil, err
	}

	reports := make([]domain.RawReport, 0, batchSize)
	reports = append(reports, r.mapMessage(first))

	drainCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()

	for len(reports) < batchSize {
		msg, err := r.reader.FetchMessage(drainCtx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				break
			}
			r.logger.Warn("fetch message failed mid-batch", "error", err)
			break
		}
		reports = append(reports, r.mapMessage(msg))
	}

	return reports, nil
}

// Close shuts down the consumer and leaves the group.
func (r *Reader) Close() error {
	return r.reader.Close()
}

func (r *Reader) mapMessage(msg kafkago.Message) domain.RawReport {
	raw := mapMessageToRawReport(msg)
	raw.Commit = func(ctx context.Context) error {
		return r.reader.CommitMessages(ctx, msg)
	}
	return raw
}

// mapMessageToRawReport converts a Kafka message into the domain's raw
// report shape, minus the commit closure.
func mapMessageToRawReport(msg kafkago.Message) domain.RawReport {
	return domain.RawReport{
		Key:       msg.Key,
		Value:     msg.Value,
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Timestamp: msg.Time,
	}
}
