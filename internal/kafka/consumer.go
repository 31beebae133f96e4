package kafka

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/segmentio/kafka-go"

	"occupancy/internal/logger"
	"occupancy/internal/metrics"
	"occupancy/internal/models"
)

// Recorder stores a sensor reading.
type Recorder interface {
	Record(sensorID string, count *float64, at time.Time) models.Measurement
}

type messageReader interface {
	Config() kafka.ReaderConfig
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer feeds measurements published on a Kafka topic into a Recorder.
// Payloads use the same JSON shape as POST /api/measure.
type Consumer struct {
	reader messageReader
	store  Recorder
	now    func() time.Time

	retryBackoff time.Duration
}

const maxFetchBackoff = 30 * time.Second

// NewConsumer creates a consumer-group reader on topic.
func NewConsumer(brokers []string, topic, groupID string, store Recorder) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}
	if topic == "" {
		return nil, errors.New("topic is required")
	}
	if store == nil {
		return nil, errors.New("measurement store is required")
	}

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       1 << 20,
		MaxWait:        500 * time.Millisecond,
		CommitInterval: time.Second,
		StartOffset:    kafka.LastOffset,
	})
	return &Consumer{reader: r, store: store, now: time.Now, retryBackoff: 250 * time.Millisecond}, nil
}

// Start reads until ctx is cancelled or the reader is closed. Fetch errors
// are logged and retried with exponential backoff. Malformed messages are
// logged, counted and committed so they are not redelivered.
func (c *Consumer) Start(ctx context.Context) error {
	log := logger.WithComponent("kafka_consumer")
	log.Info().Str("topic", c.reader.Config().Topic).Msg("measurement consumer started")
	defer log.Info().Msg("measurement consumer stopped")

	backoff := c.retryBackoff

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			metrics.KafkaConsumedTotal.WithLabelValues("fetch_error").Inc()
			log.Error().
				Err(err).
				Dur("backoff", backoff).
				Msg("fetch failed, retrying")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, maxFetchBackoff)
			continue
		}
		backoff = c.retryBackoff

		if err := c.Handle(msg); err != nil {
			log.Warn().
				Err(err).
				Int("partition", msg.Partition).
				Int64("offset", msg.Offset).
				Msg("measurement rejected")
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Int64("offset", msg.Offset).Msg("commit failed")
		}
	}
}

// Handle decodes one message and records it.
func (c *Consumer) Handle(msg kafka.Message) error {
	sensorID, count, err := models.DecodeMeasurement(msg.Value)
	if err != nil {
		metrics.KafkaConsumedTotal.WithLabelValues("rejected").Inc()
		if reason, ok := models.ReasonOf(err); ok {
			metrics.ValidationErrors.WithLabelValues(string(reason)).Inc()
		}
		return err
	}

	c.store.Record(sensorID, count, c.now())
	metrics.KafkaConsumedTotal.WithLabelValues("recorded").Inc()
	metrics.MeasurementsRecorded.WithLabelValues("kafka", countLabel(count)).Inc()
	return nil
}

// Stop closes the underlying reader.
func (c *Consumer) Stop() error {
	return c.reader.Close()
}

func countLabel(count *float64) string {
	if count == nil {
		return "null"
	}
	return "present"
}
