package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/helixir/referee-finder/internal/domain"
	"github.com/helixir/referee-finder/internal/observability"
)

// Metrics records publish outcomes.
type Metrics interface {
	RecordEventPublished(eventType string)
	RecordEventFailed(eventType string)
}

// MessageWriter is the subset of *kafka.Writer used by the publisher.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig holds Kafka publisher settings.
type KafkaConfig struct {
	// Brokers is the list of Kafka broker addresses.
	Brokers []string
	// Topic is the destination topic.
	Topic string
	// BatchSize is the maximum number of messages per batch.
	BatchSize int
	// BatchTimeout is how long to wait for a batch to fill.
	BatchTimeout time.Duration
	// Source overrides the envelope source.
	Source string
}

// KafkaPublisher writes preprint results to a Kafka topic.
type KafkaPublisher struct {
	writer  MessageWriter
	emitter *Emitter
	metrics Metrics
	logger  zerolog.Logger
}

// NewKafkaPublisher creates a publisher backed by a kafka-go Writer.
// Messages are partitioned by key hash. Metrics may be nil.
func NewKafkaPublisher(cfg KafkaConfig, logger zerolog.Logger, metrics Metrics) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: false,
	}
	return NewPublisherWithWriter(writer, NewEmitter(EmitterConfig{Source: cfg.Source}), logger, metrics)
}

// NewPublisherWithWriter creates a publisher around an existing writer.
func NewPublisherWithWriter(writer MessageWriter, emitter *Emitter, logger zerolog.Logger, metrics Metrics) *KafkaPublisher {
	if emitter == nil {
		emitter = NewEmitter(EmitterConfig{})
	}
	return &KafkaPublisher{
		writer:  writer,
		emitter: emitter,
		metrics: metrics,
		logger:  logger.With().Str("component", "event_publisher").Logger(),
	}
}

// PublishPreprint writes one preprint.processed message.
func (p *KafkaPublisher) PublishPreprint(ctx context.Context, runID uuid.UUID, summary domain.PreprintSummary, sets []domain.AuthorSet) error {
	requestID := observability.RequestIDFromContext(ctx)

	event, err := p.emitter.EmitPreprintProcessed(runID, requestID, summary, sets)
	if err != nil {
		p.recordFailed(EventTypePreprintProcessed)
		return fmt.Errorf("build event: %w", err)
	}

	value, err := json.Marshal(event)
	if err != nil {
		p.recordFailed(event.EventType)
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(messageKey(summary)),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "event_id", Value: []byte(event.EventID)},
			{Key: "run_id", Value: []byte(event.RunID)},
		},
		Time: event.OccurredAt,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.recordFailed(event.EventType)
		p.logger.Error().Err(err).
			Str("run_id", event.RunID).
			Str("title", summary.Title).
			Msg("failed to publish preprint event")
		return fmt.Errorf("write %s: %w", event.EventType, err)
	}

	if p.metrics != nil {
		p.metrics.RecordEventPublished(event.EventType)
	}
	p.logger.Debug().
		Str("event_id", event.EventID).
		Str("run_id", event.RunID).
		Str("outcome", string(summary.Outcome)).
		Msg("published preprint event")

	return nil
}

// Close flushes pending messages and closes the writer.
func (p *KafkaPublisher) Close() error {
	p.logger.Info().Msg("closing event publisher")
	return p.writer.Close()
}

func (p *KafkaPublisher) recordFailed(eventType string) {
	if p.metrics != nil {
		p.metrics.RecordEventFailed(eventType)
	}
}

func messageKey(summary domain.PreprintSummary) string {
	if summary.RecordID != "" {
		return summary.RecordID
	}
	return summary.Title
}
