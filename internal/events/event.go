// Package events publishes per-preprint referee results to Kafka.
//
// Each processed preprint produces one message on the configured topic.
// The message key is the preprint's record id (or its title when the
// record has no id), so every result for the same preprint lands on the
// same partition. The value is a JSON Event envelope:
//
//	{
//	  "event_id":   "6f1c...",
//	  "event_type": "preprint.processed",
//	  "source":     "referee-finder",
//	  "run_id":     "0b9e...",
//	  "occurred_at":"2026-10-17T09:12:44Z",
//	  "payload":    {"summary": {...}, "referees": [...]}
//	}
//
// Usage:
//
//	pub := events.NewKafkaPublisher(events.KafkaConfig{
//	    Brokers: cfg.Kafka.Brokers,
//	    Topic:   cfg.Kafka.Topic,
//	}, logger, metrics)
//	defer pub.Close()
//
//	pipeline := referee.NewPipeline(coord, logger, referee.WithPublisher(pub))
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/helixir/referee-finder/internal/domain"
)

const (
	// EventTypePreprintProcessed is emitted once per preprint in a run.
	EventTypePreprintProcessed = "preprint.processed"

	// DefaultSource identifies this service in event envelopes.
	DefaultSource = "referee-finder"
)

// Event is the envelope written as the Kafka message value.
type Event struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	Source     string          `json:"source"`
	RunID      string          `json:"run_id"`
	RequestID  string          `json:"request_id,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// PreprintProcessedPayload carries the outcome of one preprint.
type PreprintProcessedPayload struct {
	Summary  domain.PreprintSummary `json:"summary"`
	Referees []domain.AuthorSet     `json:"referees"`
}

// EmitterConfig configures the Emitter.
type EmitterConfig struct {
	// Source identifies the emitting service.
	Source string
	// Clock returns the event timestamp. Defaults to time.Now.
	Clock func() time.Time
}

// Emitter builds event envelopes.
type Emitter struct {
	config EmitterConfig
}

// NewEmitter creates an Emitter.
func NewEmitter(config EmitterConfig) *Emitter {
	if config.Source == "" {
		config.Source = DefaultSource
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}
	return &Emitter{config: config}
}

// EmitParams contains the parameters for building an event.
type EmitParams struct {
	RunID     uuid.UUID
	RequestID string
	EventType string
	Payload   any
}

// Emit builds an Event from params.
func (e *Emitter) Emit(params EmitParams) (Event, error) {
	if params.RunID == uuid.Nil {
		return Event{}, fmt.Errorf("run_id is required")
	}
	if params.EventType == "" {
		return Event{}, fmt.Errorf("event_type is required")
	}

	payload, err := json.Marshal(params.Payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal payload: %w", err)
	}

	return Event{
		EventID:    uuid.New().String(),
		EventType:  params.EventType,
		Source:     e.config.Source,
		RunID:      params.RunID.String(),
		RequestID:  params.RequestID,
		OccurredAt: e.config.Clock().UTC(),
		Payload:    payload,
	}, nil
}

// EmitPreprintProcessed builds a preprint.processed event.
func (e *Emitter) EmitPreprintProcessed(runID uuid.UUID, requestID string, summary domain.PreprintSummary, sets []domain.AuthorSet) (Event, error) {
	if sets == nil {
		sets = []domain.AuthorSet{}
	}
	return e.Emit(EmitParams{
		RunID:     runID,
		RequestID: requestID,
		EventType: EventTypePreprintProcessed,
		Payload: PreprintProcessedPayload{
			Summary:  summary,
			Referees: sets,
		},
	})
}
