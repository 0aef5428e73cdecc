package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/helixir/referee-finder/internal/domain"
	"github.com/helixir/referee-finder/internal/observability"
	"github.com/helixir/referee-finder/internal/referee"
)

var _ referee.Publisher = (*KafkaPublisher)(nil)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

type mockMetrics struct {
	mock.Mock
}

func (m *mockMetrics) RecordEventPublished(eventType string) { m.Called(eventType) }
func (m *mockMetrics) RecordEventFailed(eventType string)    { m.Called(eventType) }

var fixedTime = time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)

func newTestPublisher(w MessageWriter, metrics Metrics) *KafkaPublisher {
	emitter := NewEmitter(EmitterConfig{Clock: func() time.Time { return fixedTime }})
	return NewPublisherWithWriter(w, emitter, zerolog.Nop(), metrics)
}

func testSummary() (domain.PreprintSummary, []domain.AuthorSet) {
	summary := domain.PreprintSummary{
		RecordID:        "rec42",
		Title:           "Emetine inhibits Zika replication",
		Outcome:         domain.OutcomeSucceeded,
		FinalState:      domain.StatePrimaryIndex,
		Provider:        domain.SourceTypePubMed,
		ReferenceCount:  12,
		QualifyingCount: 1,
		AuthorCount:     2,
	}
	sets := []domain.AuthorSet{{
		ReferenceID:    "31234567",
		ReferenceTitle: "Cryo-EM of flavivirus NS5",
		Authors: []domain.Author{
			{Name: "Ana Lopez", Affiliation: "Univ A"},
			{Name: "Ben Okafor", Affiliation: domain.DefaultAffiliation},
		},
	}}
	return summary, sets
}

func TestKafkaPublisher_PublishPreprint(t *testing.T) {
	t.Run("writes keyed message with envelope", func(t *testing.T) {
		w := &fakeWriter{}
		metrics := &mockMetrics{}
		metrics.On("RecordEventPublished", EventTypePreprintProcessed).Once()
		pub := newTestPublisher(w, metrics)

		runID := uuid.New()
		summary, sets := testSummary()
		ctx := observability.WithRequestID(context.Background(), "req-1")

		require.NoError(t, pub.PublishPreprint(ctx, runID, summary, sets))
		require.Len(t, w.messages, 1)

		msg := w.messages[0]
		assert.Equal(t, "rec42", string(msg.Key))
		assert.Equal(t, fixedTime, msg.Time)

		headers := map[string]string{}
		for _, h := range msg.Headers {
			headers[h.Key] = string(h.Value)
		}
		assert.Equal(t, EventTypePreprintProcessed, headers["event_type"])
		assert.Equal(t, runID.String(), headers["run_id"])
		assert.NotEmpty(t, headers["event_id"])

		var event Event
		require.NoError(t, json.Unmarshal(msg.Value, &event))
		assert.Equal(t, EventTypePreprintProcessed, event.EventType)
		assert.Equal(t, DefaultSource, event.Source)
		assert.Equal(t, runID.String(), event.RunID)
		assert.Equal(t, "req-1", event.RequestID)
		assert.Equal(t, headers["event_id"], event.EventID)

		var payload PreprintProcessedPayload
		require.NoError(t, json.Unmarshal(event.Payload, &payload))
		assert.Equal(t, summary.Title, payload.Summary.Title)
		assert.Equal(t, domain.OutcomeSucceeded, payload.Summary.Outcome)
		require.Len(t, payload.Referees, 1)
		assert.Equal(t, domain.CanonicalID("31234567"), payload.Referees[0].ReferenceID)
		assert.Len(t, payload.Referees[0].Authors, 2)

		metrics.AssertExpectations(t)
	})

	t.Run("keys by title when record has no id", func(t *testing.T) {
		w := &fakeWriter{}
		pub := newTestPublisher(w, nil)

		summary := domain.PreprintSummary{Title: "Mayaro virus survey", Outcome: domain.OutcomeExhausted, FinalState: domain.StateExhausted}
		require.NoError(t, pub.PublishPreprint(context.Background(), uuid.New(), summary, nil))
		require.Len(t, w.messages, 1)
		assert.Equal(t, "Mayaro virus survey", string(w.messages[0].Key))

		var event Event
		require.NoError(t, json.Unmarshal(w.messages[0].Value, &event))
		var payload map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(event.Payload, &payload))
		assert.JSONEq(t, `[]`, string(payload["referees"]))
	})

	t.Run("write failure is reported", func(t *testing.T) {
		w := &fakeWriter{err: errors.New("broker unavailable")}
		metrics := &mockMetrics{}
		metrics.On("RecordEventFailed", EventTypePreprintProcessed).Once()
		pub := newTestPublisher(w, metrics)

		summary, sets := testSummary()
		err := pub.PublishPreprint(context.Background(), uuid.New(), summary, sets)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "broker unavailable")
		metrics.AssertExpectations(t)
	})

	t.Run("nil run id is rejected before writing", func(t *testing.T) {
		w := &fakeWriter{}
		metrics := &mockMetrics{}
		metrics.On("RecordEventFailed", EventTypePreprintProcessed).Once()
		pub := newTestPublisher(w, metrics)

		summary, sets := testSummary()
		err := pub.PublishPreprint(context.Background(), uuid.Nil, summary, sets)
		require.Error(t, err)
		assert.Empty(t, w.messages)
		metrics.AssertExpectations(t)
	})
}

func TestKafkaPublisher_Close(t *testing.T) {
	w := &fakeWriter{}
	pub := newTestPublisher(w, nil)
	require.NoError(t, pub.Close())
	assert.True(t, w.closed)
}

func TestNewKafkaPublisher(t *testing.T) {
	pub := NewKafkaPublisher(KafkaConfig{
		Brokers:      []string{"localhost:9092"},
		Topic:        "events.test",
		BatchSize:    10,
		BatchTimeout: 5 * time.Millisecond,
	}, zerolog.Nop(), nil)

	writer, ok := pub.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, "events.test", writer.Topic)
	assert.Equal(t, 10, writer.BatchSize)
	assert.IsType(t, &kafka.Hash{}, writer.Balancer)
	assert.Equal(t, DefaultSource, pub.emitter.config.Source)
}

func TestEmitter_Emit(t *testing.T) {
	emitter := NewEmitter(EmitterConfig{Source: "custom", Clock: func() time.Time { return fixedTime }})

	t.Run("builds envelope", func(t *testing.T) {
		runID := uuid.New()
		event, err := emitter.Emit(EmitParams{
			RunID:     runID,
			EventType: "run.finished",
			Payload:   map[string]int{"preprints": 3},
		})
		require.NoError(t, err)
		assert.Equal(t, "custom", event.Source)
		assert.Equal(t, fixedTime, event.OccurredAt)
		assert.JSONEq(t, `{"preprints":3}`, string(event.Payload))
		_, err = uuid.Parse(event.EventID)
		assert.NoError(t, err)
	})

	t.Run("requires event type", func(t *testing.T) {
		_, err := emitter.Emit(EmitParams{RunID: uuid.New()})
		assert.Error(t, err)
	})

	t.Run("rejects unmarshalable payload", func(t *testing.T) {
		_, err := emitter.Emit(EmitParams{RunID: uuid.New(), EventType: "x", Payload: make(chan int)})
		assert.Error(t, err)
	})
}
