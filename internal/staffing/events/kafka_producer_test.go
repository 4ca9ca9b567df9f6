package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// MockKafkaWriter implements KafkaWriter for testing
type MockKafkaWriter struct {
	mock.Mock
}

func (m *MockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *MockKafkaWriter) Close() error {
	args := m.Called()
	return args.Error(0)
}

func testEvent() Event {
	return Event{
		Type:       ContractCreated,
		FirmID:     uuid.New(),
		Entity:     "contract",
		EntityID:   uuid.New(),
		ActorID:    uuid.New(),
		OccurredAt: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
		Payload:    map[string]string{"status": "ACTIVE"},
	}
}

func TestNewProducerNaming(t *testing.T) {
	producer := newProducer(new(MockKafkaWriter), zaptest.NewLogger(t))

	assert.NotNil(t, producer.writer)
	assert.NotNil(t, producer.events)
	assert.NotNil(t, producer.closeChan)
	assert.Equal(t, "kafka_producer", producer.logger.Check(zap.InfoLevel, "").LoggerName)
}

func TestProducer_Produce(t *testing.T) {
	t.Run("successful produce", func(t *testing.T) {
		producer := newProducer(new(MockKafkaWriter), zaptest.NewLogger(t))

		event := testEvent()
		event.OccurredAt = time.Time{}
		producer.Produce(event)

		require.Equal(t, 1, len(producer.events))
		queued := <-producer.events
		assert.False(t, queued.OccurredAt.IsZero(), "Produce should stamp the event time")
	})

	t.Run("dropped event when queue full", func(t *testing.T) {
		core, recorded := observer.New(zap.WarnLevel)
		producer := newProducer(new(MockKafkaWriter), zap.New(core))
		producer.events = make(chan Event, 1) // Small buffer for test

		producer.Produce(testEvent())
		producer.Produce(testEvent()) // This should be dropped

		assert.Equal(t, 1, recorded.FilterMessage("Kafka producer queue full, dropping event").Len())
	})
}

func TestProducer_SendEvent(t *testing.T) {
	mockWriter := new(MockKafkaWriter)
	event := testEvent()

	producer := &Producer{
		writer: mockWriter,
		logger: zaptest.NewLogger(t),
	}

	t.Run("successful send", func(t *testing.T) {
		mockWriter.On("WriteMessages", mock.Anything, mock.Anything).Return(nil)

		producer.sendEvent(context.Background(), event)

		mockWriter.AssertCalled(t, "WriteMessages", mock.Anything, []kafka.Message{
			{
				Key:     []byte(event.EntityID.String()),
				Value:   mustMarshal(event),
				Headers: []kafka.Header{{Key: "event_type", Value: []byte(ContractCreated)}},
			},
		})
	})

	t.Run("serialization error", func(t *testing.T) {
		core, recorded := observer.New(zap.ErrorLevel)
		producer.logger = zap.New(core)

		// Mock JSON marshaling to force error
		oldMarshal := jsonMarshal
		jsonMarshal = func(_ interface{}) ([]byte, error) {
			return nil, errors.New("mock marshal error")
		}
		defer func() { jsonMarshal = oldMarshal }()

		producer.sendEvent(context.Background(), event)

		assert.Equal(t, 1, recorded.FilterMessage("Failed to serialize event").Len())
		assert.Equal(t, 1, recorded.FilterField(zap.String("entity_id", event.EntityID.String())).Len())
	})

	t.Run("write error", func(t *testing.T) {
		core, recorded := observer.New(zap.ErrorLevel)
		producer.logger = zap.New(core)
		mockWriter.ExpectedCalls = nil
		mockWriter.On("WriteMessages", mock.Anything, mock.Anything).Return(errors.New("kafka error"))

		producer.sendEvent(context.Background(), event)

		assert.Equal(t, 1, recorded.FilterMessage("Failed to produce event").Len())
	})
}

func TestProducer_Close(t *testing.T) {
	mockWriter := new(MockKafkaWriter)
	mockWriter.On("Close").Return(nil)

	producer := &Producer{
		writer:    mockWriter,
		closeChan: make(chan struct{}),
		logger:    zaptest.NewLogger(t),
	}

	producer.Close()

	select {
	case <-producer.closeChan:
	default:
		t.Error("closeChan not closed")
	}

	mockWriter.AssertCalled(t, "Close")
}

func TestProducer_CloseFlushesQueue(t *testing.T) {
	var (
		mu    sync.Mutex
		calls []string
	)
	record := func(name string) func(mock.Arguments) {
		return func(mock.Arguments) {
			mu.Lock()
			defer mu.Unlock()
			calls = append(calls, name)
		}
	}
	mockWriter := new(MockKafkaWriter)
	mockWriter.On("WriteMessages", mock.Anything, mock.Anything).Run(record("write")).Return(nil)
	mockWriter.On("Close").Run(record("close")).Return(nil)

	producer := newProducer(mockWriter, zaptest.NewLogger(t))
	for i := 0; i < 3; i++ {
		producer.Produce(testEvent())
	}
	producer.start()

	producer.Close()
	producer.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"write", "write", "write", "close"}, calls)
	mockWriter.AssertNumberOfCalls(t, "Close", 1)
	assert.Empty(t, producer.events)
}

func TestProducer_EventLoop(t *testing.T) {
	sent := make(chan struct{}, 1)
	mockWriter := new(MockKafkaWriter)
	mockWriter.On("WriteMessages", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { sent <- struct{}{} }).
		Return(nil)

	producer := newProducer(mockWriter, zaptest.NewLogger(t))
	go producer.eventLoop()
	defer close(producer.closeChan)

	producer.events <- testEvent()

	select {
	case <-sent:
	case <-time.After(time.Second):
		t.Fatal("event was not written")
	}
}

func TestNopProducer(t *testing.T) {
	var p NopProducer
	assert.NotPanics(t, func() {
		p.Produce(testEvent())
		p.Close()
	})
}

func mustMarshal(e Event) []byte {
	data, _ := json.Marshal(e)
	return data
}
