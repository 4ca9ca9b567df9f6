package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// fakeReader hands out queued messages and blocks until the context ends
// once they are exhausted.
type fakeReader struct {
	msgs chan kafka.Message

	mu        sync.Mutex
	committed []kafka.Message
	closed    int
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	r := &fakeReader{msgs: make(chan kafka.Message, len(msgs))}
	for _, m := range msgs {
		r.msgs <- m
	}
	return r
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed++
	return nil
}

func (r *fakeReader) commits() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.committed)
}

func message(t *testing.T, ev Event) kafka.Message {
	t.Helper()

	b, err := json.Marshal(ev)
	require.NoError(t, err)
	return kafka.Message{Key: []byte(ev.EntityID.String()), Value: b}
}

func TestConsumer_HandlesAndCommits(t *testing.T) {
	first, second := testEvent(), testEvent()
	second.Type = TransferRequested
	reader := newFakeReader(message(t, first), message(t, second))

	core, recorded := observer.New(zap.ErrorLevel)
	consumer := newConsumer(reader, zap.New(core))

	var mu sync.Mutex
	var seen []Event
	consumer.RegisterHandler(func(_ context.Context, ev Event) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, ev)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	consumer.Start(ctx)
	require.Eventually(t, func() bool { return reader.commits() == 2 }, time.Second, 10*time.Millisecond)
	cancel()
	<-consumer.Done()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 2)
	assert.Equal(t, ContractCreated, seen[0].Type)
	assert.Equal(t, first.EntityID, seen[0].EntityID)
	assert.Equal(t, TransferRequested, seen[1].Type)
	assert.Zero(t, recorded.Len())
}

func TestConsumer_HandlerFailureLeavesMessageUncommitted(t *testing.T) {
	reader := newFakeReader(message(t, testEvent()))
	core, recorded := observer.New(zap.ErrorLevel)
	consumer := newConsumer(reader, zap.New(core))
	consumer.RegisterHandler(func(context.Context, Event) error { return errors.New("downstream unavailable") })

	ctx, cancel := context.WithCancel(context.Background())
	consumer.Start(ctx)
	require.Eventually(t, func() bool {
		return recorded.FilterMessage("Failed to handle event").Len() == 1
	}, time.Second, 10*time.Millisecond)
	cancel()
	<-consumer.Done()

	assert.Zero(t, reader.commits())
}

func TestConsumer_SkipsMalformedMessages(t *testing.T) {
	reader := newFakeReader(kafka.Message{Value: []byte("{not json")})
	core, recorded := observer.New(zap.ErrorLevel)
	consumer := newConsumer(reader, zap.New(core))

	ctx, cancel := context.WithCancel(context.Background())
	consumer.Start(ctx)
	require.Eventually(t, func() bool { return reader.commits() == 1 }, time.Second, 10*time.Millisecond)
	cancel()
	<-consumer.Done()

	assert.Equal(t, 1, recorded.FilterMessage("Failed to parse event").Len())
}

func TestConsumer_CloseOnce(t *testing.T) {
	reader := newFakeReader()
	consumer := newConsumer(reader, zap.NewNop())

	consumer.Close()
	consumer.Close()

	assert.Equal(t, 1, reader.closed)
}
