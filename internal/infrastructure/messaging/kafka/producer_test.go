package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/biomarker-engine/internal/config"
	pkgerrors "github.com/turtacn/biomarker-engine/pkg/errors"
)

type mockKafkaWriter struct {
	written []kafka.Message
	err     error
	closed  int
}

func (m *mockKafkaWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if m.err != nil {
		return m.err
	}
	m.written = append(m.written, msgs...)
	return nil
}

func (m *mockKafkaWriter) Close() error {
	m.closed++
	return nil
}

func newTestProducer(w *mockKafkaWriter) *Producer {
	return NewProducerWithWriter(w, ProducerConfig{Brokers: []string{"localhost:9092"}, MaxMessageBytes: 64}, nil)
}

func TestValidateProducerConfig(t *testing.T) {
	assert.NoError(t, ValidateProducerConfig(ProducerConfig{Brokers: []string{"b:9092"}}))
	assert.Error(t, ValidateProducerConfig(ProducerConfig{}))
	assert.Error(t, ValidateProducerConfig(ProducerConfig{Brokers: []string{"b"}, MaxRetries: -1}))
}

func TestProducerConfigFrom(t *testing.T) {
	cfg := ProducerConfigFrom(config.KafkaConfig{Brokers: []string{"a:9092"}, MaxRetries: 5})
	assert.Equal(t, []string{"a:9092"}, cfg.Brokers)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, "all", cfg.Acks)
}

func TestPublish_Success(t *testing.T) {
	w := &mockKafkaWriter{}
	p := newTestProducer(w)

	err := p.Publish(context.Background(), &ProducerMessage{
		Topic:   TopicExamValidated,
		Key:     []byte("exam-1"),
		Value:   []byte("{}"),
		Headers: map[string]string{"content-type": "application/json"},
	})
	require.NoError(t, err)
	require.Len(t, w.written, 1)
	assert.Equal(t, TopicExamValidated, w.written[0].Topic)
	assert.Equal(t, "exam-1", string(w.written[0].Key))
	assert.False(t, w.written[0].Time.IsZero())
	assert.Equal(t, int64(1), p.Stats().MessagesSent)
	assert.Equal(t, int64(2), p.Stats().BytesSent)
}

func TestPublish_Rejections(t *testing.T) {
	p := newTestProducer(&mockKafkaWriter{})
	ctx := context.Background()

	assert.Error(t, p.Publish(ctx, nil))
	assert.Error(t, p.Publish(ctx, &ProducerMessage{Value: []byte("x")}))
	assert.Error(t, p.Publish(ctx, &ProducerMessage{Topic: "t"}))
	assert.Error(t, p.Publish(ctx, &ProducerMessage{Topic: "t", Value: make([]byte, 65)}))
}

func TestPublish_WriterError(t *testing.T) {
	p := newTestProducer(&mockKafkaWriter{err: errors.New("leader not available")})

	err := p.Publish(context.Background(), &ProducerMessage{Topic: "t", Value: []byte("x")})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeMessagingError))
	assert.Equal(t, int64(1), p.Stats().MessagesFailed)
}

func TestPublishJSON(t *testing.T) {
	w := &mockKafkaWriter{}
	p := newTestProducer(w)

	require.NoError(t, p.PublishJSON(context.Background(), "t", "k", map[string]int{"n": 1}, nil))
	var got map[string]int
	require.NoError(t, json.Unmarshal(w.written[0].Value, &got))
	assert.Equal(t, 1, got["n"])
}

func TestProducer_Close(t *testing.T) {
	w := &mockKafkaWriter{}
	p := newTestProducer(w)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.Equal(t, 1, w.closed)
	assert.ErrorIs(t, p.Publish(context.Background(), &ProducerMessage{Topic: "t", Value: []byte("x")}), ErrProducerClosed)
}
