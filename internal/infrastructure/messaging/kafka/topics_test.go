package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/biomarker-engine/internal/config"
)

type mockConn struct {
	existing  map[string]bool
	created   []kafka.TopicConfig
	createErr error
}

func (m *mockConn) CreateTopics(topics ...kafka.TopicConfig) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, topics...)
	return nil
}

func (m *mockConn) ReadPartitions(topics ...string) ([]kafka.Partition, error) {
	if len(topics) == 1 && m.existing[topics[0]] {
		return []kafka.Partition{{Topic: topics[0]}}, nil
	}
	return nil, errors.New("unknown topic")
}

func (m *mockConn) Close() error { return nil }

func TestEnsureTopics_CreatesMissingOnly(t *testing.T) {
	conn := &mockConn{existing: map[string]bool{TopicExamExtracted: true}}
	m := NewTopicManagerWithConn(conn, nil)

	k := config.KafkaConfig{InputTopic: TopicExamExtracted, OutputTopic: TopicExamValidated, DeadLetterTopic: TopicDeadLetter}
	require.NoError(t, m.EnsureTopics(context.Background(), PipelineTopics(k)))

	require.Len(t, conn.created, 2)
	assert.Equal(t, TopicExamValidated, conn.created[0].Topic)
	assert.Equal(t, TopicDeadLetter, conn.created[1].Topic)
	require.Len(t, conn.created[0].ConfigEntries, 1)
	assert.Equal(t, "604800000", conn.created[0].ConfigEntries[0].ConfigValue)
}

func TestCreateTopic_Validation(t *testing.T) {
	m := NewTopicManagerWithConn(&mockConn{}, nil)
	ctx := context.Background()
	assert.Error(t, m.CreateTopic(ctx, TopicConfig{}))
	assert.Error(t, m.CreateTopic(ctx, TopicConfig{Name: "t"}))
}

func TestCreateTopic_AlreadyExistsRace(t *testing.T) {
	m := NewTopicManagerWithConn(&mockConn{createErr: kafka.TopicAlreadyExists}, nil)
	assert.NoError(t, m.CreateTopic(context.Background(), TopicConfig{Name: "t", NumPartitions: 1, ReplicationFactor: 1}))
}

func TestCreateTopic_Error(t *testing.T) {
	m := NewTopicManagerWithConn(&mockConn{createErr: errors.New("not controller")}, nil)
	assert.Error(t, m.CreateTopic(context.Background(), TopicConfig{Name: "t", NumPartitions: 1, ReplicationFactor: 1}))
}
