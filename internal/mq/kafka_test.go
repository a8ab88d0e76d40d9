package mq

import (
	"context"
	"testing"

	"github.com/fittrack/apiserver/config"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

func TestKafkaReaderStartsAtTopicEnd(t *testing.T) {
	client, err := NewKafkaClient(config.KafkaConfig{Brokers: []string{"localhost:9092"}, GroupID: "fittrack-a"})
	require.NoError(t, err)

	cfg := client.readerConfig("fitness.notifications")
	require.Equal(t, kafka.LastOffset, cfg.StartOffset)
	require.Equal(t, "fittrack-a", cfg.GroupID)
	require.Equal(t, "fitness.notifications", cfg.Topic)
}

func TestKafkaSubscribeAfterClose(t *testing.T) {
	client, err := NewKafkaClient(config.KafkaConfig{Brokers: []string{"localhost:9092"}, GroupID: "fittrack-a"})
	require.NoError(t, err)
	require.NoError(t, client.Close())

	err = client.Subscribe(context.Background(), "events", func(context.Context, Message) error { return nil })
	require.ErrorIs(t, err, ErrClosed)
}
