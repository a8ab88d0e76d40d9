package mq

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/fittrack/apiserver/config"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

const kafkaMessageIDHeader = "message-id"

// KafkaClient publishes to and consumes from Kafka topics named after channels.
type KafkaClient struct {
	brokers []string
	groupID string

	mu      sync.Mutex
	writers map[string]*kafka.Writer
	closed  bool
}

// NewKafkaClient constructs a Kafka client from config.
func NewKafkaClient(cfg config.KafkaConfig) (*KafkaClient, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if strings.TrimSpace(cfg.GroupID) == "" {
		return nil, errors.New("kafka group id is required")
	}
	return &KafkaClient{
		brokers: cfg.Brokers,
		groupID: cfg.GroupID,
		writers: make(map[string]*kafka.Writer),
	}, nil
}

// Publish sends a message to the named topic.
func (k *KafkaClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("kafka channel is required")
	}

	messageID := uuid.NewString()
	headers := make([]kafka.Header, 0, len(attrs)+1)
	headers = append(headers, kafka.Header{Key: kafkaMessageIDHeader, Value: []byte(messageID)})
	for key, value := range attrs {
		headers = append(headers, kafka.Header{Key: key, Value: []byte(value)})
	}

	err := k.writer(channel).WriteMessages(ctx, kafka.Message{
		Key:     []byte(messageID),
		Value:   data,
		Headers: headers,
	})
	if err != nil {
		return "", err
	}
	return messageID, nil
}

// Subscribe consumes messages from the named topic. Consumers sharing the
// configured group id split the partitions between them, so each replica
// should run with its own group id.
//
// A group without committed offsets starts at the end of the topic, so a
// new replica only sees events published after it joined. Offsets are
// committed whether or not the handler succeeds: delivery is at most once.
func (k *KafkaClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("kafka channel is required")
	}
	k.mu.Lock()
	closed := k.closed
	k.mu.Unlock()
	if closed {
		return ErrClosed
	}

	reader := kafka.NewReader(k.readerConfig(channel))
	defer reader.Close()

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		message := Message{Data: msg.Value, Attributes: make(map[string]string, len(msg.Headers))}
		for _, header := range msg.Headers {
			if header.Key == kafkaMessageIDHeader {
				message.ID = string(header.Value)
				continue
			}
			message.Attributes[header.Key] = string(header.Value)
		}

		_ = handler(ctx, message)
		if err := reader.CommitMessages(ctx, msg); err != nil {
			return err
		}
	}
}

func (k *KafkaClient) readerConfig(topic string) kafka.ReaderConfig {
	return kafka.ReaderConfig{
		Brokers:     k.brokers,
		GroupID:     k.groupID,
		Topic:       topic,
		StartOffset: kafka.LastOffset,
	}
}

// Close flushes and closes all topic writers.
func (k *KafkaClient) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.closed = true

	var errs []error
	for topic, writer := range k.writers {
		if err := writer.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(k.writers, topic)
	}
	return errors.Join(errs...)
}

func (k *KafkaClient) writer(topic string) *kafka.Writer {
	k.mu.Lock()
	defer k.mu.Unlock()

	if w, ok := k.writers[topic]; ok {
		return w
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(k.brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	k.writers[topic] = w
	return w
}
