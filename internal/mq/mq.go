package mq

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fittrack/apiserver/config"
)

// ErrNoChannel is returned when Publish or Subscribe get a blank channel name.
var ErrNoChannel = errors.New("mq: channel name is required")

// Message is one notification as delivered by a backend.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler consumes one message. Delivery is at most once: a returned error
// is reported by the backend and the message is not redelivered.
type Handler func(ctx context.Context, msg Message) error

// Backend is a fanout bus. Every live subscription on a channel receives
// every message published to that channel after it subscribed.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// MQ is the notification bus handed to publishers and bridges.
type MQ struct {
	backend Backend
}

func New(backend Backend) *MQ {
	return &MQ{backend: backend}
}

// Open builds the backend named by cfg.Backend.
func Open(ctx context.Context, cfg config.MQConfig) (*MQ, error) {
	var (
		backend Backend
		err     error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "memory":
		backend = NewMemory()
	case "rabbitmq":
		backend, err = NewRabbitMQClient(cfg.RabbitMQ)
	case "pubsub":
		backend, err = NewPubSubClient(ctx, cfg.PubSub)
	case "kafka":
		backend, err = NewKafkaClient(cfg.Kafka)
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return New(backend), nil
}

// Publish sends data to channel and returns the backend's message id.
func (m *MQ) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return "", ErrNoChannel
	}
	if attrs == nil {
		attrs = map[string]string{}
	}
	return m.backend.Publish(ctx, channel, data, attrs)
}

// Subscribe blocks delivering messages from channel to handler until ctx is done.
func (m *MQ) Subscribe(ctx context.Context, channel string, handler Handler) error {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return ErrNoChannel
	}
	if handler == nil {
		return errors.New("mq: handler is required")
	}
	return m.backend.Subscribe(ctx, channel, handler)
}

func (m *MQ) Close() error {
	return m.backend.Close()
}
