package mq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/fittrack/apiserver/config"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQClient wraps a RabbitMQ connection/channel pair. Channels map to
// fanout exchanges; each subscription binds its own queue to the exchange.
// A closed connection or channel is redialed on the next operation.
type RabbitMQClient struct {
	url             string
	prefetch        int
	queueDurable    bool
	queueAutoDelete bool

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	closed  bool
}

// NewRabbitMQClient constructs a RabbitMQ client from config and dials once
// so a bad URL fails at startup.
func NewRabbitMQClient(cfg config.RabbitMQConfig) (*RabbitMQClient, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("rabbitmq url is required")
	}

	r := &RabbitMQClient{
		url:             cfg.URL,
		prefetch:        cfg.PrefetchCount,
		queueDurable:    cfg.QueueDurable,
		queueAutoDelete: cfg.QueueAutoDelete,
	}
	if _, err := r.ensureChannel(); err != nil {
		return nil, err
	}
	return r, nil
}

// Publish sends a message to the named exchange.
func (r *RabbitMQClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("rabbitmq channel is required")
	}

	ch, err := r.ensureChannel()
	if err != nil {
		return "", err
	}
	if err := r.declareExchange(ch, channel); err != nil {
		return "", err
	}

	headers := amqp.Table{}
	for key, value := range attrs {
		headers[key] = value
	}

	messageID := uuid.NewString()
	err = ch.PublishWithContext(ctx, channel, "", false, false, amqp.Publishing{
		ContentType: "application/json",
		MessageId:   messageID,
		Headers:     headers,
		Body:        data,
	})
	if err != nil {
		return "", err
	}
	return messageID, nil
}

// Subscribe binds a fresh queue to the named exchange and consumes from it.
// It returns an error when the broker closes the delivery stream; calling
// it again redials.
func (r *RabbitMQClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("rabbitmq channel is required")
	}

	ch, err := r.ensureChannel()
	if err != nil {
		return err
	}
	if err := r.declareExchange(ch, channel); err != nil {
		return err
	}

	queue, err := ch.QueueDeclare("", r.queueDurable, r.queueAutoDelete, true, false, nil)
	if err != nil {
		return err
	}
	if err := ch.QueueBind(queue.Name, "", channel, false, nil); err != nil {
		return err
	}

	consumerTag := fmt.Sprintf("consumer-%s", uuid.NewString())
	deliveries, err := ch.Consume(queue.Name, consumerTag, false, false, false, false, nil)
	if err != nil {
		return err
	}
	defer func() {
		if !ch.IsClosed() {
			_ = ch.Cancel(consumerTag, false)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}
			message := Message{
				ID:         delivery.MessageId,
				Data:       delivery.Body,
				Attributes: headersToAttributes(delivery.Headers),
			}
			if err := handler(ctx, message); err != nil {
				_ = delivery.Nack(false, false)
				continue
			}
			_ = delivery.Ack(false)
		}
	}
}

// Close closes the channel and connection. Later calls return ErrClosed.
func (r *RabbitMQClient) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return r.dropLocked()
}

// ensureChannel returns the open channel, dialing a new connection and
// channel when either has been closed by the broker.
func (r *RabbitMQClient) ensureChannel() (*amqp.Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}
	if r.conn != nil && !r.conn.IsClosed() && r.channel != nil && !r.channel.IsClosed() {
		return r.channel, nil
	}
	_ = r.dropLocked()

	conn, err := amqp.Dial(r.url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}
	if r.prefetch > 0 {
		if err := ch.Qos(r.prefetch, 0, false); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, err
		}
	}

	r.conn, r.channel = conn, ch
	return ch, nil
}

func (r *RabbitMQClient) dropLocked() error {
	var err error
	if r.channel != nil && !r.channel.IsClosed() {
		_ = r.channel.Close()
	}
	if r.conn != nil && !r.conn.IsClosed() {
		err = r.conn.Close()
	}
	r.conn, r.channel = nil, nil
	return err
}

func (r *RabbitMQClient) declareExchange(ch *amqp.Channel, name string) error {
	return ch.ExchangeDeclare(
		name,
		amqp.ExchangeFanout,
		r.queueDurable,
		r.queueAutoDelete,
		false,
		false,
		nil,
	)
}

func headersToAttributes(headers amqp.Table) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(headers))
	for key, value := range headers {
		switch typed := value.(type) {
		case string:
			attrs[key] = typed
		case []byte:
			attrs[key] = string(typed)
		default:
			attrs[key] = fmt.Sprint(value)
		}
	}
	return attrs
}
