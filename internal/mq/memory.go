package mq

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// ErrClosed is returned by operations on a closed in-process backend.
var ErrClosed = errors.New("mq backend closed")

const memoryQueueSize = 256

// Memory fans messages out to in-process subscribers. Each subscription has
// its own buffered queue; a full queue drops the message for that subscriber.
type Memory struct {
	mu     sync.RWMutex
	subs   map[string]map[*memorySub]struct{}
	closed bool
	done   chan struct{}
}

type memorySub struct {
	queue chan Message
}

// NewMemory constructs an in-process backend.
func NewMemory() *Memory {
	return &Memory{
		subs: make(map[string]map[*memorySub]struct{}),
		done: make(chan struct{}),
	}
}

// Publish delivers the message to every current subscriber of channel.
func (m *Memory) Publish(_ context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("memory channel is required")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return "", ErrClosed
	}

	msg := Message{ID: uuid.NewString(), Data: append([]byte(nil), data...), Attributes: attrs}
	for sub := range m.subs[channel] {
		select {
		case sub.queue <- msg:
		default:
		}
	}
	return msg.ID, nil
}

// Subscribe runs handler for each message on channel until ctx is done or
// the backend is closed. Handler errors are not redelivered.
func (m *Memory) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("memory channel is required")
	}

	sub := &memorySub{queue: make(chan Message, memoryQueueSize)}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.subs[channel] == nil {
		m.subs[channel] = make(map[*memorySub]struct{})
	}
	m.subs[channel][sub] = struct{}{}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.subs[channel], sub)
		m.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.done:
			return ErrClosed
		case msg := <-sub.queue:
			_ = handler(ctx, msg)
		}
	}
}

// Close stops all subscriptions.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.done)
	}
	return nil
}
