package mq

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fittrack/apiserver/config"
	"github.com/stretchr/testify/require"
)

func waitForSubscribers(t *testing.T, m *Memory, channel string, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		m.mu.RLock()
		defer m.mu.RUnlock()
		return len(m.subs[channel]) == n
	}, time.Second, 5*time.Millisecond)
}

func TestMemoryFansOutToEverySubscriber(t *testing.T) {
	backend := NewMemory()
	defer backend.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	got := map[int][]string{}
	for i := 0; i < 2; i++ {
		i := i
		go func() {
			_ = backend.Subscribe(ctx, "events", func(_ context.Context, msg Message) error {
				mu.Lock()
				got[i] = append(got[i], string(msg.Data))
				mu.Unlock()
				return nil
			})
		}()
	}
	waitForSubscribers(t, backend, "events", 2)

	id, err := backend.Publish(ctx, "events", []byte("hello"), nil)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got[0]) == 1 && len(got[1]) == 1
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, "hello", got[0][0])
}

func TestMemoryIgnoresOtherChannels(t *testing.T) {
	backend := NewMemory()
	defer backend.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan Message, 1)
	go func() {
		_ = backend.Subscribe(ctx, "a", func(_ context.Context, msg Message) error {
			received <- msg
			return nil
		})
	}()
	waitForSubscribers(t, backend, "a", 1)

	_, err := backend.Publish(ctx, "b", []byte("x"), nil)
	require.NoError(t, err)

	select {
	case <-received:
		t.Fatal("unexpected delivery from another channel")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemorySubscribeStopsOnCancelAndClose(t *testing.T) {
	backend := NewMemory()

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() {
		errs <- backend.Subscribe(ctx, "a", func(context.Context, Message) error { return nil })
	}()
	waitForSubscribers(t, backend, "a", 1)
	cancel()
	require.ErrorIs(t, <-errs, context.Canceled)
	waitForSubscribers(t, backend, "a", 0)

	require.NoError(t, backend.Close())
	_, err := backend.Publish(context.Background(), "a", nil, nil)
	require.ErrorIs(t, err, ErrClosed)
	require.ErrorIs(t, backend.Subscribe(context.Background(), "a", nil), ErrClosed)
}

func TestMemoryRequiresChannel(t *testing.T) {
	backend := NewMemory()
	defer backend.Close()

	_, err := backend.Publish(context.Background(), " ", nil, nil)
	require.Error(t, err)
}

func TestMQRejectsBlankChannel(t *testing.T) {
	bus := New(NewMemory())
	defer bus.Close()

	_, err := bus.Publish(context.Background(), "  ", []byte("x"), nil)
	require.ErrorIs(t, err, ErrNoChannel)
	require.ErrorIs(t, bus.Subscribe(context.Background(), "", func(context.Context, Message) error { return nil }), ErrNoChannel)
	require.Error(t, bus.Subscribe(context.Background(), "events", nil))
}

func TestOpenSelectsBackend(t *testing.T) {
	bus, err := Open(context.Background(), config.MQConfig{Backend: " Memory "})
	require.NoError(t, err)
	require.NoError(t, bus.Close())

	_, err = Open(context.Background(), config.MQConfig{Backend: "carrier-pigeon"})
	require.Error(t, err)
}
