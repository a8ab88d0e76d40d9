package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fittrack/apiserver/internal/mq"
	"github.com/fittrack/apiserver/types"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type recordingBus struct {
	channel string
	frames  [][]byte
	err     error
}

func (b *recordingBus) Publish(_ context.Context, channel string, data []byte, _ map[string]string) (string, error) {
	if b.err != nil {
		return "", b.err
	}
	b.channel = channel
	b.frames = append(b.frames, data)
	return "1", nil
}

func decode(t *testing.T, frame []byte) types.Envelope {
	t.Helper()
	var envelope types.Envelope
	require.NoError(t, json.Unmarshal(frame, &envelope))
	return envelope
}

func TestPublisherBuildsEnvelopes(t *testing.T) {
	bus := &recordingBus{}
	pub := NewPublisher(bus, "fitness.notifications", nil)
	sentAt := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	pub.now = func() time.Time { return sentAt }

	ctx := context.Background()
	pub.RecommendationUpdated(ctx, "user-1")
	pub.ExerciseCompleted(ctx, types.WorkoutCompletion{ID: "c-1", UserID: "user-1", ExerciseID: "0001"})
	pub.WorkoutDeleted(ctx, "c-1")

	require.Equal(t, "fitness.notifications", bus.channel)
	require.Len(t, bus.frames, 3)

	first := decode(t, bus.frames[0])
	require.Equal(t, types.EventRecommendationUpdated, first.Event)
	require.NotEmpty(t, first.ID)
	require.True(t, sentAt.Equal(first.SentAt))
	require.JSONEq(t, `{"userId":"user-1"}`, string(first.Data))

	second := decode(t, bus.frames[1])
	require.Equal(t, types.EventExerciseCompleted, second.Event)
	var completed types.ExerciseCompleted
	require.NoError(t, json.Unmarshal(second.Data, &completed))
	require.Equal(t, "c-1", completed.Completion.ID)

	third := decode(t, bus.frames[2])
	require.Equal(t, types.EventWorkoutDeleted, third.Event)
	require.JSONEq(t, `{"id":"c-1"}`, string(third.Data))
	require.NotEqual(t, first.ID, third.ID)
}

func TestPublisherSwallowsBusErrors(t *testing.T) {
	pub := NewPublisher(&recordingBus{err: errors.New("broker down")}, "ch", nil)
	require.NotPanics(t, func() { pub.RecommendationUpdated(context.Background(), "u") })
}

func TestHubDropsWhenBufferFull(t *testing.T) {
	hub := NewHub(2)
	slow := hub.Subscribe()
	fast := hub.Subscribe()
	require.Equal(t, 2, hub.Len())

	for _, frame := range []string{"a", "b", "c"} {
		hub.Broadcast([]byte(frame))
		if frame == "a" {
			require.Equal(t, "a", string(<-fast.C))
		}
	}

	require.Equal(t, "a", string(<-slow.C))
	require.Equal(t, "b", string(<-slow.C))
	select {
	case frame := <-slow.C:
		t.Fatalf("expected drop, got %q", frame)
	default:
	}

	require.Equal(t, "b", string(<-fast.C))
	require.Equal(t, "c", string(<-fast.C))
}

func TestHubCloseEndsSubscriptions(t *testing.T) {
	hub := NewHub(1)
	sub := hub.Subscribe()
	sub.Close()
	sub.Close()
	_, ok := <-sub.C
	require.False(t, ok)

	other := hub.Subscribe()
	hub.Close()
	_, ok = <-other.C
	require.False(t, ok)
	require.Nil(t, hub.Subscribe())
	require.Zero(t, hub.Len())
}

func TestBridgeForwardsValidEnvelopes(t *testing.T) {
	backend := mq.NewMemory()
	defer backend.Close()

	hub := NewHub(4)
	sub := hub.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errs := make(chan error, 1)
	go func() { errs <- NewBridge(backend, "events", hub, nil).Run(ctx) }()

	pub := NewPublisher(backend, "events", nil)
	var frame []byte
	require.Eventually(t, func() bool {
		_, _ = backend.Publish(ctx, "events", []byte("not json"), nil)
		pub.WorkoutDeleted(ctx, "c-9")
		select {
		case frame = <-sub.C:
			return true
		case <-time.After(10 * time.Millisecond):
			return false
		}
	}, time.Second, 20*time.Millisecond)

	envelope := decode(t, frame)
	require.Equal(t, types.EventWorkoutDeleted, envelope.Event)

	cancel()
	require.NoError(t, <-errs)
}

// droppingSource fails its first subscription the way a broker disconnect
// does and serves the channel normally afterwards.
type droppingSource struct {
	backend *mq.Memory
	calls   atomic.Int32
}

func (s *droppingSource) Subscribe(ctx context.Context, channel string, handler mq.Handler) error {
	if s.calls.Add(1) == 1 {
		return errors.New("broker connection lost")
	}
	return s.backend.Subscribe(ctx, channel, handler)
}

func TestBridgeResubscribesAfterBusFailure(t *testing.T) {
	backend := mq.NewMemory()
	defer backend.Close()
	source := &droppingSource{backend: backend}

	hub := NewHub(4)
	sub := hub.Subscribe()

	bridge := NewBridge(source, "events", hub, nil)
	bridge.newBackOff = func() backoff.BackOff { return backoff.NewConstantBackOff(time.Millisecond) }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errs := make(chan error, 1)
	go func() { errs <- bridge.Run(ctx) }()

	require.Eventually(t, func() bool { return source.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)

	pub := NewPublisher(backend, "events", nil)
	require.Eventually(t, func() bool {
		pub.RecommendationUpdated(ctx, "user-1")
		select {
		case <-sub.C:
			return true
		case <-time.After(10 * time.Millisecond):
			return false
		}
	}, time.Second, 20*time.Millisecond)

	select {
	case err := <-errs:
		t.Fatalf("bridge stopped while ctx was live: %v", err)
	default:
	}

	cancel()
	require.NoError(t, <-errs)
	require.EqualValues(t, 2, source.calls.Load())
}

func TestBridgeStopsWhenBusCloses(t *testing.T) {
	backend := mq.NewMemory()
	require.NoError(t, backend.Close())

	bridge := NewBridge(backend, "events", NewHub(1), nil)
	bridge.newBackOff = func() backoff.BackOff { return backoff.NewConstantBackOff(time.Millisecond) }
	require.NoError(t, bridge.Run(context.Background()))
}

func TestWSServerStreamsFrames(t *testing.T) {
	hub := NewHub(4)
	srv := httptest.NewServer(NewWSServer(hub, WSConfig{PingInterval: time.Second}, nil, nil))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 5*time.Millisecond)

	frame, err := Encode(types.EventRecommendationUpdated, types.RecommendationUpdated{UserID: "u"}, time.Now())
	require.NoError(t, err)
	hub.Broadcast(frame)

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	kind, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, kind)
	require.Equal(t, types.EventRecommendationUpdated, decode(t, data).Event)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Len() == 0 }, time.Second, 5*time.Millisecond)
}
