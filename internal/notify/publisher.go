// Package notify carries change notifications from the services to
// connected websocket subscribers by way of the message bus.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fittrack/apiserver/internal/observability"
	"github.com/fittrack/apiserver/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Bus publishes raw payloads to a named channel.
type Bus interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// Publisher turns service events into envelopes on the bus.
type Publisher struct {
	bus     Bus
	channel string
	log     *zap.Logger
	now     func() time.Time
}

// NewPublisher constructs a Publisher for the given channel.
func NewPublisher(bus Bus, channel string, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{bus: bus, channel: channel, log: log.Named("notify"), now: time.Now}
}

func (p *Publisher) RecommendationUpdated(ctx context.Context, userID string) {
	p.publish(ctx, types.EventRecommendationUpdated, types.RecommendationUpdated{UserID: userID})
}

func (p *Publisher) ExerciseCompleted(ctx context.Context, completion types.WorkoutCompletion) {
	p.publish(ctx, types.EventExerciseCompleted, types.ExerciseCompleted{Completion: completion})
}

func (p *Publisher) WorkoutDeleted(ctx context.Context, completionID string) {
	p.publish(ctx, types.EventWorkoutDeleted, types.WorkoutDeleted{ID: completionID})
}

func (p *Publisher) publish(ctx context.Context, kind types.EventKind, payload any) {
	frame, err := Encode(kind, payload, p.now())
	if err == nil {
		_, err = p.bus.Publish(context.WithoutCancel(ctx), p.channel, frame, map[string]string{"event": string(kind)})
	}
	observability.RecordPublish(string(kind), err)
	if err != nil {
		p.log.Error("publish notification failed", zap.String("event", string(kind)), zap.Error(err))
	}
}

// Encode builds the wire frame for an event.
func Encode(kind types.EventKind, payload any, sentAt time.Time) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(types.Envelope{
		ID:     uuid.NewString(),
		Event:  kind,
		Data:   data,
		SentAt: sentAt.UTC(),
	})
}
