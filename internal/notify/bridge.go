package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fittrack/apiserver/internal/mq"
	"github.com/fittrack/apiserver/types"
	"go.uber.org/zap"
)

// A subscription that stayed up this long counts as healthy, and the next
// failure retries from the shortest delay again.
const bridgeHealthyAfter = time.Minute

var errSubscriptionEnded = errors.New("notification subscription ended")

// Source subscribes to a bus channel.
type Source interface {
	Subscribe(ctx context.Context, channel string, handler mq.Handler) error
}

// Bridge feeds envelopes from the bus into a Hub.
type Bridge struct {
	source     Source
	channel    string
	hub        *Hub
	log        *zap.Logger
	newBackOff func() backoff.BackOff
}

// NewBridge constructs a Bridge.
func NewBridge(source Source, channel string, hub *Hub, log *zap.Logger) *Bridge {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bridge{
		source:  source,
		channel: channel,
		hub:     hub,
		log:     log.Named("bridge"),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 30 * time.Second
			b.MaxElapsedTime = 0
			return b
		},
	}
}

// Run keeps a subscription open until ctx is done, resubscribing with
// backoff whenever the bus drops it. It returns nil when ctx ends or the
// bus is closed.
func (b *Bridge) Run(ctx context.Context) error {
	policy := b.newBackOff()
	err := backoff.RetryNotify(func() error {
		b.log.Info("subscribing to notifications", zap.String("channel", b.channel))
		started := time.Now()
		err := b.source.Subscribe(ctx, b.channel, b.handle)
		switch {
		case ctx.Err() != nil:
			return backoff.Permanent(ctx.Err())
		case errors.Is(err, mq.ErrClosed):
			return backoff.Permanent(err)
		case err == nil:
			err = errSubscriptionEnded
		}
		if time.Since(started) >= bridgeHealthyAfter {
			policy.Reset()
		}
		return err
	}, backoff.WithContext(policy, ctx), func(err error, wait time.Duration) {
		b.log.Warn("notification subscription lost", zap.Error(err), zap.Duration("retry_in", wait))
	})
	if ctx.Err() != nil || errors.Is(err, mq.ErrClosed) {
		return nil
	}
	return err
}

func (b *Bridge) handle(_ context.Context, msg mq.Message) error {
	var envelope types.Envelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil || envelope.ID == "" || envelope.Event == "" {
		b.log.Warn("discarding malformed notification", zap.String("message_id", msg.ID), zap.Error(err))
		return fmt.Errorf("malformed notification %q", msg.ID)
	}
	b.hub.Broadcast(msg.Data)
	return nil
}
