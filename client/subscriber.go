package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fittrack/apiserver/types"
	"github.com/gorilla/websocket"
)

const defaultMaxRetries = 8

// Subscriber streams notification envelopes from the API's websocket.
// After a disconnect it reconnects with exponential backoff; the retry
// budget is restored whenever a connection succeeds.
type Subscriber struct {
	url        string
	dialer     *websocket.Dialer
	maxRetries uint64
	newBackOff func() backoff.BackOff
}

// SubscriberOption configures a Subscriber.
type SubscriberOption func(*Subscriber)

// WithMaxRetries bounds consecutive failed connection attempts.
func WithMaxRetries(n uint64) SubscriberOption {
	return func(s *Subscriber) {
		s.maxRetries = n
	}
}

// WithBackOff overrides the delay policy between attempts.
func WithBackOff(newBackOff func() backoff.BackOff) SubscriberOption {
	return func(s *Subscriber) {
		s.newBackOff = newBackOff
	}
}

// NewSubscriber constructs a Subscriber for the API at baseURL.
func NewSubscriber(baseURL string, opts ...SubscriberOption) (*Subscriber, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/ws")
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}

	s := &Subscriber{
		url:        u.String(),
		dialer:     websocket.DefaultDialer,
		maxRetries: defaultMaxRetries,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 30 * time.Second
			b.MaxElapsedTime = 0
			return b
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run delivers envelopes to handle until ctx is done, the session is
// rejected, or the retry budget runs out.
func (s *Subscriber) Run(ctx context.Context, session Session, handle func(types.Envelope)) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(s.newBackOff(), s.maxRetries), ctx)

	err := backoff.Retry(func() error {
		conn, resp, err := s.dialer.DialContext(ctx, s.url, http.Header{"Authorization": {"Bearer " + session.Token}})
		if err != nil {
			if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
				return backoff.Permanent(ErrSessionEnded)
			}
			return err
		}
		policy.Reset()
		return s.read(ctx, conn, handle)
	}, policy)

	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (s *Subscriber) read(ctx context.Context, conn *websocket.Conn, handle func(types.Envelope)) error {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	defer conn.Close()

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		var envelope types.Envelope
		if err := json.Unmarshal(frame, &envelope); err != nil || envelope.ID == "" {
			continue
		}
		handle(envelope)
	}
}
