package notify

import (
	"sync"

	"github.com/fittrack/apiserver/internal/observability"
)

const defaultSendBuffer = 32

// Subscription is one subscriber's view of the hub. Frames arrive on C in
// broadcast order; C is closed when the subscription is removed.
type Subscription struct {
	C    <-chan []byte
	send chan []byte
	hub  *Hub
	once sync.Once
}

// Close removes the subscription from the hub.
func (s *Subscription) Close() {
	s.hub.remove(s)
}

// Hub fans frames out to subscribers. A subscriber whose buffer is full
// misses the frame; nothing is replayed.
type Hub struct {
	mu         sync.Mutex
	subs       map[*Subscription]struct{}
	sendBuffer int
	closed     bool
}

// NewHub constructs a Hub with the given per-subscriber buffer.
func NewHub(sendBuffer int) *Hub {
	if sendBuffer <= 0 {
		sendBuffer = defaultSendBuffer
	}
	return &Hub{subs: make(map[*Subscription]struct{}), sendBuffer: sendBuffer}
}

// Subscribe registers a new subscriber. It returns nil after Close.
func (h *Hub) Subscribe() *Subscription {
	ch := make(chan []byte, h.sendBuffer)
	sub := &Subscription{C: ch, send: ch, hub: h}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.subs[sub] = struct{}{}
	observability.SetSubscribers(len(h.subs))
	return sub
}

// Broadcast queues frame for every subscriber without blocking.
func (h *Hub) Broadcast(frame []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		select {
		case sub.send <- frame:
			observability.RecordDelivered()
		default:
			observability.RecordDropped()
		}
	}
}

// Len reports the number of subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close removes every subscriber and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := make([]*Subscription, 0, len(h.subs))
	for sub := range h.subs {
		subs = append(subs, sub)
	}
	h.closed = true
	h.mu.Unlock()

	for _, sub := range subs {
		h.remove(sub)
	}
}

func (h *Hub) remove(sub *Subscription) {
	sub.once.Do(func() {
		h.mu.Lock()
		delete(h.subs, sub)
		observability.SetSubscribers(len(h.subs))
		close(sub.send)
		h.mu.Unlock()
	})
}
