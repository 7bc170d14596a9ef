// Package feed pushes complaint changes to connected dashboards over websockets.
package feed

import (
	"context"
	"encoding/json"
	"log"

	"hostel/internal/complaint"
)

// Subscriber is one connected dashboard. Admins see every complaint,
// students only their own.
type Subscriber struct {
	StudentRef string
	Admin      bool
	Send       chan []byte
}

// NewSubscriber creates a subscriber with a buffered send channel.
func NewSubscriber(studentRef string, admin bool) *Subscriber {
	return &Subscriber{StudentRef: studentRef, Admin: admin, Send: make(chan []byte, 32)}
}

func (s *Subscriber) wants(evt complaint.Event) bool {
	return s.Admin || evt.Complaint.StudentRef == s.StudentRef
}

type message struct {
	evt complaint.Event
	raw []byte
}

// Hub fans complaint events out to subscribers. All subscriber bookkeeping
// happens on the Run goroutine.
type Hub struct {
	subscribers map[*Subscriber]struct{}
	register    chan *Subscriber
	unregister  chan *Subscriber
	broadcast   chan message
}

// NewHub creates a hub; call Run to start it.
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[*Subscriber]struct{}),
		register:    make(chan *Subscriber),
		unregister:  make(chan *Subscriber),
		broadcast:   make(chan message, 256),
	}
}

// Run dispatches until ctx is cancelled, then closes every subscriber.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case s := <-h.register:
			h.subscribers[s] = struct{}{}
		case s := <-h.unregister:
			h.drop(s)
		case m := <-h.broadcast:
			for s := range h.subscribers {
				if !s.wants(m.evt) {
					continue
				}
				select {
				case s.Send <- m.raw:
				default:
					log.Printf("feed: subscriber too slow, disconnecting")
					h.drop(s)
				}
			}
		case <-ctx.Done():
			for s := range h.subscribers {
				h.drop(s)
			}
			return
		}
	}
}

func (h *Hub) drop(s *Subscriber) {
	if _, ok := h.subscribers[s]; ok {
		delete(h.subscribers, s)
		close(s.Send)
	}
}

// Register adds s. It blocks until the hub accepts it or ctx ends.
func (h *Hub) Register(ctx context.Context, s *Subscriber) error {
	select {
	case h.register <- s:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Unregister removes s and closes its send channel.
func (h *Hub) Unregister(ctx context.Context, s *Subscriber) {
	select {
	case h.unregister <- s:
	case <-ctx.Done():
	}
}

// Notify queues evt for delivery without blocking the writer; when the hub
// is saturated the event is dropped and dashboards catch up on next refresh.
func (h *Hub) Notify(_ context.Context, evt complaint.Event) error {
	raw, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- message{evt: evt, raw: raw}:
	default:
		log.Printf("feed: broadcast buffer full, dropping %s for %s", evt.Type, evt.Complaint.ID)
	}
	return nil
}
