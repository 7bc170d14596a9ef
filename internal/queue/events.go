package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"hostel/internal/complaint"
)

// EventPublisher forwards committed complaint changes onto a queue.
type EventPublisher struct {
	q Queue
}

// NewEventPublisher wraps q as a complaint listener.
func NewEventPublisher(q Queue) *EventPublisher {
	return &EventPublisher{q: q}
}

// Notify publishes evt as a message typed by the event type.
func (p *EventPublisher) Notify(ctx context.Context, evt complaint.Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return p.q.Publish(ctx, Message{Type: string(evt.Type), Body: body})
}

// DecodeEvent reads a complaint event from a message.
func DecodeEvent(msg Message) (complaint.Event, error) {
	switch complaint.EventType(msg.Type) {
	case complaint.EventCreated, complaint.EventTransitioned:
	default:
		return complaint.Event{}, fmt.Errorf("queue: unexpected message type %q", msg.Type)
	}
	var evt complaint.Event
	if err := json.Unmarshal(msg.Body, &evt); err != nil {
		return complaint.Event{}, fmt.Errorf("queue: decode %s: %w", msg.Type, err)
	}
	return evt, nil
}
