package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hostel/internal/complaint"
)

func TestInMemoryRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q := NewInMemory(4)

	evt := complaint.Event{
		Type:      complaint.EventTransitioned,
		Complaint: complaint.Complaint{ID: "c1", Status: complaint.StatusResolved},
		From:      complaint.StatusPending,
		To:        complaint.StatusResolved,
		Actor:     "warden",
		At:        time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, NewEventPublisher(q).Notify(ctx, evt))

	msgs, err := q.Consume(ctx)
	require.NoError(t, err)
	select {
	case msg := <-msgs:
		got, err := DecodeEvent(msg)
		require.NoError(t, err)
		assert.Equal(t, evt, got)
	case <-time.After(time.Second):
		t.Fatal("no message consumed")
	}
}

func TestConsumeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	msgs, err := NewInMemory(1).Consume(ctx)
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-msgs:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestPublishRespectsContext(t *testing.T) {
	q := NewInMemory(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, q.Publish(ctx, Message{Type: "x"}), context.Canceled)
}

func TestDecodeEventRejectsUnknownType(t *testing.T) {
	_, err := DecodeEvent(Message{Type: "checkin", Body: []byte(`{}`)})
	assert.Error(t, err)
	_, err = DecodeEvent(Message{Type: string(complaint.EventCreated), Body: []byte(`{`)})
	assert.Error(t, err)
}
