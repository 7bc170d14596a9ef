package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hostel/internal/auth"
	"hostel/internal/complaint"
)

func event(id, studentRef string) complaint.Event {
	return complaint.Event{
		Type:      complaint.EventTransitioned,
		Complaint: complaint.Complaint{ID: id, StudentRef: studentRef, Status: complaint.StatusResolved},
		From:      complaint.StatusPending,
		To:        complaint.StatusResolved,
	}
}

func receive(t *testing.T, ch <-chan []byte) complaint.Event {
	t.Helper()
	select {
	case raw := <-ch:
		var evt complaint.Event
		require.NoError(t, json.Unmarshal(raw, &evt))
		return evt
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
		return complaint.Event{}
	}
}

func TestHubRoutesByAudience(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub()
	go hub.Run(ctx)

	admin := NewSubscriber("warden", true)
	mine := NewSubscriber("s1", false)
	other := NewSubscriber("s2", false)
	for _, s := range []*Subscriber{admin, mine, other} {
		require.NoError(t, hub.Register(ctx, s))
	}

	require.NoError(t, hub.Notify(ctx, event("c1", "s1")))

	assert.Equal(t, "c1", receive(t, admin.Send).Complaint.ID)
	assert.Equal(t, "c1", receive(t, mine.Send).Complaint.ID)
	select {
	case <-other.Send:
		t.Fatal("student received another student's complaint")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubClosesOnUnregisterAndShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	done := make(chan struct{})
	go func() { hub.Run(ctx); close(done) }()

	a := NewSubscriber("s1", false)
	b := NewSubscriber("s2", false)
	require.NoError(t, hub.Register(ctx, a))
	require.NoError(t, hub.Register(ctx, b))

	hub.Unregister(ctx, a)
	_, ok := <-a.Send
	assert.False(t, ok)

	cancel()
	<-done
	_, ok = <-b.Send
	assert.False(t, ok)
}

func TestHubDropsSlowSubscriber(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub()
	go hub.Run(ctx)

	slow := &Subscriber{Admin: true, Send: make(chan []byte, 1)}
	require.NoError(t, hub.Register(ctx, slow))
	require.NoError(t, hub.Notify(ctx, event("c1", "s1")))
	require.NoError(t, hub.Notify(ctx, event("c2", "s1")))

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-slow.Send:
			return !ok
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}

func TestServeStreamsEvents(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub()
	go hub.Run(ctx)

	tokens := auth.NewTokens("secret", "hostel", time.Hour, nil)
	r := gin.New()
	r.GET("/feed", auth.Bearer(tokens), NewHandler(ctx, hub, nil).Serve)
	srv := httptest.NewServer(r)
	defer srv.Close()

	tok, err := tokens.Issue(auth.Principal{ID: "s1", Role: auth.RoleStudent, Email: "s1@x"})
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/feed?token=" + tok.AccessToken
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	// registration happens after the upgrade completes, so keep publishing
	// until the first event arrives.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				_ = hub.Notify(ctx, event("c7", "s1"))
			}
		}
	}()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var got complaint.Event
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "c7", got.Complaint.ID)
}

func TestServeRejectsMissingToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tokens := auth.NewTokens("secret", "hostel", time.Hour, nil)
	r := gin.New()
	r.GET("/feed", auth.Bearer(tokens), NewHandler(context.Background(), NewHub(), nil).Serve)
	srv := httptest.NewServer(r)
	defer srv.Close()

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/feed", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
