package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"civic-polls/internal/events"
	"civic-polls/internal/services"
	civic_errors "civic-polls/pkg/errors"
	"civic-polls/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelsForNeverGrantsOtherUsers(t *testing.T) {
	a := NewChannelAuthorizer()
	channels := a.ChannelsFor("u1", "polls,Votes,user:u2,unknown,polls")
	assert.Equal(t, []string{
		events.ChangeChannel(events.TablePolls),
		events.ChangeChannel(events.TableVotes),
		events.UserChannel("u1"),
	}, channels)
}

func TestHubSubscribeBroadcastRemove(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	c1 := &Client{ID: "c1", UserID: "u1", Send: make(chan []byte, 4), channels: map[string]bool{}}
	c2 := &Client{ID: "c2", UserID: "u2", Send: make(chan []byte, 4), channels: map[string]bool{}}
	hub.Register(c1)
	hub.Register(c2)
	hub.Subscribe(c1, "changes:polls")
	hub.Subscribe(c2, "changes:polls")
	hub.Subscribe(c2, "user:u2")

	require.Eventually(t, func() bool {
		return hub.ChannelSubscriberCount("changes:polls") == 2 && hub.ChannelSubscriberCount("user:u2") == 1
	}, time.Second, 5*time.Millisecond)

	hub.Broadcast("user:u2", []byte("hi"))
	assert.Equal(t, []byte("hi"), <-c2.Send)
	assert.Len(t, c1.Send, 0)

	hub.Unsubscribe(c1, "changes:polls")
	require.Eventually(t, func() bool {
		return hub.ChannelSubscriberCount("changes:polls") == 1
	}, time.Second, 5*time.Millisecond)
	assert.False(t, c1.IsSubscribed("changes:polls"))

	hub.Unregister(c2)
	hub.Unregister(c2)
	require.Eventually(t, func() bool {
		return hub.ClientCount() == 1 && hub.ChannelSubscriberCount("user:u2") == 0
	}, time.Second, 5*time.Millisecond)
	_, open := <-c2.Send
	assert.False(t, open)
}

func TestSubscribeIgnoresUnknownClient(t *testing.T) {
	hub := NewHub()
	c := &Client{ID: "ghost", Send: make(chan []byte, 1), channels: map[string]bool{}}
	hub.subscribeToChannel(c, "changes:polls")
	assert.Equal(t, 0, hub.ChannelSubscriberCount("changes:polls"))
}

type stubAuth struct {
	token   string
	user    uuid.UUID
	session uuid.UUID
}

func (s stubAuth) Authenticate(_ context.Context, token string) (services.Principal, error) {
	if token != s.token {
		return services.Principal{}, civic_errors.ErrUnauthorized
	}
	return services.Principal{UserID: s.user, SessionID: s.session}, nil
}

type chanSubscriber struct {
	mu      sync.Mutex
	handler func(channel string, payload []byte)
	ready   chan struct{}
}

func (s *chanSubscriber) Subscribe(ctx context.Context, _ []string, handler func(channel string, payload []byte)) error {
	s.mu.Lock()
	s.handler = handler
	s.mu.Unlock()
	close(s.ready)
	<-ctx.Done()
	return nil
}

func TestRealtimeEndToEnd(t *testing.T) {
	gin.SetMode(gin.TestMode)
	user := uuid.New()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	sub := &chanSubscriber{ready: make(chan struct{})}
	go func() { _ = NewRedisBridge(sub, hub).Run(ctx) }()
	<-sub.ready

	r := gin.New()
	r.GET("/v1/realtime", NewHandler(stubAuth{token: "good", user: user}, hub, []string{"*"}, logger.NewNop()).Connect)
	srv := httptest.NewServer(r)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/realtime"

	resp, err := http.Get(srv.URL + "/v1/realtime?token=bad")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token=good&tables=polls", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return hub.ChannelSubscriberCount(events.ChangeChannel(events.TablePolls)) == 1 &&
			hub.ChannelSubscriberCount(events.UserChannel(user.String())) == 1
	}, time.Second, 5*time.Millisecond)

	change, _ := json.Marshal(events.Change{Table: events.TablePolls, Event: events.ChangeInsert, ID: "p1"})
	sub.mu.Lock()
	sub.handler(events.ChangeChannel(events.TableVotes), []byte(`{"ignored":true}`))
	sub.handler(events.ChangeChannel(events.TablePolls), change)
	sub.mu.Unlock()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var got events.Change
	require.NoError(t, json.Unmarshal(msg, &got))
	assert.Equal(t, "p1", got.ID)
	assert.Equal(t, events.ChangeInsert, got.Event)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://civic.example"})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://civic.example")
	assert.True(t, check(req))
	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, check(req))
	req.Header.Del("Origin")
	assert.True(t, check(req))
}

func TestCloseSessionOnlyClosesThatSession(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	phone := NewClient(nil, "u1", "s1")
	laptop := NewClient(nil, "u1", "s2")
	for _, c := range []*Client{phone, laptop} {
		hub.Register(c)
		hub.Subscribe(c, "user:u1")
	}
	require.Eventually(t, func() bool {
		return hub.ChannelSubscriberCount("user:u1") == 2
	}, time.Second, 5*time.Millisecond)

	hub.CloseSession("user:u1", "s1")
	assertClosed(t, phone.quit, true)
	assertClosed(t, laptop.quit, false)

	hub.CloseSession("user:u1", "")
	assertClosed(t, laptop.quit, true)
}

func assertClosed(t *testing.T, ch chan struct{}, want bool) {
	t.Helper()
	select {
	case <-ch:
		assert.True(t, want, "channel closed")
	default:
		assert.False(t, want, "channel still open")
	}
}

func TestSignedOutSession(t *testing.T) {
	ev, _ := json.Marshal(events.UserEvent{
		Type:    events.EventTypeSessionSignedOut,
		UserID:  "u1",
		Payload: json.RawMessage(`{"session_id":"s1"}`),
	})
	sid, ok := signedOutSession("user:u1", ev)
	assert.True(t, ok)
	assert.Equal(t, "s1", sid)

	_, ok = signedOutSession("changes:polls", ev)
	assert.False(t, ok)

	other, _ := json.Marshal(events.UserEvent{Type: events.EventTypeSessionSignedIn, UserID: "u1"})
	_, ok = signedOutSession("user:u1", other)
	assert.False(t, ok)
}

func TestRealtimeClosesSocketAfterSignOut(t *testing.T) {
	gin.SetMode(gin.TestMode)
	user, session := uuid.New(), uuid.New()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	sub := &chanSubscriber{ready: make(chan struct{})}
	go func() { _ = NewRedisBridge(sub, hub).Run(ctx) }()
	<-sub.ready

	r := gin.New()
	r.GET("/v1/realtime", NewHandler(stubAuth{token: "good", user: user, session: session}, hub, nil, logger.NewNop()).Connect)
	srv := httptest.NewServer(r)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/v1/realtime?token=good", nil)
	require.NoError(t, err)
	defer conn.Close()

	userChannel := events.UserChannel(user.String())
	require.Eventually(t, func() bool {
		return hub.ChannelSubscriberCount(userChannel) == 1
	}, time.Second, 5*time.Millisecond)

	signedOut, _ := json.Marshal(events.UserEvent{
		Type:    events.EventTypeSessionSignedOut,
		UserID:  user.String(),
		Payload: json.RawMessage(`{"session_id":"` + session.String() + `"}`),
	})
	sub.mu.Lock()
	sub.handler(userChannel, signedOut)
	sub.mu.Unlock()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, string(signedOut), string(msg))

	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), err.Error())

	require.Eventually(t, func() bool {
		return hub.ChannelSubscriberCount(userChannel) == 0
	}, time.Second, 5*time.Millisecond)
}
