package websocket

import (
	"context"
	"encoding/json"
	"strings"

	"civic-polls/internal/events"
)

// RedisBridge relays Redis pub/sub messages into the hub. Channel names are
// used unchanged as hub channels.
type RedisBridge struct {
	subscriber events.Subscriber
	hub        *Hub
}

func NewRedisBridge(subscriber events.Subscriber, hub *Hub) *RedisBridge {
	return &RedisBridge{subscriber: subscriber, hub: hub}
}

func (b *RedisBridge) Run(ctx context.Context) error {
	return b.subscriber.Subscribe(ctx, events.SubscribePatterns, b.relay)
}

func (b *RedisBridge) relay(channel string, payload []byte) {
	b.hub.Broadcast(channel, payload)
	if sessionID, ok := signedOutSession(channel, payload); ok {
		b.hub.CloseSession(channel, sessionID)
	}
}

// signedOutSession reports whether payload is a sign-out event on a user
// channel and which session it ended.
func signedOutSession(channel string, payload []byte) (string, bool) {
	if !strings.HasPrefix(channel, events.ChannelPrefixUser) {
		return "", false
	}
	var ev events.UserEvent
	if err := json.Unmarshal(payload, &ev); err != nil || ev.Type != events.EventTypeSessionSignedOut {
		return "", false
	}
	var body struct {
		SessionID string `json:"session_id"`
	}
	if len(ev.Payload) > 0 {
		_ = json.Unmarshal(ev.Payload, &body)
	}
	return body.SessionID, true
}
