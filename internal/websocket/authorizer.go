package websocket

import (
	"civic-polls/internal/events"
)

// ChannelAuthorizer decides which Redis channels a connection may join: the
// requested watchable tables plus the user's own channel. Other users'
// channels are never granted.
type ChannelAuthorizer struct{}

func NewChannelAuthorizer() *ChannelAuthorizer {
	return &ChannelAuthorizer{}
}

func (a *ChannelAuthorizer) ChannelsFor(userID string, rawTables string) []string {
	tables := events.ParseTables(rawTables)
	channels := make([]string, 0, len(tables)+1)
	for _, t := range tables {
		channels = append(channels, events.ChangeChannel(t))
	}
	return append(channels, events.UserChannel(userID))
}
