package events

import "strings"

const (
	ChannelPrefixChanges = "changes:"
	ChannelPrefixUser    = "user:"
)

// SubscribePatterns are the Redis patterns the realtime bridge listens on.
var SubscribePatterns = []string{ChannelPrefixChanges + "*", ChannelPrefixUser + "*"}

func ChangeChannel(table string) string {
	return ChannelPrefixChanges + table
}

func UserChannel(userID string) string {
	return ChannelPrefixUser + userID
}

// IsWatchable reports whether table may be requested by a realtime client.
func IsWatchable(table string) bool {
	for _, t := range WatchableTables {
		if t == table {
			return true
		}
	}
	return false
}

// ParseTables splits a comma separated list, keeping known tables once each.
func ParseTables(raw string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		t := strings.ToLower(strings.TrimSpace(part))
		if t == "" || seen[t] || !IsWatchable(t) {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
