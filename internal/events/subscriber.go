package events

import "context"

type Subscriber interface {
	Subscribe(ctx context.Context, patterns []string, handler func(channel string, payload []byte)) error
}

type Publisher interface {
	PublishJSON(ctx context.Context, channel string, v interface{}) error
}
