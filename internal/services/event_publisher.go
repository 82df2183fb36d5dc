package services

import (
	"context"
	"encoding/json"
	"time"

	"civic-polls/internal/events"
	"civic-polls/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventPublisher emits realtime notifications after a mutation has been
// committed. Failures are logged and never returned to the caller.
type EventPublisher struct {
	publisher events.Publisher
	log       *logger.Logger
}

func NewEventPublisher(publisher events.Publisher, log *logger.Logger) *EventPublisher {
	return &EventPublisher{publisher: publisher, log: log}
}

// Change announces an INSERT/UPDATE/DELETE on table.
func (p *EventPublisher) Change(ctx context.Context, table string, kind events.ChangeKind, id uuid.UUID) {
	if p == nil || p.publisher == nil {
		return
	}
	change := events.Change{
		Table: table,
		Event: kind,
		ID:    id.String(),
		At:    time.Now().UTC(),
	}
	if err := p.publisher.PublishJSON(ctx, events.ChangeChannel(table), change); err != nil {
		p.log.Ctx(ctx).Warn("publish change failed",
			zap.String("table", table),
			zap.String("id", change.ID),
			zap.Error(err),
		)
	}
}

// User sends an event to every connection of userID.
func (p *EventPublisher) User(ctx context.Context, userID uuid.UUID, eventType string, payload interface{}) {
	if p == nil || p.publisher == nil {
		return
	}
	ev := events.UserEvent{
		Type:   eventType,
		UserID: userID.String(),
		At:     time.Now().UTC(),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			p.log.Ctx(ctx).Warn("marshal user event failed", zap.String("type", eventType), zap.Error(err))
			return
		}
		ev.Payload = raw
	}
	if err := p.publisher.PublishJSON(ctx, events.UserChannel(ev.UserID), ev); err != nil {
		p.log.Ctx(ctx).Warn("publish user event failed",
			zap.String("type", eventType),
			zap.String("user_id", ev.UserID),
			zap.Error(err),
		)
	}
}
