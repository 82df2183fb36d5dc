package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"civic-polls/internal/domain/subscriber"
	"civic-polls/internal/events"
	"civic-polls/internal/repository"
	civic_errors "civic-polls/pkg/errors"

	"github.com/google/uuid"
)

const (
	msgSubscribed        = "Successfully subscribed to updates!"
	msgAlreadySubscribed = "This email is already subscribed"
)

type SubscriberService struct {
	subscribers repository.SubscriberRepository
	events      *EventPublisher
}

func NewSubscriberService(subscribers repository.SubscriberRepository, events *EventPublisher) *SubscriberService {
	return &SubscriberService{subscribers: subscribers, events: events}
}

// Subscribe stores a lower-cased email address. The message is meant for display.
func (s *SubscriberService) Subscribe(ctx context.Context, rawEmail string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(rawEmail))
	if email == "" || !strings.Contains(email, "@") {
		return "", civic_errors.Invalid("Please enter a valid email address")
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return "", civic_errors.Invalid("Please enter a valid email address")
	}

	sub := &subscriber.EmailSubscriber{ID: uuid.New(), Email: email}
	if err := s.subscribers.Create(ctx, sub); err != nil {
		if errors.Is(err, civic_errors.ErrAlreadyExists) {
			return "", civic_errors.New(civic_errors.ErrAlreadyExists, msgAlreadySubscribed)
		}
		return "", err
	}
	s.events.Change(ctx, events.TableSubscribers, events.ChangeInsert, sub.ID)
	return msgSubscribed, nil
}
