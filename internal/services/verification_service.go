package services

import (
	"context"
	"errors"

	"civic-polls/internal/domain/profile"
	"civic-polls/internal/events"
	"civic-polls/internal/repository"
	civic_errors "civic-polls/pkg/errors"

	"github.com/google/uuid"
)

// VerificationService is the admin side of identity verification.
type VerificationService struct {
	profiles repository.ProfileRepository
	events   *EventPublisher
}

func NewVerificationService(profiles repository.ProfileRepository, events *EventPublisher) *VerificationService {
	return &VerificationService{profiles: profiles, events: events}
}

// ListPending returns profiles awaiting review, most recently updated first.
func (s *VerificationService) ListPending(ctx context.Context) ([]profile.Profile, error) {
	return s.profiles.ListByStatus(ctx, profile.StatusPending)
}

func (s *VerificationService) Approve(ctx context.Context, adminID, profileID uuid.UUID, notes string) error {
	return s.review(ctx, adminID, profileID, profile.StatusVerified, notes)
}

func (s *VerificationService) Reject(ctx context.Context, adminID, profileID uuid.UUID, notes string) error {
	return s.review(ctx, adminID, profileID, profile.StatusRejected, notes)
}

func (s *VerificationService) review(ctx context.Context, adminID, profileID uuid.UUID, status profile.VerificationStatus, notes string) error {
	notes = sanitizeText(notes)
	err := s.profiles.Review(ctx, profileID, status, notes, adminID)
	if errors.Is(err, civic_errors.ErrInvalidTransition) {
		return civic_errors.New(civic_errors.ErrInvalidTransition, "profile is not pending verification")
	}
	if err != nil {
		return err
	}

	eventType := events.EventTypeVerificationApproved
	if status == profile.StatusRejected {
		eventType = events.EventTypeVerificationRejected
	}
	s.events.Change(ctx, events.TableProfiles, events.ChangeUpdate, profileID)
	s.events.User(ctx, profileID, eventType, map[string]string{
		"status": string(status),
		"notes":  notes,
	})
	return nil
}
