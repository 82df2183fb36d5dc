package services

import (
	"context"
	"net/mail"
	"strings"

	"civic-polls/internal/domain/profile"
	"civic-polls/internal/events"
	"civic-polls/internal/repository"
	"civic-polls/internal/storage"
	civic_errors "civic-polls/pkg/errors"

	"github.com/google/uuid"
)

type ProfileService struct {
	profiles repository.ProfileRepository
	uploads  *UploadService
	events   *EventPublisher
}

func NewProfileService(profiles repository.ProfileRepository, uploads *UploadService, events *EventPublisher) *ProfileService {
	return &ProfileService{profiles: profiles, uploads: uploads, events: events}
}

type RegistrationInput struct {
	FullName   string
	Email      string
	Location   string
	Occupation string
	Headshot   *Upload
	Passport   *Upload
}

func (s *ProfileService) Get(ctx context.Context, userID uuid.UUID) (profile.Profile, error) {
	return s.profiles.GetByID(ctx, userID)
}

// CompleteRegistration saves the registration form. A passport moves the
// profile to pending when its status admits a submission; without one the
// status is left as it is.
func (s *ProfileService) CompleteRegistration(ctx context.Context, userID uuid.UUID, in RegistrationInput) (profile.Profile, error) {
	details, err := normalizeDetails(in)
	if err != nil {
		return profile.Profile{}, err
	}
	if err := s.uploads.Validate(in.Headshot); err != nil {
		return profile.Profile{}, err
	}
	if err := s.uploads.Validate(in.Passport); err != nil {
		return profile.Profile{}, err
	}

	current, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		return profile.Profile{}, err
	}
	if in.Passport != nil && !current.VerificationStatus.CanSubmitDocument() {
		return profile.Profile{}, transitionError(current.VerificationStatus)
	}

	if in.Headshot != nil {
		details.HeadshotURL, err = s.uploads.Store(ctx, userID, storage.KindHeadshot, in.Headshot)
		if err != nil {
			return profile.Profile{}, err
		}
	}
	var passportURL string
	if in.Passport != nil {
		passportURL, err = s.uploads.Store(ctx, userID, storage.KindPassport, in.Passport)
		if err != nil {
			return profile.Profile{}, err
		}
	}

	if err := s.profiles.UpdateRegistration(ctx, userID, details, passportURL); err != nil {
		return profile.Profile{}, err
	}
	s.events.Change(ctx, events.TableProfiles, events.ChangeUpdate, userID)
	return s.profiles.GetByID(ctx, userID)
}

// SubmitVerification uploads an identity document for an unverified or
// rejected profile and moves it to pending.
func (s *ProfileService) SubmitVerification(ctx context.Context, userID uuid.UUID, passport *Upload) (profile.Profile, error) {
	if passport == nil {
		return profile.Profile{}, civic_errors.Invalid("passport file is required")
	}
	if err := s.uploads.Validate(passport); err != nil {
		return profile.Profile{}, err
	}

	current, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		return profile.Profile{}, err
	}
	if !current.VerificationStatus.CanSubmitDocument() {
		return profile.Profile{}, transitionError(current.VerificationStatus)
	}

	url, err := s.uploads.Store(ctx, userID, storage.KindPassport, passport)
	if err != nil {
		return profile.Profile{}, err
	}
	if err := s.profiles.SubmitDocument(ctx, userID, url); err != nil {
		return profile.Profile{}, err
	}
	s.events.Change(ctx, events.TableProfiles, events.ChangeUpdate, userID)
	return s.profiles.GetByID(ctx, userID)
}

func normalizeDetails(in RegistrationInput) (profile.Details, error) {
	d := profile.Details{
		FullName:   sanitizeText(in.FullName),
		Email:      strings.ToLower(strings.TrimSpace(in.Email)),
		Location:   sanitizeText(in.Location),
		Occupation: sanitizeText(in.Occupation),
	}
	if d.FullName == "" {
		return profile.Details{}, civic_errors.Invalid("full name is required")
	}
	if d.Email != "" {
		if _, err := mail.ParseAddress(d.Email); err != nil {
			return profile.Details{}, civic_errors.Invalid("email address is not valid")
		}
	}
	return d, nil
}

func transitionError(status profile.VerificationStatus) error {
	switch status {
	case profile.StatusPending:
		return civic_errors.New(civic_errors.ErrInvalidTransition, "verification is already pending review")
	case profile.StatusVerified:
		return civic_errors.New(civic_errors.ErrInvalidTransition, "profile is already verified")
	default:
		return civic_errors.ErrInvalidTransition
	}
}
