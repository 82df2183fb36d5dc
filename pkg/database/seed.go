package database

import (
	"context"
	"errors"
	"fmt"
	"log"

	"civic-polls/internal/domain/poll"
	"civic-polls/internal/domain/profile"
	"civic-polls/internal/domain/role"
	"civic-polls/internal/repository"
	civic_errors "civic-polls/pkg/errors"

	"github.com/google/uuid"
)

// GrantAdmin finds or creates the profile for phone and gives it the admin
// role. It is how the first administrator is bootstrapped.
func GrantAdmin(ctx context.Context, phone, fullName string) (profile.Profile, error) {
	profiles := repository.NewProfileRepository(DB)
	roles := repository.NewRoleRepository(DB)

	p, err := profiles.GetByPhone(ctx, phone)
	if errors.Is(err, civic_errors.ErrNotFound) {
		p = profile.Profile{
			ID:                 uuid.New(),
			FullName:           fullName,
			Phone:              phone,
			VerificationStatus: profile.StatusUnverified,
		}
		if err := profiles.Create(ctx, &p); err != nil {
			return profile.Profile{}, fmt.Errorf("create profile: %w", err)
		}
		log.Printf("Created profile %s for %s", p.ID, phone)
	} else if err != nil {
		return profile.Profile{}, err
	}

	err = roles.Grant(ctx, &role.UserRole{UserID: p.ID, Role: role.Admin})
	if err != nil && !errors.Is(err, civic_errors.ErrAlreadyExists) {
		return profile.Profile{}, fmt.Errorf("grant admin: %w", err)
	}
	return p, nil
}

type samplePoll struct {
	title    string
	category poll.Category
	options  []string
}

var samplePolls = []samplePoll{
	{"Should the city extend library opening hours?", poll.CategoryEducation, []string{"Yes", "No", "Only on weekends"}},
	{"Which road should be resurfaced first?", poll.CategoryInfrastructure, []string{"Main Street", "Harbour Road", "Station Avenue"}},
	{"Do you support a local small-business grant?", poll.CategoryEconomy, []string{"Yes", "No"}},
	{"Should council meetings be streamed online?", poll.CategoryGovernance, []string{"Yes", "No", "Undecided"}},
}

// SeedDevelopment creates an admin and a handful of approved polls.
func SeedDevelopment(ctx context.Context, adminPhone string) (int, error) {
	admin, err := GrantAdmin(ctx, adminPhone, "Development Admin")
	if err != nil {
		return 0, err
	}

	polls := repository.NewPollRepository(DB)
	created := 0
	for _, sp := range samplePolls {
		p := &poll.Poll{
			UserID:   admin.ID,
			Title:    sp.title,
			Category: sp.category,
			IsActive: true,
		}
		options := make([]poll.Option, 0, len(sp.options))
		for _, text := range sp.options {
			options = append(options, poll.Option{OptionText: text})
		}
		if err := polls.Create(ctx, p, options); err != nil {
			return created, fmt.Errorf("seed poll %q: %w", sp.title, err)
		}
		if err := polls.Approve(ctx, p.ID, admin.ID); err != nil {
			return created, fmt.Errorf("approve poll %q: %w", sp.title, err)
		}
		created++
	}
	return created, nil
}
