package services_test

import (
	"context"
	"testing"

	"civic-polls/internal/domain/profile"
	civic_errors "civic-polls/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribe(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	msg, err := h.subscribeSvc.Subscribe(ctx, " Fan@Example.com ")
	require.NoError(t, err)
	assert.Equal(t, "Successfully subscribed to updates!", msg)

	_, err = h.subscribeSvc.Subscribe(ctx, "fan@example.com")
	assert.ErrorIs(t, err, civic_errors.ErrAlreadyExists)
	assert.Equal(t, "This email is already subscribed", civic_errors.Message(err))

	_, err = h.subscribeSvc.Subscribe(ctx, "not-an-email")
	assert.ErrorIs(t, err, civic_errors.ErrInvalidInput)
}

func TestPublicStatsCached(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addProfile(t, "A", profile.StatusVerified)
	h.addProfile(t, "B", profile.StatusPending)

	stats, err := h.stats.Public(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalSupporters)
	assert.Equal(t, int64(1), stats.VerifiedSupporters)

	h.addProfile(t, "C", profile.StatusVerified)
	stats, err = h.stats.Public(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalSupporters, "served from cache")
}

func TestDashboardAndAnalytics(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for i, loc := range []string{"Lagos", "Lagos", "Abuja", ""} {
		p := h.addProfile(t, "user", profile.StatusUnverified)
		if i == 0 {
			p.VerificationStatus = profile.StatusPending
		}
		p.Location = loc
		p.Occupation = "Nurse"
		h.profiles.Put(p)
	}
	_, err := h.subscribeSvc.Subscribe(ctx, "a@b.co")
	require.NoError(t, err)
	h.approvedPoll(t, uuid.New(), "a", "b")
	_, err = h.pollSvc.Create(ctx, uuid.New(), pollInput())
	require.NoError(t, err)

	d, err := h.stats.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), d.PendingVerifications)
	assert.Equal(t, int64(1), d.PendingPolls)
	assert.Equal(t, int64(4), d.TotalUsers)
	assert.Equal(t, int64(0), d.VerifiedUsers)
	assert.Equal(t, int64(1), d.Subscribers)

	a, err := h.stats.Analytics(ctx)
	require.NoError(t, err)
	require.Len(t, a.Locations, 2)
	assert.Equal(t, profile.Bucket{Name: "Lagos", Count: 2}, a.Locations[0])
	assert.Equal(t, []profile.Bucket{{Name: "Nurse", Count: 4}}, a.Occupations)
}
