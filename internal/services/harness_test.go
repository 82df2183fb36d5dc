package services_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"civic-polls/config"
	"civic-polls/internal/domain/poll"
	"civic-polls/internal/domain/profile"
	"civic-polls/internal/domain/role"
	"civic-polls/internal/services"
	"civic-polls/internal/testutil"
	"civic-polls/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type harness struct {
	profiles    *testutil.ProfileRepo
	polls       *testutil.PollRepo
	roles       *testutil.RoleRepo
	subscribers *testutil.SubscriberRepo
	sessions    *testutil.SessionRepo
	otp         *testutil.OTPStore
	limiter     *testutil.Limiter
	cache       *testutil.Cache
	blobs       *testutil.BlobStore
	publisher   *testutil.Publisher
	sender      *testutil.CodeSender

	auth          *services.AuthService
	authz         *services.AuthzService
	users         *services.UserService
	profileSvc    *services.ProfileService
	verifications *services.VerificationService
	pollSvc       *services.PollService
	subscribeSvc  *services.SubscriberService
	stats         *services.StatsService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := logger.NewNop()
	h := &harness{
		profiles:    testutil.NewProfileRepo(),
		polls:       testutil.NewPollRepo(),
		roles:       testutil.NewRoleRepo(),
		subscribers: testutil.NewSubscriberRepo(),
		sessions:    testutil.NewSessionRepo(),
		otp:         testutil.NewOTPStore(),
		limiter:     testutil.NewLimiter(),
		cache:       testutil.NewCache(),
		blobs:       &testutil.BlobStore{},
		publisher:   &testutil.Publisher{},
		sender:      testutil.NewCodeSender(),
	}
	cfg := &config.Config{
		JWTSecret:     "test-secret",
		JWTExpiryMin:  15,
		RefreshExpiry: 7,
		OTPTTL:        5 * time.Minute,
	}

	events := services.NewEventPublisher(h.publisher, log)
	h.authz = services.NewAuthzService(h.roles, h.cache, log)
	h.auth = services.NewAuthService(h.profiles, h.sessions, h.otp, h.limiter, h.sender, h.authz, events, cfg)
	h.users = services.NewUserService(h.profiles, h.roles, h.authz, events)
	uploads := services.NewUploadService(h.blobs, 1<<20)
	h.profileSvc = services.NewProfileService(h.profiles, uploads, events)
	h.verifications = services.NewVerificationService(h.profiles, events)
	h.pollSvc = services.NewPollService(h.polls, h.limiter, events)
	h.subscribeSvc = services.NewSubscriberService(h.subscribers, events)
	h.stats = services.NewStatsService(h.profiles, h.polls, h.subscribers, h.cache, log)
	return h
}

func (h *harness) addProfile(t *testing.T, name string, status profile.VerificationStatus) profile.Profile {
	t.Helper()
	p := profile.Profile{
		ID:                 uuid.New(),
		FullName:           name,
		Phone:              "+1555" + strings.ReplaceAll(uuid.NewString()[:7], "-", "0"),
		VerificationStatus: status,
	}
	h.profiles.Put(p)
	return p
}

func (h *harness) addAdmin(t *testing.T, name string) profile.Profile {
	t.Helper()
	p := h.addProfile(t, name, profile.StatusVerified)
	require.NoError(t, h.roles.Grant(context.Background(), &role.UserRole{UserID: p.ID, Role: role.Admin}))
	return p
}

// approvedPoll creates a poll through the service and approves it.
func (h *harness) approvedPoll(t *testing.T, owner uuid.UUID, options ...string) services.PollView {
	t.Helper()
	ctx := context.Background()
	view, err := h.pollSvc.Create(ctx, owner, services.CreatePollInput{
		Title:    "Should the city extend library hours?",
		Category: string(poll.CategoryEducation),
		Options:  options,
	})
	require.NoError(t, err)
	require.NoError(t, h.pollSvc.Approve(ctx, uuid.New(), view.ID))
	return view
}

func optionID(t *testing.T, view services.PollView, text string) uuid.UUID {
	t.Helper()
	for _, o := range view.Options {
		if o.Text == text {
			return o.ID
		}
	}
	t.Fatalf("option %q not found", text)
	return uuid.Nil
}

func pollInput() services.CreatePollInput {
	return services.CreatePollInput{Title: "Pending poll", Options: []string{"a", "b"}}
}
