package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"civic-polls/config"
	"civic-polls/internal/domain/profile"
	"civic-polls/internal/domain/role"
	"civic-polls/internal/handler"
	"civic-polls/internal/server"
	"civic-polls/internal/services"
	"civic-polls/internal/testutil"
	"civic-polls/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

type testServer struct {
	engine   *gin.Engine
	profiles *testutil.ProfileRepo
	roles    *testutil.RoleRepo
	limiter  *testutil.Limiter
	authz    *services.AuthzService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.NewNop()
	cfg := &config.Config{
		AppPort:        "0",
		AppMode:        server.TestMode,
		JWTSecret:      "test-secret",
		JWTExpiryMin:   15,
		RefreshExpiry:  7,
		OTPTTL:         5 * time.Minute,
		AllowedOrigins: []string{"*"},
	}

	ts := &testServer{
		profiles: testutil.NewProfileRepo(),
		roles:    testutil.NewRoleRepo(),
		limiter:  testutil.NewLimiter(),
	}
	polls := testutil.NewPollRepo()
	subscribers := testutil.NewSubscriberRepo()
	cache := testutil.NewCache()
	events := services.NewEventPublisher(&testutil.Publisher{}, log)

	authz := services.NewAuthzService(ts.roles, cache, log)
	ts.authz = authz
	auth := services.NewAuthService(ts.profiles, testutil.NewSessionRepo(), testutil.NewOTPStore(), ts.limiter,
		testutil.NewCodeSender(), authz, events, cfg)
	pollService := services.NewPollService(polls, ts.limiter, events)
	stats := services.NewStatsService(ts.profiles, polls, subscribers, cache, log)

	srv := server.New(cfg, log)
	srv.SetupRoutes(&server.Handlers{
		Auth:    handler.NewAuthHandler(auth),
		Profile: handler.NewProfileHandler(services.NewProfileService(ts.profiles, services.NewUploadService(&testutil.BlobStore{}, 1<<20), events)),
		Poll:    handler.NewPollHandler(pollService),
		Admin: handler.NewAdminHandler(pollService, services.NewVerificationService(ts.profiles, events),
			services.NewUserService(ts.profiles, ts.roles, authz, events), stats),
		Public: handler.NewPublicHandler(services.NewSubscriberService(subscribers, events), stats),
	}, server.Deps{Auth: auth, Authz: authz, Limiter: ts.limiter})

	ts.engine = srv.Engine()
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return ts.serve(t, req)
}

func (ts *testServer) serve(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)
	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

// signIn runs the OTP flow and returns the access token and user id.
func (ts *testServer) signIn(t *testing.T, phone, name string) (string, uuid.UUID) {
	t.Helper()
	w, _ := ts.do(t, http.MethodPost, "/v1/auth/otp", "", map[string]string{"phone": phone, "full_name": name})
	require.Equal(t, http.StatusOK, w.Code)

	w, env := ts.do(t, http.MethodPost, "/v1/auth/verify", "", map[string]string{"phone": phone, "code": "123456"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var auth struct {
		AccessToken string `json:"access_token"`
		User        struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &auth))
	return auth.AccessToken, uuid.MustParse(auth.User.ID)
}

func (ts *testServer) makeAdmin(t *testing.T, userID uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, ts.roles.Grant(ctx, &role.UserRole{UserID: userID, Role: role.Admin}))
	ts.authz.Invalidate(ctx, userID)
}

func TestPingAndHealth(t *testing.T) {
	ts := newTestServer(t)
	w, env := ts.do(t, http.MethodGet, "/ping", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

	w, _ = ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthFlowAndMe(t *testing.T) {
	ts := newTestServer(t)

	w, env := ts.do(t, http.MethodPost, "/v1/auth/verify", "", map[string]string{"phone": "+15551234567", "code": "12"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", env.Code)

	w, env = ts.do(t, http.MethodPost, "/v1/auth/otp", "", map[string]string{"phone": "555"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, env.Success)

	token, userID := ts.signIn(t, "+15551234567", "Ada Obi")

	w, env = ts.do(t, http.MethodGet, "/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var me struct {
		ID       string   `json:"id"`
		FullName string   `json:"full_name"`
		Roles    []string `json:"roles"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Equal(t, userID.String(), me.ID)
	assert.Equal(t, "Ada Obi", me.FullName)
	assert.Empty(t, me.Roles)

	w, _ = ts.do(t, http.MethodGet, "/v1/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = ts.do(t, http.MethodPost, "/v1/auth/logout", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, env = ts.do(t, http.MethodGet, "/v1/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", env.Code)
}

func TestOTPRateLimited(t *testing.T) {
	ts := newTestServer(t)
	ts.limiter.DenyKey("otp:+15551234567")

	w, env := ts.do(t, http.MethodPost, "/v1/auth/otp", "", map[string]string{"phone": "+15551234567"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "RATE_LIMITED", env.Code)
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	ts := newTestServer(t)
	token, userID := ts.signIn(t, "+15551234567", "Ada")

	w, env := ts.do(t, http.MethodGet, "/v1/admin/dashboard", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", env.Code)

	_, _ = ts.signIn(t, "+15557654321", "Other")
	ts.makeAdmin(t, userID)

	w, env = ts.do(t, http.MethodGet, "/v1/admin/dashboard", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var d services.Dashboard
	require.NoError(t, json.Unmarshal(env.Data, &d))
	assert.Equal(t, int64(2), d.TotalUsers)
}

func TestGrantAdminMakesRoutesReachable(t *testing.T) {
	ts := newTestServer(t)
	adminToken, adminID := ts.signIn(t, "+15557654321", "Admin")
	userToken, userID := ts.signIn(t, "+15551234567", "Bola")
	ts.makeAdmin(t, adminID)

	w, _ := ts.do(t, http.MethodGet, "/v1/admin/users", userToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = ts.do(t, http.MethodPost, "/v1/admin/users/"+userID.String()+"/admin", adminToken, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w, env := ts.do(t, http.MethodGet, "/v1/admin/users?search=bola", userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var users []struct {
		FullName string `json:"full_name"`
		IsAdmin  bool   `json:"is_admin"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &users))
	require.Len(t, users, 1)
	assert.True(t, users[0].IsAdmin)

	w, env = ts.do(t, http.MethodPost, "/v1/admin/users/"+userID.String()+"/admin", adminToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "user is already an admin", env.Error)

	w, _ = ts.do(t, http.MethodDelete, "/v1/admin/users/"+userID.String()+"/admin", adminToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = ts.do(t, http.MethodGet, "/v1/admin/users", userToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestPollLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	creatorToken, _ := ts.signIn(t, "+15551111111", "Creator")
	voterToken, _ := ts.signIn(t, "+15552222222", "Voter")
	adminToken, adminID := ts.signIn(t, "+15553333333", "Admin")
	ts.makeAdmin(t, adminID)

	w, _ := ts.do(t, http.MethodPost, "/v1/polls", creatorToken, map[string]interface{}{
		"title": "Only one", "options": []string{"a"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env := ts.do(t, http.MethodPost, "/v1/polls", creatorToken, map[string]interface{}{
		"title": "New park?", "category": "infrastructure", "options": []string{"Yes", "No"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created services.PollView
	require.NoError(t, json.Unmarshal(env.Data, &created))
	pollPath := "/v1/polls/" + created.ID.String()

	w, _ = ts.do(t, http.MethodGet, pollPath, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w, _ = ts.do(t, http.MethodGet, pollPath, creatorToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, env = ts.do(t, http.MethodGet, "/v1/admin/polls", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var pending []services.PendingPollView
	require.NoError(t, json.Unmarshal(env.Data, &pending))
	require.Len(t, pending, 1)

	w, _ = ts.do(t, http.MethodPost, "/v1/admin/polls/"+created.ID.String()+"/approve", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w, env = ts.do(t, http.MethodPost, "/v1/admin/polls/"+created.ID.String()+"/approve", adminToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "poll is not pending approval", env.Error)

	w, env = ts.do(t, http.MethodGet, "/v1/polls?category=infrastructure", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var public []services.PollView
	require.NoError(t, json.Unmarshal(env.Data, &public))
	assert.Len(t, public, 1)

	w, _ = ts.do(t, http.MethodPost, pollPath+"/vote", "", map[string]string{"option_id": created.Options[0].ID.String()})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, env = ts.do(t, http.MethodPost, pollPath+"/vote", voterToken, map[string]string{"option_id": created.Options[0].ID.String()})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var vote services.VoteResult
	require.NoError(t, json.Unmarshal(env.Data, &vote))
	assert.Equal(t, "recorded", string(vote.Outcome))
	assert.Equal(t, 100.0, vote.Poll.Options[0].Percentage)

	w, _ = ts.do(t, http.MethodPost, pollPath+"/vote", voterToken, map[string]string{"option_id": "nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = ts.do(t, http.MethodDelete, pollPath, voterToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = ts.do(t, http.MethodDelete, pollPath, creatorToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

var (
	pdfFile  = "%PDF-1.4\n%\xe2\xe3\xcf\xd3\n1 0 obj\n"
	pngFile  = "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"
	jpegFile = "\xff\xd8\xff\xe0\x00\x10JFIF\x00"
)

// multipartRequest builds a form upload. Every file part declares
// application/pdf; the server must go by the bytes in files.
func multipartRequest(t *testing.T, method, path, token string, fields map[string]string, files map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for field, content := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+field+`.bin"`)
		h.Set("Content-Type", "application/pdf")
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestRegistrationAndVerificationReview(t *testing.T) {
	ts := newTestServer(t)
	token, userID := ts.signIn(t, "+15551234567", "Ada")
	adminToken, adminID := ts.signIn(t, "+15557654321", "Admin")
	ts.makeAdmin(t, adminID)

	req := multipartRequest(t, http.MethodPut, "/v1/profile", token,
		map[string]string{"full_name": "Ada Obi", "location": "Lagos"},
		map[string]string{"passport": "not really a pdf"})
	w, env := ts.serve(t, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	assert.Equal(t, "UNSUPPORTED_MEDIA", env.Code)

	req = multipartRequest(t, http.MethodPut, "/v1/profile", token,
		map[string]string{"full_name": "Ada Obi", "location": "Lagos"},
		map[string]string{"passport": pdfFile, "headshot": pngFile})
	w, env = ts.serve(t, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var p struct {
		VerificationStatus string `json:"verification_status"`
		HeadshotURL        string `json:"headshot_url"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, string(profile.StatusPending), p.VerificationStatus)
	assert.NotEmpty(t, p.HeadshotURL)

	req = multipartRequest(t, http.MethodPost, "/v1/profile/verification", token, nil,
		map[string]string{"passport": pdfFile})
	w, _ = ts.serve(t, req)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = ts.do(t, http.MethodPost, "/v1/admin/verifications/"+userID.String()+"/reject", adminToken, map[string]string{"notes": "unreadable"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	req = multipartRequest(t, http.MethodPost, "/v1/profile/verification", token, nil,
		map[string]string{"passport": jpegFile})
	w, _ = ts.serve(t, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, _ = ts.do(t, http.MethodPost, "/v1/admin/verifications/"+userID.String()+"/approve", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, env = ts.do(t, http.MethodGet, "/v1/stats", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats services.PublicStats
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, int64(2), stats.TotalSupporters)
	assert.Equal(t, int64(1), stats.VerifiedSupporters)
}

func TestSubscribeOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	w, env := ts.do(t, http.MethodPost, "/v1/subscribers", "", map[string]string{"email": "fan@example.com"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"message":"Successfully subscribed to updates!"}`, string(env.Data))

	w, env = ts.do(t, http.MethodPost, "/v1/subscribers", "", map[string]string{"email": "FAN@example.com"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "This email is already subscribed", env.Error)
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/v1/polls", nil)
	req.Header.Set("Origin", "https://civic.example")
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://civic.example", w.Header().Get("Access-Control-Allow-Origin"))
}
