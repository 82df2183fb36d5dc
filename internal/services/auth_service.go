package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"civic-polls/config"
	"civic-polls/internal/domain/profile"
	"civic-polls/internal/domain/session"
	"civic-polls/internal/events"
	"civic-polls/internal/metrics"
	"civic-polls/internal/redis"
	"civic-polls/internal/repository"
	civic_errors "civic-polls/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	phonePattern = regexp.MustCompile(`^\+[0-9]{8,15}$`)
	codePattern  = regexp.MustCompile(`^[0-9]{6}$`)
)

type AuthService struct {
	profiles repository.ProfileRepository
	sessions repository.SessionRepository
	otp      OTPStore
	limiter  RateLimiter
	sender   CodeSender
	authz    *AuthzService
	events   *EventPublisher

	jwtSecret  []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	otpTTL     time.Duration
	now        func() time.Time
}

func NewAuthService(
	profiles repository.ProfileRepository,
	sessions repository.SessionRepository,
	otp OTPStore,
	limiter RateLimiter,
	sender CodeSender,
	authz *AuthzService,
	events *EventPublisher,
	cfg *config.Config,
) *AuthService {
	return &AuthService{
		profiles:   profiles,
		sessions:   sessions,
		otp:        otp,
		limiter:    limiter,
		sender:     sender,
		authz:      authz,
		events:     events,
		jwtSecret:  []byte(cfg.JWTSecret),
		accessTTL:  time.Duration(cfg.JWTExpiryMin) * time.Minute,
		refreshTTL: time.Duration(cfg.RefreshExpiry) * 24 * time.Hour,
		otpTTL:     cfg.OTPTTL,
		now:        time.Now,
	}
}

type RequestCodeInput struct {
	Phone    string
	FullName string
	ClientIP string
}

type CodeRequested struct {
	Phone     string `json:"phone"`
	ExpiresIn int64  `json:"expires_in"`
}

type VerifyCodeInput struct {
	Phone     string
	Code      string
	UserAgent string
	ClientIP  string
}

type RefreshInput struct {
	SessionID    string
	RefreshToken string
}

type AuthResponse struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token,omitempty"`
	ExpiresIn    int64    `json:"expires_in"`
	SessionID    string   `json:"session_id"`
	IsNewUser    bool     `json:"is_new_user"`
	User         UserInfo `json:"user"`
}

// UserInfo is the session view of the signed-in user.
type UserInfo struct {
	ID                 string   `json:"id"`
	Phone              string   `json:"phone"`
	Email              string   `json:"email,omitempty"`
	FullName           string   `json:"full_name"`
	VerificationStatus string   `json:"verification_status"`
	Roles              []string `json:"roles"`
}

type AccessClaims struct {
	UserID    string `json:"sub"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller behind an access token.
type Principal struct {
	UserID    uuid.UUID
	SessionID uuid.UUID
}

// NormalizePhone strips spaces and dashes and checks the E.164 shape.
func NormalizePhone(raw string) (string, error) {
	phone := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(raw))
	if !phonePattern.MatchString(phone) {
		return "", civic_errors.Invalid("phone must be in international format, e.g. +15551234567")
	}
	return phone, nil
}

// RequestCode sends a fresh one-time code. Resending is the same call.
func (s *AuthService) RequestCode(ctx context.Context, in RequestCodeInput) (CodeRequested, error) {
	phone, err := NormalizePhone(in.Phone)
	if err != nil {
		return CodeRequested{}, err
	}

	if in.ClientIP != "" {
		if err := s.checkLimit(s.limiter.AllowAuth(ctx, in.ClientIP)); err != nil {
			return CodeRequested{}, err
		}
	}
	if err := s.checkLimit(s.limiter.AllowOTP(ctx, phone)); err != nil {
		return CodeRequested{}, err
	}

	code, err := s.otp.Issue(ctx, phone, sanitizeText(in.FullName))
	if err != nil {
		return CodeRequested{}, fmt.Errorf("issue code: %w", err)
	}
	if err := s.sender.SendCode(ctx, phone, code); err != nil {
		return CodeRequested{}, fmt.Errorf("%w: send code: %v", civic_errors.ErrServiceUnavailable, err)
	}
	metrics.OTPSent.Inc()

	return CodeRequested{Phone: phone, ExpiresIn: int64(s.otpTTL.Seconds())}, nil
}

// VerifyCode exchanges a valid code for a session. The first successful
// verification for a phone creates its profile.
func (s *AuthService) VerifyCode(ctx context.Context, in VerifyCodeInput) (AuthResponse, error) {
	phone, err := NormalizePhone(in.Phone)
	if err != nil {
		return AuthResponse{}, err
	}
	code := strings.TrimSpace(in.Code)
	if !codePattern.MatchString(code) {
		return AuthResponse{}, civic_errors.Invalid("code must be 6 digits")
	}
	if in.ClientIP != "" {
		if err := s.checkLimit(s.limiter.AllowAuth(ctx, in.ClientIP)); err != nil {
			return AuthResponse{}, err
		}
	}

	fullName, err := s.otp.Verify(ctx, phone, code)
	if err != nil {
		switch {
		case errors.Is(err, civic_errors.ErrCodeExpired):
			return AuthResponse{}, civic_errors.New(civic_errors.ErrCodeExpired, "code expired, request a new one")
		case errors.Is(err, civic_errors.ErrUnauthorized):
			return AuthResponse{}, civic_errors.New(civic_errors.ErrUnauthorized, "invalid code")
		}
		return AuthResponse{}, err
	}
	if err := s.limiter.ResetOTP(ctx, phone); err != nil {
		s.events.log.Ctx(ctx).Warn("otp limit reset failed", zap.Error(err))
	}

	p, isNew, err := s.findOrCreateProfile(ctx, phone, fullName)
	if err != nil {
		return AuthResponse{}, err
	}

	refreshToken, err := generateToken(32)
	if err != nil {
		return AuthResponse{}, err
	}
	createdAt := s.now()
	sess := &session.Session{
		ID:               uuid.New(),
		UserID:           p.ID,
		RefreshTokenHash: hashRefreshToken(refreshToken),
		UserAgent:        in.UserAgent,
		ClientIP:         in.ClientIP,
		ExpiresAt:        createdAt.Add(s.refreshTTL),
		CreatedAt:        createdAt,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return AuthResponse{}, err
	}

	accessToken, expiresIn, err := s.newAccessToken(p.ID, sess.ID)
	if err != nil {
		return AuthResponse{}, err
	}

	info, err := s.userInfo(ctx, p)
	if err != nil {
		return AuthResponse{}, err
	}

	s.events.User(ctx, p.ID, events.EventTypeSessionSignedIn, map[string]string{"session_id": sess.ID.String()})

	return AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    expiresIn,
		SessionID:    sess.ID.String(),
		IsNewUser:    isNew,
		User:         info,
	}, nil
}

func (s *AuthService) findOrCreateProfile(ctx context.Context, phone, fullName string) (profile.Profile, bool, error) {
	p, err := s.profiles.GetByPhone(ctx, phone)
	if err == nil {
		return p, false, nil
	}
	if !errors.Is(err, civic_errors.ErrNotFound) {
		return profile.Profile{}, false, err
	}

	now := s.now()
	p = profile.Profile{
		ID:                 uuid.New(),
		FullName:           fullName,
		Phone:              phone,
		VerificationStatus: profile.StatusUnverified,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.profiles.Create(ctx, &p); err != nil {
		// A concurrent verification for the same phone won the insert.
		if errors.Is(err, civic_errors.ErrAlreadyExists) {
			existing, getErr := s.profiles.GetByPhone(ctx, phone)
			return existing, false, getErr
		}
		return profile.Profile{}, false, err
	}
	s.events.Change(ctx, events.TableProfiles, events.ChangeInsert, p.ID)
	return p, true, nil
}

func (s *AuthService) Refresh(ctx context.Context, in RefreshInput) (AuthResponse, error) {
	if in.SessionID == "" || in.RefreshToken == "" {
		return AuthResponse{}, civic_errors.ErrInvalidInput
	}
	sessionID, err := uuid.Parse(in.SessionID)
	if err != nil {
		return AuthResponse{}, civic_errors.ErrInvalidInput
	}

	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, civic_errors.ErrNotFound) {
			return AuthResponse{}, civic_errors.ErrUnauthorized
		}
		return AuthResponse{}, err
	}
	if !sess.Active(s.now()) {
		return AuthResponse{}, civic_errors.ErrUnauthorized
	}

	// A mismatched token means the refresh token leaked or was replayed.
	if !compareRefreshToken(sess.RefreshTokenHash, in.RefreshToken) {
		_ = s.sessions.Revoke(ctx, sess.ID)
		return AuthResponse{}, civic_errors.ErrUnauthorized
	}

	newRefresh, err := generateToken(32)
	if err != nil {
		return AuthResponse{}, err
	}
	sess.RefreshTokenHash = hashRefreshToken(newRefresh)
	sess.ExpiresAt = s.now().Add(s.refreshTTL)
	if err := s.sessions.Update(ctx, sess); err != nil {
		return AuthResponse{}, err
	}

	accessToken, expiresIn, err := s.newAccessToken(sess.UserID, sess.ID)
	if err != nil {
		return AuthResponse{}, err
	}
	p, err := s.profiles.GetByID(ctx, sess.UserID)
	if err != nil {
		return AuthResponse{}, err
	}
	info, err := s.userInfo(ctx, p)
	if err != nil {
		return AuthResponse{}, err
	}

	return AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: newRefresh,
		ExpiresIn:    expiresIn,
		SessionID:    sess.ID.String(),
		User:         info,
	}, nil
}

// Logout revokes the session and drops the user's cached authorization context.
func (s *AuthService) Logout(ctx context.Context, userID, sessionID uuid.UUID) error {
	if err := s.sessions.Revoke(ctx, sessionID); err != nil {
		return err
	}
	s.authz.Invalidate(ctx, userID)
	s.events.User(ctx, userID, events.EventTypeSessionSignedOut, map[string]string{"session_id": sessionID.String()})
	return nil
}

func (s *AuthService) Me(ctx context.Context, userID uuid.UUID) (UserInfo, error) {
	p, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		return UserInfo{}, err
	}
	return s.userInfo(ctx, p)
}

func (s *AuthService) ParseAccessToken(tokenString string) (AccessClaims, error) {
	if tokenString == "" {
		return AccessClaims{}, civic_errors.ErrUnauthorized
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, civic_errors.ErrUnauthorized
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return AccessClaims{}, civic_errors.ErrUnauthorized
	}

	claims, ok := parsed.Claims.(*AccessClaims)
	if !ok || !parsed.Valid {
		return AccessClaims{}, civic_errors.ErrUnauthorized
	}
	return *claims, nil
}

// Authenticate validates an access token and the session behind it.
func (s *AuthService) Authenticate(ctx context.Context, token string) (Principal, error) {
	claims, err := s.ParseAccessToken(token)
	if err != nil {
		return Principal{}, err
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return Principal{}, civic_errors.ErrUnauthorized
	}
	sessionID, err := uuid.Parse(claims.SessionID)
	if err != nil {
		return Principal{}, civic_errors.ErrUnauthorized
	}

	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, civic_errors.ErrNotFound) {
			return Principal{}, civic_errors.ErrUnauthorized
		}
		return Principal{}, err
	}
	if sess.UserID != userID || !sess.Active(s.now()) {
		return Principal{}, civic_errors.ErrUnauthorized
	}
	return Principal{UserID: userID, SessionID: sessionID}, nil
}

func (s *AuthService) userInfo(ctx context.Context, p profile.Profile) (UserInfo, error) {
	authz, err := s.authz.Context(ctx, p.ID)
	if err != nil {
		return UserInfo{}, err
	}
	info := UserInfo{
		ID:                 p.ID.String(),
		Phone:              p.Phone,
		FullName:           p.FullName,
		VerificationStatus: string(p.VerificationStatus),
		Roles:              authz.Roles,
	}
	if p.Email.Valid {
		info.Email = p.Email.String
	}
	return info, nil
}

func (s *AuthService) checkLimit(res *redis.RateLimitResult, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %v", civic_errors.ErrServiceUnavailable, err)
	}
	if !res.Allowed {
		return civic_errors.New(civic_errors.ErrRateLimited,
			fmt.Sprintf("too many attempts, try again in %d seconds", int(res.ResetIn.Seconds())))
	}
	return nil
}

func (s *AuthService) newAccessToken(userID, sessionID uuid.UUID) (string, int64, error) {
	now := s.now()
	claims := AccessClaims{
		UserID:    userID.String(),
		SessionID: sessionID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", 0, err
	}
	return signed, int64(s.accessTTL.Seconds()), nil
}

func hashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func compareRefreshToken(hash, token string) bool {
	computed := hashRefreshToken(token)
	return subtle.ConstantTimeCompare([]byte(hash), []byte(computed)) == 1
}

func generateToken(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
