// Package testutil holds in-memory implementations of the repositories and
// stores used by the service and handler tests.
package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"civic-polls/internal/domain/poll"
	"civic-polls/internal/domain/profile"
	"civic-polls/internal/domain/role"
	"civic-polls/internal/domain/session"
	"civic-polls/internal/domain/subscriber"
	"civic-polls/internal/redis"
	civic_errors "civic-polls/pkg/errors"

	"github.com/google/uuid"
)

// ProfileRepo is an in-memory repository.ProfileRepository.
type ProfileRepo struct {
	mu       sync.Mutex
	profiles map[uuid.UUID]profile.Profile
}

func NewProfileRepo() *ProfileRepo {
	return &ProfileRepo{profiles: make(map[uuid.UUID]profile.Profile)}
}

// Put stores p as is, for seeding tests.
func (r *ProfileRepo) Put(p profile.Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.VerificationStatus == "" {
		p.VerificationStatus = profile.StatusUnverified
	}
	r.profiles[p.ID] = p
}

func (r *ProfileRepo) Create(_ context.Context, p *profile.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.profiles {
		if existing.Phone == p.Phone {
			return civic_errors.ErrAlreadyExists
		}
	}
	if p.VerificationStatus == "" {
		p.VerificationStatus = profile.StatusUnverified
	}
	r.profiles[p.ID] = *p
	return nil
}

func (r *ProfileRepo) GetByID(_ context.Context, id uuid.UUID) (profile.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[id]
	if !ok {
		return profile.Profile{}, civic_errors.ErrNotFound
	}
	return p, nil
}

func (r *ProfileRepo) GetByPhone(_ context.Context, phone string) (profile.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.profiles {
		if p.Phone == phone {
			return p, nil
		}
	}
	return profile.Profile{}, civic_errors.ErrNotFound
}

func (r *ProfileRepo) List(_ context.Context, search string) ([]profile.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	term := strings.ToLower(search)
	var out []profile.Profile
	for _, p := range r.profiles {
		if term != "" &&
			!strings.Contains(strings.ToLower(p.FullName), term) &&
			!strings.Contains(strings.ToLower(p.Email.String), term) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

func (r *ProfileRepo) UpdateRegistration(_ context.Context, id uuid.UUID, d profile.Details, passportURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[id]
	if !ok {
		return civic_errors.ErrNotFound
	}
	if passportURL != "" {
		if !p.VerificationStatus.CanSubmitDocument() {
			return civic_errors.ErrInvalidTransition
		}
		p.PassportURL.String, p.PassportURL.Valid = passportURL, true
		p.VerificationStatus = profile.StatusPending
	}
	p.FullName = d.FullName
	p.Email.String, p.Email.Valid = d.Email, d.Email != ""
	p.Location = d.Location
	p.Occupation = d.Occupation
	if d.HeadshotURL != "" {
		p.HeadshotURL.String, p.HeadshotURL.Valid = d.HeadshotURL, true
	}
	p.UpdatedAt = time.Now()
	r.profiles[id] = p
	return nil
}

func (r *ProfileRepo) SubmitDocument(_ context.Context, id uuid.UUID, passportURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[id]
	if !ok {
		return civic_errors.ErrNotFound
	}
	if !p.VerificationStatus.CanSubmitDocument() {
		return civic_errors.ErrInvalidTransition
	}
	p.PassportURL.String, p.PassportURL.Valid = passportURL, true
	p.VerificationStatus = profile.StatusPending
	r.profiles[id] = p
	return nil
}

func (r *ProfileRepo) Review(_ context.Context, id uuid.UUID, status profile.VerificationStatus, notes string, reviewer uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[id]
	if !ok {
		return civic_errors.ErrNotFound
	}
	if p.VerificationStatus != profile.StatusPending {
		return civic_errors.ErrInvalidTransition
	}
	p.VerificationStatus = status
	p.VerificationNotes.String, p.VerificationNotes.Valid = notes, notes != ""
	p.ReviewedBy = uuid.NullUUID{UUID: reviewer, Valid: true}
	p.ReviewedAt.Time, p.ReviewedAt.Valid = time.Now(), true
	r.profiles[id] = p
	return nil
}

func (r *ProfileRepo) ListByStatus(_ context.Context, status profile.VerificationStatus) ([]profile.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []profile.Profile
	for _, p := range r.profiles {
		if p.VerificationStatus == status {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *ProfileRepo) Count(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.profiles)), nil
}

func (r *ProfileRepo) CountByStatus(_ context.Context, status profile.VerificationStatus) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, p := range r.profiles {
		if p.VerificationStatus == status {
			n++
		}
	}
	return n, nil
}

func (r *ProfileRepo) TopLocations(_ context.Context, limit int) ([]profile.Bucket, error) {
	return r.top(limit, func(p profile.Profile) string { return p.Location }), nil
}

func (r *ProfileRepo) TopOccupations(_ context.Context, limit int) ([]profile.Bucket, error) {
	return r.top(limit, func(p profile.Profile) string { return p.Occupation }), nil
}

func (r *ProfileRepo) top(limit int, field func(profile.Profile) string) []profile.Bucket {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[string]int64)
	for _, p := range r.profiles {
		if v := field(p); v != "" {
			counts[v]++
		}
	}
	out := make([]profile.Bucket, 0, len(counts))
	for name, n := range counts {
		out = append(out, profile.Bucket{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// PollRepo is an in-memory repository.PollRepository.
type PollRepo struct {
	mu      sync.Mutex
	polls   map[uuid.UUID]poll.Poll
	options map[uuid.UUID]poll.Option
	votes   map[string]poll.Vote
	names   map[uuid.UUID]string
}

func NewPollRepo() *PollRepo {
	return &PollRepo{
		polls:   make(map[uuid.UUID]poll.Poll),
		options: make(map[uuid.UUID]poll.Option),
		votes:   make(map[string]poll.Vote),
		names:   make(map[uuid.UUID]string),
	}
}

// SetCreatorName makes ListPending report name for polls created by userID.
func (r *PollRepo) SetCreatorName(userID uuid.UUID, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names[userID] = name
}

func voteKey(pollID, userID uuid.UUID) string {
	return pollID.String() + ":" + userID.String()
}

func (r *PollRepo) Create(_ context.Context, p *poll.Poll, options []poll.Option) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	stored := *p
	stored.Options = nil
	r.polls[p.ID] = stored
	for i, o := range options {
		o.PollID = p.ID
		o.Position = i
		r.options[o.ID] = o
	}
	return nil
}

func (r *PollRepo) withOptions(p poll.Poll) poll.Poll {
	p.Options = nil
	for _, o := range r.options {
		if o.PollID == p.ID {
			p.Options = append(p.Options, o)
		}
	}
	sort.Slice(p.Options, func(i, j int) bool { return p.Options[i].OptionText < p.Options[j].OptionText })
	return p
}

func (r *PollRepo) GetByID(_ context.Context, id uuid.UUID) (poll.Poll, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.polls[id]
	if !ok {
		return poll.Poll{}, civic_errors.ErrNotFound
	}
	return r.withOptions(p), nil
}

func (r *PollRepo) ListPublic(_ context.Context, category poll.Category) ([]poll.Poll, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []poll.Poll
	for _, p := range r.polls {
		if !p.Public() || (category != "" && p.Category != category) {
			continue
		}
		out = append(out, r.withOptions(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *PollRepo) ListPending(_ context.Context) ([]poll.PendingPoll, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []poll.PendingPoll
	for _, p := range r.polls {
		if p.Pending() {
			out = append(out, poll.PendingPoll{Poll: r.withOptions(p), CreatorName: r.names[p.UserID]})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *PollRepo) CountPending(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, p := range r.polls {
		if p.Pending() {
			n++
		}
	}
	return n, nil
}

func (r *PollRepo) Approve(_ context.Context, id, adminID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.polls[id]
	if !ok {
		return civic_errors.ErrNotFound
	}
	if !p.Pending() {
		return civic_errors.ErrInvalidTransition
	}
	p.Approved = true
	p.ApprovedBy = uuid.NullUUID{UUID: adminID, Valid: true}
	p.ApprovedAt.Time, p.ApprovedAt.Valid = time.Now(), true
	r.polls[id] = p
	return nil
}

func (r *PollRepo) Reject(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.polls[id]
	if !ok {
		return civic_errors.ErrNotFound
	}
	if !p.Pending() {
		return civic_errors.ErrInvalidTransition
	}
	p.IsActive = false
	r.polls[id] = p
	return nil
}

func (r *PollRepo) Withdraw(_ context.Context, id, ownerID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.polls[id]
	if !ok {
		return civic_errors.ErrNotFound
	}
	if p.UserID != ownerID {
		return civic_errors.ErrForbidden
	}
	if !p.IsActive {
		return civic_errors.ErrInvalidTransition
	}
	p.IsActive = false
	r.polls[id] = p
	return nil
}

func (r *PollRepo) GetOption(_ context.Context, optionID uuid.UUID) (poll.Option, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.options[optionID]
	if !ok {
		return poll.Option{}, civic_errors.ErrNotFound
	}
	return o, nil
}

func (r *PollRepo) CastVote(_ context.Context, v poll.Vote) (poll.VoteOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := voteKey(v.PollID, v.UserID)
	existing, ok := r.votes[key]
	if !ok {
		r.votes[key] = v
		r.bump(v.OptionID, 1)
		return poll.VoteRecorded, nil
	}
	if existing.OptionID == v.OptionID {
		return poll.VoteUnchanged, nil
	}
	r.bump(existing.OptionID, -1)
	r.bump(v.OptionID, 1)
	existing.OptionID = v.OptionID
	r.votes[key] = existing
	return poll.VoteUpdated, nil
}

func (r *PollRepo) bump(optionID uuid.UUID, delta int64) {
	o := r.options[optionID]
	o.VotesCount += delta
	if o.VotesCount < 0 {
		o.VotesCount = 0
	}
	r.options[optionID] = o
}

func (r *PollRepo) GetUserVote(_ context.Context, pollID, userID uuid.UUID) (poll.Vote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.votes[voteKey(pollID, userID)]
	if !ok {
		return poll.Vote{}, civic_errors.ErrNotFound
	}
	return v, nil
}

// RoleRepo is an in-memory repository.RoleRepository.
type RoleRepo struct {
	mu    sync.Mutex
	roles []role.UserRole

	// AfterRead, when set, runs after GetUserRoles has read the roles and
	// before it returns them.
	AfterRead func(userID uuid.UUID)
}

func NewRoleRepo() *RoleRepo {
	return &RoleRepo{}
}

func (r *RoleRepo) HasRole(_ context.Context, userID uuid.UUID, name string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ur := range r.roles {
		if ur.UserID == userID && ur.Role == name {
			return true, nil
		}
	}
	return false, nil
}

func (r *RoleRepo) GetUserRoles(_ context.Context, userID uuid.UUID) ([]string, error) {
	r.mu.Lock()
	var out []string
	for _, ur := range r.roles {
		if ur.UserID == userID {
			out = append(out, ur.Role)
		}
	}
	hook := r.AfterRead
	r.mu.Unlock()
	if hook != nil {
		hook(userID)
	}
	return out, nil
}

func (r *RoleRepo) ListAll(_ context.Context) ([]role.UserRole, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]role.UserRole(nil), r.roles...), nil
}

func (r *RoleRepo) Grant(_ context.Context, ur *role.UserRole) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.roles {
		if existing.UserID == ur.UserID && existing.Role == ur.Role {
			return civic_errors.ErrAlreadyExists
		}
	}
	r.roles = append(r.roles, *ur)
	return nil
}

func (r *RoleRepo) Revoke(_ context.Context, userID uuid.UUID, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, ur := range r.roles {
		if ur.UserID == userID && ur.Role == name {
			r.roles = append(r.roles[:i], r.roles[i+1:]...)
			return nil
		}
	}
	return civic_errors.ErrNotFound
}

// SubscriberRepo is an in-memory repository.SubscriberRepository.
type SubscriberRepo struct {
	mu     sync.Mutex
	emails map[string]subscriber.EmailSubscriber
}

func NewSubscriberRepo() *SubscriberRepo {
	return &SubscriberRepo{emails: make(map[string]subscriber.EmailSubscriber)}
}

func (r *SubscriberRepo) Create(_ context.Context, s *subscriber.EmailSubscriber) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.emails[s.Email]; ok {
		return civic_errors.ErrAlreadyExists
	}
	r.emails[s.Email] = *s
	return nil
}

func (r *SubscriberRepo) Count(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.emails)), nil
}

// SessionRepo is an in-memory repository.SessionRepository.
type SessionRepo struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]session.Session
}

func NewSessionRepo() *SessionRepo {
	return &SessionRepo{sessions: make(map[uuid.UUID]session.Session)}
}

func (r *SessionRepo) Create(_ context.Context, s *session.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = *s
	return nil
}

func (r *SessionRepo) GetByID(_ context.Context, id uuid.UUID) (session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return session.Session{}, civic_errors.ErrNotFound
	}
	return s, nil
}

func (r *SessionRepo) Update(_ context.Context, s session.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.ID]; !ok {
		return civic_errors.ErrNotFound
	}
	r.sessions[s.ID] = s
	return nil
}

func (r *SessionRepo) Revoke(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return civic_errors.ErrNotFound
	}
	s.IsRevoked = true
	r.sessions[id] = s
	return nil
}

func (r *SessionRepo) RevokeAllForUser(_ context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.sessions {
		if s.UserID == userID {
			s.IsRevoked = true
			r.sessions[id] = s
		}
	}
	return nil
}

// OTPStore issues Code for every phone. Verify is single-use.
type OTPStore struct {
	mu      sync.Mutex
	Code    string
	pending map[string]string
}

func NewOTPStore() *OTPStore {
	return &OTPStore{Code: "123456", pending: make(map[string]string)}
}

func (s *OTPStore) Issue(_ context.Context, phone, fullName string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[phone] = fullName
	return s.Code, nil
}

func (s *OTPStore) Verify(_ context.Context, phone, code string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name, ok := s.pending[phone]
	if !ok {
		return "", civic_errors.ErrCodeExpired
	}
	if code != s.Code {
		return "", civic_errors.ErrUnauthorized
	}
	delete(s.pending, phone)
	return name, nil
}

// Limiter allows everything unless a key is listed in Deny or Err is set.
type Limiter struct {
	mu     sync.Mutex
	Deny   map[string]bool
	Err    error
	resets []string
}

func NewLimiter() *Limiter {
	return &Limiter{Deny: make(map[string]bool)}
}

func (l *Limiter) DenyKey(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Deny[key] = true
}

func (l *Limiter) check(key string) (*redis.RateLimitResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return nil, l.Err
	}
	if l.Deny[key] {
		return &redis.RateLimitResult{Allowed: false, ResetIn: time.Minute}, nil
	}
	return &redis.RateLimitResult{Allowed: true, Remaining: 1}, nil
}

func (l *Limiter) AllowOTP(_ context.Context, phone string) (*redis.RateLimitResult, error) {
	return l.check("otp:" + phone)
}

func (l *Limiter) AllowAuth(_ context.Context, ip string) (*redis.RateLimitResult, error) {
	return l.check("auth:" + ip)
}

func (l *Limiter) AllowVote(_ context.Context, userID string) (*redis.RateLimitResult, error) {
	return l.check("vote:" + userID)
}

func (l *Limiter) ResetOTP(_ context.Context, phone string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resets = append(l.resets, "otp:"+phone)
	delete(l.Deny, "otp:"+phone)
	return nil
}

// Resets lists the keys cleared so far.
func (l *Limiter) Resets() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.resets...)
}

// Cache implements both the authz and stats caches.
type Cache struct {
	mu    sync.Mutex
	authz map[uuid.UUID]role.Context
	gen   map[uuid.UUID]int64
	stats map[string][]byte
}

func NewCache() *Cache {
	return &Cache{
		authz: make(map[uuid.UUID]role.Context),
		gen:   make(map[uuid.UUID]int64),
		stats: make(map[string][]byte),
	}
}

func (c *Cache) AuthzGeneration(_ context.Context, userID uuid.UUID) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen[userID], nil
}

func (c *Cache) GetAuthz(_ context.Context, userID uuid.UUID) (*role.Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.authz[userID]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (c *Cache) SetAuthz(_ context.Context, authz role.Context, gen int64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen[authz.UserID] != gen {
		return false, nil
	}
	c.authz[authz.UserID] = authz
	return true, nil
}

func (c *Cache) InvalidateAuthz(_ context.Context, userID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen[userID]++
	delete(c.authz, userID)
	return nil
}

func (c *Cache) GetStats(_ context.Context, name string, dst interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.stats[name]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dst)
}

func (c *Cache) SetStats(_ context.Context, name string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats[name] = raw
	return nil
}

// BlobStore records uploaded keys and returns predictable URLs.
type BlobStore struct {
	mu   sync.Mutex
	Keys []string
}

func (b *BlobStore) Upload(_ context.Context, key, _ string, body io.Reader, _ int64) (string, error) {
	if _, err := io.Copy(io.Discard, body); err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Keys = append(b.Keys, key)
	return fmt.Sprintf("https://blobs.test/%s", key), nil
}

// Published is one message seen by Publisher.
type Published struct {
	Channel string
	Payload []byte
}

// Publisher records every message instead of sending it.
type Publisher struct {
	mu       sync.Mutex
	Messages []Published
}

func (p *Publisher) PublishJSON(_ context.Context, channel string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Messages = append(p.Messages, Published{Channel: channel, Payload: raw})
	return nil
}

// Channels lists the channels published to, in order.
func (p *Publisher) Channels() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.Messages))
	for _, m := range p.Messages {
		out = append(out, m.Channel)
	}
	return out
}

// CodeSender remembers the last code sent to each phone.
type CodeSender struct {
	mu   sync.Mutex
	Sent map[string]string
}

func NewCodeSender() *CodeSender {
	return &CodeSender{Sent: make(map[string]string)}
}

func (s *CodeSender) SendCode(_ context.Context, phone, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Sent[phone] = code
	return nil
}
