package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"civic-polls/internal/domain/poll"
	"civic-polls/internal/events"
	"civic-polls/internal/metrics"
	"civic-polls/internal/repository"
	civic_errors "civic-polls/pkg/errors"

	"github.com/google/uuid"
)

const (
	maxTitleLength  = 200
	maxOptionLength = 200
	maxOptions      = 20
)

type PollService struct {
	polls   repository.PollRepository
	limiter RateLimiter
	events  *EventPublisher
}

func NewPollService(polls repository.PollRepository, limiter RateLimiter, events *EventPublisher) *PollService {
	return &PollService{polls: polls, limiter: limiter, events: events}
}

type CreatePollInput struct {
	Title       string
	Description string
	Category    string
	Options     []string
}

type OptionView struct {
	ID         uuid.UUID `json:"id"`
	Text       string    `json:"option_text"`
	VotesCount int64     `json:"votes_count"`
	Percentage float64   `json:"percentage"`
}

type PollView struct {
	ID          uuid.UUID    `json:"id"`
	UserID      uuid.UUID    `json:"user_id"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Category    string       `json:"category"`
	IsActive    bool         `json:"is_active"`
	Approved    bool         `json:"approved"`
	CreatedAt   time.Time    `json:"created_at"`
	TotalVotes  int64        `json:"total_votes"`
	Options     []OptionView `json:"options"`
	MyOptionID  *uuid.UUID   `json:"my_option_id,omitempty"`
}

type PendingPollView struct {
	PollView
	CreatorName string `json:"creator_name"`
}

type VoteResult struct {
	Outcome poll.VoteOutcome `json:"outcome"`
	Message string           `json:"message"`
	Poll    PollView         `json:"poll"`
}

// Viewer identifies who is looking at a poll. The zero value is anonymous.
type Viewer struct {
	UserID  uuid.UUID
	IsAdmin bool
}

// Percentage is the share of votes as 0-100; 0 when nobody voted.
func Percentage(votes, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(votes) / float64(total) * 100
}

// Create submits a poll for approval. Poll and options are stored atomically.
func (s *PollService) Create(ctx context.Context, userID uuid.UUID, in CreatePollInput) (PollView, error) {
	title := sanitizeText(in.Title)
	if title == "" {
		return PollView{}, civic_errors.Invalid("title is required")
	}
	if len(title) > maxTitleLength {
		return PollView{}, civic_errors.Invalid(fmt.Sprintf("title must be at most %d characters", maxTitleLength))
	}
	category, ok := poll.ParseCategory(in.Category)
	if !ok {
		return PollView{}, civic_errors.Invalid("unknown category")
	}

	texts := make([]string, 0, len(in.Options))
	seen := make(map[string]bool)
	for _, raw := range in.Options {
		text := sanitizeText(raw)
		if text == "" {
			continue
		}
		if len(text) > maxOptionLength {
			return PollView{}, civic_errors.Invalid(fmt.Sprintf("options must be at most %d characters", maxOptionLength))
		}
		key := strings.ToLower(text)
		if seen[key] {
			return PollView{}, civic_errors.Invalid("options must be distinct")
		}
		seen[key] = true
		texts = append(texts, text)
	}
	if len(texts) < 2 {
		return PollView{}, civic_errors.Invalid("at least two options are required")
	}
	if len(texts) > maxOptions {
		return PollView{}, civic_errors.Invalid(fmt.Sprintf("at most %d options are allowed", maxOptions))
	}

	p := &poll.Poll{
		ID:       uuid.New(),
		UserID:   userID,
		Title:    title,
		Category: category,
		IsActive: true,
		Approved: false,
	}
	if d := sanitizeText(in.Description); d != "" {
		p.Description = sql.NullString{String: d, Valid: true}
	}
	options := make([]poll.Option, 0, len(texts))
	for _, text := range texts {
		options = append(options, poll.Option{ID: uuid.New(), OptionText: text})
	}

	if err := s.polls.Create(ctx, p, options); err != nil {
		return PollView{}, err
	}
	metrics.PollsCreated.Inc()
	s.events.Change(ctx, events.TablePolls, events.ChangeInsert, p.ID)

	p.Options = options
	return toPollView(*p, nil), nil
}

// ListPublic returns approved, active polls, newest first. An empty or "all"
// category means no filter.
func (s *PollService) ListPublic(ctx context.Context, rawCategory string) ([]PollView, error) {
	var category poll.Category
	raw := strings.ToLower(strings.TrimSpace(rawCategory))
	if raw != "" && raw != "all" {
		c, ok := poll.ParseCategory(raw)
		if !ok {
			return nil, civic_errors.Invalid("unknown category")
		}
		category = c
	}

	polls, err := s.polls.ListPublic(ctx, category)
	if err != nil {
		return nil, err
	}
	out := make([]PollView, 0, len(polls))
	for _, p := range polls {
		out = append(out, toPollView(p, nil))
	}
	return out, nil
}

func (s *PollService) Get(ctx context.Context, id uuid.UUID, viewer Viewer) (PollView, error) {
	p, err := s.polls.GetByID(ctx, id)
	if err != nil {
		return PollView{}, err
	}
	if !p.Public() && p.UserID != viewer.UserID && !viewer.IsAdmin {
		return PollView{}, civic_errors.ErrNotFound
	}

	var mine *uuid.UUID
	if viewer.UserID != uuid.Nil {
		v, err := s.polls.GetUserVote(ctx, id, viewer.UserID)
		switch {
		case err == nil:
			mine = &v.OptionID
		case !errors.Is(err, civic_errors.ErrNotFound):
			return PollView{}, err
		}
	}
	return toPollView(p, mine), nil
}

// Vote records the user's choice or moves it to another option. Each user
// holds at most one vote per poll.
func (s *PollService) Vote(ctx context.Context, userID, pollID, optionID uuid.UUID) (VoteResult, error) {
	res, err := s.limiter.AllowVote(ctx, userID.String())
	if err != nil {
		return VoteResult{}, fmt.Errorf("%w: %v", civic_errors.ErrServiceUnavailable, err)
	}
	if !res.Allowed {
		return VoteResult{}, civic_errors.New(civic_errors.ErrRateLimited, "too many votes, slow down")
	}

	p, err := s.polls.GetByID(ctx, pollID)
	if err != nil {
		return VoteResult{}, err
	}
	if !p.Public() {
		return VoteResult{}, civic_errors.New(civic_errors.ErrInvalidTransition, "poll is not open for voting")
	}

	opt, err := s.polls.GetOption(ctx, optionID)
	if errors.Is(err, civic_errors.ErrNotFound) || (err == nil && opt.PollID != pollID) {
		return VoteResult{}, civic_errors.Invalid("option does not belong to this poll")
	}
	if err != nil {
		return VoteResult{}, err
	}

	outcome, err := s.polls.CastVote(ctx, poll.Vote{
		ID:       uuid.New(),
		PollID:   pollID,
		UserID:   userID,
		OptionID: optionID,
	})
	if err != nil {
		return VoteResult{}, err
	}
	metrics.VotesCast.WithLabelValues(string(outcome)).Inc()

	switch outcome {
	case poll.VoteRecorded:
		s.events.Change(ctx, events.TableVotes, events.ChangeInsert, pollID)
		s.events.Change(ctx, events.TablePollOptions, events.ChangeUpdate, optionID)
	case poll.VoteUpdated:
		s.events.Change(ctx, events.TableVotes, events.ChangeUpdate, pollID)
		s.events.Change(ctx, events.TablePollOptions, events.ChangeUpdate, optionID)
	}

	view, err := s.Get(ctx, pollID, Viewer{UserID: userID})
	if err != nil {
		return VoteResult{}, err
	}
	return VoteResult{Outcome: outcome, Message: voteMessage(outcome), Poll: view}, nil
}

func voteMessage(outcome poll.VoteOutcome) string {
	switch outcome {
	case poll.VoteUpdated:
		return "Your vote has been updated"
	case poll.VoteUnchanged:
		return "You already voted for this option"
	default:
		return "Your vote has been recorded"
	}
}

// ListPending returns polls awaiting approval with their creators' names.
func (s *PollService) ListPending(ctx context.Context) ([]PendingPollView, error) {
	pending, err := s.polls.ListPending(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]PendingPollView, 0, len(pending))
	for _, pp := range pending {
		out = append(out, PendingPollView{PollView: toPollView(pp.Poll, nil), CreatorName: pp.CreatorName})
	}
	return out, nil
}

func (s *PollService) Approve(ctx context.Context, adminID, pollID uuid.UUID) error {
	err := s.polls.Approve(ctx, pollID, adminID)
	if err != nil {
		return pendingError(err)
	}
	metrics.PollDecisions.WithLabelValues("approved").Inc()
	s.notifyDecision(ctx, pollID, events.EventTypePollApproved)
	return nil
}

func (s *PollService) Reject(ctx context.Context, adminID, pollID uuid.UUID) error {
	err := s.polls.Reject(ctx, pollID)
	if err != nil {
		return pendingError(err)
	}
	metrics.PollDecisions.WithLabelValues("rejected").Inc()
	s.notifyDecision(ctx, pollID, events.EventTypePollRejected)
	return nil
}

// Withdraw lets the creator take down their own poll.
func (s *PollService) Withdraw(ctx context.Context, userID, pollID uuid.UUID) error {
	err := s.polls.Withdraw(ctx, pollID, userID)
	switch {
	case errors.Is(err, civic_errors.ErrInvalidTransition):
		return civic_errors.New(civic_errors.ErrInvalidTransition, "poll is already inactive")
	case errors.Is(err, civic_errors.ErrForbidden):
		return civic_errors.New(civic_errors.ErrForbidden, "only the creator can withdraw a poll")
	case err != nil:
		return err
	}
	s.events.Change(ctx, events.TablePolls, events.ChangeUpdate, pollID)
	return nil
}

func (s *PollService) notifyDecision(ctx context.Context, pollID uuid.UUID, eventType string) {
	s.events.Change(ctx, events.TablePolls, events.ChangeUpdate, pollID)
	p, err := s.polls.GetByID(ctx, pollID)
	if err != nil {
		return
	}
	s.events.User(ctx, p.UserID, eventType, map[string]string{
		"poll_id": p.ID.String(),
		"title":   p.Title,
	})
}

func pendingError(err error) error {
	if errors.Is(err, civic_errors.ErrInvalidTransition) {
		return civic_errors.New(civic_errors.ErrInvalidTransition, "poll is not pending approval")
	}
	return err
}

func toPollView(p poll.Poll, mine *uuid.UUID) PollView {
	view := PollView{
		ID:         p.ID,
		UserID:     p.UserID,
		Title:      p.Title,
		Category:   string(p.Category),
		IsActive:   p.IsActive,
		Approved:   p.Approved,
		CreatedAt:  p.CreatedAt,
		MyOptionID: mine,
	}
	if p.Description.Valid {
		view.Description = p.Description.String
	}

	options := append([]poll.Option(nil), p.Options...)
	sort.SliceStable(options, func(i, j int) bool {
		return options[i].OptionText < options[j].OptionText
	})
	for _, o := range options {
		view.TotalVotes += o.VotesCount
	}
	view.Options = make([]OptionView, 0, len(options))
	for _, o := range options {
		view.Options = append(view.Options, OptionView{
			ID:         o.ID,
			Text:       o.OptionText,
			VotesCount: o.VotesCount,
			Percentage: Percentage(o.VotesCount, view.TotalVotes),
		})
	}
	return view
}
