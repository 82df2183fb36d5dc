package services

import (
	"context"

	"civic-polls/internal/domain/profile"
	"civic-polls/internal/repository"
	"civic-polls/pkg/logger"

	"go.uber.org/zap"
)

const analyticsTopN = 10

type StatsService struct {
	profiles    repository.ProfileRepository
	polls       repository.PollRepository
	subscribers repository.SubscriberRepository
	cache       StatsCache
	log         *logger.Logger
}

func NewStatsService(
	profiles repository.ProfileRepository,
	polls repository.PollRepository,
	subscribers repository.SubscriberRepository,
	cache StatsCache,
	log *logger.Logger,
) *StatsService {
	return &StatsService{profiles: profiles, polls: polls, subscribers: subscribers, cache: cache, log: log}
}

type PublicStats struct {
	TotalSupporters    int64 `json:"total_supporters"`
	VerifiedSupporters int64 `json:"verified_supporters"`
}

type Dashboard struct {
	PendingVerifications int64 `json:"pending_verifications"`
	PendingPolls         int64 `json:"pending_polls"`
	TotalUsers           int64 `json:"total_users"`
	VerifiedUsers        int64 `json:"verified_users"`
	Subscribers          int64 `json:"subscribers"`
}

type Analytics struct {
	Locations   []profile.Bucket `json:"locations"`
	Occupations []profile.Bucket `json:"occupations"`
}

// Public returns the supporter counters shown on the landing page. They are
// cached briefly since every visitor asks for them.
func (s *StatsService) Public(ctx context.Context) (PublicStats, error) {
	var stats PublicStats
	if s.cache != nil {
		hit, err := s.cache.GetStats(ctx, "public", &stats)
		if err != nil {
			s.log.Ctx(ctx).Warn("stats cache read failed", zap.Error(err))
		} else if hit {
			return stats, nil
		}
	}

	total, err := s.profiles.Count(ctx)
	if err != nil {
		return PublicStats{}, err
	}
	verified, err := s.profiles.CountByStatus(ctx, profile.StatusVerified)
	if err != nil {
		return PublicStats{}, err
	}
	stats = PublicStats{TotalSupporters: total, VerifiedSupporters: verified}

	if s.cache != nil {
		if err := s.cache.SetStats(ctx, "public", stats); err != nil {
			s.log.Ctx(ctx).Warn("stats cache write failed", zap.Error(err))
		}
	}
	return stats, nil
}

func (s *StatsService) Dashboard(ctx context.Context) (Dashboard, error) {
	var d Dashboard
	var err error
	if d.PendingVerifications, err = s.profiles.CountByStatus(ctx, profile.StatusPending); err != nil {
		return Dashboard{}, err
	}
	if d.PendingPolls, err = s.polls.CountPending(ctx); err != nil {
		return Dashboard{}, err
	}
	if d.TotalUsers, err = s.profiles.Count(ctx); err != nil {
		return Dashboard{}, err
	}
	if d.VerifiedUsers, err = s.profiles.CountByStatus(ctx, profile.StatusVerified); err != nil {
		return Dashboard{}, err
	}
	if d.Subscribers, err = s.subscribers.Count(ctx); err != nil {
		return Dashboard{}, err
	}
	return d, nil
}

// Analytics returns the ten most common locations and occupations.
func (s *StatsService) Analytics(ctx context.Context) (Analytics, error) {
	locations, err := s.profiles.TopLocations(ctx, analyticsTopN)
	if err != nil {
		return Analytics{}, err
	}
	occupations, err := s.profiles.TopOccupations(ctx, analyticsTopN)
	if err != nil {
		return Analytics{}, err
	}
	if locations == nil {
		locations = []profile.Bucket{}
	}
	if occupations == nil {
		occupations = []profile.Bucket{}
	}
	return Analytics{Locations: locations, Occupations: occupations}, nil
}
