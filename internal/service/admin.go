// Package service contains the business logic layer.
//
// This file implements the back-office operations available to admins.
package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/DukeRupert/oraculo/internal/domain"
	"github.com/DukeRupert/oraculo/internal/metrics"
	"github.com/DukeRupert/oraculo/internal/repository"
	"github.com/google/uuid"
)

// MaxCreditGrant caps a single manual grant.
const MaxCreditGrant = 1000

// Stats is the admin dashboard summary.
type Stats struct {
	Users             int64 `json:"users"`
	ActiveSubscribers int64 `json:"active_subscribers"`
	ReadingsToday     int64 `json:"readings_today"`
	LiveSessions      int   `json:"live_sessions"`
}

// ProfileList is a page of profiles.
type ProfileList struct {
	Profiles []domain.Profile `json:"profiles"`
	Total    int64            `json:"total"`
	Limit    int32            `json:"limit"`
	Offset   int32            `json:"offset"`
}

// AdminService defines back-office operations. Callers must check that the
// acting user is an admin.
type AdminService interface {
	Stats(ctx context.Context) (*Stats, error)
	ListProfiles(ctx context.Context, limit, offset int32) (*ProfileList, error)

	// GrantCredits adds delta credits to a profile and returns the new balance.
	GrantCredits(ctx context.Context, userID uuid.UUID, delta int) (int, error)

	SetSubscription(ctx context.Context, userID uuid.UUID, change SubscriptionChange) error
}

// SessionCounter reports the number of live reading sessions.
type SessionCounter interface {
	Len() int
}

type adminService struct {
	queries  *repository.Queries
	sessions SessionCounter
	logger   *slog.Logger
	location *time.Location
	now      func() time.Time
}

// NewAdminService creates a new AdminService. "Today" is counted in loc.
func NewAdminService(queries *repository.Queries, sessions SessionCounter, loc *time.Location, logger *slog.Logger) AdminService {
	if loc == nil {
		loc = time.UTC
	}
	return &adminService{
		queries:  queries,
		sessions: sessions,
		logger:   logger,
		location: loc,
		now:      time.Now,
	}
}

func (s *adminService) Stats(ctx context.Context) (*Stats, error) {
	const op = "admin.stats"

	users, err := s.queries.CountUsers(ctx)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to count users")
	}
	subscribers, err := s.queries.CountActiveSubscribers(ctx)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to count subscribers")
	}
	today, err := s.queries.CountReadingsSince(ctx, domain.CalendarDate(s.now(), s.location))
	if err != nil {
		return nil, domain.Internal(err, op, "failed to count readings")
	}

	stats := &Stats{
		Users:             users,
		ActiveSubscribers: subscribers,
		ReadingsToday:     today,
	}
	if s.sessions != nil {
		stats.LiveSessions = s.sessions.Len()
	}
	return stats, nil
}

func (s *adminService) ListProfiles(ctx context.Context, limit, offset int32) (*ProfileList, error) {
	const op = "admin.list_profiles"

	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.queries.ListUsers(ctx, repository.ListUsersParams{Limit: limit, Offset: offset})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list profiles")
	}
	total, err := s.queries.CountUsers(ctx)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to count profiles")
	}

	profiles := make([]domain.Profile, len(rows))
	for i, row := range rows {
		profiles[i] = toDomainProfile(row)
	}
	return &ProfileList{Profiles: profiles, Total: total, Limit: limit, Offset: offset}, nil
}

func (s *adminService) GrantCredits(ctx context.Context, userID uuid.UUID, delta int) (int, error) {
	const op = "admin.grant_credits"

	if delta <= 0 || delta > MaxCreditGrant {
		return 0, domain.Errorf(domain.EINVALID, op, "credits must be between 1 and %d", MaxCreditGrant)
	}

	balance, err := s.queries.AddUserCredits(ctx, repository.AddUserCreditsParams{
		ID:      userID,
		Credits: int32(delta),
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.NotFound(op, "profile", userID.String())
		}
		return 0, domain.Internal(err, op, "failed to grant credits")
	}

	metrics.RecordCreditsGranted("admin", delta)
	s.logger.Info("credits granted", "user_id", userID, "credits", delta, "balance", balance)
	return int(balance), nil
}

func (s *adminService) SetSubscription(ctx context.Context, userID uuid.UUID, change SubscriptionChange) error {
	return setSubscription(ctx, s.queries, s.logger, "admin.set_subscription", userID, change)
}
