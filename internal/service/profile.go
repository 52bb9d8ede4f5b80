// Package service contains the business logic layer.
//
// This file implements the profile service: reading and updating the
// per-user record that holds the credit balance and subscription state.
package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/DukeRupert/oraculo/internal/ai"
	"github.com/DukeRupert/oraculo/internal/domain"
	"github.com/DukeRupert/oraculo/internal/repository"
	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// ProfileService defines operations on user profiles.
type ProfileService interface {
	// GetProfile returns the profile for userID, or a not found error.
	GetProfile(ctx context.Context, userID uuid.UUID) (*domain.Profile, error)

	// UpdateProfile changes the name and birth date used in readings.
	UpdateProfile(ctx context.Context, params domain.UpdateProfileParams) (*domain.Profile, error)
}

// =============================================================================
// Implementation
// =============================================================================

type profileService struct {
	queries *repository.Queries
	logger  *slog.Logger
}

// NewProfileService creates a new ProfileService.
func NewProfileService(queries *repository.Queries, logger *slog.Logger) ProfileService {
	return &profileService{
		queries: queries,
		logger:  logger,
	}
}

// GetProfile returns the profile for userID.
func (s *profileService) GetProfile(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	const op = "profile.get"

	row, err := s.queries.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "profile", userID.String())
		}
		s.logger.Error("failed to load profile", "user_id", userID, "error", err)
		return nil, domain.Internal(err, op, "failed to load profile")
	}

	p := toDomainProfile(row)
	return &p, nil
}

// UpdateProfile changes the user editable fields of a profile.
func (s *profileService) UpdateProfile(ctx context.Context, params domain.UpdateProfileParams) (*domain.Profile, error) {
	const op = "profile.update"

	if err := params.Validate(); err != nil {
		return nil, err
	}

	row, err := s.queries.UpdateUserProfile(ctx, repository.UpdateUserProfileParams{
		ID:        params.UserID,
		Name:      params.Name,
		BirthDate: params.BirthDate,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "profile", params.UserID.String())
		}
		s.logger.Error("failed to update profile", "user_id", params.UserID, "error", err)
		return nil, domain.Internal(err, op, "failed to update profile")
	}

	p := toDomainProfile(row)
	return &p, nil
}

// =============================================================================
// Helpers
// =============================================================================

func toDomainProfile(u repository.User) domain.Profile {
	p := domain.Profile{
		ID:                 u.ID,
		Email:              u.Email,
		Name:               u.Name,
		BirthDate:          u.BirthDate,
		Credits:            int(u.Credits),
		SubscriptionStatus: domain.SubscriptionStatus(u.SubscriptionStatus),
		StripeCustomerID:   u.StripeCustomerID.String,
		CreatedAt:          u.CreatedAt,
		UpdatedAt:          u.UpdatedAt,
	}
	if u.SubscriptionEndDate.Valid {
		end := u.SubscriptionEndDate.Time
		p.SubscriptionEndDate = &end
	}
	return p
}

// consulterFor loads the name and birth date used to personalise prompts.
// A missing profile yields an anonymous consulter.
func consulterFor(ctx context.Context, profiles ProfileService, userID uuid.UUID) ai.Consulter {
	p, err := profiles.GetProfile(ctx, userID)
	if err != nil {
		return ai.Consulter{}
	}
	return ai.Consulter{Name: p.Name, BirthDate: p.BirthDate}
}
