// Package service contains the business logic layer.
//
// This file implements the credit gate consulted before every paid reading.
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

// =============================================================================
// Interface Definition
// =============================================================================

// CreditGate decides whether a user may start a paid reading, deducting one
// credit when needed. There is no refund: a credit taken here stays taken
// even if the reading fails afterwards.
type CreditGate interface {
	TryConsumeCredit(ctx context.Context, userID uuid.UUID) domain.CreditResult
}

// =============================================================================
// Implementation
// =============================================================================

type creditGate struct {
	queries *repository.Queries
	logger  *slog.Logger
	now     func() time.Time
}

// NewCreditGate creates a new CreditGate.
func NewCreditGate(queries *repository.Queries, logger *slog.Logger) CreditGate {
	return &creditGate{
		queries: queries,
		logger:  logger,
		now:     time.Now,
	}
}

// TryConsumeCredit applies the gate rules to the user's current profile.
//
// The decrement is a single conditional UPDATE, so two concurrent calls on a
// balance of one allow exactly one reading.
func (g *creditGate) TryConsumeCredit(ctx context.Context, userID uuid.UUID) domain.CreditResult {
	row, err := g.queries.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return g.deny(userID, domain.DenyProfileNotFound, nil)
		}
		return g.deny(userID, domain.DenyPersistenceError, err)
	}
	profile := toDomainProfile(row)

	action := domain.DecideCredit(profile, g.now())
	switch action {
	case domain.CreditBypassAdmin, domain.CreditBypassVIP:
		metrics.RecordGateDecision(action.String())
		return domain.AllowCredit(false, profile.Credits)
	case domain.CreditDeny:
		return g.deny(userID, domain.DenyNoCredits, nil)
	}

	remaining, err := g.queries.DecrementUserCredits(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// The balance was spent by a concurrent reading.
			return g.deny(userID, domain.DenyNoCredits, nil)
		}
		return g.deny(userID, domain.DenyPersistenceError, err)
	}

	metrics.RecordGateDecision(action.String())
	g.logger.Info("credit consumed", "user_id", userID, "remaining", remaining)
	return domain.AllowCredit(true, int(remaining))
}

func (g *creditGate) deny(userID uuid.UUID, reason domain.DenyReason, err error) domain.CreditResult {
	metrics.RecordGateDecision(string(reason))
	if err != nil {
		g.logger.Error("credit gate failed", "user_id", userID, "reason", reason, "error", err)
	} else {
		g.logger.Info("credit gate denied", "user_id", userID, "reason", reason)
	}
	return domain.DenyCredit(reason)
}
