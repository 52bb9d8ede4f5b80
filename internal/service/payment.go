// Package service contains the business logic layer.
//
// This file implements the payment side of the credit system: applying
// credit purchases and subscription changes reported by Stripe.
package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/DukeRupert/oraculo/internal/domain"
	"github.com/DukeRupert/oraculo/internal/metrics"
	"github.com/DukeRupert/oraculo/internal/repository"
	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

// CreditPurchase is a completed one-off payment.
type CreditPurchase struct {
	EventID     string // Stripe event id, the idempotency key
	UserID      uuid.UUID
	CustomerID  string
	AmountCents int64
	Currency    string
	Payload     json.RawMessage
}

// SubscriptionChange sets the subscription state of a user.
type SubscriptionChange struct {
	Status  domain.SubscriptionStatus
	EndDate *time.Time // nil clears the end date
}

// PaymentService applies payment events to profiles.
type PaymentService interface {
	// ApplyCreditPurchase credits the user according to the amount bands.
	// A repeated event grants nothing and is not an error.
	ApplyCreditPurchase(ctx context.Context, p CreditPurchase) (granted int, err error)

	// LinkCustomer stores the Stripe customer id on the profile.
	LinkCustomer(ctx context.Context, userID uuid.UUID, customerID string) error

	// SetSubscription updates the subscription of a user. Admin profiles
	// are left untouched.
	SetSubscription(ctx context.Context, userID uuid.UUID, change SubscriptionChange) error

	// SetSubscriptionByCustomer updates the subscription of the user linked
	// to a Stripe customer.
	SetSubscriptionByCustomer(ctx context.Context, customerID string, change SubscriptionChange) error
}

type paymentService struct {
	db      *sql.DB
	queries *repository.Queries
	logger  *slog.Logger
}

// NewPaymentService creates a new PaymentService. db is used for the
// transaction that records an event and grants its credits together.
func NewPaymentService(db *sql.DB, queries *repository.Queries, logger *slog.Logger) PaymentService {
	return &paymentService{
		db:      db,
		queries: queries,
		logger:  logger,
	}
}

func (s *paymentService) ApplyCreditPurchase(ctx context.Context, p CreditPurchase) (int, error) {
	const op = "payment.apply_credit_purchase"

	if p.EventID == "" {
		return 0, domain.Invalid(op, "event id is required")
	}
	credits := domain.CreditsForAmount(p.AmountCents)
	if credits == 0 {
		s.logger.Warn("payment below the smallest credit pack ignored",
			"event_id", p.EventID,
			"user_id", p.UserID,
			"amount_cents", p.AmountCents,
		)
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, domain.Internal(fmt.Errorf("begin transaction: %w", err), op, "failed to apply payment")
	}
	defer tx.Rollback()

	qtx := s.queries.WithTx(tx)

	_, err = qtx.CreatePaymentEvent(ctx, repository.CreatePaymentEventParams{
		StripeEventID:  p.EventID,
		UserID:         p.UserID,
		AmountCents:    p.AmountCents,
		Currency:       p.Currency,
		CreditsGranted: int32(credits),
		Payload:        pqtype.NullRawMessage{RawMessage: p.Payload, Valid: len(p.Payload) > 0},
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Info("payment event already applied", "event_id", p.EventID)
			return 0, nil
		}
		return 0, domain.Internal(err, op, "failed to record payment")
	}

	balance, err := qtx.AddUserCredits(ctx, repository.AddUserCreditsParams{
		ID:      p.UserID,
		Credits: int32(credits),
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.NotFound(op, "profile", p.UserID.String())
		}
		return 0, domain.Internal(err, op, "failed to add credits")
	}

	if p.CustomerID != "" {
		if err := qtx.UpdateUserStripeCustomerID(ctx, repository.UpdateUserStripeCustomerIDParams{
			ID:               p.UserID,
			StripeCustomerID: sql.NullString{String: p.CustomerID, Valid: true},
		}); err != nil {
			return 0, domain.Internal(err, op, "failed to link customer")
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, domain.Internal(fmt.Errorf("commit: %w", err), op, "failed to apply payment")
	}

	metrics.RecordCreditsGranted("purchase", credits)
	s.logger.Info("credits purchased",
		"event_id", p.EventID,
		"user_id", p.UserID,
		"credits", credits,
		"balance", balance,
	)
	return credits, nil
}

func (s *paymentService) LinkCustomer(ctx context.Context, userID uuid.UUID, customerID string) error {
	const op = "payment.link_customer"

	err := s.queries.UpdateUserStripeCustomerID(ctx, repository.UpdateUserStripeCustomerIDParams{
		ID:               userID,
		StripeCustomerID: sql.NullString{String: customerID, Valid: customerID != ""},
	})
	if err != nil {
		if repository.IsUniqueViolation(err) {
			return domain.Conflict(op, "customer is linked to another profile")
		}
		return domain.Internal(err, op, "failed to link customer")
	}
	return nil
}

func (s *paymentService) SetSubscription(ctx context.Context, userID uuid.UUID, change SubscriptionChange) error {
	const op = "payment.set_subscription"

	row, err := s.queries.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NotFound(op, "profile", userID.String())
		}
		return domain.Internal(err, op, "failed to load profile")
	}
	return s.applySubscription(ctx, op, row, change)
}

func (s *paymentService) SetSubscriptionByCustomer(ctx context.Context, customerID string, change SubscriptionChange) error {
	const op = "payment.set_subscription_by_customer"

	row, err := s.queries.GetUserByStripeCustomerID(ctx, sql.NullString{String: customerID, Valid: true})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NotFound(op, "customer", customerID)
		}
		return domain.Internal(err, op, "failed to find customer")
	}
	return s.applySubscription(ctx, op, row, change)
}

// applySubscription is the write path for Stripe events. Admin profiles are
// never changed by payments; the admin API writes through setSubscription.
func (s *paymentService) applySubscription(ctx context.Context, op string, row repository.User, change SubscriptionChange) error {
	if domain.SubscriptionStatus(row.SubscriptionStatus) == domain.SubscriptionAdmin {
		s.logger.Info("subscription event ignored for admin", "user_id", row.ID, "status", change.Status)
		return nil
	}
	return setSubscription(ctx, s.queries, s.logger, op, row.ID, change)
}

// setSubscription is shared by payments and the admin API.
func setSubscription(ctx context.Context, queries *repository.Queries, logger *slog.Logger, op string, userID uuid.UUID, change SubscriptionChange) error {
	status, err := domain.ParseSubscriptionStatus(string(change.Status))
	if err != nil {
		return err
	}

	end := sql.NullTime{}
	if change.EndDate != nil {
		end = sql.NullTime{Time: *change.EndDate, Valid: true}
	}

	n, err := queries.UpdateUserSubscription(ctx, repository.UpdateUserSubscriptionParams{
		ID:                  userID,
		SubscriptionStatus:  status.String(),
		SubscriptionEndDate: end,
	})
	if err != nil {
		return domain.Internal(err, op, "failed to update subscription")
	}
	if n == 0 {
		return domain.NotFound(op, "profile", userID.String())
	}

	logger.Info("subscription updated",
		"user_id", userID,
		"status", status,
		"end_date", end.Time,
	)
	return nil
}
