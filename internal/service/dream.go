// Package service contains the business logic layer.
//
// This file implements dream interpretation. A dream costs one credit, the
// same as a spread reading. When the AI falls back, the answer carries a
// retry id that asks again without passing the gate.
package service

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/DukeRupert/oraculo/internal/ai"
	"github.com/DukeRupert/oraculo/internal/domain"
	"github.com/DukeRupert/oraculo/internal/metrics"
	"github.com/google/uuid"
)

const (
	// MaxDreamLength is the longest dream description accepted, in characters.
	MaxDreamLength = 2000

	// DreamRetryTTL is how long a fallback answer can be retried for free.
	DreamRetryTTL = 30 * time.Minute

	// MaxDreamRetries caps the free retries of one paid dream.
	MaxDreamRetries = 3
)

// DreamResult is an interpreted dream.
type DreamResult struct {
	domain.Interpretation
	Credit   domain.CreditResult `json:"credit"`
	RecordID *uuid.UUID          `json:"record_id,omitempty"`
	RetryID  *uuid.UUID          `json:"retry_id,omitempty"` // set on fallback
}

// DreamService interprets dreams.
type DreamService interface {
	Interpret(ctx context.Context, userID uuid.UUID, dream string) (*DreamResult, error)

	// Retry asks again for a dream whose answer fell back. It does not
	// spend a credit.
	Retry(ctx context.Context, userID, retryID uuid.UUID) (*DreamResult, error)
}

type pendingDream struct {
	userID   uuid.UUID
	dream    string
	expires  time.Time
	attempts int
}

type dreamService struct {
	gate     CreditGate
	ai       Interpreter
	history  HistoryRecorder
	profiles ProfileService
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	pending map[uuid.UUID]*pendingDream
}

// NewDreamService creates a new DreamService.
func NewDreamService(gate CreditGate, interpreter Interpreter, history HistoryRecorder, profiles ProfileService, logger *slog.Logger) DreamService {
	return &dreamService{
		gate:     gate,
		ai:       interpreter,
		history:  history,
		profiles: profiles,
		logger:   logger,
		now:      time.Now,
		pending:  make(map[uuid.UUID]*pendingDream),
	}
}

// Interpret validates the dream, passes the credit gate and asks the AI for
// an interpretation. A fallback answer is returned but not recorded; its
// credit is not refunded, and Retry with its RetryID asks again for free.
func (s *dreamService) Interpret(ctx context.Context, userID uuid.UUID, dream string) (*DreamResult, error) {
	const op = "dream.interpret"

	dream = strings.TrimSpace(dream)
	if dream == "" {
		return nil, domain.Invalid(op, "describe your dream")
	}
	if utf8.RuneCountInString(dream) > MaxDreamLength {
		return nil, domain.Invalid(op, "the dream description is too long")
	}

	credit := s.gate.TryConsumeCredit(ctx, userID)
	if !credit.Allowed {
		metrics.RecordReading(domain.ReadingTypeDream, "denied")
		return nil, credit.Err(op)
	}

	result := s.interpret(ctx, userID, dream, credit)
	if result.Fallback {
		id := s.holdRetry(userID, dream)
		result.RetryID = &id
	}
	return result, nil
}

func (s *dreamService) Retry(ctx context.Context, userID, retryID uuid.UUID) (*DreamResult, error) {
	const op = "dream.retry"

	s.mu.Lock()
	p, ok := s.pending[retryID]
	if !ok || p.userID != userID || !s.now().Before(p.expires) {
		s.mu.Unlock()
		return nil, domain.NotFound(op, "dream retry", retryID.String())
	}
	// Taken out while the AI runs so a double submit cannot ask twice.
	delete(s.pending, retryID)
	s.mu.Unlock()

	result := s.interpret(ctx, userID, p.dream, domain.CreditResult{Allowed: true})
	if result.Fallback {
		p.attempts++
		if p.attempts < MaxDreamRetries {
			s.mu.Lock()
			s.pending[retryID] = p
			s.mu.Unlock()
			result.RetryID = &retryID
		}
	}
	s.logger.Info("dream retried", "user_id", userID, "attempt", p.attempts, "fallback", result.Fallback)
	return result, nil
}

// interpret asks the AI and records a successful answer.
func (s *dreamService) interpret(ctx context.Context, userID uuid.UUID, dream string, credit domain.CreditResult) *DreamResult {
	interp := s.ai.RequestInterpretation(ctx, ai.InterpretationRequest{
		Kind:      ai.KindDream,
		Text:      dream,
		Consulter: consulterFor(ctx, s.profiles, userID),
	})

	result := &DreamResult{Interpretation: interp, Credit: credit}
	if interp.Fallback {
		metrics.RecordReading(domain.ReadingTypeDream, "fallback")
		s.logger.Warn("dream interpretation fell back to the default text", "user_id", userID)
		return result
	}
	metrics.RecordReading(domain.ReadingTypeDream, "success")

	id, ok := s.history.RecordReading(ctx, RecordParams{
		UserID:      userID,
		ReadingType: domain.ReadingTypeDream,
		Input:       domain.ReadingInput{Dream: dream},
		Output:      interp,
	})
	if ok {
		result.RecordID = &id
	}
	return result
}

// holdRetry keeps a fallback dream for Retry and drops expired ones.
func (s *dreamService) holdRetry(userID uuid.UUID, dream string) uuid.UUID {
	now := s.now()
	id := uuid.New()

	s.mu.Lock()
	defer s.mu.Unlock()
	for k, p := range s.pending {
		if !now.Before(p.expires) {
			delete(s.pending, k)
		}
	}
	s.pending[id] = &pendingDream{userID: userID, dream: dream, expires: now.Add(DreamRetryTTL)}
	return id
}
