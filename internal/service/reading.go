// Package service contains the business logic layer.
//
// This file implements the reading flow: it drives a ReadingSession from
// question to result, runs the reveal, and performs the credit gate, AI
// call and history write once the last card is face up.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/DukeRupert/oraculo/internal/ai"
	"github.com/DukeRupert/oraculo/internal/domain"
	"github.com/DukeRupert/oraculo/internal/metrics"
	"github.com/DukeRupert/oraculo/internal/session"
	"github.com/google/uuid"
)

// DefaultRevealInterval is the pause between two card flips.
const DefaultRevealInterval = 600 * time.Millisecond

// Interpreter produces AI readings. *ai.Client implements it.
type Interpreter interface {
	RequestReading(ctx context.Context, req ai.ReadingRequest) domain.ReadingResult
	RequestInterpretation(ctx context.Context, req ai.InterpretationRequest) domain.Interpretation
}

// =============================================================================
// Interface Definition
// =============================================================================

// ReadingService runs interactive spread readings.
//
// Every method taking a session id also takes the caller's user id; a
// session owned by someone else is reported as not found.
type ReadingService interface {
	// Spreads returns the spread catalog.
	Spreads() []domain.SpreadDefinition

	// CreateSession starts a reading of spreadID with a shuffled deck.
	CreateSession(ctx context.Context, userID uuid.UUID, spreadID string) (domain.SessionView, error)

	// RestoreSession rebuilds a session from a client cached snapshot.
	// restored is false when the snapshot could not be used and a fresh
	// session was started instead.
	RestoreSession(ctx context.Context, userID uuid.UUID, snap domain.ResumeSnapshot) (view domain.SessionView, restored bool, err error)

	GetSession(ctx context.Context, id, userID uuid.UUID) (domain.SessionView, error)

	// SetQuestion stores the question and moves on to card selection.
	SetQuestion(ctx context.Context, id, userID uuid.UUID, question string) (domain.SessionView, error)

	// SelectCard picks the card at a deck slot. Picking a duplicate or a
	// card beyond the spread size is ignored.
	SelectCard(ctx context.Context, id, userID uuid.UUID, slot int) (domain.SessionView, error)

	// Reveal starts turning the selected cards. The gate and the AI call run
	// in the background after the last card; callers poll GetSession.
	Reveal(ctx context.Context, id, userID uuid.UUID) (domain.SessionView, error)

	// Retry repeats a failed or refused request. A paid attempt is not
	// charged again.
	Retry(ctx context.Context, id, userID uuid.UUID) (domain.SessionView, error)

	// NewReading resets the session to the question phase. Outstanding work
	// for the previous reading is discarded when it completes.
	NewReading(ctx context.Context, id, userID uuid.UUID) (domain.SessionView, error)

	// EndSession discards the session.
	EndSession(ctx context.Context, id, userID uuid.UUID)

	// Close waits for in-flight interpretations until ctx is done, then
	// cancels whatever is still running and waits for it to stop.
	Close(ctx context.Context)
}

// ReadingServiceConfig configures a ReadingService.
type ReadingServiceConfig struct {
	RevealInterval time.Duration // zero uses DefaultRevealInterval; negative reveals at once
	RNG            domain.RNG
}

// =============================================================================
// Implementation
// =============================================================================

type readingService struct {
	store    *session.Store
	gate     CreditGate
	ai       Interpreter
	history  HistoryRecorder
	profiles ProfileService
	logger   *slog.Logger

	revealInterval time.Duration
	rng            domain.RNG
	now            func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewReadingService creates a new ReadingService.
func NewReadingService(
	store *session.Store,
	gate CreditGate,
	interpreter Interpreter,
	history HistoryRecorder,
	profiles ProfileService,
	cfg ReadingServiceConfig,
	logger *slog.Logger,
) ReadingService {
	if cfg.RevealInterval == 0 {
		cfg.RevealInterval = DefaultRevealInterval
	}
	if cfg.RNG == nil {
		cfg.RNG = domain.DefaultRNG()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &readingService{
		store:          store,
		gate:           gate,
		ai:             interpreter,
		history:        history,
		profiles:       profiles,
		logger:         logger,
		revealInterval: cfg.RevealInterval,
		rng:            cfg.RNG,
		now:            time.Now,
		ctx:            ctx,
		cancel:         cancel,
	}
}

func (s *readingService) Spreads() []domain.SpreadDefinition {
	return domain.Spreads()
}

func (s *readingService) CreateSession(ctx context.Context, userID uuid.UUID, spreadID string) (domain.SessionView, error) {
	const op = "reading.create_session"

	spread, ok := domain.SpreadByID(spreadID)
	if !ok {
		return domain.SessionView{}, domain.Invalid(op, "unknown spread")
	}

	rs := domain.NewReadingSession(userID, spread, s.rng, s.now())
	view := rs.View()
	s.store.Add(rs)

	s.logger.Info("reading session created", "session_id", rs.ID, "user_id", userID, "spread", spread.ID)
	return view, nil
}

func (s *readingService) RestoreSession(ctx context.Context, userID uuid.UUID, snap domain.ResumeSnapshot) (domain.SessionView, bool, error) {
	rs, restored, err := domain.RestoreSession(userID, snap, s.rng, s.now())
	if err != nil {
		return domain.SessionView{}, false, err
	}
	view := rs.View()
	s.store.Add(rs)

	s.logger.Info("reading session restored",
		"session_id", rs.ID,
		"user_id", userID,
		"spread", snap.SpreadID,
		"restored", restored,
	)
	return view, restored, nil
}

func (s *readingService) GetSession(ctx context.Context, id, userID uuid.UUID) (domain.SessionView, error) {
	return s.store.View(id, userID)
}

func (s *readingService) SetQuestion(ctx context.Context, id, userID uuid.UUID, question string) (domain.SessionView, error) {
	return s.update(id, userID, func(rs *domain.ReadingSession) error {
		if err := rs.SetQuestion(question); err != nil {
			return err
		}
		return rs.BeginSelection()
	})
}

func (s *readingService) SelectCard(ctx context.Context, id, userID uuid.UUID, slot int) (domain.SessionView, error) {
	return s.update(id, userID, func(rs *domain.ReadingSession) error {
		_, err := rs.SelectCard(slot)
		return err
	})
}

func (s *readingService) Reveal(ctx context.Context, id, userID uuid.UUID) (domain.SessionView, error) {
	var gen int
	view, err := s.update(id, userID, func(rs *domain.ReadingSession) error {
		if err := rs.BeginReveal(); err != nil {
			return err
		}
		gen = rs.Generation
		return nil
	})
	if err != nil {
		return view, err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runReveal(id, userID, gen)
	}()
	return view, nil
}

func (s *readingService) Retry(ctx context.Context, id, userID uuid.UUID) (domain.SessionView, error) {
	const op = "reading.retry"

	var req pendingRequest
	view, err := s.update(id, userID, func(rs *domain.ReadingSession) error {
		if !rs.CanRetry() {
			return domain.Conflict(op, "there is nothing to retry")
		}
		gen, err := rs.StartRequest()
		if err != nil {
			return err
		}
		req = pendingFrom(rs, gen)
		return nil
	})
	if err != nil {
		return view, err
	}

	s.logger.Info("reading retried", "session_id", id, "user_id", userID, "paid", req.paid)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.fulfil(id, userID, req)
	}()
	return view, nil
}

func (s *readingService) NewReading(ctx context.Context, id, userID uuid.UUID) (domain.SessionView, error) {
	return s.update(id, userID, func(rs *domain.ReadingSession) error {
		rs.Reset(s.rng, s.now())
		return nil
	})
}

func (s *readingService) EndSession(ctx context.Context, id, userID uuid.UUID) {
	s.store.Delete(id, userID)
}

func (s *readingService) Close(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("interpretations still running at shutdown, cancelling")
		s.cancel()
		<-done
	}
	s.cancel()
}

// update applies fn and returns the resulting view.
func (s *readingService) update(id, userID uuid.UUID, fn func(*domain.ReadingSession) error) (domain.SessionView, error) {
	var view domain.SessionView
	err := s.store.Update(id, userID, func(rs *domain.ReadingSession) error {
		if err := fn(rs); err != nil {
			return err
		}
		view = rs.View()
		return nil
	})
	return view, err
}

// =============================================================================
// Background work
// =============================================================================

// pendingRequest is a copy of what the gate and AI call need, taken while
// the session lock is held.
type pendingRequest struct {
	gen      int
	paid     bool
	spread   domain.SpreadDefinition
	question string
	cards    []domain.Card
}

func pendingFrom(rs *domain.ReadingSession, gen int) pendingRequest {
	cards := make([]domain.Card, len(rs.Selected))
	copy(cards, rs.Selected)
	return pendingRequest{
		gen:      gen,
		paid:     rs.Paid,
		spread:   rs.Spread,
		question: rs.Question,
		cards:    cards,
	}
}

// runReveal flips one card per tick. The flip of the last card starts the
// request in the same critical section, so it happens exactly once.
func (s *readingService) runReveal(id, userID uuid.UUID, gen int) {
	var tick <-chan time.Time
	if s.revealInterval > 0 {
		ticker := time.NewTicker(s.revealInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		if tick != nil {
			select {
			case <-s.ctx.Done():
				return
			case <-tick:
			}
		} else if s.ctx.Err() != nil {
			return
		}

		var (
			stop    bool
			started bool
			req     pendingRequest
		)
		err := s.store.Update(id, userID, func(rs *domain.ReadingSession) error {
			if rs.Generation != gen || rs.Phase != domain.PhaseRevealing {
				stop = true
				return nil
			}
			if !rs.AdvanceReveal() {
				stop = rs.RevealComplete()
				return nil
			}
			g, err := rs.StartRequest()
			if err != nil {
				return err
			}
			req = pendingFrom(rs, g)
			started = true
			return nil
		})
		if err != nil {
			s.logger.Debug("reveal stopped", "session_id", id, "error", err)
			return
		}
		if started {
			s.fulfil(id, userID, req)
			return
		}
		if stop {
			return
		}
	}
}

// fulfil runs the credit gate, the AI call and the history write for one
// request, applying each outcome to the session if it is still current.
func (s *readingService) fulfil(id, userID uuid.UUID, req pendingRequest) {
	ctx := s.ctx
	tag := req.spread.PromptTag
	logger := s.logger.With("session_id", id, "user_id", userID, "spread", req.spread.ID)

	if !req.paid {
		res := s.gate.TryConsumeCredit(ctx, userID)
		if !res.Allowed {
			metrics.RecordReading(tag, "denied")
			s.apply(id, userID, func(rs *domain.ReadingSession) bool {
				return rs.ApplyDenial(req.gen, res.Reason)
			})
			logger.Info("reading refused by credit gate", "reason", res.Reason)
			return
		}
		current := s.apply(id, userID, func(rs *domain.ReadingSession) bool {
			return rs.MarkPaid(req.gen)
		})
		if !current {
			logger.Info("reading reset after the credit was taken")
			return
		}
	}

	result := s.ai.RequestReading(ctx, ai.ReadingRequest{
		Spread:    req.spread,
		Question:  req.question,
		Cards:     req.cards,
		Consulter: consulterFor(ctx, s.profiles, userID),
	})

	applied := s.apply(id, userID, func(rs *domain.ReadingSession) bool {
		return rs.ApplyResult(req.gen, result)
	})
	if !applied {
		logger.Info("stale reading result dropped")
		return
	}
	if result.Fallback {
		metrics.RecordReading(tag, "fallback")
		logger.Warn("reading fell back to the default text")
		return
	}
	metrics.RecordReading(tag, "success")

	ids := make([]int, len(req.cards))
	for i, c := range req.cards {
		ids[i] = c.ID
	}
	recordID, ok := s.history.RecordReading(ctx, RecordParams{
		UserID:      userID,
		ReadingType: tag,
		Input: domain.ReadingInput{
			SpreadID:   req.spread.ID,
			SpreadName: req.spread.Title,
			Question:   req.question,
			CardIDs:    ids,
		},
		Output: result,
	})
	if ok {
		s.apply(id, userID, func(rs *domain.ReadingSession) bool {
			rs.SetRecord(req.gen, recordID)
			return true
		})
	}
}

// apply runs fn on the session and reports its result. A session that has
// been deleted reports false.
func (s *readingService) apply(id, userID uuid.UUID, fn func(*domain.ReadingSession) bool) bool {
	var ok bool
	err := s.store.Update(id, userID, func(rs *domain.ReadingSession) error {
		ok = fn(rs)
		return nil
	})
	return err == nil && ok
}
