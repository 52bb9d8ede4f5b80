// Package service contains the business logic layer.
//
// This file implements the free daily card: one draw per user per calendar
// day, repeated draws returning the stored card.
package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/DukeRupert/oraculo/internal/ai"
	"github.com/DukeRupert/oraculo/internal/domain"
	"github.com/DukeRupert/oraculo/internal/metrics"
	"github.com/DukeRupert/oraculo/internal/repository"
	"github.com/google/uuid"
)

// DailyDraw is the card of the day and its interpretation.
type DailyDraw struct {
	Card           domain.Card           `json:"card"`
	Interpretation domain.Interpretation `json:"interpretation"`
	ReadingDate    time.Time             `json:"reading_date"`
	AlreadyDrawn   bool                  `json:"already_drawn"`
	RecordID       *uuid.UUID            `json:"record_id,omitempty"`
}

// dailyOutput is what a daily record stores in output_data.
type dailyOutput struct {
	Card           domain.Card `json:"card"`
	Interpretation string      `json:"interpretation"`
}

// DailyService hands out the free daily card. It never touches credits.
type DailyService interface {
	Draw(ctx context.Context, userID uuid.UUID) (*DailyDraw, error)
}

type dailyService struct {
	queries  *repository.Queries
	ai       Interpreter
	profiles ProfileService
	logger   *slog.Logger
	location *time.Location
	rng      domain.RNG
	now      func() time.Time
}

// NewDailyService creates a new DailyService. Days are counted in loc.
func NewDailyService(
	queries *repository.Queries,
	interpreter Interpreter,
	profiles ProfileService,
	loc *time.Location,
	rng domain.RNG,
	logger *slog.Logger,
) DailyService {
	if loc == nil {
		loc = time.UTC
	}
	if rng == nil {
		rng = domain.DefaultRNG()
	}
	return &dailyService{
		queries:  queries,
		ai:       interpreter,
		profiles: profiles,
		logger:   logger,
		location: loc,
		rng:      rng,
		now:      time.Now,
	}
}

// Draw returns today's card, drawing it on the first call of the day.
//
// A fallback interpretation is returned but not stored, so the user can
// draw again later that day. Two concurrent first draws are settled by the
// unique index on (user, type, date): the loser returns the winner's card.
func (s *dailyService) Draw(ctx context.Context, userID uuid.UUID) (*DailyDraw, error) {
	const op = "daily.draw"

	date := domain.CalendarDate(s.now(), s.location)

	existing, err := s.existing(ctx, userID, date)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load the daily card")
	}
	if existing != nil {
		metrics.RecordDailyDraw("repeat")
		return existing, nil
	}

	card := domain.DrawCard(s.rng)
	interp := s.ai.RequestInterpretation(ctx, ai.InterpretationRequest{
		Kind:      ai.KindDaily,
		Card:      &card,
		Consulter: consulterFor(ctx, s.profiles, userID),
	})

	draw := &DailyDraw{Card: card, Interpretation: interp, ReadingDate: date}
	if interp.Fallback {
		metrics.RecordDailyDraw("fallback")
		s.logger.Warn("daily card fell back to the default text", "user_id", userID)
		return draw, nil
	}

	input, output, err := encodeDaily(card, interp)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to encode the daily card")
	}

	row, err := s.queries.CreateReading(ctx, repository.CreateReadingParams{
		UserID:      userID,
		ReadingType: domain.ReadingTypeDaily,
		InputData:   input,
		OutputData:  output,
		ReadingDate: date,
	})
	if err != nil {
		if repository.IsUniqueViolation(err) {
			existing, err := s.existing(ctx, userID, date)
			if err == nil && existing != nil {
				metrics.RecordDailyDraw("repeat")
				return existing, nil
			}
		}
		metrics.RecordHistoryWrite(false)
		s.logger.Error("failed to store the daily card", "user_id", userID, "error", err)
		return nil, domain.Internal(err, op, "failed to store the daily card")
	}

	metrics.RecordHistoryWrite(true)
	metrics.RecordDailyDraw("drawn")
	s.logger.Info("daily card drawn", "user_id", userID, "card_id", card.ID, "reading_id", row.ID)

	draw.RecordID = &row.ID
	return draw, nil
}

// existing loads the record for date, or nil when there is none.
func (s *dailyService) existing(ctx context.Context, userID uuid.UUID, date time.Time) (*DailyDraw, error) {
	row, err := s.queries.GetReadingByUserTypeAndDate(ctx, repository.GetReadingByUserTypeAndDateParams{
		UserID:      userID,
		ReadingType: domain.ReadingTypeDaily,
		ReadingDate: date,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	var out dailyOutput
	if err := json.Unmarshal(row.OutputData, &out); err != nil {
		return nil, err
	}
	if c, ok := domain.CardByID(out.Card.ID); ok {
		out.Card = c
	}

	id := row.ID
	return &DailyDraw{
		Card:           out.Card,
		Interpretation: domain.Interpretation{Interpretation: out.Interpretation},
		ReadingDate:    date,
		AlreadyDrawn:   true,
		RecordID:       &id,
	}, nil
}

// encodeDaily builds the input_data and output_data of a daily record.
func encodeDaily(card domain.Card, interp domain.Interpretation) (input, output []byte, err error) {
	input, err = json.Marshal(domain.ReadingInput{
		SpreadID:   domain.DailySpread.ID,
		SpreadName: domain.DailySpread.Title,
		CardIDs:    []int{card.ID},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("encode input: %w", err)
	}
	output, err = json.Marshal(dailyOutput{Card: card, Interpretation: interp.Interpretation})
	if err != nil {
		return nil, nil, fmt.Errorf("encode output: %w", err)
	}
	return input, output, nil
}
