// Package service contains the business logic layer.
//
// This file implements the reading history: writing one record per
// successful reading and paging through a user's past readings.
package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/DukeRupert/oraculo/internal/domain"
	"github.com/DukeRupert/oraculo/internal/metrics"
	"github.com/DukeRupert/oraculo/internal/repository"
	"github.com/google/uuid"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// =============================================================================
// Interface Definition
// =============================================================================

// HistoryRecorder writes reading records. A failed write is logged and
// reported through ok=false; it never fails the reading that produced it.
type HistoryRecorder interface {
	RecordReading(ctx context.Context, params RecordParams) (id uuid.UUID, ok bool)
}

// HistoryService exposes the stored readings of a user.
type HistoryService interface {
	HistoryRecorder

	// ListReadings returns a page of readings, newest first.
	ListReadings(ctx context.Context, params ListReadingsParams) (*domain.ListReadingsResult, error)

	// GetReading returns one reading owned by userID.
	GetReading(ctx context.Context, id, userID uuid.UUID) (*domain.ReadingRecord, error)
}

// RecordParams describes one reading to store.
type RecordParams struct {
	UserID      uuid.UUID
	ReadingType string // spread prompt tag, "daily" or "dream"
	Input       domain.ReadingInput
	Output      any
	At          time.Time // zero means now
}

// ListReadingsParams contains paging options for ListReadings.
type ListReadingsParams struct {
	UserID uuid.UUID
	Limit  int32
	Offset int32
}

// =============================================================================
// Implementation
// =============================================================================

type historyService struct {
	queries  *repository.Queries
	logger   *slog.Logger
	location *time.Location
}

// NewHistoryService creates a new HistoryService. Reading dates are computed
// as calendar days in loc.
func NewHistoryService(queries *repository.Queries, loc *time.Location, logger *slog.Logger) HistoryService {
	if loc == nil {
		loc = time.UTC
	}
	return &historyService{
		queries:  queries,
		logger:   logger,
		location: loc,
	}
}

// RecordReading stores a reading record.
func (s *historyService) RecordReading(ctx context.Context, params RecordParams) (uuid.UUID, bool) {
	at := params.At
	if at.IsZero() {
		at = time.Now()
	}

	input, err := json.Marshal(params.Input)
	if err != nil {
		return s.recordFailed(params, err)
	}
	output, err := json.Marshal(params.Output)
	if err != nil {
		return s.recordFailed(params, err)
	}

	row, err := s.queries.CreateReading(ctx, repository.CreateReadingParams{
		UserID:      params.UserID,
		ReadingType: params.ReadingType,
		InputData:   input,
		OutputData:  output,
		ReadingDate: domain.CalendarDate(at, s.location),
	})
	if err != nil {
		return s.recordFailed(params, err)
	}

	metrics.RecordHistoryWrite(true)
	s.logger.Info("reading recorded",
		"reading_id", row.ID,
		"user_id", params.UserID,
		"reading_type", params.ReadingType,
	)
	return row.ID, true
}

func (s *historyService) recordFailed(params RecordParams, err error) (uuid.UUID, bool) {
	metrics.RecordHistoryWrite(false)
	s.logger.Error("failed to record reading",
		"user_id", params.UserID,
		"reading_type", params.ReadingType,
		"error", err,
	)
	return uuid.Nil, false
}

// ListReadings returns a page of the user's readings.
func (s *historyService) ListReadings(ctx context.Context, params ListReadingsParams) (*domain.ListReadingsResult, error) {
	const op = "history.list"

	if params.Limit <= 0 {
		params.Limit = defaultHistoryLimit
	}
	if params.Limit > maxHistoryLimit {
		params.Limit = maxHistoryLimit
	}
	if params.Offset < 0 {
		params.Offset = 0
	}

	rows, err := s.queries.ListReadingsByUserID(ctx, repository.ListReadingsByUserIDParams{
		UserID: params.UserID,
		Limit:  params.Limit,
		Offset: params.Offset,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list readings")
	}

	total, err := s.queries.CountReadingsByUserID(ctx, params.UserID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to count readings")
	}

	readings := make([]domain.ReadingRecord, len(rows))
	for i, row := range rows {
		readings[i] = toDomainReading(row)
	}

	return &domain.ListReadingsResult{
		Readings: readings,
		Total:    total,
		Limit:    params.Limit,
		Offset:   params.Offset,
	}, nil
}

// GetReading returns one reading. Readings of other users are reported as
// not found.
func (s *historyService) GetReading(ctx context.Context, id, userID uuid.UUID) (*domain.ReadingRecord, error) {
	const op = "history.get"

	row, err := s.queries.GetReadingByIDAndUserID(ctx, repository.GetReadingByIDAndUserIDParams{
		ID:     id,
		UserID: userID,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "reading", id.String())
		}
		return nil, domain.Internal(err, op, "failed to load reading")
	}

	r := toDomainReading(row)
	return &r, nil
}

func toDomainReading(r repository.Reading) domain.ReadingRecord {
	return domain.ReadingRecord{
		ID:          r.ID,
		UserID:      r.UserID,
		ReadingType: r.ReadingType,
		InputData:   r.InputData,
		OutputData:  r.OutputData,
		ReadingDate: r.ReadingDate,
		CreatedAt:   r.CreatedAt,
	}
}
