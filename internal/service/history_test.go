package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/DukeRupert/oraculo/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryService_RecordReading(t *testing.T) {
	_, queries, mock := newMockQueries(t)
	svc := NewHistoryService(queries, time.UTC, testLogger())
	userID := uuid.New()
	recordID := uuid.New()

	mock.ExpectQuery(insertReading).
		WithArgs(userID, "tarot_cruz", sqlmock.AnyArg(), sqlmock.AnyArg(), time.Date(2026, 5, 3, 0, 0, 0, 0, time.UTC)).
		WillReturnRows(sqlmock.NewRows(readingColumns).AddRow(
			recordID.String(), userID.String(), "tarot_cruz", []byte(`{}`), []byte(`{}`), time.Now(), time.Now(),
		))

	id, ok := svc.RecordReading(context.Background(), RecordParams{
		UserID:      userID,
		ReadingType: "tarot_cruz",
		Input:       domain.ReadingInput{SpreadID: "cruz", Question: "Q", CardIDs: []int{1, 2, 3, 4, 5}},
		Output:      successReading(),
		At:          time.Date(2026, 5, 3, 22, 15, 0, 0, time.UTC),
	})

	assert.True(t, ok)
	assert.Equal(t, recordID, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryService_RecordReading_FailureIsSwallowed(t *testing.T) {
	_, queries, mock := newMockQueries(t)
	svc := NewHistoryService(queries, time.UTC, testLogger())

	mock.ExpectQuery(insertReading).WillReturnError(errors.New("disk full"))

	id, ok := svc.RecordReading(context.Background(), RecordParams{
		UserID:      uuid.New(),
		ReadingType: "dream",
		Output:      domain.Interpretation{Interpretation: "x"},
	})

	assert.False(t, ok)
	assert.Equal(t, uuid.Nil, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryService_ListReadings(t *testing.T) {
	_, queries, mock := newMockQueries(t)
	svc := NewHistoryService(queries, time.UTC, testLogger())
	userID := uuid.New()

	rows := sqlmock.NewRows(readingColumns)
	for i := 0; i < 2; i++ {
		rows.AddRow(uuid.NewString(), userID.String(), "dream", []byte(`{"dream":"d"}`), []byte(`{"interpretation":"i"}`), time.Now(), time.Now())
	}
	mock.ExpectQuery(`FROM readings\s+WHERE user_id = \$1\s+ORDER BY created_at DESC`).
		WithArgs(userID, int32(maxHistoryLimit), int32(0)).
		WillReturnRows(rows)
	mock.ExpectQuery(`SELECT count\(\*\) FROM readings WHERE user_id = \$1`).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))

	res, err := svc.ListReadings(context.Background(), ListReadingsParams{UserID: userID, Limit: 500, Offset: -3})
	require.NoError(t, err)

	assert.Len(t, res.Readings, 2)
	assert.Equal(t, int64(5), res.Total)
	assert.Equal(t, int32(maxHistoryLimit), res.Limit)
	assert.Equal(t, int32(0), res.Offset)
	assert.True(t, res.HasMore())

	var out domain.Interpretation
	require.NoError(t, json.Unmarshal(res.Readings[0].OutputData, &out))
	assert.Equal(t, "i", out.Interpretation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryService_GetReading_OtherUser(t *testing.T) {
	_, queries, mock := newMockQueries(t)
	svc := NewHistoryService(queries, time.UTC, testLogger())

	mock.ExpectQuery(`WHERE id = \$1 AND user_id = \$2`).WillReturnError(sql.ErrNoRows)

	_, err := svc.GetReading(context.Background(), uuid.New(), uuid.New())
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}
