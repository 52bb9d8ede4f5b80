package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecrementUserCredits(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	q := New(db)
	id := uuid.New()

	mock.ExpectQuery(`UPDATE users\s+SET credits = credits - 1`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"credits"}).AddRow(2))

	credits, err := q.DecrementUserCredits(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, int32(2), credits)

	mock.ExpectQuery(`WHERE id = \$1 AND credits > 0`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"credits"}))

	_, err = q.DecrementUserCredits(context.Background(), id)
	assert.ErrorIs(t, err, sql.ErrNoRows)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePaymentEvent_Duplicate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`ON CONFLICT \(stripe_event_id\) DO NOTHING`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err = New(db).CreatePaymentEvent(context.Background(), CreatePaymentEventParams{
		StripeEventID: "evt_1",
		UserID:        uuid.New(),
		AmountCents:   2990,
		Currency:      "brl",
	})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.True(t, IsUniqueViolation(errors.Join(errors.New("insert"), &pgconn.PgError{Code: "23505"})))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsUniqueViolation(sql.ErrNoRows))
	assert.False(t, IsUniqueViolation(nil))
}
