package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const readingColumns = `id, user_id, reading_type, input_data, output_data, reading_date, created_at`

func scanReading(row interface{ Scan(...interface{}) error }) (Reading, error) {
	var i Reading
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.ReadingType,
		&i.InputData,
		&i.OutputData,
		&i.ReadingDate,
		&i.CreatedAt,
	)
	return i, err
}

const createReading = `-- name: CreateReading :one
INSERT INTO readings (user_id, reading_type, input_data, output_data, reading_date)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + readingColumns

type CreateReadingParams struct {
	UserID      uuid.UUID       `json:"user_id"`
	ReadingType string          `json:"reading_type"`
	InputData   json.RawMessage `json:"input_data"`
	OutputData  json.RawMessage `json:"output_data"`
	ReadingDate time.Time       `json:"reading_date"`
}

func (q *Queries) CreateReading(ctx context.Context, arg CreateReadingParams) (Reading, error) {
	row := q.db.QueryRowContext(ctx, createReading,
		arg.UserID,
		arg.ReadingType,
		arg.InputData,
		arg.OutputData,
		arg.ReadingDate,
	)
	return scanReading(row)
}

const getReadingByIDAndUserID = `-- name: GetReadingByIDAndUserID :one
SELECT ` + readingColumns + `
FROM readings
WHERE id = $1 AND user_id = $2
`

type GetReadingByIDAndUserIDParams struct {
	ID     uuid.UUID `json:"id"`
	UserID uuid.UUID `json:"user_id"`
}

func (q *Queries) GetReadingByIDAndUserID(ctx context.Context, arg GetReadingByIDAndUserIDParams) (Reading, error) {
	row := q.db.QueryRowContext(ctx, getReadingByIDAndUserID, arg.ID, arg.UserID)
	return scanReading(row)
}

const getReadingByUserTypeAndDate = `-- name: GetReadingByUserTypeAndDate :one
SELECT ` + readingColumns + `
FROM readings
WHERE user_id = $1 AND reading_type = $2 AND reading_date = $3
ORDER BY created_at
LIMIT 1
`

type GetReadingByUserTypeAndDateParams struct {
	UserID      uuid.UUID `json:"user_id"`
	ReadingType string    `json:"reading_type"`
	ReadingDate time.Time `json:"reading_date"`
}

func (q *Queries) GetReadingByUserTypeAndDate(ctx context.Context, arg GetReadingByUserTypeAndDateParams) (Reading, error) {
	row := q.db.QueryRowContext(ctx, getReadingByUserTypeAndDate, arg.UserID, arg.ReadingType, arg.ReadingDate)
	return scanReading(row)
}

const listReadingsByUserID = `-- name: ListReadingsByUserID :many
SELECT ` + readingColumns + `
FROM readings
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3
`

type ListReadingsByUserIDParams struct {
	UserID uuid.UUID `json:"user_id"`
	Limit  int32     `json:"limit"`
	Offset int32     `json:"offset"`
}

func (q *Queries) ListReadingsByUserID(ctx context.Context, arg ListReadingsByUserIDParams) ([]Reading, error) {
	rows, err := q.db.QueryContext(ctx, listReadingsByUserID, arg.UserID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Reading
	for rows.Next() {
		i, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countReadingsByUserID = `-- name: CountReadingsByUserID :one
SELECT count(*) FROM readings WHERE user_id = $1
`

func (q *Queries) CountReadingsByUserID(ctx context.Context, userID uuid.UUID) (int64, error) {
	row := q.db.QueryRowContext(ctx, countReadingsByUserID, userID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const countReadingsSince = `-- name: CountReadingsSince :one
SELECT count(*) FROM readings WHERE created_at >= $1
`

func (q *Queries) CountReadingsSince(ctx context.Context, since time.Time) (int64, error) {
	row := q.db.QueryRowContext(ctx, countReadingsSince, since)
	var count int64
	err := row.Scan(&count)
	return count, err
}
