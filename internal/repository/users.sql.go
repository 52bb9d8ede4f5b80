package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

const userColumns = `id, email, name, birth_date, credits, subscription_status,
       subscription_end_date, stripe_customer_id, created_at, updated_at`

func scanUser(row interface{ Scan(...interface{}) error }) (User, error) {
	var i User
	err := row.Scan(
		&i.ID,
		&i.Email,
		&i.Name,
		&i.BirthDate,
		&i.Credits,
		&i.SubscriptionStatus,
		&i.SubscriptionEndDate,
		&i.StripeCustomerID,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getUserByID = `-- name: GetUserByID :one
SELECT ` + userColumns + `
FROM users
WHERE id = $1
`

func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	row := q.db.QueryRowContext(ctx, getUserByID, id)
	return scanUser(row)
}

const getUserByStripeCustomerID = `-- name: GetUserByStripeCustomerID :one
SELECT ` + userColumns + `
FROM users
WHERE stripe_customer_id = $1
`

func (q *Queries) GetUserByStripeCustomerID(ctx context.Context, stripeCustomerID sql.NullString) (User, error) {
	row := q.db.QueryRowContext(ctx, getUserByStripeCustomerID, stripeCustomerID)
	return scanUser(row)
}

const decrementUserCredits = `-- name: DecrementUserCredits :one
UPDATE users
SET credits = credits - 1, updated_at = now()
WHERE id = $1 AND credits > 0
RETURNING credits
`

// DecrementUserCredits takes one credit in a single conditional statement.
// It returns sql.ErrNoRows when the user is missing or the balance is zero.
func (q *Queries) DecrementUserCredits(ctx context.Context, id uuid.UUID) (int32, error) {
	row := q.db.QueryRowContext(ctx, decrementUserCredits, id)
	var credits int32
	err := row.Scan(&credits)
	return credits, err
}

const addUserCredits = `-- name: AddUserCredits :one
UPDATE users
SET credits = credits + $2, updated_at = now()
WHERE id = $1
RETURNING credits
`

type AddUserCreditsParams struct {
	ID      uuid.UUID `json:"id"`
	Credits int32     `json:"credits"`
}

func (q *Queries) AddUserCredits(ctx context.Context, arg AddUserCreditsParams) (int32, error) {
	row := q.db.QueryRowContext(ctx, addUserCredits, arg.ID, arg.Credits)
	var credits int32
	err := row.Scan(&credits)
	return credits, err
}

const updateUserSubscription = `-- name: UpdateUserSubscription :execrows
UPDATE users
SET subscription_status = $2, subscription_end_date = $3, updated_at = now()
WHERE id = $1
`

type UpdateUserSubscriptionParams struct {
	ID                  uuid.UUID    `json:"id"`
	SubscriptionStatus  string       `json:"subscription_status"`
	SubscriptionEndDate sql.NullTime `json:"subscription_end_date"`
}

func (q *Queries) UpdateUserSubscription(ctx context.Context, arg UpdateUserSubscriptionParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateUserSubscription, arg.ID, arg.SubscriptionStatus, arg.SubscriptionEndDate)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const updateUserStripeCustomerID = `-- name: UpdateUserStripeCustomerID :exec
UPDATE users
SET stripe_customer_id = $2, updated_at = now()
WHERE id = $1
`

type UpdateUserStripeCustomerIDParams struct {
	ID               uuid.UUID      `json:"id"`
	StripeCustomerID sql.NullString `json:"stripe_customer_id"`
}

func (q *Queries) UpdateUserStripeCustomerID(ctx context.Context, arg UpdateUserStripeCustomerIDParams) error {
	_, err := q.db.ExecContext(ctx, updateUserStripeCustomerID, arg.ID, arg.StripeCustomerID)
	return err
}

const updateUserProfile = `-- name: UpdateUserProfile :one
UPDATE users
SET name = $2, birth_date = $3, updated_at = now()
WHERE id = $1
RETURNING ` + userColumns

type UpdateUserProfileParams struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	BirthDate string    `json:"birth_date"`
}

func (q *Queries) UpdateUserProfile(ctx context.Context, arg UpdateUserProfileParams) (User, error) {
	row := q.db.QueryRowContext(ctx, updateUserProfile, arg.ID, arg.Name, arg.BirthDate)
	return scanUser(row)
}

const listUsers = `-- name: ListUsers :many
SELECT ` + userColumns + `
FROM users
ORDER BY created_at DESC
LIMIT $1 OFFSET $2
`

type ListUsersParams struct {
	Limit  int32 `json:"limit"`
	Offset int32 `json:"offset"`
}

func (q *Queries) ListUsers(ctx context.Context, arg ListUsersParams) ([]User, error) {
	rows, err := q.db.QueryContext(ctx, listUsers, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []User
	for rows.Next() {
		i, err := scanUser(rows)
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

const countUsers = `-- name: CountUsers :one
SELECT count(*) FROM users
`

func (q *Queries) CountUsers(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countUsers)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const countActiveSubscribers = `-- name: CountActiveSubscribers :one
SELECT count(*) FROM users
WHERE subscription_status NOT IN ('free', 'admin')
  AND subscription_end_date > now()
`

func (q *Queries) CountActiveSubscribers(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countActiveSubscribers)
	var count int64
	err := row.Scan(&count)
	return count, err
}
