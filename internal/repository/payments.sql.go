package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

const createPaymentEvent = `-- name: CreatePaymentEvent :one
INSERT INTO payment_events (stripe_event_id, user_id, amount_cents, currency, credits_granted, payload)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (stripe_event_id) DO NOTHING
RETURNING id, stripe_event_id, user_id, amount_cents, currency, credits_granted, payload, created_at
`

type CreatePaymentEventParams struct {
	StripeEventID  string                `json:"stripe_event_id"`
	UserID         uuid.UUID             `json:"user_id"`
	AmountCents    int64                 `json:"amount_cents"`
	Currency       string                `json:"currency"`
	CreditsGranted int32                 `json:"credits_granted"`
	Payload        pqtype.NullRawMessage `json:"payload"`
}

// CreatePaymentEvent records a processed Stripe event. It returns
// sql.ErrNoRows when the event was already recorded.
func (q *Queries) CreatePaymentEvent(ctx context.Context, arg CreatePaymentEventParams) (PaymentEvent, error) {
	row := q.db.QueryRowContext(ctx, createPaymentEvent,
		arg.StripeEventID,
		arg.UserID,
		arg.AmountCents,
		arg.Currency,
		arg.CreditsGranted,
		arg.Payload,
	)
	var i PaymentEvent
	err := row.Scan(
		&i.ID,
		&i.StripeEventID,
		&i.UserID,
		&i.AmountCents,
		&i.Currency,
		&i.CreditsGranted,
		&i.Payload,
		&i.CreatedAt,
	)
	return i, err
}
