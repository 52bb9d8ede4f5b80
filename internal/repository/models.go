package repository

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

type User struct {
	ID                  uuid.UUID      `json:"id"`
	Email               string         `json:"email"`
	Name                string         `json:"name"`
	BirthDate           string         `json:"birth_date"`
	Credits             int32          `json:"credits"`
	SubscriptionStatus  string         `json:"subscription_status"`
	SubscriptionEndDate sql.NullTime   `json:"subscription_end_date"`
	StripeCustomerID    sql.NullString `json:"stripe_customer_id"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

type Reading struct {
	ID          uuid.UUID       `json:"id"`
	UserID      uuid.UUID       `json:"user_id"`
	ReadingType string          `json:"reading_type"`
	InputData   json.RawMessage `json:"input_data"`
	OutputData  json.RawMessage `json:"output_data"`
	ReadingDate time.Time       `json:"reading_date"`
	CreatedAt   time.Time       `json:"created_at"`
}

type PaymentEvent struct {
	ID             uuid.UUID             `json:"id"`
	StripeEventID  string                `json:"stripe_event_id"`
	UserID         uuid.UUID             `json:"user_id"`
	AmountCents    int64                 `json:"amount_cents"`
	Currency       string                `json:"currency"`
	CreditsGranted int32                 `json:"credits_granted"`
	Payload        pqtype.NullRawMessage `json:"payload"`
	CreatedAt      time.Time             `json:"created_at"`
}
