package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ReadingResult is the structured interpretation of a spread.
type ReadingResult struct {
	Intro           string               `json:"intro"`
	Timeline        Timeline             `json:"timeline"`
	IndividualCards []CardInterpretation `json:"individual_cards"`
	Summary         string               `json:"summary"`
	Advice          string               `json:"advice"`

	// Fallback is set when the AI could not be reached or returned garbage.
	// Fallback results are shown but never stored.
	Fallback bool `json:"fallback,omitempty"`
}

// Timeline splits the reading across past, present and future.
type Timeline struct {
	Past    string `json:"past"`
	Present string `json:"present"`
	Future  string `json:"future"`
}

// CardInterpretation is the reading of one selected card. Entries are in
// selection order.
type CardInterpretation struct {
	CardID         int    `json:"card_id"`
	Position       string `json:"position"`
	CardName       string `json:"card_name"`
	Interpretation string `json:"interpretation"`
}

// Interpretation is the single-text result of the dream and daily flows.
type Interpretation struct {
	Interpretation string `json:"interpretation"`
	Fallback       bool   `json:"fallback,omitempty"`
}

// ReadingInput is the input snapshot stored with every reading record.
type ReadingInput struct {
	SpreadID   string `json:"spread_id,omitempty"`
	SpreadName string `json:"spread_name,omitempty"`
	Question   string `json:"question,omitempty"`
	CardIDs    []int  `json:"card_ids,omitempty"`
	Dream      string `json:"dream,omitempty"`
}

// ReadingRecord is one persisted reading. Records are append-only.
type ReadingRecord struct {
	ID          uuid.UUID       `json:"id"`
	UserID      uuid.UUID       `json:"user_id"`
	ReadingType string          `json:"reading_type"`
	InputData   json.RawMessage `json:"input_data"`
	OutputData  json.RawMessage `json:"output_data"`
	ReadingDate time.Time       `json:"reading_date"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ListReadingsResult is a page of history records.
type ListReadingsResult struct {
	Readings []ReadingRecord `json:"readings"`
	Total    int64           `json:"total"`
	Limit    int32           `json:"limit"`
	Offset   int32           `json:"offset"`
}

// HasMore returns true if there are more results available.
func (r *ListReadingsResult) HasMore() bool {
	return int64(r.Offset)+int64(len(r.Readings)) < r.Total
}

// CalendarDate truncates t to midnight of its calendar day in loc.
func CalendarDate(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
