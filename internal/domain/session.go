// Package domain contains core business types and interfaces.
//
// This file defines the ReadingSession state machine that drives one reading
// attempt from the question to the AI result. A single machine serves every
// spread; the SpreadDefinition parameterises it.
package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxQuestionLength is the longest question, in characters, a user may ask.
const MaxQuestionLength = 500

// =============================================================================
// Phase
// =============================================================================

// Phase is the lifecycle state of a reading session.
type Phase string

const (
	// PhaseQuestion: the spread is chosen and the user is typing a question.
	PhaseQuestion Phase = "question"

	// PhaseSelection: the user is picking face-down cards from the deck.
	PhaseSelection Phase = "selection"

	// PhaseRevealing: the cards are being turned one by one. The credit gate
	// and the AI call happen at the end of this phase, and the session stays
	// here when either fails so the user can retry.
	PhaseRevealing Phase = "revealing"

	// PhaseResult: the AI interpretation is available.
	PhaseResult Phase = "result"
)

// CanTransitionTo checks if a session in this phase may move to target.
//
// Valid transitions:
// - question -> selection
// - selection -> revealing
// - revealing -> result
// - any -> question (new reading)
func (p Phase) CanTransitionTo(target Phase) bool {
	if target == PhaseQuestion {
		return true
	}
	switch p {
	case PhaseQuestion:
		return target == PhaseSelection
	case PhaseSelection:
		return target == PhaseRevealing
	case PhaseRevealing:
		return target == PhaseResult
	}
	return false
}

// IsValid returns true if the phase is a recognized value.
func (p Phase) IsValid() bool {
	switch p {
	case PhaseQuestion, PhaseSelection, PhaseRevealing, PhaseResult:
		return true
	}
	return false
}

// =============================================================================
// ReadingSession
// =============================================================================

// ReadingSession is the in-memory state of one reading attempt.
//
// It is not safe for concurrent use. The session store serialises access.
type ReadingSession struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	Spread        SpreadDefinition
	Phase         Phase
	Question      string
	Deck          []Card // shuffled, face down
	Selected      []Card // in selection order
	SelectedSlots []int  // deck slot of each selected card
	RevealedCount int
	Result        *ReadingResult

	Paid       bool       // a credit was consumed (or bypassed) for this attempt
	InFlight   bool       // a gate/AI request is outstanding
	Generation int        // bumped on reset; work from older generations is dropped
	Denial     DenyReason // last credit gate refusal
	RecordID   *uuid.UUID // history record written for Result

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewReadingSession starts a session for spread with a freshly shuffled deck.
func NewReadingSession(userID uuid.UUID, spread SpreadDefinition, rng RNG, now time.Time) *ReadingSession {
	return &ReadingSession{
		ID:        uuid.New(),
		UserID:    userID,
		Spread:    spread,
		Phase:     PhaseQuestion,
		Deck:      Shuffle(rng, Deck()),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo moves the session to target if the transition is allowed.
func (s *ReadingSession) TransitionTo(target Phase) error {
	if !s.Phase.CanTransitionTo(target) {
		return Errorf(ECONFLICT, "session.transition", "cannot transition from %s to %s", s.Phase, target)
	}
	s.Phase = target
	return nil
}

// SetQuestion stores the user's question.
func (s *ReadingSession) SetQuestion(question string) error {
	const op = "session.set_question"
	if s.Phase != PhaseQuestion {
		return Conflict(op, "the question can only be changed before choosing cards")
	}
	question = strings.TrimSpace(question)
	if utf8.RuneCountInString(question) > MaxQuestionLength {
		return Invalid(op, "the question is too long")
	}
	s.Question = question
	return nil
}

// BeginSelection moves from the question to card selection.
func (s *ReadingSession) BeginSelection() error {
	if s.Phase == PhaseQuestion && s.Spread.RequiresQuestion && s.Question == "" {
		return Invalid("session.begin_selection", "this spread needs a question")
	}
	return s.TransitionTo(PhaseSelection)
}

// SelectCard adds the card lying at deck slot. It reports false, without
// error, when the card was already chosen or the spread is full.
func (s *ReadingSession) SelectCard(slot int) (bool, error) {
	const op = "session.select_card"
	if s.Phase != PhaseSelection {
		return false, Conflict(op, "cards can only be chosen during card selection")
	}
	if slot < 0 || slot >= len(s.Deck) {
		return false, Invalid(op, "card slot out of range")
	}
	if s.SelectionComplete() {
		return false, nil
	}
	card := s.Deck[slot]
	for _, c := range s.Selected {
		if c.ID == card.ID {
			return false, nil
		}
	}
	s.Selected = append(s.Selected, card)
	s.SelectedSlots = append(s.SelectedSlots, slot)
	return true, nil
}

// SelectionComplete returns true when the spread has all its cards.
func (s *ReadingSession) SelectionComplete() bool {
	return len(s.Selected) >= s.Spread.CardsRequired
}

// BeginReveal moves from selection to the reveal animation.
func (s *ReadingSession) BeginReveal() error {
	if s.Phase == PhaseSelection && !s.SelectionComplete() {
		return Invalid("session.begin_reveal", "choose all the cards before revealing them")
	}
	if err := s.TransitionTo(PhaseRevealing); err != nil {
		return err
	}
	s.RevealedCount = 0
	return nil
}

// AdvanceReveal turns the next card. It returns true exactly once: on the
// call that reveals the last card.
func (s *ReadingSession) AdvanceReveal() bool {
	if s.Phase != PhaseRevealing || s.RevealedCount >= s.Spread.CardsRequired {
		return false
	}
	s.RevealedCount++
	return s.RevealedCount == s.Spread.CardsRequired
}

// RevealComplete returns true once every selected card is face up.
func (s *ReadingSession) RevealComplete() bool {
	return (s.Phase == PhaseRevealing || s.Phase == PhaseResult) &&
		s.RevealedCount == s.Spread.CardsRequired
}

// StartRequest marks a gate and AI request as outstanding and returns the
// generation the eventual outcome must be applied to.
func (s *ReadingSession) StartRequest() (int, error) {
	const op = "session.start_request"
	if s.Phase != PhaseRevealing || !s.RevealComplete() {
		return 0, Conflict(op, "the cards are not revealed yet")
	}
	if s.InFlight {
		return 0, Conflict(op, "your reading is already being prepared")
	}
	s.InFlight = true
	s.Denial = DenyNone
	return s.Generation, nil
}

// CanRetry returns true when a failed or refused attempt may be repeated.
func (s *ReadingSession) CanRetry() bool {
	return s.Phase == PhaseRevealing && s.RevealComplete() && !s.InFlight
}

// MarkPaid records that the credit gate allowed this attempt so a retry does
// not go through the gate again.
func (s *ReadingSession) MarkPaid(gen int) bool {
	if gen != s.Generation {
		return false
	}
	s.Paid = true
	return true
}

// ApplyDenial records a credit gate refusal. Stale generations are ignored.
func (s *ReadingSession) ApplyDenial(gen int, reason DenyReason) bool {
	if gen != s.Generation || !s.InFlight {
		return false
	}
	s.InFlight = false
	s.Denial = reason
	return true
}

// ApplyResult stores the AI outcome. A fallback result keeps the session in
// the revealing phase so the user can retry; stale generations are ignored.
func (s *ReadingSession) ApplyResult(gen int, result ReadingResult) bool {
	if gen != s.Generation || !s.InFlight {
		return false
	}
	s.InFlight = false
	s.Result = &result
	if !result.Fallback {
		s.Phase = PhaseResult
	}
	return true
}

// SetRecord links the stored history record to the current result.
func (s *ReadingSession) SetRecord(gen int, id uuid.UUID) {
	if gen == s.Generation {
		s.RecordID = &id
	}
}

// Reset starts a new reading with the same spread. Any outstanding request
// belongs to an older generation afterwards and its result is dropped.
func (s *ReadingSession) Reset(rng RNG, now time.Time) {
	s.Phase = PhaseQuestion
	s.Question = ""
	s.Deck = Shuffle(rng, Deck())
	s.Selected = nil
	s.SelectedSlots = nil
	s.RevealedCount = 0
	s.Result = nil
	s.Paid = false
	s.InFlight = false
	s.Denial = DenyNone
	s.RecordID = nil
	s.Generation++
	s.UpdatedAt = now
}

// SelectedCardIDs returns the ids of the chosen cards in selection order.
func (s *ReadingSession) SelectedCardIDs() []int {
	ids := make([]int, len(s.Selected))
	for i, c := range s.Selected {
		ids[i] = c.ID
	}
	return ids
}

// =============================================================================
// Views and resume snapshots
// =============================================================================

// SessionView is the client-facing state of a session. Face-down cards are
// never exposed.
type SessionView struct {
	ID            uuid.UUID        `json:"id"`
	Spread        SpreadDefinition `json:"spread"`
	Phase         Phase            `json:"phase"`
	Question      string           `json:"question"`
	DeckSlots     int              `json:"deck_slots"`
	SelectedSlots []int            `json:"selected_slots"`
	RevealedCount int              `json:"revealed_count"`
	RevealedCards []Card           `json:"revealed_cards"`
	Result        *ReadingResult   `json:"result,omitempty"`
	Pending       bool             `json:"pending"`
	Paid          bool             `json:"paid"`
	Denial        DenyReason       `json:"denial,omitempty"`
	CanRetry      bool             `json:"can_retry"`
	RecordID      *uuid.UUID       `json:"record_id,omitempty"`
	Resume        ResumeSnapshot   `json:"resume"`
}

// View returns a copy of the session safe to hand to the client.
func (s *ReadingSession) View() SessionView {
	revealed := make([]Card, s.RevealedCount)
	copy(revealed, s.Selected[:min(s.RevealedCount, len(s.Selected))])
	slots := make([]int, len(s.SelectedSlots))
	copy(slots, s.SelectedSlots)

	v := SessionView{
		ID:            s.ID,
		Spread:        s.Spread,
		Phase:         s.Phase,
		Question:      s.Question,
		DeckSlots:     len(s.Deck),
		SelectedSlots: slots,
		RevealedCount: s.RevealedCount,
		RevealedCards: revealed,
		Pending:       s.InFlight,
		Paid:          s.Paid,
		Denial:        s.Denial,
		CanRetry:      s.CanRetry(),
		RecordID:      s.RecordID,
		Resume:        s.ResumeSnapshot(),
	}
	if s.Result != nil {
		r := *s.Result
		v.Result = &r
	}
	return v
}

// ResumeSnapshot is the part of a session the client may cache locally and
// hand back to resume after a reload.
type ResumeSnapshot struct {
	SpreadID        string `json:"spread_id"`
	Phase           Phase  `json:"phase"`
	Question        string `json:"question"`
	SelectedCardIDs []int  `json:"selected_card_ids"`
}

// ResumeSnapshot returns the cacheable part of the session.
func (s *ReadingSession) ResumeSnapshot() ResumeSnapshot {
	return ResumeSnapshot{
		SpreadID:        s.Spread.ID,
		Phase:           s.Phase,
		Question:        s.Question,
		SelectedCardIDs: s.SelectedCardIDs(),
	}
}

// RestoreSession rebuilds a session from a cached snapshot. Only the question
// and selection phases are restorable; anything else, or a snapshot that
// fails validation, yields a fresh session and restored=false. An unknown
// spread is an error.
func RestoreSession(userID uuid.UUID, snap ResumeSnapshot, rng RNG, now time.Time) (*ReadingSession, bool, error) {
	spread, ok := SpreadByID(snap.SpreadID)
	if !ok {
		return nil, false, Invalid("session.restore", "unknown spread")
	}
	s := NewReadingSession(userID, spread, rng, now)
	if !snapshotRestorable(spread, snap) {
		return s, false, nil
	}

	s.Question = strings.TrimSpace(snap.Question)
	if snap.Phase == PhaseQuestion {
		return s, true, nil
	}

	s.Phase = PhaseSelection
	slotOf := make(map[int]int, len(s.Deck))
	for slot, c := range s.Deck {
		slotOf[c.ID] = slot
	}
	for _, id := range snap.SelectedCardIDs {
		card, _ := CardByID(id)
		s.Selected = append(s.Selected, card)
		s.SelectedSlots = append(s.SelectedSlots, slotOf[id])
	}
	return s, true, nil
}

func snapshotRestorable(spread SpreadDefinition, snap ResumeSnapshot) bool {
	question := strings.TrimSpace(snap.Question)
	if utf8.RuneCountInString(question) > MaxQuestionLength {
		return false
	}
	switch snap.Phase {
	case PhaseQuestion:
		return len(snap.SelectedCardIDs) == 0
	case PhaseSelection:
		if spread.RequiresQuestion && question == "" {
			return false
		}
	default:
		return false
	}
	if len(snap.SelectedCardIDs) > spread.CardsRequired {
		return false
	}
	seen := make(map[int]bool, len(snap.SelectedCardIDs))
	for _, id := range snap.SelectedCardIDs {
		if _, ok := CardByID(id); !ok || seen[id] {
			return false
		}
		seen[id] = true
	}
	return true
}
