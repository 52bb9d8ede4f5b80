package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/DukeRupert/oraculo/internal/domain"
	"github.com/DukeRupert/oraculo/internal/service"
)

// ReadingHandler exposes the reading session state machine.
//
// Routes handled:
//   - GET    /spreads                          -> ListSpreads
//   - POST   /readings/sessions                -> CreateSession
//   - POST   /readings/sessions/restore        -> RestoreSession
//   - GET    /readings/sessions/{id}           -> GetSession
//   - PUT    /readings/sessions/{id}/question  -> SetQuestion
//   - POST   /readings/sessions/{id}/cards     -> SelectCard
//   - POST   /readings/sessions/{id}/reveal    -> Reveal
//   - POST   /readings/sessions/{id}/retry     -> Retry
//   - POST   /readings/sessions/{id}/new       -> NewReading
//   - DELETE /readings/sessions/{id}           -> EndSession
type ReadingHandler struct {
	readings service.ReadingService
	logger   *slog.Logger
}

// NewReadingHandler creates a new ReadingHandler.
func NewReadingHandler(readings service.ReadingService, logger *slog.Logger) *ReadingHandler {
	return &ReadingHandler{
		readings: readings,
		logger:   logger,
	}
}

// RegisterRoutes registers reading routes. limit wraps the routes that can
// spend credits or AI calls.
func (h *ReadingHandler) RegisterRoutes(mux *http.ServeMux, requireUser, limit func(http.Handler) http.Handler) {
	mux.HandleFunc("GET /spreads", h.ListSpreads)

	mux.Handle("POST /readings/sessions", requireUser(http.HandlerFunc(h.CreateSession)))
	mux.Handle("POST /readings/sessions/restore", requireUser(http.HandlerFunc(h.RestoreSession)))
	mux.Handle("GET /readings/sessions/{id}", requireUser(http.HandlerFunc(h.GetSession)))
	mux.Handle("PUT /readings/sessions/{id}/question", requireUser(http.HandlerFunc(h.SetQuestion)))
	mux.Handle("POST /readings/sessions/{id}/cards", requireUser(http.HandlerFunc(h.SelectCard)))
	mux.Handle("POST /readings/sessions/{id}/reveal", requireUser(limit(http.HandlerFunc(h.Reveal))))
	mux.Handle("POST /readings/sessions/{id}/retry", requireUser(limit(http.HandlerFunc(h.Retry))))
	mux.Handle("POST /readings/sessions/{id}/new", requireUser(http.HandlerFunc(h.NewReading)))
	mux.Handle("DELETE /readings/sessions/{id}", requireUser(http.HandlerFunc(h.EndSession)))
}

type spreadsResponse struct {
	Spreads []domain.SpreadDefinition `json:"spreads"`
}

// ListSpreads returns the spread catalog. It is public.
func (h *ReadingHandler) ListSpreads(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, spreadsResponse{Spreads: h.readings.Spreads()})
}

type createSessionRequest struct {
	SpreadID string `json:"spread_id"`
}

// CreateSession starts a new reading.
func (h *ReadingHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r, h.logger)
	if !ok {
		return
	}

	var req createSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	view, err := h.readings.CreateSession(r.Context(), userID, req.SpreadID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

type restoreSessionResponse struct {
	Session  domain.SessionView `json:"session"`
	Restored bool               `json:"restored"`
}

// RestoreSession rebuilds a session from the snapshot the client cached.
func (h *ReadingHandler) RestoreSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r, h.logger)
	if !ok {
		return
	}

	var snap domain.ResumeSnapshot
	if err := decodeJSON(w, r, &snap); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	view, restored, err := h.readings.RestoreSession(r.Context(), userID, snap)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, restoreSessionResponse{Session: view, Restored: restored})
}

// GetSession returns the session. Clients poll it while cards are revealed
// and the interpretation is pending.
func (h *ReadingHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, http.StatusOK, h.readings.GetSession)
}

type questionRequest struct {
	Question string `json:"question"`
}

// SetQuestion stores the question and moves to card selection.
func (h *ReadingHandler) SetQuestion(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	h.withSession(w, r, http.StatusOK, func(ctx context.Context, id, userID uuid.UUID) (domain.SessionView, error) {
		return h.readings.SetQuestion(ctx, id, userID, req.Question)
	})
}

type selectCardRequest struct {
	Slot *int `json:"slot"`
}

// SelectCard picks a face-down card by its deck slot.
func (h *ReadingHandler) SelectCard(w http.ResponseWriter, r *http.Request) {
	var req selectCardRequest
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if req.Slot == nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("handler.select_card", "slot is required"))
		return
	}
	h.withSession(w, r, http.StatusOK, func(ctx context.Context, id, userID uuid.UUID) (domain.SessionView, error) {
		return h.readings.SelectCard(ctx, id, userID, *req.Slot)
	})
}

// Reveal starts the reveal. The result arrives asynchronously.
func (h *ReadingHandler) Reveal(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, http.StatusAccepted, h.readings.Reveal)
}

// Retry repeats a refused or failed interpretation request.
func (h *ReadingHandler) Retry(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, http.StatusAccepted, h.readings.Retry)
}

// NewReading resets the session for another question.
func (h *ReadingHandler) NewReading(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, http.StatusOK, h.readings.NewReading)
}

// EndSession discards the session.
func (h *ReadingHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r, h.logger)
	if !ok {
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	h.readings.EndSession(r.Context(), id, userID)
	w.WriteHeader(http.StatusNoContent)
}

type sessionFunc func(ctx context.Context, id, userID uuid.UUID) (domain.SessionView, error)

// withSession resolves the caller and the session id, runs fn and writes
// the resulting view.
func (h *ReadingHandler) withSession(w http.ResponseWriter, r *http.Request, status int, fn sessionFunc) {
	userID, ok := callerID(w, r, h.logger)
	if !ok {
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	view, err := fn(r.Context(), id, userID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, status, view)
}
