package handler

import (
	"log/slog"
	"net/http"

	"github.com/DukeRupert/oraculo/internal/service"
)

// OracleHandler serves the single-text interpretations.
//
// Routes handled:
//   - POST /daily              -> DrawDaily
//   - POST /dreams             -> InterpretDream
//   - POST /dreams/{id}/retry  -> RetryDream
type OracleHandler struct {
	daily  service.DailyService
	dreams service.DreamService
	logger *slog.Logger
}

// NewOracleHandler creates a new OracleHandler.
func NewOracleHandler(daily service.DailyService, dreams service.DreamService, logger *slog.Logger) *OracleHandler {
	return &OracleHandler{
		daily:  daily,
		dreams: dreams,
		logger: logger,
	}
}

// RegisterRoutes registers the daily card and dream routes. Both call the AI.
func (h *OracleHandler) RegisterRoutes(mux *http.ServeMux, requireUser, limit func(http.Handler) http.Handler) {
	mux.Handle("POST /daily", requireUser(limit(http.HandlerFunc(h.DrawDaily))))
	mux.Handle("POST /dreams", requireUser(limit(http.HandlerFunc(h.InterpretDream))))
	mux.Handle("POST /dreams/{id}/retry", requireUser(limit(http.HandlerFunc(h.RetryDream))))
}

// DrawDaily returns today's card, drawing it on the first call of the day.
func (h *OracleHandler) DrawDaily(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r, h.logger)
	if !ok {
		return
	}

	draw, err := h.daily.Draw(r.Context(), userID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	status := http.StatusCreated
	if draw.AlreadyDrawn || draw.RecordID == nil {
		status = http.StatusOK
	}
	writeJSON(w, status, draw)
}

type dreamRequest struct {
	Dream string `json:"dream"`
}

// InterpretDream spends a credit and interprets the dream text.
func (h *OracleHandler) InterpretDream(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r, h.logger)
	if !ok {
		return
	}

	var req dreamRequest
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	result, err := h.dreams.Interpret(r.Context(), userID, req.Dream)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// RetryDream asks again for a dream whose answer fell back. The id is the
// retry_id of that answer; no credit is spent.
func (h *OracleHandler) RetryDream(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r, h.logger)
	if !ok {
		return
	}
	retryID, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	result, err := h.dreams.Retry(r.Context(), userID, retryID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
