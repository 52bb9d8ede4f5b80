package handler

import (
	"log/slog"
	"net/http"

	"github.com/DukeRupert/oraculo/internal/domain"
	"github.com/DukeRupert/oraculo/internal/service"
)

// HistoryHandler serves the caller's past readings.
//
// Routes handled:
//   - GET /history      -> ListReadings
//   - GET /history/{id} -> GetReading
type HistoryHandler struct {
	history service.HistoryService
	logger  *slog.Logger
}

// NewHistoryHandler creates a new HistoryHandler.
func NewHistoryHandler(history service.HistoryService, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{
		history: history,
		logger:  logger,
	}
}

// RegisterRoutes registers history routes.
func (h *HistoryHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("GET /history", requireUser(http.HandlerFunc(h.ListReadings)))
	mux.Handle("GET /history/{id}", requireUser(http.HandlerFunc(h.GetReading)))
}

type listReadingsResponse struct {
	*domain.ListReadingsResult
	HasMore bool `json:"has_more"`
}

// ListReadings returns a page of readings, newest first.
func (h *HistoryHandler) ListReadings(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r, h.logger)
	if !ok {
		return
	}

	limit, err := queryInt32(r, "limit")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	offset, err := queryInt32(r, "offset")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	result, err := h.history.ListReadings(r.Context(), service.ListReadingsParams{
		UserID: userID,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, listReadingsResponse{ListReadingsResult: result, HasMore: result.HasMore()})
}

// GetReading returns one reading of the caller.
func (h *HistoryHandler) GetReading(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r, h.logger)
	if !ok {
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	record, err := h.history.GetReading(r.Context(), id, userID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}
