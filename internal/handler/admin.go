package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/DukeRupert/oraculo/internal/domain"
	"github.com/DukeRupert/oraculo/internal/service"
)

// AdminHandler serves the back-office API.
//
// Routes handled (all require the admin status):
//   - GET /admin/stats                       -> Stats
//   - GET /admin/users                       -> ListUsers
//   - POST /admin/users/{id}/credits         -> GrantCredits
//   - PUT /admin/users/{id}/subscription     -> SetSubscription
//   - PUT /admin/cards/{id}/image            -> UploadCardImage
//   - DELETE /admin/cards/{id}/image         -> DeleteCardImage
type AdminHandler struct {
	admin   service.AdminService
	artwork service.ArtworkService
	logger  *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(admin service.AdminService, artwork service.ArtworkService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		admin:   admin,
		artwork: artwork,
		logger:  logger,
	}
}

// RegisterRoutes registers admin routes. requireAdmin must authenticate the
// caller and check the admin status.
func (h *AdminHandler) RegisterRoutes(mux *http.ServeMux, requireAdmin func(http.Handler) http.Handler) {
	mux.Handle("GET /admin/stats", requireAdmin(http.HandlerFunc(h.Stats)))
	mux.Handle("GET /admin/users", requireAdmin(http.HandlerFunc(h.ListUsers)))
	mux.Handle("POST /admin/users/{id}/credits", requireAdmin(http.HandlerFunc(h.GrantCredits)))
	mux.Handle("PUT /admin/users/{id}/subscription", requireAdmin(http.HandlerFunc(h.SetSubscription)))
	mux.Handle("PUT /admin/cards/{id}/image", requireAdmin(http.HandlerFunc(h.UploadCardImage)))
	mux.Handle("DELETE /admin/cards/{id}/image", requireAdmin(http.HandlerFunc(h.DeleteCardImage)))
}

// Stats returns the dashboard counters.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.admin.Stats(r.Context())
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ListUsers returns a page of profiles.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
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

	list, err := h.admin.ListProfiles(r.Context(), limit, offset)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	now := time.Now()
	users := make([]profileResponse, len(list.Profiles))
	for i := range list.Profiles {
		users[i] = newProfileResponse(&list.Profiles[i], now)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"users":  users,
		"total":  list.Total,
		"limit":  list.Limit,
		"offset": list.Offset,
	})
}

type grantCreditsRequest struct {
	Credits int `json:"credits"`
}

type grantCreditsResponse struct {
	Balance int `json:"balance"`
}

// GrantCredits adds credits to a profile.
func (h *AdminHandler) GrantCredits(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	var req grantCreditsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	balance, err := h.admin.GrantCredits(r.Context(), userID, req.Credits)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, grantCreditsResponse{Balance: balance})
}

type setSubscriptionRequest struct {
	Status  string     `json:"status"`
	EndDate *time.Time `json:"end_date"`
}

// SetSubscription assigns a subscription status and end date.
func (h *AdminHandler) SetSubscription(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	var req setSubscriptionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	err = h.admin.SetSubscription(r.Context(), userID, service.SubscriptionChange{
		Status:  domain.SubscriptionStatus(req.Status),
		EndDate: req.EndDate,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadCardImage replaces a card's artwork. The body is the raw image.
func (h *AdminHandler) UploadCardImage(w http.ResponseWriter, r *http.Request) {
	const op = "admin.upload_card_image"

	cardID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "invalid card id"))
		return
	}
	if r.ContentLength > service.MaxArtworkUploadBytes {
		ErrorResponse(w, r, h.logger, domain.Errorf(domain.ETOOLARGE, op, "image is larger than %d MB", service.MaxArtworkUploadBytes>>20))
		return
	}

	body := http.MaxBytesReader(w, r.Body, service.MaxArtworkUploadBytes)
	url, err := h.artwork.UploadCardImage(r.Context(), cardID, body)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (h *AdminHandler) DeleteCardImage(w http.ResponseWriter, r *http.Request) {
	cardID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("admin.delete_card_image", "invalid card id"))
		return
	}
	if err := h.artwork.DeleteCardImage(r.Context(), cardID); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
