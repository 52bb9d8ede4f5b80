package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/DukeRupert/oraculo/internal/domain"
	"github.com/DukeRupert/oraculo/internal/service"
)

// ProfileHandler serves the caller's own profile.
//
// Routes handled:
//   - GET /me -> GetProfile
//   - PUT /me -> UpdateProfile
type ProfileHandler struct {
	profiles service.ProfileService
	logger   *slog.Logger
	now      func() time.Time
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(profiles service.ProfileService, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{
		profiles: profiles,
		logger:   logger,
		now:      time.Now,
	}
}

// RegisterRoutes registers profile routes.
func (h *ProfileHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("GET /me", requireUser(http.HandlerFunc(h.GetProfile)))
	mux.Handle("PUT /me", requireUser(http.HandlerFunc(h.UpdateProfile)))
}

// profileResponse is the client view of a profile.
type profileResponse struct {
	ID                  uuid.UUID  `json:"id"`
	Email               string     `json:"email"`
	Name                string     `json:"name"`
	BirthDate           string     `json:"birth_date"`
	Credits             int        `json:"credits"`
	SubscriptionStatus  string     `json:"subscription_status"`
	SubscriptionEndDate *time.Time `json:"subscription_end_date,omitempty"`
	IsVIP               bool       `json:"is_vip"`
	IsAdmin             bool       `json:"is_admin"`
	UnlimitedReadings   bool       `json:"unlimited_readings"`
}

func newProfileResponse(p *domain.Profile, now time.Time) profileResponse {
	return profileResponse{
		ID:                  p.ID,
		Email:               p.Email,
		Name:                p.Name,
		BirthDate:           p.BirthDate,
		Credits:             p.Credits,
		SubscriptionStatus:  p.SubscriptionStatus.String(),
		SubscriptionEndDate: p.SubscriptionEndDate,
		IsVIP:               p.IsActiveVIP(now),
		IsAdmin:             p.IsAdmin(),
		UnlimitedReadings:   p.HasUnlimitedReadings(now),
	}
}

// GetProfile returns the balance and subscription state of the caller.
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r, h.logger)
	if !ok {
		return
	}

	profile, err := h.profiles.GetProfile(r.Context(), userID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newProfileResponse(profile, h.now()))
}

type updateProfileRequest struct {
	Name      string `json:"name"`
	BirthDate string `json:"birth_date"`
}

// UpdateProfile changes the name and birth date used to personalise readings.
func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r, h.logger)
	if !ok {
		return
	}

	var req updateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	profile, err := h.profiles.UpdateProfile(r.Context(), domain.UpdateProfileParams{
		UserID:    userID,
		Name:      req.Name,
		BirthDate: req.BirthDate,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newProfileResponse(profile, h.now()))
}
