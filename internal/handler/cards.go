package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/DukeRupert/oraculo/internal/domain"
	"github.com/DukeRupert/oraculo/internal/service"
)

// CardHandler serves the deck. Both routes are public.
//
// Routes handled:
//   - GET /cards            -> ListCards
//   - GET /cards/{id}/image -> CardImage
type CardHandler struct {
	artwork service.ArtworkService
	logger  *slog.Logger
}

// NewCardHandler creates a new CardHandler.
func NewCardHandler(artwork service.ArtworkService, logger *slog.Logger) *CardHandler {
	return &CardHandler{
		artwork: artwork,
		logger:  logger,
	}
}

// RegisterRoutes registers deck routes.
func (h *CardHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /cards", h.ListCards)
	mux.HandleFunc("GET /cards/{id}/image", h.CardImage)
}

// ListCards returns the deck in canonical order.
func (h *CardHandler) ListCards(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]domain.Card{"cards": domain.Deck()})
}

// CardImage redirects to wherever the card artwork is stored.
func (h *CardHandler) CardImage(w http.ResponseWriter, r *http.Request) {
	cardID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("cards.image", "invalid card id"))
		return
	}

	url, err := h.artwork.CardImageURL(r.Context(), cardID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}
