package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/DukeRupert/oraculo/internal/auth"
	"github.com/DukeRupert/oraculo/internal/billing"
	"github.com/DukeRupert/oraculo/internal/domain"
	"github.com/DukeRupert/oraculo/internal/service"
)

// BillingHandler sells credit packs and VIP plans through Stripe Checkout.
//
// Routes handled:
//   - GET  /billing/products -> ListProducts
//   - POST /billing/checkout -> CreateCheckout
//   - POST /billing/portal   -> OpenPortal
type BillingHandler struct {
	billing  billing.Service
	profiles service.ProfileService
	baseURL  string
	logger   *slog.Logger
}

// NewBillingHandler creates a new BillingHandler.
// billingService may be nil when Stripe is not configured (development mode).
func NewBillingHandler(billingService billing.Service, profiles service.ProfileService, baseURL string, logger *slog.Logger) *BillingHandler {
	return &BillingHandler{
		billing:  billingService,
		profiles: profiles,
		baseURL:  baseURL,
		logger:   logger,
	}
}

// RegisterRoutes registers billing routes on the provided mux.
func (h *BillingHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.HandleFunc("GET /billing/products", h.ListProducts)
	mux.Handle("POST /billing/checkout", requireUser(http.HandlerFunc(h.CreateCheckout)))
	mux.Handle("POST /billing/portal", requireUser(http.HandlerFunc(h.OpenPortal)))
}

type productsResponse struct {
	Products []billing.Product `json:"products"`
}

// ListProducts returns what can be bought.
func (h *BillingHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	resp := productsResponse{Products: []billing.Product{}}
	if h.billing != nil {
		resp.Products = h.billing.Products()
	}
	writeJSON(w, http.StatusOK, resp)
}

type checkoutRequest struct {
	Product string `json:"product"`
}

type redirectResponse struct {
	URL string `json:"url"`
}

// CreateCheckout creates a Stripe Checkout session and returns its URL.
func (h *BillingHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	const op = "billing.checkout"

	id := auth.GetIdentity(r.Context())
	if id == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}
	if h.billing == nil {
		h.logger.Warn("checkout attempted but Stripe is not configured")
		ErrorResponse(w, r, h.logger, domain.Conflict(op, "Payments are not available"))
		return
	}

	var req checkoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	profile, err := h.profiles.GetProfile(r.Context(), id.UserID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	email := id.Email
	if email == "" {
		email = profile.Email
	}

	checkoutURL, err := h.billing.CreateCheckoutSession(billing.CheckoutParams{
		UserID:     id.UserID,
		Email:      email,
		CustomerID: profile.StripeCustomerID,
		ProductKey: req.Product,
		SuccessURL: fmt.Sprintf("%s/billing/success?session_id={CHECKOUT_SESSION_ID}", h.baseURL),
		CancelURL:  fmt.Sprintf("%s/billing/cancel", h.baseURL),
	})
	if err != nil {
		if errors.Is(err, billing.ErrUnknownProduct) {
			ErrorResponse(w, r, h.logger, domain.Invalid(op, "unknown product"))
			return
		}
		ErrorResponse(w, r, h.logger, domain.Internal(err, op, "failed to create checkout session"))
		return
	}

	h.logger.Info("checkout session created", "user_id", id.UserID, "product", req.Product)
	writeJSON(w, http.StatusOK, redirectResponse{URL: checkoutURL})
}

// OpenPortal creates a Stripe Customer Portal session for managing the VIP plan.
func (h *BillingHandler) OpenPortal(w http.ResponseWriter, r *http.Request) {
	const op = "billing.portal"

	userID, ok := callerID(w, r, h.logger)
	if !ok {
		return
	}
	if h.billing == nil {
		ErrorResponse(w, r, h.logger, domain.Conflict(op, "Payments are not available"))
		return
	}

	profile, err := h.profiles.GetProfile(r.Context(), userID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if profile.StripeCustomerID == "" {
		ErrorResponse(w, r, h.logger, domain.Conflict(op, "No purchases yet"))
		return
	}

	portalURL, err := h.billing.CreatePortalSession(profile.StripeCustomerID, h.baseURL+"/billing")
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Internal(err, op, "failed to open billing portal"))
		return
	}
	writeJSON(w, http.StatusOK, redirectResponse{URL: portalURL})
}
