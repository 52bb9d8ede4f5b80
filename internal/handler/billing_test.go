package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/oraculo/internal/billing"
	"github.com/DukeRupert/oraculo/internal/domain"
)

func newBillingMux(b billing.Service, profiles *fakeProfileService, userID uuid.UUID) *http.ServeMux {
	mux := http.NewServeMux()
	NewBillingHandler(b, profiles, "https://oraculo.test", discardLogger()).RegisterRoutes(mux, asUser(userID))
	return mux
}

func TestBillingHandler_ListProducts(t *testing.T) {
	t.Run("configured", func(t *testing.T) {
		rec := serve(t, newBillingMux(&fakeBillingService{}, &fakeProfileService{}, uuid.New()), "GET", "/billing/products", "")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), billing.ProductCreditsSmall)
	})

	t.Run("not configured", func(t *testing.T) {
		rec := serve(t, newBillingMux(nil, &fakeProfileService{}, uuid.New()), "GET", "/billing/products", "")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"products":[]}`, rec.Body.String())
	})
}

func TestBillingHandler_CreateCheckout(t *testing.T) {
	userID := uuid.New()
	fake := &fakeBillingService{}
	profiles := &fakeProfileService{profile: &domain.Profile{ID: userID, Email: "ana@example.com", StripeCustomerID: "cus_9"}}

	rec := serve(t, newBillingMux(fake, profiles, userID), "POST", "/billing/checkout", `{"product":"credits_small"}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp redirectResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "https://checkout.stripe.test/session", resp.URL)

	assert.Equal(t, userID, fake.checkout.UserID)
	assert.Equal(t, "cus_9", fake.checkout.CustomerID)
	assert.Equal(t, "credits_small", fake.checkout.ProductKey)
	assert.Contains(t, fake.checkout.SuccessURL, "https://oraculo.test/")
}

func TestBillingHandler_CreateCheckoutErrors(t *testing.T) {
	userID := uuid.New()
	profile := &domain.Profile{ID: userID, Email: "ana@example.com"}

	tests := []struct {
		name       string
		billing    billing.Service
		wantStatus int
		wantCode   string
	}{
		{"stripe not configured", nil, http.StatusConflict, domain.ECONFLICT},
		{"unknown product", &fakeBillingService{checkoutErr: billing.ErrUnknownProduct}, http.StatusBadRequest, domain.EINVALID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := newBillingMux(tt.billing, &fakeProfileService{profile: profile}, userID)
			rec := serve(t, mux, "POST", "/billing/checkout", `{"product":"gold_bars"}`)

			requireErrorCode(t, rec, tt.wantStatus, tt.wantCode)
		})
	}
}

func TestBillingHandler_OpenPortal(t *testing.T) {
	userID := uuid.New()

	t.Run("with customer", func(t *testing.T) {
		profiles := &fakeProfileService{profile: &domain.Profile{ID: userID, StripeCustomerID: "cus_1"}}
		rec := serve(t, newBillingMux(&fakeBillingService{}, profiles, userID), "POST", "/billing/portal", "")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "cus_1")
	})

	t.Run("without purchases", func(t *testing.T) {
		profiles := &fakeProfileService{profile: &domain.Profile{ID: userID}}
		rec := serve(t, newBillingMux(&fakeBillingService{}, profiles, userID), "POST", "/billing/portal", "")

		requireErrorCode(t, rec, http.StatusConflict, domain.ECONFLICT)
	})
}
