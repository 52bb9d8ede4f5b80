package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DukeRupert/oraculo/internal/auth"
	"github.com/DukeRupert/oraculo/internal/domain"
	"github.com/google/uuid"
)

// =============================================================================
// Test Doubles
// =============================================================================

type mockVerifier struct {
	identities map[string]*auth.Identity
}

func (m *mockVerifier) Verify(token string) (*auth.Identity, error) {
	if id, ok := m.identities[token]; ok {
		return id, nil
	}
	return nil, auth.ErrInvalidToken
}

type mockProfileService struct {
	GetProfileFunc func(ctx context.Context, userID uuid.UUID) (*domain.Profile, error)
}

func (m *mockProfileService) GetProfile(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	return m.GetProfileFunc(ctx, userID)
}

func (m *mockProfileService) UpdateProfile(ctx context.Context, params domain.UpdateProfileParams) (*domain.Profile, error) {
	return nil, errors.New("not implemented")
}

// =============================================================================
// Test Helpers
// =============================================================================

// newTestLogger creates a logger that discards output for testing.
func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

// =============================================================================
// RequireUser Tests
// =============================================================================

func TestRequireUser(t *testing.T) {
	userID := uuid.New()
	verifier := &mockVerifier{identities: map[string]*auth.Identity{
		"good-token": {UserID: userID, Email: "ana@example.com"},
	}}
	mw := NewAuthMiddleware(verifier, nil, newTestLogger())

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantCalled bool
	}{
		{name: "valid token", header: "Bearer good-token", wantStatus: http.StatusOK, wantCalled: true},
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic good-token", wantStatus: http.StatusUnauthorized},
		{name: "unknown token", header: "Bearer forged", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var called bool
			var gotID *auth.Identity
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				gotID = auth.GetIdentity(r.Context())
			})

			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			mw.RequireUser(next).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if called != tt.wantCalled {
				t.Errorf("next called = %v, want %v", called, tt.wantCalled)
			}
			if tt.wantCalled && (gotID == nil || gotID.UserID != userID) {
				t.Errorf("identity not stored in context: %+v", gotID)
			}
		})
	}
}

func TestRequireUser_UnauthorizedIsJSON(t *testing.T) {
	mw := NewAuthMiddleware(&mockVerifier{}, nil, newTestLogger())

	req := httptest.NewRequest(http.MethodGet, "/history", nil)
	rec := httptest.NewRecorder()

	var called bool
	mw.RequireUser(okHandler(&called)).ServeHTTP(rec, req)

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
}

// =============================================================================
// RequireAdmin Tests
// =============================================================================

func TestRequireAdmin(t *testing.T) {
	future := time.Now().Add(time.Hour)

	tests := []struct {
		name       string
		identity   *auth.Identity
		profile    *domain.Profile
		err        error
		wantStatus int
	}{
		{
			name:       "admin",
			identity:   &auth.Identity{UserID: uuid.New()},
			profile:    &domain.Profile{SubscriptionStatus: domain.SubscriptionAdmin},
			wantStatus: http.StatusOK,
		},
		{
			name:       "vip is not admin",
			identity:   &auth.Identity{UserID: uuid.New()},
			profile:    &domain.Profile{SubscriptionStatus: domain.SubscriptionMonthly, SubscriptionEndDate: &future},
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "missing profile",
			identity:   &auth.Identity{UserID: uuid.New()},
			err:        domain.NotFound("profile.get", "profile", "x"),
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "lookup failure",
			identity:   &auth.Identity{UserID: uuid.New()},
			err:        domain.Internal(errors.New("db down"), "profile.get", "failed"),
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "no identity",
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profiles := &mockProfileService{
				GetProfileFunc: func(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
					return tt.profile, tt.err
				},
			}
			mw := NewAuthMiddleware(&mockVerifier{}, profiles, newTestLogger())

			req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
			if tt.identity != nil {
				req = req.WithContext(auth.SetIdentity(req.Context(), tt.identity))
			}
			rec := httptest.NewRecorder()

			var called bool
			mw.RequireAdmin(okHandler(&called)).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if called != (tt.wantStatus == http.StatusOK) {
				t.Errorf("next called = %v", called)
			}
		})
	}
}

// =============================================================================
// Stack Tests
// =============================================================================

func TestStack_Order(t *testing.T) {
	var order []string
	mark := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Stack(mark("first"), mark("second"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	want := []string{"first", "second", "handler"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order = %v, want %v", order, want)
		}
	}
}
