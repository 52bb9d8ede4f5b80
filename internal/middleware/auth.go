// Package middleware contains HTTP middleware for the Oráculo API.
//
// Middleware functions follow the standard Go pattern of wrapping http.Handler.
// They are designed to be composed using a middleware stack approach.
package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/DukeRupert/oraculo/internal/auth"
	"github.com/DukeRupert/oraculo/internal/domain"
	"github.com/DukeRupert/oraculo/internal/handler"
	"github.com/DukeRupert/oraculo/internal/service"
)

// TokenVerifier turns a bearer token into the caller's identity.
type TokenVerifier interface {
	Verify(token string) (*auth.Identity, error)
}

// =============================================================================
// Auth Middleware Configuration
// =============================================================================

// AuthMiddleware provides authentication middleware functionality.
//
// Create one instance and use its methods as middleware.
type AuthMiddleware struct {
	verifier TokenVerifier
	profiles service.ProfileService
	logger   *slog.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware instance. profiles is only
// needed by RequireAdmin.
func NewAuthMiddleware(verifier TokenVerifier, profiles service.ProfileService, logger *slog.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
		profiles: profiles,
		logger:   logger,
	}
}

// =============================================================================
// RequireUser Middleware
// =============================================================================

// RequireUser verifies the bearer token and stores the caller in the request
// context. Requests without a valid token get 401.
//
// The caller can be retrieved in handlers using:
//
//	id := auth.GetIdentity(r.Context())
func (m *AuthMiddleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := auth.BearerToken(r.Header.Get("Authorization"))
		if err != nil {
			handler.UnauthorizedResponse(w, r, m.logger)
			return
		}

		id, err := m.verifier.Verify(token)
		if err != nil {
			if !errors.Is(err, auth.ErrMissingToken) {
				m.logger.Info("token rejected", "path", r.URL.Path, "error", err)
			}
			handler.UnauthorizedResponse(w, r, m.logger)
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.SetIdentity(r.Context(), id)))
	})
}

// =============================================================================
// RequireAdmin Middleware
// =============================================================================

// RequireAdmin requires the caller's profile to carry the admin status.
//
// IMPORTANT: Use this AFTER RequireUser in the middleware chain.
func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := auth.GetIdentity(r.Context())
		if id == nil {
			m.logger.Error("RequireAdmin called without identity in context")
			handler.UnauthorizedResponse(w, r, m.logger)
			return
		}

		profile, err := m.profiles.GetProfile(r.Context(), id.UserID)
		if err != nil {
			if domain.ErrorCode(err) == domain.ENOTFOUND {
				handler.ForbiddenResponse(w, r, m.logger)
				return
			}
			handler.ErrorResponse(w, r, m.logger, err)
			return
		}

		if !profile.IsAdmin() {
			m.logger.Warn("admin route denied", "user_id", id.UserID, "path", r.URL.Path)
			handler.ForbiddenResponse(w, r, m.logger)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Middleware Stack Helpers
// =============================================================================

// Stack composes multiple middleware functions into a single middleware.
//
// Middleware is applied in the order provided, meaning the first middleware
// in the slice is the outermost (runs first on request, last on response).
//
// Example:
//
//	stack := Stack(authMw.RequireUser, authMw.RequireAdmin)
//	mux.Handle("GET /admin/stats", stack(statsHandler))
func Stack(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}
