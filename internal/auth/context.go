// Package auth verifies bearer tokens issued by the external identity
// provider and carries the caller's identity through request contexts.
//
// This package is designed to be imported by both middleware and handler
// packages without causing import cycles.
package auth

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// Identity is the authenticated caller. UserID is the token subject and the
// primary key of the caller's profile.
type Identity struct {
	UserID uuid.UUID
	Email  string
}

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// identityContextKey is the key used to store the caller in context.
	identityContextKey contextKey = "identity"
)

// GetIdentity retrieves the authenticated caller from the context.
//
// Returns nil if no caller is authenticated.
//
// Usage:
//
//	id := auth.GetIdentity(r.Context())
//	if id == nil {
//	    // Handle unauthenticated request
//	}
func GetIdentity(ctx context.Context) *Identity {
	id, ok := ctx.Value(identityContextKey).(*Identity)
	if !ok {
		return nil
	}
	return id
}

// GetIdentityFromRequest is a convenience wrapper around GetIdentity.
func GetIdentityFromRequest(r *http.Request) *Identity {
	return GetIdentity(r.Context())
}

// SetIdentity stores the caller in the context.
//
// This is typically called by authentication middleware after verifying
// a bearer token.
func SetIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}
