// Package handler contains the HTTP handlers of the Oráculo API.
//
// Every route speaks JSON. Handlers decode the request, call one service
// method and encode the result; errors go through ErrorResponse.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/DukeRupert/oraculo/internal/auth"
	"github.com/DukeRupert/oraculo/internal/domain"
)

// maxJSONBodyBytes bounds request bodies. The longest legitimate field is a
// dream of a few thousand characters.
const maxJSONBodyBytes = 64 << 10

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a single JSON object from the request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	const op = "handler.decode"

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return domain.Errorf(domain.ETOOLARGE, op, "request body is too large")
		case errors.Is(err, io.EOF):
			return domain.Invalid(op, "request body is required")
		default:
			return domain.Invalid(op, "request body is not valid JSON")
		}
	}
	if dec.More() {
		return domain.Invalid(op, "request body must contain a single JSON object")
	}
	return nil
}

// pathUUID parses a uuid path value.
func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, domain.Invalid("handler.path", "invalid "+name)
	}
	return id, nil
}

// queryInt32 reads an optional integer query parameter.
func queryInt32(r *http.Request, name string) (int32, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return 0, domain.Invalid("handler.query", "invalid "+name)
	}
	return int32(v), nil
}

// callerID returns the authenticated caller. Routes are wrapped with
// RequireUser, so a missing identity is a wiring bug.
func callerID(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (uuid.UUID, bool) {
	id := auth.GetIdentity(r.Context())
	if id == nil {
		logger.Error("handler reached without identity", "path", r.URL.Path)
		UnauthorizedResponse(w, r, logger)
		return uuid.Nil, false
	}
	return id.UserID, true
}
