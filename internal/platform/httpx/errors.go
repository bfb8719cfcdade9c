// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors mapped onto HTTP statuses. Domain packages wrap these so
// handlers can respond with a single RespondError call.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("resource not found")
	// ErrDuplicate indicates a uniqueness conflict.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrValidation indicates a structurally invalid request.
	ErrValidation = errors.New("validation failed")
	// ErrMalformedPayload indicates a request body missing required structure.
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrAuth indicates a missing, invalid, or mismatched credential.
	ErrAuth = errors.New("authentication failed")
	// ErrAuthorizationDenied indicates an authenticated principal without access.
	ErrAuthorizationDenied = errors.New("authorization denied")
	// ErrLookup indicates an upstream lookup (key service, coordinator) failed.
	ErrLookup = errors.New("upstream lookup failed")
	// ErrRelay indicates the relay could not complete a forward.
	ErrRelay = errors.New("relay failed")
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicate):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrValidation), errors.Is(err, ErrMalformedPayload):
		Problem(w, http.StatusBadRequest, "Malformed Payload", err.Error())
	case errors.Is(err, ErrAuth):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	case errors.Is(err, ErrAuthorizationDenied):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, ErrLookup), errors.Is(err, ErrRelay):
		Problem(w, http.StatusBadGateway, "Upstream Failure", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
