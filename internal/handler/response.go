package handler

// RESPONSE HELPERS:
// Every handler answers through writeJSON and writeError so the API has one
// response shape.
//
// Success bodies are envelopes with a message and the resource under a
// named key:
//   {"message": "user created successfully", "user": {...}}
//
// Error bodies always carry the kind and a human-readable message, plus
// per-field messages when the error came from input validation or a
// uniqueness conflict:
//   {"error": "conflict", "message": "email already exists.",
//    "errors": {"email": ["email already exists."]}}

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/authors-haven/internal/apperror"
	"github.com/sakif/authors-haven/internal/auth"
	"github.com/sakif/authors-haven/internal/validation"
)

// envelope is the top-level JSON object of a success response.
type envelope map[string]any

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string              `json:"error"`
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

// writeJSON sends a JSON response with the given status code.
//
// Headers and status must be written before the body; once Encode writes,
// later header changes are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to its HTTP status and sends it.
//
// errors.Is walks the wrap chain, so a service error such as
//
//	fmt.Errorf("service/article: creating article: %w", apperror.NotFound(...))
//
// still maps to 404. Anything that is not an *apperror.AppError is an
// internal failure: it is logged and the client sees a generic 500, never
// the raw error text.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		logger.Error("unhandled error", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
		return
	}

	status, kind := statusOf(err)
	if status == http.StatusInternalServerError {
		logger.Error("unclassified application error", slog.String("error", err.Error()))
	}
	writeJSON(w, status, ErrorResponse{
		Error:   kind,
		Message: appErr.Message,
		Errors:  appErr.Fields,
	})
}

func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, apperror.ErrValidation.Error()
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// caller returns the authenticated token payload. Routes behind
// auth.RequireAuth always have one; on any other route a missing payload
// is answered with 401 and ok is false.
func caller(w http.ResponseWriter, r *http.Request) (*auth.Payload, bool) {
	p, ok := auth.PayloadFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "valid authentication required",
		})
		return nil, false
	}
	return p, true
}

// viewerID returns the caller's user id, or 0 for anonymous requests.
func viewerID(r *http.Request) int64 {
	id, _ := auth.UserIDFromContext(r.Context())
	return id
}

// pathID parses the named URL parameter as a positive int64.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.ValidationFailed(name, name+" must be a positive number.")
	}
	return id, nil
}

// queryInt reads an optional non-negative integer query parameter.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperror.ValidationFailed(name, name+" must be a non-negative number.")
	}
	return n, nil
}

// bodyOf returns the request body validated by validation.Body[T]. A route
// wired without the middleware is a programming error and answers 500.
func bodyOf[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger) (*T, bool) {
	v, ok := validation.FromContext[T](r.Context())
	if !ok {
		logger.Error("validated body missing from context", slog.String("path", r.URL.Path))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
		return nil, false
	}
	return v, true
}
