// Package handler contains the HTTP handlers of the Authors Haven API.
//
// HANDLER RESPONSIBILITIES:
//  1. Read the request: URL parameters, query string, the body already
//     validated by validation.Body[T], and the caller set by auth middleware
//  2. Call one service method
//  3. Write the response with writeJSON or writeError
//
// Handlers hold no business rules. Ownership checks, notification fan-out
// and the messages of domain errors all live in internal/service.
package handler

import (
	"context"
	"log/slog"
	"net/http"
)

// Pinger reports whether the database is reachable. sqlite.DB implements it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RootHandler answers the API root, the health check and unmatched routes.
type RootHandler struct {
	db     Pinger
	logger *slog.Logger
}

func NewRootHandler(db Pinger, logger *slog.Logger) *RootHandler {
	return &RootHandler{db: db, logger: logger}
}

// HandleRoot is GET /.
func (h *RootHandler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, envelope{"message": "Authors Haven."})
}

// HandleHealth is GET /api/health.
func (h *RootHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(r.Context()); err != nil {
		h.logger.Error("health check failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, envelope{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, envelope{"status": "ok"})
}

// HandleNotFound answers every route the router does not know.
func (h *RootHandler) HandleNotFound(w http.ResponseWriter, r *http.Request) {
	h.logger.Debug("route not found",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)
	writeJSON(w, http.StatusNotFound, ErrorResponse{
		Error:   "not_found",
		Message: "Route not found",
	})
}

// HandleMethodNotAllowed answers a known path called with the wrong verb.
func (h *RootHandler) HandleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{
		Error:   "method_not_allowed",
		Message: "Method not allowed",
	})
}
