package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

// contextKey is an unexported type used for context keys in this package,
// so no other package can read or shadow the values stored here.
type contextKey string

const payloadKey contextKey = "payload"

// ActiveChecker reports whether a user account is active (email verified).
// The user service implements it; the middleware only needs this one query.
type ActiveChecker interface {
	IsActive(ctx context.Context, userID int64) (bool, error)
}

// RoleChecker returns a user's current role from the account record. The
// role claim in a token can be up to a token lifetime old, so guards that
// grant privileges ask the store instead.
type RoleChecker interface {
	UserRole(ctx context.Context, userID int64) (string, error)
}

// RequireAuth is a middleware that enforces authentication on protected routes.
//
// It reads the access token from the Authorization header ("Bearer <jwt>"),
// falling back to the "token" cookie, validates it and stores the Payload in
// the request context. A missing, invalid or non-access token stops the chain
// with 401.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := extractPayload(r, tokens)
			if err != nil {
				deny(w, http.StatusUnauthorized, "unauthorized", "valid authentication required")
				return
			}

			ctx := context.WithValue(r.Context(), payloadKey, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth extracts the user identity if a valid token is present, but
// does NOT block the request if it's missing or invalid.
//
// Used on public routes (article and profile reads) where a logged-in caller
// gets extra fields such as "following".
func OptionalAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if p, err := extractPayload(r, tokens); err == nil {
				r = r.WithContext(context.WithValue(r.Context(), payloadKey, p))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireActive blocks users who have not verified their email yet.
// It must run after RequireAuth.
func RequireActive(users ActiveChecker, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PayloadFromContext(r.Context())
			if !ok {
				deny(w, http.StatusUnauthorized, "unauthorized", "valid authentication required")
				return
			}

			active, err := users.IsActive(r.Context(), p.UserID)
			if err != nil {
				logger.Error("checking active user", "user_id", p.UserID, "error", err)
				deny(w, http.StatusUnauthorized, "unauthorized", "valid authentication required")
				return
			}
			if !active {
				deny(w, http.StatusForbidden, "forbidden", "You have to verify your email before you continue")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole allows the request through only if the caller's account
// currently has role. A demoted admin loses access at once, even while their
// token still says "admin". It must run after RequireAuth.
func RequireRole(users RoleChecker, role string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PayloadFromContext(r.Context())
			if !ok {
				deny(w, http.StatusUnauthorized, "unauthorized", "valid authentication required")
				return
			}

			current, err := users.UserRole(r.Context(), p.UserID)
			if err != nil {
				logger.Error("checking user role", "user_id", p.UserID, "error", err)
				deny(w, http.StatusUnauthorized, "unauthorized", "valid authentication required")
				return
			}
			if current != role {
				deny(w, http.StatusForbidden, "forbidden", "you are not allowed to perform this action")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// PayloadFromContext retrieves the authenticated caller's token payload.
// Returns (nil, false) if the request is anonymous.
func PayloadFromContext(ctx context.Context) (*Payload, bool) {
	p, ok := ctx.Value(payloadKey).(*Payload)
	return p, ok && p != nil
}

// UserIDFromContext retrieves the authenticated user's ID from the request
// context. Returns (0, false) if the request is anonymous.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	p, ok := PayloadFromContext(ctx)
	if !ok {
		return 0, false
	}
	return p.UserID, true
}

// WithPayload returns a copy of ctx carrying p. Handler tests use it to
// simulate an authenticated request without signing a token.
func WithPayload(ctx context.Context, p *Payload) context.Context {
	return context.WithValue(ctx, payloadKey, p)
}

// extractPayload reads the bearer token (or the "token" cookie) and validates
// it as an access token.
func extractPayload(r *http.Request, tokens *TokenService) (*Payload, error) {
	raw := bearerToken(r)
	if raw == "" {
		cookie, err := r.Cookie("token")
		if err != nil {
			return nil, ErrTokenInvalid
		}
		raw = cookie.Value
	}
	return tokens.ValidatePurpose(raw, PurposeAccess)
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func deny(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": kind, "message": message})
}
