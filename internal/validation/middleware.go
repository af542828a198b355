package validation

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/sakif/authors-haven/internal/apperror"
)

type bodyKey struct{}

// maxBodyBytes caps request bodies accepted by Body.
const maxBodyBytes = 1 << 20

// Body returns a middleware that decodes the JSON request body into a T,
// validates it and stores it in the request context for FromContext.
//
// An empty body is validated as the zero T so that required fields are
// reported individually. Malformed JSON and rule violations both answer 400
// and stop the chain.
func Body[T any](v *Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body := new(T)

			dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
			if err := dec.Decode(body); err != nil && !errors.Is(err, io.EOF) {
				writeInvalid(w, apperror.New(apperror.ErrValidation, "request body must be valid JSON"))
				return
			}

			if err := v.Validate(body); err != nil {
				var appErr *apperror.AppError
				if !errors.As(err, &appErr) {
					appErr = apperror.New(apperror.ErrValidation, "request body is invalid")
				}
				writeInvalid(w, appErr)
				return
			}

			ctx := context.WithValue(r.Context(), bodyKey{}, body)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// FromContext returns the body validated by Body[T]. ok is false when the
// route was not wrapped with Body[T] for this T.
func FromContext[T any](ctx context.Context) (*T, bool) {
	body, ok := ctx.Value(bodyKey{}).(*T)
	return body, ok
}

// WithBody stores body in ctx as Body[T] would. Handler tests use it to skip
// decoding.
func WithBody[T any](ctx context.Context, body *T) context.Context {
	return context.WithValue(ctx, bodyKey{}, body)
}

func writeInvalid(w http.ResponseWriter, appErr *apperror.AppError) {
	resp := map[string]any{
		"error":   apperror.ErrValidation.Error(),
		"message": appErr.Message,
	}
	if len(appErr.Fields) > 0 {
		resp["errors"] = appErr.Fields
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(resp)
}
