// Package validation provides HTTP request validation using validator/v10.
//
// Request types declare their rules with `validate` struct tags and may carry
// exact client messages by implementing Messager. Failures are reported as
// per-field arrays of messages, never as a single opaque error.
package validation

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/authors-haven/internal/apperror"
)

// Messager is implemented by request types that need exact messages.
// Keys are "<json field>.<tag>", e.g. "firstname.alpha".
type Messager interface {
	ValidationMessages() map[string]string
}

// Validator wraps go-playground/validator with domain error conversion.
type Validator struct {
	v *validator.Validate
}

// New creates a validator configured for our request types.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Use JSON tag names in error keys.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	// jsonbool accepts only the literal JSON booleans. Used on
	// json.RawMessage fields where "yes" or "1" must be rejected rather than
	// silently decoded.
	_ = v.RegisterValidation("jsonbool", func(fl validator.FieldLevel) bool {
		f := fl.Field()
		if f.Kind() != reflect.Slice || f.Type().Elem().Kind() != reflect.Uint8 {
			return false
		}
		s := string(bytes.TrimSpace(f.Bytes()))
		return s == "true" || s == "false"
	})

	return &Validator{v: v}
}

// Validate checks s and returns an *apperror.AppError with per-field messages
// on failure.
func (v *Validator) Validate(s any) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return fmt.Errorf("validation: %w", err)
	}

	var custom map[string]string
	if m, ok := s.(Messager); ok {
		custom = m.ValidationMessages()
	}

	fields := make(map[string][]string)
	for _, e := range validationErrs {
		msg, ok := custom[e.Field()+"."+e.Tag()]
		if !ok {
			msg = friendlyMessage(e)
		}
		fields[e.Field()] = append(fields[e.Field()], msg)
	}
	return apperror.Invalid(fields)
}

// Fields lists the field names of a validation error in sorted order.
// Handy in tests and logs.
func Fields(err error) []string {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		return nil
	}
	names := make([]string, 0, len(appErr.Fields))
	for name := range appErr.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func friendlyMessage(e validator.FieldError) string {
	field := e.Field()
	switch e.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "alpha":
		return field + " can only contain alphabetic characters"
	case "alphanum":
		return field + " must be alphanumeric"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must not exceed %s characters", field, e.Param())
	case "url":
		return field + " must be a valid URL"
	case "gte":
		return field + " must be greater than or equal to " + e.Param()
	case "lte":
		return field + " must be less than or equal to " + e.Param()
	case "gt":
		return field + " must be greater than " + e.Param()
	case "jsonbool":
		return field + " should be either true or false"
	default:
		return field + " is invalid"
	}
}
