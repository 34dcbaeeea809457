package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/pkordes/carpool/backend/internal/domain"
)

// errorResponse is the body of every non-2xx JSON response.
type errorResponse struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report field errors under their JSON names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Status: "error", Message: msg})
}

// readJSON decodes the request body into dst, rejecting unknown fields and
// trailing data, then runs struct validation. Failures are ErrValidation.
func readJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return errBodyTooLarge
		case errors.Is(err, io.EOF):
			return fmt.Errorf("%w: request body is required", domain.ErrValidation)
		default:
			return fmt.Errorf("%w: malformed JSON body: %s", domain.ErrValidation, err.Error())
		}
	}
	if dec.More() {
		return fmt.Errorf("%w: request body must contain a single JSON object", domain.ErrValidation)
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return fieldErrors(verrs)
		}
		return fmt.Errorf("%w: %s", domain.ErrValidation, err.Error())
	}
	return nil
}

var errBodyTooLarge = errors.New("request body too large")

// invalidFieldsError carries per-field messages for the "details" block.
type invalidFieldsError struct {
	fields map[string]string
}

func (e *invalidFieldsError) Error() string { return "invalid request fields" }

func (e *invalidFieldsError) Unwrap() error { return domain.ErrValidation }

func fieldErrors(verrs validator.ValidationErrors) error {
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = describeTag(fe)
	}
	return &invalidFieldsError{fields: fields}
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "lte":
		return "must be less than or equal to " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "len":
		return "must have length " + fe.Param()
	case "numeric":
		return "must contain only digits"
	}
	return "failed " + fe.Tag() + " check"
}

// errorHandler maps service errors onto HTTP responses. Unknown errors are
// logged and answered with a generic 500.
type errorHandler struct {
	log *slog.Logger
}

func (h errorHandler) handle(w http.ResponseWriter, r *http.Request, err error) {
	var fields *invalidFieldsError
	switch {
	case errors.As(err, &fields):
		writeJSON(w, http.StatusBadRequest, errorResponse{Status: "error", Message: fields.Error(), Details: fields.fields})
	case errors.Is(err, errBodyTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, errBodyTooLarge.Error())
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, message(err, domain.ErrValidation))
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, message(err, domain.ErrUnauthorized))
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, message(err, domain.ErrForbidden))
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, message(err, domain.ErrNotFound))
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, message(err, domain.ErrConflict))
	case errors.Is(err, domain.ErrGateway):
		h.log.WarnContext(r.Context(), "payment gateway error", "error", err)
		writeError(w, http.StatusBadGateway, "payment gateway unavailable")
	default:
		h.log.ErrorContext(r.Context(), "unhandled error", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// message extracts the human-readable tail of a wrapped error chain:
// "service.TripService.Create: validation error: seats must be positive"
// becomes "seats must be positive". When the sentinel carries no detail
// its own text is used.
func message(err, sentinel error) string {
	msg := err.Error()
	for {
		head, tail, ok := strings.Cut(msg, ": ")
		if !ok || strings.Contains(head, " ") || !strings.Contains(head, ".") {
			break
		}
		msg = tail
	}
	if s := sentinel.Error(); strings.HasPrefix(msg, s+": ") {
		msg = strings.TrimPrefix(msg, s+": ")
	}
	// Specialised conflicts are "conflict: <detail>".
	if strings.HasPrefix(msg, domain.ErrConflict.Error()+": ") {
		msg = strings.TrimPrefix(msg, domain.ErrConflict.Error()+": ")
	}
	return msg
}
