// Package response provides helpers for writing consistent JSON HTTP responses.
//
// Every handler sends JSON back to the client. Errors always share one
// envelope, and Fail picks the status code from the error itself so the
// handlers never repeat the mapping.
package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/upiiz/school-records-api/internal/attachment"
	"github.com/upiiz/school-records-api/internal/objectid"
	"github.com/upiiz/school-records-api/internal/storage"
	"github.com/upiiz/school-records-api/internal/utils/request"
)

// Response is the standard envelope returned for error cases:
//
//	{ "status": "error", "error": "Alumno no encontrado" }
type Response struct {
	Status string `json:"status"` // "ok" or "error"
	Error  string `json:"error"`  // human-readable error detail
}

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// WriteJSON writes data as JSON with the given status code.
//
// IMPORTANT ORDER: Header() → WriteHeader() → body writes.
func WriteJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// Message writes the confirmation body used by writes that return no
// document:
//
//	{ "message": "Profesor eliminado" }
func Message(w http.ResponseWriter, text string) error {
	return WriteJSON(w, http.StatusOK, map[string]string{"message": text})
}

// GeneralError wraps any Go error into our standard Response shape.
func GeneralError(err error) Response {
	return Response{
		Status: StatusError,
		Error:  err.Error(),
	}
}

// ValidationError converts validator.FieldError values into a single
// human-readable Response, e.g.
//
//	{ "status": "error", "error": "field nombre is required, field calificacion is required" }
func ValidationError(errs validator.ValidationErrors) Response {
	var errMessages []string

	for _, e := range errs {
		switch e.ActualTag() {
		case "required":
			errMessages = append(errMessages,
				fmt.Sprintf("field %s is required", e.Field()))
		case "email":
			errMessages = append(errMessages,
				fmt.Sprintf("field %s must be a valid email address", e.Field()))
		default:
			errMessages = append(errMessages,
				fmt.Sprintf("field %s is invalid", e.Field()))
		}
	}

	return Response{
		Status: StatusError,
		Error:  strings.Join(errMessages, ", "),
	}
}

// StatusFor maps an application error onto its HTTP status code.
//
//	objectid.ErrInvalid                 → 400
//	attachment.ErrUnsupportedMediaType  → 400
//	attachment.ErrUnavailable           → 403
//	storage.ErrNotFound                 → 404
//	attachment.ErrNotFound              → 404
//	request.ErrUnprocessable, validator → 422
//	anything else                       → 500
func StatusFor(err error) int {
	var validationErrs validator.ValidationErrors

	switch {
	case errors.Is(err, objectid.ErrInvalid),
		errors.Is(err, attachment.ErrUnsupportedMediaType):
		return http.StatusBadRequest
	case errors.Is(err, attachment.ErrUnavailable):
		return http.StatusForbidden
	case errors.Is(err, storage.ErrNotFound),
		errors.Is(err, attachment.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, request.ErrUnprocessable),
		errors.As(err, &validationErrs):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// Fail writes err with the status StatusFor picks. Server-side failures are
// logged; client errors are not.
func Fail(w http.ResponseWriter, err error) {
	status := StatusFor(err)

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		WriteJSON(w, status, ValidationError(validationErrs))
		return
	}

	if status >= http.StatusInternalServerError {
		slog.Error("request failed", slog.String("error", err.Error()))
	}
	WriteJSON(w, status, GeneralError(err))
}
