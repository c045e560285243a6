// Package request decodes and validates request payloads.
package request

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrUnprocessable wraps every body that cannot be decoded.
var ErrUnprocessable = errors.New("cuerpo de la petición no válido")

// ErrEmptyBody is returned when the body is completely empty.
var ErrEmptyBody = fmt.Errorf("%w: request body is empty", ErrUnprocessable)

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// DecodeJSON reads r's JSON body into v and checks v's validate tags.
// Validation failures come back as validator.ValidationErrors.
func DecodeJSON(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return ErrEmptyBody
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnprocessable, err)
	}
	return Validate(v)
}

// Validate checks v's validate tags.
func Validate(v any) error {
	return validate.Struct(v)
}
