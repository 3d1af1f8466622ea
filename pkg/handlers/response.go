// Package handlers holds the JSON helpers shared by the admin API handlers.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/cricmirror/core/pkg/logger"
	"github.com/cricmirror/core/pkg/models/api"
)

// maxBodyBytes bounds request bodies of the admin endpoints
const maxBodyBytes = 64 << 10

// WriteJSON encodes v with status
func WriteJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WithContext(r.Context(), "api").Error().
			Err(err).
			Str("action", "encode_response_failed").
			Str("path", r.URL.Path).
			Msg("Failed to encode response")
	}
}

// WriteData wraps data in a successful api.Response
func WriteData(w http.ResponseWriter, r *http.Request, data interface{}, meta interface{}) {
	WriteJSON(w, r, http.StatusOK, api.Response{Success: true, Data: data, Meta: meta})
}

// WriteError writes an api.ErrorResponse
func WriteError(w http.ResponseWriter, r *http.Request, status int, message string) {
	WriteJSON(w, r, status, api.ErrorResponse{Message: message})
}

// DecodeJSON reads a single JSON object from the body, rejecting unknown fields
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

// WriteValidationError renders validator errors keyed by JSON field name
func WriteValidationError(w http.ResponseWriter, r *http.Request, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		WriteError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = describe(fe)
	}
	WriteJSON(w, r, http.StatusUnprocessableEntity, api.ErrorResponse{
		Message: "validation failed",
		Fields:  fields,
	})
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "datetime":
		return "must be HH:MM"
	case "timezone":
		return "must be an IANA timezone"
	case "nefield":
		return "must differ from " + fe.Param()
	}
	return "is invalid"
}

// NewValidator returns a validator reporting JSON field names
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
