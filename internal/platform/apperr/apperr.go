// Package apperr defines the error kinds shared by the domain services and
// their translation to HTTP responses.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("not authorized")
	ErrConflict        = errors.New("conflict")
	ErrSlotUnavailable = errors.New("slot is not available")
	ErrInvalidState    = errors.New("invalid state")
	ErrValidation      = errors.New("validation failed")
	ErrUnknown         = errors.New("outcome unknown")
)

// Validation returns an ErrValidation with a formatted message.
func Validation(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFound returns an ErrNotFound naming what was missing.
func NotFound(what string) error {
	return fmt.Errorf("%s: %w", what, ErrNotFound)
}

// Body is the JSON error payload.
type Body struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const unknownMessage = "the write may or may not have been applied; re-fetch the slot before retrying"

type kind struct {
	err    error
	status int
	code   string
}

var kinds = []kind{
	{ErrNotFound, http.StatusNotFound, "not_found"},
	{ErrUnauthorized, http.StatusForbidden, "unauthorized"},
	{ErrSlotUnavailable, http.StatusConflict, "slot_unavailable"},
	{ErrInvalidState, http.StatusConflict, "invalid_state"},
	{ErrConflict, http.StatusConflict, "conflict"},
	{ErrValidation, http.StatusBadRequest, "validation"},
	{ErrUnknown, http.StatusServiceUnavailable, "unknown"},
}

// Code returns the stable error code of err, or "internal".
func Code(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.code
		}
	}
	return "internal"
}

// HTTPError converts err into an echo error with a JSON Body. Errors that are
// already *echo.HTTPError pass through.
func HTTPError(err error) error {
	if err == nil {
		return nil
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			msg := err.Error()
			if k.err == ErrUnknown {
				msg = unknownMessage
			}
			return echo.NewHTTPError(k.status, Body{Code: k.code, Message: msg})
		}
	}
	return echo.NewHTTPError(http.StatusInternalServerError, Body{Code: "internal", Message: "internal server error"})
}
