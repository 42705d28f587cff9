package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestHTTPError_Mapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", NotFound("slot"), http.StatusNotFound, "not_found"},
		{"unauthorized", fmt.Errorf("book: %w", ErrUnauthorized), http.StatusForbidden, "unauthorized"},
		{"conflict", ErrConflict, http.StatusConflict, "conflict"},
		{"slot unavailable", ErrSlotUnavailable, http.StatusConflict, "slot_unavailable"},
		{"invalid state", ErrInvalidState, http.StatusConflict, "invalid_state"},
		{"validation", Validation("first_name is required"), http.StatusBadRequest, "validation"},
		{"unknown", fmt.Errorf("transition: %w", ErrUnknown), http.StatusServiceUnavailable, "unknown"},
		{"internal", errors.New("boom"), http.StatusInternalServerError, "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var he *echo.HTTPError
			if !errors.As(HTTPError(tt.err), &he) {
				t.Fatal("expected *echo.HTTPError")
			}
			if he.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, he.Code)
			}
			body, ok := he.Message.(Body)
			if !ok {
				t.Fatalf("expected Body message, got %T", he.Message)
			}
			if body.Code != tt.wantCode {
				t.Errorf("expected code %q, got %q", tt.wantCode, body.Code)
			}
			if Code(tt.err) != tt.wantCode {
				t.Errorf("Code() = %q, want %q", Code(tt.err), tt.wantCode)
			}
		})
	}
}

func TestHTTPError_Passthrough(t *testing.T) {
	orig := echo.NewHTTPError(http.StatusUnauthorized, "missing token")
	if HTTPError(orig) != orig {
		t.Error("expected echo errors to pass through unchanged")
	}
	if HTTPError(nil) != nil {
		t.Error("expected nil for nil error")
	}
}

func TestHTTPError_UnknownHidesDetail(t *testing.T) {
	he := HTTPError(fmt.Errorf("context deadline exceeded: %w", ErrUnknown)).(*echo.HTTPError)
	if he.Message.(Body).Message != unknownMessage {
		t.Errorf("expected re-fetch instruction, got %q", he.Message.(Body).Message)
	}
}

func TestValidation_Message(t *testing.T) {
	err := Validation("page size %d too large", 500)
	if !errors.Is(err, ErrValidation) {
		t.Fatal("expected ErrValidation")
	}
	if err.Error() != "validation failed: page size 500 too large" {
		t.Errorf("unexpected message %q", err.Error())
	}
}
