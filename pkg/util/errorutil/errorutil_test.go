package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestConstructorsCarryCodeAndStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err    error
		code   string
		status int
	}{
		{NewNotFound("ticket", nil), CodeNotFound, http.StatusNotFound},
		{NewInvalidState("ticket is not pending", nil), CodeInvalidState, http.StatusConflict},
		{NewPermissionDenied("admin required"), CodePermissionDenied, http.StatusForbidden},
		{NewConflict("duplicate", nil), CodeConflict, http.StatusConflict},
		{NewInvalidArgument("bad prior", nil), CodeInvalidArgument, http.StatusBadRequest},
		{NewValidationError("bad body", nil), CodeValidationFailed, http.StatusBadRequest},
		{NewUnauthorized("no key"), CodeUnauthorized, http.StatusUnauthorized},
		{NewInternalError(errors.New("boom")), CodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		de := ToDomainError(tt.err)
		if de.Code != tt.code || de.HTTPStatus != tt.status {
			t.Fatalf("%v: got %s/%d, want %s/%d", tt.err, de.Code, de.HTTPStatus, tt.code, tt.status)
		}
		if !Is(tt.err, tt.code) {
			t.Fatalf("Is(%v, %s) = false", tt.err, tt.code)
		}
	}
}

func TestToDomainErrorWrapsUnknown(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection reset")
	de := ToDomainError(cause)
	if de.Code != CodeInternal || !errors.Is(de, cause) {
		t.Fatalf("unexpected mapping: %+v", de)
	}
	if ToDomainError(nil) != nil {
		t.Fatal("nil error should map to nil")
	}
}

func TestIsSeesThroughWrapping(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("approve: %w", NewInvalidState("ticket is not pending", nil))
	if !Is(err, CodeInvalidState) {
		t.Fatal("wrapped domain error not detected")
	}
	if Is(err, CodeNotFound) {
		t.Fatal("wrong code matched")
	}
	if Is(errors.New("plain"), CodeInternal) {
		t.Fatal("plain error should not match")
	}
}
