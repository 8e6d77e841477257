package testutil

import (
	"errors"
	"testing"

	apperrors "github.com/stvowns/portfolio-tracker-starter-sub001/internal/errors"
)

// AssertAppError checks that err is an *AppError with the expected error code.
func AssertAppError(t *testing.T, err error, expectedCode string) {
	t.Helper()

	if err == nil {
		t.Fatalf("expected AppError with code %q, got nil", expectedCode)
	}

	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *AppError, got %T: %v", err, err)
	}

	if appErr.Code != expectedCode {
		t.Errorf("expected error code %q, got %q (message: %s)", expectedCode, appErr.Code, appErr.Message)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertKind checks that err classifies as the expected error kind.
func AssertKind(t *testing.T, err error, want apperrors.Kind) {
	t.Helper()

	if err == nil {
		t.Fatalf("expected %s error, got nil", want)
	}
	if got := apperrors.KindOf(err); got != want {
		t.Errorf("expected kind %s, got %s (%v)", want, got, err)
	}
}
