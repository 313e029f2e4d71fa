package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorClassification(t *testing.T) {
	err := New(ErrNotConnected, "no strava connection for user")

	if !errors.Is(err, ErrNotConnected) {
		t.Error("Expected errors.Is to match the kind")
	}
	if errors.Is(err, ErrFetchFailed) {
		t.Error("Expected other kinds to not match")
	}
}

func TestWrapPreservesMessage(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(ErrFetchFailed, cause)

	if !errors.Is(err, ErrFetchFailed) {
		t.Error("Expected errors.Is to match the kind")
	}
	if got := err.Error(); got != "fetch failed: connection refused" {
		t.Errorf("Unexpected message %q", got)
	}
}

func TestStatusCode(t *testing.T) {
	cases := []struct {
		kind error
		want int
	}{
		{ErrValidation, http.StatusBadRequest},
		{ErrUnauthorized, http.StatusUnauthorized},
		{ErrNotFound, http.StatusNotFound},
		{ErrNotConnected, http.StatusConflict},
		{ErrConflict, http.StatusConflict},
		{ErrRefreshFailed, http.StatusBadGateway},
		{ErrImportFailed, http.StatusBadGateway},
		{ErrFetchFailed, http.StatusBadGateway},
		{ErrStorageFailed, http.StatusInternalServerError},
		{ErrPersistenceFailed, http.StatusInternalServerError},
	}

	for _, c := range cases {
		if got := StatusCode(New(c.kind, "x")); got != c.want {
			t.Errorf("StatusCode(%v) = %d, want %d", c.kind, got, c.want)
		}
	}

	if got := StatusCode(fmt.Errorf("plain error")); got != http.StatusInternalServerError {
		t.Errorf("Expected 500 for unclassified errors, got %d", got)
	}
}
