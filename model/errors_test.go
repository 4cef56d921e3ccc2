package model

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorEnvelope_Error(t *testing.T) {
	err := NewNotFoundError("participant progress \"pp-1\" not found")
	want := "NOT_FOUND: participant progress \"pp-1\" not found"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestNewRequirementsUnmetError(t *testing.T) {
	err := NewRequirementsUnmetError([]string{"ID Document", "Signed Agreement"})
	if err.Code != ErrRequirementsUnmet {
		t.Errorf("Code = %q", err.Code)
	}
	if len(err.Missing) != 2 {
		t.Fatalf("Missing count = %d, want 2", len(err.Missing))
	}
	if err.Missing[0] != "ID Document" || err.Missing[1] != "Signed Agreement" {
		t.Errorf("Missing = %v", err.Missing)
	}
}

func TestIsCode(t *testing.T) {
	err := NewAlreadyDecidedError("doc-1", DocumentStatusApproved)
	if !IsCode(err, ErrAlreadyDecided) {
		t.Error("expected ALREADY_DECIDED")
	}
	if IsCode(err, ErrNotFound) {
		t.Error("did not expect NOT_FOUND")
	}

	// Wrapped envelopes are still recognized.
	wrapped := fmt.Errorf("decide: %w", err)
	if !IsCode(wrapped, ErrAlreadyDecided) {
		t.Error("expected ALREADY_DECIDED through wrapping")
	}
}

func TestCodeOf_nonEnvelope(t *testing.T) {
	if got := CodeOf(errors.New("boom")); got != ErrInternalError {
		t.Errorf("CodeOf = %q, want INTERNAL_ERROR", got)
	}
}
