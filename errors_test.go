package bdev

import (
	"errors"
	"testing"
)

func TestStructuredError(t *testing.T) {
	err := NewError("open", ErrCodeInvalidParams, "invalid queue depth")

	if err.Op != "open" {
		t.Errorf("expected Op=open, got %s", err.Op)
	}
	if err.Code != ErrCodeInvalidParams {
		t.Errorf("expected Code=ErrCodeInvalidParams, got %s", err.Code)
	}

	expected := "bdev: invalid queue depth (op=open)"
	if err.Error() != expected {
		t.Errorf("expected error message %q, got %q", expected, err.Error())
	}
}

func TestBdevError(t *testing.T) {
	err := NewBdevError("submit", "nvme0n1", ErrCodeBusy, "bdev in use")
	if err.Bdev != "nvme0n1" {
		t.Errorf("expected Bdev=nvme0n1, got %s", err.Bdev)
	}

	expected := "bdev: bdev in use (op=submit)"
	if err.Error() != expected {
		t.Errorf("expected error message %q, got %q", expected, err.Error())
	}
}

func TestChannelError(t *testing.T) {
	err := NewChannelError("submit", "nvme0n1", "thread-1", ErrCodeResetInProgress, "reset in progress")
	if err.Channel != "thread-1" {
		t.Errorf("expected Channel=thread-1, got %s", err.Channel)
	}
}

func TestWrapErrorPreservesCode(t *testing.T) {
	inner := NewBdevError("submit", "nvme0n1", ErrCodeAborted, "aborted")
	wrapped := WrapError("retry", inner)

	if wrapped.Code != ErrCodeAborted {
		t.Errorf("expected Code=ErrCodeAborted, got %s", wrapped.Code)
	}
	if wrapped.Bdev != "nvme0n1" {
		t.Errorf("expected Bdev preserved, got %s", wrapped.Bdev)
	}
	if !errors.Is(wrapped, inner) {
		t.Error("expected wrapped error to satisfy errors.Is against the original by code")
	}
}

func TestWrapErrorOnPlainError(t *testing.T) {
	wrapped := WrapError("submit", errors.New("disk on fire"))
	if wrapped.Code != ErrCodeIOFailure {
		t.Errorf("expected Code=ErrCodeIOFailure for an unstructured inner error, got %s", wrapped.Code)
	}
}

func TestIsCode(t *testing.T) {
	err := NewError("reset", ErrCodeTimeout, "timed out")

	if !IsCode(err, ErrCodeTimeout) {
		t.Error("IsCode should return true for a matching code")
	}
	if IsCode(err, ErrCodeIOFailure) {
		t.Error("IsCode should return false for a non-matching code")
	}
	if IsCode(nil, ErrCodeTimeout) {
		t.Error("IsCode should return false for a nil error")
	}
}
