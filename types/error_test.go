package types

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_ChainingAndHelpers(t *testing.T) {
	t.Parallel()

	root := errors.New("root")
	err := NewError(ErrInternalError, "engine setup failed").
		WithCause(root).
		WithRetryable(true)

	if GetErrorCode(err) != ErrInternalError {
		t.Fatalf("expected code %s, got %s", ErrInternalError, GetErrorCode(err))
	}
	if !errors.Is(err, root) {
		t.Fatalf("expected errors.Is unwrap to root")
	}
	if got := err.Error(); got == "" {
		t.Fatalf("expected non-empty error string")
	}
}

func TestNewTimeoutError_MessageEmbedsBudget(t *testing.T) {
	t.Parallel()

	err := NewTimeoutError(0.1)
	if !strings.Contains(err.Error(), "0.1") {
		t.Fatalf("timeout message must include the budget: %v", err)
	}
	if !IsTimeout(err) {
		t.Fatalf("expected IsTimeout")
	}
	if !IsTimeout(fmt.Errorf("attempt failed: %w", err)) {
		t.Fatalf("IsTimeout must see through wrapping")
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	if Classify(errors.New("boom")) != SeverityFailure {
		t.Fatalf("plain errors are ordinary failures")
	}
	if Classify(NewTimeoutError(1)) != SeverityFailure {
		t.Fatalf("timeouts are ordinary failures for retry purposes")
	}
	if Classify(NewCrash(errors.New("sigterm"))) != SeverityCrash {
		t.Fatalf("tagged interrupts are crashes")
	}
	if Classify(fmt.Errorf("wrapped: %w", NewCrash(nil))) != SeverityCrash {
		t.Fatalf("crash tag must survive wrapping")
	}
	if Classify(context.Canceled) != SeverityCrash {
		t.Fatalf("caller cancellation is a crash")
	}
	if Classify(context.DeadlineExceeded) != SeverityFailure {
		t.Fatalf("deadline expiry is handled by the supervisor, not the classifier")
	}
}

func TestMissingResult(t *testing.T) {
	t.Parallel()

	err := NewMissingResult("state has no persisted result")
	if !IsMissingResult(err) {
		t.Fatalf("expected IsMissingResult")
	}
	if IsMissingResult(errors.New("other")) {
		t.Fatalf("unexpected IsMissingResult")
	}
}
