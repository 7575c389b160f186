package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestCodeOf_WrappedChain(t *testing.T) {
	base := Wrap(CodeServiceUnreachable, "cannot connect", context.DeadlineExceeded)
	err := fmt.Errorf("summarize: %w", base)

	if got := CodeOf(err); got != CodeServiceUnreachable {
		t.Fatalf("CodeOf = %q, want %q", got, CodeServiceUnreachable)
	}
	if !Is(err, CodeServiceUnreachable) {
		t.Fatalf("Is() = false, want true")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected cause to be reachable through errors.Is")
	}
	if MessageOf(err) != "cannot connect" {
		t.Fatalf("MessageOf = %q", MessageOf(err))
	}
}

func TestCodeOf_PlainError(t *testing.T) {
	err := errors.New("boom")
	if CodeOf(err) != "" {
		t.Fatalf("expected empty code for plain error")
	}
	if MessageOf(err) != "boom" {
		t.Fatalf("MessageOf = %q, want boom", MessageOf(err))
	}
	if Is(nil, CodeInternal) {
		t.Fatalf("nil error must not match any code")
	}
}

func TestError_Format(t *testing.T) {
	e := NewValidation("too short")
	if e.Error() != "VALIDATION: too short" {
		t.Fatalf("Error() = %q", e.Error())
	}
	w := Wrap(CodeInternal, "store", errors.New("disk"))
	if w.Error() != "INTERNAL: store: disk" {
		t.Fatalf("Error() = %q", w.Error())
	}
}
