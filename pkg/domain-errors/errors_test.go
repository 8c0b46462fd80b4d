package domainerrors

import (
	"errors"
	"fmt"
	"testing"
)

func TestHasCode(t *testing.T) {
	t.Run("matches direct code", func(t *testing.T) {
		err := New(CodeConflict, "already assigned")
		if !HasCode(err, CodeConflict) {
			t.Fatal("expected CodeConflict")
		}
		if HasCode(err, CodeNotFound) {
			t.Fatal("did not expect CodeNotFound")
		}
	})

	t.Run("matches code buried in chain", func(t *testing.T) {
		inner := New(CodeNotFound, "record not found")
		outer := Wrap(inner, CodeInternal, "lookup failed")
		if !HasCode(outer, CodeNotFound) {
			t.Fatal("expected inner CodeNotFound to be visible")
		}
		if !HasCode(outer, CodeInternal) {
			t.Fatal("expected outer CodeInternal to be visible")
		}
	})

	t.Run("plain errors carry no code", func(t *testing.T) {
		if HasCode(errors.New("boom"), CodeInternal) {
			t.Fatal("plain error must not match any code")
		}
	})
}

func TestWrap(t *testing.T) {
	t.Run("nil cause yields nil", func(t *testing.T) {
		if Wrap(nil, CodeInternal, "ignored") != nil {
			t.Fatal("expected nil")
		}
	})

	t.Run("cause survives errors.Is through fmt wrapping", func(t *testing.T) {
		sentinel := errors.New("sequence exhausted")
		err := Wrap(fmt.Errorf("allocate: %w", sentinel), CodeInternal, "allocation failed")
		if !errors.Is(err, sentinel) {
			t.Fatal("expected sentinel to be reachable through the chain")
		}
	})
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(New(CodeRateLimited, "slow down")); got != CodeRateLimited {
		t.Fatalf("expected rate_limited, got %q", got)
	}
	if got := CodeOf(errors.New("boom")); got != CodeInternal {
		t.Fatalf("expected internal_error fallback, got %q", got)
	}
}

func TestMessageOf(t *testing.T) {
	cause := errors.New("pq: connection refused")
	err := Wrap(cause, CodeInternal, "store unavailable")
	if got := MessageOf(err); got != "store unavailable" {
		t.Fatalf("expected safe message, got %q", got)
	}
	if got := MessageOf(cause); got != "" {
		t.Fatalf("expected empty for plain error, got %q", got)
	}
}
