package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorFormatsWithAndWithoutCause(t *testing.T) {
	e := New(StoreExec, errors.New("disk full"))
	if got, want := e.Error(), "store_exec: disk full"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	bare := &Error{Kind: TxnBegin}
	if got, want := bare.Error(), "txn_begin"; got != want {
		t.Errorf("Error() with nil cause = %q, want %q", got, want)
	}
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := errors.New("boom")
	e := New(ProcRead, cause)
	if !errors.Is(e, cause) {
		t.Fatal("expected errors.Is to find the wrapped cause")
	}
}

func TestIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", New(InvalidTimestamp, nil))
	if !Is(err, InvalidTimestamp) {
		t.Fatal("expected Is to match through fmt.Errorf wrapping")
	}
	if Is(err, StoreOpen) {
		t.Fatal("expected Is to reject a different kind")
	}
}

func TestIsFalseForPlainError(t *testing.T) {
	if Is(errors.New("plain"), ProcRead) {
		t.Fatal("expected Is to return false for a non-apperr error")
	}
}

func TestKindStringCoversAllValues(t *testing.T) {
	kinds := []Kind{ProcRead, Parse, StoreOpen, StoreExec, TxnBegin, TxnCommit, InvalidTimestamp}
	seen := make(map[string]bool)
	for _, k := range kinds {
		s := k.String()
		if s == "unknown" {
			t.Errorf("Kind %d stringified to unknown", k)
		}
		if seen[s] {
			t.Errorf("duplicate Kind string %q", s)
		}
		seen[s] = true
	}
}
