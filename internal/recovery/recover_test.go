package recovery

import (
	"errors"
	"io"
	"log/slog"
	"testing"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestRecoverToError(t *testing.T) {
	err := RecoverToError(discard, "op", func() error { panic("boom") })
	if !errors.Is(err, ErrPanic) {
		t.Fatalf("expected ErrPanic, got %v", err)
	}
	if err.Error() != "panic recovered: op: boom" {
		t.Errorf("unexpected message: %s", err)
	}

	sentinel := errors.New("plain")
	if err := RecoverToError(discard, "op", func() error { return sentinel }); err != sentinel {
		t.Errorf("expected error to pass through, got %v", err)
	}
}

func TestRecoverToValue(t *testing.T) {
	v, err := RecoverToValue(discard, "op", func() (int, error) { return 42, nil })
	if err != nil || v != 42 {
		t.Errorf("expected 42, got %d, %v", v, err)
	}

	v, err = RecoverToValue(discard, "op", func() (int, error) {
		var m map[string]int
		m["x"] = 1
		return 1, nil
	})
	if !errors.Is(err, ErrPanic) {
		t.Errorf("expected ErrPanic, got %v", err)
	}
	if v != 0 {
		t.Errorf("expected zero value, got %d", v)
	}
}
